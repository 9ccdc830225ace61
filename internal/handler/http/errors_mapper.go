package http

import (
	"errors"
	"net/http"

	"github.com/lawallet/card-server/internal/configchannel"
	"github.com/lawallet/card-server/internal/lifecycle"
	"github.com/lawallet/card-server/internal/nostr"
	"github.com/lawallet/card-server/internal/store"
	"github.com/lawallet/card-server/internal/tap"
	"github.com/lawallet/card-server/internal/withdraw"
)

// errorStatusMap maps every sentinel error a handler can see, across every
// domain package, to its HTTP status.
var errorStatusMap = map[error]int{
	// Not found.
	store.ErrNotFound:       http.StatusNotFound,
	store.ErrDesignNotFound: http.StatusUnprocessableEntity,

	// Conflict.
	store.ErrConflict: http.StatusConflict,

	// Malformed input / authentication failure.
	store.ErrCounterNotAdvancing:  http.StatusUnprocessableEntity,
	lifecycle.ErrMalformedRequest: http.StatusUnprocessableEntity,
	lifecycle.ErrMissingDesign:    http.StatusUnprocessableEntity,
	lifecycle.ErrNotAdmin:         http.StatusUnprocessableEntity,
	lifecycle.ErrTargetUnbound:    http.StatusNotFound,
	lifecycle.ErrSameHolder:       http.StatusUnprocessableEntity,
	lifecycle.ErrTargetIsAdmin:    http.StatusUnprocessableEntity,
	lifecycle.ErrResetTokenExpired: http.StatusUnprocessableEntity,
	lifecycle.ErrMissingDonorTag:  http.StatusUnprocessableEntity,
	lifecycle.ErrDonorMismatch:    http.StatusUnprocessableEntity,

	configchannel.ErrUnsupportedEvent: http.StatusUnprocessableEntity,
	configchannel.ErrMalformedConfig:  http.StatusUnprocessableEntity,

	nostr.ErrInvalidEvent:      http.StatusBadRequest,
	nostr.ErrInvalidSignature:  http.StatusUnprocessableEntity,
	nostr.ErrEventTooOld:       http.StatusUnprocessableEntity,
	nostr.ErrUnexpectedPubkey:  http.StatusUnprocessableEntity,
	nostr.ErrInvalidDelegation: http.StatusUnprocessableEntity,
	nostr.ErrConditionsExpired: http.StatusUnprocessableEntity,
	nostr.ErrInvalidPubkey:     http.StatusBadRequest,
	nostr.ErrInvalidPrivateKey: http.StatusUnprocessableEntity,
	nostr.ErrDecryptionFailed:  http.StatusUnprocessableEntity,
	nostr.ErrRecipientNotFound: http.StatusUnprocessableEntity,

	// Verifier failures never reveal their cause outside the "info" scan
	// action; every one maps to a flat 404, matching LUD-03's
	// "Failed to retrieve card data".
	tap.ErrVerification: http.StatusNotFound,

	// Exhausted — 400 with a {status, reason} body.
	store.ErrPaymentRequestExpired:     http.StatusBadRequest,
	store.ErrPaymentRequestAlreadyUsed: http.StatusBadRequest,
	withdraw.ErrCardDisabled:           http.StatusBadRequest,
	withdraw.ErrCardUnbound:            http.StatusNotFound,
	withdraw.ErrUnsupportedAction:      http.StatusBadRequest,
	withdraw.ErrNoDelegation:           http.StatusBadRequest,
	withdraw.ErrInvoiceMalformed:       http.StatusBadRequest,
	withdraw.ErrInvoiceMissingAmount:   http.StatusBadRequest,
	withdraw.ErrInvoiceExpired:         http.StatusBadRequest,
	withdraw.ErrWrongPaymentRequestTag: http.StatusBadRequest,
	withdraw.ErrUnknownToken:           http.StatusBadRequest,
	withdraw.ErrAmountExceedsMax:       http.StatusBadRequest,
	withdraw.ErrAmountExceedsRemaining: http.StatusBadRequest,
	withdraw.ErrAmountExceedsBalance:   http.StatusBadRequest,
	withdraw.ErrInvalidPubkey:          http.StatusBadRequest,

	ErrMissingActionTag: http.StatusUnprocessableEntity,
	ErrUnknownActionTag: http.StatusUnprocessableEntity,

	// Internal.
	store.ErrBuildingSQLQuery:      http.StatusInternalServerError,
	store.ErrExecutingQuery:        http.StatusInternalServerError,
	store.ErrBeginningTransaction:  http.StatusInternalServerError,
	store.ErrCommittingTransaction: http.StatusInternalServerError,
	store.ErrScanningRow:           http.StatusInternalServerError,
	store.ErrScanningRows:          http.StatusInternalServerError,
}

func statusFromError(err error) int {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}

// isExhausted reports whether err belongs to the "Exhausted" category,
// which responds with a {status:"ERROR", reason} body rather than an
// empty one.
func isExhausted(err error) bool {
	switch {
	case errors.Is(err, store.ErrPaymentRequestExpired),
		errors.Is(err, store.ErrPaymentRequestAlreadyUsed),
		errors.Is(err, withdraw.ErrInvoiceExpired),
		errors.Is(err, withdraw.ErrAmountExceedsMax),
		errors.Is(err, withdraw.ErrAmountExceedsRemaining),
		errors.Is(err, withdraw.ErrAmountExceedsBalance):
		return true
	default:
		return false
	}
}
