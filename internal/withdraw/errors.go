package withdraw

import "errors"

var (
	// ErrCardUnbound is returned when a scanned card has no holder yet
	// (activation incomplete).
	ErrCardUnbound = errors.New("card is not bound to a holder")
	// ErrCardDisabled is returned when a scanned card's holder has disabled
	// it via card-config.
	ErrCardDisabled = errors.New("card is disabled")
	// ErrUnsupportedAction is returned for an X-LaWallet-Action value this
	// dispatcher does not implement.
	ErrUnsupportedAction = errors.New("unsupported scan action")
	// ErrNoDelegation is returned when a withdraw is attempted for a holder
	// with no on-file delegation to attach to the transfer event.
	ErrNoDelegation = errors.New("holder has no delegation on file")
	// ErrInvoiceMalformed is returned when a bolt11 invoice fails to decode.
	ErrInvoiceMalformed = errors.New("malformed bolt11 invoice")
	// ErrInvoiceMissingAmount is returned when a bolt11 invoice carries no
	// amount (requires msats to check against limits/balance).
	ErrInvoiceMissingAmount = errors.New("bolt11 invoice has no amount")
	// ErrInvoiceExpired is returned when a bolt11 invoice's expiry has
	// already elapsed.
	ErrInvoiceExpired = errors.New("bolt11 invoice has expired")
	// ErrWrongPaymentRequestTag is returned when a pay callback's k1 was
	// issued for a different scan flavor (standard vs extended).
	ErrWrongPaymentRequestTag = errors.New("payment request tag does not match this callback")
	// ErrUnknownToken is returned when an extended pay names a token absent
	// from the original scan response.
	ErrUnknownToken = errors.New("token was not offered by the scan response")
	// ErrAmountExceedsMax is returned when a requested amount exceeds the
	// scan response's maxWithdrawable for that token.
	ErrAmountExceedsMax = errors.New("amount exceeds maxWithdrawable")
	// ErrAmountExceedsRemaining is returned when a requested amount exceeds
	// the card's current sliding-window remaining allowance.
	ErrAmountExceedsRemaining = errors.New("amount exceeds remaining limit")
	// ErrAmountExceedsBalance is returned when a requested amount exceeds
	// the holder's ledger balance.
	ErrAmountExceedsBalance = errors.New("amount exceeds available balance")
	// ErrInvalidPubkey is returned when POST /card/pay's pubkey field is
	// neither valid hex nor valid bech32.
	ErrInvalidPubkey = errors.New("malformed recipient pubkey")
)
