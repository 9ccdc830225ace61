package store

import "errors"

// Sentinel errors returned by the Registry's repositories and transactional
// operations. Callers use [errors.Is] to match against these values.
var (
	// ErrNotFound is returned when a lookup by primary key, cid, otc, or
	// suuid matches no row.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique constraint (cid, otc, design
	// name) is violated by an attempted insert or when an
	// otc is already bound to a different value than the caller supplied.
	ErrConflict = errors.New("conflict")

	// ErrDesignNotFound is returned when a [models.DesignRef] resolves to no
	// row, distinct from [ErrNotFound] so callers can map it to the
	// Initialize handler's "Unprocessable" response.
	ErrDesignNotFound = errors.New("design not found")

	// ErrCounterNotAdvancing is returned by the conditional NTAG counter
	// update when zero rows matched `WHERE cid = $1 AND ctr < $2`: either the
	// cid does not exist or the counter did not advance.
	ErrCounterNotAdvancing = errors.New("ntag counter did not advance")

	// ErrPaymentRequestExpired is returned by ConsumePaymentRequestAndPay when the
	// request's age exceeds the configured expiry.
	ErrPaymentRequestExpired = errors.New("payment request expired")

	// ErrPaymentRequestAlreadyUsed is returned by ConsumePaymentRequestAndPay when
	// a Payment already references the request's uuid.
	ErrPaymentRequestAlreadyUsed = errors.New("payment request already used")
)

// Low-level database operation errors, wrapped around driver-level
// failures so callers can distinguish infrastructure failure from domain
// rejection.
var (
	ErrBuildingSQLQuery     = errors.New("error building sql query")
	ErrExecutingQuery       = errors.New("error executing sql query")
	ErrBeginningTransaction = errors.New("failed to begin transaction")
	ErrCommittingTransaction = errors.New("failed to commit transaction")
	ErrScanningRow          = errors.New("failed to scan row")
	ErrScanningRows         = errors.New("failed to scan rows")
)
