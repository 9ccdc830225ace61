package suncrypto

import "errors"

var (
	// ErrMalformed covers every shape failure: bad hex, wrong length,
	// wrong PICC prefix byte. Callers never distinguish these from each
	// other or from ErrMACMismatch in user-facing errors.
	ErrMalformed = errors.New("malformed sun message")
	// ErrCounterNotAdvancing is returned when the decoded counter is not
	// strictly greater than the NTAG's last accepted counter.
	ErrCounterNotAdvancing = errors.New("tap counter did not advance")
	// ErrMACMismatch is returned when the recomputed SDMMAC does not equal
	// the caller-supplied c.
	ErrMACMismatch = errors.New("sdmmac mismatch")
)
