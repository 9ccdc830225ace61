package lifecycle

import "errors"

var (
	// ErrMalformedRequest is returned when an event's content does not
	// parse as the wire shape its operation expects.
	ErrMalformedRequest = errors.New("malformed request content")
	// ErrMissingDesign is returned when Initialize's request names neither
	// a design name nor a design uuid.
	ErrMissingDesign = errors.New("initialize request is missing a design reference")
	// ErrNotAdmin is returned when AdminResetRequest's signer is not listed
	// in the configured admin pubkeys.
	ErrNotAdmin = errors.New("signer is not an admin")
	// ErrTargetUnbound is returned when AdminResetRequest's target card has
	// no current holder to reset.
	ErrTargetUnbound = errors.New("target card has no holder to reset")
	// ErrSameHolder is returned when AdminResetRequest's admin and target
	// cards resolve to the same holder.
	ErrSameHolder = errors.New("admin and target card belong to the same holder")
	// ErrTargetIsAdmin is returned when AdminResetRequest's target holder is
	// itself an admin.
	ErrTargetIsAdmin = errors.New("target holder is itself an admin")
	// ErrResetTokenExpired is returned when AdminResetClaim's nonce has
	// outlived its TTL.
	ErrResetTokenExpired = errors.New("reset token has expired")
	// ErrMissingDonorTag is returned when a transfer acceptance event is
	// missing its second "p" tag (the donor pubkey).
	ErrMissingDonorTag = errors.New("acceptance event is missing the donor p tag")
	// ErrDonorMismatch is returned when the donation event's own pubkey
	// does not match the donor pubkey declared on the acceptance event.
	ErrDonorMismatch = errors.New("donation event pubkey does not match the declared donor")
)
