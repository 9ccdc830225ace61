package models

// Card is the logical card owned by a holder, 1:1 with an NTAG.
type Card struct {
	UUID        string
	Name        string
	Description string
	Enabled     bool

	// NTAG424Cid is the 1:1 backing NTAG's card id.
	NTAG424Cid string

	// HolderPubKey is nil until the card has been activated (bound to a
	// holder).
	HolderPubKey *string

	Limits []Limit
}

// Status reports the card's place in the lifecycle state machine,
// derived from its persisted fields rather than stored explicitly.
type Status int

const (
	StatusInitialized Status = iota
	StatusAssociated
	StatusActivated
)
