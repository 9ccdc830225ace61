package models

// CardDataDocument is the card-data envelope content: a map keyed by
// card uuid, published module-to-holder whenever the holder's card set
// or a card's design changes.
type CardDataDocument map[string]CardDataEntry

// CardDataEntry is a single card's entry in a CardDataDocument.
type CardDataEntry struct {
	Design Design `json:"design"`
}

// CardConfigDocument is the card-config envelope content: the
// holder-editable configuration surface, exchanged in both directions
// (holder publishes a desired state; module republishes the applied
// confirmation).
type CardConfigDocument struct {
	TrustedMerchants []TrustedMerchantRef    `json:"trusted-merchants"`
	Cards            map[string]CardConfig   `json:"cards"`
}

// TrustedMerchantRef is a merchant entry as it appears on the wire.
type TrustedMerchantRef struct {
	PubKey string `json:"pubkey"`
}

// CardStatus is the wire-level enabled/disabled flag of CardConfig.
type CardStatus string

const (
	CardStatusEnabled  CardStatus = "ENABLED"
	CardStatusDisabled CardStatus = "DISABLED"
)

// CardConfig is a single card's entry in a CardConfigDocument. Pointer
// fields distinguish "absent" (leave unchanged) from a present, possibly
// zero-value, update per field.
type CardConfig struct {
	Name        *string      `json:"name,omitempty"`
	Description *string      `json:"description,omitempty"`
	Status      *CardStatus  `json:"status,omitempty"`
	Limits      []LimitConfig `json:"limits"`
}

// LimitConfig is a Limit as it appears on the wire, without its uuid/card
// linkage (both are implied by the enclosing document).
type LimitConfig struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Token       string `json:"token"`
	Amount      int64  `json:"amount"`
	Delta       int64  `json:"delta"`
}
