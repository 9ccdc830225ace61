package models

// Holder is an end-user identity: a 32-byte secp256k1 public key that owns
// zero or more Cards, Delegations, and TrustedMerchants.
type Holder struct {
	PubKey            string
	Delegations       []Delegation
	TrustedMerchants  []TrustedMerchant
}

// Delegation is a NIP-26-style authorization letting the holder's wallet
// sign events on the holder's behalf under a bounded validity window.
type Delegation struct {
	HolderPubKey    string
	DelegatorPubKey string
	Conditions      string
	DelegationToken string
	Since           int64
	Until           int64
}

// TrustedMerchant is a (holder, merchant) pairing the holder has declared
// as pre-authorized in its card-config document.
type TrustedMerchant struct {
	HolderPubKey   string
	MerchantPubKey string
}
