package models

import "github.com/lawallet/card-server/internal/nostr"

// InitializeRequest is the content of a writer-signed POST /ntag424
// event (Initialize).
type InitializeRequest struct {
	Cid    string    `json:"cid"`
	Ctr    int64     `json:"ctr"`
	Design DesignRef `json:"design"`
}

// DeleteNTAGRequest is the content of a writer-signed DELETE /ntag424
// event (Admin delete).
type DeleteNTAGRequest struct {
	Cid string `json:"cid"`
}

// AssociateRequest is the content of a writer-signed PATCH /ntag424?p&c
// event (Associate).
type AssociateRequest struct {
	OTC string `json:"otc"`
}

// DelegationRequest is the wire shape of a NIP-26 delegation as presented
// by a holder-signed request: the conditions string, the signature over
// "nostr:delegation:<delegatee>:<conditions>" (delegatee being the pubkey
// that signs this request) produced by the delegator, and
// the delegator's own pubkey (the permanent holder identity this request
// enrolls a new signing key under).
type DelegationRequest struct {
	DelegatorPubKey string `json:"delegatorPubKey"`
	Conditions      string `json:"conditions"`
	Token           string `json:"token"`
}

// ActivateRequest is the content of a holder-signed
// "card-activation-request" POST /card event (Activate).
type ActivateRequest struct {
	OTC        string             `json:"otc"`
	Delegation DelegationRequest `json:"delegation"`
}

// TransferAcceptanceRequest is the content of the new holder's acceptance
// event in a card-transfer (Card-Transfer), carrying the
// donor's donation event to be decrypted and verified.
type TransferAcceptanceRequest struct {
	Delegation    DelegationRequest `json:"delegation"`
	DonationEvent nostr.Event       `json:"donationEvent"`
}

// AdminResetRequestBody is the content of POST /card/reset/request: two
// (p,c) tap pairs, one for the admin's own card and one for the target
// holder's card to be reset.
type AdminResetRequestBody struct {
	AdminP  string `json:"adminP"`
	AdminC  string `json:"adminC"`
	TargetP string `json:"targetP"`
	TargetC string `json:"targetC"`
}

// AdminResetRequestResponse carries the nonce the target holder presents
// to POST /card/reset/claim.
type AdminResetRequestResponse struct {
	Nonce string `json:"nonce"`
}

// AdminResetClaimRequest is the content of the new holder's POST
// /card/reset/claim event.
type AdminResetClaimRequest struct {
	OTC        string             `json:"otc"`
	Delegation DelegationRequest `json:"delegation"`
}

// AdminResetClaimResponse reports the saga's best-effort side effects.
// The card reassignment itself has already committed by the time this
// is returned, so every field here describes an independently-failable
// follow-up.
type AdminResetClaimResponse struct {
	FundsTransferred        bool   `json:"fundsTransferred"`
	IdentityTransferred     bool   `json:"identityTransferred"`
	IdentityProviderUpdated bool   `json:"identityProviderUpdated"`
	IdentityProviderName    string `json:"identityProviderName,omitempty"`
}

// ExtendedPayRequest is the content of the signed POST /card/pay event
// (extended multi-token withdraw).
type ExtendedPayRequest struct {
	K1     string           `json:"k1"`
	PubKey string           `json:"pubkey"`
	Tokens map[string]int64 `json:"tokens"`
}

// StandardPayResponse acknowledges a successful standard or extended
// withdraw.
type StandardPayResponse struct {
	Status string `json:"status"`
}

// DataRequest is the content of a holder-signed POST /card/data/request
// or POST /card/publish-data event: empty today, present so future fields
// (e.g. a specific card uuid filter) have somewhere to land without
// breaking the wire shape.
type DataRequest struct{}

// ConfigRequest is the content of a holder-signed POST /card/config/request
// event.
type ConfigRequest struct{}
