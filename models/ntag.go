package models

// NTAG is the physical card's cryptographic identity: an NXP NTAG 424 DNA
// chip programmed with five AES-128 keys and tracking a monotonic tap
// counter.
type NTAG struct {
	// Cid is the 7-byte card id, 14 lowercase hex chars.
	Cid string

	// K0 is the card-specific application master key.
	K0 string
	// K1 is the module-wide PICC decryption key; identical across every
	// NTAG this module has provisioned.
	K1 string
	// K2 is the card-specific SDMMAC session key.
	K2 string
	// K3, K4 are reserved per-card keys not used by the verifier.
	K3 string
	K4 string

	// Ctr is the last accepted tap counter, 0..2^24-1.
	Ctr int64

	// OTC is the optional one-time association code. Nil until Associate.
	OTC *string

	// DesignUUID references the Design applied at Initialize time.
	DesignUUID string
}
