package nostr

import "errors"

var (
	// ErrInvalidEvent is returned when an event fails structural validation
	// (missing fields, malformed hex, id mismatch).
	ErrInvalidEvent = errors.New("invalid event")
	// ErrInvalidSignature is returned when an event's Schnorr signature does
	// not verify against its own id and pubkey.
	ErrInvalidSignature = errors.New("invalid event signature")
	// ErrEventTooOld is returned when an event's created_at is further in the
	// past than the configured max age.
	ErrEventTooOld = errors.New("event is older than the allowed max age")
	// ErrUnexpectedPubkey is returned when an event's (possibly delegated)
	// pubkey does not match the caller-supplied expected pubkey.
	ErrUnexpectedPubkey = errors.New("event pubkey does not match expected pubkey")
	// ErrInvalidDelegation is returned when a delegation tag is present but
	// its token, conditions, or signature do not verify.
	ErrInvalidDelegation = errors.New("invalid delegation")
	// ErrConditionsExpired is returned when the event's created_at falls
	// outside the window stated by the delegation's conditions.
	ErrConditionsExpired = errors.New("delegation conditions do not cover this event")
	// ErrInvalidPubkey is returned when a hex or bech32 pubkey cannot be
	// parsed into a valid curve point.
	ErrInvalidPubkey = errors.New("invalid pubkey")
	// ErrInvalidPrivateKey is returned when a hex private key cannot be
	// parsed.
	ErrInvalidPrivateKey = errors.New("invalid private key")
	// ErrDecryptionFailed is returned when a NIP-04 ciphertext cannot be
	// decrypted (bad padding, malformed envelope, wrong key).
	ErrDecryptionFailed = errors.New("nip-04 decryption failed")
	// ErrRecipientNotFound is returned when EncryptMany's caller asks to
	// decrypt an envelope as a recipient pubkey not listed in it.
	ErrRecipientNotFound = errors.New("pubkey is not a recipient of this envelope")
)
