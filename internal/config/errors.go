package config

import "errors"

// Validation errors returned by [StructuredConfig.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidStorageConfigs indicates an empty database DSN.
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidAESKey indicates the module-wide NTAG 424 AES key is absent
	// or is not exactly 16 bytes once hex-decoded.
	ErrInvalidAESKey = errors.New("invalid server aes key configuration")
	// ErrInvalidNostrConfigs indicates a missing module signing keypair.
	ErrInvalidNostrConfigs = errors.New("invalid nostr configuration")
	// ErrInvalidAppConfigs indicates missing writer authority or a
	// non-positive payment-request or reset-token expiry.
	ErrInvalidAppConfigs = errors.New("invalid app configuration")
)
