package utils

import (
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// suuidEncoding is the base-64 alphabet `A-Za-z0-9-_` used for the module's
// short-UUID tokens (k1 payment-request nonces, reset-token nonces). This is
// exactly the standard URL-safe base64 alphabet, used without padding: 16
// raw UUID bytes always produce a 22-character string.
var suuidEncoding = base64.RawURLEncoding

// UUID2SUUID encodes a v4 UUID string as a 22-character suuid.
func UUID2SUUID(u string) (string, error) {
	parsed, err := uuid.Parse(u)
	if err != nil {
		return "", fmt.Errorf("uuid2suuid: invalid uuid: %w", err)
	}

	raw := parsed[:]
	return suuidEncoding.EncodeToString(raw), nil
}

// SUUID2UUID decodes a 22-character suuid back into its canonical UUID
// string form. It is the exact inverse of [UUID2SUUID].
func SUUID2UUID(s string) (string, error) {
	if len(s) != 22 {
		return "", fmt.Errorf("suuid2uuid: expected 22 chars, got %d", len(s))
	}

	raw, err := suuidEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("suuid2uuid: invalid suuid: %w", err)
	}

	parsed, err := uuid.FromBytes(raw)
	if err != nil {
		return "", fmt.Errorf("suuid2uuid: %w", err)
	}

	return parsed.String(), nil
}
