package nostr

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// DecodePubkey accepts either a 64-hex-char pubkey or a bech32 "npub1..."
// string (POST /card/pay pubkey field) and returns the
// 64-hex-char form.
func DecodePubkey(s string) (string, error) {
	if len(s) == 64 {
		if _, err := hex.DecodeString(s); err == nil {
			return s, nil
		}
	}

	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPubkey, err)
	}
	if hrp != "npub" {
		return "", fmt.Errorf("%w: unexpected bech32 prefix %q", ErrInvalidPubkey, hrp)
	}

	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil || len(raw) != 32 {
		return "", fmt.Errorf("%w: malformed npub payload", ErrInvalidPubkey)
	}

	return hex.EncodeToString(raw), nil
}

// EncodeNpub is the inverse of DecodePubkey for the hex branch: it renders a
// 64-hex-char pubkey as its bech32 "npub1..." form.
func EncodeNpub(pubkeyHex string) (string, error) {
	raw, err := hex.DecodeString(pubkeyHex)
	if err != nil || len(raw) != 32 {
		return "", fmt.Errorf("%w: malformed pubkey hex", ErrInvalidPubkey)
	}

	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPubkey, err)
	}

	return bech32.Encode("npub", data)
}
