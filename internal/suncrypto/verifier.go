package suncrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"regexp"
)

var (
	pPattern = regexp.MustCompile(`^[A-F0-9]{32}$`)
	cPattern = regexp.MustCompile(`^[A-F0-9]{16}$`)
)

// sv2Prefix is the fixed 6-byte SV2 session-vector prefix NXP specifies for
// the SDMMAC session key derivation.
var sv2Prefix = []byte{0x3C, 0xC3, 0x00, 0x01, 0x00, 0x80}

// Result is a successfully verified SUN message.
type Result struct {
	// Cid is the 14-hex-char card id decoded from the PICC data.
	Cid string
	// NewCtr is the decoded tap counter. The caller MUST persist this as
	// the NTAG's new ctr inside the same transaction that looked up the
	// NTAG's prior ctr and k2.
	NewCtr int64
}

// DecodeCid decrypts p under the module-wide k1 alone and returns the cid it
// carries, without checking the SDMMAC or the counter. Callers (the
// Lifecycle Orchestrator's Associate, the Withdrawal Dispatcher's scan path)
// need this as pass one of a two-pass lookup: cid is required to resolve the
// per-card k2 from the Registry before [Verify] can even compute the SV2
// session vector, since k2 is per-card rather than module-wide.
func DecodeCid(p, k1Hex string) (string, error) {
	if !pPattern.MatchString(p) {
		return "", fmt.Errorf("%w: p", ErrMalformed)
	}

	k1, err := hex.DecodeString(k1Hex)
	if err != nil || len(k1) != 16 {
		return "", fmt.Errorf("%w: module k1", ErrMalformed)
	}

	pBytes, err := hex.DecodeString(p)
	if err != nil {
		return "", fmt.Errorf("%w: p hex", ErrMalformed)
	}

	picc, err := decryptPICC(k1, pBytes)
	if err != nil {
		return "", err
	}

	if picc[0] != 0xC7 {
		return "", ErrMalformed
	}

	return hex.EncodeToString(picc[1:8]), nil
}

// Verify decrypts p, recomputes the SDMMAC, and checks it against c.
//
// k1 is the module-wide PICC decryption key (hex, 16 bytes) and k2 is the
// specific NTAG's SDMMAC session-derivation key (hex, 16 bytes), both
// already resolved by the caller via [DecodeCid] since k2 is per-card and
// cannot be looked up without first decrypting p. priorCtr is the NTAG's
// last accepted counter.
//
// Each failure wraps one of the exported sentinels [ErrMalformed],
// [ErrCounterNotAdvancing] or [ErrMACMismatch]; callers that face clients
// (tap.Verifier) collapse them to a single generic error.
func Verify(p, c, k1Hex, k2Hex string, priorCtr int64) (*Result, error) {
	if !pPattern.MatchString(p) {
		return nil, fmt.Errorf("%w: p", ErrMalformed)
	}
	if !cPattern.MatchString(c) {
		return nil, fmt.Errorf("%w: c", ErrMalformed)
	}

	k1, err := hex.DecodeString(k1Hex)
	if err != nil || len(k1) != 16 {
		return nil, fmt.Errorf("%w: module k1", ErrMalformed)
	}
	k2, err := hex.DecodeString(k2Hex)
	if err != nil || len(k2) != 16 {
		return nil, fmt.Errorf("%w: ntag k2", ErrMalformed)
	}

	pBytes, err := hex.DecodeString(p)
	if err != nil {
		return nil, fmt.Errorf("%w: p hex", ErrMalformed)
	}

	picc, err := decryptPICC(k1, pBytes)
	if err != nil {
		return nil, err
	}

	if picc[0] != 0xC7 {
		return nil, ErrMalformed
	}

	cidBytes := picc[1:8]
	ctrBytes := picc[8:11]

	newCtr := int64(ctrBytes[2])<<16 | int64(ctrBytes[1])<<8 | int64(ctrBytes[0])

	if newCtr <= priorCtr {
		return nil, ErrCounterNotAdvancing
	}

	tag, err := computeSDMMAC(k2, cidBytes, ctrBytes)
	if err != nil {
		return nil, fmt.Errorf("computing sdmmac: %w", err)
	}

	if hex.EncodeToString(tag) != toLower(c) {
		return nil, ErrMACMismatch
	}

	return &Result{
		Cid:    hex.EncodeToString(cidBytes),
		NewCtr: newCtr,
	}, nil
}

// decryptPICC decrypts the 16-byte PICC data block with AES-128-CBC, a
// zero IV, and no padding (the block is already exactly one AES block).
func decryptPICC(key, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) != blockSize {
		return nil, fmt.Errorf("%w: p is not one aes block", ErrMalformed)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, blockSize)
	out := make([]byte, blockSize)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out, nil
}

// computeSDMMAC recomputes NXP's double-layer, odd-byte-compressed SDMMAC
// over cid and ctr under the card's k2.
func computeSDMMAC(k2, cidBytes, ctrBytes []byte) ([]byte, error) {
	sv2 := make([]byte, 0, len(sv2Prefix)+len(cidBytes)+len(ctrBytes))
	sv2 = append(sv2, sv2Prefix...)
	sv2 = append(sv2, cidBytes...)
	sv2 = append(sv2, ctrBytes...)

	kSession, err := aesCMAC(k2, sv2)
	if err != nil {
		return nil, err
	}

	mac, err := aesCMAC(kSession, nil)
	if err != nil {
		return nil, err
	}

	return compress(mac), nil
}

// compress takes the odd-indexed bytes (1,3,5,7,9,11,13,15) of a 16-byte
// CMAC, producing the 8-byte SDMMAC tag NXP's silicon emits.
func compress(mac []byte) []byte {
	tag := make([]byte, 8)
	for i := 0; i < 8; i++ {
		tag[i] = mac[2*i+1]
	}
	return tag
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'F' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// GeneratePC is the inverse of Verify: it produces the (p, c) pair a real
// NTAG 424 DNA chip would emit for the given cid/ctr under k1/k2. Used by
// tests to exercise the encrypt/decrypt round trip, and usable as a
// reference implementation for provisioning tooling that needs to simulate
// tap output.
func GeneratePC(k1Hex, k2Hex, cidHex string, ctr int64) (p, c string, err error) {
	k1, err := hex.DecodeString(k1Hex)
	if err != nil || len(k1) != 16 {
		return "", "", fmt.Errorf("%w: module k1", ErrMalformed)
	}
	k2, err := hex.DecodeString(k2Hex)
	if err != nil || len(k2) != 16 {
		return "", "", fmt.Errorf("%w: ntag k2", ErrMalformed)
	}
	cidBytes, err := hex.DecodeString(cidHex)
	if err != nil || len(cidBytes) != 7 {
		return "", "", fmt.Errorf("%w: cid", ErrMalformed)
	}
	if ctr < 0 || ctr > 0xFFFFFF {
		return "", "", fmt.Errorf("%w: ctr out of range", ErrMalformed)
	}

	ctrBytes := []byte{byte(ctr), byte(ctr >> 8), byte(ctr >> 16)}

	picc := make([]byte, blockSize)
	picc[0] = 0xC7
	copy(picc[1:8], cidBytes)
	copy(picc[8:11], ctrBytes)
	// bytes 11..16 are reserved padding, left zero.

	block, err := aes.NewCipher(k1)
	if err != nil {
		return "", "", err
	}
	iv := make([]byte, blockSize)
	ct := make([]byte, blockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, picc)

	tag, err := computeSDMMAC(k2, cidBytes, ctrBytes)
	if err != nil {
		return "", "", err
	}

	return toUpper(hex.EncodeToString(ct)), toUpper(hex.EncodeToString(tag)), nil
}

func toUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
