// Package nostr implements the signed-event envelope this module speaks on
// the bus: canonical id hashing, Schnorr sign/verify, NIP-26 delegation,
// NIP-04 multi-recipient encryption, and the bech32 npub codec (nsec keys
// are not handled).
package nostr

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Tag is a single nostr event tag, e.g. ["p", "<pubkey>"].
type Tag []string

// Event is the wire-level signed event this module both receives (HTTP
// bodies, subscription deliveries) and emits (responses, transfer
// instructions, config documents).
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      []Tag  `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// Kinds used on the bus.
const (
	KindRegular               = 1112
	KindEphemeralResponse     = 21111
	KindParameterizedReplace  = 31111
)

// FindTag returns the first tag whose first element equals name, or nil.
func (e *Event) FindTag(name string) Tag {
	for _, t := range e.Tags {
		if len(t) > 0 && t[0] == name {
			return t
		}
	}
	return nil
}

// FindTags returns every tag whose first element equals name.
func (e *Event) FindTags(name string) []Tag {
	var out []Tag
	for _, t := range e.Tags {
		if len(t) > 0 && t[0] == name {
			out = append(out, t)
		}
	}
	return out
}

// CanonicalID computes the NIP-01 canonical id: the lowercase hex sha256 of
// the serialized array [0, pubkey, created_at, kind, tags, content].
//
// Serialization follows NIP-01's canonical JSON rules exactly: no
// insignificant whitespace, UTF-8 passed through without Unicode
// normalization, and the specific escaping of the characters `"`, `\`, and
// control codes U+0000 through U+001F (`\b`, `\t`, `\n`, `\f` and `\r` use
// their two-character escape sequence, the rest `\u00XX`, matching the way
// the reference implementations serialize events for hashing).
func (e *Event) CanonicalID() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString("0,")
	b.WriteString(jsonString(e.PubKey))
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(e.CreatedAt, 10))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(e.Kind))
	b.WriteByte(',')
	b.WriteByte('[')
	for i, tag := range e.Tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, v := range tag {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(jsonString(v))
		}
		b.WriteByte(']')
	}
	b.WriteByte(']')
	b.WriteByte(',')
	b.WriteString(jsonString(e.Content))
	b.WriteByte(']')

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// jsonString renders s as a minimal JSON string literal: quotes and
// backslashes are escaped, control characters use their two-character
// escape where JSON has one and `\u00XX` otherwise, and everything else (including non-ASCII UTF-8) passes through
// unchanged.
func jsonString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				b.WriteString(fmt.Sprintf(`\u%04x`, r))
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Sign computes the canonical id, stores it on e.ID, and produces a BIP-340
// Schnorr signature over it using privHex (64 hex chars). The derived
// x-only pubkey is stored on e.PubKey.
func (e *Event) Sign(privHex string) error {
	priv, err := ParsePrivateKey(privHex)
	if err != nil {
		return err
	}

	e.PubKey = hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))
	e.ID = e.CanonicalID()

	idBytes, err := hex.DecodeString(e.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	sig, err := schnorr.Sign(priv, idBytes)
	if err != nil {
		return fmt.Errorf("signing event: %w", err)
	}

	e.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

// VerifySignature checks that e.ID matches the canonical hash of e's fields
// and that e.Sig is a valid Schnorr signature over e.ID under e.PubKey.
func (e *Event) VerifySignature() error {
	if e.ID != e.CanonicalID() {
		return fmt.Errorf("%w: id does not match canonical hash", ErrInvalidEvent)
	}

	pub, err := ParsePublicKey(e.PubKey)
	if err != nil {
		return err
	}

	sigBytes, err := hex.DecodeString(e.Sig)
	if err != nil {
		return fmt.Errorf("%w: malformed sig hex", ErrInvalidSignature)
	}

	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	idBytes, err := hex.DecodeString(e.ID)
	if err != nil {
		return fmt.Errorf("%w: malformed id hex", ErrInvalidEvent)
	}

	if !sig.Verify(idBytes, pub) {
		return ErrInvalidSignature
	}

	return nil
}

// ParsePrivateKey parses a 64-hex-char secp256k1 private key.
func ParsePrivateKey(privHex string) (*btcec.PrivateKey, error) {
	raw, err := hex.DecodeString(privHex)
	if err != nil || len(raw) != 32 {
		return nil, ErrInvalidPrivateKey
	}
	return btcec.PrivKeyFromBytes(raw), nil
}

// ParsePublicKey parses a 64-hex-char x-only (BIP-340) secp256k1 public key.
func ParsePublicKey(pubHex string) (*btcec.PublicKey, error) {
	raw, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, ErrInvalidPubkey
	}
	pub, err := schnorr.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPubkey, err)
	}
	return pub, nil
}
