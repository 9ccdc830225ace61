package nostr

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Conditions is a parsed NIP-26 delegation conditions string, e.g.
// "kind=1112&created_at>1700000000&created_at<1700003600".
type Conditions struct {
	Kind         *int
	CreatedAfter *int64
	CreatedBefor *int64
}

// ParseConditions parses the '&'-separated condition string. Unknown or
// malformed clauses are rejected rather than silently ignored, since a
// condition this module fails to enforce is a condition the delegator did
// not actually get to set.
func ParseConditions(raw string) (*Conditions, error) {
	c := &Conditions{}
	if raw == "" {
		return c, nil
	}

	for _, clause := range strings.Split(raw, "&") {
		switch {
		case strings.HasPrefix(clause, "kind="):
			v, err := strconv.Atoi(strings.TrimPrefix(clause, "kind="))
			if err != nil {
				return nil, fmt.Errorf("%w: bad kind clause %q", ErrInvalidDelegation, clause)
			}
			c.Kind = &v
		case strings.HasPrefix(clause, "created_at>"):
			v, err := strconv.ParseInt(strings.TrimPrefix(clause, "created_at>"), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad created_at> clause %q", ErrInvalidDelegation, clause)
			}
			c.CreatedAfter = &v
		case strings.HasPrefix(clause, "created_at<"):
			v, err := strconv.ParseInt(strings.TrimPrefix(clause, "created_at<"), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad created_at< clause %q", ErrInvalidDelegation, clause)
			}
			c.CreatedBefor = &v
		default:
			return nil, fmt.Errorf("%w: unrecognized clause %q", ErrInvalidDelegation, clause)
		}
	}

	return c, nil
}

// Covers reports whether the conditions permit an event of the given kind
// created at createdAt.
func (c *Conditions) Covers(kind int, createdAt int64) error {
	if c.Kind != nil && *c.Kind != kind {
		return fmt.Errorf("%w: kind %d not permitted by delegation", ErrInvalidDelegation, kind)
	}
	if c.CreatedAfter != nil && createdAt <= *c.CreatedAfter {
		return ErrConditionsExpired
	}
	if c.CreatedBefor != nil && createdAt >= *c.CreatedBefor {
		return ErrConditionsExpired
	}
	return nil
}

// delegationToken is the exact string a delegator signs to authorize a
// delegatee: "nostr:delegation:<delegatee pubkey>:<conditions>".
func delegationToken(delegateePubkey, conditions string) string {
	return "nostr:delegation:" + delegateePubkey + ":" + conditions
}

// SignDelegation produces a NIP-26 delegation signature: delegatorPrivHex
// signs the delegation token authorizing delegateePubkey to act under
// conditions on the delegator's behalf.
func SignDelegation(delegatorPrivHex, delegateePubkey, conditions string) (string, error) {
	priv, err := ParsePrivateKey(delegatorPrivHex)
	if err != nil {
		return "", err
	}

	token := delegationToken(delegateePubkey, conditions)
	idBytes := sha256Sum(token)

	sig, err := schnorr.Sign(priv, idBytes)
	if err != nil {
		return "", fmt.Errorf("signing delegation: %w", err)
	}

	return hex.EncodeToString(sig.Serialize()), nil
}

// VerifyDelegation checks that sig is a valid BIP-340 signature by
// delegatorPubkey over the delegation token for delegateePubkey and
// conditions.
func VerifyDelegation(delegatorPubkey, delegateePubkey, conditions, sig string) error {
	pub, err := ParsePublicKey(delegatorPubkey)
	if err != nil {
		return err
	}

	token := delegationToken(delegateePubkey, conditions)
	idBytes := sha256Sum(token)

	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("%w: malformed delegation signature hex", ErrInvalidDelegation)
	}
	parsedSig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDelegation, err)
	}
	if !parsedSig.Verify(idBytes, pub) {
		return fmt.Errorf("%w: signature does not verify", ErrInvalidDelegation)
	}
	return nil
}

// sha256Sum returns the raw sha256 digest of s, the message BIP-340 Schnorr
// signs and verifies a NIP-26 delegation token over.
func sha256Sum(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}

// ResolveSignerPubkey inspects e's "delegation" tag, if any, and returns the
// pubkey whose authority actually backs the event: the delegator's pubkey
// when a valid delegation tag is present and its conditions cover the
// event, or e.PubKey unchanged when there is no delegation tag. A
// delegation tag that is malformed, fails to verify, or does not cover the
// event yields an error.
//
// This is what the signed-event preflight uses in place of e.PubKey
// when deciding whose authority an inbound event carries.
func (e *Event) ResolveSignerPubkey() (string, error) {
	tag := e.FindTag("delegation")
	if tag == nil {
		return e.PubKey, nil
	}
	if len(tag) != 4 {
		return "", fmt.Errorf("%w: malformed delegation tag", ErrInvalidDelegation)
	}

	delegatorPubkey, conditionsRaw, sig := tag[1], tag[2], tag[3]

	if err := VerifyDelegation(delegatorPubkey, e.PubKey, conditionsRaw, sig); err != nil {
		return "", err
	}

	conditions, err := ParseConditions(conditionsRaw)
	if err != nil {
		return "", err
	}

	if err := conditions.Covers(e.Kind, e.CreatedAt); err != nil {
		return "", err
	}

	return delegatorPubkey, nil
}
