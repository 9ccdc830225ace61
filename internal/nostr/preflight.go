package nostr

import (
	"fmt"
)

// MaxEventAgeSeconds is the maximum allowed gap between an inbound event's
// created_at and the verifying clock.
const MaxEventAgeSeconds = 180

// Clock returns the current unix time. Tests substitute a fixed clock so
// the 3-minute age window can be exercised deterministically.
type Clock func() int64

// Preflight runs the checks every inbound signed event (HTTP bodies and
// subscription deliveries) must pass before its content is trusted:
// structural/signature validity, NIP-26 delegation resolution, max-age,
// and an optional expected-pubkey match.
//
// On success it returns the pubkey whose authority actually backs the
// event — the delegator's pubkey when a valid, covering delegation tag is
// present, e.PubKey otherwise.
func Preflight(e *Event, now Clock, expectedPubkey string) (string, error) {
	if e.ID == "" || e.PubKey == "" || e.Sig == "" {
		return "", fmt.Errorf("%w: missing id, pubkey, or sig", ErrInvalidEvent)
	}

	if err := e.VerifySignature(); err != nil {
		return "", err
	}

	signer, err := e.ResolveSignerPubkey()
	if err != nil {
		return "", err
	}

	nowUnix := now()
	if e.CreatedAt+MaxEventAgeSeconds < nowUnix {
		return "", ErrEventTooOld
	}

	if expectedPubkey != "" && signer != expectedPubkey {
		return "", ErrUnexpectedPubkey
	}

	return signer, nil
}
