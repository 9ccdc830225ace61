// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package tap composes the SUN Verifier (internal/suncrypto) with the Card
// Registry's NTAG lookup and counter advance into a single two-pass
// operation: cid can only be decoded with the module-wide k1, but the
// SDMMAC check that follows needs the per-card k2 the Registry alone
// knows, keyed by that cid.
package tap

import (
	"context"
	"errors"

	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/internal/store"
	"github.com/lawallet/card-server/internal/suncrypto"
	"github.com/lawallet/card-server/models"
)

// Registry is the subset of the store.Registry the Verifier needs.
type Registry interface {
	FindNTAGByCidAndK1(ctx context.Context, cid, k1Hex string) (models.NTAG, error)
	AdvanceNTAGCounter(ctx context.Context, cid string, newCtr int64) error
}

// Verifier runs the full tap-authentication sequence against the
// module-wide k1 and the Registry.
type Verifier struct {
	registry    Registry
	moduleK1Hex string
	logger      *logger.Logger
}

// New constructs a Verifier bound to the module-wide PICC decryption key.
func New(registry Registry, moduleK1Hex string, log *logger.Logger) *Verifier {
	return &Verifier{registry: registry, moduleK1Hex: moduleK1Hex, logger: log}
}

// Verify decodes cid from p, resolves the NTAG (and its k2/prior ctr) from
// the Registry, recomputes and checks the SDMMAC, then atomically advances
// the counter. It never reports which of (cid, counter, cmac) failed:
// every verification failure collapses to the single generic
// [ErrVerification]; other Registry errors are returned as they are.
func (v *Verifier) Verify(ctx context.Context, p, c string) (models.NTAG, error) {
	log := logger.FromContext(ctx)

	cid, err := suncrypto.DecodeCid(p, v.moduleK1Hex)
	if err != nil {
		log.Debug().Err(err).Str("func", "Verifier.Verify").Msg("failed to decode cid from p")
		return models.NTAG{}, ErrVerification
	}

	ntag, err := v.registry.FindNTAGByCidAndK1(ctx, cid, v.moduleK1Hex)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.NTAG{}, ErrVerification
		}
		return models.NTAG{}, err
	}

	result, err := suncrypto.Verify(p, c, v.moduleK1Hex, ntag.K2, ntag.Ctr)
	if err != nil {
		log.Debug().Err(err).Str("func", "Verifier.Verify").Str("cid", cid).Msg("sun verification failed")
		return models.NTAG{}, ErrVerification
	}

	if err := v.registry.AdvanceNTAGCounter(ctx, ntag.Cid, result.NewCtr); err != nil {
		if errors.Is(err, store.ErrCounterNotAdvancing) {
			return models.NTAG{}, ErrVerification
		}
		return models.NTAG{}, err
	}

	ntag.Ctr = result.NewCtr
	return ntag, nil
}
