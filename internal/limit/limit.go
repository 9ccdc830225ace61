// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package limit implements the Limit Engine: computing the remaining
// per-token spending allowance of a card over its configured sliding
// windows.
package limit

import (
	"context"
	"time"

	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/models"
)

// PaymentSummer is the subset of the Registry the Limit Engine needs: the
// sliding-window aggregation over a card's confirmed Payments. Declared
// here (rather than depending on the store package directly) so the Limit
// Engine can be tested against a fake without pulling in a database.
type PaymentSummer interface {
	SumPaymentsInWindow(ctx context.Context, cardUUID, token string, since, until time.Time) (int64, error)
}

// Engine computes remaining spending allowance per token.
type Engine struct {
	payments PaymentSummer
	logger   *logger.Logger
	now      func() time.Time
}

// New constructs an Engine over payments, the source of truth for
// confirmed Payment amounts.
func New(payments PaymentSummer, log *logger.Logger) *Engine {
	return &Engine{payments: payments, logger: log, now: time.Now}
}

// Remaining computes, for each requested token, the minimum over every
// Limit on card in that token of (limit.amount - payments within its
// window), floored at zero. Tokens whose minimum is zero are omitted from
// the result: an exhausted token is absent rather than mapped to 0.
func (e *Engine) Remaining(ctx context.Context, card models.Card, tokens []string) (map[string]int64, error) {
	log := logger.FromContext(ctx)

	if len(tokens) == 0 {
		tokens = []string{"BTC"}
	}

	wanted := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		wanted[t] = true
	}

	now := e.now()
	mins := make(map[string]int64)
	seen := make(map[string]bool)

	for _, l := range card.Limits {
		if !wanted[l.Token] {
			continue
		}

		since := now.Add(-time.Duration(l.Delta) * time.Second)
		spent, err := e.payments.SumPaymentsInWindow(ctx, card.UUID, l.Token, since, now)
		if err != nil {
			log.Err(err).Str("func", "Engine.Remaining").Str("card_uuid", card.UUID).Str("token", l.Token).Msg("failed to sum payments in window")
			return nil, err
		}

		remaining := l.Amount - spent
		if remaining < 0 {
			remaining = 0
		}

		if !seen[l.Token] || remaining < mins[l.Token] {
			mins[l.Token] = remaining
		}
		seen[l.Token] = true
	}

	out := make(map[string]int64, len(mins))
	for token, amount := range mins {
		if amount > 0 {
			out[token] = amount
		}
	}

	return out, nil
}
