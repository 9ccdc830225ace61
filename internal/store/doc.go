// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package store implements the Card Registry: the transactional
// PostgreSQL-backed persistence layer for every entity in the card
// domain (Design, NTAG, Holder, Delegation, TrustedMerchant, Card,
// Limit, Payment, PaymentRequest, ResetToken, LastHandledHighWatermark).
//
// Each entity gets a narrow repository interface; the [Registry] composes
// them behind the transactional operations the rest of the module calls
// (createNTAG, setOTC, createCard, transferCard, applyConfig, payment
// request issue/consume, admin-reset-claim), keeping each repository
// behind whole-transaction methods rather than exposing raw queries.
package store
