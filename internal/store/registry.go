package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/internal/utils"
	"github.com/lawallet/card-server/models"
)

// Registry is the Card Registry: the single owner of every persisted
// entity in the card domain, exposing the whole-transaction operations
// the rest of the module drives card state through.
type Registry struct {
	db     *DB
	ntags  *ntagRepository
	holders *holderRepository
	merchants *merchantRepository
	cards  *cardRepository
	payments *paymentRepository
	resetTokens *resetTokenRepository
	watermarks *watermarkRepository
	designs *designRepository

	uuids  *utils.UUIDGenerator
	logger *logger.Logger
}

// NewRegistry constructs a Registry over db, wiring one repository per
// entity against the shared connection pool.
func NewRegistry(db *DB, log *logger.Logger) *Registry {
	return &Registry{
		db:          db,
		ntags:       newNTAGRepository(db, log),
		holders:     newHolderRepository(db, log),
		merchants:   newMerchantRepository(db, log),
		cards:       newCardRepository(db, log),
		payments:    newPaymentRepository(db, log),
		resetTokens: newResetTokenRepository(db, log),
		watermarks:  newWatermarkRepository(db, log),
		designs:     newDesignRepository(db, log),
		uuids:       utils.NewUUIDGenerator(),
		logger:      log,
	}
}

// withTx runs fn inside a database transaction, committing on success and
// rolling back on any error (including a panic, via the deferred
// Rollback — Rollback after Commit is a no-op on *sql.Tx).
func (reg *Registry) withTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	log := logger.FromContext(ctx)

	tx, err := reg.db.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).Str("func", "Registry.withTx").Msg("failed to begin transaction")
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Err(err).Str("func", "Registry.withTx").Msg("failed to commit transaction")
		return fmt.Errorf("%w: %w", ErrCommittingTransaction, err)
	}

	return nil
}

// randomKeyHex generates a cryptographically random 16-byte AES key,
// hex-encoded, for the per-card NTAG keys CreateNTAG mints.
func randomKeyHex() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating random key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CreateNTAG implements NTAG initialization: it mints k0/k2/k3/k4 as
// fresh random keys, sets k1 to the module-wide key, and resolves
// design by name or uuid. On a duplicate cid it returns the
// already-persisted NTAG instead of failing, matching Initialize's
// idempotent re-programming contract.
func (reg *Registry) CreateNTAG(ctx context.Context, cid string, ctr int64, moduleK1Hex string, design models.DesignRef) (models.NTAG, error) {
	resolved, err := reg.designs.Resolve(ctx, design)
	if err != nil {
		return models.NTAG{}, err
	}

	k0, err := randomKeyHex()
	if err != nil {
		return models.NTAG{}, err
	}
	k2, err := randomKeyHex()
	if err != nil {
		return models.NTAG{}, err
	}
	k3, err := randomKeyHex()
	if err != nil {
		return models.NTAG{}, err
	}
	k4, err := randomKeyHex()
	if err != nil {
		return models.NTAG{}, err
	}

	n := models.NTAG{
		Cid:        cid,
		K0:         k0,
		K1:         moduleK1Hex,
		K2:         k2,
		K3:         k3,
		K4:         k4,
		Ctr:        ctr,
		DesignUUID: resolved.UUID,
	}

	if err := reg.ntags.Create(ctx, n); err != nil {
		if err == ErrConflict {
			return reg.ntags.FindByCid(ctx, cid)
		}
		return models.NTAG{}, err
	}

	return n, nil
}

// FindNTAGByCidAndK1 resolves the NTAG the SUN Verifier needs before
// it can even compute the SV2 session vector, since k2 is per-card.
func (reg *Registry) FindNTAGByCidAndK1(ctx context.Context, cid, k1Hex string) (models.NTAG, error) {
	return reg.ntags.FindByCidAndK1(ctx, cid, k1Hex)
}

// AdvanceNTAGCounter performs the atomic counter update the SUN
// Verifier requires immediately after a successful SDMMAC check.
func (reg *Registry) AdvanceNTAGCounter(ctx context.Context, cid string, newCtr int64) error {
	return reg.ntags.AdvanceCtr(ctx, cid, newCtr)
}

// NTAGByCid looks up an NTAG by cid alone, without the k1 match
// [FindNTAGByCidAndK1] enforces. Used for metadata lookups (the Design a
// Card's backing NTAG was initialized with) rather than authentication.
func (reg *Registry) NTAGByCid(ctx context.Context, cid string) (models.NTAG, error) {
	return reg.ntags.FindByCid(ctx, cid)
}

// DesignByUUID resolves a Design by its uuid, used by the encrypted
// config channel to render a card's card-data entry.
func (reg *Registry) DesignByUUID(ctx context.Context, uuid string) (models.Design, error) {
	return reg.designs.Resolve(ctx, models.DesignRef{UUID: uuid})
}

// SetOTC binds an OTC to an NTAG cid: idempotent on a matching value,
// a conflict otherwise.
func (reg *Registry) SetOTC(ctx context.Context, cid, otc string) error {
	var result error
	err := reg.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		n, err := newNTAGRepository(tx, reg.logger).FindByCid(ctx, cid)
		if err != nil {
			return err
		}

		if n.OTC != nil {
			if *n.OTC == otc {
				return nil
			}
			return ErrConflict
		}

		existing, err := newNTAGRepository(tx, reg.logger).FindByOTC(ctx, otc)
		if err == nil && existing.Cid != cid {
			return ErrConflict
		}
		if err != nil && err != ErrNotFound {
			return err
		}

		return newNTAGRepository(tx, reg.logger).SetOTC(ctx, cid, otc)
	})
	if err != nil {
		result = err
	}
	return result
}

// FindAvailableNTAGByOTC finds an NTAG bound to otc that no card yet
// references.
func (reg *Registry) FindAvailableNTAGByOTC(ctx context.Context, otc string) (models.NTAG, error) {
	return reg.ntags.FindAvailableByOTC(ctx, otc)
}

// DeleteNTAG implements the admin DELETE /ntag424 operation.
func (reg *Registry) DeleteNTAG(ctx context.Context, cid string) error {
	return reg.ntags.Delete(ctx, cid)
}

// UpsertHolder creates the holder with the given delegation and default
// trusted merchants if absent, otherwise adds the delegation if new and
// grows the merchant set.
func (reg *Registry) UpsertHolder(ctx context.Context, pubKey string, delegation models.Delegation, defaultMerchants []string) error {
	return reg.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		holders := newHolderRepository(tx, reg.logger)

		if err := holders.EnsureExists(ctx, pubKey); err != nil {
			return err
		}
		if err := holders.AddDelegation(ctx, delegation); err != nil {
			return err
		}

		merchants := make([]models.TrustedMerchant, len(defaultMerchants))
		for i, m := range defaultMerchants {
			merchants[i] = models.TrustedMerchant{HolderPubKey: pubKey, MerchantPubKey: m}
		}
		return holders.AddTrustedMerchants(ctx, merchants)
	})
}

// HolderDelegations returns every delegation a holder has ever presented.
func (reg *Registry) HolderDelegations(ctx context.Context, pubKey string) ([]models.Delegation, error) {
	return reg.holders.Delegations(ctx, pubKey)
}

// LatestHolderDelegation returns a holder's furthest-future delegation,
// used by the Withdrawal Dispatcher to attach a still-valid delegation
// tag to the outbound transfer event.
func (reg *Registry) LatestHolderDelegation(ctx context.Context, pubKey string) (models.Delegation, error) {
	return reg.holders.LatestDelegation(ctx, pubKey)
}

// CreateCard runs a single transaction that creates the Card row bound
// to ntagCid/holderPubKey under design, enabled, with defaultLimits
// attached.
func (reg *Registry) CreateCard(ctx context.Context, ntagCid, holderPubKey, designName, designDescription string, defaultLimits []models.Limit) (models.Card, error) {
	var card models.Card

	err := reg.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		cards := newCardRepository(tx, reg.logger)

		holder := holderPubKey
		card = models.Card{
			UUID:         reg.uuids.Generate(),
			Name:         designName,
			Description:  designDescription,
			Enabled:      true,
			NTAG424Cid:   ntagCid,
			HolderPubKey: &holder,
		}

		if err := cards.Create(ctx, card); err != nil {
			return err
		}

		limits := make([]models.Limit, len(defaultLimits))
		for i, l := range defaultLimits {
			l.UUID = reg.uuids.Generate()
			l.CardUUID = card.UUID
			limits[i] = l
		}
		if err := cards.AddLimits(ctx, limits); err != nil {
			return err
		}

		card.Limits = limits
		return nil
	})
	if err != nil {
		return models.Card{}, err
	}

	return card, nil
}

// CardByUUID loads a card with its Limits populated.
func (reg *Registry) CardByUUID(ctx context.Context, uuid string) (models.Card, error) {
	card, err := reg.cards.FindByUUID(ctx, uuid)
	if err != nil {
		return models.Card{}, err
	}

	limits, err := reg.cards.Limits(ctx, uuid)
	if err != nil {
		return models.Card{}, err
	}
	card.Limits = limits

	return card, nil
}

// CardByNTAGCid loads the card backed by the given NTAG, with its Limits
// populated.
func (reg *Registry) CardByNTAGCid(ctx context.Context, cid string) (models.Card, error) {
	card, err := reg.cards.FindByNTAGCid(ctx, cid)
	if err != nil {
		return models.Card{}, err
	}

	limits, err := reg.cards.Limits(ctx, card.UUID)
	if err != nil {
		return models.Card{}, err
	}
	card.Limits = limits

	return card, nil
}

// CardsByHolder loads every card owned by holderPubKey, each with its
// Limits populated.
func (reg *Registry) CardsByHolder(ctx context.Context, holderPubKey string) ([]models.Card, error) {
	cards, err := reg.cards.FindByHolder(ctx, holderPubKey)
	if err != nil {
		return nil, err
	}

	for i := range cards {
		limits, err := reg.cards.Limits(ctx, cards[i].UUID)
		if err != nil {
			return nil, err
		}
		cards[i].Limits = limits
	}

	return cards, nil
}

// TransferCard reassigns card uuid from fromPubKey to toPubKey.
func (reg *Registry) TransferCard(ctx context.Context, uuid, fromPubKey, toPubKey string) error {
	return reg.cards.TransferTo(ctx, uuid, fromPubKey, toPubKey)
}

// SumPaymentsInWindow computes Σ{payment.amount} for the Limit Engine's
// remaining() aggregation.
func (reg *Registry) SumPaymentsInWindow(ctx context.Context, cardUUID, token string, since, until time.Time) (int64, error) {
	return reg.payments.SumInWindow(ctx, cardUUID, token, since, until)
}

// IssuePaymentRequest inserts a PaymentRequest and returns its
// suuid-encoded k1.
func (reg *Registry) IssuePaymentRequest(ctx context.Context, cardUUID string, response []byte, now time.Time) (string, error) {
	uuidStr := reg.uuids.Generate()

	pr := models.PaymentRequest{
		UUID:      uuidStr,
		CardUUID:  cardUUID,
		Response:  response,
		CreatedAt: now,
	}

	if err := reg.payments.CreatePaymentRequest(ctx, pr); err != nil {
		return "", err
	}

	return utils.UUID2SUUID(uuidStr)
}

// ConsumePaymentRequestAndPay consumes a PaymentRequest and inserts its
// resulting Payment(s) inside the same transaction: it decodes k1,
// checks expiry/consumption, and — only if
// validate returns no error — inserts the Payment(s) validate returns,
// marking the request consumed. A second call with the same k1 observes
// the Payment row from the first and returns [ErrPaymentRequestAlreadyUsed].
func (reg *Registry) ConsumePaymentRequestAndPay(
	ctx context.Context,
	k1 string,
	expirySeconds int,
	now time.Time,
	validate func(ctx context.Context, pr models.PaymentRequest) ([]models.Payment, error),
) (models.PaymentRequest, []models.Payment, error) {
	uuidStr, err := utils.SUUID2UUID(k1)
	if err != nil {
		return models.PaymentRequest{}, nil, ErrNotFound
	}

	var pr models.PaymentRequest
	var payments []models.Payment

	err = reg.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		payRepo := newPaymentRepository(tx, reg.logger)

		found, err := payRepo.FindPaymentRequest(ctx, uuidStr)
		if err != nil {
			return err
		}
		pr = found

		if now.Sub(pr.CreatedAt) > time.Duration(expirySeconds)*time.Second {
			return ErrPaymentRequestExpired
		}
		if pr.Consumed {
			return ErrPaymentRequestAlreadyUsed
		}

		payments, err = validate(ctx, pr)
		if err != nil {
			return err
		}

		for _, p := range payments {
			p.PaymentRequestUUID = pr.UUID
			if p.UUID == "" {
				p.UUID = reg.uuids.Generate()
			}
			if err := payRepo.CreatePayment(ctx, p); err != nil {
				if err == ErrConflict {
					return ErrPaymentRequestAlreadyUsed
				}
				return err
			}
		}

		return nil
	})
	if err != nil {
		return models.PaymentRequest{}, nil, err
	}

	return pr, payments, nil
}

// UpsertResetToken creates or replaces a holder's live reset nonce.
func (reg *Registry) UpsertResetToken(ctx context.Context, rt models.ResetToken) error {
	return reg.resetTokens.Upsert(ctx, rt)
}

// ResetTokenByToken looks up a live reset token by its nonce.
func (reg *Registry) ResetTokenByToken(ctx context.Context, token string) (models.ResetToken, error) {
	return reg.resetTokens.FindByToken(ctx, token)
}

// ClaimResetToken performs the admin-reset-claim's point of no return
// plus the mandatory reassignment step: it deletes the reset token
// unconditionally, then clones the old holder's TrustedMerchants under the
// new holder with the new delegation and reassigns every card. All in one
// transaction; the three best-effort side effects (funds transfer,
// identity-transfer-ok, identity provider call) are the caller's
// responsibility, run after this returns, and never roll this back.
func (reg *Registry) ClaimResetToken(ctx context.Context, token string, oldHolderPubKey, newHolderPubKey string, newDelegation models.Delegation) error {
	return reg.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		resetTokens := newResetTokenRepository(tx, reg.logger)
		holders := newHolderRepository(tx, reg.logger)
		cards := newCardRepository(tx, reg.logger)

		if err := resetTokens.DeleteByToken(ctx, token); err != nil {
			return err
		}

		if err := holders.EnsureExists(ctx, newHolderPubKey); err != nil {
			return err
		}
		if err := holders.AddDelegation(ctx, newDelegation); err != nil {
			return err
		}

		oldMerchants, err := holders.TrustedMerchants(ctx, oldHolderPubKey)
		if err != nil {
			return err
		}
		clonedMerchants := make([]models.TrustedMerchant, len(oldMerchants))
		for i, m := range oldMerchants {
			clonedMerchants[i] = models.TrustedMerchant{HolderPubKey: newHolderPubKey, MerchantPubKey: m.MerchantPubKey}
		}
		if err := holders.AddTrustedMerchants(ctx, clonedMerchants); err != nil {
			return err
		}

		return cards.ReassignAllFromHolder(ctx, oldHolderPubKey, newHolderPubKey)
	})
}

// ApplyConfig applies a holder-published card-config-change document in
// a single transaction: replaces the holder's TrustedMerchants (dropping
// unknown
// merchants) and, for each card the holder actually owns, replaces its
// Limits and updates whichever of name/description/status are present.
// Cards in cfg not owned by holderPubKey are silently skipped.
func (reg *Registry) ApplyConfig(ctx context.Context, holderPubKey string, cfg models.CardConfigDocument) error {
	return reg.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		holders := newHolderRepository(tx, reg.logger)
		cards := newCardRepository(tx, reg.logger)

		merchantPubkeys := make([]string, 0, len(cfg.TrustedMerchants))
		for _, m := range cfg.TrustedMerchants {
			merchantPubkeys = append(merchantPubkeys, m.PubKey)
		}
		if err := holders.ReplaceTrustedMerchants(ctx, holderPubKey, merchantPubkeys); err != nil {
			return err
		}

		for cardUUID, cardCfg := range cfg.Cards {
			card, err := cards.FindByUUID(ctx, cardUUID)
			if err != nil {
				if err == ErrNotFound {
					continue
				}
				return err
			}
			if card.HolderPubKey == nil || *card.HolderPubKey != holderPubKey {
				continue
			}

			name, description, enabled := card.Name, card.Description, card.Enabled
			if cardCfg.Name != nil {
				name = *cardCfg.Name
			}
			if cardCfg.Description != nil {
				description = *cardCfg.Description
			}
			if cardCfg.Status != nil {
				enabled = *cardCfg.Status == models.CardStatusEnabled
			}
			if err := cards.UpdateFields(ctx, cardUUID, name, description, enabled); err != nil {
				return err
			}

			limits := make([]models.Limit, 0, len(cardCfg.Limits))
			for _, lc := range cardCfg.Limits {
				limits = append(limits, models.Limit{
					UUID:        reg.uuids.Generate(),
					CardUUID:    cardUUID,
					Name:        lc.Name,
					Description: lc.Description,
					Token:       lc.Token,
					Amount:      lc.Amount,
					Delta:       lc.Delta,
				})
			}
			if err := cards.ReplaceLimits(ctx, cardUUID, limits); err != nil {
				return err
			}
		}

		return nil
	})
}

// HolderTrustedMerchants returns a holder's currently declared merchants.
func (reg *Registry) HolderTrustedMerchants(ctx context.Context, pubKey string) ([]models.TrustedMerchant, error) {
	return reg.holders.TrustedMerchants(ctx, pubKey)
}

// SeedMerchants registers the DEFAULT_TRUSTED_MERCHANTS configuration
// value as known merchants at startup.
func (reg *Registry) SeedMerchants(ctx context.Context, pubKeys []string) error {
	return reg.merchants.Seed(ctx, pubKeys)
}

// Watermark returns a subscription's persisted high-watermark.
func (reg *Registry) Watermark(ctx context.Context, subscription string) (int64, error) {
	return reg.watermarks.Get(ctx, subscription)
}

// AdvanceWatermark persists a subscription's high-watermark.
func (reg *Registry) AdvanceWatermark(ctx context.Context, subscription string, createdAt int64) error {
	return reg.watermarks.Advance(ctx, subscription, createdAt)
}
