package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/models"
)

const (
	insertHolder        = `INSERT INTO holders (pub_key) VALUES ($1) ON CONFLICT DO NOTHING`
	findHolderByPubKey  = `SELECT pub_key FROM holders WHERE pub_key = $1`

	insertDelegation = `
		INSERT INTO delegations (holder_pub_key, delegator_pub_key, conditions, delegation_token, since, until)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (holder_pub_key, delegation_token) DO NOTHING`

	findDelegationsByHolder = `
		SELECT holder_pub_key, delegator_pub_key, conditions, delegation_token, since, until
		FROM delegations WHERE holder_pub_key = $1
		ORDER BY created_at DESC`

	findLatestDelegationByHolder = `
		SELECT holder_pub_key, delegator_pub_key, conditions, delegation_token, since, until
		FROM delegations WHERE holder_pub_key = $1
		ORDER BY until DESC LIMIT 1`

	findTrustedMerchantsByHolder = `
		SELECT holder_pub_key, merchant_pub_key FROM trusted_merchants WHERE holder_pub_key = $1`

	deleteTrustedMerchantsByHolder = `DELETE FROM trusted_merchants WHERE holder_pub_key = $1`

	// findKnownMerchants filters a candidate pubkey list down to those
	// present in the standalone merchant registry: inbound config apply
	// only accepts pubkeys that already exist in that registry. It is
	// seeded from DEFAULT_TRUSTED_MERCHANTS at startup (see
	// [Registry.SeedMerchants]) and kept independent of any single
	// holder's declared trust — the registry is the authority a holder's
	// declaration is checked against, not something a declaration can
	// grow on its own.
	findKnownMerchants = `SELECT pub_key FROM merchants WHERE pub_key = ANY($1)`

	insertMerchant = `INSERT INTO merchants (pub_key) VALUES ($1) ON CONFLICT DO NOTHING`
)

// holderRepository persists [models.Holder], its [models.Delegation]s, and
// its [models.TrustedMerchant] set.
type holderRepository struct {
	db     querier
	logger *logger.Logger
}

func newHolderRepository(db querier, log *logger.Logger) *holderRepository {
	return &holderRepository{db: db, logger: log}
}

// EnsureExists inserts a Holder row for pubKey if one does not already
// exist. Idempotent.
func (r *holderRepository) EnsureExists(ctx context.Context, pubKey string) error {
	log := logger.FromContext(ctx)

	if _, err := r.db.ExecContext(ctx, insertHolder, pubKey); err != nil {
		log.Err(err).Str("func", "holderRepository.EnsureExists").Str("holder_pub", pubKey).Msg("failed to insert holder")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

func (r *holderRepository) Exists(ctx context.Context, pubKey string) (bool, error) {
	log := logger.FromContext(ctx)

	var found string
	err := r.db.QueryRowContext(ctx, findHolderByPubKey, pubKey).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		log.Err(err).Str("func", "holderRepository.Exists").Msg("failed to query holder")
		return false, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return true, nil
}

func (r *holderRepository) AddDelegation(ctx context.Context, d models.Delegation) error {
	log := logger.FromContext(ctx)

	_, err := r.db.ExecContext(ctx, insertDelegation,
		d.HolderPubKey, d.DelegatorPubKey, d.Conditions, d.DelegationToken, d.Since, d.Until)
	if err != nil {
		log.Err(err).Str("func", "holderRepository.AddDelegation").Str("holder_pub", d.HolderPubKey).Msg("failed to insert delegation")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

func (r *holderRepository) Delegations(ctx context.Context, pubKey string) ([]models.Delegation, error) {
	return r.scanDelegations(ctx, findDelegationsByHolder, pubKey)
}

// LatestDelegation returns the delegation with the furthest-future `until`
// for pubKey, used by the Withdrawal Dispatcher to attach a still-valid
// delegation tag to an outbound transfer event.
func (r *holderRepository) LatestDelegation(ctx context.Context, pubKey string) (models.Delegation, error) {
	rows, err := r.scanDelegations(ctx, findLatestDelegationByHolder, pubKey)
	if err != nil {
		return models.Delegation{}, err
	}
	if len(rows) == 0 {
		return models.Delegation{}, ErrNotFound
	}
	return rows[0], nil
}

func (r *holderRepository) scanDelegations(ctx context.Context, query, pubKey string) ([]models.Delegation, error) {
	log := logger.FromContext(ctx)

	rows, err := r.db.QueryContext(ctx, query, pubKey)
	if err != nil {
		log.Err(err).Str("func", "holderRepository.scanDelegations").Msg("failed to query delegations")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var out []models.Delegation
	for rows.Next() {
		var d models.Delegation
		if err := rows.Scan(&d.HolderPubKey, &d.DelegatorPubKey, &d.Conditions, &d.DelegationToken, &d.Since, &d.Until); err != nil {
			log.Err(err).Str("func", "holderRepository.scanDelegations").Msg("failed to scan delegation row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return out, nil
}

// AddTrustedMerchants bulk-inserts merchants as a single multi-row
// INSERT ON CONFLICT DO NOTHING. The row count varies with
// len(merchants), so the statement is built with squirrel rather than a
// fixed placeholder string. A nil/empty slice is a no-op.
func (r *holderRepository) AddTrustedMerchants(ctx context.Context, merchants []models.TrustedMerchant) error {
	if len(merchants) == 0 {
		return nil
	}
	log := logger.FromContext(ctx)

	builder := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Insert("trusted_merchants").
		Columns("holder_pub_key", "merchant_pub_key").
		Suffix("ON CONFLICT DO NOTHING")
	for _, m := range merchants {
		builder = builder.Values(m.HolderPubKey, m.MerchantPubKey)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("building bulk trusted-merchant insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).Str("func", "holderRepository.AddTrustedMerchants").Str("holder_pub", merchants[0].HolderPubKey).Msg("failed to insert trusted merchants")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

func (r *holderRepository) TrustedMerchants(ctx context.Context, pubKey string) ([]models.TrustedMerchant, error) {
	log := logger.FromContext(ctx)

	rows, err := r.db.QueryContext(ctx, findTrustedMerchantsByHolder, pubKey)
	if err != nil {
		log.Err(err).Str("func", "holderRepository.TrustedMerchants").Msg("failed to query trusted merchants")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var out []models.TrustedMerchant
	for rows.Next() {
		var m models.TrustedMerchant
		if err := rows.Scan(&m.HolderPubKey, &m.MerchantPubKey); err != nil {
			log.Err(err).Str("func", "holderRepository.TrustedMerchants").Msg("failed to scan trusted merchant row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return out, nil
}

// ReplaceTrustedMerchants deletes pubKey's current merchant set and inserts
// candidates, keeping only the ones already known to the registry
// ("unknown merchants are silently dropped").
func (r *holderRepository) ReplaceTrustedMerchants(ctx context.Context, pubKey string, candidates []string) error {
	log := logger.FromContext(ctx)

	if _, err := r.db.ExecContext(ctx, deleteTrustedMerchantsByHolder, pubKey); err != nil {
		log.Err(err).Str("func", "holderRepository.ReplaceTrustedMerchants").Msg("failed to clear trusted merchants")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	if len(candidates) == 0 {
		return nil
	}

	known, err := r.knownMerchants(ctx, candidates)
	if err != nil {
		return err
	}

	accepted := make([]models.TrustedMerchant, 0, len(candidates))
	for _, pub := range candidates {
		if known[pub] {
			accepted = append(accepted, models.TrustedMerchant{HolderPubKey: pubKey, MerchantPubKey: pub})
		}
	}

	return r.AddTrustedMerchants(ctx, accepted)
}

func (r *holderRepository) knownMerchants(ctx context.Context, candidates []string) (map[string]bool, error) {
	log := logger.FromContext(ctx)

	rows, err := r.db.QueryContext(ctx, findKnownMerchants, candidates)
	if err != nil {
		log.Err(err).Str("func", "holderRepository.knownMerchants").Msg("failed to query known merchants")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	out := make(map[string]bool, len(candidates))
	for rows.Next() {
		var pub string
		if err := rows.Scan(&pub); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		out[pub] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return out, nil
}
