package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/models"
)

const (
	upsertResetToken = `
		INSERT INTO reset_tokens (holder_pub_key, token, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (holder_pub_key) DO UPDATE SET token = $2, created_at = $3`

	findResetTokenByToken = `
		SELECT holder_pub_key, token, created_at FROM reset_tokens WHERE token = $1`

	deleteResetTokenByToken = `DELETE FROM reset_tokens WHERE token = $1`
)

// resetTokenRepository persists [models.ResetToken] rows used by the
// admin-reset-request/claim saga.
type resetTokenRepository struct {
	db     querier
	logger *logger.Logger
}

func newResetTokenRepository(db querier, log *logger.Logger) *resetTokenRepository {
	return &resetTokenRepository{db: db, logger: log}
}

// Upsert creates or replaces the reset nonce for a holder. A holder can
// have at most one live reset token at a time.
func (r *resetTokenRepository) Upsert(ctx context.Context, rt models.ResetToken) error {
	log := logger.FromContext(ctx)

	_, err := r.db.ExecContext(ctx, upsertResetToken, rt.HolderPubKey, rt.Token, rt.CreatedAt)
	if err != nil {
		log.Err(err).Str("func", "resetTokenRepository.Upsert").Msg("failed to upsert reset token")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

func (r *resetTokenRepository) FindByToken(ctx context.Context, token string) (models.ResetToken, error) {
	log := logger.FromContext(ctx)

	var rt models.ResetToken
	err := r.db.QueryRowContext(ctx, findResetTokenByToken, token).Scan(&rt.HolderPubKey, &rt.Token, &rt.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ResetToken{}, ErrNotFound
		}
		log.Err(err).Str("func", "resetTokenRepository.FindByToken").Msg("failed to scan reset token row")
		return models.ResetToken{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return rt, nil
}

// DeleteByToken unconditionally removes the reset token. It is the first
// step of [Registry.ClaimResetToken]'s transaction, before any card
// reassignment, and is rolled back together with it if a later step of
// that transaction fails.
func (r *resetTokenRepository) DeleteByToken(ctx context.Context, token string) error {
	log := logger.FromContext(ctx)

	if _, err := r.db.ExecContext(ctx, deleteResetTokenByToken, token); err != nil {
		log.Err(err).Str("func", "resetTokenRepository.DeleteByToken").Msg("failed to delete reset token")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

// Expired reports whether a reset token created at createdAt has
// outlived ttl, as of now.
func Expired(createdAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(createdAt) > ttl
}
