package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lawallet/card-server/internal/logger"
)

const (
	upsertWatermark = `
		INSERT INTO last_handled_high_watermarks (subscription_name, last_created_at)
		VALUES ($1, $2)
		ON CONFLICT (subscription_name) DO UPDATE SET last_created_at = $2`

	findWatermark = `SELECT last_created_at FROM last_handled_high_watermarks WHERE subscription_name = $1`
)

// watermarkRepository persists the per-subscription high-watermark the
// Inbound Subscription Loop resumes replay from across restarts.
type watermarkRepository struct {
	db     querier
	logger *logger.Logger
}

func newWatermarkRepository(db querier, log *logger.Logger) *watermarkRepository {
	return &watermarkRepository{db: db, logger: log}
}

// Get returns the persisted watermark for subscription, or 0 if none has
// ever been recorded.
func (r *watermarkRepository) Get(ctx context.Context, subscription string) (int64, error) {
	log := logger.FromContext(ctx)

	var ts int64
	err := r.db.QueryRowContext(ctx, findWatermark, subscription).Scan(&ts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		log.Err(err).Str("func", "watermarkRepository.Get").Msg("failed to scan watermark row")
		return 0, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return ts, nil
}

// Advance persists max(prev, createdAt) for subscription.
func (r *watermarkRepository) Advance(ctx context.Context, subscription string, createdAt int64) error {
	log := logger.FromContext(ctx)

	current, err := r.Get(ctx, subscription)
	if err != nil {
		return err
	}
	if createdAt <= current {
		return nil
	}

	if _, err := r.db.ExecContext(ctx, upsertWatermark, subscription, createdAt); err != nil {
		log.Err(err).Str("func", "watermarkRepository.Advance").Msg("failed to advance watermark")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}
