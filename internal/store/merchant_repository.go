package store

import (
	"context"
	"fmt"

	"github.com/lawallet/card-server/internal/logger"
)

// merchantRepository persists the standalone merchant registry inbound
// trusted-merchant declarations are checked against.
type merchantRepository struct {
	db     querier
	logger *logger.Logger
}

func newMerchantRepository(db querier, log *logger.Logger) *merchantRepository {
	return &merchantRepository{db: db, logger: log}
}

// Seed idempotently registers every pubkey in pubKeys as a known merchant.
// Called at startup with the DEFAULT_TRUSTED_MERCHANTS configuration value.
func (r *merchantRepository) Seed(ctx context.Context, pubKeys []string) error {
	log := logger.FromContext(ctx)

	for _, pub := range pubKeys {
		if _, err := r.db.ExecContext(ctx, insertMerchant, pub); err != nil {
			log.Err(err).Str("func", "merchantRepository.Seed").Str("merchant_pub", pub).Msg("failed to seed merchant")
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}
	}

	return nil
}
