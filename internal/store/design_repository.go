package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/models"
)

const (
	insertDesign = `INSERT INTO designs (uuid, name, description) VALUES ($1, $2, $3)`

	findDesignByUUID = `SELECT uuid, name, description FROM designs WHERE uuid = $1`
	findDesignByName = `SELECT uuid, name, description FROM designs WHERE name = $1`
)

// designRepository persists [models.Design] rows.
type designRepository struct {
	db     querier
	logger *logger.Logger
}

func newDesignRepository(db querier, log *logger.Logger) *designRepository {
	return &designRepository{db: db, logger: log}
}

func (r *designRepository) Create(ctx context.Context, design models.Design) error {
	log := logger.FromContext(ctx)

	_, err := r.db.ExecContext(ctx, insertDesign, design.UUID, design.Name, design.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		log.Err(err).Str("func", "designRepository.Create").Msg("failed to insert design")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

// Resolve looks up a Design by uuid (preferred) or, failing that, by name.
// Exactly one of ref.UUID / ref.Name is expected to be set.
func (r *designRepository) Resolve(ctx context.Context, ref models.DesignRef) (models.Design, error) {
	log := logger.FromContext(ctx)

	var row *sql.Row
	if ref.UUID != "" {
		row = r.db.QueryRowContext(ctx, findDesignByUUID, ref.UUID)
	} else {
		row = r.db.QueryRowContext(ctx, findDesignByName, ref.Name)
	}

	var d models.Design
	if err := row.Scan(&d.UUID, &d.Name, &d.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Design{}, ErrDesignNotFound
		}
		log.Err(err).Str("func", "designRepository.Resolve").Msg("failed to scan design row")
		return models.Design{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return d, nil
}
