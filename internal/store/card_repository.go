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
	insertCard = `
		INSERT INTO cards (uuid, name, description, enabled, ntag424_cid, holder_pub_key)
		VALUES ($1, $2, $3, $4, $5, $6)`

	findCardByUUID = `
		SELECT uuid, name, description, enabled, ntag424_cid, holder_pub_key
		FROM cards WHERE uuid = $1`

	findCardByUUIDAndHolder = `
		SELECT uuid, name, description, enabled, ntag424_cid, holder_pub_key
		FROM cards WHERE uuid = $1 AND holder_pub_key = $2`

	findCardByNTAGCid = `
		SELECT uuid, name, description, enabled, ntag424_cid, holder_pub_key
		FROM cards WHERE ntag424_cid = $1`

	findCardsByHolder = `
		SELECT uuid, name, description, enabled, ntag424_cid, holder_pub_key
		FROM cards WHERE holder_pub_key = $1`

	updateCardHolder = `UPDATE cards SET enabled = $3, holder_pub_key = $2 WHERE uuid = $1 AND holder_pub_key = $4`

	updateCardFields = `UPDATE cards SET name = $2, description = $3, enabled = $4 WHERE uuid = $1`

	reassignCardsFromHolder = `UPDATE cards SET holder_pub_key = $2 WHERE holder_pub_key = $1`

	findLimitsByCard = `
		SELECT uuid, card_uuid, name, description, token, amount, delta
		FROM limits WHERE card_uuid = $1`

	deleteLimitsByCard = `DELETE FROM limits WHERE card_uuid = $1`
)

// cardRepository persists [models.Card] and its owned [models.Limit]s.
type cardRepository struct {
	db     querier
	logger *logger.Logger
}

func newCardRepository(db querier, log *logger.Logger) *cardRepository {
	return &cardRepository{db: db, logger: log}
}

func (r *cardRepository) Create(ctx context.Context, c models.Card) error {
	log := logger.FromContext(ctx)

	_, err := r.db.ExecContext(ctx, insertCard, c.UUID, c.Name, c.Description, c.Enabled, c.NTAG424Cid, c.HolderPubKey)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		log.Err(err).Str("func", "cardRepository.Create").Str("card_uuid", c.UUID).Msg("failed to insert card")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

func (r *cardRepository) FindByUUID(ctx context.Context, uuid string) (models.Card, error) {
	return r.scanOne(ctx, r.db.QueryRowContext(ctx, findCardByUUID, uuid))
}

func (r *cardRepository) FindByUUIDAndHolder(ctx context.Context, uuid, holderPubKey string) (models.Card, error) {
	return r.scanOne(ctx, r.db.QueryRowContext(ctx, findCardByUUIDAndHolder, uuid, holderPubKey))
}

func (r *cardRepository) FindByNTAGCid(ctx context.Context, cid string) (models.Card, error) {
	return r.scanOne(ctx, r.db.QueryRowContext(ctx, findCardByNTAGCid, cid))
}

func (r *cardRepository) FindByHolder(ctx context.Context, holderPubKey string) ([]models.Card, error) {
	log := logger.FromContext(ctx)

	rows, err := r.db.QueryContext(ctx, findCardsByHolder, holderPubKey)
	if err != nil {
		log.Err(err).Str("func", "cardRepository.FindByHolder").Msg("failed to query cards")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var out []models.Card
	for rows.Next() {
		c, err := scanCardRow(rows)
		if err != nil {
			log.Err(err).Str("func", "cardRepository.FindByHolder").Msg("failed to scan card row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return out, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCardRow(row rowScanner) (models.Card, error) {
	var c models.Card
	var holderPubKey sql.NullString
	if err := row.Scan(&c.UUID, &c.Name, &c.Description, &c.Enabled, &c.NTAG424Cid, &holderPubKey); err != nil {
		return models.Card{}, err
	}
	if holderPubKey.Valid {
		c.HolderPubKey = &holderPubKey.String
	}
	return c, nil
}

func (r *cardRepository) scanOne(ctx context.Context, row *sql.Row) (models.Card, error) {
	log := logger.FromContext(ctx)

	c, err := scanCardRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Card{}, ErrNotFound
		}
		log.Err(err).Str("func", "cardRepository.scanOne").Msg("failed to scan card row")
		return models.Card{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return c, nil
}

// TransferTo reassigns the card uuid from fromPubKey to toPubKey,
// disabling it in the same statement. Fails [ErrNotFound] if (uuid,
// fromPubKey) does not match any row.
func (r *cardRepository) TransferTo(ctx context.Context, uuid, fromPubKey, toPubKey string) error {
	log := logger.FromContext(ctx)

	res, err := r.db.ExecContext(ctx, updateCardHolder, uuid, toPubKey, false, fromPubKey)
	if err != nil {
		log.Err(err).Str("func", "cardRepository.TransferTo").Str("card_uuid", uuid).Msg("failed to transfer card")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// ReassignAllFromHolder moves every card owned by fromPubKey to toPubKey,
// used by admin-reset-claim.
func (r *cardRepository) ReassignAllFromHolder(ctx context.Context, fromPubKey, toPubKey string) error {
	log := logger.FromContext(ctx)

	if _, err := r.db.ExecContext(ctx, reassignCardsFromHolder, fromPubKey, toPubKey); err != nil {
		log.Err(err).Str("func", "cardRepository.ReassignAllFromHolder").Msg("failed to reassign cards")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

// UpdateFields applies a partial update to a card's editable fields
// (inbound apply).
func (r *cardRepository) UpdateFields(ctx context.Context, uuid, name, description string, enabled bool) error {
	log := logger.FromContext(ctx)

	res, err := r.db.ExecContext(ctx, updateCardFields, uuid, name, description, enabled)
	if err != nil {
		log.Err(err).Str("func", "cardRepository.UpdateFields").Str("card_uuid", uuid).Msg("failed to update card fields")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// AddLimits bulk-inserts limits as a single multi-row INSERT. The row
// count varies with len(limits), so the statement is built with squirrel
// rather than a fixed placeholder string. A nil/empty slice is a no-op.
func (r *cardRepository) AddLimits(ctx context.Context, limits []models.Limit) error {
	if len(limits) == 0 {
		return nil
	}
	log := logger.FromContext(ctx)

	builder := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Insert("limits").
		Columns("uuid", "card_uuid", "name", "description", "token", "amount", "delta")
	for _, l := range limits {
		builder = builder.Values(l.UUID, l.CardUUID, l.Name, l.Description, l.Token, l.Amount, l.Delta)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("building bulk limit insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).Str("func", "cardRepository.AddLimits").Str("card_uuid", limits[0].CardUUID).Msg("failed to insert limits")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

func (r *cardRepository) Limits(ctx context.Context, cardUUID string) ([]models.Limit, error) {
	log := logger.FromContext(ctx)

	rows, err := r.db.QueryContext(ctx, findLimitsByCard, cardUUID)
	if err != nil {
		log.Err(err).Str("func", "cardRepository.Limits").Msg("failed to query limits")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var out []models.Limit
	for rows.Next() {
		var l models.Limit
		if err := rows.Scan(&l.UUID, &l.CardUUID, &l.Name, &l.Description, &l.Token, &l.Amount, &l.Delta); err != nil {
			log.Err(err).Str("func", "cardRepository.Limits").Msg("failed to scan limit row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return out, nil
}

// ReplaceLimits deletes cardUUID's current Limits and inserts the given
// set, used by config-channel inbound apply.
func (r *cardRepository) ReplaceLimits(ctx context.Context, cardUUID string, limits []models.Limit) error {
	log := logger.FromContext(ctx)

	if _, err := r.db.ExecContext(ctx, deleteLimitsByCard, cardUUID); err != nil {
		log.Err(err).Str("func", "cardRepository.ReplaceLimits").Msg("failed to clear limits")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	for i := range limits {
		limits[i].CardUUID = cardUUID
	}

	return r.AddLimits(ctx, limits)
}
