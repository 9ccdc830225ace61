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
	insertNTAG = `
		INSERT INTO ntags (cid, k0, k1, k2, k3, k4, ctr, design_uuid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	findNTAGByCidAndK1 = `
		SELECT cid, k0, k1, k2, k3, k4, ctr, otc, design_uuid
		FROM ntags WHERE cid = $1 AND k1 = $2`

	findNTAGByCid = `
		SELECT cid, k0, k1, k2, k3, k4, ctr, otc, design_uuid
		FROM ntags WHERE cid = $1`

	findNTAGByOTC = `
		SELECT cid, k0, k1, k2, k3, k4, ctr, otc, design_uuid
		FROM ntags WHERE otc = $1`

	updateNTAGOTC = `UPDATE ntags SET otc = $2 WHERE cid = $1`

	// advanceNTAGCtr is the optimistic conditional update the tap
	// verification requires: it only succeeds (affects one row) when the
	// counter presented by the tap is strictly greater than the currently
	// persisted one, serializing concurrent verifications of the same cid.
	advanceNTAGCtr = `UPDATE ntags SET ctr = $2 WHERE cid = $1 AND ctr < $2`

	deleteNTAGByCid = `DELETE FROM ntags WHERE cid = $1`

	findNTAGAvailableByOTC = `
		SELECT n.cid, n.k0, n.k1, n.k2, n.k3, n.k4, n.ctr, n.otc, n.design_uuid
		FROM ntags n
		LEFT JOIN cards c ON c.ntag424_cid = n.cid
		WHERE n.otc = $1 AND c.uuid IS NULL`
)

// ntagRepository persists [models.NTAG] rows.
type ntagRepository struct {
	db     querier
	logger *logger.Logger
}

func newNTAGRepository(db querier, log *logger.Logger) *ntagRepository {
	return &ntagRepository{db: db, logger: log}
}

func (r *ntagRepository) Create(ctx context.Context, n models.NTAG) error {
	log := logger.FromContext(ctx)

	_, err := r.db.ExecContext(ctx, insertNTAG, n.Cid, n.K0, n.K1, n.K2, n.K3, n.K4, n.Ctr, n.DesignUUID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		log.Err(err).Str("func", "ntagRepository.Create").Str("cid", n.Cid).Msg("failed to insert ntag")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

func (r *ntagRepository) FindByCidAndK1(ctx context.Context, cid, k1 string) (models.NTAG, error) {
	return r.scanOne(ctx, r.db.QueryRowContext(ctx, findNTAGByCidAndK1, cid, k1))
}

func (r *ntagRepository) FindByCid(ctx context.Context, cid string) (models.NTAG, error) {
	return r.scanOne(ctx, r.db.QueryRowContext(ctx, findNTAGByCid, cid))
}

func (r *ntagRepository) FindByOTC(ctx context.Context, otc string) (models.NTAG, error) {
	return r.scanOne(ctx, r.db.QueryRowContext(ctx, findNTAGByOTC, otc))
}

// FindAvailableByOTC returns the NTAG bound to otc only if no Card yet
// references it (findAvailableNTAGByOTC).
func (r *ntagRepository) FindAvailableByOTC(ctx context.Context, otc string) (models.NTAG, error) {
	return r.scanOne(ctx, r.db.QueryRowContext(ctx, findNTAGAvailableByOTC, otc))
}

func (r *ntagRepository) scanOne(ctx context.Context, row *sql.Row) (models.NTAG, error) {
	log := logger.FromContext(ctx)

	var n models.NTAG
	var otc sql.NullString
	if err := row.Scan(&n.Cid, &n.K0, &n.K1, &n.K2, &n.K3, &n.K4, &n.Ctr, &otc, &n.DesignUUID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NTAG{}, ErrNotFound
		}
		log.Err(err).Str("func", "ntagRepository.scanOne").Msg("failed to scan ntag row")
		return models.NTAG{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if otc.Valid {
		n.OTC = &otc.String
	}

	return n, nil
}

// SetOTC sets the otc bound to cid, idempotently. Conflicts (the NTAG
// already carries a different otc) are surfaced by the caller comparing
// the returned current NTAG to the requested otc — this method itself is
// an unconditional write; the Registry layer resolves the conflict
// decision first before issuing it.
func (r *ntagRepository) SetOTC(ctx context.Context, cid, otc string) error {
	log := logger.FromContext(ctx)

	res, err := r.db.ExecContext(ctx, updateNTAGOTC, cid, otc)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		log.Err(err).Str("func", "ntagRepository.SetOTC").Str("cid", cid).Msg("failed to set otc")
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

// AdvanceCtr performs the conditional counter update. It returns
// [ErrCounterNotAdvancing] when zero rows matched, which callers
// must treat identically whether the cid was missing or the counter simply
// did not advance — the cid's existence was already confirmed by the
// lookup that preceded this call within the same logical operation.
func (r *ntagRepository) AdvanceCtr(ctx context.Context, cid string, newCtr int64) error {
	log := logger.FromContext(ctx)

	res, err := r.db.ExecContext(ctx, advanceNTAGCtr, cid, newCtr)
	if err != nil {
		log.Err(err).Str("func", "ntagRepository.AdvanceCtr").Str("cid", cid).Msg("failed to advance ctr")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if n == 0 {
		return ErrCounterNotAdvancing
	}

	return nil
}

func (r *ntagRepository) Delete(ctx context.Context, cid string) error {
	log := logger.FromContext(ctx)

	res, err := r.db.ExecContext(ctx, deleteNTAGByCid, cid)
	if err != nil {
		log.Err(err).Str("func", "ntagRepository.Delete").Str("cid", cid).Msg("failed to delete ntag")
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
