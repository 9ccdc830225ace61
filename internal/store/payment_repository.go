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
	insertPaymentRequest = `
		INSERT INTO payment_requests (uuid, card_uuid, response, created_at)
		VALUES ($1, $2, $3, $4)`

	findPaymentRequestByUUID = `
		SELECT uuid, card_uuid, response, created_at
		FROM payment_requests WHERE uuid = $1`

	findPaymentByRequestUUID = `
		SELECT uuid FROM payments WHERE payment_request_uuid = $1`

	insertPayment = `
		INSERT INTO payments (uuid, card_uuid, token, amount, status, payment_request_uuid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	sumPaymentsInWindow = `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE card_uuid = $1 AND token = $2 AND created_at >= $3 AND created_at <= $4`
)

// paymentRepository persists [models.PaymentRequest] and [models.Payment]
// rows (Payment-Request Ledger).
type paymentRepository struct {
	db     querier
	logger *logger.Logger
}

func newPaymentRepository(db querier, log *logger.Logger) *paymentRepository {
	return &paymentRepository{db: db, logger: log}
}

func (r *paymentRepository) CreatePaymentRequest(ctx context.Context, pr models.PaymentRequest) error {
	log := logger.FromContext(ctx)

	_, err := r.db.ExecContext(ctx, insertPaymentRequest, pr.UUID, pr.CardUUID, pr.Response, pr.CreatedAt)
	if err != nil {
		log.Err(err).Str("func", "paymentRepository.CreatePaymentRequest").Str("pr_uuid", pr.UUID).Msg("failed to insert payment request")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

func (r *paymentRepository) FindPaymentRequest(ctx context.Context, uuid string) (models.PaymentRequest, error) {
	log := logger.FromContext(ctx)

	var pr models.PaymentRequest
	err := r.db.QueryRowContext(ctx, findPaymentRequestByUUID, uuid).
		Scan(&pr.UUID, &pr.CardUUID, &pr.Response, &pr.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PaymentRequest{}, ErrNotFound
		}
		log.Err(err).Str("func", "paymentRepository.FindPaymentRequest").Msg("failed to scan payment request row")
		return models.PaymentRequest{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	if err := r.isConsumed(ctx, uuid, &pr); err != nil {
		return models.PaymentRequest{}, err
	}

	return pr, nil
}

func (r *paymentRepository) isConsumed(ctx context.Context, uuid string, pr *models.PaymentRequest) error {
	log := logger.FromContext(ctx)

	var existing string
	err := r.db.QueryRowContext(ctx, findPaymentByRequestUUID, uuid).Scan(&existing)
	switch {
	case err == nil:
		pr.Consumed = true
		return nil
	case errors.Is(err, sql.ErrNoRows):
		pr.Consumed = false
		return nil
	default:
		log.Err(err).Str("func", "paymentRepository.isConsumed").Msg("failed to check payment request consumption")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
}

// CreatePayment inserts the Payment row that marks a PaymentRequest
// consumed. A second attempt inserting the same (PaymentRequestUUID, Token)
// pair hits the composite unique constraint on
// payments.(payment_request_uuid, token) and is reported as [ErrConflict],
// so a second attempt with the same k1 always fails.
func (r *paymentRepository) CreatePayment(ctx context.Context, p models.Payment) error {
	log := logger.FromContext(ctx)

	_, err := r.db.ExecContext(ctx, insertPayment, p.UUID, p.CardUUID, p.Token, p.Amount, p.Status, p.PaymentRequestUUID, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		log.Err(err).Str("func", "paymentRepository.CreatePayment").Str("pr_uuid", p.PaymentRequestUUID).Msg("failed to insert payment")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

// SumInWindow computes Σ{payment.amount | card,token,window} for the
// Limit Engine's Remaining() aggregation.
func (r *paymentRepository) SumInWindow(ctx context.Context, cardUUID, token string, since, until time.Time) (int64, error) {
	log := logger.FromContext(ctx)

	var sum int64
	err := r.db.QueryRowContext(ctx, sumPaymentsInWindow, cardUUID, token, since, until).Scan(&sum)
	if err != nil {
		log.Err(err).Str("func", "paymentRepository.SumInWindow").Msg("failed to sum payments")
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return sum, nil
}
