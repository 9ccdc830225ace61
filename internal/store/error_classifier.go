package store

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorClassification reports whether a failed database operation should be
// retried by the caller or treated as terminal.
type ErrorClassification int

const (
	// NonRetryable is the default classification for constraint violations,
	// syntax errors, and unrecognised errors.
	NonRetryable ErrorClassification = iota
	// Retryable indicates the operation may succeed if attempted again
	// (a transient connection loss, a serialization failure, a deadlock).
	Retryable
)

// ErrorClassificator classifies a driver-level error as retryable or
// terminal. [DB] exposes its classifier through [DB.Classify].
type ErrorClassificator interface {
	Classify(err error) ErrorClassification
}

// PostgresErrorClassifier implements [ErrorClassificator] for PostgreSQL,
// inspecting the pgconn error code returned by the pgx driver.
type PostgresErrorClassifier struct{}

// NewPostgresErrorClassifier constructs a [PostgresErrorClassifier].
func NewPostgresErrorClassifier() *PostgresErrorClassifier {
	return &PostgresErrorClassifier{}
}

// Classify unwraps err as a *pgconn.PgError and delegates to
// [ClassifyPgError]. Non-PostgreSQL errors are [NonRetryable].
func (c *PostgresErrorClassifier) Classify(err error) ErrorClassification {
	if err == nil {
		return NonRetryable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return ClassifyPgError(pgErr)
	}

	return NonRetryable
}

// ClassifyPgError maps a *pgconn.PgError to an [ErrorClassification] based
// on its PostgreSQL error code.
func ClassifyPgError(pgErr *pgconn.PgError) ErrorClassification {
	switch pgErr.Code {
	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.TransactionRollback,
		pgerrcode.SerializationFailure,
		pgerrcode.DeadlockDetected,
		pgerrcode.CannotConnectNow:
		return Retryable
	}
	return NonRetryable
}

// pgCode returns the PostgreSQL error code of err, or "" if err did not
// originate from the pgx driver.
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	return pgCode(err) == pgerrcode.UniqueViolation
}
