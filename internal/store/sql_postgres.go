package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lawallet/card-server/internal/config"
	"github.com/lawallet/card-server/internal/logger"
	"github.com/lawallet/card-server/migrations"
)

// DB wraps a pgx-backed *sql.DB connection together with an error
// classifier that distinguishes retryable infrastructure failure from a
// terminal domain error.
type DB struct {
	*sql.DB
	errorClassificator ErrorClassificator
	logger             *logger.Logger
}

// NewConnectPostgres opens and pings a PostgreSQL connection using the pgx
// stdlib driver.
func NewConnectPostgres(ctx context.Context, cfg config.DB, log *logger.Logger) (*DB, error) {
	conn, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		log.Err(err).Str("func", "NewConnectPostgres").Msg("error occurred during database connection")
		return nil, fmt.Errorf("error occurred during database connection: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(4)

	if err := conn.PingContext(ctx); err != nil {
		log.Err(err).Str("func", "NewConnectPostgres").Msg("error connecting database (ping)")
		return nil, err
	}
	log.Info().Str("func", "NewConnectPostgres").Msg("connected to database successfully")

	return &DB{
		DB:                 conn,
		logger:             log,
		errorClassificator: NewPostgresErrorClassifier(),
	}, nil
}

// Migrate applies every pending goose migration embedded in the migrations
// package.
func (db *DB) Migrate() error {
	return migrations.Migrate(db.DB)
}

// Classify exposes the configured [ErrorClassificator] to callers outside
// this package.
func (db *DB) Classify(err error) ErrorClassification {
	return db.errorClassificator.Classify(err)
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting repository
// methods run unchanged whether or not they are inside a Registry
// transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
