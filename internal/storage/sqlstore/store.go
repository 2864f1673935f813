// Package sqlstore implements storage.Storage over SQLite and PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"pipeline-hub/internal/common/logging"
	"pipeline-hub/internal/config"
	"pipeline-hub/internal/storage"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

func init() {
	storage.Register(DialectSQLite, func(cfg *config.Config) (storage.Storage, error) {
		return OpenSQLite(context.Background(), cfg.DatabasePath)
	})
	storage.Register(DialectPostgres, func(cfg *config.Config) (storage.Storage, error) {
		return OpenPostgres(context.Background(), cfg.PostgresDSN())
	})
}

// Store is a storage.Storage backed by a SQL database.
type Store struct {
	db      *sqlx.DB
	dialect string
	logger  logging.Logger
}

var _ storage.Storage = (*Store)(nil)

// OpenSQLite opens (creating if needed) the SQLite database at path and
// applies pending migrations.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids lock contention
	// between concurrent deliveries.
	db.SetMaxOpenConns(1)
	return newStore(ctx, db, DialectSQLite)
}

// OpenPostgres connects through the pgx stdlib driver and applies pending
// migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return newStore(ctx, db, DialectPostgres)
}

func newStore(ctx context.Context, db *sqlx.DB, dialect string) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger := logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "sqlstore"})
	if err := NewMigrationManager(db, dialect, logger).RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, dialect: dialect, logger: logger}, nil
}

// Dialect returns "sqlite" or "postgres".
func (s *Store) Dialect() string {
	return s.dialect
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// mapError wraps unique violations with storage.ErrDuplicate.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", what, storage.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// notFound converts sql.ErrNoRows into the (nil, nil) convention.
func notFound(err error) (bool, error) {
	if stderrors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	return false, err
}
