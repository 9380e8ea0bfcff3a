// Package postgres implements the repository interfaces on PostgreSQL using
// pgx's native connection pool.
//
// Every method acquires one *pgxpool.Conn, runs its statement, and releases
// the connection with a deferred Release, the pgx counterpart of borrowing
// a *sql.Conn in the sqlite package.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/crates-api/internal/apperror"
)

// SQLSTATE codes we classify.
const (
	uniqueViolation = "23505"
)

// Options tunes the pool. Zero values keep pgxpool defaults.
type Options struct {
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// DB wraps a pgx pool.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to dsn (a postgres:// URL or key=value string) and creates the schema.
func New(ctx context.Context, dsn string, opts Options) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parsing dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	db := &DB{pool: pool}
	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: running migrations: %w", err)
	}

	return db, nil
}

// Close releases every pooled connection. It always returns nil; the
// signature matches repository.Store.
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return apperror.ConnectionFailed(err)
	}
	return nil
}

// withConn borrows one connection for the duration of fn and always releases it.
func (db *DB) withConn(ctx context.Context, fn func(*pgxpool.Conn) error) error {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return apperror.ConnectionFailed(err)
	}
	defer conn.Release()

	return fn(conn)
}

func (db *DB) migrate(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS crates (
			id          BIGSERIAL PRIMARY KEY,
			name        TEXT NOT NULL,
			version     TEXT NOT NULL,
			description TEXT,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_crates_name_version ON crates(name, version);
	`)
	if err != nil {
		return fmt.Errorf("creating crates table: %w", err)
	}
	return nil
}

// classify maps PostgreSQL errors onto apperror kinds.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return apperror.Conflict("crate", err)
		}
	}
	return err
}
