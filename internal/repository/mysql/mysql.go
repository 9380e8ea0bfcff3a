// Package mysql implements the repository interfaces on MySQL / MariaDB.
//
// It uses database/sql like the sqlite package, so the scoped-connection
// discipline is identical: borrow a *sql.Conn, defer its Close.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/sakif/crates-api/internal/apperror"
)

// MySQL server error numbers we classify.
const (
	errDupEntry = 1062
)

// Options tunes the connection pool. Zero values leave database/sql defaults.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type DB struct {
	conn *sql.DB
}

// New connects to dsn, e.g. "user:pass@tcp(localhost:3306)/crates".
//
// Two driver flags are forced regardless of the dsn:
//   - parseTime, so DATETIME columns scan into time.Time
//   - clientFoundRows, so an UPDATE that writes identical values still
//     reports one affected row instead of looking like "not found"
func New(dsn string, opts Options) (*DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: parsing dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql: creating connector: %w", err)
	}
	conn := sql.OpenDB(connector)

	if opts.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mysql: pinging database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mysql: running migrations: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return apperror.ConnectionFailed(err)
	}
	return nil
}

func (db *DB) withConn(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := db.conn.Conn(ctx)
	if err != nil {
		return apperror.ConnectionFailed(err)
	}
	defer conn.Close()

	return fn(conn)
}

// migrate creates the schema. MySQL has no CREATE INDEX IF NOT EXISTS, so the
// unique key is declared inline with the table.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS crates (
			id          BIGINT AUTO_INCREMENT PRIMARY KEY,
			name        VARCHAR(64) NOT NULL,
			version     VARCHAR(32) NOT NULL,
			description TEXT NULL,
			created_at  DATETIME(6) NOT NULL,
			UNIQUE KEY idx_crates_name_version (name, version)
		)`)
	if err != nil {
		return fmt.Errorf("creating crates table: %w", err)
	}
	return nil
}

func classify(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == errDupEntry {
		return apperror.Conflict("crate", err)
	}
	return err
}
