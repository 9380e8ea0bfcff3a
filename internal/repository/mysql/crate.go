package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/crates-api/internal/apperror"
	"github.com/sakif/crates-api/internal/model"
	"github.com/sakif/crates-api/internal/repository"
)

var _ repository.Store = (*DB)(nil)

const selectCrate = "SELECT id, name, version, description, created_at FROM crates"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCrate(row rowScanner) (model.Crate, error) {
	var (
		c    model.Crate
		desc sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Version, &desc, &c.CreatedAt); err != nil {
		return model.Crate{}, err
	}
	if desc.Valid {
		c.Description = &desc.String
	}
	return c, nil
}

func (db *DB) FindMultiple(ctx context.Context, limit int) ([]model.Crate, error) {
	crates := make([]model.Crate, 0, limit)

	err := db.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, selectCrate+" ORDER BY id LIMIT ?", limit)
		if err != nil {
			return fmt.Errorf("mysql: listing crates: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanCrate(rows)
			if err != nil {
				return fmt.Errorf("mysql: scanning crate row: %w", err)
			}
			crates = append(crates, c)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("mysql: iterating crates: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return crates, nil
}

func (db *DB) Find(ctx context.Context, id int64) (*model.Crate, error) {
	var c model.Crate
	err := db.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		c, err = findOn(ctx, conn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func findOn(ctx context.Context, conn *sql.Conn, id int64) (model.Crate, error) {
	c, err := scanCrate(conn.QueryRowContext(ctx, selectCrate+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Crate{}, apperror.NotFound("crate", id)
		}
		return model.Crate{}, fmt.Errorf("mysql: getting crate %d: %w", id, err)
	}
	return c, nil
}

// Create inserts and reads back on the same connection; MySQL has no RETURNING.
func (db *DB) Create(ctx context.Context, nc model.NewCrate) (*model.Crate, error) {
	var c model.Crate
	err := db.withConn(ctx, func(conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx,
			"INSERT INTO crates (name, version, description, created_at) VALUES (?, ?, ?, ?)",
			nc.Name, nc.Version, nc.Description, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("mysql: creating crate: %w", classify(err))
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("mysql: reading inserted id: %w", err)
		}

		c, err = findOn(ctx, conn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) Update(ctx context.Context, id int64, crate model.Crate) (*model.Crate, error) {
	var c model.Crate
	err := db.withConn(ctx, func(conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx,
			"UPDATE crates SET name = ?, version = ?, description = ? WHERE id = ?",
			crate.Name, crate.Version, crate.Description, id,
		)
		if err != nil {
			return fmt.Errorf("mysql: updating crate %d: %w", id, classify(err))
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("mysql: checking rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return apperror.NotFound("crate", id)
		}

		c, err = findOn(ctx, conn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) Delete(ctx context.Context, id int64) error {
	return db.withConn(ctx, func(conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx, "DELETE FROM crates WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("mysql: deleting crate %d: %w", id, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("mysql: checking rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return apperror.NotFound("crate", id)
		}
		return nil
	})
}
