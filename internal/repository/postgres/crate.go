package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/crates-api/internal/apperror"
	"github.com/sakif/crates-api/internal/model"
	"github.com/sakif/crates-api/internal/repository"
)

var _ repository.Store = (*DB)(nil)

const crateColumns = `id, name, version, description, created_at`

func scanCrate(row pgx.Row) (model.Crate, error) {
	var c model.Crate
	err := row.Scan(&c.ID, &c.Name, &c.Version, &c.Description, &c.CreatedAt)
	return c, err
}

// notFoundOr translates pgx.ErrNoRows for id into apperror.NotFound.
func notFoundOr(err error, id int64, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound("crate", id)
	}
	return fmt.Errorf("postgres: %s crate %d: %w", op, id, classify(err))
}

func (db *DB) FindMultiple(ctx context.Context, limit int) ([]model.Crate, error) {
	crates := make([]model.Crate, 0, limit)

	err := db.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+crateColumns+` FROM crates ORDER BY id LIMIT $1`, limit)
		if err != nil {
			return fmt.Errorf("postgres: listing crates: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanCrate(rows)
			if err != nil {
				return fmt.Errorf("postgres: scanning crate row: %w", err)
			}
			crates = append(crates, c)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("postgres: iterating crates: %w", err)
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
	err := db.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		c, err = scanCrate(conn.QueryRow(ctx, `SELECT `+crateColumns+` FROM crates WHERE id = $1`, id))
		if err != nil {
			return notFoundOr(err, id, "getting")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create uses RETURNING so the insert and read-back are a single statement.
func (db *DB) Create(ctx context.Context, nc model.NewCrate) (*model.Crate, error) {
	var c model.Crate
	err := db.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		c, err = scanCrate(conn.QueryRow(ctx,
			`INSERT INTO crates (name, version, description)
			 VALUES ($1, $2, $3)
			 RETURNING `+crateColumns,
			nc.Name, nc.Version, nc.Description,
		))
		if err != nil {
			return fmt.Errorf("postgres: creating crate: %w", classify(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Update writes name, version and description of row id. crate.ID is ignored.
// No row back from RETURNING means the id does not exist.
func (db *DB) Update(ctx context.Context, id int64, crate model.Crate) (*model.Crate, error) {
	var c model.Crate
	err := db.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		c, err = scanCrate(conn.QueryRow(ctx,
			`UPDATE crates
			 SET name = $1, version = $2, description = $3
			 WHERE id = $4
			 RETURNING `+crateColumns,
			crate.Name, crate.Version, crate.Description, id,
		))
		if err != nil {
			return notFoundOr(err, id, "updating")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) Delete(ctx context.Context, id int64) error {
	return db.withConn(ctx, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `DELETE FROM crates WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("postgres: deleting crate %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return apperror.NotFound("crate", id)
		}
		return nil
	})
}
