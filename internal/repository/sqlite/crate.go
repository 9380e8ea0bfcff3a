package sqlite

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

// COMPILE-TIME INTERFACE CHECK:
// If *DB stops implementing repository.Store, the build fails here rather than
// at the call site in the server package.
var _ repository.Store = (*DB)(nil)

const selectCrate = `SELECT id, name, version, description, created_at FROM crates`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
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

// FindMultiple returns up to limit crates ordered by id.
//
// defer rows.Close() is required:
// sql.Rows holds the connection until it is closed. The deferred Close runs
// before withConn returns the connection to the pool.
func (db *DB) FindMultiple(ctx context.Context, limit int) ([]model.Crate, error) {
	crates := make([]model.Crate, 0, limit)

	err := db.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, selectCrate+` ORDER BY id LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("sqlite: listing crates: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanCrate(rows)
			if err != nil {
				return fmt.Errorf("sqlite: scanning crate row: %w", err)
			}
			crates = append(crates, c)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("sqlite: iterating crates: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return crates, nil
}

// Find retrieves a single crate by its id.
// sql.ErrNoRows is translated into apperror.NotFound so the handler can return 404.
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
	c, err := scanCrate(conn.QueryRowContext(ctx, selectCrate+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Crate{}, apperror.NotFound("crate", id)
		}
		return model.Crate{}, fmt.Errorf("sqlite: getting crate %d: %w", id, err)
	}
	return c, nil
}

// Create inserts a new crate and returns it with the assigned id.
//
// The row is read back on the same connection so the caller receives exactly
// what was stored, including the created_at value as SQLite round-trips it.
func (db *DB) Create(ctx context.Context, nc model.NewCrate) (*model.Crate, error) {
	var c model.Crate
	err := db.withConn(ctx, func(conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx,
			`INSERT INTO crates (name, version, description, created_at)
			 VALUES (?, ?, ?, ?)`,
			nc.Name,
			nc.Version,
			nc.Description,
			time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("sqlite: creating crate: %w", classify(err))
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: reading inserted id: %w", err)
		}

		c, err = findOn(ctx, conn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Update overwrites the mutable fields of the crate with the given id.
//
// The id argument selects the row; crate.ID is ignored. created_at is never
// written. RowsAffected() == 0 means the WHERE clause matched nothing → not found.
func (db *DB) Update(ctx context.Context, id int64, crate model.Crate) (*model.Crate, error) {
	var c model.Crate
	err := db.withConn(ctx, func(conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx,
			`UPDATE crates
			 SET name = ?, version = ?, description = ?
			 WHERE id = ?`,
			crate.Name,
			crate.Version,
			crate.Description,
			id,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating crate %d: %w", id, classify(err))
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
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

// Delete removes a crate by id. Same pattern as Update: RowsAffected() == 0 means "not found".
func (db *DB) Delete(ctx context.Context, id int64) error {
	return db.withConn(ctx, func(conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx, `DELETE FROM crates WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting crate %d: %w", id, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return apperror.NotFound("crate", id)
		}
		return nil
	})
}
