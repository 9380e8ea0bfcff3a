// Package repository declares the data-access contracts the service layer
// depends on. Implementations live in the sub-packages (sqlite, postgres,
// mysql); each one borrows a single pooled connection per call and returns
// it before the method returns.
package repository

import (
	"context"

	"github.com/sakif/crates-api/internal/model"
)

// CrateRepository is the CRUD contract for crates.
//
// Errors are classified with the apperror kinds: a missing id yields
// apperror.ErrNotFound, a unique violation apperror.ErrConflict, and a
// failure to reach the database apperror.ErrConnection.
type CrateRepository interface {
	FindMultiple(ctx context.Context, limit int) ([]model.Crate, error)
	Find(ctx context.Context, id int64) (*model.Crate, error)
	Create(ctx context.Context, crate model.NewCrate) (*model.Crate, error)
	Update(ctx context.Context, id int64, crate model.Crate) (*model.Crate, error)
	Delete(ctx context.Context, id int64) error
}

// Store is a CrateRepository that owns a connection pool.
type Store interface {
	CrateRepository
	Ping(ctx context.Context) error
	Close() error
}
