// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// CrateService takes a repository.CrateRepository (interface), NOT a concrete
// store. In tests we pass an in-memory mock; in production server.New picks
// sqlite, postgres or mysql from the configuration.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/crates-api/internal/apperror"
	"github.com/sakif/crates-api/internal/model"
	"github.com/sakif/crates-api/internal/repository"
)

// Validation constants.
const (
	MaxNameLength        = 64
	MaxVersionLength     = 32
	MaxDescriptionLength = 1024

	// ListLimit is the fixed number of crates List returns at most.
	ListLimit = 100
)

// CrateService handles business logic for crates.
type CrateService struct {
	repo   repository.CrateRepository
	logger *slog.Logger
}

// NewCrateService creates a new CrateService.
func NewCrateService(repo repository.CrateRepository, logger *slog.Logger) *CrateService {
	return &CrateService{
		repo:   repo,
		logger: logger,
	}
}

// List returns up to ListLimit crates ordered by id.
func (s *CrateService) List(ctx context.Context) ([]model.Crate, error) {
	crates, err := s.repo.FindMultiple(ctx, ListLimit)
	if err != nil {
		s.logger.Error("failed to list crates", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing crates: %w", err)
	}
	return crates, nil
}

// Get retrieves a crate by id.
// Returns apperror.ErrNotFound if the crate doesn't exist.
func (s *CrateService) Get(ctx context.Context, id int64) (*model.Crate, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	crate, err := s.repo.Find(ctx, id)
	if err != nil {
		// NotFound is a normal outcome; only log real failures.
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to get crate",
				slog.Int64("id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("getting crate: %w", err)
	}
	return crate, nil
}

// Create validates and saves a new crate. The store assigns the id.
func (s *CrateService) Create(ctx context.Context, nc model.NewCrate) (*model.Crate, error) {
	name, version, desc, err := normalize(nc.Name, nc.Version, nc.Description)
	if err != nil {
		return nil, err
	}

	crate, err := s.repo.Create(ctx, model.NewCrate{Name: name, Version: version, Description: desc})
	if err != nil {
		s.logger.Error("failed to create crate",
			slog.String("name", name),
			slog.String("version", version),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating crate: %w", err)
	}

	s.logger.Info("crate created",
		slog.Int64("id", crate.ID),
		slog.String("name", crate.Name),
		slog.String("version", crate.Version),
	)
	return crate, nil
}

// Update replaces name, version and description of the crate with the given id.
//
// The id argument is authoritative: crate.ID (typically echoed back by a
// client in the request body) is never used to pick the row.
func (s *CrateService) Update(ctx context.Context, id int64, crate model.Crate) (*model.Crate, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	name, version, desc, err := normalize(crate.Name, crate.Version, crate.Description)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, model.Crate{
		ID:          id,
		Name:        name,
		Version:     version,
		Description: desc,
	})
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to update crate",
				slog.Int64("id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("updating crate: %w", err)
	}

	s.logger.Info("crate updated",
		slog.Int64("id", updated.ID),
		slog.String("name", updated.Name),
		slog.String("version", updated.Version),
	)
	return updated, nil
}

// Delete removes a crate by id.
// Returns apperror.ErrNotFound if the crate doesn't exist (including a second delete).
func (s *CrateService) Delete(ctx context.Context, id int64) error {
	if err := validateID(id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to delete crate",
				slog.Int64("id", id),
				slog.String("error", err.Error()),
			)
		}
		return fmt.Errorf("deleting crate: %w", err)
	}

	s.logger.Info("crate deleted", slog.Int64("id", id))
	return nil
}

func validateID(id int64) error {
	if id <= 0 {
		return apperror.ValidationFailed("id", "crate id must be a positive integer")
	}
	return nil
}

// normalize trims the fields and enforces required values and length caps.
// An all-whitespace description is stored as NULL.
func normalize(name, version string, description *string) (string, string, *string, error) {
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)

	if name == "" {
		return "", "", nil, apperror.ValidationFailed("name", "crate name is required")
	}
	if len(name) > MaxNameLength {
		return "", "", nil, apperror.ValidationFailed("name",
			fmt.Sprintf("crate name must be %d characters or less", MaxNameLength))
	}
	if version == "" {
		return "", "", nil, apperror.ValidationFailed("version", "crate version is required")
	}
	if len(version) > MaxVersionLength {
		return "", "", nil, apperror.ValidationFailed("version",
			fmt.Sprintf("crate version must be %d characters or less", MaxVersionLength))
	}

	var desc *string
	if description != nil {
		if d := strings.TrimSpace(*description); d != "" {
			if len(d) > MaxDescriptionLength {
				return "", "", nil, apperror.ValidationFailed("description",
					fmt.Sprintf("crate description must be %d characters or less", MaxDescriptionLength))
			}
			desc = &d
		}
	}

	return name, version, desc, nil
}
