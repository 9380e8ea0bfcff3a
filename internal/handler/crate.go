package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/crates-api/internal/apperror"
	"github.com/sakif/crates-api/internal/middleware"
	"github.com/sakif/crates-api/internal/model"
)

// maxBodyBytes caps request bodies; a crate is a few hundred bytes at most.
const maxBodyBytes = 1 << 20

// CrateService is what the handler needs from the service layer.
//
// ACCEPT INTERFACES:
// Declaring the interface here, where it is consumed, lets the handler tests
// pass a stub without touching a database.
type CrateService interface {
	List(ctx context.Context) ([]model.Crate, error)
	Get(ctx context.Context, id int64) (*model.Crate, error)
	Create(ctx context.Context, nc model.NewCrate) (*model.Crate, error)
	Update(ctx context.Context, id int64, crate model.Crate) (*model.Crate, error)
	Delete(ctx context.Context, id int64) error
}

// CrateHandler serves the /crates resource.
type CrateHandler struct {
	service CrateService
	logger  *slog.Logger
}

// NewCrateHandler creates a new CrateHandler.
func NewCrateHandler(service CrateService, logger *slog.Logger) *CrateHandler {
	return &CrateHandler{
		service: service,
		logger:  logger,
	}
}

// Routes mounts the five CRUD endpoints on r.
//
//	GET    /crates       → HandleList
//	GET    /crates/{id}  → HandleGet
//	POST   /crates       → HandleCreate
//	PUT    /crates/{id}  → HandleUpdate
//	DELETE /crates/{id}  → HandleDelete
func (h *CrateHandler) Routes(r chi.Router) {
	r.Get("/crates", h.HandleList)
	r.Get("/crates/{id}", h.HandleGet)
	r.Post("/crates", h.HandleCreate)
	r.Put("/crates/{id}", h.HandleUpdate)
	r.Delete("/crates/{id}", h.HandleDelete)
}

// HandleList returns up to 100 crates.
//
// HTTP: GET /crates
// An empty table yields [] (the service never returns a nil slice).
func (h *CrateHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	crates, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, crates)
}

// HandleGet returns one crate.
//
// HTTP: GET /crates/{id}
func (h *CrateHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	crate, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, crate)
}

// HandleCreate saves a new crate.
//
// HTTP: POST /crates
// REQUEST BODY: {"name": "foo", "version": "1.0.0", "description": "optional"}
// RESPONSE: 201 Created with the stored crate, including its assigned id.
func (h *CrateHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var nc model.NewCrate
	if err := h.decode(w, r, &nc); err != nil {
		h.fail(w, r, err)
		return
	}

	crate, err := h.service.Create(r.Context(), nc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, crate)
}

// HandleUpdate replaces a crate's attributes.
//
// HTTP: PUT /crates/{id}
// REQUEST BODY: a full crate. Its "id" field, if present, is ignored;
// the path decides which crate changes.
func (h *CrateHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var crate model.Crate
	if err := h.decode(w, r, &crate); err != nil {
		h.fail(w, r, err)
		return
	}

	updated, err := h.service.Update(r.Context(), id, crate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleDelete removes a crate.
//
// HTTP: DELETE /crates/{id}
// RESPONSE: 204 No Content, empty body.
func (h *CrateHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail logs err with the request id and writes the mapped error response.
// Client errors are logged at Warn, everything else at Error.
func (h *CrateHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	level := slog.LevelError
	if statusFor(apperror.KindOf(err)) < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	h.logger.Log(r.Context(), level, "crate request failed",
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeError(w, err)
}

// parseID reads the {id} URL parameter.
func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", "crate id must be a positive integer")
	}
	return id, nil
}

// decode reads a single JSON value from the body into dst.
//
// Unknown fields are rejected so a typo like "verison" fails loudly
// instead of silently dropping the field.
func (h *CrateHandler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperror.ValidationFailed("body", "request body too large")
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	if dec.More() {
		return apperror.ValidationFailed("body", "request body must contain a single JSON object")
	}
	return nil
}
