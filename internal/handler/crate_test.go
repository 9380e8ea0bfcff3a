package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/crates-api/internal/apperror"
	"github.com/sakif/crates-api/internal/handler"
	"github.com/sakif/crates-api/internal/model"
)

// MockService records what the handler passed in and returns canned values.
type MockService struct {
	Crates  []model.Crate
	Crate   *model.Crate
	Err     error
	GotID   int64
	GotNew  model.NewCrate
	GotBody model.Crate
}

func (m *MockService) List(ctx context.Context) ([]model.Crate, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Crates, nil
}

func (m *MockService) Get(ctx context.Context, id int64) (*model.Crate, error) {
	m.GotID = id
	return m.Crate, m.Err
}

func (m *MockService) Create(ctx context.Context, nc model.NewCrate) (*model.Crate, error) {
	m.GotNew = nc
	return m.Crate, m.Err
}

func (m *MockService) Update(ctx context.Context, id int64, crate model.Crate) (*model.Crate, error) {
	m.GotID = id
	m.GotBody = crate
	return m.Crate, m.Err
}

func (m *MockService) Delete(ctx context.Context, id int64) error {
	m.GotID = id
	return m.Err
}

func newRouter(svc handler.CrateService) http.Handler {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 4}))
	r := chi.NewRouter()
	handler.NewCrateHandler(svc, logger).Routes(r)
	return r
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func sample() *model.Crate {
	return &model.Crate{
		ID:        7,
		Name:      "foo",
		Version:   "1.0.0",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestHandleList(t *testing.T) {
	t.Run("empty list encodes as []", func(t *testing.T) {
		rr := serve(newRouter(&MockService{Crates: []model.Crate{}}), http.MethodGet, "/crates", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())
	})

	t.Run("returns crates", func(t *testing.T) {
		rr := serve(newRouter(&MockService{Crates: []model.Crate{*sample()}}), http.MethodGet, "/crates", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		var got []model.Crate
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, int64(7), got[0].ID)
	})

	t.Run("storage error is a bare 500", func(t *testing.T) {
		svc := &MockService{Err: fmt.Errorf("listing crates: %w", errors.New("disk I/O error"))}
		rr := serve(newRouter(svc), http.MethodGet, "/crates", "")

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `"Error"`, rr.Body.String())
	})
}

func TestHandleGet(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := &MockService{Crate: sample()}
		rr := serve(newRouter(svc), http.MethodGet, "/crates/7", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, int64(7), svc.GotID)
		assert.JSONEq(t,
			`{"id":7,"name":"foo","version":"1.0.0","description":null,"createdAt":"2026-01-02T03:04:05Z"}`,
			rr.Body.String())
	})

	t.Run("not found is 404", func(t *testing.T) {
		svc := &MockService{Err: fmt.Errorf("getting crate: %w", apperror.NotFound("crate", 999999))}
		rr := serve(newRouter(svc), http.MethodGet, "/crates/999999", "")

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `"crate not found with id 999999"`, rr.Body.String())
	})

	t.Run("connection failure is 500", func(t *testing.T) {
		svc := &MockService{Err: apperror.ConnectionFailed(errors.New("dial tcp 10.0.0.5:5432: refused"))}
		rr := serve(newRouter(svc), http.MethodGet, "/crates/1", "")

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `"Error"`, rr.Body.String())
	})

	t.Run("non-numeric id is 400 and never reaches the service", func(t *testing.T) {
		svc := &MockService{}
		rr := serve(newRouter(svc), http.MethodGet, "/crates/abc", "")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Zero(t, svc.GotID)
	})
}

func TestHandleCreate(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := &MockService{Crate: sample()}
		rr := serve(newRouter(svc), http.MethodPost, "/crates", `{"name":"foo","version":"1.0.0"}`)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.Equal(t, model.NewCrate{Name: "foo", Version: "1.0.0"}, svc.GotNew)

		var got model.Crate
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, int64(7), got.ID)
	})

	t.Run("storage error does not leak detail", func(t *testing.T) {
		svc := &MockService{Err: fmt.Errorf("creating crate: %w",
			errors.New("sqlite: creating crate: no such table: crates"))}
		rr := serve(newRouter(svc), http.MethodPost, "/crates", `{"name":"foo","version":"1.0.0"}`)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `"Error"`, rr.Body.String())
		assert.NotContains(t, rr.Body.String(), "sqlite")
	})

	t.Run("conflict is 409 without the driver cause", func(t *testing.T) {
		svc := &MockService{Err: apperror.Conflict("crate", errors.New("UNIQUE constraint failed: crates.name, crates.version"))}
		rr := serve(newRouter(svc), http.MethodPost, "/crates", `{"name":"foo","version":"1.0.0"}`)

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.JSONEq(t, `"crate already exists"`, rr.Body.String())
	})

	t.Run("validation is 400 with message", func(t *testing.T) {
		svc := &MockService{Err: apperror.ValidationFailed("name", "crate name is required")}
		rr := serve(newRouter(svc), http.MethodPost, "/crates", `{"name":"","version":"1.0.0"}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `"crate name is required"`, rr.Body.String())
	})

	t.Run("invalid json", func(t *testing.T) {
		rr := serve(newRouter(&MockService{}), http.MethodPost, "/crates", `{"name":`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `"invalid JSON body"`, rr.Body.String())
	})

	t.Run("trailing data", func(t *testing.T) {
		rr := serve(newRouter(&MockService{}), http.MethodPost, "/crates", `{"name":"a","version":"1"} {}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		body := `{"name":"a","version":"1","description":"` + strings.Repeat("x", 2<<20) + `"}`
		rr := serve(newRouter(&MockService{}), http.MethodPost, "/crates", body)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `"request body too large"`, rr.Body.String())
	})
}

func TestHandleUpdate(t *testing.T) {
	t.Run("path id is passed, body id is not", func(t *testing.T) {
		svc := &MockService{Crate: sample()}
		rr := serve(newRouter(svc), http.MethodPut, "/crates/7", `{"id":99,"name":"foo","version":"2.0.0"}`)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, int64(7), svc.GotID)
		assert.Equal(t, "2.0.0", svc.GotBody.Version)
	})

	t.Run("not found", func(t *testing.T) {
		svc := &MockService{Err: apperror.NotFound("crate", 7)}
		rr := serve(newRouter(svc), http.MethodPut, "/crates/7", `{"name":"foo","version":"2.0.0"}`)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rr := serve(newRouter(&MockService{}), http.MethodPut, "/crates/0", `{"name":"foo","version":"2.0.0"}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHandleDelete(t *testing.T) {
	t.Run("no content", func(t *testing.T) {
		svc := &MockService{}
		rr := serve(newRouter(svc), http.MethodDelete, "/crates/7", "")

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, rr.Body.String())
		assert.Equal(t, int64(7), svc.GotID)
	})

	t.Run("already deleted", func(t *testing.T) {
		svc := &MockService{Err: apperror.NotFound("crate", 7)}
		rr := serve(newRouter(svc), http.MethodDelete, "/crates/7", "")

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("storage error", func(t *testing.T) {
		svc := &MockService{Err: errors.New("database is locked")}
		rr := serve(newRouter(svc), http.MethodDelete, "/crates/7", "")

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `"Error"`, rr.Body.String())
	})
}
