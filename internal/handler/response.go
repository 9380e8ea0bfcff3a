package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// ERROR BODY FORMAT:
// Every failed request gets a single JSON string as its body:
//
//	500 → "Error"
//	404 → "crate not found with id 42"
//	400 → "crate name is required"
//
// Server errors never carry detail. The raw error might contain SQL,
// constraint names or host names, so it goes to the log and nowhere else.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/crates-api/internal/apperror"
)

// internalErrorBody is the only body a 5xx response ever carries.
const internalErrorBody = "Error"

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status code must be set BEFORE writing the body.
// Once Encode writes, the headers are on the wire.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; we can only log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	default:
		// ConnectionFailure and Unknown are both server-side problems.
		return http.StatusInternalServerError
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// WHY HERE AND NOT IN THE SERVICE?
// The service layer should not know about HTTP status codes. It returns
// apperror kinds; this is the one place they become 400/404/409/500.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(apperror.KindOf(err))
	if status >= http.StatusInternalServerError {
		writeJSON(w, status, internalErrorBody)
		return
	}

	// Client errors: show the AppError's own message, never the wrapped
	// prefixes from upper layers or a driver cause.
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, status, appErr.Message)
		return
	}
	writeJSON(w, status, http.StatusText(status))
}
