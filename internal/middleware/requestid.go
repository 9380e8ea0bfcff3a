package middleware

import (
	"context"
	"net/http"

	"github.com/rs/xid"
)

// RequestIDHeader is read from incoming requests and set on every response.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds client-supplied ids so they can't bloat log lines.
const maxRequestIDLength = 64

type contextKey string

const requestIDKey contextKey = "requestID"

// RequestID tags each request with an id.
//
// A client-supplied X-Request-ID is kept so a caller can correlate its own
// logs with ours; otherwise a fresh xid is generated. xid ids are 20 URL-safe
// characters and sort by creation time, which makes log scanning easy.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = xid.New().String()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the id set by RequestID, or "" outside it.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
