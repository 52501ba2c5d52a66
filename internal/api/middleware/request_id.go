package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/platewise/backend/internal/observability"
)

const requestIDHeader = "X-Request-ID"

// RequestID guarantees every request carries an X-Request-ID, in context and
// on the response. A client-supplied id is kept; otherwise a UUIDv7 is minted
// so ids sort by arrival time in logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.Must(uuid.NewV7()).String()
		}

		ctx := context.WithValue(r.Context(), observability.RequestIDKey, id)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
