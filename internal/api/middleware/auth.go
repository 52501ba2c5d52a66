// Package middleware contains the HTTP middleware chain for the platewise API.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/platewise/backend/internal/api/response"
)

// Auth middleware validates bearer API keys from the Authorization header
// against the configured key set. Comparison is constant-time per key.
func Auth(apiKeys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.RespondUnauthorized(w, "Missing Authorization header")

				return
			}

			// Expected format: "Bearer <api-key>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				response.RespondUnauthorized(w, "Invalid Authorization header format. Expected: Bearer <api-key>")

				return
			}

			apiKey := parts[1]
			if apiKey == "" {
				response.RespondUnauthorized(w, "API key is empty")

				return
			}

			if !keyAllowed(apiKey, apiKeys) {
				response.RespondUnauthorized(w, "Invalid API key")

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func keyAllowed(candidate string, apiKeys []string) bool {
	allowed := false

	for _, key := range apiKeys {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) == 1 {
			allowed = true
		}
	}

	return allowed
}
