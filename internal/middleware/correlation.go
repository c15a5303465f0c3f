// Package middleware provides HTTP middleware for the matching service.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/wandero/matching/internal/logger"
)

const headerCorrelationID = "X-Correlation-ID"

// CorrelationID is HTTP middleware that extracts X-Correlation-ID from the
// request header or generates a new one. The ID is stored in the context,
// set on the response header, and propagated onto every event and audit
// entry the request produces.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerCorrelationID)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := logger.WithCorrelationID(r.Context(), id)
		w.Header().Set(headerCorrelationID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminAuth guards the admin override surface with a static bearer token.
// An empty configured token disables the surface entirely.
func AdminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, "admin surface disabled", http.StatusForbidden)
				return
			}
			if r.Header.Get("Authorization") != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
