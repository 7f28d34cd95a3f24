// Package api implements the Tome REST API using chi.
package api

import (
	"net/http"

	"github.com/starford/tome/internal/apperr"
)

// RequireAI returns middleware that rejects requests with 503 while enabled
// reports false. It guards routes that call the generative-text API.
func RequireAI(enabled func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled() {
				writeJSON(w, http.StatusServiceUnavailable, errorBody(apperr.ErrAIDisabled.Error()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
