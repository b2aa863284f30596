// Package middleware provides HTTP middleware components.
package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/phoenixlabs/renderd/internal/types"
)

// Recovery returns middleware that recovers from panics and logs the error.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("stack", string(debug.Stack())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("Panic recovered")

				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// writeError writes a JSON error envelope. Encoding can only fail after
// the status line is out, so a failure is just logged.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := types.BatchResponse{Error: message}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Str("message", message).Msg("Failed to encode error response")
	}
}
