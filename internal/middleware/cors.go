package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// CORSConfig holds CORS configuration options.
type CORSConfig struct {
	// AllowedOrigins is a list of allowed origins. If empty, all
	// cross-origin requests are rejected.
	AllowedOrigins []string
}

// CORS returns middleware that adds CORS headers to responses. Only
// origins on the allow list get headers; with an empty list the browser
// blocks every cross-origin caller.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowedSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowedSet[origin] = struct{}{}
	}

	if len(allowedSet) == 0 {
		log.Warn().Msg("CORS_ALLOWED_ORIGINS not set - all cross-origin requests will be rejected")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			var allowOrigin string
			if origin != "" && len(allowedSet) > 0 {
				if _, ok := allowedSet[origin]; ok {
					allowOrigin = origin
				} else {
					log.Debug().Str("origin", origin).Msg("CORS request from non-allowed origin")
				}
			}

			if allowOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
				w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("X-Content-Type-Options", "nosniff")
				w.Header().Set("Cache-Control", "no-store, max-age=0")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders returns middleware that adds security-related HTTP headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
		w.Header().Set("X-Frame-Options", "DENY")

		next.ServeHTTP(w, r)
	})
}
