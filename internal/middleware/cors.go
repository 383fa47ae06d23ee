// Package middleware provides HTTP middleware for the helpdesk API.
package middleware

import "net/http"

// CORS returns middleware that handles CORS headers for the chat frontend.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			explicit := false
			wildcard := false
			for _, o := range allowedOrigins {
				switch o {
				case "*":
					wildcard = true
				case origin:
					explicit = true
				}
			}

			if explicit || wildcard {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				// Credentials only for explicitly listed origins. Combining
				// Allow-Credentials with a wildcard-echoed origin enables CSRF.
				if explicit {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
