package middleware

import "net/http"

// CORS returns a middleware implementing the origin-verification policy for
// the Socket.IO polling transports (spec §4.5.6): an explicit allow-list of
// origins. An empty list allows any origin but only without credentials; a
// request carrying a Cookie header must match the list exactly to receive
// Access-Control-Allow-Credentials.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	allowAll := len(allowedOrigins) == 0
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
			continue
		}
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			hasCookie := r.Header.Get("Cookie") != ""

			switch {
			case origin == "":
				// No Origin header: not a browser cross-origin request.
			case allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				if hasCookie {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			case allowAll && !hasCookie:
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}

			w.Header().Set("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
