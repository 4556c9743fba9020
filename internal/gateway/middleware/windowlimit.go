package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// WindowLimitConfig configures a sliding-window per-IP request ceiling
// applied across the whole mux, ahead of the handshake-only token-bucket
// limiter in internal/gateway/ratelimit: this one guards every endpoint
// (including /healthz, /readyz, /metrics and established-session polling),
// the handshake limiter only guards new-session creation.
type WindowLimitConfig struct {
	RequestLimit int
	WindowSize   time.Duration
}

// WindowLimit builds a sliding-window rate limiter keyed by client IP.
func WindowLimit(cfg WindowLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(cfg.WindowSize.Seconds())))
			http.Error(w, "too many requests", http.StatusTooManyRequests)
		}),
	)
}
