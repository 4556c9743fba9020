// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"github.com/go-chi/chi/v5"

	"github.com/sio6/gateway/internal/log"
)

// StackConfig configures the canonical HTTP ingress middleware stack.
type StackConfig struct {
	EnableCORS     bool
	AllowedOrigins []string

	EnableSecurityHeaders bool
	CSP                   string

	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool

	// WindowLimit, when non-zero, caps requests per client IP across the
	// whole mux with a sliding window, ahead of ratelimit's handshake-only
	// token bucket.
	WindowLimit WindowLimitConfig
}

// NewRouter constructs a chi router with the canonical middleware stack
// applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the canonical middleware stack to r. Order matters:
// Recoverer is outermost so a panic anywhere downstream is still caught.
// log.Middleware is applied last (innermost), so the request id it attaches
// is not in the context Recoverer sees.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer)
	if cfg.WindowLimit.RequestLimit > 0 {
		r.Use(WindowLimit(cfg.WindowLimit))
	}
	if cfg.EnableCORS {
		r.Use(CORS(cfg.AllowedOrigins))
	}
	if cfg.EnableSecurityHeaders {
		r.Use(SecurityHeaders(cfg.CSP))
	}
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(log.Middleware())
	}
}
