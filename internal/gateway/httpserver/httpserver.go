// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package httpserver assembles the gateway's HTTP surface: the Socket.IO
// catch-all mount, operational endpoints (/healthz, /readyz, /metrics), and
// the shared middleware stack that guards all of them.
package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sio6/gateway/internal/gateway"
	"github.com/sio6/gateway/internal/gateway/middleware"
	"github.com/sio6/gateway/internal/gateway/ratelimit"
	"github.com/sio6/gateway/internal/health"
	"github.com/sio6/gateway/internal/log"
)

// Config assembles the pieces New needs to build the gateway's router.
type Config struct {
	Stack          middleware.StackConfig
	RateLimit      ratelimit.Config
	SocketIOPrefix string // e.g. "/socket.io", mounted as SocketIOPrefix+"/*"
}

// DefaultSocketIOPrefix matches the path the reference Socket.IO 0.6 client
// library hits by default.
const DefaultSocketIOPrefix = "/socket.io"

// New builds the chi.Mux serving the gateway: the Socket.IO transport mount
// (rate-limited on the handshake leg only), health/readiness probes backed
// by health, and a Prometheus scrape endpoint.
func New(rt *gateway.Router, healthMgr *health.Manager, cfg Config) *chi.Mux {
	prefix := cfg.SocketIOPrefix
	if prefix == "" {
		prefix = DefaultSocketIOPrefix
	}

	r := middleware.NewRouter(cfg.Stack)

	r.Get("/healthz", healthMgr.ServeHealth)
	r.Get("/readyz", healthMgr.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	limiter := ratelimit.New(cfg.RateLimit)
	r.Handle(prefix+"/*", handshakeGuard(limiter, rt.Handler()))

	return r
}

// handshakeGuard applies limiter only to requests that would create a new
// session (no session id segment in the wildcard remainder); established
// sessions poll or stream through unthrottled, matching
// ratelimit.Limiter's documented scope.
func handshakeGuard(limiter *ratelimit.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if isHandshake(chi.URLParam(r, "*")) {
			ip := ratelimit.ClientIP(r)
			if !limiter.Allow(ip) {
				log.WithComponent("gateway.httpserver").Warn().
					Str(log.FieldEvent, "handshake.rate_limited").
					Str("client_ip", ip).
					Msg("rejecting session handshake: rate limit exceeded")
				w.Header().Set("Retry-After", "1")
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
		}
		next(w, r)
	}
}

// isHandshake reports whether rest (the wildcard remainder after the
// Socket.IO mount point) names only a protocol, with no session id segment
// — the shape gateway.Router.ServeHTTP treats as a request to create a
// fresh session.
func isHandshake(rest string) bool {
	segments := 0
	for _, p := range strings.Split(rest, "/") {
		if p != "" {
			segments++
		}
	}
	return segments <= 1
}
