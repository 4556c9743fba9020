// Package ratelimit bounds the rate of new session handshakes: a global
// token bucket plus a per-client-IP bucket, both backed by
// golang.org/x/time/rate. Unlike a general API limiter, this only guards
// SessionStore.Create — once a session exists, polling/streaming traffic on
// it is unthrottled.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var handshakeRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "handshake_rate_limited_total",
		Help:      "Total session handshake requests rejected by the rate limiter",
	},
	[]string{"limit_type"},
)

// Config holds the global and per-IP handshake rate limits.
type Config struct {
	GlobalRate  rate.Limit
	GlobalBurst int

	PerIPRate  rate.Limit
	PerIPBurst int

	// CleanupInterval bounds how long a quiet IP's bucket is retained.
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults for a public-facing gateway.
func DefaultConfig() Config {
	return Config{
		GlobalRate:      50,
		GlobalBurst:     100,
		PerIPRate:       5,
		PerIPBurst:      10,
		CleanupInterval: 5 * time.Minute,
	}
}

// Limiter gates session-creation requests.
type Limiter struct {
	config Config

	global *rate.Limiter

	mu          sync.Mutex
	perIP       map[string]*rate.Limiter
	lastCleanup time.Time
}

// New builds a Limiter from cfg.
func New(cfg Config) *Limiter {
	return &Limiter{
		config:      cfg,
		global:      rate.NewLimiter(cfg.GlobalRate, cfg.GlobalBurst),
		perIP:       make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}
}

// Allow reports whether a handshake from clientIP may proceed.
func (l *Limiter) Allow(clientIP string) bool {
	if !l.global.Allow() {
		handshakeRejected.WithLabelValues("global").Inc()
		return false
	}

	if !l.ipLimiter(clientIP).Allow() {
		handshakeRejected.WithLabelValues("per_ip").Inc()
		return false
	}

	l.maybeCleanup()
	return true
}

func (l *Limiter) ipLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.perIP[ip]
	if !ok {
		lim = rate.NewLimiter(l.config.PerIPRate, l.config.PerIPBurst)
		l.perIP[ip] = lim
	}
	return lim
}

func (l *Limiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastCleanup) < l.config.CleanupInterval {
		return
	}
	l.perIP = make(map[string]*rate.Limiter)
	l.lastCleanup = time.Now()
}

// Middleware wraps next, rejecting handshake requests over budget with 429.
// Only requests that would create a new session (no session id in the
// matched remainder) should be routed through this; callers wrap just the
// handshake path, not the whole Socket.IO mount.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ClientIP(r)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the originating client address, preferring
// X-Forwarded-For / X-Real-IP (as set by a trusted reverse proxy) over
// RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := indexByte(xff, ','); idx >= 0 {
			xff = xff[:idx]
		}
		if ip := trim(xff); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func trim(s string) string {
	start, end := 0, len(s)
	for start < end && s[start] == ' ' {
		start++
	}
	for end > start && s[end-1] == ' ' {
		end--
	}
	return s[start:end]
}
