// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Config is the gateway's complete runtime configuration: the five
// protocol/session keys named in the wire specification, plus the ambient
// fields every production deployment needs (listen address, logging,
// metrics, CORS, tracing).
type Config struct {
	Version string `yaml:"-"`

	// Session lifecycle (spec keys).
	SessionCheckInterval time.Duration `yaml:"session_check_interval"`
	SessionExpiry        time.Duration `yaml:"session_expiry"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	EnabledProtocols     []string      `yaml:"enabled_protocols"`
	XHRPollingTimeout    time.Duration `yaml:"xhr_polling_timeout"`

	// Ambient: process and transport.
	ListenAddr     string   `yaml:"listen_addr"`
	MetricsAddr    string   `yaml:"metrics_addr"`
	SocketIOPrefix string   `yaml:"socket_io_prefix"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Ambient: observability.
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	Resource    string `yaml:"resource"` // OTEL service.name
	OTLP        OTLPConfig `yaml:"otlp"`

	// Ambient: handshake rate limiting.
	RateLimitGlobalRPS float64 `yaml:"rate_limit_global_rps"`
	RateLimitGlobalBurst int   `yaml:"rate_limit_global_burst"`
	RateLimitPerIPRPS    float64 `yaml:"rate_limit_per_ip_rps"`
	RateLimitPerIPBurst  int     `yaml:"rate_limit_per_ip_burst"`

	// ConfigStrict, when true, fails Load on any ENV key this loader
	// never consumed — catches typos in deployment manifests.
	ConfigStrict bool `yaml:"config_strict"`
}

// OTLPConfig configures the OpenTelemetry trace exporter. Exporter is one
// of "none", "grpc", "http"; matching internal/telemetry's exporter modes.
type OTLPConfig struct {
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// EnabledProtocolSet returns EnabledProtocols as a lookup set, case-folded,
// for gateway.Config.EnabledProtocols.
func (c Config) EnabledProtocolSet() map[string]bool {
	set := make(map[string]bool, len(c.EnabledProtocols))
	for _, p := range c.EnabledProtocols {
		set[normalizeProtocol(p)] = true
	}
	return set
}

// Default returns the gateway's built-in defaults, matching the wire
// specification's documented per-key defaults.
func Default() Config {
	return Config{
		SessionCheckInterval: 15 * time.Second,
		SessionExpiry:        30 * time.Second,
		HeartbeatInterval:    12 * time.Second,
		EnabledProtocols: []string{
			"websocket", "flashsocket", "xhr-polling",
			"xhr-multipart", "htmlfile", "jsonp-polling",
		},
		XHRPollingTimeout: 20 * time.Second,

		ListenAddr:     ":8080",
		MetricsAddr:    "",
		SocketIOPrefix: "/socket.io",

		LogLevel:  "info",
		LogFormat: "json",
		Resource:  "gateway",
		OTLP:      OTLPConfig{Exporter: "none"},

		RateLimitGlobalRPS:   50,
		RateLimitGlobalBurst: 100,
		RateLimitPerIPRPS:    5,
		RateLimitPerIPBurst:  10,
	}
}
