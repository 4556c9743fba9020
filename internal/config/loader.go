// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sio6/gateway/internal/log"
)

// fileConfig mirrors Config's yaml tags for strict decoding; kept distinct
// from Config so the zero value for an absent file is unambiguous (a Config
// zero value would overwrite defaults with zeros on merge).
type fileConfig struct {
	SessionCheckInterval *string  `yaml:"session_check_interval"`
	SessionExpiry        *string  `yaml:"session_expiry"`
	HeartbeatInterval    *string  `yaml:"heartbeat_interval"`
	EnabledProtocols     []string `yaml:"enabled_protocols"`
	XHRPollingTimeout    *string  `yaml:"xhr_polling_timeout"`

	ListenAddr     *string  `yaml:"listen_addr"`
	MetricsAddr    *string  `yaml:"metrics_addr"`
	SocketIOPrefix *string  `yaml:"socket_io_prefix"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	LogLevel  *string    `yaml:"log_level"`
	LogFormat *string    `yaml:"log_format"`
	Resource  *string    `yaml:"resource"`
	OTLP      *OTLPConfig `yaml:"otlp"`

	RateLimitGlobalRPS   *float64 `yaml:"rate_limit_global_rps"`
	RateLimitGlobalBurst *int     `yaml:"rate_limit_global_burst"`
	RateLimitPerIPRPS    *float64 `yaml:"rate_limit_per_ip_rps"`
	RateLimitPerIPBurst  *int     `yaml:"rate_limit_per_ip_burst"`

	ConfigStrict *bool `yaml:"config_strict"`
}

// Load builds a Config with precedence ENV > file > defaults. It enforces
// strict YAML parsing (unknown keys are a fatal error) to catch typos in
// deployment manifests early.
func (l *Loader) Load() (Config, error) {
	cfg := Default()

	if l.configPath != "" {
		fc, err := l.loadFile(l.configPath)
		if err != nil {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}
		mergeFile(&cfg, fc)
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if cfg.ConfigStrict {
		if unused := l.unusedPrefixed(); len(unused) > 0 {
			return Config{}, fmt.Errorf("%w: %s", ErrUnconsumedEnvKey, strings.Join(unused, ", "))
		}
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (l *Loader) loadFile(path string) (*fileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if err == io.EOF {
			return &fileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fc, nil
}

func mergeFile(cfg *Config, fc *fileConfig) {
	if fc == nil {
		return
	}
	setDuration(&cfg.SessionCheckInterval, fc.SessionCheckInterval)
	setDuration(&cfg.SessionExpiry, fc.SessionExpiry)
	setDuration(&cfg.HeartbeatInterval, fc.HeartbeatInterval)
	setDuration(&cfg.XHRPollingTimeout, fc.XHRPollingTimeout)
	if fc.EnabledProtocols != nil {
		cfg.EnabledProtocols = fc.EnabledProtocols
	}

	setString(&cfg.ListenAddr, fc.ListenAddr)
	setString(&cfg.MetricsAddr, fc.MetricsAddr)
	setString(&cfg.SocketIOPrefix, fc.SocketIOPrefix)
	if fc.AllowedOrigins != nil {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}

	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.Resource, fc.Resource)
	if fc.OTLP != nil {
		cfg.OTLP = *fc.OTLP
	}

	if fc.RateLimitGlobalRPS != nil {
		cfg.RateLimitGlobalRPS = *fc.RateLimitGlobalRPS
	}
	if fc.RateLimitGlobalBurst != nil {
		cfg.RateLimitGlobalBurst = *fc.RateLimitGlobalBurst
	}
	if fc.RateLimitPerIPRPS != nil {
		cfg.RateLimitPerIPRPS = *fc.RateLimitPerIPRPS
	}
	if fc.RateLimitPerIPBurst != nil {
		cfg.RateLimitPerIPBurst = *fc.RateLimitPerIPBurst
	}
	if fc.ConfigStrict != nil {
		cfg.ConfigStrict = *fc.ConfigStrict
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// setDuration parses v the same way envDuration does — a bare integer is
// seconds (matching the wire specification's keys), anything else is a Go
// duration string ("30s", "1m"). A malformed value is logged and the
// existing default is kept rather than failing the whole load.
func setDuration(dst *time.Duration, v *string) {
	if v == nil {
		return
	}
	if secs, err := strconv.Atoi(*v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		log.WithComponent("config").Warn().
			Str("value", *v).
			Msg("invalid duration in config file, keeping previous value")
		return
	}
	*dst = d
}

func (l *Loader) mergeEnv(cfg *Config) {
	cfg.SessionCheckInterval = l.envDuration(envPrefix+"SESSION_CHECK_INTERVAL", cfg.SessionCheckInterval)
	cfg.SessionExpiry = l.envDuration(envPrefix+"SESSION_EXPIRY", cfg.SessionExpiry)
	cfg.HeartbeatInterval = l.envDuration(envPrefix+"HEARTBEAT_INTERVAL", cfg.HeartbeatInterval)
	cfg.XHRPollingTimeout = l.envDuration(envPrefix+"XHR_POLLING_TIMEOUT", cfg.XHRPollingTimeout)
	cfg.EnabledProtocols = l.envStringSlice(envPrefix+"ENABLED_PROTOCOLS", cfg.EnabledProtocols)

	cfg.ListenAddr = l.envString(envPrefix+"LISTEN_ADDR", cfg.ListenAddr)
	cfg.MetricsAddr = l.envString(envPrefix+"METRICS_ADDR", cfg.MetricsAddr)
	cfg.SocketIOPrefix = l.envString(envPrefix+"SOCKET_IO_PREFIX", cfg.SocketIOPrefix)
	cfg.AllowedOrigins = l.envStringSlice(envPrefix+"ALLOWED_ORIGINS", cfg.AllowedOrigins)

	cfg.LogLevel = l.envString(envPrefix+"LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = l.envString(envPrefix+"LOG_FORMAT", cfg.LogFormat)
	cfg.Resource = l.envString(envPrefix+"RESOURCE", cfg.Resource)
	cfg.OTLP.Exporter = l.envString(envPrefix+"OTLP_EXPORTER", cfg.OTLP.Exporter)
	cfg.OTLP.Endpoint = l.envString(envPrefix+"OTLP_ENDPOINT", cfg.OTLP.Endpoint)
	cfg.OTLP.Insecure = l.envBool(envPrefix+"OTLP_INSECURE", cfg.OTLP.Insecure)

	cfg.RateLimitGlobalRPS = l.envFloat(envPrefix+"RATE_LIMIT_GLOBAL_RPS", cfg.RateLimitGlobalRPS)
	cfg.RateLimitGlobalBurst = l.envInt(envPrefix+"RATE_LIMIT_GLOBAL_BURST", cfg.RateLimitGlobalBurst)
	cfg.RateLimitPerIPRPS = l.envFloat(envPrefix+"RATE_LIMIT_PER_IP_RPS", cfg.RateLimitPerIPRPS)
	cfg.RateLimitPerIPBurst = l.envInt(envPrefix+"RATE_LIMIT_PER_IP_BURST", cfg.RateLimitPerIPBurst)

	cfg.ConfigStrict = l.envBool(envPrefix+"CONFIG_STRICT", cfg.ConfigStrict)
}
