// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"net"
)

var knownProtocols = map[string]bool{
	"websocket":     true,
	"flashsocket":   true,
	"xhr-polling":   true,
	"xhr-multipart": true,
	"htmlfile":      true,
	"jsonp-polling": true,
}

// Validate checks a fully-merged Config for internal consistency. It is run
// once after Load and again after every hot reload; a reload that fails
// validation leaves the previously active Config in place.
func Validate(cfg Config) error {
	if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidListenAddr, cfg.ListenAddr, err)
	}

	if len(cfg.EnabledProtocols) == 0 {
		return ErrNoEnabledProtocols
	}
	for _, p := range cfg.EnabledProtocols {
		name := normalizeProtocol(p)
		if !knownProtocols[name] {
			return fmt.Errorf("%w: %q", ErrUnknownProtocol, p)
		}
	}

	for key, d := range map[string]interface {
		Seconds() float64
	}{
		"session_check_interval": cfg.SessionCheckInterval,
		"session_expiry":         cfg.SessionExpiry,
		"heartbeat_interval":     cfg.HeartbeatInterval,
		"xhr_polling_timeout":    cfg.XHRPollingTimeout,
	} {
		if d.Seconds() <= 0 {
			return fmt.Errorf("%w: %s", ErrNonPositiveDuration, key)
		}
	}

	switch cfg.OTLP.Exporter {
	case "", "none", "grpc", "http":
	default:
		return fmt.Errorf("config: unknown otlp.exporter %q (want none, grpc, or http)", cfg.OTLP.Exporter)
	}

	return nil
}
