// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// Manager persists a Config to disk as YAML, durably: renameio writes to a
// temp file in the same directory, fsyncs, then atomically renames over the
// target, so a crash mid-write never leaves a torn config file behind.
type Manager struct {
	path string
}

// NewManager returns a Manager that writes to path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// WriteDefault renders Default() as YAML and writes it to the Manager's
// path, failing if a file already exists there (cmd/configgen is meant to
// seed a fresh deployment, not silently clobber an operator's edits).
func (m *Manager) WriteDefault() error {
	if _, err := os.Stat(m.path); err == nil {
		return fmt.Errorf("config: %s already exists, refusing to overwrite", m.path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config path: %w", err)
	}
	return m.save(toFileConfig(Default()))
}

func (m *Manager) save(fc fileConfig) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o750); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	pending, err := renameio.NewPendingFile(m.path)
	if err != nil {
		return fmt.Errorf("create pending config file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	enc := yaml.NewEncoder(pending)
	enc.SetIndent(2)
	if err := enc.Encode(fc); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close yaml encoder: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace config file: %w", err)
	}
	return nil
}

func toFileConfig(cfg Config) fileConfig {
	sessionCheck := cfg.SessionCheckInterval.String()
	sessionExpiry := cfg.SessionExpiry.String()
	heartbeat := cfg.HeartbeatInterval.String()
	xhrTimeout := cfg.XHRPollingTimeout.String()
	listenAddr := cfg.ListenAddr
	metricsAddr := cfg.MetricsAddr
	socketIOPrefix := cfg.SocketIOPrefix
	logLevel := cfg.LogLevel
	logFormat := cfg.LogFormat
	resource := cfg.Resource
	globalRPS := cfg.RateLimitGlobalRPS
	globalBurst := cfg.RateLimitGlobalBurst
	perIPRPS := cfg.RateLimitPerIPRPS
	perIPBurst := cfg.RateLimitPerIPBurst
	configStrict := cfg.ConfigStrict
	otlp := cfg.OTLP

	return fileConfig{
		SessionCheckInterval: &sessionCheck,
		SessionExpiry:        &sessionExpiry,
		HeartbeatInterval:    &heartbeat,
		EnabledProtocols:     cfg.EnabledProtocols,
		XHRPollingTimeout:    &xhrTimeout,

		ListenAddr:     &listenAddr,
		MetricsAddr:    &metricsAddr,
		SocketIOPrefix: &socketIOPrefix,
		AllowedOrigins: cfg.AllowedOrigins,

		LogLevel:  &logLevel,
		LogFormat: &logFormat,
		Resource:  &resource,
		OTLP:      &otlp,

		RateLimitGlobalRPS:   &globalRPS,
		RateLimitGlobalBurst: &globalBurst,
		RateLimitPerIPRPS:    &perIPRPS,
		RateLimitPerIPBurst:  &perIPBurst,

		ConfigStrict: &configStrict,
	}
}
