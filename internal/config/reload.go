// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/sio6/gateway/internal/log"
)

// Holder holds the active Config behind an atomic pointer and can reload it
// from file, publishing the new Config to any registered listener channel.
// A reload that fails validation leaves the previously active Config live.
type Holder struct {
	reloadMu sync.Mutex
	current  atomic.Pointer[Config]
	loader   *Loader
	logger   zerolog.Logger

	listenersMu sync.RWMutex
	listeners   []chan<- Config

	watcher    *fsnotify.Watcher
	configDir  string
	configFile string
}

// NewHolder builds a Holder around an already-loaded Config and the Loader
// that produced it, so Reload can repeat the same merge.
func NewHolder(initial Config, loader *Loader) *Holder {
	h := &Holder{loader: loader, logger: log.WithComponent("config")}
	h.current.Store(&initial)
	return h
}

// Get returns the currently active Config.
func (h *Holder) Get() Config {
	if cfg := h.current.Load(); cfg != nil {
		return *cfg
	}
	return Config{}
}

// Subscribe registers ch to receive every Config published by a successful
// Reload. Subscribe does not replay the current value.
func (h *Holder) Subscribe(ch chan<- Config) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notify(cfg Config) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().Msg("config reload listener channel full, dropping notification")
		}
	}
}

// Reload re-runs the Loader and, if the result validates, atomically swaps
// it in and notifies listeners. On failure the active Config is unchanged.
func (h *Holder) Reload(_ context.Context) error {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	h.logger.Info().Str(log.FieldEvent, "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str(log.FieldEvent, "config.reload_failed").Msg("failed to load configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.current.Store(&next)
	h.notify(next)

	h.logger.Info().Str(log.FieldEvent, "config.reload_success").Msg("configuration reloaded")
	return nil
}

// StartWatcher watches the config file's directory for write/create/rename
// events (covering editors that replace-by-rename) and debounces them into
// a single Reload call. A no-op if the Loader has no file path (ENV-only
// configuration).
func (h *Holder) StartWatcher(ctx context.Context) error {
	if h.loader.configPath == "" {
		h.logger.Info().Str(log.FieldEvent, "config.watcher_disabled").Msg("no config file configured, skipping watcher")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher
	h.configDir = filepath.Dir(h.loader.configPath)
	h.configFile = filepath.Base(h.loader.configPath)

	if err := watcher.Add(h.configDir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	h.logger.Info().Str(log.FieldEvent, "config.watcher_started").Str("path", h.loader.configPath).Msg("watching config file")
	go h.watchLoop(ctx)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context) {
	const debounce = 500 * time.Millisecond
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			_ = h.watcher.Close()
			return

		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != h.configFile {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().Err(err).Str(log.FieldEvent, "config.auto_reload_failed").Msg("automatic reload failed")
				}
			})

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}
