package main

import (
	"context"
	"testing"
	"time"

	"github.com/sio6/gateway/internal/config"
	"github.com/sio6/gateway/internal/session"
)

func TestAtomicTimeSetGet(t *testing.T) {
	var at atomicTime

	if got := at.Get(); !got.IsZero() {
		t.Fatalf("Get() on unset atomicTime = %v, want zero value", got)
	}

	now := time.Now()
	at.Set(now)
	if got := at.Get(); !got.Equal(now) {
		t.Errorf("Get() = %v, want %v", got, now)
	}
}

func TestRunSweeperExpiresSessionsAndStampsLastSweep(t *testing.T) {
	store := session.NewStore()
	sess, err := store.Create(10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	_ = sess

	cfg := config.Default()
	cfg.SessionCheckInterval = 5 * time.Millisecond
	loader := config.NewLoader("", "test")
	holder := config.NewHolder(cfg, loader)

	var lastSweep atomicTime
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	runSweeper(ctx, store, holder, &lastSweep)

	if lastSweep.Get().IsZero() {
		t.Error("lastSweep was never stamped by the sweeper loop")
	}
	if store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0 after sweeper expired the session", store.Len())
	}
}

func TestConfigureLoggerAcceptsJSONAndConsoleFormats(t *testing.T) {
	for _, format := range []string{"json", "console", "text", ""} {
		t.Run(format, func(t *testing.T) {
			cfg := config.Default()
			cfg.LogFormat = format
			cfg.LogLevel = "info"
			configureLogger(cfg, "test")
		})
	}
}
