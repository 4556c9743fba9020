// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sio6/gateway/internal/config"
	"github.com/sio6/gateway/internal/gateway"
	"github.com/sio6/gateway/internal/gateway/httpserver"
	"github.com/sio6/gateway/internal/gateway/middleware"
	"github.com/sio6/gateway/internal/gateway/ratelimit"
	"github.com/sio6/gateway/internal/health"
	"github.com/sio6/gateway/internal/log"
	"github.com/sio6/gateway/internal/session"
	"github.com/sio6/gateway/internal/telemetry"
	"github.com/sio6/gateway/internal/version"
)

// maxConns bounds concurrent accepted connections; long-lived polling and
// streaming transports otherwise have no natural ceiling.
const maxConns = 10000

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	log.Configure(log.Config{Level: "info", Service: "gateway", Version: version.Version})
	logger := log.WithComponent("gateway")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().Err(err).Str(log.FieldEvent, "config.load_failed").Msg("failed to load configuration")
	}

	configureLogger(cfg, version.Version)
	logger = log.WithComponent("gateway")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Str(log.FieldEvent, "startup.check_failed").Msg("startup checks failed")
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.OTLP.Exporter != "" && cfg.OTLP.Exporter != "none",
		ServiceName:    cfg.Resource,
		ServiceVersion: version.Version,
		ExporterType:   cfg.OTLP.Exporter,
		Endpoint:       cfg.OTLP.Endpoint,
		Insecure:       cfg.OTLP.Insecure,
		SamplingRate:   1.0,
	})
	if err != nil {
		logger.Fatal().Err(err).Str(log.FieldEvent, "telemetry.init_failed").Msg("failed to initialize tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	holder := config.NewHolder(cfg, loader)

	store := session.NewStore()
	healthMgr := health.NewManager(version.Version)
	healthMgr.RegisterChecker(health.NewSessionStoreChecker(store.Len))

	var lastSweep atomicTime
	healthMgr.RegisterChecker(health.NewSweeperChecker(lastSweep.Get, 2*cfg.SessionCheckInterval))

	rt := gateway.NewRouter(store, newEchoConnection, gateway.Config{
		SessionExpiry:     cfg.SessionExpiry,
		HeartbeatInterval: cfg.HeartbeatInterval,
		XHRPollingTimeout: cfg.XHRPollingTimeout,
		EnabledProtocols:  cfg.EnabledProtocolSet(),
	})

	mux := httpserver.New(rt, healthMgr, httpserver.Config{
		Stack: middleware.StackConfig{
			EnableCORS:            true,
			AllowedOrigins:        cfg.AllowedOrigins,
			EnableSecurityHeaders: true,
			EnableMetrics:         true,
			TracingService:        cfg.Resource,
			EnableLogging:         true,
			WindowLimit: middleware.WindowLimitConfig{
				RequestLimit: int(cfg.RateLimitPerIPRPS * 60),
				WindowSize:   time.Minute,
			},
		},
		RateLimit: ratelimit.Config{
			GlobalRate:      rate.Limit(cfg.RateLimitGlobalRPS),
			GlobalBurst:     cfg.RateLimitGlobalBurst,
			PerIPRate:       rate.Limit(cfg.RateLimitPerIPRPS),
			PerIPBurst:      cfg.RateLimitPerIPBurst,
			CleanupInterval: 5 * time.Minute,
		},
		SocketIOPrefix: cfg.SocketIOPrefix,
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.ListenAddr).Msg("failed to bind listen address")
	}
	ln = netutil.LimitListener(ln, maxConns)

	g, ctx := errgroup.WithContext(ctx)

	if err := holder.StartWatcher(ctx); err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
	}

	g.Go(func() error {
		logger.Info().
			Str(log.FieldEvent, "startup").
			Str("version", version.Version).
			Str("commit", version.Commit).
			Str("addr", cfg.ListenAddr).
			Msg("starting gateway")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		runSweeper(ctx, store, holder, &lastSweep)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Str(log.FieldEvent, "server.failed").Msg("gateway exited with error")
	}

	logger.Info().Msg("gateway exiting")
}

func configureLogger(cfg config.Config, version string) {
	var out = os.Stdout
	if cfg.LogFormat == "console" || cfg.LogFormat == "text" {
		log.Configure(log.Config{
			Level:   cfg.LogLevel,
			Output:  zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339},
			Service: cfg.Resource,
			Version: version,
		})
		return
	}
	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Output:  out,
		Service: cfg.Resource,
		Version: version,
	})
}

// runSweeper drives the session expiry sweep on cfg.SessionCheckInterval,
// re-reading the interval from holder on every tick so a config reload
// takes effect without restarting the goroutine.
func runSweeper(ctx context.Context, store *session.Store, holder *config.Holder, lastSweep *atomicTime) {
	interval := holder.Get().SessionCheckInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Expire(time.Now())
			lastSweep.Set(time.Now())

			if next := holder.Get().SessionCheckInterval; next > 0 && next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// atomicTime guards a single time.Time for cross-goroutine reads from the
// sweeper loop (writer) and the SweeperChecker (reader).
type atomicTime struct {
	mu sync.Mutex
	t  time.Time
}

func (a *atomicTime) Set(t time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.t = t
}

func (a *atomicTime) Get() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t
}
