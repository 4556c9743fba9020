// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/sio6/gateway/internal/config"
	"github.com/sio6/gateway/internal/log"
)

// PerformStartupChecks validates the loaded configuration before the gateway
// starts accepting connections.
func PerformStartupChecks(ctx context.Context, cfg config.Config) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkTargetedValidations(logger, cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

// checkTargetedValidations re-runs the structural checks config.Validate
// already performed, plus the port-range check Validate leaves to
// net.SplitHostPort's caller, and logs each as it passes.
func checkTargetedValidations(logger zerolog.Logger, cfg config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}

	_, port, err := net.SplitHostPort(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", cfg.ListenAddr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, cfg.ListenAddr)
	}
	logger.Info().Str("addr", cfg.ListenAddr).Msg("listen address is valid")

	protocols := cfg.EnabledProtocolSet()
	logger.Info().Int("count", len(protocols)).Msg("enabled protocols validated")

	return nil
}
