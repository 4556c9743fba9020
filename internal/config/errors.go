// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "errors"

var (
	// ErrInvalidListenAddr is returned by Validate when listen_addr is empty
	// or not a valid host:port pair.
	ErrInvalidListenAddr = errors.New("config: invalid listen_addr")
	// ErrNoEnabledProtocols is returned by Validate when enabled_protocols
	// names no transport the gateway actually implements.
	ErrNoEnabledProtocols = errors.New("config: enabled_protocols must name at least one known transport")
	// ErrUnknownProtocol is wrapped with the offending name when
	// enabled_protocols contains a name the gateway does not recognize.
	ErrUnknownProtocol = errors.New("config: unknown protocol in enabled_protocols")
	// ErrNonPositiveDuration is wrapped with the offending key when a
	// duration field is zero or negative.
	ErrNonPositiveDuration = errors.New("config: duration must be positive")
	// ErrUnconsumedEnvKey is returned by Load when ConfigStrict is set and
	// a GATEWAY_-prefixed environment variable was never read by the
	// loader — almost always a typo.
	ErrUnconsumedEnvKey = errors.New("config: environment variable set but never consumed")
)
