// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/sio6/gateway/internal/log"
)

// envPrefix namespaces every environment variable this loader recognizes,
// so Load (via unusedPrefixed, when ConfigStrict is set) can flag
// GATEWAY_-prefixed typos that never mapped to a field.
const envPrefix = "GATEWAY_"

type envLookupFunc func(key string) (string, bool)

var protocolCaser = cases.Fold()

func normalizeProtocol(p string) string {
	return protocolCaser.String(strings.TrimSpace(p))
}

// Loader merges environment variables over a YAML file over built-in
// defaults, tracking which ENV keys it actually consumed so Load can catch
// typos when ConfigStrict is set.
type Loader struct {
	configPath string
	version    string

	consumed map[string]struct{}
	lookup   envLookupFunc
	environ  func() []string
}

// NewLoader returns a Loader reading configPath (ignored if empty) and the
// process environment.
func NewLoader(configPath, version string) *Loader {
	return NewLoaderWithEnv(configPath, version, os.LookupEnv, os.Environ)
}

// NewLoaderWithEnv is NewLoader with an injected environment source, for
// tests that need to control what "environment variables" are visible.
func NewLoaderWithEnv(configPath, version string, lookup envLookupFunc, environ func() []string) *Loader {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if environ == nil {
		environ = os.Environ
	}
	return &Loader{
		configPath: configPath,
		version:    version,
		consumed:   make(map[string]struct{}),
		lookup:     lookup,
		environ:    environ,
	}
}

func (l *Loader) envLookup(key string) (string, bool) {
	l.consumed[key] = struct{}{}
	return l.lookup(key)
}

func (l *Loader) envString(key string, cur string) string {
	v, ok := l.envLookup(key)
	if !ok || v == "" {
		return cur
	}
	return v
}

func (l *Loader) envStringSlice(key string, cur []string) []string {
	v, ok := l.envLookup(key)
	if !ok || v == "" {
		return cur
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (l *Loader) envBool(key string, cur bool) bool {
	v, ok := l.envLookup(key)
	if !ok || v == "" {
		return cur
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.WithComponent("config").Warn().
			Str("key", key).Str("value", v).
			Msg("invalid boolean in environment variable, keeping previous value")
		return cur
	}
	return b
}

func (l *Loader) envFloat(key string, cur float64) float64 {
	v, ok := l.envLookup(key)
	if !ok || v == "" {
		return cur
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.WithComponent("config").Warn().
			Str("key", key).Str("value", v).
			Msg("invalid float in environment variable, keeping previous value")
		return cur
	}
	return f
}

func (l *Loader) envInt(key string, cur int) int {
	v, ok := l.envLookup(key)
	if !ok || v == "" {
		return cur
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.WithComponent("config").Warn().
			Str("key", key).Str("value", v).
			Msg("invalid integer in environment variable, keeping previous value")
		return cur
	}
	return i
}

func (l *Loader) envDuration(key string, cur time.Duration) time.Duration {
	v, ok := l.envLookup(key)
	if !ok || v == "" {
		return cur
	}
	// Bare integers are seconds, matching the wire specification's keys
	// ("default 15" etc. all mean seconds, not Go duration strings).
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.WithComponent("config").Warn().
			Str("key", key).Str("value", v).
			Msg("invalid duration in environment variable, keeping previous value")
		return cur
	}
	return d
}

// unusedPrefixed reports every GATEWAY_-prefixed environment variable that
// was set but never consumed via envLookup.
func (l *Loader) unusedPrefixed() []string {
	var unused []string
	for _, kv := range l.environ() {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, envPrefix) {
			continue
		}
		if _, ok := l.consumed[key]; !ok {
			unused = append(unused, key)
		}
	}
	return unused
}
