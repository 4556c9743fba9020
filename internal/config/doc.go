// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads and hot-reloads the gateway's configuration: a YAML
// file merged with environment overrides (ENV beats file beats defaults),
// producing an immutable Config snapshot behind an atomic pointer.
package config
