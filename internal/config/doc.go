// Package config loads and validates the TOML configuration shared by the
// daemon and CLI. Defaults live in defaults.go; Validate fails fast on
// missing provider credentials so a daemon never starts without its AI and
// vector-index boundaries satisfied.
package config
