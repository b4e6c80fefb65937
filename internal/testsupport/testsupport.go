// Package testsupport holds helpers shared by package tests.
package testsupport

import (
	"testing"

	"subweave/internal/config"
)

// NewConfig returns a default configuration rooted in a per-test temp
// directory, with credentials filled so validation passes.
func NewConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.DataDir = dir
	cfg.LogDir = dir
	cfg.AI.APIKey = "test-key"
	cfg.Memory.IndexURL = "https://index.invalid"
	cfg.Memory.IndexName = "subweave-test"
	return cfg
}
