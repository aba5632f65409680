// Package testutil provides shared test helpers for credbroker: a capturing logger,
// redaction assertions and a config.yaml builder.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/systmms/credbroker/internal/config"
)

// TestConfigBuilder builds a config.yaml for a test.
//
// Example usage:
//
//	path := NewTestConfig(t).
//	    WithAuthority("basic").
//	    WithInteractive("never").
//	    Write()
type TestConfigBuilder struct {
	t      *testing.T
	def    config.Definition
	tmpDir string
}

// NewTestConfig starts from an empty file, which loads as the built-in defaults.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()
	return &TestConfigBuilder{t: t, tmpDir: t.TempDir()}
}

func (b *TestConfigBuilder) WithAuthority(authority string) *TestConfigBuilder {
	b.def.Authority = authority
	return b
}

func (b *TestConfigBuilder) WithInteractive(mode string) *TestConfigBuilder {
	b.def.Interactive = mode
	return b
}

func (b *TestConfigBuilder) WithNamespace(namespace string) *TestConfigBuilder {
	b.def.Namespace = namespace
	return b
}

// With applies arbitrary changes for settings without a dedicated method.
func (b *TestConfigBuilder) With(fn func(*config.Definition)) *TestConfigBuilder {
	fn(&b.def)
	return b
}

// Build returns the definition as it will be written.
func (b *TestConfigBuilder) Build() config.Definition {
	return b.def
}

// Write writes config.yaml into a per-test directory and returns its path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	data, err := yaml.Marshal(&b.def)
	if err != nil {
		b.t.Fatalf("Failed to marshal test config: %v", err)
	}
	path := filepath.Join(b.tmpDir, "config.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		b.t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}
