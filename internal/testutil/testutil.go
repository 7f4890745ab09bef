// Package testutil provides helpers shared by package tests: structured
// logging into t.Log and on-disk fixture workspaces.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// TempDir returns a fresh temporary directory with symlinks resolved, so
// paths built from it compare equal to canonicalized paths.
func TempDir(t testing.TB) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	return dir
}

// WriteTree creates files under root from a map of slash-separated relative
// paths to contents.
func WriteTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

// SharedWorkspace writes a two-package workspace whose packages both
// include shared/shared.rs through #[path], with different default
// features. It returns the workspace root.
func SharedWorkspace(t testing.TB) string {
	t.Helper()
	root := TempDir(t)
	WriteTree(t, root, map[string]string{
		"Cargo.toml": "[workspace]\nmembers = [\"crates/*\"]\n",
		"crates/alpha/Cargo.toml": `[package]
name = "alpha"
edition = "2021"

[features]
default = ["std"]
std = []
extra = []
`,
		"crates/alpha/src/lib.rs": "#[path = \"../../../shared/shared.rs\"]\nmod shared;\npub fn alpha() {}\n",
		"crates/beta/Cargo.toml": `[package]
name = "beta"
edition = "2018"

[features]
default = ["fast"]
fast = []
`,
		"crates/beta/src/lib.rs":    "#[path = \"../../../shared/shared.rs\"]\nmod shared;\nmod util;\n",
		"crates/beta/src/util.rs":   "pub fn util() {}\n",
		"crates/beta/src/orphan.rs": "pub fn unused() {}\n",
		"shared/shared.rs":          "pub fn shared() {}\n",
	})
	return root
}
