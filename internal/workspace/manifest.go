// Package workspace turns a Cargo workspace on disk into a crate-graph
// snapshot: it reads manifests, discovers targets, resolves features, walks
// each crate's module tree and orders crates by their dependencies. The
// result is buffered in a store.BatchedStore for a single commit.
package workspace

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ManifestFile is the file name of a package or workspace manifest.
const ManifestFile = "Cargo.toml"

// Manifest is the subset of Cargo.toml the loader understands.
type Manifest struct {
	Package           *PackageSection     `toml:"package"`
	Workspace         *WorkspaceSection   `toml:"workspace"`
	Lib               *TargetSection      `toml:"lib"`
	Bin               []TargetSection     `toml:"bin"`
	Test              []TargetSection     `toml:"test"`
	Example           []TargetSection     `toml:"example"`
	Bench             []TargetSection     `toml:"bench"`
	Features          map[string][]string `toml:"features"`
	Dependencies      map[string]any      `toml:"dependencies"`
	DevDependencies   map[string]any      `toml:"dev-dependencies"`
	BuildDependencies map[string]any      `toml:"build-dependencies"`
}

type PackageSection struct {
	Name    string `toml:"name"`
	Edition any    `toml:"edition"` // "2021" or { workspace = true }
	Build   any    `toml:"build"`   // path, or false to disable build.rs
}

type WorkspaceSection struct {
	Members []string `toml:"members"`
	Exclude []string `toml:"exclude"`
	Package struct {
		Edition string `toml:"edition"`
	} `toml:"package"`
}

type TargetSection struct {
	Name             string   `toml:"name"`
	Path             string   `toml:"path"`
	ProcMacro        bool     `toml:"proc-macro"`
	RequiredFeatures []string `toml:"required-features"`
}

// Dependency is one entry of a [dependencies] table, normalized from either
// the string or the inline-table form.
type Dependency struct {
	Name            string // key in the dependent's manifest
	Package         string // real package name, differs from Name when renamed
	Path            string // relative path of a local dependency, empty for registry deps
	Optional        bool
	DefaultFeatures bool
	Features        []string
}

// ReadManifest parses the Cargo.toml at path.
func ReadManifest(path string) (*Manifest, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, data, nil
}

// EditionFor returns the package edition, falling back to the workspace
// edition when the package inherits it, and to "2015" when unset.
func (m *Manifest) EditionFor(ws *WorkspaceSection) string {
	if m.Package != nil {
		switch e := m.Package.Edition.(type) {
		case string:
			return e
		case map[string]any:
			if inherit, _ := e["workspace"].(bool); inherit && ws != nil && ws.Package.Edition != "" {
				return ws.Package.Edition
			}
		}
	}
	return "2015"
}

// BuildScript returns the configured build script path. The bool is false
// when the manifest disables build scripts with build = false.
func (m *Manifest) BuildScript() (string, bool) {
	if m.Package == nil {
		return "", true
	}
	switch b := m.Package.Build.(type) {
	case bool:
		return "", b
	case string:
		return b, true
	}
	return "", true
}

// Deps returns the normal dependencies sorted by key.
func (m *Manifest) Deps() []Dependency {
	return parseDeps(m.Dependencies)
}

func parseDeps(table map[string]any) []Dependency {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	deps := make([]Dependency, 0, len(keys))
	for _, k := range keys {
		d := Dependency{Name: k, Package: k, DefaultFeatures: true}
		if spec, ok := table[k].(map[string]any); ok {
			d.Path, _ = spec["path"].(string)
			d.Optional, _ = spec["optional"].(bool)
			if pkg, ok := spec["package"].(string); ok && pkg != "" {
				d.Package = pkg
			}
			if df, ok := spec["default-features"].(bool); ok {
				d.DefaultFeatures = df
			}
			if fs, ok := spec["features"].([]any); ok {
				for _, f := range fs {
					if s, ok := f.(string); ok {
						d.Features = append(d.Features, s)
					}
				}
			}
		}
		deps = append(deps, d)
	}
	return deps
}

// crateName converts a package name into the identifier rustc uses.
func crateName(pkg string) string {
	return strings.ReplaceAll(pkg, "-", "_")
}
