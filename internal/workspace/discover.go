package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Package is one Cargo package taking part in the load.
type Package struct {
	Name         string
	Dir          string // canonical package directory
	ManifestPath string
	Edition      string
	IsMember     bool // workspace member, as opposed to a path dependency
	Manifest     *Manifest
	Deps         []Dependency
	Targets      []Target

	// Features is the resolved enabled feature set, sorted.
	Features []string
}

// Declared lists every feature the package could enable: the [features]
// keys plus optional dependencies without a dep: reference.
func (p *Package) Declared() []string {
	names := make(map[string]bool, len(p.Manifest.Features))
	for f := range p.Manifest.Features {
		names[f] = true
	}
	for _, d := range p.Deps {
		if d.Optional && !p.hasDepSyntax(d.Name) {
			names[d.Name] = true
		}
	}
	out := make([]string, 0, len(names))
	for f := range names {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// hasDepSyntax reports whether any feature refers to dep via "dep:name",
// which suppresses the implicit feature of the same name.
func (p *Package) hasDepSyntax(dep string) bool {
	for _, entries := range p.Manifest.Features {
		for _, e := range entries {
			if e == "dep:"+dep {
				return true
			}
		}
	}
	return false
}

// matcher is a compiled set of slash-separated globs.
type matcher struct {
	globs []glob.Glob
}

func newMatcher(patterns []string) (*matcher, error) {
	m := &matcher{}
	for _, pattern := range patterns {
		g, err := glob.Compile(strings.TrimSuffix(filepath.ToSlash(pattern), "/"), '/')
		if err != nil {
			return nil, fmt.Errorf("compile glob %q: %w", pattern, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Match reports whether relPath, or any of its parent directories, matches.
func (m *matcher) Match(relPath string) bool {
	if m == nil {
		return false
	}
	relPath = filepath.ToSlash(relPath)
	for p := relPath; p != "." && p != ""; p = parentDir(p) {
		for _, g := range m.globs {
			if g.Match(p) {
				return true
			}
		}
	}
	return false
}

func parentDir(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

// skipDir reports directories the loader never descends into.
func skipDir(name string) bool {
	return name == "target" || (strings.HasPrefix(name, ".") && name != ".")
}

// discoverPackages reads the root manifest and returns the workspace
// members plus every package reachable through path dependencies, sorted by
// directory. Manifest contents are returned for fingerprinting.
func discoverPackages(root string, ignore *matcher) ([]*Package, map[string][]byte, error) {
	rootManifest, data, err := ReadManifest(filepath.Join(root, ManifestFile))
	if err != nil {
		return nil, nil, err
	}
	if rootManifest.Package == nil && rootManifest.Workspace == nil {
		return nil, nil, fmt.Errorf("%s: neither [package] nor [workspace]", filepath.Join(root, ManifestFile))
	}
	manifests := map[string][]byte{filepath.Join(root, ManifestFile): data}
	ws := rootManifest.Workspace

	byDir := map[string]*Package{}
	var queue []string

	add := func(dir string, m *Manifest, member bool) error {
		if existing, ok := byDir[dir]; ok {
			existing.IsMember = existing.IsMember || member
			return nil
		}
		if m == nil {
			var raw []byte
			m, raw, err = ReadManifest(filepath.Join(dir, ManifestFile))
			if err != nil {
				return err
			}
			manifests[filepath.Join(dir, ManifestFile)] = raw
		}
		if m.Package == nil {
			return fmt.Errorf("%s: missing [package]", filepath.Join(dir, ManifestFile))
		}
		byDir[dir] = &Package{
			Name:         m.Package.Name,
			Dir:          dir,
			ManifestPath: filepath.Join(dir, ManifestFile),
			Edition:      m.EditionFor(ws),
			IsMember:     member,
			Manifest:     m,
			Deps:         m.Deps(),
		}
		queue = append(queue, dir)
		return nil
	}

	if rootManifest.Package != nil {
		if err := add(root, rootManifest, true); err != nil {
			return nil, nil, err
		}
	}
	if ws != nil {
		members, err := expandMembers(root, ws, ignore)
		if err != nil {
			return nil, nil, err
		}
		for _, dir := range members {
			if err := add(dir, nil, true); err != nil {
				return nil, nil, err
			}
		}
	}

	// Follow path dependencies transitively.
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]
		for _, d := range byDir[dir].Deps {
			if d.Path == "" {
				continue
			}
			depDir, err := canonicalDir(filepath.Join(dir, d.Path))
			if err != nil {
				return nil, nil, fmt.Errorf("%s: dependency %s: %w", byDir[dir].ManifestPath, d.Name, err)
			}
			if err := add(depDir, nil, false); err != nil {
				return nil, nil, err
			}
		}
	}

	pkgs := make([]*Package, 0, len(byDir))
	for _, p := range byDir {
		pkgs = append(pkgs, p)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Dir < pkgs[j].Dir })
	return pkgs, manifests, nil
}

// expandMembers matches [workspace] members globs against the package
// directories under root.
func expandMembers(root string, ws *WorkspaceSection, ignore *matcher) ([]string, error) {
	members, err := newMatcher(ws.Members)
	if err != nil {
		return nil, err
	}
	excluded, err := newMatcher(ws.Exclude)
	if err != nil {
		return nil, err
	}

	var dirs []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}
		if excluded.Match(rel) || ignore.Match(rel) {
			return filepath.SkipDir
		}
		if !matchesExactly(members, rel) {
			return nil
		}
		if _, err := os.Stat(filepath.Join(path, ManifestFile)); err != nil {
			return nil
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("expand workspace members: %w", err)
	}
	return dirs, nil
}

// matchesExactly matches relPath itself, not its parents: a member glob of
// "crates/*" must not pull in crates/a/nested.
func matchesExactly(m *matcher, relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, g := range m.globs {
		if g.Match(relPath) {
			return true
		}
	}
	return false
}

func canonicalDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return filepath.Clean(resolved), nil
}
