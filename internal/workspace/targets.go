package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jward/cratescope/internal/store"
)

// Target is one compilation unit of a package.
type Target struct {
	Name             string
	Kind             string // one of the store.Kind* constants
	RootFile         string // canonical path of the crate root
	RequiredFeatures []string
}

// Test reports whether the target is compiled with cfg(test).
func (t Target) Test() bool {
	return t.Kind == store.KindTest || t.Kind == store.KindBench
}

var kindOrder = map[string]int{
	store.KindLib:       0,
	store.KindProcMacro: 0,
	store.KindBin:       1,
	store.KindTest:      2,
	store.KindExample:   3,
	store.KindBench:     4,
	store.KindBuild:     5,
}

// discoverTargets fills p.Targets from explicit manifest sections and the
// conventional layout. Proc-macro libraries and build scripts are included
// only when the options ask for them.
func discoverTargets(p *Package, opts Options) {
	m := p.Manifest
	var targets []Target
	seen := map[string]bool{}
	addTarget := func(t Target) {
		if t.RootFile == "" || seen[t.Kind+"\x00"+t.RootFile] {
			return
		}
		if resolved, err := filepath.EvalSymlinks(t.RootFile); err == nil {
			t.RootFile = resolved
		} else {
			return
		}
		seen[t.Kind+"\x00"+t.RootFile] = true
		targets = append(targets, t)
	}

	// lib
	libPath := filepath.Join(p.Dir, "src", "lib.rs")
	libName := crateName(p.Name)
	libKind := store.KindLib
	var libRequired []string
	if m.Lib != nil {
		if m.Lib.Path != "" {
			libPath = filepath.Join(p.Dir, m.Lib.Path)
		}
		if m.Lib.Name != "" {
			libName = m.Lib.Name
		}
		if m.Lib.ProcMacro {
			libKind = store.KindProcMacro
		}
		libRequired = m.Lib.RequiredFeatures
	}
	if fileExists(libPath) {
		addTarget(Target{Name: libName, Kind: libKind, RootFile: libPath, RequiredFeatures: libRequired})
	}

	// bins: explicit, then src/main.rs, src/bin/*.rs, src/bin/*/main.rs
	explicit := func(sections []TargetSection, kind, dir string) {
		for _, s := range sections {
			path := s.Path
			switch {
			case path != "":
				path = filepath.Join(p.Dir, path)
			case kind == store.KindBin && s.Name == p.Name && fileExists(filepath.Join(p.Dir, "src", "main.rs")):
				path = filepath.Join(p.Dir, "src", "main.rs")
			default:
				path = conventionalPath(filepath.Join(p.Dir, dir), s.Name)
			}
			if fileExists(path) {
				addTarget(Target{Name: s.Name, Kind: kind, RootFile: path, RequiredFeatures: s.RequiredFeatures})
			}
		}
	}
	explicit(m.Bin, store.KindBin, filepath.Join("src", "bin"))
	if main := filepath.Join(p.Dir, "src", "main.rs"); fileExists(main) && !hasName(m.Bin, p.Name) {
		addTarget(Target{Name: p.Name, Kind: store.KindBin, RootFile: main})
	}
	for _, t := range autoTargets(filepath.Join(p.Dir, "src", "bin"), store.KindBin) {
		if !hasName(m.Bin, t.Name) {
			addTarget(t)
		}
	}

	for _, group := range []struct {
		sections []TargetSection
		kind     string
		dir      string
	}{
		{m.Test, store.KindTest, "tests"},
		{m.Example, store.KindExample, "examples"},
		{m.Bench, store.KindBench, "benches"},
	} {
		explicit(group.sections, group.kind, group.dir)
		for _, t := range autoTargets(filepath.Join(p.Dir, group.dir), group.kind) {
			if !hasName(group.sections, t.Name) {
				addTarget(t)
			}
		}
	}

	if opts.IncludeBuildScripts {
		script, enabled := m.BuildScript()
		if enabled {
			if script == "" {
				script = "build.rs"
			}
			if path := filepath.Join(p.Dir, script); fileExists(path) {
				addTarget(Target{Name: "build-script-build", Kind: store.KindBuild, RootFile: path})
			}
		}
	}

	sort.SliceStable(targets, func(i, j int) bool {
		if kindOrder[targets[i].Kind] != kindOrder[targets[j].Kind] {
			return kindOrder[targets[i].Kind] < kindOrder[targets[j].Kind]
		}
		return targets[i].Name < targets[j].Name
	})
	p.Targets = targets
}

// autoTargets finds dir/*.rs and dir/*/main.rs.
func autoTargets(dir, kind string) []Target {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []Target
	for _, e := range entries {
		name := e.Name()
		switch {
		case !e.IsDir() && strings.HasSuffix(name, ".rs"):
			out = append(out, Target{Name: strings.TrimSuffix(name, ".rs"), Kind: kind, RootFile: filepath.Join(dir, name)})
		case e.IsDir() && !skipDir(name) && fileExists(filepath.Join(dir, name, "main.rs")):
			out = append(out, Target{Name: name, Kind: kind, RootFile: filepath.Join(dir, name, "main.rs")})
		}
	}
	return out
}

func conventionalPath(dir, name string) string {
	if p := filepath.Join(dir, name+".rs"); fileExists(p) {
		return p
	}
	return filepath.Join(dir, name, "main.rs")
}

func hasName(sections []TargetSection, name string) bool {
	for _, s := range sections {
		if s.Name == name {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
