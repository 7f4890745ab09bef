package workspace

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/jward/cratescope/internal/store"
	"github.com/jward/cratescope/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTest(t *testing.T, root string, opts Options) *Snapshot {
	t.Helper()
	opts.Logger = testutil.NewTestLogger(t)
	snap, err := Load(context.Background(), root, opts)
	require.NoError(t, err)
	return snap
}

// commit writes the snapshot to a fresh database.
func commit(t *testing.T, snap *Snapshot) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate())
	require.NoError(t, s.CommitBatch(snap.Batch))
	return s
}

func fileByPath(t *testing.T, s *store.Store, path string) *store.File {
	t.Helper()
	files, err := s.Files()
	require.NoError(t, err)
	for _, f := range files {
		if f.Path == path {
			return f
		}
	}
	require.Failf(t, "file not tracked", "%s", path)
	return nil
}

func fileID(t *testing.T, s *store.Store, path string) int64 {
	t.Helper()
	return fileByPath(t, s, path).ID
}

func TestLoad_SharedFileOwnedByBothCrates(t *testing.T) {
	t.Parallel()
	root := testutil.SharedWorkspace(t)
	s := commit(t, loadTest(t, root, Options{}))

	crates, err := s.CratesForFile(fileID(t, s, filepath.Join(root, "shared", "shared.rs")))
	require.NoError(t, err)
	require.Len(t, crates, 2)

	assert.Equal(t, "alpha", crates[0].Name)
	assert.Equal(t, []string{"default", "std"}, crates[0].Features)
	assert.Equal(t, "2021", crates[0].Edition)
	assert.Equal(t, "beta", crates[1].Name)
	assert.Equal(t, []string{"default", "fast"}, crates[1].Features)
	assert.Equal(t, "2018", crates[1].Edition)

	// Declared but disabled features are recorded too.
	feats, err := s.CrateFeatures(crates[0].ID)
	require.NoError(t, err)
	require.Len(t, feats, 3)
}

func TestLoad_OrphanIsTracked(t *testing.T) {
	t.Parallel()
	root := testutil.SharedWorkspace(t)
	s := commit(t, loadTest(t, root, Options{}))

	crates, err := s.CratesForFile(fileID(t, s, filepath.Join(root, "crates", "beta", "src", "orphan.rs")))
	require.NoError(t, err)
	assert.Empty(t, crates)

	orphans, err := s.OrphanFiles()
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, filepath.Join(root, "crates", "beta", "src", "orphan.rs"), orphans[0].Path)

	// Files outside every package directory have no source root.
	shared := fileByPath(t, s, filepath.Join(root, "shared", "shared.rs"))
	assert.Nil(t, shared.SourceRootID)
}

func TestLoad_CfgGatedModule(t *testing.T) {
	t.Parallel()
	root := testutil.TempDir(t)
	testutil.WriteTree(t, root, map[string]string{
		"Cargo.toml": "[package]\nname = \"gated\"\n\n[features]\nnet = []\n",
		"src/lib.rs": "#[cfg(feature = \"net\")]\nmod net;\nmod core;\n",
		"src/net.rs": "",
		"src/core.rs": "",
	})
	net := filepath.Join(root, "src", "net.rs")

	s := commit(t, loadTest(t, root, Options{}))
	crates, err := s.CratesForFile(fileID(t, s, net))
	require.NoError(t, err)
	assert.Empty(t, crates)
	crates, err = s.CratesForFile(fileID(t, s, filepath.Join(root, "src", "core.rs")))
	require.NoError(t, err)
	assert.Len(t, crates, 1)

	s = commit(t, loadTest(t, root, Options{Features: []string{"net"}}))
	crates, err = s.CratesForFile(fileID(t, s, net))
	require.NoError(t, err)
	require.Len(t, crates, 1)
	assert.Equal(t, []string{"net"}, crates[0].Features)
}

func TestLoad_TargetDiscoveryAndOrder(t *testing.T) {
	t.Parallel()
	root := testutil.TempDir(t)
	testutil.WriteTree(t, root, map[string]string{
		"Cargo.toml":             "[package]\nname = \"demo-app\"\nedition = \"2021\"\n",
		"src/lib.rs":             "",
		"src/main.rs":            "",
		"src/bin/tool.rs":        "",
		"src/bin/multi/main.rs":  "",
		"tests/it.rs":            "",
		"examples/ex.rs":         "",
		"benches/b.rs":           "",
		"build.rs":               "",
	})

	snap := loadTest(t, root, Options{})
	type row struct{ Target, Kind string }
	var got []row
	crates := slices.Clone(snap.Batch.Crates)
	slices.SortFunc(crates, func(a, b store.Crate) int { return a.Ordinal - b.Ordinal })
	for _, c := range crates {
		got = append(got, row{c.Target, c.Kind})
	}
	assert.Equal(t, []row{
		{"demo_app", store.KindLib},
		{"demo-app", store.KindBin},
		{"multi", store.KindBin},
		{"tool", store.KindBin},
		{"it", store.KindTest},
		{"ex", store.KindExample},
		{"b", store.KindBench},
	}, got)

	snap = loadTest(t, root, Options{IncludeBuildScripts: true})
	kinds := map[string]int{}
	for _, c := range snap.Batch.Crates {
		kinds[c.Kind]++
	}
	assert.Equal(t, 1, kinds[store.KindBuild])
}

func TestLoad_ProcMacroAndRequiredFeatures(t *testing.T) {
	t.Parallel()
	root := testutil.TempDir(t)
	testutil.WriteTree(t, root, map[string]string{
		"Cargo.toml": "[workspace]\nmembers = [\"macros\", \"app\"]\n",
		"macros/Cargo.toml": "[package]\nname = \"macros\"\n\n[lib]\nproc-macro = true\n",
		"macros/src/lib.rs": "",
		"app/Cargo.toml": `[package]
name = "app"

[features]
cli = []

[[bin]]
name = "needs-cli"
path = "src/cli.rs"
required-features = ["cli"]
`,
		"app/src/lib.rs": "",
		"app/src/cli.rs": "",
	})

	names := func(snap *Snapshot) []string {
		var out []string
		for _, c := range snap.Batch.Crates {
			out = append(out, c.Name+"/"+c.Kind+"/"+c.Target)
		}
		slices.Sort(out)
		return out
	}

	assert.Equal(t, []string{"app/lib/app", "macros/proc-macro/macros"}, names(loadTest(t, root, Options{})))
	assert.Equal(t, []string{
		"app/bin/needs-cli",
		"app/lib/app",
		"macros/proc-macro/macros",
	}, names(loadTest(t, root, Options{Features: []string{"app/cli"}})))

	// Expansion is never performed, so the switch leaves the crate set alone.
	assert.Equal(t, names(loadTest(t, root, Options{})), names(loadTest(t, root, Options{IncludeProcMacros: true})))
}

func TestLoad_DependencyOrderAndEdges(t *testing.T) {
	t.Parallel()
	root := testutil.TempDir(t)
	testutil.WriteTree(t, root, map[string]string{
		"Cargo.toml": "[workspace]\nmembers = [\"app\"]\n",
		"app/Cargo.toml": `[package]
name = "app"

[dependencies]
zcore = { path = "../zcore", features = ["fast"] }
serde = "1"
`,
		"app/src/lib.rs":    "",
		"zcore/Cargo.toml":  "[package]\nname = \"zcore\"\n\n[features]\nfast = []\n",
		"zcore/src/lib.rs":  "",
	})

	snap := loadTest(t, root, Options{})
	s := commit(t, snap)
	crates, err := s.Crates()
	require.NoError(t, err)
	require.Len(t, crates, 2)
	// Dependencies come first even though "app" sorts before "zcore".
	assert.Equal(t, "zcore", crates[0].Name)
	assert.Equal(t, []string{"fast"}, crates[0].Features)
	assert.Equal(t, "app", crates[1].Name)

	deps, err := s.CrateDeps(crates[1].ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, crates[0].ID, deps[0].ToCrateID)
	assert.Equal(t, "zcore", deps[0].Name)

	roots, err := s.SourceRoots()
	require.NoError(t, err)
	require.Len(t, roots, 2)
	members := map[string]bool{}
	for _, r := range roots {
		members[r.Package] = r.IsMember
	}
	assert.Equal(t, map[string]bool{"app": true, "zcore": false}, members)
}

func TestLoad_DependencyCycle(t *testing.T) {
	t.Parallel()
	root := testutil.TempDir(t)
	testutil.WriteTree(t, root, map[string]string{
		"Cargo.toml":   "[workspace]\nmembers = [\"a\", \"b\"]\n",
		"a/Cargo.toml": "[package]\nname = \"a\"\n[dependencies]\nb = { path = \"../b\" }\n",
		"a/src/lib.rs": "",
		"b/Cargo.toml": "[package]\nname = \"b\"\n[dependencies]\na = { path = \"../a\" }\n",
		"b/src/lib.rs": "",
	})
	_, err := Load(context.Background(), root, Options{Logger: testutil.NewTestLogger(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle")
}

func TestLoad_MembersGlobExcludeAndIgnore(t *testing.T) {
	t.Parallel()
	root := testutil.TempDir(t)
	testutil.WriteTree(t, root, map[string]string{
		"Cargo.toml":                 "[workspace]\nmembers = [\"crates/*\"]\nexclude = [\"crates/skip\"]\n",
		"crates/one/Cargo.toml":      "[package]\nname = \"one\"\n",
		"crates/one/src/lib.rs":      "",
		"crates/one/src/gen/big.rs":  "",
		"crates/skip/Cargo.toml":     "[package]\nname = \"skip\"\n",
		"crates/skip/src/lib.rs":     "",
	})
	snap := loadTest(t, root, Options{Ignore: []string{"crates/*/src/gen"}})

	require.Len(t, snap.Packages, 1)
	assert.Equal(t, "one", snap.Packages[0].Name)
	var paths []string
	for _, f := range snap.Batch.Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{filepath.Join(root, "crates", "one", "src", "lib.rs")}, paths)
}

func TestLoad_InvalidRoot(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{})
	assert.Error(t, err)

	root := testutil.TempDir(t)
	testutil.WriteTree(t, root, map[string]string{"Cargo.toml": "[dependencies]\n"})
	_, err = Load(context.Background(), root, Options{})
	assert.Error(t, err)

	testutil.WriteTree(t, root, map[string]string{"Cargo.toml": "not = [valid"})
	_, err = Load(context.Background(), root, Options{})
	assert.Error(t, err)
}

func TestLoad_Cancelled(t *testing.T) {
	t.Parallel()
	root := testutil.SharedWorkspace(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, root, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_Progress(t *testing.T) {
	t.Parallel()
	root := testutil.SharedWorkspace(t)
	var calls []int
	snap := loadTest(t, root, Options{Workers: 1, Progress: func(done, total int) {
		assert.Equal(t, 2, total)
		calls = append(calls, done)
	}})
	assert.Equal(t, []int{1, 2}, calls)
	assert.Len(t, snap.Batch.Crates, 2)
}

func TestInputs_MatchLoad(t *testing.T) {
	t.Parallel()
	root := testutil.SharedWorkspace(t)
	opts := Options{}
	snap := loadTest(t, root, opts)
	inputs, err := Inputs(root, opts)
	require.NoError(t, err)
	// shared.rs lies outside every package and only the load can find it.
	assert.NotEqual(t,
		store.ComputeManifestHash(snap.Inputs, opts.Fingerprint()),
		store.ComputeManifestHash(inputs, opts.Fingerprint()))

	var loose []string
	for _, f := range snap.Batch.Files {
		if f.SourceRootID == nil {
			loose = append(loose, f.Path)
		}
	}
	assert.Equal(t, []string{filepath.Join(root, "shared", "shared.rs")}, loose)
	inputs = append(inputs, Stamps(loose)...)
	assert.Equal(t,
		store.ComputeManifestHash(snap.Inputs, opts.Fingerprint()),
		store.ComputeManifestHash(inputs, opts.Fingerprint()))

	missing := Stamps([]string{filepath.Join(root, "gone.rs")})
	require.Len(t, missing, 1)
	assert.Equal(t, "missing", missing[0].Stamp)

	assert.NotEqual(t, opts.Fingerprint(), Options{AllFeatures: true}.Fingerprint())
	assert.Equal(t,
		Options{Features: []string{"b", "a"}}.Fingerprint(),
		Options{Features: []string{"a", "b"}}.Fingerprint())
}

func TestManifest_EditionAndBuild(t *testing.T) {
	t.Parallel()
	ws := &WorkspaceSection{}
	ws.Package.Edition = "2024"

	m := &Manifest{Package: &PackageSection{Edition: map[string]any{"workspace": true}}}
	assert.Equal(t, "2024", m.EditionFor(ws))
	assert.Equal(t, "2015", (&Manifest{}).EditionFor(ws))

	m.Package.Build = false
	_, enabled := m.BuildScript()
	assert.False(t, enabled)
	m.Package.Build = "tools/build.rs"
	script, enabled := m.BuildScript()
	assert.True(t, enabled)
	assert.Equal(t, "tools/build.rs", script)
}

func TestManifest_Deps(t *testing.T) {
	t.Parallel()
	m := &Manifest{Dependencies: map[string]any{
		"serde": "1.0",
		"local": map[string]any{"path": "../local", "optional": true, "default-features": false, "features": []any{"x"}},
		"alias": map[string]any{"path": "../real", "package": "real"},
	}}
	deps := m.Deps()
	require.Len(t, deps, 3)
	assert.Equal(t, Dependency{Name: "alias", Package: "real", Path: "../real", DefaultFeatures: true}, deps[0])
	assert.Equal(t, Dependency{Name: "local", Package: "local", Path: "../local", Optional: true, Features: []string{"x"}}, deps[1])
	assert.Equal(t, Dependency{Name: "serde", Package: "serde", DefaultFeatures: true}, deps[2])
}
