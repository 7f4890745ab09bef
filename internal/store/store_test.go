package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

// fileByPath finds a committed file by path, or returns nil.
func fileByPath(t *testing.T, s *Store, path string) *File {
	t.Helper()
	files, err := s.Files()
	require.NoError(t, err)
	for _, f := range files {
		if f.Path == path {
			return f
		}
	}
	return nil
}

// insertTestFile is a helper that inserts a file and returns it with ID set.
func insertTestFile(t *testing.T, s *Store, path string) *File {
	t.Helper()
	f := &File{Path: path, Hash: "abc123", LineCount: 3, LastIndexed: time.Now().Truncate(time.Second)}
	id, err := s.InsertFile(f)
	require.NoError(t, err)
	require.Positive(t, id)
	return f
}

// insertTestCrate inserts a crate rooted at rootFile with the given enabled features.
func insertTestCrate(t *testing.T, s *Store, name string, ordinal int, rootFile int64, features ...string) *Crate {
	t.Helper()
	c := &Crate{
		Name: name, Target: name, DisplayName: name, Kind: KindLib, Edition: "2021",
		RootFileID: rootFile, ManifestPath: "/ws/" + name + "/Cargo.toml", Ordinal: ordinal,
	}
	_, err := s.InsertCrate(c)
	require.NoError(t, err)
	for _, f := range features {
		require.NoError(t, s.InsertCrateFeature(&CrateFeature{CrateID: c.ID, Name: f, Enabled: true}))
	}
	require.NoError(t, s.InsertCrateFile(&CrateFile{CrateID: c.ID, FileID: rootFile}))
	return c
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	expectedTables := []string{
		"source_roots", "files", "crates", "crate_features", "crate_files", "crate_deps", "metadata",
	}

	for _, table := range expectedTables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
	require.NoError(t, s.Migrate())
}

func TestNewStore_InvalidPath(t *testing.T) {
	t.Parallel()
	_, err := NewStore("/nonexistent/dir/db.sqlite")
	require.Error(t, err)
}

func TestMetadata_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.GetMetadata("manifest_hash")
	require.NoError(t, err)
	assert.Empty(t, v)

	one := NewBatchedStore()
	one.SetMetadata("manifest_hash", "one")
	one.SetMetadata("loaded_at", "then")
	require.NoError(t, s.CommitBatch(one))
	two := NewBatchedStore()
	two.SetMetadata("manifest_hash", "two")
	require.NoError(t, s.CommitBatch(two))

	v, err = s.GetMetadata("manifest_hash")
	require.NoError(t, err)
	assert.Equal(t, "two", v)
	v, err = s.GetMetadata("loaded_at")
	require.NoError(t, err)
	assert.Equal(t, "then", v, "keys absent from a batch are left alone")
	v, err = s.GetMetadata("generation")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

// =============================================================================
// Files
// =============================================================================

func TestFileByID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/ws/a/src/lib.rs")

	got, err := s.FileByID(f.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "/ws/a/src/lib.rs", got.Path)
	assert.Equal(t, 3, got.LineCount)
	assert.Nil(t, got.SourceRootID)

	missing, err := s.FileByID(f.ID + 100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFileWithSourceRoot(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	r := &SourceRoot{Path: "/ws/a", Package: "a", IsMember: true}
	_, err := s.InsertSourceRoot(r)
	require.NoError(t, err)

	f := &File{Path: "/ws/a/src/lib.rs", SourceRootID: &r.ID}
	_, err = s.InsertFile(f)
	require.NoError(t, err)

	got := fileByPath(t, s, f.Path)
	require.NotNil(t, got)
	require.NotNil(t, got.SourceRootID)
	assert.Equal(t, r.ID, *got.SourceRootID)

	roots, err := s.SourceRoots()
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "a", roots[0].Package)
	assert.True(t, roots[0].IsMember)
}

func TestOrphanFiles(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	owned := insertTestFile(t, s, "/ws/a/src/lib.rs")
	insertTestFile(t, s, "/ws/a/src/unused.rs")
	insertTestCrate(t, s, "a", 0, owned.ID)

	orphans, err := s.OrphanFiles()
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "/ws/a/src/unused.rs", orphans[0].Path)
}

// =============================================================================
// Crates
// =============================================================================

func TestCratesForFile_SharedFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	rootA := insertTestFile(t, s, "/ws/a/src/lib.rs")
	rootB := insertTestFile(t, s, "/ws/b/src/lib.rs")
	shared := insertTestFile(t, s, "/ws/shared.rs")

	b := insertTestCrate(t, s, "b", 1, rootB.ID, "json")
	a := insertTestCrate(t, s, "a", 0, rootA.ID, "std", "alloc")
	require.NoError(t, s.InsertCrateFile(&CrateFile{CrateID: a.ID, FileID: shared.ID}))
	require.NoError(t, s.InsertCrateFile(&CrateFile{CrateID: b.ID, FileID: shared.ID}))

	crates, err := s.CratesForFile(shared.ID)
	require.NoError(t, err)
	require.Len(t, crates, 2)

	// Ordinal order, not insertion order.
	assert.Equal(t, "a", crates[0].Name)
	assert.Equal(t, []string{"alloc", "std"}, crates[0].Features)
	assert.Equal(t, "b", crates[1].Name)
	assert.Equal(t, []string{"json"}, crates[1].Features)
}

func TestCratesForFile_Orphan(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/ws/a/src/unused.rs")

	crates, err := s.CratesForFile(f.ID)
	require.NoError(t, err)
	assert.Empty(t, crates)
}

func TestCrateFeatures_IncludesDisabled(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	root := insertTestFile(t, s, "/ws/a/src/lib.rs")
	c := insertTestCrate(t, s, "a", 0, root.ID, "std")
	require.NoError(t, s.InsertCrateFeature(&CrateFeature{CrateID: c.ID, Name: "serde", Enabled: false}))

	all, err := s.CrateFeatures(c.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "serde", all[0].Name)
	assert.False(t, all[0].Enabled)

	crates, err := s.Crates()
	require.NoError(t, err)
	require.Len(t, crates, 1)
	assert.Equal(t, []string{"std"}, crates[0].Features)
}

func TestCrateByID_DisplayNameOptional(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	root := insertTestFile(t, s, "/ws/a/src/lib.rs")
	c := &Crate{Name: "a", Target: "a", Kind: KindLib, RootFileID: root.ID, ManifestPath: "/ws/a/Cargo.toml"}
	_, err := s.InsertCrate(c)
	require.NoError(t, err)

	got, err := s.CrateByID(c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.DisplayName)
	assert.Equal(t, []string{}, got.Features)

	missing, err := s.CrateByID(c.ID + 1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCrateDepsAndFileCount(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	rootA := insertTestFile(t, s, "/ws/a/src/lib.rs")
	rootB := insertTestFile(t, s, "/ws/b/src/main.rs")
	a := insertTestCrate(t, s, "a", 0, rootA.ID)
	b := insertTestCrate(t, s, "b", 1, rootB.ID)
	require.NoError(t, s.InsertCrateDep(&CrateDep{FromCrateID: b.ID, ToCrateID: a.ID, Name: "a"}))

	deps, err := s.CrateDeps(b.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, a.ID, deps[0].ToCrateID)

	n, err := s.CrateFileCount(a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A commit rebuilds crates from scratch.
	require.NoError(t, s.CommitBatch(NewBatchedStore()))
	crates, err := s.Crates()
	require.NoError(t, err)
	assert.Empty(t, crates)
}

func TestComputeManifestHash_OrderIndependent(t *testing.T) {
	t.Parallel()
	a := []ManifestInput{{Path: "/ws/Cargo.toml", Stamp: "x"}, {Path: "/ws/a/Cargo.toml", Stamp: "y"}}
	b := []ManifestInput{a[1], a[0]}

	assert.Equal(t, ComputeManifestHash(a, "opts"), ComputeManifestHash(b, "opts"))
	assert.NotEqual(t, ComputeManifestHash(a, "opts"), ComputeManifestHash(a, "other"))
	assert.NotEqual(t, ComputeManifestHash(a, "opts"),
		ComputeManifestHash([]ManifestInput{{Path: "/ws/Cargo.toml", Stamp: "z"}, a[1]}, "opts"))
}

func TestPlaceholderList(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", placeholderList(0))
	assert.Equal(t, "?", placeholderList(1))
	assert.Equal(t, "?,?,?", placeholderList(3))
	assert.Equal(t, []any{int64(4), int64(9)}, int64sToArgs([]int64{4, 9}))
}
