package store

// DataStore is the write surface the workspace loader fills. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for a whole
// snapshot) implement this interface.
type DataStore interface {
	InsertSourceRoot(r *SourceRoot) (int64, error)
	InsertFile(f *File) (int64, error)
	InsertCrate(c *Crate) (int64, error)
	InsertCrateFeature(f *CrateFeature) error
	InsertCrateFile(cf *CrateFile) error
	InsertCrateDep(d *CrateDep) error
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
