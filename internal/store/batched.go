package store

import "sync"

// BatchedStore buffers a whole workspace snapshot in memory using fake
// (negative) IDs. It implements DataStore so the loader can write to it
// without knowing whether it is hitting SQLite or an in-memory buffer.
//
// Thread safety: the mutex protects fake ID allocation and slice appends,
// so module-tree workers may record ownership concurrently.
type BatchedStore struct {
	mu sync.Mutex

	SourceRoots []SourceRoot
	Files       []File
	Crates      []Crate
	Features    []CrateFeature
	CrateFiles  []CrateFile
	Deps        []CrateDep

	// Metadata is written in the same transaction as the snapshot.
	Metadata map[string]string

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates an empty BatchedStore.
func NewBatchedStore() *BatchedStore {
	return &BatchedStore{nextFakeID: -1}
}

// SetMetadata records a metadata value to commit with the batch.
func (b *BatchedStore) SetMetadata(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Metadata == nil {
		b.Metadata = map[string]string{}
	}
	b.Metadata[key] = value
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertSourceRoot(r *SourceRoot) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	r.ID = fakeID
	b.SourceRoots = append(b.SourceRoots, *r)
	return fakeID, nil
}

func (b *BatchedStore) InsertFile(f *File) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	f.ID = fakeID
	b.Files = append(b.Files, *f)
	return fakeID, nil
}

func (b *BatchedStore) InsertCrate(c *Crate) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	c.ID = fakeID
	b.Crates = append(b.Crates, *c)
	return fakeID, nil
}

func (b *BatchedStore) InsertCrateFeature(f *CrateFeature) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Features = append(b.Features, *f)
	return nil
}

func (b *BatchedStore) InsertCrateFile(cf *CrateFile) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CrateFiles = append(b.CrateFiles, *cf)
	return nil
}

func (b *BatchedStore) InsertCrateDep(d *CrateDep) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Deps = append(b.Deps, *d)
	return nil
}
