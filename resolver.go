package cratescope

import (
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the resolver cache when no size is configured.
const DefaultCacheSize = 1024

// CrateSource is the part of the project database the resolver reads.
// *Store satisfies it.
type CrateSource interface {
	CratesForFile(fileID int64) ([]*Crate, error)
}

// CrateResolver answers which crates include a file. Results are read from
// the ownership index and memoized per file; the feature sets are the ones
// recorded at load time.
type CrateResolver struct {
	src   CrateSource
	paths *PathSpace
	cache *lru.Cache[FileID, []Crate]
}

// NewCrateResolver creates a resolver over src. IDs unknown to paths are
// rejected as untracked.
func NewCrateResolver(src CrateSource, paths *PathSpace, cacheSize int) (*CrateResolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[FileID, []Crate](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("cratescope: resolver cache: %w", err)
	}
	return &CrateResolver{src: src, paths: paths, cache: cache}, nil
}

// CratesFor returns every crate that includes the file, in the database's
// enumeration order. A tracked file that no crate includes yields an empty
// slice and a nil error.
func (r *CrateResolver) CratesFor(id FileID) ([]Crate, error) {
	if _, ok := r.paths.Path(id); !ok {
		return nil, fmt.Errorf("%w: file id %d", ErrUntrackedPath, id)
	}
	if cached, ok := r.cache.Get(id); ok {
		return cloneCrates(cached), nil
	}

	rows, err := r.src.CratesForFile(int64(id))
	if err != nil {
		return nil, fmt.Errorf("cratescope: crates for file %d: %w: %w", id, ErrIO, err)
	}
	crates := make([]Crate, 0, len(rows))
	for _, c := range rows {
		crates = append(crates, *c)
	}
	r.cache.Add(id, crates)
	return cloneCrates(crates), nil
}

// cloneCrates copies the slice and each feature list so callers cannot
// mutate cached entries.
func cloneCrates(in []Crate) []Crate {
	out := slices.Clone(in)
	for i := range out {
		out[i].Features = slices.Clone(out[i].Features)
	}
	return out
}
