package cratescope

import "fmt"

// FileID identifies a tracked file. IDs come from the project database and
// are never reused within it.
type FileID int64

// CrateID identifies a crate in the project database.
type CrateID int64

// PathSpace is the read-only bijection between canonical paths and file IDs
// recorded by the workspace loader.
type PathSpace struct {
	byPath map[AbsolutePath]FileID
	byID   map[FileID]AbsolutePath
}

// NewPathSpace indexes the given files.
func NewPathSpace(files []*File) *PathSpace {
	ps := &PathSpace{
		byPath: make(map[AbsolutePath]FileID, len(files)),
		byID:   make(map[FileID]AbsolutePath, len(files)),
	}
	for _, f := range files {
		ps.byPath[AbsolutePath(f.Path)] = FileID(f.ID)
		ps.byID[FileID(f.ID)] = AbsolutePath(f.Path)
	}
	return ps
}

// Lookup returns the ID of an exact path match.
func (ps *PathSpace) Lookup(path AbsolutePath) (FileID, error) {
	id, ok := ps.byPath[path]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUntrackedPath, path)
	}
	return id, nil
}

// Path returns the path recorded for id.
func (ps *PathSpace) Path(id FileID) (AbsolutePath, bool) {
	p, ok := ps.byID[id]
	return p, ok
}

// Len is the number of tracked files.
func (ps *PathSpace) Len() int { return len(ps.byID) }
