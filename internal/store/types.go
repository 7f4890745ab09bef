package store

import "time"

// Virtual file space types

type SourceRoot struct {
	ID       int64
	Path     string
	Package  string
	IsMember bool
}

type File struct {
	ID           int64
	Path         string
	SourceRootID *int64
	Hash         string
	LineCount    int
	LastIndexed  time.Time
}

// Crate graph types

// Crate is one compilation unit. Features holds the enabled feature names,
// sorted ascending; it is only populated by the read helpers that join
// crate_features.
type Crate struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Target       string   `json:"target"`
	DisplayName  string   `json:"display_name,omitempty"`
	Kind         string   `json:"kind"`
	Edition      string   `json:"edition"`
	RootFileID   int64    `json:"root_file_id"`
	ManifestPath string   `json:"manifest_path"`
	Ordinal      int      `json:"ordinal"`
	Features     []string `json:"features"`
}

type CrateFeature struct {
	CrateID int64
	Name    string
	Enabled bool
}

type CrateFile struct {
	CrateID int64
	FileID  int64
}

type CrateDep struct {
	FromCrateID int64
	ToCrateID   int64
	Name        string
}

// Crate kinds as stored in crates.kind.
const (
	KindLib       = "lib"
	KindBin       = "bin"
	KindTest      = "test"
	KindExample   = "example"
	KindBench     = "bench"
	KindBuild     = "build"
	KindProcMacro = "proc-macro"
)

// Label is the name a crate is shown under: its display name, or the
// package name when it has none.
func (c *Crate) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Name
}
