package main

import "github.com/jward/cratescope"

// CLIResult is the top-level JSON envelope for workspace commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLICrate is a JSON-friendly crate representation.
type CLICrate struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Kind        string   `json:"kind"`
	Edition     string   `json:"edition"`
	Manifest    string   `json:"manifest"`
	Ordinal     int      `json:"ordinal"`
	Features    []string `json:"features"`
	FileCount   *int     `json:"file_count,omitempty"`

	// Set by query crates only.
	Declared []CLIFeature `json:"declared_features,omitempty"`
	Deps     []string     `json:"deps,omitempty"`
}

// CLIFeature is a declared feature and whether the load enabled it.
type CLIFeature struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// CLIFile is a JSON-friendly file representation.
type CLIFile struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	Orphan    bool   `json:"orphan"`
	LineCount int    `json:"line_count"`
}

// CLICratesForFile is the result of the crates command.
type CLICratesForFile struct {
	File   string     `json:"file"`
	Crates []CLICrate `json:"crates"`
}

func toCLICrate(c *cratescope.Crate) CLICrate {
	features := c.Features
	if features == nil {
		features = []string{}
	}
	return CLICrate{
		ID:          c.ID,
		Name:        c.Name,
		DisplayName: c.Label(),
		Kind:        c.Kind,
		Edition:     c.Edition,
		Manifest:    c.ManifestPath,
		Ordinal:     c.Ordinal,
		Features:    features,
	}
}

func toCLIFile(f *cratescope.File, orphan bool) CLIFile {
	return CLIFile{
		ID:        f.ID,
		Path:      f.Path,
		Orphan:    orphan,
		LineCount: f.LineCount,
	}
}
