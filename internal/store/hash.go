package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// ManifestInput is one file that contributes to a workspace load: a
// Cargo.toml's contents, or a source file's path and size/mtime stamp.
type ManifestInput struct {
	Path  string
	Stamp string
}

// ComputeManifestHash computes a deterministic fingerprint over the inputs
// of a workspace load plus the loader options that shaped it. Input order
// does NOT affect the hash.
func ComputeManifestHash(inputs []ManifestInput, options string) string {
	h := sha256.New()
	fmt.Fprintf(h, "options:%s\n", options)

	sorted := make([]ManifestInput, len(inputs))
	copy(sorted, inputs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Path < sorted[j].Path
	})
	for _, in := range sorted {
		fmt.Fprintf(h, "input:%s:%s\n", in.Path, in.Stamp)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
