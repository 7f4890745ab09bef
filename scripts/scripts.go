// Package scripts embeds the Risor report scripts shipped with cratescope.
// Run one with `cratescope script --builtin <name>`.
package scripts

import (
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed reports/*.risor
var FS embed.FS

// Path returns the path of the bundled report name within FS.
func Path(name string) string {
	return path.Join("reports", name+".risor")
}

// Names lists the bundled reports, sorted.
func Names() []string {
	entries, err := fs.ReadDir(FS, "reports")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if n, ok := strings.CutSuffix(e.Name(), ".risor"); ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}
