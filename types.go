package cratescope

import (
	"github.com/jward/cratescope/internal/store"
	"github.com/jward/cratescope/internal/syntax"
)

// Aliases for the database and analysis types that appear in the Engine
// API, so callers never import internal packages.

type Store = store.Store
type File = store.File
type SourceRoot = store.SourceRoot
type Crate = store.Crate
type CrateFeature = store.CrateFeature
type CrateDep = store.CrateDep

type Symbol = syntax.Symbol
type SymbolKind = syntax.SymbolKind
type Range = syntax.Range
