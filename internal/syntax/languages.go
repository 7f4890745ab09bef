// Package syntax is the single-file Rust analysis engine: it parses text with
// tree-sitter and derives syntax-tree dumps, outline symbols, highlighting
// markup and module declarations from the result. Every entry point accepts
// arbitrary text and never fails; malformed input shows up as ERROR and
// MISSING nodes in the tree.
package syntax

import (
	"path/filepath"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// extToLanguage maps file extensions to canonical language names.
var extToLanguage = map[string]string{
	".rs": "rust",
}

// rustGrammar is lazily initialized on first call via sync.Once.
var (
	rustGrammar *sitter.Language
	grammarOnce sync.Once
)

// Language returns the tree-sitter Rust grammar.
func Language() *sitter.Language {
	grammarOnce.Do(func() {
		rustGrammar = rust.GetLanguage()
	})
	return rustGrammar
}

// LanguageForFile returns the canonical language name for a file path based
// on its extension. Returns ("", false) if the extension is not recognized.
// Extensions are case-sensitive, as they are for rustc module lookup.
func LanguageForFile(path string) (string, bool) {
	lang, ok := extToLanguage[filepath.Ext(path)]
	return lang, ok
}
