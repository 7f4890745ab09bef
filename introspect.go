package cratescope

import (
	"iter"

	"github.com/jward/cratescope/internal/syntax"
)

// SyntaxTree is an immutable parse of one text buffer. Malformed input is
// represented by error nodes inside the tree.
type SyntaxTree interface {
	// Len is the length of the parsed text in bytes.
	Len() int
	// TopLevel counts top-level nodes, excluding comments.
	TopLevel() int
	HasErrors() bool
	// Dump renders the tree one node per line.
	Dump() string
	Close()
}

// Analyzer is the analysis engine behind an Introspector.
type Analyzer interface {
	Parse(text string) SyntaxTree
	Outline(text string) iter.Seq[Symbol]
	Highlight(text string, rainbow bool) string
}

// Introspector answers structural queries about raw text. Each call builds a
// throwaway single-file analysis; nothing is shared with the project
// database, and no operation fails.
type Introspector struct {
	analyzer Analyzer
}

// NewIntrospector wraps a. A nil analyzer selects the tree-sitter engine.
func NewIntrospector(a Analyzer) *Introspector {
	if a == nil {
		a = TreeSitterAnalyzer()
	}
	return &Introspector{analyzer: a}
}

// Parse builds a syntax tree for text. The caller closes it.
func (i *Introspector) Parse(text string) SyntaxTree {
	return i.analyzer.Parse(text)
}

// Outline returns the structural symbols of text. The sequence is lazy and
// may be ranged over repeatedly.
func (i *Introspector) Outline(text string) iter.Seq[Symbol] {
	return i.analyzer.Outline(text)
}

// RenderHighlight returns an HTML document classifying every token of text.
// rainbow only adds per-binding colors; categories are unchanged.
func (i *Introspector) RenderHighlight(text string, rainbow bool) string {
	return i.analyzer.Highlight(text, rainbow)
}

// DumpTree parses text and returns the tree dump.
func (i *Introspector) DumpTree(text string) string {
	t := i.Parse(text)
	defer t.Close()
	return t.Dump()
}

// TreeSitterAnalyzer returns the built-in Rust analyzer.
func TreeSitterAnalyzer() Analyzer {
	return treeSitter{a: syntax.NewAnalyzer()}
}

type treeSitter struct {
	a *syntax.Analyzer
}

func (t treeSitter) Parse(text string) SyntaxTree { return t.a.Parse(text) }

func (t treeSitter) Outline(text string) iter.Seq[Symbol] { return t.a.Outline(text) }

func (t treeSitter) Highlight(text string, rainbow bool) string { return t.a.Highlight(text, rainbow) }
