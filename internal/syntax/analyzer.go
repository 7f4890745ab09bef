package syntax

import "iter"

// Analyzer bundles the package-level entry points behind one value.
type Analyzer struct{}

// NewAnalyzer returns the tree-sitter backed analyzer.
func NewAnalyzer() *Analyzer { return &Analyzer{} }

func (*Analyzer) Parse(text string) *Tree { return Parse(text) }

func (*Analyzer) Outline(text string) iter.Seq[Symbol] { return Outline(text) }

func (*Analyzer) Highlight(text string, rainbow bool) string { return Highlight(text, rainbow) }
