package cratescope

import (
	"iter"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTree and stubAnalyzer stand in for the analysis engine.
type stubTree struct {
	text   string
	closed *bool
}

func (s stubTree) Len() int        { return len(s.text) }
func (s stubTree) TopLevel() int   { return len(strings.Fields(s.text)) }
func (s stubTree) HasErrors() bool { return strings.Contains(s.text, "!") }
func (s stubTree) Dump() string    { return "stub:" + s.text }
func (s stubTree) Close()          { *s.closed = true }

type stubAnalyzer struct {
	closed bool
}

func (a *stubAnalyzer) Parse(text string) SyntaxTree {
	return stubTree{text: text, closed: &a.closed}
}

func (a *stubAnalyzer) Outline(text string) iter.Seq[Symbol] {
	return func(yield func(Symbol) bool) {
		for i, w := range strings.Fields(text) {
			if !yield(Symbol{Label: w, Parent: -1, NodeRange: Range{Start: i, End: i + 1}}) {
				return
			}
		}
	}
}

func (a *stubAnalyzer) Highlight(text string, rainbow bool) string {
	if rainbow {
		return "rainbow:" + text
	}
	return "plain:" + text
}

func TestIntrospector_DelegatesToAnalyzer(t *testing.T) {
	t.Parallel()
	stub := &stubAnalyzer{}
	in := NewIntrospector(stub)

	tree := in.Parse("a b c")
	assert.Equal(t, 3, tree.TopLevel())
	assert.Equal(t, 5, tree.Len())

	var labels []string
	for s := range in.Outline("x y") {
		labels = append(labels, s.Label)
	}
	assert.Equal(t, []string{"x", "y"}, labels)

	assert.Equal(t, "plain:t", in.RenderHighlight("t", false))
	assert.Equal(t, "rainbow:t", in.RenderHighlight("t", true))

	assert.Equal(t, "stub:q", in.DumpTree("q"))
	assert.True(t, stub.closed)
}

func TestIntrospector_TreeSitter(t *testing.T) {
	t.Parallel()
	in := NewIntrospector(nil)

	empty := in.Parse("")
	defer empty.Close()
	assert.Equal(t, 0, empty.TopLevel())
	assert.False(t, empty.HasErrors())

	broken := in.Parse("struct {")
	defer broken.Close()
	assert.True(t, broken.HasErrors())

	src := "fn one() {}\nstruct Two { field: u8 }\nmod three {}\n"
	var top []Symbol
	for s := range in.Outline(src) {
		if s.Parent == -1 {
			top = append(top, s)
		}
	}
	require.Len(t, top, 3)
	for _, s := range top {
		assert.LessOrEqual(t, s.NodeRange.End, len(src))
		assert.GreaterOrEqual(t, s.NodeRange.Start, 0)
	}

	doc := in.RenderHighlight("", false)
	assert.True(t, strings.HasSuffix(doc, "<pre><code></code></pre>"))
	assert.NotContains(t, doc, "<span")

	assert.True(t, strings.HasPrefix(in.DumpTree("fn f() {}"), "source_file@0..9"))
}

func TestIntrospector_OutlineRestartable(t *testing.T) {
	t.Parallel()
	seq := NewIntrospector(nil).Outline("enum E { A, B }\nconst C: u8 = 0;\n")
	assert.Equal(t, slices.Collect(seq), slices.Collect(seq))
	assert.Len(t, slices.Collect(seq), 4)
}
