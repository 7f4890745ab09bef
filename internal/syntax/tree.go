package syntax

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Tree is an immutable parse of one text buffer.
type Tree struct {
	src  []byte
	tree *sitter.Tree
}

// Parse builds a syntax tree for text. It never fails: tree-sitter recovers
// from malformed input by embedding ERROR and MISSING nodes.
func Parse(text string) *Tree {
	src := []byte(text)
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(Language())

	// ParseCtx only errors on cancellation, which a background context never
	// triggers; a nil tree degrades to an empty result.
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return &Tree{src: src}
	}
	return &Tree{src: src, tree: tree}
}

// Root returns the source_file node, or nil for a degenerate tree.
func (t *Tree) Root() *sitter.Node {
	if t.tree == nil {
		return nil
	}
	return t.tree.RootNode()
}

// Source returns the parsed bytes.
func (t *Tree) Source() []byte { return t.src }

// Len is the length of the parsed text in bytes.
func (t *Tree) Len() int { return len(t.src) }

// TopLevel counts the top-level nodes that are not comments.
func (t *Tree) TopLevel() int {
	root := t.Root()
	if root == nil {
		return 0
	}
	n := 0
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if !isTrivia(root.NamedChild(i).Type()) {
			n++
		}
	}
	return n
}

// HasErrors reports whether the tree contains ERROR or MISSING nodes.
func (t *Tree) HasErrors() bool {
	root := t.Root()
	return root != nil && root.HasError()
}

// Close releases the underlying tree-sitter tree.
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// Dump renders the tree one node per line as kind@start..end, indented two
// spaces per level. Leaf tokens carry their quoted text.
func (t *Tree) Dump() string {
	root := t.Root()
	if root == nil {
		return ""
	}
	var b strings.Builder
	dumpNode(&b, root, t.src, 0)
	return b.String()
}

func dumpNode(b *strings.Builder, n *sitter.Node, src []byte, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	start, end := n.StartByte(), n.EndByte()
	if n.IsMissing() {
		fmt.Fprintf(b, "MISSING %s@%d..%d\n", n.Type(), start, end)
		return
	}
	fmt.Fprintf(b, "%s@%d..%d", n.Type(), start, end)
	if n.ChildCount() == 0 && end > start {
		fmt.Fprintf(b, " %q", n.Content(src))
	}
	b.WriteByte('\n')
	for i := 0; i < int(n.ChildCount()); i++ {
		dumpNode(b, n.Child(i), src, depth+1)
	}
}

func isTrivia(kind string) bool {
	return kind == "line_comment" || kind == "block_comment"
}

// nodeText returns the source text covered by n, or "" for a nil node.
func nodeText(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(src)
}

// precedingAttributes returns the attribute_item siblings directly above n,
// nearest first. Comments between attributes are skipped.
func precedingAttributes(n *sitter.Node, src []byte) []string {
	var attrs []string
	for sib := n.PrevSibling(); sib != nil; sib = sib.PrevSibling() {
		switch sib.Type() {
		case "attribute_item":
			attrs = append(attrs, attributeBody(sib.Content(src)))
		case "line_comment", "block_comment":
			continue
		default:
			return attrs
		}
	}
	return attrs
}

// attributeBody strips the #[ ... ] wrapper of an outer attribute.
func attributeBody(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "#")
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "[")
	text = strings.TrimSuffix(text, "]")
	return strings.TrimSpace(text)
}
