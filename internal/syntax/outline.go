package syntax

import (
	"iter"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Outline returns the structural symbols of text in document order, parents
// before children. Each range over the sequence re-parses text, so the
// sequence can be consumed any number of times.
func Outline(text string) iter.Seq[Symbol] {
	return func(yield func(Symbol) bool) {
		t := Parse(text)
		defer t.Close()
		root := t.Root()
		if root == nil {
			return
		}
		w := &outlineWalker{src: t.src, yield: yield}
		w.walkItems(root, -1, 0, false)
	}
}

type outlineWalker struct {
	src     []byte
	yield   func(Symbol) bool
	next    int
	stopped bool
}

// emit yields s and returns its index, or -1 once the consumer has stopped.
func (w *outlineWalker) emit(s Symbol) int {
	if w.stopped {
		return -1
	}
	if !w.yield(s) {
		w.stopped = true
		return -1
	}
	idx := w.next
	w.next++
	return idx
}

// walkItems visits the item-level children of container. inAssoc is true
// inside impl and trait bodies, where functions are methods.
func (w *outlineWalker) walkItems(container *sitter.Node, parent, depth int, inAssoc bool) {
	for i := 0; i < int(container.NamedChildCount()) && !w.stopped; i++ {
		w.item(container.NamedChild(i), parent, depth, inAssoc)
	}
}

func (w *outlineWalker) item(n *sitter.Node, parent, depth int, inAssoc bool) {
	switch n.Type() {
	case "function_item", "function_signature_item":
		kind := KindFunction
		if inAssoc {
			kind = KindMethod
		}
		w.named(n, kind, w.fnDetail(n), parent, depth)

	case "struct_item", "union_item":
		kind := KindStruct
		if n.Type() == "union_item" {
			kind = KindUnion
		}
		idx := w.named(n, kind, "", parent, depth)
		if body := n.ChildByFieldName("body"); idx >= 0 && body != nil && body.Type() == "field_declaration_list" {
			for j := 0; j < int(body.NamedChildCount()) && !w.stopped; j++ {
				f := body.NamedChild(j)
				if f.Type() != "field_declaration" {
					continue
				}
				w.named(f, KindField, nodeText(f.ChildByFieldName("type"), w.src), idx, depth+1)
			}
		}

	case "enum_item":
		idx := w.named(n, KindEnum, "", parent, depth)
		if body := n.ChildByFieldName("body"); idx >= 0 && body != nil {
			for j := 0; j < int(body.NamedChildCount()) && !w.stopped; j++ {
				if v := body.NamedChild(j); v.Type() == "enum_variant" {
					w.named(v, KindVariant, "", idx, depth+1)
				}
			}
		}

	case "trait_item":
		idx := w.named(n, KindTrait, "", parent, depth)
		if body := n.ChildByFieldName("body"); idx >= 0 && body != nil {
			w.walkItems(body, idx, depth+1, true)
		}

	case "impl_item":
		typ := n.ChildByFieldName("type")
		if typ == nil {
			return
		}
		label := "impl " + nodeText(typ, w.src)
		if trait := n.ChildByFieldName("trait"); trait != nil {
			label = "impl " + nodeText(trait, w.src) + " for " + nodeText(typ, w.src)
		}
		idx := w.emit(Symbol{
			Label:           label,
			Kind:            KindImpl,
			NavigationRange: rangeOf(typ),
			NodeRange:       rangeOf(n),
			Parent:          parent,
			Depth:           depth,
			Deprecated:      w.deprecated(n),
		})
		if body := n.ChildByFieldName("body"); idx >= 0 && body != nil {
			w.walkItems(body, idx, depth+1, true)
		}

	case "mod_item":
		idx := w.named(n, KindModule, "", parent, depth)
		if body := n.ChildByFieldName("body"); idx >= 0 && body != nil {
			w.walkItems(body, idx, depth+1, false)
		}

	case "const_item":
		w.named(n, KindConst, nodeText(n.ChildByFieldName("type"), w.src), parent, depth)
	case "static_item":
		w.named(n, KindStatic, nodeText(n.ChildByFieldName("type"), w.src), parent, depth)
	case "type_item":
		w.named(n, KindTypeAlias, nodeText(n.ChildByFieldName("type"), w.src), parent, depth)
	case "associated_type":
		w.named(n, KindTypeAlias, "", parent, depth)
	case "macro_definition":
		w.named(n, KindMacro, "", parent, depth)
	}
}

// named emits a symbol labelled by n's name field. Nodes without a name
// (recovered from syntax errors) are skipped and return -1.
func (w *outlineWalker) named(n *sitter.Node, kind SymbolKind, detail string, parent, depth int) int {
	name := n.ChildByFieldName("name")
	if name == nil || name.IsMissing() {
		return -1
	}
	return w.emit(Symbol{
		Label:           nodeText(name, w.src),
		Kind:            kind,
		Detail:          detail,
		NavigationRange: rangeOf(name),
		NodeRange:       rangeOf(n),
		Parent:          parent,
		Depth:           depth,
		Deprecated:      w.deprecated(n),
	})
}

func (w *outlineWalker) fnDetail(n *sitter.Node) string {
	params := n.ChildByFieldName("parameters")
	if params == nil {
		return ""
	}
	detail := "fn" + nodeText(params, w.src)
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		detail += " -> " + nodeText(ret, w.src)
	}
	return detail
}

func (w *outlineWalker) deprecated(n *sitter.Node) bool {
	for _, attr := range precedingAttributes(n, w.src) {
		if attr == "deprecated" || strings.HasPrefix(attr, "deprecated(") || strings.HasPrefix(attr, "deprecated ") || strings.HasPrefix(attr, "deprecated=") {
			return true
		}
	}
	return false
}

func rangeOf(n *sitter.Node) Range {
	return Range{Start: int(n.StartByte()), End: int(n.EndByte())}
}
