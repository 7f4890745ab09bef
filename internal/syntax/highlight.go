package syntax

import (
	"fmt"
	"hash/fnv"
	"html"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
)

// Highlight categories, used verbatim as CSS class names.
const (
	TagKeyword        = "keyword"
	TagComment        = "comment"
	TagString         = "string_literal"
	TagChar           = "char_literal"
	TagNumeric        = "numeric_literal"
	TagBool           = "bool_literal"
	TagLifetime       = "lifetime"
	TagAttribute      = "attribute"
	TagMacro          = "macro"
	TagFunction       = "function"
	TagType           = "type"
	TagBuiltinType    = "builtin_type"
	TagField          = "field"
	TagModule         = "module"
	TagVariable       = "variable"
	TagParameter      = "parameter"
	TagSelf           = "self_keyword"
	TagOperator       = "operator"
	TagPunctuation    = "punctuation"
	TagEscapeSequence = "escape_sequence"
)

const highlightCSS = `<style>
body                { margin: 0; }
pre                 { color: #DCDCCC; background: #3F3F3F; font-size: 22px; padding: 0.4em; }

.lifetime           { color: #DFAF8F; font-style: italic; }
.comment            { color: #7F9F7F; }
.attribute          { color: #94BFF3; }
.string_literal     { color: #CC9393; }
.char_literal       { color: #CC9393; }
.escape_sequence    { color: #94BFF3; }
.field              { color: #94BFF3; }
.function           { color: #93E0E3; }
.parameter          { color: #94BFF3; }
.type               { color: #7CB8BB; }
.builtin_type       { color: #8CD0D3; }
.module             { color: #AFD8AF; }
.macro              { color: #94BFF3; }
.variable           { color: #DCDCCC; }
.numeric_literal    { color: #BFEBBF; }
.bool_literal       { color: #BFE6EB; }
.self_keyword       { color: #E3CEAB; font-weight: bold; }
.keyword            { color: #F0DFAF; font-weight: bold; }
.operator           { color: #DCDCCC; }
.punctuation        { color: #DCDCCC; }
</style>
`

// atomicTags are nodes highlighted as one token regardless of their children.
var atomicTags = map[string]string{
	"line_comment":               TagComment,
	"block_comment":              TagComment,
	"raw_string_literal":         TagString,
	"char_literal":               TagChar,
	"integer_literal":            TagNumeric,
	"float_literal":              TagNumeric,
	"boolean_literal":            TagBool,
	"lifetime":                   TagLifetime,
	"attribute_item":             TagAttribute,
	"inner_attribute_item":       TagAttribute,
	"escape_sequence":            TagEscapeSequence,
	"primitive_type":             TagBuiltinType,
	"type_identifier":            TagType,
	"self":                       TagSelf,
	"mutable_specifier":          TagKeyword,
	"crate":                      TagKeyword,
	"super":                      TagKeyword,
	"metavariable":               TagVariable,
	"shorthand_field_identifier": TagField,
}

var punctuation = map[string]bool{
	"(": true, ")": true, "{": true, "}": true, "[": true, "]": true,
	";": true, ",": true, ":": true, "::": true, ".": true, "#": true,
}

// Highlight renders text as an HTML document with one span per classified
// token. With rainbow set, local bindings additionally carry a per-name hash
// and color; their class is unchanged.
func Highlight(text string, rainbow bool) string {
	t := Parse(text)
	defer t.Close()

	var b strings.Builder
	b.WriteString(highlightCSS)
	b.WriteString("<pre><code>")
	if root := t.Root(); root != nil {
		h := &highlighter{src: t.src, out: &b, rainbow: rainbow}
		h.visit(root)
		h.gap(len(t.src))
	} else {
		b.WriteString(html.EscapeString(text))
	}
	b.WriteString("</code></pre>")
	return b.String()
}

type highlighter struct {
	src     []byte
	out     *strings.Builder
	pos     int
	rainbow bool
}

// gap writes unclassified text up to end.
func (h *highlighter) gap(end int) {
	if end > h.pos {
		h.out.WriteString(html.EscapeString(string(h.src[h.pos:end])))
		h.pos = end
	}
}

func (h *highlighter) visit(n *sitter.Node) {
	start, end := int(n.StartByte()), int(n.EndByte())
	if end <= start || start < h.pos {
		return
	}
	if n.Type() == "string_literal" {
		h.stringLiteral(n)
		return
	}
	if tag, ok := atomicTags[n.Type()]; ok && n.IsNamed() {
		h.token(n, tag)
		return
	}
	if n.ChildCount() == 0 {
		h.token(n, classifyLeaf(n))
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		h.visit(n.Child(i))
	}
}

func (h *highlighter) token(n *sitter.Node, tag string) {
	h.span(int(n.StartByte()), int(n.EndByte()), tag)
}

// stringLiteral splits a string around its escape sequences.
func (h *highlighter) stringLiteral(n *sitter.Node) {
	h.gap(int(n.StartByte()))
	for i := 0; i < int(n.NamedChildCount()); i++ {
		esc := n.NamedChild(i)
		if esc.Type() != "escape_sequence" {
			continue
		}
		h.span(h.pos, int(esc.StartByte()), TagString)
		h.span(int(esc.StartByte()), int(esc.EndByte()), TagEscapeSequence)
	}
	h.span(h.pos, int(n.EndByte()), TagString)
}

func (h *highlighter) span(start, end int, tag string) {
	if end <= start {
		return
	}
	h.gap(start)
	text := string(h.src[start:end])
	if tag == "" {
		h.out.WriteString(html.EscapeString(text))
		h.pos = end
		return
	}
	fmt.Fprintf(h.out, `<span class="%s"`, tag)
	if h.rainbow && (tag == TagVariable || tag == TagParameter) {
		hash := bindingHash(text)
		fmt.Fprintf(h.out, ` data-binding-hash="%d" style="color: %s;"`, hash, rainbowColor(hash))
	}
	fmt.Fprintf(h.out, ">%s</span>", html.EscapeString(text))
	h.pos = end
}

// classifyLeaf picks a category for a token from its kind and its parent.
// Unknown tokens return "" and are written without a span.
func classifyLeaf(n *sitter.Node) string {
	kind := n.Type()
	if !n.IsNamed() {
		switch {
		case kind == "macro_rules!":
			return TagKeyword
		case kind == "!" && parentType(n) == "macro_invocation":
			return TagMacro
		case punctuation[kind]:
			return TagPunctuation
		case isWord(kind):
			return TagKeyword
		default:
			return TagOperator
		}
	}

	parent := n.Parent()
	switch kind {
	case "identifier":
		return classifyIdentifier(n, parent)
	case "field_identifier":
		if parent != nil && parent.Type() == "field_expression" {
			if gp := parent.Parent(); gp != nil && gp.Type() == "call_expression" && sameNode(gp.ChildByFieldName("function"), parent) {
				return TagFunction
			}
		}
		return TagField
	}
	return ""
}

func classifyIdentifier(n, parent *sitter.Node) string {
	if parent == nil {
		return TagVariable
	}
	switch parent.Type() {
	case "function_item", "function_signature_item":
		return TagFunction
	case "call_expression":
		if sameNode(parent.ChildByFieldName("function"), n) {
			return TagFunction
		}
	case "macro_invocation", "macro_definition":
		return TagMacro
	case "mod_item", "extern_crate_declaration":
		return TagModule
	case "scoped_identifier", "scoped_type_identifier", "scoped_use_list":
		if sameNode(parent.ChildByFieldName("path"), n) {
			return TagModule
		}
		if parent.Parent() != nil && parent.Parent().Type() == "call_expression" {
			return TagFunction
		}
	case "parameter":
		return TagParameter
	case "enum_variant", "struct_item", "enum_item", "union_item", "trait_item":
		return TagType
	case "field_initializer", "field_pattern":
		return TagField
	}
	return TagVariable
}

func parentType(n *sitter.Node) string {
	if p := n.Parent(); p != nil {
		return p.Type()
	}
	return ""
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && r != '_' {
			return false
		}
	}
	return true
}

func bindingHash(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}

func rainbowColor(hash uint64) string {
	hue := hash % 360
	saturation := 42 + (hash>>16)%40
	lightness := 40 + (hash>>32)%40
	return fmt.Sprintf("hsl(%d,%d%%,%d%%)", hue, saturation, lightness)
}
