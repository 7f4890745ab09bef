package syntax

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ModDecl is a module item found in a file. Out-of-line modules (mod x;)
// have Inline false; inline modules carry their nested declarations.
type ModDecl struct {
	Name     string
	Inline   bool
	Path     string   // #[path = "..."] override, empty when absent
	Cfgs     []string // predicates of #[cfg(...)] attributes, in source order
	Children []ModDecl
}

// ModDecls lists the module declarations of text at item level, recursing
// into inline module bodies. Modules nested in functions are ignored.
func ModDecls(text string) []ModDecl {
	t := Parse(text)
	defer t.Close()
	root := t.Root()
	if root == nil {
		return nil
	}
	return modDecls(root, t.src)
}

func modDecls(container *sitter.Node, src []byte) []ModDecl {
	var out []ModDecl
	for i := 0; i < int(container.NamedChildCount()); i++ {
		n := container.NamedChild(i)
		if n.Type() != "mod_item" {
			continue
		}
		name := n.ChildByFieldName("name")
		if name == nil || name.IsMissing() {
			continue
		}
		decl := ModDecl{Name: nodeText(name, src)}
		attrs := precedingAttributes(n, src)
		// precedingAttributes walks upward; restore source order.
		for j := len(attrs) - 1; j >= 0; j-- {
			if p, ok := pathAttribute(attrs[j]); ok {
				decl.Path = p
			} else if c, ok := cfgAttribute(attrs[j]); ok {
				decl.Cfgs = append(decl.Cfgs, c)
			}
		}
		if body := n.ChildByFieldName("body"); body != nil {
			decl.Inline = true
			decl.Children = modDecls(body, src)
		}
		out = append(out, decl)
	}
	return out
}

func pathAttribute(attr string) (string, bool) {
	rest, ok := strings.CutPrefix(attr, "path")
	if !ok {
		return "", false
	}
	rest, ok = strings.CutPrefix(strings.TrimSpace(rest), "=")
	if !ok {
		return "", false
	}
	p, err := strconv.Unquote(strings.TrimSpace(rest))
	if err != nil {
		return "", false
	}
	return p, true
}

func cfgAttribute(attr string) (string, bool) {
	rest, ok := strings.CutPrefix(attr, "cfg")
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return "", false
	}
	return strings.TrimSpace(rest[1 : len(rest)-1]), true
}
