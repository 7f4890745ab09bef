package syntax

import (
	"fmt"
	"strings"
)

// Range is a half-open byte range into the parsed text.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) String() string { return fmt.Sprintf("%d..%d", r.Start, r.End) }

// Contains reports whether o lies within r.
func (r Range) Contains(o Range) bool { return r.Start <= o.Start && o.End <= r.End }

// SymbolKind classifies an outline entry.
type SymbolKind int

const (
	KindModule SymbolKind = iota
	KindFunction
	KindMethod
	KindStruct
	KindEnum
	KindUnion
	KindVariant
	KindField
	KindTrait
	KindImpl
	KindTypeAlias
	KindConst
	KindStatic
	KindMacro
)

var symbolKindNames = [...]string{
	KindModule:    "Module",
	KindFunction:  "Function",
	KindMethod:    "Method",
	KindStruct:    "Struct",
	KindEnum:      "Enum",
	KindUnion:     "Union",
	KindVariant:   "Variant",
	KindField:     "Field",
	KindTrait:     "Trait",
	KindImpl:      "Impl",
	KindTypeAlias: "TypeAlias",
	KindConst:     "Const",
	KindStatic:    "Static",
	KindMacro:     "Macro",
}

func (k SymbolKind) String() string {
	if int(k) < 0 || int(k) >= len(symbolKindNames) {
		return fmt.Sprintf("SymbolKind(%d)", int(k))
	}
	return symbolKindNames[k]
}

// MarshalText renders the kind by name for JSON output.
func (k SymbolKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Symbol is one outline entry. Parent is the index of the enclosing entry in
// the outline sequence, or -1 at the top level.
type Symbol struct {
	Label           string     `json:"label"`
	Kind            SymbolKind `json:"kind"`
	Detail          string     `json:"detail,omitempty"`
	NavigationRange Range      `json:"navigation_range"`
	NodeRange       Range      `json:"node_range"`
	Parent          int        `json:"parent"`
	Depth           int        `json:"depth"`
	Deprecated      bool       `json:"deprecated,omitempty"`
}

// String renders the symbol as one indented outline line.
func (s Symbol) String() string {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", s.Depth))
	fmt.Fprintf(&b, "%s %s %s", s.Kind, s.Label, s.NodeRange)
	if s.Detail != "" {
		fmt.Fprintf(&b, " %q", s.Detail)
	}
	if s.Deprecated {
		b.WriteString(" deprecated")
	}
	return b.String()
}
