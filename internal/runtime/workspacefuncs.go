package runtime

import (
	"context"
	"fmt"
	"os"

	"github.com/risor-io/risor/object"

	"github.com/jward/cratescope/internal/store"
	"github.com/jward/cratescope/internal/syntax"
)

// --- Workspace query functions ---

// crates_for(path) → list of crate maps, empty for an orphaned file.
func makeCratesForFn(ws Workspace, cwd string) *object.Builtin {
	return object.NewBuiltin("crates_for", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("crates_for", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("crates_for: %v", err)
		}
		dir := cwd
		if dir == "" {
			if dir, err = os.Getwd(); err != nil {
				return object.Errorf("crates_for: %v", err)
			}
		}
		crates, err := ws.ResolveFileCrates(dir, path)
		if err != nil {
			return object.Errorf("crates_for: %v", err)
		}
		items := make([]object.Object, len(crates))
		for i := range crates {
			items[i] = crateToMap(&crates[i])
		}
		return object.NewList(items)
	})
}

// crates() → every crate in enumeration order.
func makeCratesFn(ws Workspace) *object.Builtin {
	return object.NewBuiltin("crates", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("crates", 0, len(args))
		}
		crates, err := ws.Crates()
		if err != nil {
			return object.Errorf("crates: %v", err)
		}
		items := make([]object.Object, len(crates))
		for i, c := range crates {
			items[i] = crateToMap(c)
		}
		return object.NewList(items)
	})
}

// crate_deps(id) → the crates a crate depends on directly.
func makeCrateDepsFn(ws Workspace) *object.Builtin {
	return object.NewBuiltin("crate_deps", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("crate_deps", 1, len(args))
		}
		id, ok := args[0].(*object.Int)
		if !ok {
			return object.Errorf("crate_deps: expected int, got %s", args[0].Type())
		}
		deps, err := ws.CrateDeps(id.Value())
		if err != nil {
			return object.Errorf("crate_deps: %v", err)
		}
		items := make([]object.Object, len(deps))
		for i, c := range deps {
			items[i] = crateToMap(c)
		}
		return object.NewList(items)
	})
}

// files() → every tracked file.
func makeFilesFn(ws Workspace) *object.Builtin {
	return object.NewBuiltin("files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("files", 0, len(args))
		}
		files, err := ws.Files()
		if err != nil {
			return object.Errorf("files: %v", err)
		}
		items := make([]object.Object, len(files))
		for i, f := range files {
			m := map[string]object.Object{
				"id":         object.NewInt(f.ID),
				"path":       object.NewString(f.Path),
				"hash":       object.NewString(f.Hash),
				"line_count": object.NewInt(int64(f.LineCount)),
				"root_id":    object.Nil,
			}
			if f.SourceRootID != nil {
				m["root_id"] = object.NewInt(*f.SourceRootID)
			}
			items[i] = object.NewMap(m)
		}
		return object.NewList(items)
	})
}

// --- Introspection functions ---

// outline(source) → list of symbol maps in document order.
func makeOutlineFn() *object.Builtin {
	return object.NewBuiltin("outline", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("outline", 1, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("outline: %v", err)
		}
		items := []object.Object{}
		for sym := range syntax.Outline(src) {
			items = append(items, symbolToMap(sym))
		}
		return object.NewList(items)
	})
}

// highlight(source, rainbow=false) → HTML markup.
func makeHighlightFn() *object.Builtin {
	return object.NewBuiltin("highlight", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.Errorf("highlight: expected 1 or 2 arguments, got %d", len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("highlight: %v", err)
		}
		rainbow := false
		if len(args) == 2 {
			b, ok := args[1].(*object.Bool)
			if !ok {
				return object.Errorf("highlight: rainbow must be a bool, got %s", args[1].Type())
			}
			rainbow = b.Value()
		}
		return object.NewString(syntax.Highlight(src, rainbow))
	})
}

// parse_dump(source) → indented syntax tree dump.
func makeParseDumpFn() *object.Builtin {
	return object.NewBuiltin("parse_dump", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse_dump", 1, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("parse_dump: %v", err)
		}
		tree := syntax.Parse(src)
		defer tree.Close()
		return object.NewString(tree.Dump())
	})
}

func crateToMap(c *store.Crate) object.Object {
	features := make([]object.Object, len(c.Features))
	for i, f := range c.Features {
		features[i] = object.NewString(f)
	}
	return object.NewMap(map[string]object.Object{
		"id":           object.NewInt(c.ID),
		"name":         object.NewString(c.Name),
		"display_name": object.NewString(c.Label()),
		"kind":         object.NewString(c.Kind),
		"edition":      object.NewString(c.Edition),
		"manifest":     object.NewString(c.ManifestPath),
		"ordinal":      object.NewInt(int64(c.Ordinal)),
		"features":     object.NewList(features),
	})
}

func symbolToMap(s syntax.Symbol) object.Object {
	return object.NewMap(map[string]object.Object{
		"label":      object.NewString(s.Label),
		"kind":       object.NewString(s.Kind.String()),
		"detail":     object.NewString(s.Detail),
		"start":      object.NewInt(int64(s.NodeRange.Start)),
		"end":        object.NewInt(int64(s.NodeRange.End)),
		"parent":     object.NewInt(int64(s.Parent)),
		"depth":      object.NewInt(int64(s.Depth)),
		"deprecated": object.NewBool(s.Deprecated),
	})
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
