// Package cratescope resolves files in a multi-crate Rust workspace to the
// crates that include them, and answers structural queries (outline, syntax
// highlighting, syntax-tree dump) about raw Rust text.
//
// # Pipeline
//
//  1. Load: the workspace loader reads Cargo.toml manifests, discovers
//     targets, resolves feature sets, walks every crate's module tree and
//     writes a snapshot to SQLite in one transaction.
//
//  2. Query: [Normalize] canonicalizes a user path, [PathSpace] maps it to a
//     [FileID], and [CrateResolver] returns every owning crate in the
//     database's enumeration order (dependencies first).
//
// A file may belong to several crates (a module shared by two packages, or by
// a library and its binaries); all of them are returned, each with the
// feature set recorded at load time. A tracked file that no crate includes
// resolves to an empty slice, while a path the loader never indexed fails
// with [ErrUntrackedPath].
//
// # Usage
//
//	e, err := cratescope.New("cratescope.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	_, err = e.Load(ctx, "path/to/workspace", false)
//	crates, err := e.ResolveFileCrates(cwd, "src/shared.rs")
//
// # Introspection
//
// [Introspector] works on text alone and never fails: malformed input shows
// up as ERROR and MISSING nodes. The analysis engine is injected through the
// [Analyzer] interface; [TreeSitterAnalyzer] is the built-in one.
package cratescope
