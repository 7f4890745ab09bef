package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cratescope "github.com/jward/cratescope"
	"github.com/jward/cratescope/internal/store"
	"github.com/jward/cratescope/internal/syntax"
	"github.com/jward/cratescope/internal/testutil"
)

const rustTestSource = `pub fn greet(name: &str) -> String {
    format!("hi {}", name)
}

fn add(a: i32, b: i32) -> i32 {
    a + b
}

struct Server {
    host: String,
}
`

// fakeWorkspace answers crate lookups from fixed tables.
type fakeWorkspace struct {
	owners  map[string][]store.Crate
	crates  []*store.Crate
	files   []*store.File
	deps    map[int64][]*store.Crate
	lastCwd string
}

func (f *fakeWorkspace) ResolveFileCrates(cwd, file string) ([]store.Crate, error) {
	f.lastCwd = cwd
	owners, ok := f.owners[file]
	if !ok {
		return nil, fmt.Errorf("untracked path %s", file)
	}
	return owners, nil
}

func (f *fakeWorkspace) Crates() ([]*store.Crate, error) { return f.crates, nil }

func (f *fakeWorkspace) CrateDeps(crateID int64) ([]*store.Crate, error) {
	return f.deps[crateID], nil
}

func (f *fakeWorkspace) Files() ([]*store.File, error) { return f.files, nil }

func newFakeWorkspace() *fakeWorkspace {
	alpha := store.Crate{ID: 1, Name: "alpha", DisplayName: "alpha", Kind: store.KindLib, Edition: "2021", Features: []string{"default", "std"}}
	beta := store.Crate{ID: 2, Name: "beta", Kind: store.KindBin, Edition: "2018", Ordinal: 1}
	rootID := int64(1)
	return &fakeWorkspace{
		owners: map[string][]store.Crate{
			"shared.rs": {alpha, beta},
			"orphan.rs": {},
		},
		crates: []*store.Crate{&alpha, &beta},
		deps:   map[int64][]*store.Crate{beta.ID: {&alpha}},
		files: []*store.File{
			{ID: 10, Path: "/ws/shared.rs", SourceRootID: &rootID, LineCount: 3},
			{ID: 11, Path: "/elsewhere/orphan.rs"},
		},
	}
}

// parseRustSource parses src with tree-sitter directly and registers it in
// a Runtime's source store.
func parseRustSource(t *testing.T, src string) (*sitter.Tree, *Runtime) {
	t.Helper()

	rt := NewRuntime(nil, "")

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(syntax.Language())

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	require.NoError(t, err)
	rt.sources.store(tree, []byte(src))
	return tree, rt
}

func TestSourceStore_RecoversSourceFromChild(t *testing.T) {
	t.Parallel()
	tree, rt := parseRustSource(t, rustTestSource)

	fn := tree.RootNode().NamedChild(0)
	name := fn.ChildByFieldName("name")
	require.NotNil(t, name)

	src, ok := rt.sources.sourceForNode(name)
	require.True(t, ok)
	assert.Equal(t, "greet", name.Content(src))
}

func TestSourceStore_UnknownTree(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(syntax.Language())
	tree, err := parser.ParseCtx(context.Background(), nil, []byte("fn f() {}"))
	require.NoError(t, err)

	_, ok := rt.sources.sourceForNode(tree.RootNode())
	assert.False(t, ok)
}

// --- Risor integration tests (via RunSource) ---

func TestRunSource_ParseAndNodeText(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	rsFile := filepath.Join(dir, "lib.rs")
	require.NoError(t, os.WriteFile(rsFile, []byte(rustTestSource), 0o644))

	rt := NewRuntime(nil, "")
	script := `
tree := parse(test_file)
root := tree.RootNode()
assert(root.Type() == "source_file", "expected source_file")

names := []
count := int(root.NamedChildCount())
for i := 0; i < count; i++ {
    child := root.NamedChild(i)
    if child.Type() == "function_item" {
        names.append(node_text(node_child(child, "name")))
    }
}
assert(len(names) == 2, 'expected 2 functions, got {len(names)}')
assert(names[0] == "greet", 'expected greet, got {names[0]}')
assert(names[1] == "add", 'expected add, got {names[1]}')
`
	err := rt.RunSource(context.Background(), script, map[string]any{"test_file": rsFile})
	require.NoError(t, err)
}

func TestRunSource_ReadText(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	rsFile := filepath.Join(dir, "lib.rs")
	require.NoError(t, os.WriteFile(rsFile, []byte(rustTestSource), 0o644))

	rt := NewRuntime(nil, "")
	script := `
syms := outline(read_text(test_file))
assert(len(syms) == 4, 'expected 4 symbols, got {len(syms)}')
`
	require.NoError(t, rt.RunSource(context.Background(), script, map[string]any{"test_file": rsFile}))

	err := rt.RunSource(context.Background(), `read_text("/nonexistent/lib.rs")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read_text")
}

func TestRunSource_ParseMissingFile(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")
	err := rt.RunSource(context.Background(), `parse("/nonexistent/lib.rs")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse: reading")
}

func TestRunSource_Query(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")
	script := `
root := parse_src(src).RootNode()
matches := query("(function_item name: (identifier) @name)", root)
assert(len(matches) == 2, 'expected 2 matches, got {len(matches)}')
assert(node_text(matches[0]["name"]) == "greet")
assert(node_text(matches[1]["name"]) == "add")

none := query("(enum_item name: (type_identifier) @name)", root)
assert(len(none) == 0, 'expected 0 matches, got {len(none)}')
`
	err := rt.RunSource(context.Background(), script, map[string]any{"src": rustTestSource})
	require.NoError(t, err)
}

func TestRunSource_QueryInvalidPattern(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")
	script := `
root := parse_src(src).RootNode()
query("(not_a_real_node @x", root)
`
	err := rt.RunSource(context.Background(), script, map[string]any{"src": rustTestSource})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestRunSource_NodeChildMissingField(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")
	script := `
root := parse_src("struct Unit;").RootNode()
item := root.NamedChild(0)
assert(item.Type() == "struct_item")
assert(node_child(item, "body") == nil, "unit struct has no body")
assert(node_text(node_child(item, "name")) == "Unit")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_Outline(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")
	script := `
syms := outline(src)
assert(len(syms) == 4, 'expected 4 symbols, got {len(syms)}')
assert(syms[0]["label"] == "greet")
assert(syms[0]["kind"] == "Function")
assert(syms[0]["parent"] == -1)
assert(syms[2]["label"] == "Server")
assert(syms[2]["kind"] == "Struct")
assert(syms[3]["label"] == "host")
assert(syms[3]["kind"] == "Field")
assert(syms[3]["parent"] == 2)
assert(syms[3]["depth"] == 1)
assert(len(outline("")) == 0)
`
	err := rt.RunSource(context.Background(), script, map[string]any{"src": rustTestSource})
	require.NoError(t, err)
}

func TestRunSource_HighlightAndDump(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	var captured []string
	script := `
keep(highlight(src))
keep(highlight(src, true))
keep(parse_dump(src))
`
	err := rt.RunSource(context.Background(), script, map[string]any{
		"src":  "fn main() {}",
		"keep": captureFn(&captured),
	})
	require.NoError(t, err)
	require.Len(t, captured, 3)
	assert.Equal(t, syntax.Highlight("fn main() {}", false), captured[0])
	assert.Equal(t, syntax.Highlight("fn main() {}", true), captured[1])
	assert.True(t, strings.HasPrefix(captured[2], "source_file@0..12"))
}

func TestRunSource_HighlightRejectsNonBool(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")
	err := rt.RunSource(context.Background(), `highlight("fn f() {}", "yes")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rainbow must be a bool")
}

// --- Workspace functions ---

func TestRunSource_WorkspaceGlobalsAbsentWithoutWorkspace(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")
	err := rt.RunSource(context.Background(), `crates()`, nil)
	require.Error(t, err)
}

func TestRunSource_CratesFor(t *testing.T) {
	t.Parallel()
	ws := newFakeWorkspace()
	rt := NewRuntime(ws, "", WithWorkingDir("/ws"))

	script := `
owners := crates_for("shared.rs")
assert(len(owners) == 2, 'expected 2 owners, got {len(owners)}')
assert(owners[0]["display_name"] == "alpha")
assert(len(owners[0]["features"]) == 2)
assert(owners[0]["features"][1] == "std")
assert(owners[1]["display_name"] == "beta", "falls back to the package name")
assert(owners[1]["kind"] == "bin")
assert(len(crates_for("orphan.rs")) == 0)
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
	assert.Equal(t, "/ws", ws.lastCwd)
}

func TestRunSource_CratesForUntracked(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(newFakeWorkspace(), "", WithWorkingDir("/ws"))
	err := rt.RunSource(context.Background(), `crates_for("missing.rs")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "untracked path")
}

func TestRunSource_CratesAndFiles(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(newFakeWorkspace(), "")
	script := `
every := crates()
assert(len(every) == 2)
assert(every[1]["ordinal"] == 1)

deps := crate_deps(every[1]["id"])
assert(len(deps) == 1)
assert(deps[0]["name"] == "alpha")
assert(len(crate_deps(every[0]["id"])) == 0)

tracked := files()
assert(len(tracked) == 2)
assert(tracked[0]["root_id"] == 1)
assert(tracked[1]["root_id"] == nil, "orphan has no source root")
assert(tracked[0]["line_count"] == 3)
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_AgainstLoadedEngine(t *testing.T) {
	t.Parallel()
	root := testutil.SharedWorkspace(t)
	e, err := cratescope.New(filepath.Join(t.TempDir(), "test.db"), cratescope.WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	_, err = e.Load(context.Background(), root, false)
	require.NoError(t, err)

	rt := NewRuntime(e, "", WithWorkingDir(root), WithLogger(testutil.NewTestLogger(t)))
	script := `
owners := crates_for("shared/shared.rs")
assert(len(owners) == 2, 'expected 2 owners, got {len(owners)}')
assert(owners[0]["display_name"] == "alpha")
assert(owners[1]["display_name"] == "beta")
alpha_features := owners[0]["features"]
beta_features := owners[1]["features"]
assert(len(alpha_features) == 2 && alpha_features[1] == "std")
assert(len(beta_features) == 2 && beta_features[1] == "fast")
log.Info("resolved shared file")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

// --- Script loading ---

func TestRunScript_FromDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(`x := outline("fn f() {}")`), 0o644))

	rt := NewRuntime(nil, dir)
	require.NoError(t, rt.RunScript(context.Background(), "test.risor", nil))
}

func TestRunScript_MissingFile(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, t.TempDir())
	err := rt.RunScript(context.Background(), "nonexistent.risor", nil)
	require.Error(t, err)
}

func TestRunScript_SyntaxError(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")
	err := rt.RunSource(context.Background(), `x := (`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime: script <inline>")
}

func TestLoadScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.risor")
	content := `x := 42`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rt := NewRuntime(nil, dir)
	got, err := rt.LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	got, err = rt.LoadScript("test.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadScript_FromFS(t *testing.T) {
	t.Parallel()

	content := `x := 42`
	mapFS := fstest.MapFS{
		"reports/orphans.risor": &fstest.MapFile{Data: []byte(content)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("reports/orphans.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	got, err = rt.LoadScript("/reports/orphans.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = rt.LoadScript("nonexistent.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

// --- Importer wiring ---

func TestImport_FSImporter(t *testing.T) {
	t.Parallel()
	mapFS := fstest.MapFS{
		"helpers.risor": &fstest.MapFile{Data: []byte(`
func count_fns(src) {
	n := 0
	for _, s := range outline(src) {
		if s["kind"] == "Function" {
			n = n + 1
		}
	}
	return n
}
`)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	script := `
import helpers

n := helpers.count_fns(src)
assert(n == 2, 'expected 2, got {n}')
`
	err := rt.RunSource(context.Background(), script, map[string]any{"src": rustTestSource})
	require.NoError(t, err)
}

func TestImport_LocalImporter(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "math_utils.risor"), []byte(`
func double(x) {
	return x * 2
}
`), 0o644))

	rt := NewRuntime(nil, dir)
	script := `
import math_utils

result := math_utils.double(21)
assert(result == 42, 'expected 42, got {result}')
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestEmit_WritesLines(t *testing.T) {
	t.Parallel()
	var buf strings.Builder
	rt := NewRuntime(nil, "", WithOutput(&buf))

	script := `
emit("plain")
emit("count", 3)
emit()
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
	assert.Equal(t, "plain\ncount 3\n\n", buf.String())
}

func TestLogObject_WritesThroughLogger(t *testing.T) {
	t.Parallel()
	var buf strings.Builder
	rt := NewRuntime(nil, "", WithLogger(newBufferLogger(&buf)))

	script := `
log.Info("one")
log.Warn("two")
log.Error("three")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
	out := buf.String()
	assert.Contains(t, out, "msg=one")
	assert.Contains(t, out, "level=WARN msg=two")
	assert.Contains(t, out, "level=ERROR msg=three")
	assert.Contains(t, out, "source=script")
}

func captureFn(dst *[]string) *object.Builtin {
	return object.NewBuiltin("keep", func(ctx context.Context, args ...object.Object) object.Object {
		for _, a := range args {
			if s, ok := a.(*object.String); ok {
				*dst = append(*dst, s.Value())
			}
		}
		return object.Nil
	})
}

func newBufferLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
