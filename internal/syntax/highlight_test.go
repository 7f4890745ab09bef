package syntax

import (
	"html"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codeBody(t *testing.T, doc string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(doc, "<style>"))
	start := strings.Index(doc, "<pre><code>")
	require.GreaterOrEqual(t, start, 0)
	require.True(t, strings.HasSuffix(doc, "</code></pre>"))
	return strings.TrimSuffix(doc[start+len("<pre><code>"):], "</code></pre>")
}

func TestHighlight_Empty(t *testing.T) {
	t.Parallel()
	doc := Highlight("", false)
	assert.Equal(t, "", codeBody(t, doc))
	assert.NotContains(t, doc, "<span")
}

func TestHighlight_Categories(t *testing.T) {
	t.Parallel()
	body := codeBody(t, Highlight("fn main() {\n    let x: u32 = 1;\n    println!(\"hi\");\n}\n", false))

	assert.Contains(t, body, `<span class="keyword">fn</span>`)
	assert.Contains(t, body, `<span class="function">main</span>`)
	assert.Contains(t, body, `<span class="keyword">let</span>`)
	assert.Contains(t, body, `<span class="variable">x</span>`)
	assert.Contains(t, body, `<span class="builtin_type">u32</span>`)
	assert.Contains(t, body, `<span class="numeric_literal">1</span>`)
	assert.Contains(t, body, `<span class="macro">println</span>`)
	assert.Contains(t, body, `<span class="punctuation">;</span>`)
	assert.Contains(t, body, `<span class="operator">=</span>`)
}

func TestHighlight_PreservesText(t *testing.T) {
	t.Parallel()
	src := "// c\nstruct S<'a> { f: &'a str }\nfn g(s: S) -> bool { s.f.is_empty() && true }\n"
	body := codeBody(t, Highlight(src, false))
	tags := regexp.MustCompile(`<[^>]+>`)
	plain := tags.ReplaceAllString(body, "")
	assert.Equal(t, html.EscapeString(src), plain)

	assert.Contains(t, body, `<span class="comment">// c`)
	assert.Contains(t, body, `<span class="lifetime">&#39;a</span>`)
	assert.Contains(t, body, `<span class="type">S</span>`)
	assert.Contains(t, body, `<span class="parameter">s</span>`)
	assert.Contains(t, body, `<span class="field">f</span>`)
	assert.Contains(t, body, `<span class="function">is_empty</span>`)
	assert.Contains(t, body, `<span class="bool_literal">true</span>`)
}

func TestHighlight_EscapesMarkup(t *testing.T) {
	t.Parallel()
	body := codeBody(t, Highlight(`fn f() { let s = "<a>\n"; }`, false))
	assert.Contains(t, body, "&lt;a&gt;")
	assert.NotContains(t, body, "<a>")
	assert.Contains(t, body, `<span class="escape_sequence">\n</span>`)
}

func TestHighlight_RainbowOnlyAddsAttributes(t *testing.T) {
	t.Parallel()
	src := "fn f(a: i32) -> i32 {\n    let b = a + 1;\n    let c = b * a;\n    c\n}\n"
	plain := Highlight(src, false)
	rainbow := Highlight(src, true)

	assert.NotContains(t, plain, "data-binding-hash")
	assert.Contains(t, rainbow, "data-binding-hash")

	extra := regexp.MustCompile(` data-binding-hash="\d+" style="color: hsl\(\d+,\d+%,\d+%\);"`)
	assert.Equal(t, plain, extra.ReplaceAllString(rainbow, ""))
}

func TestHighlight_RainbowStablePerName(t *testing.T) {
	t.Parallel()
	doc := Highlight("fn f() { let x = 1; let y = x; }", true)
	re := regexp.MustCompile(`data-binding-hash="(\d+)"[^>]*>x<`)
	matches := re.FindAllStringSubmatch(doc, -1)
	require.Len(t, matches, 2)
	assert.Equal(t, matches[0][1], matches[1][1])
	assert.Equal(t, rainbowColor(bindingHash("x")), rainbowColor(bindingHash("x")))
	assert.NotEqual(t, bindingHash("x"), bindingHash("y"))
}

func TestHighlight_MalformedInput(t *testing.T) {
	t.Parallel()
	src := "fn (( let <"
	body := codeBody(t, Highlight(src, false))
	plain := regexp.MustCompile(`<[^>]+>`).ReplaceAllString(body, "")
	assert.Equal(t, "fn (( let &lt;", plain)
}
