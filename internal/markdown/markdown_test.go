package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Basics(t *testing.T) {
	r := New()

	out, err := r.Render("# Title\n\nSome **bold** text.\n")
	require.NoError(t, err)
	assert.Contains(t, out.HTML, `<h1 id="title">Title</h1>`)
	assert.Contains(t, out.HTML, "<strong>bold</strong>")
}

func TestRender_Extensions(t *testing.T) {
	r := New()
	src := strings.Join([]string{
		"| a | b |",
		"|---|---|",
		"| 1 | 2 |",
		"",
		"Term",
		": Definition",
		"",
		"Note[^1].",
		"",
		"[^1]: The footnote.",
		"",
		"~~gone~~",
		"",
		"```go",
		"package main",
		"```",
	}, "\n")

	out, err := r.Render(src)
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "<table>")
	assert.Contains(t, out.HTML, "<dl>")
	assert.Contains(t, out.HTML, `class="footnotes"`)
	assert.Contains(t, out.HTML, "<del>gone</del>")
	assert.Contains(t, out.HTML, `class="chroma"`)
}

func TestRender_EscapesRawHTML(t *testing.T) {
	out, err := New().Render("<script>alert(1)</script>\n")
	require.NoError(t, err)
	assert.NotContains(t, out.HTML, "<script>")
}

// flat drops the line breaks goldmark puts between list elements.
func flat(s string) string {
	return strings.ReplaceAll(s, "\n", "")
}

func TestRender_TableOfContentsNesting(t *testing.T) {
	src := "# Intro\n\n## Setup\n\n### Deep\n\n## Usage\n\n# Outro\n"

	out, err := New().Render(src)
	require.NoError(t, err)

	want := `<div class="toc"><ul>` +
		`<li><a href="#intro">Intro</a><ul>` +
		`<li><a href="#setup">Setup</a><ul><li><a href="#deep">Deep</a></li></ul></li>` +
		`<li><a href="#usage">Usage</a></li>` +
		`</ul></li>` +
		`<li><a href="#outro">Outro</a></li>` +
		`</ul></div>`
	assert.Equal(t, want, flat(out.TOC))
}

func TestRender_TOCUsesCustomIDsAndPlainText(t *testing.T) {
	out, err := New().Render("## Hello `code` world {#custom}\n")
	require.NoError(t, err)
	assert.Equal(t, `<div class="toc"><ul><li><a href="#custom">Hello code world</a></li></ul></div>`, flat(out.TOC))
}

func TestRender_TOCSkippedLevelsLeaveNoEmptyEntries(t *testing.T) {
	out, err := New().Render("### a\n\n## b\n\n### c\n")
	require.NoError(t, err)

	want := `<div class="toc"><ul>` +
		`<li><a href="#a">a</a></li>` +
		`<li><a href="#b">b</a><ul><li><a href="#c">c</a></li></ul></li>` +
		`</ul></div>`
	assert.Equal(t, want, flat(out.TOC))
}

func TestRender_NoHeadingsNoTOC(t *testing.T) {
	out, err := New().Render("just text")
	require.NoError(t, err)
	assert.Empty(t, out.TOC)
}

func TestRender_Abbreviations(t *testing.T) {
	out, err := New().Render("The HTML spec.\n\n*[HTML]: Hyper Text Markup Language\n")
	require.NoError(t, err)
	assert.Equal(t, "<p>The <abbr title=\"Hyper Text Markup Language\">HTML</abbr> spec.</p>\n", out.HTML)
	assert.NotContains(t, out.HTML, "*[HTML]")
}

func TestRender_AbbreviationsRules(t *testing.T) {
	src := strings.Join([]string{
		"CSS and CSS3 differ; XCSS is unrelated.",
		"",
		"Inline `CSS` stays code and so does [CSS](https://example.com).",
		"",
		"*[CSS]: Cascading Style Sheets",
		"*[CSS3]: Cascading Style Sheets \"3\"",
	}, "\n")

	out, err := New().Render(src)
	require.NoError(t, err)
	assert.Contains(t, out.HTML, `<abbr title="Cascading Style Sheets">CSS</abbr> and `)
	assert.Contains(t, out.HTML, `<abbr title="Cascading Style Sheets &quot;3&quot;">CSS3</abbr>`)
	assert.Contains(t, out.HTML, "XCSS is unrelated")
	assert.Contains(t, out.HTML, "<code>CSS</code>")
	assert.Contains(t, out.HTML, `<a href="https://example.com">CSS</a>`)
	assert.Equal(t, 2, strings.Count(out.HTML, "<abbr"))
	assert.NotContains(t, out.HTML, "*[")
}

func TestRender_ListsStillParse(t *testing.T) {
	out, err := New().Render("* one\n* two\n")
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "<li>one</li>")
}

func TestStyleCSS(t *testing.T) {
	css, err := StyleCSS(DefaultStyle)
	require.NoError(t, err)
	assert.Contains(t, css, ".chroma")
}
