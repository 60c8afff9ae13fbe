// Package markdown renders article bodies to HTML and builds their table of contents.
package markdown

import (
	"bytes"
	"fmt"
	"time"

	"myblog/internal/observability"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// DefaultStyle is the chroma style used for fenced code blocks.
const DefaultStyle = "monokai"

// Result is a rendered document.
type Result struct {
	HTML string `json:"html"`
	TOC  string `json:"toc"`
}

// Renderer converts Markdown to HTML. It is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// New returns a Renderer with tables, abbreviations, footnotes, definition
// lists, GFM, typographic quotes, heading ids and highlighted code blocks.
// Raw HTML in the source is escaped.
func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
			extension.Footnote,
			extension.DefinitionList,
			extension.Typographer,
			Abbreviations,
			highlighting.NewHighlighting(
				highlighting.WithStyle(DefaultStyle),
				highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithAttribute(),
		),
	)
	return &Renderer{md: md}
}

// Render converts src into HTML and a nested table of contents.
func (r *Renderer) Render(src string) (Result, error) {
	start := time.Now()
	defer observability.ObserveSince(observability.MarkdownRenderDuration, start)

	source := []byte(src)
	doc := r.md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, source, doc); err != nil {
		return Result{}, fmt.Errorf("markdown render: %w", err)
	}

	tocHTML, err := r.renderTOC(doc, source)
	if err != nil {
		return Result{}, err
	}
	return Result{HTML: buf.String(), TOC: tocHTML}, nil
}

// renderTOC lists the document's headings as nested links. Skipped levels
// do not produce empty entries.
func (r *Renderer) renderTOC(doc ast.Node, source []byte) (string, error) {
	tree, err := toc.Inspect(doc, source, toc.Compact(true))
	if err != nil {
		return "", fmt.Errorf("markdown toc: %w", err)
	}
	list := toc.RenderList(tree)
	if list == nil {
		return "", nil
	}

	var buf bytes.Buffer
	buf.WriteString(`<div class="toc">`)
	if err := r.md.Renderer().Render(&buf, source, list); err != nil {
		return "", fmt.Errorf("markdown toc render: %w", err)
	}
	buf.WriteString(`</div>`)
	return buf.String(), nil
}

// StyleCSS returns the stylesheet matching the class names emitted for code blocks.
func StyleCSS(name string) (string, error) {
	style := styles.Get(name)
	var buf bytes.Buffer
	if err := chromahtml.New(chromahtml.WithClasses(true)).WriteCSS(&buf, style); err != nil {
		return "", fmt.Errorf("write css: %w", err)
	}
	return buf.String(), nil
}
