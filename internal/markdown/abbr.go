package markdown

import (
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// abbrDefPattern matches a Markdown Extra abbreviation line: *[HTML]: Title
var abbrDefPattern = regexp.MustCompile(`^ {0,3}\*\[([^\]]+)\]:[ \t]*(.*?)\s*$`)

// KindAbbrDefinition is the block holding one abbreviation definition.
var KindAbbrDefinition = ast.NewNodeKind("AbbrDefinition")

// KindAbbr is an inline occurrence of a defined abbreviation.
var KindAbbr = ast.NewNodeKind("Abbr")

// AbbrDefinition is removed from the tree once its term has been applied.
type AbbrDefinition struct {
	ast.BaseBlock
	Term  string
	Title string
}

func (n *AbbrDefinition) Kind() ast.NodeKind { return KindAbbrDefinition }

func (n *AbbrDefinition) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Term": n.Term, "Title": n.Title}, nil)
}

// Abbr wraps the text of one abbreviation occurrence.
type Abbr struct {
	ast.BaseInline
	Title string
}

func (n *Abbr) Kind() ast.NodeKind { return KindAbbr }

func (n *Abbr) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Title": n.Title}, nil)
}

type abbrParser struct{}

func (p *abbrParser) Trigger() []byte { return []byte{'*'} }

func (p *abbrParser) Open(parent ast.Node, reader text.Reader, pc parser.Context) (ast.Node, parser.State) {
	line, segment := reader.PeekLine()
	m := abbrDefPattern.FindSubmatch(line)
	if m == nil {
		return nil, parser.NoChildren
	}
	term := strings.TrimSpace(string(m[1]))
	if term == "" {
		return nil, parser.NoChildren
	}
	reader.Advance(segment.Len() - 1)
	return &AbbrDefinition{Term: term, Title: string(m[2])}, parser.NoChildren
}

func (p *abbrParser) Continue(node ast.Node, reader text.Reader, pc parser.Context) parser.State {
	return parser.Close
}

func (p *abbrParser) Close(node ast.Node, reader text.Reader, pc parser.Context) {}

func (p *abbrParser) CanInterruptParagraph() bool { return true }

func (p *abbrParser) CanAcceptIndentedLine() bool { return false }

// abbrTransformer drops definition blocks and marks every whole-word use
// of a defined term in ordinary text.
type abbrTransformer struct{}

func (t *abbrTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	var defs []*AbbrDefinition
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if d, ok := n.(*AbbrDefinition); ok && entering {
			defs = append(defs, d)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if len(defs) == 0 {
		return
	}

	// Later definitions of the same term win.
	titles := make(map[string]string, len(defs))
	for _, d := range defs {
		titles[d.Term] = d.Title
		d.Parent().RemoveChild(d.Parent(), d)
	}
	pattern := termPattern(titles)

	var texts []*ast.Text
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.CodeSpan, *ast.CodeBlock, *ast.FencedCodeBlock, *ast.Link, *ast.AutoLink, *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			texts = append(texts, n)
		}
		return ast.WalkContinue, nil
	})

	source := reader.Source()
	for _, txt := range texts {
		splitAbbrs(txt, source, pattern, titles)
	}
}

func termPattern(titles map[string]string) *regexp.Regexp {
	terms := make([]string, 0, len(titles))
	for term := range titles {
		terms = append(terms, term)
	}
	// Longest first so "HTML5" is preferred over "HTML".
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = regexp.QuoteMeta(term)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// splitAbbrs inserts the text before each match and an Abbr node ahead of
// txt, leaving txt as the trailing remainder so its line-break flags stay.
func splitAbbrs(txt *ast.Text, source []byte, pattern *regexp.Regexp, titles map[string]string) {
	seg := txt.Segment
	value := seg.Value(source)
	matches := pattern.FindAllIndex(value, -1)
	if len(matches) == 0 {
		return
	}

	parent := txt.Parent()
	pos := 0
	for _, m := range matches {
		if m[0] > pos {
			parent.InsertBefore(parent, txt, ast.NewTextSegment(text.NewSegment(seg.Start+pos, seg.Start+m[0])))
		}
		abbr := &Abbr{Title: titles[string(value[m[0]:m[1]])]}
		abbr.AppendChild(abbr, ast.NewTextSegment(text.NewSegment(seg.Start+m[0], seg.Start+m[1])))
		parent.InsertBefore(parent, txt, abbr)
		pos = m[1]
	}
	txt.Segment = text.NewSegment(seg.Start+pos, seg.Stop)
}

type abbrRenderer struct{}

func (r *abbrRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindAbbr, r.renderAbbr)
	reg.Register(KindAbbrDefinition, func(util.BufWriter, []byte, ast.Node, bool) (ast.WalkStatus, error) {
		return ast.WalkSkipChildren, nil
	})
}

func (r *abbrRenderer) renderAbbr(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</abbr>")
		return ast.WalkContinue, nil
	}
	n := node.(*Abbr)
	_, _ = w.WriteString(`<abbr title="`)
	_, _ = w.Write(util.EscapeHTML([]byte(n.Title)))
	_, _ = w.WriteString(`">`)
	return ast.WalkContinue, nil
}

// Abbreviations is a goldmark extension for Markdown Extra abbreviations.
var Abbreviations goldmark.Extender = &abbreviations{}

type abbreviations struct{}

func (e *abbreviations) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithBlockParsers(util.Prioritized(&abbrParser{}, 99)),
		parser.WithASTTransformers(util.Prioritized(&abbrTransformer{}, 900)),
	)
	m.Renderer().AddOptions(renderer.WithNodeRenderers(util.Prioritized(&abbrRenderer{}, 500)))
}
