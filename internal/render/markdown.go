package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// DefaultCodeStyle is the chroma style used for fenced code blocks.
const DefaultCodeStyle = "github"

// Document is one rendered Markdown source.
type Document struct {
	// Title comes from the front matter, if any.
	Title string
	HTML  template.HTML
}

type frontMatter struct {
	Title string `yaml:"title" toml:"title" json:"title"`
}

// Markdown converts Markdown to HTML with GFM extensions and highlighted
// fenced code blocks. It is safe for concurrent use.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown builds a converter using the named chroma style.
func NewMarkdown(codeStyle string) *Markdown {
	style := styles.Get(codeStyle)
	if style == nil {
		style = styles.Fallback
	}
	hl := &codeRenderer{
		style:     style,
		formatter: chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4)),
	}
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Footnote),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(
				html.WithUnsafe(),
				renderer.WithNodeRenderers(util.Prioritized(hl, 100)),
			),
		),
	}
}

// Convert strips front matter from src and renders the remaining body.
func (m *Markdown) Convert(src string) (Document, error) {
	var meta frontMatter
	body, err := frontmatter.Parse(strings.NewReader(src), &meta)
	if err != nil {
		return Document{}, fmt.Errorf("parse front matter: %w", err)
	}
	var buf bytes.Buffer
	if err := m.md.Convert(body, &buf); err != nil {
		return Document{}, fmt.Errorf("markdown convert: %w", err)
	}
	// #nosec G203 -- goldmark output of local content
	return Document{Title: meta.Title, HTML: template.HTML(buf.String())}, nil
}

// codeRenderer renders fenced code blocks through chroma.
type codeRenderer struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

func (r *codeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCode)
}

func (r *codeRenderer) renderFencedCode(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	lexer := lexers.Get(string(n.Language(source)))
	if lexer == nil {
		lexer = lexers.Fallback
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, code.String())
	if err != nil {
		return ast.WalkStop, err
	}
	if err := r.formatter.Format(w, r.style, it); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkSkipChildren, nil
}
