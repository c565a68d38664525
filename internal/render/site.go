// Package render turns a page tree into HTML files and writes the combined
// navigation frame that embeds the merged manifest.
package render

import (
	"bytes"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"

	derrors "git.home.luguber.info/inful/mdpublish/internal/errors"
	"git.home.luguber.info/inful/mdpublish/internal/logfields"
	"git.home.luguber.info/inful/mdpublish/internal/manifest"
	"git.home.luguber.info/inful/mdpublish/internal/page"
)

// FrameFile is the combined entry page written at the output root.
const FrameFile = "index.html"

// Options configures a Renderer.
type Options struct {
	Theme     string
	SiteTitle string
	CodeStyle string
	Logger    *slog.Logger
}

// Renderer writes pages and the navigation frame.
type Renderer struct {
	md        *Markdown
	theme     *Theme
	siteTitle string
	logger    *slog.Logger
}

type pageData struct {
	Title string
	Style template.CSS
	Body  template.HTML
}

type frameData struct {
	Title       string
	Style       template.CSS
	Script      template.JS
	Nav         []navItem
	InitialPage string
	PageTree    manifest.Node
}

type navItem struct {
	ID       string
	URL      string
	Name     string
	Content  bool
	Hidden   bool
	Children []navItem
}

// New creates a Renderer.
func New(opts Options) (*Renderer, error) {
	theme, err := LoadTheme(opts.Theme)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CategoryConfig, derrors.SeverityFatal, "load theme").
			WithCode(derrors.CodeConfig).
			WithContext("theme", opts.Theme)
	}
	style := opts.CodeStyle
	if style == "" {
		style = DefaultCodeStyle
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{md: NewMarkdown(style), theme: theme, siteTitle: opts.SiteTitle, logger: logger}, nil
}

// RenderPage renders one content page through the page template.
func (r *Renderer) RenderPage(t *page.Tree, ref page.Ref) ([]byte, error) {
	id := t.ID(ref)
	doc, err := r.md.Convert(t.Node(ref).Content)
	if err != nil {
		return nil, derrors.RenderFailed(id, err)
	}
	title := doc.Title
	if title == "" {
		title = t.Title(ref)
	}
	if r.siteTitle != "" {
		if title == "" {
			title = r.siteTitle
		} else {
			title += " - " + r.siteTitle
		}
	}
	var buf bytes.Buffer
	if err := r.theme.page.Execute(&buf, pageData{Title: title, Style: r.theme.style, Body: doc.HTML}); err != nil {
		return nil, derrors.RenderFailed(id, err)
	}
	return buf.Bytes(), nil
}

// WriteSite empties outDir and writes one HTML file per content page at its
// local URL. It returns the number of pages written.
func (r *Renderer) WriteSite(t *page.Tree, outDir string) (int, error) {
	if err := os.RemoveAll(outDir); err != nil {
		return 0, derrors.FileSystemError("clean output", outDir, err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, derrors.FileSystemError("create directory", outDir, err)
	}

	var (
		written int
		walkErr error
	)
	t.Walk(t.Root(), func(ref page.Ref) bool {
		if walkErr != nil {
			return false
		}
		if !t.Node(ref).HasContent() {
			return true
		}
		html, err := r.RenderPage(t, ref)
		if err != nil {
			walkErr = err
			return false
		}
		dst := filepath.Join(outDir, filepath.FromSlash(t.LocalURL(ref)))
		if err := writeFile(dst, html); err != nil {
			walkErr = err
			return false
		}
		r.logger.Debug("Wrote page", logfields.Page(t.ID(ref)), logfields.Path(dst))
		written++
		return true
	})
	if walkErr != nil {
		return written, walkErr
	}
	return written, nil
}

// WriteFrame writes the combined navigation page for combined into outDir.
func (r *Renderer) WriteFrame(outDir string, combined manifest.Node) error {
	data := frameData{
		Title:    r.siteTitle,
		Style:    r.theme.style,
		Script:   r.theme.script,
		Nav:      []navItem{navFrom(&combined, 0)},
		PageTree: combined,
	}
	if first := combined.FirstContent(); first != nil {
		data.InitialPage = first.Path.Value()
	}
	var buf bytes.Buffer
	if err := r.theme.frame.Execute(&buf, data); err != nil {
		return derrors.RenderFailed(FrameFile, err)
	}
	return writeFile(filepath.Join(outDir, FrameFile), buf.Bytes())
}

func navFrom(n *manifest.Node, depth int) navItem {
	item := navItem{
		ID:      n.ID.Value(),
		URL:     n.Path.Value(),
		Name:    n.Name.Value(),
		Content: n.HasContent.Value(),
		Hidden:  depth >= 1,
	}
	for i := range n.Children {
		item.Children = append(item.Children, navFrom(&n.Children[i], depth+1))
	}
	return item
}

func writeFile(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return derrors.FileSystemError("create directory", filepath.Dir(dst), err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return derrors.FileSystemError("write file", dst, err)
	}
	return nil
}
