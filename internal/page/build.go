package page

import (
	"io"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"git.home.luguber.info/inful/mdpublish/internal/errors"
	"git.home.luguber.info/inful/mdpublish/internal/logfields"
)

// Build walks dir inside fsys and returns a tree whose children mirror the
// directory entries: subdirectories become category pages and Markdown files
// become content pages holding the file's full text. Other files are skipped.
//
// Sibling order is the order fs.ReadDir yields, i.e. sorted by file name.
func Build(fsys fs.FS, dir string) (*Tree, error) {
	t := NewTree()
	if err := t.readDir(fsys, dir, t.Root()); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) readDir(fsys fs.FS, dir string, parent Ref) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return errors.FileSystemError("read directory", dir, err)
	}
	for _, entry := range entries {
		full := path.Join(dir, entry.Name())
		// Stat follows symlinks, which DirEntry.Type does not.
		info, err := fs.Stat(fsys, full)
		if err != nil {
			return errors.FileSystemError("stat", full, err)
		}
		switch {
		case info.IsDir():
			child := t.AddChild(parent, entry.Name(), "")
			if err := t.readDir(fsys, full, child); err != nil {
				return err
			}
		case info.Mode().IsRegular() && strings.HasSuffix(entry.Name(), MarkdownExt):
			data, err := fs.ReadFile(fsys, full)
			if err != nil {
				return errors.FileSystemError("read file", full, err)
			}
			t.AddChild(parent, strings.TrimSuffix(entry.Name(), MarkdownExt), string(data))
		}
	}
	return nil
}

// PromoteIndex moves the content of every child named "index" into its
// parent and detaches the child. Children are promoted before their parent is
// checked, so nested index files resolve level by level. Promoting into a
// parent that already has content fails with a content conflict.
func (t *Tree) PromoteIndex() error {
	return t.promote(t.Root())
}

func (t *Tree) promote(r Ref) error {
	children := t.nodes[r].Children
	kept := make([]Ref, 0, len(children))
	for _, c := range children {
		if err := t.promote(c); err != nil {
			return err
		}
		if t.nodes[c].Name != IndexName {
			kept = append(kept, c)
			continue
		}
		if t.nodes[r].Content != "" {
			return errors.ContentConflict(t.nodes[r].Name).WithContext("id", t.ID(r))
		}
		if n := len(t.nodes[c].Children); n > 0 {
			slog.Warn("Dropping children of promoted index page", logfields.Page(t.ID(c)), logfields.Count(n))
		}
		t.nodes[r].Content = t.nodes[c].Content
		t.nodes[c].Parent = NoParent
	}
	t.nodes[r].Children = kept
	return nil
}

// Dump writes an indented outline of the tree: leaf pages first, then
// bracketed categories followed by their own outline.
func (t *Tree) Dump(w io.Writer) error {
	return t.dump(w, t.Root(), 0)
}

func (t *Tree) dump(w io.Writer, r Ref, depth int) error {
	indent := strings.Repeat("  ", depth)
	for _, c := range t.nodes[r].Children {
		if len(t.nodes[c].Children) == 0 {
			if _, err := io.WriteString(w, indent+t.nodes[c].Name+"\n"); err != nil {
				return err
			}
		}
	}
	for _, c := range t.nodes[r].Children {
		if len(t.nodes[c].Children) != 0 {
			if _, err := io.WriteString(w, indent+"["+t.nodes[c].Name+"]\n"); err != nil {
				return err
			}
			if err := t.dump(w, c, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
