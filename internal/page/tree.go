package page

import "strings"

// Ref addresses a node inside a Tree's arena.
type Ref int

// NoParent is the parent of the root node.
const NoParent Ref = -1

// MarkdownExt is the extension that marks a file as a document.
const MarkdownExt = ".md"

// IndexName is the name of a child whose content is promoted into its parent.
const IndexName = "index"

// Node is a single page. Category pages have no content; documents do. A node
// with content is a content page even when it also has children.
type Node struct {
	Name     string
	Path     []string // ancestor names, root-relative, excluding Name
	Content  string
	Children []Ref
	Parent   Ref
}

// HasContent reports whether the node renders its own page.
func (n *Node) HasContent() bool { return n.Content != "" }

// Tree is an arena of nodes rooted at Root(). The root is a synthetic page
// with an empty name.
type Tree struct {
	nodes []Node
}

// NewTree returns a tree containing only the synthetic root.
func NewTree() *Tree {
	return &Tree{nodes: []Node{{Parent: NoParent}}}
}

// Root returns the root reference.
func (t *Tree) Root() Ref { return 0 }

// Node returns the node at r. The pointer is invalidated by AddChild.
func (t *Tree) Node(r Ref) *Node { return &t.nodes[r] }

// AddChild appends a new child page under parent and returns its reference.
func (t *Tree) AddChild(parent Ref, name, content string) Ref {
	p := t.nodes[parent]
	path := make([]string, 0, len(p.Path)+1)
	path = append(path, p.Path...)
	if p.Name != "" {
		path = append(path, p.Name)
	}
	ref := Ref(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		Name:    name,
		Path:    path,
		Content: content,
		Parent:  parent,
	})
	t.nodes[parent].Children = append(t.nodes[parent].Children, ref)
	return ref
}

// ID joins the node's path and name with '-'.
func (t *Tree) ID(r Ref) string {
	n := &t.nodes[r]
	return strings.Join(append(append([]string{}, n.Path...), n.Name), "-")
}

// LocalURL joins the node's path and "<name>.html" with '/'.
func (t *Tree) LocalURL(r Ref) string {
	n := &t.nodes[r]
	return strings.Join(append(append([]string{}, n.Path...), n.Name+".html"), "/")
}

// Title composes a display title from the parent's name and the node's own.
func (t *Tree) Title(r Ref) string {
	n := &t.nodes[r]
	if n.Parent == NoParent {
		return n.Name
	}
	if parent := t.nodes[n.Parent].Name; parent != "" {
		return parent + " / " + n.Name
	}
	return n.Name
}

// Walk visits r and its descendants depth-first, parents before children.
// Returning false from fn skips the node's subtree.
func (t *Tree) Walk(r Ref, fn func(Ref) bool) {
	if !fn(r) {
		return
	}
	for _, c := range t.nodes[r].Children {
		t.Walk(c, fn)
	}
}

// FirstContent returns the first content page in depth-first order.
func (t *Tree) FirstContent() (Ref, bool) {
	found := NoParent
	t.Walk(t.Root(), func(r Ref) bool {
		if found != NoParent {
			return false
		}
		if t.nodes[r].HasContent() {
			found = r
			return false
		}
		return true
	})
	return found, found != NoParent
}

// Count returns the number of pages reachable from the root, split into
// content pages and categories.
func (t *Tree) Count() (documents, categories int) {
	t.Walk(t.Root(), func(r Ref) bool {
		if r == t.Root() {
			return true
		}
		if t.nodes[r].HasContent() {
			documents++
		} else {
			categories++
		}
		return true
	})
	return documents, categories
}
