package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"

	"git.home.luguber.info/inful/mdpublish/internal/errors"
	"git.home.luguber.info/inful/mdpublish/internal/page"
)

// FileExt is the extension of manifest files in the store and on disk.
const FileExt = ".json"

// FromTree converts a whole page tree, starting at its root.
func FromTree(t *page.Tree) Node {
	return FromPage(t, t.Root())
}

// FromPage converts the page at r and its subtree. Every field is set, and
// children keep the page order.
func FromPage(t *page.Tree, r page.Ref) Node {
	p := t.Node(r)
	n := Node{
		ID:         Some(t.ID(r)),
		Path:       Some(t.LocalURL(r)),
		Name:       Some(p.Name),
		HasContent: Some(p.HasContent()),
		Children:   make([]Node, 0, len(p.Children)),
	}
	for _, c := range p.Children {
		n.Children = append(n.Children, FromPage(t, c))
	}
	return n
}

// Normalize gives every node in the subtree a non-nil children slice.
func Normalize(n *Node) {
	if n.Children == nil {
		n.Children = []Node{}
	}
	for i := range n.Children {
		Normalize(&n.Children[i])
	}
}

// Decode parses a manifest and normalizes it. Comments and trailing commas
// are tolerated so hand-edited manifests load.
func Decode(data []byte) (Node, error) {
	var n Node
	if err := json.Unmarshal(jsonc.ToJSON(data), &n); err != nil {
		return Node{}, err
	}
	Normalize(&n)
	return n, nil
}

// Encode renders n as indented JSON.
func Encode(n Node) ([]byte, error) {
	return json.MarshalIndent(n, "", "  ")
}

// ReadFile decodes the manifest stored at path.
func ReadFile(path string) (Node, error) {
	// #nosec G304 -- manifest paths come from configuration or staging
	data, err := os.ReadFile(path)
	if err != nil {
		return Node{}, errors.FileSystemError("read manifest", path, err)
	}
	n, err := Decode(data)
	if err != nil {
		return Node{}, errors.ManifestDecodeError(path, err)
	}
	return n, nil
}

// WriteFile encodes n to path, creating parent directories.
func WriteFile(path string, n Node) error {
	data, err := Encode(n)
	if err != nil {
		return errors.InternalError("encode manifest", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.FileSystemError("create directory", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.FileSystemError("write manifest", path, err)
	}
	return nil
}

// LoadDir reads every *.json file directly inside dir, keyed by file name.
func LoadDir(dir string) (map[string]Node, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.FileSystemError("read directory", dir, err)
	}
	out := make(map[string]Node, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), FileExt) {
			continue
		}
		n, err := ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out[e.Name()] = n
	}
	return out, nil
}

// FileName returns the manifest file name for a module.
func FileName(module string) string {
	return module + FileExt
}

// SortedKeys returns the keys of sources in lexicographic order.
func SortedKeys(sources map[string]Node) []string {
	keys := make([]string, 0, len(sources))
	for k := range sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
