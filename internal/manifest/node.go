// Package manifest implements the navigation manifest that modules exchange
// through the shared store: the codec between page trees and JSON, the
// deterministic multi-manifest merge, and the stale-object diff.
package manifest

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Node is one manifest entry. Fields other than Children are optional so a
// partially populated node from a hand-written manifest is representable.
type Node struct {
	ID         Opt[string] `json:"id,omitzero"`
	Path       Opt[string] `json:"path,omitzero"`
	Name       Opt[string] `json:"name,omitzero"`
	HasContent Opt[bool]   `json:"hasContent,omitzero"`
	Children   []Node      `json:"children"`

	// Extra keeps fields this version does not know about, so that merged
	// manifests carry them through.
	Extra map[string]json.RawMessage `json:"-"`
}

var knownFields = []string{"id", "path", "name", "hasContent", "children"}

func isKnownField(k string) bool {
	for _, f := range knownFields {
		if strings.EqualFold(f, k) {
			return true
		}
	}
	return false
}

// MarshalJSON always emits children, as an empty array for leaves, followed
// by any extra fields in key order.
func (n Node) MarshalJSON() ([]byte, error) {
	type plain Node
	p := plain(n)
	if p.Children == nil {
		p.Children = []Node{}
	}
	data, err := json.Marshal(p)
	if err != nil || len(n.Extra) == 0 {
		return data, err
	}

	keys := make([]string, 0, len(n.Extra))
	for k := range n.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(data[:len(data)-1])
	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(n.Extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the known fields and collects the rest into Extra.
// Extra fields holding null are dropped.
func (n *Node) UnmarshalJSON(data []byte) error {
	type plain Node
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for k, v := range fields {
		if isKnownField(k) || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]json.RawMessage)
		}
		p.Extra[k] = v
	}
	*n = Node(p)
	return nil
}

// Clone returns a deep copy of n.
func (n *Node) Clone() Node {
	out := *n
	if n.Children != nil {
		out.Children = make([]Node, len(n.Children))
		for i := range n.Children {
			out.Children[i] = n.Children[i].Clone()
		}
	}
	if n.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(n.Extra))
		for k, v := range n.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// Find returns the first node in n's subtree (n included) whose id equals id.
func (n *Node) Find(id string) *Node {
	if v, ok := n.ID.Get(); ok && v == id {
		return n
	}
	for i := range n.Children {
		if found := n.Children[i].Find(id); found != nil {
			return found
		}
	}
	return nil
}

// FirstContent returns the first node with content in depth-first order.
func (n *Node) FirstContent() *Node {
	if n.HasContent.Value() {
		return n
	}
	for i := range n.Children {
		if found := n.Children[i].FirstContent(); found != nil {
			return found
		}
	}
	return nil
}
