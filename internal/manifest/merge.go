package manifest

import "encoding/json"

// MergeInto populates dst from src, field by field, first write wins: a field
// already set on dst is never overwritten. Children are matched by id; a
// matching dst child is merged into recursively, otherwise a new empty child
// is appended to dst and src's child is merged into it, so dst's order is the
// order children were first seen.
func MergeInto(dst, src *Node) {
	fill(&dst.ID, src.ID)
	fill(&dst.Path, src.Path)
	fill(&dst.Name, src.Name)
	fill(&dst.HasContent, src.HasContent)
	for k, v := range src.Extra {
		if _, ok := dst.Extra[k]; ok {
			continue
		}
		if dst.Extra == nil {
			dst.Extra = make(map[string]json.RawMessage, len(src.Extra))
		}
		dst.Extra[k] = append(json.RawMessage(nil), v...)
	}

	if dst.Children == nil {
		dst.Children = []Node{}
	}
	for i := range src.Children {
		s := &src.Children[i]
		idx := dst.childIndex(s.ID)
		if idx < 0 {
			dst.Children = append(dst.Children, Node{})
			idx = len(dst.Children) - 1
		}
		MergeInto(&dst.Children[idx], s)
	}
}

func (n *Node) childIndex(id Opt[string]) int {
	for i := range n.Children {
		if n.Children[i].ID == id {
			return i
		}
	}
	return -1
}

// MergeAll folds every source into an empty accumulator in lexicographic key
// order. Because fields are first-write-wins, the result depends only on the
// set of sources, never on the order they were fetched in.
func MergeAll(sources map[string]Node) Node {
	acc := Node{Children: []Node{}}
	for _, k := range SortedKeys(sources) {
		src := sources[k]
		MergeInto(&acc, &src)
	}
	Normalize(&acc)
	return acc
}
