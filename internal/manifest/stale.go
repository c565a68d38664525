package manifest

// Entry is one flattened manifest node.
type Entry struct {
	ID   string
	Path string
}

// Flatten lists n and its descendants depth-first, parents first.
func Flatten(n *Node) []Entry {
	var out []Entry
	var walk func(*Node)
	walk = func(n *Node) {
		out = append(out, Entry{ID: n.ID.Value(), Path: n.Path.Value()})
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	walk(n)
	return out
}

// ComputeStale returns the paths present in previous but absent from current,
// in previous's order and without duplicates. Nodes without a path are
// ignored. A nil previous (first publish) yields nothing.
//
// Both manifests must belong to the same module; that restriction is what
// keeps one module from deleting another's objects.
func ComputeStale(previous, current *Node) []string {
	if previous == nil {
		return nil
	}
	keep := make(map[string]struct{})
	if current != nil {
		for _, e := range Flatten(current) {
			keep[e.Path] = struct{}{}
		}
	}
	var stale []string
	seen := make(map[string]struct{})
	var walk func(*Node)
	walk = func(n *Node) {
		if p, ok := n.Path.Get(); ok {
			if _, kept := keep[p]; !kept {
				if _, dup := seen[p]; !dup {
					seen[p] = struct{}{}
					stale = append(stale, p)
				}
			}
		}
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	walk(previous)
	return stale
}
