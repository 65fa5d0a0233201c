package doctree

import (
	"fmt"
)

// UpdateContent replaces an element's content and merges metadata into its
// metadata map. A nil metadata leaves the map untouched.
func (t *Tree) UpdateContent(id, content string, metadata map[string]any) error {
	n := t.Elements[id]
	if n == nil {
		return fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	n.Content = content
	if metadata != nil {
		if n.Metadata == nil {
			n.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			n.Metadata[k] = v
		}
	}
	return nil
}

// Remove deletes an element together with all its descendants and returns
// the removed ids, parent first.
func (t *Tree) Remove(id string) ([]string, error) {
	n := t.Elements[id]
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}

	var removed []string
	var collect func(x *Node)
	collect = func(x *Node) {
		removed = append(removed, x.ID)
		for _, c := range x.Children {
			collect(c)
		}
	}
	collect(n)

	t.detach(n)
	return removed, nil
}

// Ancestors returns the chain from the root down to id's parent.
func (t *Tree) Ancestors(id string) []*Node {
	n := t.Elements[id]
	if n == nil {
		return nil
	}
	var chain []*Node
	seen := map[string]bool{id: true}
	for p := t.parentOf(n); p != nil && !seen[p.ID]; p = t.parentOf(p) {
		seen[p.ID] = true
		chain = append(chain, p)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Stats summarizes the shape of a tree.
type Stats struct {
	Elements   int            `json:"elements"`
	Roots      int            `json:"roots"`
	MaxDepth   int            `json:"maxDepth"`
	Containers int            `json:"containers"`
	ByType     map[string]int `json:"byType"`
	Warnings   int            `json:"warnings"`
}

// Stats counts elements by type and measures depth (roots have depth 1).
func (t *Tree) Stats() Stats {
	s := Stats{
		Roots:    len(t.Roots),
		ByType:   make(map[string]int),
		Warnings: len(t.Warnings),
	}
	t.walk(func(n *Node, depth int) bool {
		s.Elements++
		s.ByType[string(n.Type)]++
		if n.Type.IsContainer() {
			s.Containers++
		}
		if depth+1 > s.MaxDepth {
			s.MaxDepth = depth + 1
		}
		return true
	})
	return s
}
