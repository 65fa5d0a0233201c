package doctree

import (
	"strings"

	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

// Flatten regenerates display ids and serializes the tree depth-first,
// parents before children, in document order.
func (t *Tree) Flatten() []types.Element {
	t.RegenerateDisplayIDs()

	out := make([]types.Element, 0, len(t.Elements))
	t.walk(func(n *Node, _ int) bool {
		out = append(out, n.Element.Clone())
		return true
	})
	return out
}

// ToMarkdown concatenates each element's own content in document order,
// separated by a blank line. Elements with blank content are skipped.
func (t *Tree) ToMarkdown() string {
	var parts []string
	t.walk(func(n *Node, _ int) bool {
		if strings.TrimSpace(n.Content) != "" {
			parts = append(parts, strings.TrimRight(n.Content, "\n"))
		}
		return true
	})
	return strings.Join(parts, "\n\n")
}
