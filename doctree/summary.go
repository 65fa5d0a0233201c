package doctree

import (
	"fmt"
	"strings"

	"github.com/sqkimofficial/ai-research-platform-sub000/parser"
)

// DefaultSummaryDepth caps the outline when the caller passes no depth.
const DefaultSummaryDepth = 10

// snippetLen is the rune budget for the title snippet of an outline line.
const snippetLen = 60

// Summary returns an indented outline with one line per element:
//
//	[sec-introduction] section - "Introduction"
//	  [para-1] paragraph - "Large language models are..."
//
// Only display ids appear. Branches deeper than maxDepth are elided, and a
// node already on the current branch is reported instead of being descended.
func (t *Tree) Summary(maxDepth int) string {
	if maxDepth <= 0 {
		maxDepth = DefaultSummaryDepth
	}
	t.RegenerateDisplayIDs()

	if len(t.Roots) == 0 {
		return "(empty document)"
	}

	var b strings.Builder
	var visit func(nodes []*Node, depth int, branch map[string]bool)
	visit = func(nodes []*Node, depth int, branch map[string]bool) {
		indent := strings.Repeat("  ", depth)
		if depth > maxDepth {
			fmt.Fprintf(&b, "%s... (%d more, max depth reached)\n", indent, len(nodes))
			return
		}
		for _, n := range nodes {
			if branch[n.ID] {
				fmt.Fprintf(&b, "%s[%s] (cycle)\n", indent, n.DisplayID)
				continue
			}
			fmt.Fprintf(&b, "%s[%s] %s - %q\n", indent, n.DisplayID, n.Type, summaryLabel(n))
			if len(n.Children) > 0 {
				branch[n.ID] = true
				visit(n.Children, depth+1, branch)
				delete(branch, n.ID)
			}
		}
	}
	visit(t.Roots, 0, make(map[string]bool))

	return strings.TrimRight(b.String(), "\n")
}

func summaryLabel(n *Node) string {
	if title := n.Title(); title != "" {
		return parser.Snippet(title, snippetLen)
	}
	return parser.Snippet(n.Content, snippetLen)
}
