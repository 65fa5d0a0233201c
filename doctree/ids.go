package doctree

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sqkimofficial/ai-research-platform-sub000/parser"
	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

// maxMintAttempts bounds retries against a custom generator that keeps
// producing taken ids before falling back to a random UUID.
const maxMintAttempts = 32

// mintID returns a fresh id that is neither in the tree nor in minted, and
// records it in minted.
func (t *Tree) mintID(minted map[string]bool) string {
	for i := 0; i < maxMintAttempts; i++ {
		id := t.settings.newID()
		if t.available(id, minted) {
			minted[id] = true
			return id
		}
	}
	for {
		id := uuid.NewString()
		if t.available(id, minted) {
			minted[id] = true
			return id
		}
	}
}

func (t *Tree) available(id string, minted map[string]bool) bool {
	if id == "" || minted[id] {
		return false
	}
	_, taken := t.Elements[id]
	return !taken
}

// isDurable reports whether id is an immutable id minted earlier, as opposed
// to a positional label from a generator.
func isDurable(id string) bool {
	return uuid.Validate(id) == nil
}

// EnsureUniqueIDs promotes the positional labels carried by new elements to
// immutable ids. Each label is kept as the element's DisplayID, and ParentID
// references to a label of the same batch are rewritten to the id minted for
// it (the first element carrying a repeated label wins).
//
// Elements whose id is already a durable UUID keep it, so that retrying an
// insertion lets the duplicate guard recognise them.
func (t *Tree) EnsureUniqueIDs(newElements []types.Element) []types.Element {
	minted := make(map[string]bool, len(newElements))
	labels := make(map[string]string, len(newElements))
	out := make([]types.Element, 0, len(newElements))

	for _, el := range newElements {
		e := el.Clone()
		label := e.ID
		if !isDurable(label) {
			e.ID = t.mintID(minted)
			e.DisplayID = label
		}
		if label != "" {
			if _, seen := labels[label]; !seen {
				labels[label] = e.ID
			}
		}
		out = append(out, e)
	}

	for i := range out {
		if id, ok := labels[out[i].ParentID]; ok {
			out[i].ParentID = id
		}
	}

	return out
}

// RegenerateDisplayIDs recomputes every node's positional label from the
// current tree shape.
//
// Sections with a derivable title get "sec-<slug>". Every other element, and a
// section without a title, gets "<prefix>-<n>" where n counts elements of the
// same prefix under the same parent, starting at 1.
func (t *Tree) RegenerateDisplayIDs() {
	counters := make(map[string]int)
	visited := make(map[string]bool, len(t.Elements))

	var walk func(nodes []*Node, parentDisplay string)
	walk = func(nodes []*Node, parentDisplay string) {
		for _, n := range nodes {
			if visited[n.ID] {
				continue
			}
			visited[n.ID] = true

			prefix := t.prefix(n.Type)
			display := ""
			if n.Type.Kind() == types.KindSection {
				if slug := sectionSlug(n.Element); slug != "" {
					display = prefix + "-" + slug
				}
			}
			if display == "" {
				key := parentDisplay + "\x00" + prefix
				counters[key]++
				display = fmt.Sprintf("%s-%d", prefix, counters[key])
			}
			n.DisplayID = display
			walk(n.Children, display)
		}
	}
	walk(t.Roots, "")
}

// sectionSlug derives a slug from metadata.title, or from the first markdown
// heading in the content.
func sectionSlug(el types.Element) string {
	title := el.Title()
	if title == "" {
		title = parser.HeadingTitle(el.Content)
	}
	return parser.Slugify(title)
}

// ResolveDisplayID maps a positional label to an immutable id. Display ids are
// regenerated first; when a label occurs more than once the first match in
// document order wins. If no label matches, displayID is accepted as an
// immutable id when the tree contains it.
func (t *Tree) ResolveDisplayID(displayID string) (string, bool) {
	if displayID == "" {
		return "", false
	}
	t.RegenerateDisplayIDs()

	var found string
	t.walk(func(n *Node, _ int) bool {
		if n.DisplayID == displayID {
			found = n.ID
			return false
		}
		return true
	})
	if found != "" {
		return found, true
	}

	if _, ok := t.Elements[displayID]; ok {
		return displayID, true
	}
	return "", false
}

// walk visits nodes depth-first, parents before children, until fn returns
// false. Each node is visited at most once.
func (t *Tree) walk(fn func(n *Node, depth int) bool) {
	visited := make(map[string]bool, len(t.Elements))
	var visit func(nodes []*Node, depth int) bool
	visit = func(nodes []*Node, depth int) bool {
		for _, n := range nodes {
			if visited[n.ID] {
				continue
			}
			visited[n.ID] = true
			if !fn(n, depth) {
				return false
			}
			if !visit(n.Children, depth+1) {
				return false
			}
		}
		return true
	}
	visit(t.Roots, 0)
}
