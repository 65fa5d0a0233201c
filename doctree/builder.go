package doctree

import (
	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

// Build converts a flat, order-independent element list into a tree.
//
// Each element is linked under the element named by its ParentID. Elements
// whose parent is themselves, is unknown, or would close a cycle become roots
// and their ParentID is cleared; each case is recorded as a Warning. Roots and
// children keep the order in which they appear in flat.
func Build(flat []types.Element, opts ...Option) *Tree {
	return buildWith(flat, newSettings(opts))
}

func buildWith(flat []types.Element, s *settings) *Tree {
	t := &Tree{
		Elements: make(map[string]*Node, len(flat)),
		settings: s,
	}

	order := make([]*Node, 0, len(flat))
	minted := make(map[string]bool)
	for _, el := range flat {
		n := &Node{Element: el.Clone()}
		if n.ID == "" {
			n.ID = t.mintID(minted)
			t.warn(WarnDuplicateID, n.ID, "element without id assigned a fresh id")
		} else if _, dup := t.Elements[n.ID]; dup {
			old := n.ID
			n.ID = t.mintID(minted)
			t.warn(WarnDuplicateID, n.ID, "duplicate id %q reassigned", old)
		}
		t.Elements[n.ID] = n
		order = append(order, n)
	}

	for _, n := range order {
		t.link(n)
	}

	return t
}

// link attaches n to its declared parent, or demotes it to a root.
func (t *Tree) link(n *Node) {
	pid := n.ParentID
	if pid == "" {
		t.Roots = append(t.Roots, n)
		return
	}

	if pid == n.ID {
		t.warn(WarnSelfParent, n.ID, "element is its own parent; treated as root")
		t.demote(n)
		return
	}

	parent, ok := t.Elements[pid]
	if !ok {
		t.warn(WarnDanglingParent, n.ID, "parent %q not found; treated as root", pid)
		t.demote(n)
		return
	}

	if t.closesCycle(n.ID, pid) {
		t.warn(WarnCycle, n.ID, "linking under %q would create a cycle; treated as root", pid)
		t.demote(n)
		return
	}

	parent.Children = append(parent.Children, n)
}

func (t *Tree) demote(n *Node) {
	n.ParentID = ""
	t.Roots = append(t.Roots, n)
}

// closesCycle follows the ParentID chain upward from pid and reports whether
// it reaches id or revisits an element. Nodes already demoted have an empty
// ParentID, so a cycle is broken at the first member processed.
func (t *Tree) closesCycle(id, pid string) bool {
	visited := make(map[string]bool)
	for cur := pid; cur != ""; {
		if cur == id || visited[cur] {
			return true
		}
		visited[cur] = true
		next, ok := t.Elements[cur]
		if !ok {
			return false
		}
		cur = next.ParentID
	}
	return false
}
