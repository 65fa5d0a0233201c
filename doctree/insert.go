package doctree

import (
	"fmt"

	"github.com/sqkimofficial/ai-research-platform-sub000/parser"
	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

// InsertResult describes what an insertion or move actually did.
type InsertResult struct {
	// Strategy is the strategy applied, which differs from the requested one
	// when the target could not be resolved.
	Strategy types.Strategy `json:"strategy"`
	// TargetID is the resolved immutable id of the target, if any.
	TargetID string `json:"targetId,omitempty"`
	// Fallback is set when placement degraded to the end of the document.
	Fallback  bool      `json:"fallback,omitempty"`
	Inserted  []string  `json:"inserted"`
	Skipped   []string  `json:"skipped,omitempty"`
	Unwrapped []string  `json:"unwrapped,omitempty"`
	Warnings  []Warning `json:"warnings,omitempty"`
}

// normalizeDirective checks the directive shape and fills the default position.
func normalizeDirective(d types.Directive) (types.Directive, error) {
	switch d.Strategy {
	case types.InsertAtEnd, types.InsertAfter, types.InsertBefore, types.InsertInto:
	default:
		return d, fmt.Errorf("%w: unknown strategy %q", ErrInvalidDirective, d.Strategy)
	}
	switch d.Position {
	case "":
		d.Position = types.PositionEnd
	case types.PositionBeginning, types.PositionEnd:
	default:
		return d, fmt.Errorf("%w: unknown position %q", ErrInvalidDirective, d.Position)
	}
	return d, nil
}

// Insert grafts newElements into the tree according to d.
//
// New elements arrive with positional labels as ids; they are promoted to
// immutable ids, built into a standalone sub-tree and placed. An unresolvable
// target degrades to insert_at_end. A node whose id is already present is
// skipped, but its new descendants are still attached beneath the existing
// node. With insert_into, a sub-tree root that is itself a section or
// subsection is unwrapped: its children are placed into the target instead,
// recursively.
//
// Insert only returns an error for a malformed directive; the tree is left
// untouched in that case.
func (t *Tree) Insert(newElements []types.Element, d types.Directive) (*InsertResult, error) {
	d, err := normalizeDirective(d)
	if err != nil {
		return nil, err
	}

	start := len(t.Warnings)
	unique := t.EnsureUniqueIDs(newElements)
	t.checkCustomTypes(unique)

	sub := buildWith(unique, t.settings)
	t.Warnings = append(t.Warnings, sub.Warnings...)

	res := &InsertResult{Inserted: []string{}}
	target, strategy := t.resolveTarget(d, res)
	t.place(sub.Roots, strategy, target, d.Position, true, res)

	res.Warnings = append([]Warning(nil), t.Warnings[start:]...)
	return res, nil
}

// Move relocates an existing element and its descendants according to d.
// Moving an element relative to itself or one of its descendants is refused
// with a warning and leaves the tree unchanged.
func (t *Tree) Move(id string, d types.Directive) (*InsertResult, error) {
	d, err := normalizeDirective(d)
	if err != nil {
		return nil, err
	}
	n := t.Elements[id]
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}

	start := len(t.Warnings)
	res := &InsertResult{Inserted: []string{}}
	target, strategy := t.resolveTarget(d, res)

	if target != nil && t.inSubtree(n, target.ID) {
		t.warn(WarnInvalidMove, id, "cannot move element relative to itself or its descendant %q", target.ID)
		res.Warnings = append([]Warning(nil), t.Warnings[start:]...)
		return res, nil
	}

	t.detach(n)
	t.place([]*Node{n}, strategy, target, d.Position, false, res)

	res.Warnings = append([]Warning(nil), t.Warnings[start:]...)
	return res, nil
}

// resolveTarget maps the directive's display-id target onto a node. A failed
// resolution downgrades the strategy to insert_at_end.
func (t *Tree) resolveTarget(d types.Directive, res *InsertResult) (*Node, types.Strategy) {
	res.Strategy = d.Strategy
	if !d.Strategy.NeedsTarget() {
		return nil, d.Strategy
	}

	id, ok := t.ResolveDisplayID(d.TargetID)
	if !ok {
		t.warn(WarnTargetUnresolved, "", "target %q not found; %s degraded to %s", d.TargetID, d.Strategy, types.InsertAtEnd)
		res.Strategy = types.InsertAtEnd
		res.Fallback = true
		return nil, types.InsertAtEnd
	}
	res.TargetID = id
	return t.Elements[id], d.Strategy
}

// place puts roots into the tree relative to target.
func (t *Tree) place(roots []*Node, strategy types.Strategy, target *Node, pos types.Position, unwrap bool, res *InsertResult) {
	switch strategy {
	case types.InsertAtEnd:
		for _, r := range roots {
			t.attach(r, nil, len(t.Roots), res)
		}

	case types.InsertAfter, types.InsertBefore:
		parent := t.parentOf(target)
		idx := indexOf(t.siblings(parent), target.ID)
		if strategy == types.InsertAfter {
			idx++
		}
		for _, r := range roots {
			if t.attach(r, parent, idx, res) {
				idx++
			}
		}

	case types.InsertInto:
		if !target.Type.IsContainer() {
			t.warn(WarnNotContainer, target.ID, "insert_into target has type %q; inserting as children anyway", target.Type)
		}
		idx := len(target.Children)
		if pos == types.PositionBeginning {
			idx = 0
		}
		for _, r := range roots {
			if unwrap {
				idx = t.placeInto(target, r, idx, res)
			} else if t.attach(r, target, idx, res) {
				idx++
			}
		}
	}
}

// placeInto inserts n as a child of target at idx, replacing a redundant
// section wrapper by its children. It returns the next index.
//
// The first placed node takes idx and each following one lands right after
// the previous, so a batch inserted at the beginning stays contiguous and in
// order ahead of the existing children instead of having its later nodes
// appended after them.
//
// A wrapper without children is still unwrapped: its heading line is dropped
// and any remaining body is placed as a paragraph.
func (t *Tree) placeInto(target, n *Node, idx int, res *InsertResult) int {
	if !n.Type.IsContainer() {
		if t.attach(n, target, idx, res) {
			idx++
		}
		return idx
	}
	if _, exists := t.Elements[n.ID]; exists {
		// Already in the tree: the duplicate guard applies to it and its children.
		if t.attach(n, target, idx, res) {
			idx++
		}
		return idx
	}

	res.Unwrapped = append(res.Unwrapped, n.ID)
	if len(n.Children) == 0 {
		body := parser.StripHeading(n.Content)
		if body == "" {
			t.warn(WarnWrapperDropped, n.ID, "empty %s %q dropped inside %q", n.Type, wrapperLabel(n), target.ID)
			return idx
		}
		t.warn(WarnWrapperDropped, n.ID, "%s %q unwrapped into %q; its body was kept as a paragraph",
			n.Type, wrapperLabel(n), target.ID)
		el := n.Element
		el.Type = types.TypeParagraph
		el.Content = body
		el.Metadata = nil
		el.DisplayID = ""
		if t.attach(&Node{Element: el}, target, idx, res) {
			idx++
		}
		return idx
	}

	t.warn(WarnWrapperDropped, n.ID, "%s %q unwrapped into %q; its own content was dropped",
		n.Type, wrapperLabel(n), target.ID)
	for _, c := range n.Children {
		idx = t.placeInto(target, c, idx, res)
	}
	return idx
}

func wrapperLabel(n *Node) string {
	if title := n.Title(); title != "" {
		return title
	}
	return n.DisplayID
}

// attach places a copy of n (without its children) at idx in parent's child
// list, or in Roots when parent is nil, then attaches n's children beneath it
// in order. It reports whether n was placed. A node whose id is already in the
// tree is skipped, and its children are attached under the existing node so
// each goes through the same check.
func (t *Tree) attach(n, parent *Node, idx int, res *InsertResult) bool {
	list := t.siblings(parent)
	if existing, ok := t.Elements[n.ID]; ok || indexOf(list, n.ID) >= 0 {
		t.warn(WarnDuplicateSkipped, n.ID, "element already present; skipped")
		res.Skipped = append(res.Skipped, n.ID)
		if existing != nil {
			for _, c := range n.Children {
				t.attach(c, existing, len(existing.Children), res)
			}
		}
		return false
	}

	kids := n.Children
	node := &Node{Element: n.Element}
	node.ParentID = ""
	if parent != nil {
		node.ParentID = parent.ID
	}

	t.Elements[node.ID] = node
	t.setSiblings(parent, insertAt(list, idx, node))
	res.Inserted = append(res.Inserted, node.ID)

	for _, c := range kids {
		t.attach(c, node, len(node.Children), res)
	}
	return true
}

// detach unlinks n from its sibling list and drops it and its descendants
// from Elements. The nodes themselves keep their Children.
func (t *Tree) detach(n *Node) {
	parent := t.parentOf(n)
	list := t.siblings(parent)
	if i := indexOf(list, n.ID); i >= 0 {
		t.setSiblings(parent, removeAt(list, i))
	}
	var drop func(x *Node)
	drop = func(x *Node) {
		delete(t.Elements, x.ID)
		for _, c := range x.Children {
			drop(c)
		}
	}
	drop(n)
}

// inSubtree reports whether id is n or one of its descendants.
func (t *Tree) inSubtree(n *Node, id string) bool {
	if n.ID == id {
		return true
	}
	for _, c := range n.Children {
		if t.inSubtree(c, id) {
			return true
		}
	}
	return false
}

// checkCustomTypes warns about custom-typed elements missing metadata keys
// their declared type requires.
func (t *Tree) checkCustomTypes(elements []types.Element) {
	for _, el := range elements {
		ct, ok := t.settings.customTypes[el.Type]
		if !ok {
			continue
		}
		if missing := ct.Validate(el.Metadata); len(missing) > 0 {
			t.warn(WarnCustomMetadata, el.ID, "%s element missing metadata %v", el.Type, missing)
		}
	}
}
