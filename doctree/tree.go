// Package doctree holds the document structure tree engine: it builds a tree
// from a flat element list, keeps immutable ids apart from positional display
// ids, grafts LLM-proposed sub-trees into the tree, and serializes the result
// back to a flat list, markdown, or an outline.
//
// The engine is synchronous and keeps no state between calls. Every operation
// starts from a caller-supplied flat list; inconsistent input is repaired and
// reported as a Warning rather than returned as an error.
package doctree

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

// ErrInvalidDirective is returned when a placement directive names an unknown
// strategy or position. It is the only error the insertion engine raises.
var ErrInvalidDirective = errors.New("invalid placement directive")

// ErrElementNotFound is returned by direct edits that name an unknown id.
var ErrElementNotFound = errors.New("element not found")

// Node is an element plus its ordered children.
type Node struct {
	types.Element
	Children []*Node
}

// Tree is the in-memory form of a document. Elements indexes every node by
// immutable id; Roots and each node's Children carry document order.
type Tree struct {
	Elements map[string]*Node
	Roots    []*Node
	Warnings []Warning

	settings *settings
}

// WarningKind classifies a degradation the engine recovered from.
type WarningKind string

const (
	WarnSelfParent       WarningKind = "self_parent"
	WarnCycle            WarningKind = "cycle"
	WarnDanglingParent   WarningKind = "dangling_parent"
	WarnDuplicateID      WarningKind = "duplicate_id"
	WarnTargetUnresolved WarningKind = "target_unresolved"
	WarnDuplicateSkipped WarningKind = "duplicate_skipped"
	WarnNotContainer     WarningKind = "not_container"
	WarnWrapperDropped   WarningKind = "wrapper_dropped"
	WarnCustomMetadata   WarningKind = "custom_metadata"
	WarnInvalidMove      WarningKind = "invalid_move"
)

// Warning records one self-healed inconsistency.
type Warning struct {
	Kind      WarningKind `json:"kind"`
	ElementID string      `json:"elementId,omitempty"`
	Message   string      `json:"message"`
}

func (w Warning) String() string {
	if w.ElementID == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", w.Kind, w.ElementID, w.Message)
}

// settings is shared by a tree and every sub-tree built for insertion.
type settings struct {
	logger      *slog.Logger
	newID       func() string
	customTypes map[types.ElementType]types.CustomType
}

// Option configures Build.
type Option func(*settings)

// WithLogger sends every warning to logger at warn level, in addition to
// collecting it on the tree.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithIDGenerator replaces uuid.NewString as the source of immutable ids.
// Generated ids are still collision-checked.
func WithIDGenerator(fn func() string) Option {
	return func(s *settings) { s.newID = fn }
}

// WithCustomTypes declares caller-defined element types, giving them a
// display prefix and a metadata contract checked at insertion time.
func WithCustomTypes(cts ...types.CustomType) Option {
	return func(s *settings) {
		for _, ct := range cts {
			s.customTypes[ct.Name] = ct
		}
	}
}

func newSettings(opts []Option) *settings {
	s := &settings{
		newID:       uuid.NewString,
		customTypes: make(map[types.ElementType]types.CustomType),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// warn records a warning and logs it when a logger is configured.
func (t *Tree) warn(kind WarningKind, id, format string, args ...any) {
	w := Warning{Kind: kind, ElementID: id, Message: fmt.Sprintf(format, args...)}
	t.Warnings = append(t.Warnings, w)
	if t.settings.logger != nil {
		t.settings.logger.Warn(w.Message, "kind", string(kind), "element_id", id)
	}
}

// prefix returns the display-id prefix for an element type, honouring
// declared custom types.
func (t *Tree) prefix(et types.ElementType) string {
	if et.IsCustom() {
		if ct, ok := t.settings.customTypes[et]; ok && ct.Prefix != "" {
			return ct.Prefix
		}
	}
	return et.Prefix()
}

// Find returns the node with the given immutable id, or nil.
func (t *Tree) Find(id string) *Node {
	return t.Elements[id]
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.Elements)
}

// parentOf returns n's parent node, or nil for a root.
func (t *Tree) parentOf(n *Node) *Node {
	if n.ParentID == "" {
		return nil
	}
	return t.Elements[n.ParentID]
}

// siblings returns the list n lives in: its parent's children, or Roots.
func (t *Tree) siblings(parent *Node) []*Node {
	if parent == nil {
		return t.Roots
	}
	return parent.Children
}

func (t *Tree) setSiblings(parent *Node, list []*Node) {
	if parent == nil {
		t.Roots = list
		return
	}
	parent.Children = list
}

func indexOf(list []*Node, id string) int {
	for i, n := range list {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func insertAt(list []*Node, idx int, n *Node) []*Node {
	if idx < 0 {
		idx = 0
	}
	if idx > len(list) {
		idx = len(list)
	}
	list = append(list, nil)
	copy(list[idx+1:], list[idx:])
	list[idx] = n
	return list
}

func removeAt(list []*Node, idx int) []*Node {
	return append(list[:idx], list[idx+1:]...)
}
