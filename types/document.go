package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// ElementType names the kind of a document element. Well-known values are
// listed below; any other value is a caller-defined custom type.
type ElementType string

const (
	TypeSection    ElementType = "section"
	TypeSubsection ElementType = "subsection"
	TypeParagraph  ElementType = "paragraph"
	TypeTable      ElementType = "table"
	TypeCodeBlock  ElementType = "code_block"
	TypeImage      ElementType = "image"
	TypeList       ElementType = "list"
	TypeBlockquote ElementType = "blockquote"
)

// Kind is the closed set that type-based heuristics switch over.
// Every ElementType maps to exactly one Kind.
type Kind int

const (
	KindCustom Kind = iota
	KindSection
	KindSubsection
	KindParagraph
	KindTable
	KindCodeBlock
	KindImage
	KindList
	KindBlockquote
)

// Kind maps the element type onto its closed variant.
func (t ElementType) Kind() Kind {
	switch t {
	case TypeSection:
		return KindSection
	case TypeSubsection:
		return KindSubsection
	case TypeParagraph:
		return KindParagraph
	case TypeTable:
		return KindTable
	case TypeCodeBlock:
		return KindCodeBlock
	case TypeImage:
		return KindImage
	case TypeList:
		return KindList
	case TypeBlockquote:
		return KindBlockquote
	default:
		return KindCustom
	}
}

// IsCustom reports whether t is outside the well-known set.
func (t ElementType) IsCustom() bool { return t.Kind() == KindCustom }

// IsContainer reports whether elements of this type are meant to hold children.
func (t ElementType) IsContainer() bool {
	switch t.Kind() {
	case KindSection, KindSubsection:
		return true
	}
	return false
}

// Prefix returns the short label used when building display ids.
func (t ElementType) Prefix() string {
	switch t.Kind() {
	case KindSection:
		return "sec"
	case KindSubsection:
		return "subsec"
	case KindParagraph:
		return "para"
	case KindTable:
		return "table"
	case KindCodeBlock:
		return "code"
	case KindImage:
		return "img"
	case KindList:
		return "list"
	case KindBlockquote:
		return "quote"
	default:
		return "elem"
	}
}

// CustomType describes a caller-defined element type. It is a plain value
// handed to the engine, not an entry in a global registry.
type CustomType struct {
	Name         ElementType `json:"name" yaml:"name"`
	Prefix       string      `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	MetadataKeys []string    `json:"metadataKeys,omitempty" yaml:"metadata_keys,omitempty"`
}

// Validate returns the metadata keys required by the custom type that are
// missing from metadata.
func (c CustomType) Validate(metadata map[string]any) []string {
	var missing []string
	for _, k := range c.MetadataKeys {
		if _, ok := metadata[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

// Element is the persisted, flat form of a document node.
//
// ID is the immutable identity. DisplayID is a positional label recomputed
// from tree shape and must never be used as a durable key. ParentID always
// holds an immutable id, or "" for a root element.
type Element struct {
	ID        string         `json:"id"`
	DisplayID string         `json:"display_id,omitempty"`
	Type      ElementType    `json:"type"`
	Content   string         `json:"content"`
	ParentID  string         `json:"parent_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// elementJSON mirrors Element with a nullable parent reference.
type elementJSON struct {
	ID        string         `json:"id"`
	DisplayID string         `json:"display_id,omitempty"`
	Type      ElementType    `json:"type"`
	Content   string         `json:"content"`
	ParentID  *string        `json:"parent_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON writes a root element's parent_id as null.
func (e Element) MarshalJSON() ([]byte, error) {
	out := elementJSON{
		ID:        e.ID,
		DisplayID: e.DisplayID,
		Type:      e.Type,
		Content:   e.Content,
		Metadata:  e.Metadata,
	}
	if e.ParentID != "" {
		parent := e.ParentID
		out.ParentID = &parent
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts parent_id as null, "" or missing for roots.
func (e *Element) UnmarshalJSON(data []byte) error {
	var in elementJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("Element: %w", err)
	}
	*e = Element{
		ID:        in.ID,
		DisplayID: in.DisplayID,
		Type:      in.Type,
		Content:   in.Content,
		Metadata:  in.Metadata,
	}
	if in.ParentID != nil {
		e.ParentID = *in.ParentID
	}
	return nil
}

// Title returns metadata["title"] when it is a non-empty string.
func (e Element) Title() string {
	if e.Metadata == nil {
		return ""
	}
	if s, ok := e.Metadata["title"].(string); ok {
		return s
	}
	return ""
}

// Clone returns a copy whose metadata map is not shared with e.
func (e Element) Clone() Element {
	c := e
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// Strategy selects how new content is grafted into a document.
type Strategy string

const (
	InsertAtEnd  Strategy = "insert_at_end"
	InsertAfter  Strategy = "insert_after"
	InsertBefore Strategy = "insert_before"
	InsertInto   Strategy = "insert_into"
)

// NeedsTarget reports whether the strategy is relative to a target element.
func (s Strategy) NeedsTarget() bool {
	switch s {
	case InsertAfter, InsertBefore, InsertInto:
		return true
	}
	return false
}

// Position picks the end of a container's child list used by insert_into.
type Position string

const (
	PositionBeginning Position = "beginning"
	PositionEnd       Position = "end"
)

// Directive is the placement instruction produced by the LLM orchestration
// layer. TargetID is expressed in display-id vocabulary.
type Directive struct {
	Strategy Strategy `json:"strategy"`
	TargetID string   `json:"target_id,omitempty"`
	Position Position `json:"position,omitempty"`
}

// Document is a stored document: its flat element list plus the version
// counter used by callers for optimistic locking.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
	Elements  []Element `json:"elements"`
}

// DocumentInfo is a lightweight listing entry.
type DocumentInfo struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	Version      int       `json:"version"`
	ElementCount int       `json:"elementCount"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty"`
}
