package types

// --- Document tool inputs ---

// ListDocumentsInput has no required params.
type ListDocumentsInput struct{}

type CreateDocumentInput struct {
	ID    string `json:"id" jsonschema:"Document id (used as the file or row key)"`
	Title string `json:"title,omitempty" jsonschema:"Human readable document title"`
}

type DeleteDocumentInput struct {
	Document string `json:"document" jsonschema:"Document id to delete"`
}

// --- Structure tool inputs ---

type GetStructureInput struct {
	Document string `json:"document" jsonschema:"Document id"`
	MaxDepth int    `json:"maxDepth,omitempty" jsonschema:"Outline depth limit. Default: server setting (10)"`
}

type GetElementsInput struct {
	Document         string `json:"document" jsonschema:"Document id"`
	ElementID        string `json:"elementId,omitempty" jsonschema:"Display id (e.g. sec-introduction, para-2) or immutable id of one element. Omit for all elements"`
	IncludeAncestors bool   `json:"includeAncestors,omitempty" jsonschema:"Include the chain of enclosing sections. Default: false"`
}

type GetMarkdownInput struct {
	Document string `json:"document" jsonschema:"Document id"`
	EmbedIDs bool   `json:"embedIds,omitempty" jsonschema:"Tag every block with an id comment so a later import keeps ids. Default: false"`
}

// DocumentOverviewInput selects one document, or every document when empty.
type DocumentOverviewInput struct {
	Document string `json:"document,omitempty" jsonschema:"Document id. Omit for all documents"`
}

// --- Write tool inputs ---

// ElementInput is the lenient wire form of an element supplied by a caller:
// parent_id may be omitted or null for a root.
type ElementInput struct {
	ID       string         `json:"id" jsonschema:"Positional label (e.g. para-1) or a durable UUID to keep"`
	Type     ElementType    `json:"type" jsonschema:"section, subsection, paragraph, table, code_block, image, list, blockquote or a custom type"`
	Content  string         `json:"content" jsonschema:"Markdown content of the element"`
	ParentID *string        `json:"parent_id,omitempty" jsonschema:"Label or id of the parent inside this batch. Omit or null for a root"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema:"Type specific metadata such as title or language"`
}

// Element converts the input to its engine form.
func (in ElementInput) Element() Element {
	e := Element{ID: in.ID, Type: in.Type, Content: in.Content, Metadata: in.Metadata}
	if in.ParentID != nil {
		e.ParentID = *in.ParentID
	}
	return e
}

type InsertContentInput struct {
	Document string         `json:"document" jsonschema:"Document id"`
	Elements []ElementInput `json:"elements" jsonschema:"New elements, parents before children"`
	Strategy Strategy       `json:"strategy" jsonschema:"insert_at_end or insert_after or insert_before or insert_into"`
	TargetID string         `json:"target_id,omitempty" jsonschema:"Display id of the target element (not needed for insert_at_end)"`
	Position Position       `json:"position,omitempty" jsonschema:"For insert_into: beginning or end. Default: end"`
}

type UpdateElementInput struct {
	Document  string         `json:"document" jsonschema:"Document id"`
	ElementID string         `json:"elementId" jsonschema:"Display id or immutable id of the element"`
	Content   string         `json:"content" jsonschema:"Replacement markdown content"`
	Metadata  map[string]any `json:"metadata,omitempty" jsonschema:"Metadata keys to set (merged into existing metadata)"`
}

type DeleteElementInput struct {
	Document  string `json:"document" jsonschema:"Document id"`
	ElementID string `json:"elementId" jsonschema:"Display id or immutable id of the element. Its descendants are removed too"`
}

type MoveElementInput struct {
	Document  string   `json:"document" jsonschema:"Document id"`
	ElementID string   `json:"elementId" jsonschema:"Display id or immutable id of the element to move"`
	Strategy  Strategy `json:"strategy" jsonschema:"insert_at_end or insert_after or insert_before or insert_into"`
	TargetID  string   `json:"target_id,omitempty" jsonschema:"Display id of the target element"`
	Position  Position `json:"position,omitempty" jsonschema:"For insert_into: beginning or end. Default: end"`
}

type ImportMarkdownInput struct {
	Document string `json:"document" jsonschema:"Document id to create or replace"`
	Markdown string `json:"markdown" jsonschema:"Markdown text, optionally with YAML frontmatter carrying a title"`
}

// --- Search tool inputs ---

type SearchInput struct {
	Query string `json:"query" jsonschema:"Search text to find across all elements"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max results. Default: 20"`
}
