package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sqkimofficial/ai-research-platform-sub000/backend"
	"github.com/sqkimofficial/ai-research-platform-sub000/doctree"
	"github.com/sqkimofficial/ai-research-platform-sub000/logging"
	"github.com/sqkimofficial/ai-research-platform-sub000/parser"
	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

// Write implements document-changing MCP tools.
type Write struct {
	store    backend.Store
	treeOpts []doctree.Option
	logger   *slog.Logger
}

// NewWrite creates a new Write tool handler.
func NewWrite(s backend.Store, logger *slog.Logger, opts ...doctree.Option) *Write {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Write{store: s, treeOpts: opts, logger: logger}
}

// CreateDocument creates an empty document.
func (w *Write) CreateDocument(ctx context.Context, req *mcp.CallToolRequest, input types.CreateDocumentInput) (*mcp.CallToolResult, any, error) {
	doc, err := w.store.CreateDocument(ctx, input.ID, input.Title)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to create document '%s': %v", input.ID, err)), nil, nil
	}

	res, err := jsonTextResult(map[string]any{
		"created":  true,
		"document": doc.ID,
		"title":    doc.Title,
		"version":  doc.Version,
	})
	return res, nil, err
}

// DeleteDocument removes a document entirely.
func (w *Write) DeleteDocument(ctx context.Context, req *mcp.CallToolRequest, input types.DeleteDocumentInput) (*mcp.CallToolResult, any, error) {
	if err := w.store.DeleteDocument(ctx, input.Document); err != nil {
		return storeError("delete", input.Document, err), nil, nil
	}
	return textResult(fmt.Sprintf("Deleted document %s.", input.Document)), nil, nil
}

// InsertContent grafts LLM-produced elements into a document following a
// placement directive. Invalid directives are rejected; every other problem
// is repaired and reported as a warning.
func (w *Write) InsertContent(ctx context.Context, req *mcp.CallToolRequest, input types.InsertContentInput) (*mcp.CallToolResult, any, error) {
	if len(input.Elements) == 0 {
		return errorResult("no elements provided"), nil, nil
	}

	elements := make([]types.Element, len(input.Elements))
	for i, in := range input.Elements {
		elements[i] = in.Element()
	}
	directive := types.Directive{Strategy: input.Strategy, TargetID: input.TargetID, Position: input.Position}

	var result *doctree.InsertResult
	saved, tree, err := mutate(ctx, w.store, input.Document, w.treeOpts, func(t *doctree.Tree) error {
		r, err := t.Insert(elements, directive)
		result = r
		return err
	})
	if errors.Is(err, doctree.ErrInvalidDirective) {
		return errorResult(err.Error()), nil, nil
	}
	if err != nil {
		return storeError("insert into", input.Document, err), nil, nil
	}

	w.logger.Info("content inserted",
		"document_id", saved.ID,
		"strategy", result.Strategy,
		"inserted", len(result.Inserted),
		"fallback", result.Fallback,
		"warnings", len(result.Warnings))

	res, err := jsonTextResult(map[string]any{
		"document":    saved.ID,
		"version":     saved.Version,
		"strategy":    result.Strategy,
		"targetId":    result.TargetID,
		"fallback":    result.Fallback,
		"inserted":    result.Inserted,
		"displayIds":  displayIDs(tree, result.Inserted),
		"skipped":     result.Skipped,
		"unwrapped":   result.Unwrapped,
		"warnings":    result.Warnings,
		"elementsNow": tree.Len(),
	})
	return res, nil, err
}

// UpdateElement replaces an element's content and merges metadata.
func (w *Write) UpdateElement(ctx context.Context, req *mcp.CallToolRequest, input types.UpdateElementInput) (*mcp.CallToolResult, any, error) {
	var id string
	saved, tree, err := mutate(ctx, w.store, input.Document, w.treeOpts, func(t *doctree.Tree) error {
		var err error
		if id, err = resolveElement(t, input.ElementID); err != nil {
			return err
		}
		return t.UpdateContent(id, input.Content, input.Metadata)
	})
	if err != nil {
		return w.editError("update", input.Document, err), nil, nil
	}

	res, err := jsonTextResult(map[string]any{
		"document": saved.ID,
		"version":  saved.Version,
		"element":  viewOf(tree.Find(id)),
	})
	return res, nil, err
}

// DeleteElement removes an element and all its descendants.
func (w *Write) DeleteElement(ctx context.Context, req *mcp.CallToolRequest, input types.DeleteElementInput) (*mcp.CallToolResult, any, error) {
	var removed []string
	saved, _, err := mutate(ctx, w.store, input.Document, w.treeOpts, func(t *doctree.Tree) error {
		id, err := resolveElement(t, input.ElementID)
		if err != nil {
			return err
		}
		removed, err = t.Remove(id)
		return err
	})
	if err != nil {
		return w.editError("delete element in", input.Document, err), nil, nil
	}

	res, err := jsonTextResult(map[string]any{
		"document": saved.ID,
		"version":  saved.Version,
		"removed":  removed,
	})
	return res, nil, err
}

// MoveElement relocates an element and its descendants.
func (w *Write) MoveElement(ctx context.Context, req *mcp.CallToolRequest, input types.MoveElementInput) (*mcp.CallToolResult, any, error) {
	directive := types.Directive{Strategy: input.Strategy, TargetID: input.TargetID, Position: input.Position}

	var (
		id     string
		result *doctree.InsertResult
	)
	saved, tree, err := mutate(ctx, w.store, input.Document, w.treeOpts, func(t *doctree.Tree) error {
		var err error
		if id, err = resolveElement(t, input.ElementID); err != nil {
			return err
		}
		result, err = t.Move(id, directive)
		return err
	})
	if err != nil {
		return w.editError("move element in", input.Document, err), nil, nil
	}

	res, err := jsonTextResult(map[string]any{
		"document":  saved.ID,
		"version":   saved.Version,
		"moved":     id,
		"displayId": tree.Find(id).DisplayID,
		"strategy":  result.Strategy,
		"fallback":  result.Fallback,
		"warnings":  result.Warnings,
	})
	return res, nil, err
}

// ImportMarkdown creates or replaces a document from markdown text.
func (w *Write) ImportMarkdown(ctx context.Context, req *mcp.CallToolRequest, input types.ImportMarkdownInput) (*mcp.CallToolResult, any, error) {
	var (
		doc *types.Document
		err error
	)
	if md, ok := w.store.(backend.MarkdownImporter); ok {
		doc, err = md.ImportMarkdown(ctx, input.Document, input.Markdown)
	} else {
		doc, err = w.importGeneric(ctx, input.Document, input.Markdown)
	}
	if err != nil {
		return storeError("import", input.Document, err), nil, nil
	}

	summary := doctree.Summarize(doc.Elements, 2, w.treeOpts...)
	return textResult(fmt.Sprintf("Imported %d elements into %s (version %d).\n%s",
		len(doc.Elements), doc.ID, doc.Version, summary)), nil, nil
}

// importGeneric stores parsed markdown through the plain Store contract.
func (w *Write) importGeneric(ctx context.Context, docID, markdown string) (*types.Document, error) {
	elements := parser.MarkdownToElements(markdown, nil)
	title := ""
	for _, e := range elements {
		if e.Type == types.TypeSection {
			title = e.Title()
			break
		}
	}

	doc, err := w.store.GetDocument(ctx, docID)
	if errors.Is(err, backend.ErrNotFound) {
		doc, err = w.store.CreateDocument(ctx, docID, title)
	}
	if err != nil {
		return nil, err
	}
	doc.Elements = elements
	if title != "" {
		doc.Title = title
	}
	return w.store.SaveDocument(ctx, doc, doc.Version)
}

// editError separates unresolvable element references from store failures.
func (w *Write) editError(action, docID string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, doctree.ErrInvalidDirective), errors.Is(err, doctree.ErrElementNotFound):
		return errorResult(err.Error())
	case errors.Is(err, backend.ErrNotFound), errors.Is(err, backend.ErrReadOnly), errors.Is(err, backend.ErrVersionConflict):
		return storeError(action, docID, err)
	default:
		// resolveElement failures carry their own guidance.
		return errorResult(err.Error())
	}
}
