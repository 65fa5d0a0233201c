package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sqkimofficial/ai-research-platform-sub000/backend"
	"github.com/sqkimofficial/ai-research-platform-sub000/doctree"
	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

// maxSaveAttempts bounds the reload-and-retry loop on version conflicts.
const maxSaveAttempts = 3

// textResult creates a successful text CallToolResult.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// errorResult creates an error CallToolResult (visible to the LLM for self-correction).
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// jsonTextResult marshals any value to indented JSON and wraps it as text content.
func jsonTextResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// loadTree fetches a document and builds its tree.
func loadTree(ctx context.Context, store backend.Store, docID string, opts []doctree.Option) (*types.Document, *doctree.Tree, error) {
	doc, err := store.GetDocument(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	return doc, doctree.Build(doc.Elements, opts...), nil
}

// mutate runs fn against a freshly loaded tree and saves the flattened
// result with the version that was read. On a version conflict the document
// is reloaded and fn runs again, so fn must be safe to repeat.
func mutate(ctx context.Context, store backend.Store, docID string, opts []doctree.Option, fn func(*doctree.Tree) error) (*types.Document, *doctree.Tree, error) {
	var lastErr error
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		doc, tree, err := loadTree(ctx, store, docID, opts)
		if err != nil {
			return nil, nil, err
		}
		if err := fn(tree); err != nil {
			return nil, nil, err
		}

		doc.Elements = tree.Flatten()
		saved, err := store.SaveDocument(ctx, doc, doc.Version)
		if errors.Is(err, backend.ErrVersionConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return saved, tree, nil
	}
	return nil, nil, lastErr
}

// resolveElement accepts a display id or an immutable id.
func resolveElement(tree *doctree.Tree, ref string) (string, error) {
	id, ok := tree.ResolveDisplayID(ref)
	if !ok {
		return "", fmt.Errorf("element %q not found (use get_structure to see display ids)", ref)
	}
	return id, nil
}

// displayIDs maps immutable ids to their current display ids.
func displayIDs(tree *doctree.Tree, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n := tree.Find(id); n != nil {
			out = append(out, n.DisplayID)
		}
	}
	return out
}

// elementView is the JSON shape of one element returned to callers.
type elementView struct {
	ID        string            `json:"id"`
	DisplayID string            `json:"display_id"`
	Type      types.ElementType `json:"type"`
	Content   string            `json:"content"`
	ParentID  string            `json:"parent_id,omitempty"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
	Children  int               `json:"children"`
}

func viewOf(n *doctree.Node) elementView {
	return elementView{
		ID:        n.ID,
		DisplayID: n.DisplayID,
		Type:      n.Type,
		Content:   n.Content,
		ParentID:  n.ParentID,
		Metadata:  n.Metadata,
		Children:  len(n.Children),
	}
}

// storeError renders a store failure for the LLM.
func storeError(action, docID string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return errorResult(fmt.Sprintf("document not found: %s (use list_documents)", docID))
	case errors.Is(err, backend.ErrReadOnly):
		return errorResult("server is in read-only mode")
	case errors.Is(err, backend.ErrVersionConflict):
		return errorResult(fmt.Sprintf("failed to %s %s: document keeps changing concurrently, retry", action, docID))
	default:
		return errorResult(fmt.Sprintf("failed to %s %s: %v", action, docID, err))
	}
}
