package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sqkimofficial/ai-research-platform-sub000/backend"
	"github.com/sqkimofficial/ai-research-platform-sub000/doctree"
	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

// Navigate implements read-only document MCP tools.
type Navigate struct {
	store    backend.Store
	maxDepth int
	treeOpts []doctree.Option
}

// NewNavigate creates a new Navigate tool handler. maxDepth is the outline
// depth used when a caller does not pass one.
func NewNavigate(s backend.Store, maxDepth int, opts ...doctree.Option) *Navigate {
	if maxDepth <= 0 {
		maxDepth = doctree.DefaultSummaryDepth
	}
	return &Navigate{store: s, maxDepth: maxDepth, treeOpts: opts}
}

// ListDocuments lists stored documents.
func (n *Navigate) ListDocuments(ctx context.Context, req *mcp.CallToolRequest, input types.ListDocumentsInput) (*mcp.CallToolResult, any, error) {
	infos, err := n.store.ListDocuments(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to list documents: %v", err)), nil, nil
	}
	if len(infos) == 0 {
		return textResult("No documents yet. Use create_document or import_markdown."), nil, nil
	}

	res, err := jsonTextResult(map[string]any{
		"count":     len(infos),
		"documents": infos,
	})
	return res, nil, err
}

// GetStructure returns the indented outline an LLM uses to pick placement
// targets: one line per element with its display id, type and a label.
func (n *Navigate) GetStructure(ctx context.Context, req *mcp.CallToolRequest, input types.GetStructureInput) (*mcp.CallToolResult, any, error) {
	doc, tree, err := loadTree(ctx, n.store, input.Document, n.treeOpts)
	if err != nil {
		return storeError("read", input.Document, err), nil, nil
	}

	depth := input.MaxDepth
	if depth <= 0 {
		depth = n.maxDepth
	}

	header := fmt.Sprintf("# %s (version %d, %d elements)\n", doc.ID, doc.Version, tree.Len())
	if doc.Title != "" {
		header = fmt.Sprintf("# %s: %s (version %d, %d elements)\n", doc.ID, doc.Title, doc.Version, tree.Len())
	}
	return textResult(header + tree.Summary(depth)), nil, nil
}

// GetElements returns the flat element list, or a single element with its
// children and optionally its enclosing sections.
func (n *Navigate) GetElements(ctx context.Context, req *mcp.CallToolRequest, input types.GetElementsInput) (*mcp.CallToolResult, any, error) {
	doc, tree, err := loadTree(ctx, n.store, input.Document, n.treeOpts)
	if err != nil {
		return storeError("read", input.Document, err), nil, nil
	}

	if input.ElementID == "" {
		res, err := jsonTextResult(map[string]any{
			"document": doc.ID,
			"version":  doc.Version,
			"elements": tree.Flatten(),
			"warnings": tree.Warnings,
		})
		return res, nil, err
	}

	id, err := resolveElement(tree, input.ElementID)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	node := tree.Find(id)

	children := make([]elementView, 0, len(node.Children))
	for _, c := range node.Children {
		children = append(children, viewOf(c))
	}

	result := map[string]any{
		"document": doc.ID,
		"version":  doc.Version,
		"element":  viewOf(node),
		"children": children,
	}
	if input.IncludeAncestors {
		var ancestors []elementView
		for _, a := range tree.Ancestors(id) {
			ancestors = append(ancestors, viewOf(a))
		}
		result["ancestors"] = ancestors
	}

	res, err := jsonTextResult(result)
	return res, nil, err
}

// GetMarkdown renders a document as markdown.
func (n *Navigate) GetMarkdown(ctx context.Context, req *mcp.CallToolRequest, input types.GetMarkdownInput) (*mcp.CallToolResult, any, error) {
	if md, ok := n.store.(backend.MarkdownImporter); ok {
		out, err := md.ExportMarkdown(ctx, input.Document, input.EmbedIDs)
		if err != nil {
			return storeError("export", input.Document, err), nil, nil
		}
		return textResult(out), nil, nil
	}

	if input.EmbedIDs {
		return errorResult("embedIds is not supported by this backend"), nil, nil
	}
	doc, tree, err := loadTree(ctx, n.store, input.Document, n.treeOpts)
	if err != nil {
		return storeError("export", input.Document, err), nil, nil
	}
	out := tree.ToMarkdown()
	if doc.Title != "" && out == "" {
		out = "# " + doc.Title
	}
	return textResult(out), nil, nil
}
