package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sqkimofficial/ai-research-platform-sub000/backend"
	"github.com/sqkimofficial/ai-research-platform-sub000/doctree"
	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

// Analyze implements document analysis MCP tools.
type Analyze struct {
	store    backend.Store
	treeOpts []doctree.Option
}

// NewAnalyze creates a new Analyze tool handler.
func NewAnalyze(s backend.Store, opts ...doctree.Option) *Analyze {
	return &Analyze{store: s, treeOpts: opts}
}

// documentOverview is the shape statistics of one document.
type documentOverview struct {
	types.DocumentInfo
	Stats    doctree.Stats     `json:"stats"`
	Warnings []doctree.Warning `json:"warnings,omitempty"`
}

// DocumentOverview reports structure statistics and repaired
// inconsistencies for one document, or for every document.
func (a *Analyze) DocumentOverview(ctx context.Context, req *mcp.CallToolRequest, input types.DocumentOverviewInput) (*mcp.CallToolResult, any, error) {
	if input.Document != "" {
		ov, err := a.overview(ctx, input.Document)
		if err != nil {
			return storeError("analyze", input.Document, err), nil, nil
		}
		res, err := jsonTextResult(ov)
		return res, nil, err
	}

	infos, err := a.store.ListDocuments(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to list documents: %v", err)), nil, nil
	}

	overviews := make([]documentOverview, 0, len(infos))
	totals := map[string]int{}
	for _, info := range infos {
		ov, err := a.overview(ctx, info.ID)
		if err != nil {
			continue
		}
		overviews = append(overviews, ov)
		totals["elements"] += ov.Stats.Elements
		totals["warnings"] += ov.Stats.Warnings
	}

	res, err := jsonTextResult(map[string]any{
		"documents": len(overviews),
		"totals":    totals,
		"overviews": overviews,
	})
	return res, nil, err
}

func (a *Analyze) overview(ctx context.Context, docID string) (documentOverview, error) {
	doc, tree, err := loadTree(ctx, a.store, docID, a.treeOpts)
	if err != nil {
		return documentOverview{}, err
	}
	return documentOverview{
		DocumentInfo: backend.Summarize(doc),
		Stats:        tree.Stats(),
		Warnings:     tree.Warnings,
	}, nil
}
