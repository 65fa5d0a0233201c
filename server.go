package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sqkimofficial/ai-research-platform-sub000/backend"
	"github.com/sqkimofficial/ai-research-platform-sub000/config"
	"github.com/sqkimofficial/ai-research-platform-sub000/doctree"
	"github.com/sqkimofficial/ai-research-platform-sub000/tools"
	"github.com/sqkimofficial/ai-research-platform-sub000/vault"
)

// treeOptions derives engine options from the configuration.
func treeOptions(cfg *config.Config, logger *slog.Logger) []doctree.Option {
	opts := []doctree.Option{doctree.WithLogger(logger)}
	if len(cfg.CustomTypes) > 0 {
		opts = append(opts, doctree.WithCustomTypes(cfg.CustomTypes...))
	}
	return opts
}

// newServer creates and configures the MCP server with all tools registered.
// If cfg.ReadOnly is true, write tools are not registered.
func newServer(s backend.Store, cfg *config.Config, logger *slog.Logger) *mcp.Server {
	srv := mcp.NewServer(
		&mcp.Implementation{
			Name:    "docstruct",
			Version: version,
		},
		nil,
	)

	opts := treeOptions(cfg, logger)
	nav := tools.NewNavigate(s, cfg.Summary.MaxDepth, opts...)
	search := tools.NewSearch(s, opts...)
	analyze := tools.NewAnalyze(s, opts...)

	// --- Navigate tools ---
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_documents",
		Description: "List all research documents with title, version and element count.",
	}, nav.ListDocuments)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_structure",
		Description: "Get a document's outline: one indented line per element with its display id (sec-introduction, para-2, table-1), type and a short label. Use the display ids as target_id when inserting or moving content.",
	}, nav.GetStructure)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_elements",
		Description: "Get every element of a document in document order, or one element with its children and optionally its enclosing sections.",
	}, nav.GetElements)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_markdown",
		Description: "Render a document as markdown. With embedIds, each block carries an id comment so editing the markdown and importing it back keeps element ids.",
	}, nav.GetMarkdown)

	// --- Search and analysis tools ---
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search",
		Description: "Full-text search across the elements of every document. Returns each match with its display id and the sections that enclose it.",
	}, search.Search)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "document_overview",
		Description: "Structure statistics for one or all documents: element counts by type, depth, containers, and any inconsistencies that were repaired on load.",
	}, analyze.DocumentOverview)

	// --- Write tools (skipped in read-only mode) ---
	if !cfg.ReadOnly {
		write := tools.NewWrite(s, logger, opts...)

		mcp.AddTool(srv, &mcp.Tool{
			Name:        "create_document",
			Description: "Create a new empty research document.",
		}, write.CreateDocument)

		mcp.AddTool(srv, &mcp.Tool{
			Name:        "insert_content",
			Description: "Insert new elements into a document. Give elements parents first, linking children by parent_id inside the batch. strategy is insert_at_end, insert_after, insert_before or insert_into; target_id is a display id from get_structure. An unknown target falls back to the end of the document and is reported, never rejected.",
		}, write.InsertContent)

		mcp.AddTool(srv, &mcp.Tool{
			Name:        "update_element",
			Description: "Replace an element's content by display id or immutable id. Metadata keys are merged.",
		}, write.UpdateElement)

		mcp.AddTool(srv, &mcp.Tool{
			Name:        "delete_element",
			Description: "Delete an element and all its descendants. This is irreversible.",
		}, write.DeleteElement)

		mcp.AddTool(srv, &mcp.Tool{
			Name:        "move_element",
			Description: "Move an element and its descendants using the same placement strategies as insert_content.",
		}, write.MoveElement)

		mcp.AddTool(srv, &mcp.Tool{
			Name:        "import_markdown",
			Description: "Create or replace a document from markdown. Headings become sections and subsections; other blocks become paragraphs, tables, code blocks, images, lists or blockquotes.",
		}, write.ImportMarkdown)

		mcp.AddTool(srv, &mcp.Tool{
			Name:        "delete_document",
			Description: "Delete a document entirely. This is irreversible.",
		}, write.DeleteDocument)
	}

	// --- Health tool ---
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "health",
		Description: "Check server status: version, backend type, read-only mode, document count.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input struct{}) (*mcp.CallToolResult, any, error) {
		docs, _ := s.ListDocuments(ctx)
		pingErr := s.Ping(ctx)

		status := "ok"
		if pingErr != nil {
			status = fmt.Sprintf("error: %v", pingErr)
		}

		data, _ := json.MarshalIndent(map[string]any{
			"status":        status,
			"version":       version,
			"backend":       cfg.Backend,
			"readOnly":      cfg.ReadOnly,
			"documentCount": len(docs),
		}, "", "  ")

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil, nil
	})

	// --- Vault management tools ---
	if vaultClient, ok := s.(*vault.Client); ok {
		srv.AddTool(&mcp.Tool{
			Name:        "reload",
			Description: "Re-read every document file from the vault directory. Use when files were changed outside the server.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{},"required":[],"additionalProperties":false}`),
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if err := vaultClient.Reload(); err != nil {
				return &mcp.CallToolResult{
					Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Reload failed: %v", err)}},
					IsError: true,
				}, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "Vault reloaded successfully"}},
			}, nil
		})
	}

	return srv
}
