package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sqkimofficial/ai-research-platform-sub000/backend"
	"github.com/sqkimofficial/ai-research-platform-sub000/doctree"
	"github.com/sqkimofficial/ai-research-platform-sub000/parser"
	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

const defaultSearchLimit = 20

// Search implements search MCP tools.
type Search struct {
	store    backend.Store
	treeOpts []doctree.Option
}

// NewSearch creates a new Search tool handler.
func NewSearch(s backend.Store, opts ...doctree.Option) *Search {
	return &Search{store: s, treeOpts: opts}
}

// searchMatch is one hit with enough context to act on it.
type searchMatch struct {
	Document    string            `json:"document"`
	ElementID   string            `json:"elementId"`
	DisplayID   string            `json:"displayId"`
	Type        types.ElementType `json:"type"`
	Snippet     string            `json:"snippet"`
	SectionPath []string          `json:"sectionPath,omitempty"`
	Score       int               `json:"score"`
}

// Search performs full-text search across every element of every document.
func (s *Search) Search(ctx context.Context, req *mcp.CallToolRequest, input types.SearchInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.Query) == "" {
		return errorResult("query must not be empty"), nil, nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var (
		results []searchMatch
		err     error
	)
	if searcher, ok := s.store.(backend.Searcher); ok {
		results, err = s.indexed(ctx, searcher, input.Query, limit)
	} else {
		results, err = s.scan(ctx, input.Query, limit)
	}
	if err != nil {
		return errorResult(fmt.Sprintf("search failed: %v", err)), nil, nil
	}

	if len(results) == 0 {
		return textResult(fmt.Sprintf("No results found for '%s'.", input.Query)), nil, nil
	}

	res, err := jsonTextResult(map[string]any{
		"query":   input.Query,
		"count":   len(results),
		"results": results,
	})
	return res, nil, err
}

// indexed runs the backend search and adds display ids and section paths,
// building each touched document's tree once.
func (s *Search) indexed(ctx context.Context, searcher backend.Searcher, query string, limit int) ([]searchMatch, error) {
	hits, err := searcher.SearchElements(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	trees := make(map[string]*doctree.Tree)
	results := make([]searchMatch, 0, len(hits))
	for _, h := range hits {
		tree, ok := trees[h.DocumentID]
		if !ok {
			_, tree, err = loadTree(ctx, s.store, h.DocumentID, s.treeOpts)
			if err != nil {
				// Deleted between search and load.
				tree = nil
			}
			trees[h.DocumentID] = tree
		}
		m := searchMatch{
			Document:  h.DocumentID,
			ElementID: h.ElementID,
			Type:      h.Type,
			Snippet:   parser.Snippet(h.Content, 120),
			Score:     h.Score,
		}
		if tree != nil {
			if n := tree.Find(h.ElementID); n != nil {
				m.DisplayID = n.DisplayID
				m.SectionPath = sectionPath(tree, n.ID)
			}
		}
		results = append(results, m)
	}
	return results, nil
}

// scan walks every document when the backend has no index. Every query term
// must appear in the element content.
func (s *Search) scan(ctx context.Context, query string, limit int) ([]searchMatch, error) {
	terms := strings.Fields(strings.ToLower(query))
	infos, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	var results []searchMatch
	for _, info := range infos {
		_, tree, err := loadTree(ctx, s.store, info.ID, s.treeOpts)
		if err != nil {
			continue
		}
		searchNodes(info.ID, tree.Roots, terms, nil, &results)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func searchNodes(docID string, nodes []*doctree.Node, terms, path []string, results *[]searchMatch) {
	for _, n := range nodes {
		if score := matchTerms(n.Content, terms); score > 0 {
			*results = append(*results, searchMatch{
				Document:    docID,
				ElementID:   n.ID,
				DisplayID:   n.DisplayID,
				Type:        n.Type,
				Snippet:     parser.Snippet(n.Content, 120),
				SectionPath: append([]string(nil), path...),
				Score:       score,
			})
		}
		if len(n.Children) > 0 {
			searchNodes(docID, n.Children, terms, append(path, nodeLabel(n)), results)
		}
	}
}

// matchTerms returns the total occurrences of terms in content, or 0 when
// any term is missing.
func matchTerms(content string, terms []string) int {
	lower := strings.ToLower(content)
	score := 0
	for _, term := range terms {
		c := strings.Count(lower, term)
		if c == 0 {
			return 0
		}
		score += c
	}
	return score
}

func sectionPath(tree *doctree.Tree, id string) []string {
	var path []string
	for _, a := range tree.Ancestors(id) {
		path = append(path, nodeLabel(a))
	}
	return path
}

func nodeLabel(n *doctree.Node) string {
	if title := n.Title(); title != "" {
		return title
	}
	if title := parser.HeadingTitle(n.Content); title != "" {
		return title
	}
	return n.DisplayID
}
