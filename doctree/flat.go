package doctree

import (
	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

// InsertFlat runs one stateless insertion: build the tree from existing,
// insert newElements per d, flatten. The result's Warnings include those
// raised while building existing.
func InsertFlat(existing, newElements []types.Element, d types.Directive, opts ...Option) ([]types.Element, *InsertResult, error) {
	t := Build(existing, opts...)
	res, err := t.Insert(newElements, d)
	if err != nil {
		return nil, nil, err
	}
	res.Warnings = append([]Warning(nil), t.Warnings...)
	return t.Flatten(), res, nil
}

// Render builds a tree from flat and returns its markdown.
func Render(flat []types.Element, opts ...Option) string {
	return Build(flat, opts...).ToMarkdown()
}

// Summarize builds a tree from flat and returns its outline.
func Summarize(flat []types.Element, maxDepth int, opts ...Option) string {
	return Build(flat, opts...).Summary(maxDepth)
}
