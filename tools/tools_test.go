package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqkimofficial/ai-research-platform-sub000/backend"
	"github.com/sqkimofficial/ai-research-platform-sub000/doctree"
	"github.com/sqkimofficial/ai-research-platform-sub000/types"
	"github.com/sqkimofficial/ai-research-platform-sub000/vault"
)

const paperMarkdown = "# Introduction\n\nLLMs are big.\n\n# Methods\n\nWe measure.\n"

// plainStore hides the optional Searcher and MarkdownImporter interfaces.
type plainStore struct{ backend.Store }

// conflictStore fails the first n saves with a version conflict.
type conflictStore struct {
	backend.Store
	n int
}

func (c *conflictStore) SaveDocument(ctx context.Context, doc *types.Document, v int) (*types.Document, error) {
	if c.n > 0 {
		c.n--
		return nil, backend.ErrVersionConflict
	}
	return c.Store.SaveDocument(ctx, doc, v)
}

func newVault(t *testing.T) *vault.Client {
	t.Helper()
	c := vault.New(t.TempDir())
	require.NoError(t, c.Load())
	return c
}

func seededVault(t *testing.T) *vault.Client {
	t.Helper()
	c := newVault(t)
	_, err := c.ImportMarkdown(context.Background(), "paper", paperMarkdown)
	require.NoError(t, err)
	return c
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.False(t, res.IsError, resultText(t, res))
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

func structure(t *testing.T, s backend.Store) string {
	t.Helper()
	res, _, err := NewNavigate(s, 0).GetStructure(context.Background(), nil, types.GetStructureInput{Document: "paper"})
	require.NoError(t, err)
	require.False(t, res.IsError)
	return resultText(t, res)
}

func TestGetStructure(t *testing.T) {
	out := structure(t, seededVault(t))
	assert.Contains(t, out, "# paper: Introduction (version 2, 4 elements)")
	assert.Contains(t, out, `[sec-introduction] section - "Introduction"`)
	assert.Contains(t, out, `  [para-1] paragraph - "We measure."`)
}

func TestGetStructureMissingDocument(t *testing.T) {
	res, _, err := NewNavigate(newVault(t), 0).GetStructure(context.Background(), nil, types.GetStructureInput{Document: "nope"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "document not found")
}

func TestListDocuments(t *testing.T) {
	nav := NewNavigate(newVault(t), 0)
	res, _, err := nav.ListDocuments(context.Background(), nil, types.ListDocumentsInput{})
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "No documents yet")

	nav = NewNavigate(seededVault(t), 0)
	res, _, _ = nav.ListDocuments(context.Background(), nil, types.ListDocumentsInput{})
	out := resultJSON(t, res)
	assert.EqualValues(t, 1, out["count"])
}

func TestGetElements(t *testing.T) {
	nav := NewNavigate(seededVault(t), 0)
	ctx := context.Background()

	res, _, err := nav.GetElements(ctx, nil, types.GetElementsInput{Document: "paper"})
	require.NoError(t, err)
	all := resultJSON(t, res)
	assert.Len(t, all["elements"], 4)

	res, _, _ = nav.GetElements(ctx, nil, types.GetElementsInput{Document: "paper", ElementID: "sec-methods"})
	one := resultJSON(t, res)
	assert.Len(t, one["children"], 1)
	assert.NotContains(t, one, "ancestors")

	res, _, _ = nav.GetElements(ctx, nil, types.GetElementsInput{Document: "paper", ElementID: "sec-methods", IncludeAncestors: true})
	assert.Contains(t, resultJSON(t, res), "ancestors")

	res, _, _ = nav.GetElements(ctx, nil, types.GetElementsInput{Document: "paper", ElementID: "table-9"})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "get_structure")
}

func TestInsertContentInto(t *testing.T) {
	store := seededVault(t)
	w := NewWrite(store, nil)

	res, _, err := w.InsertContent(context.Background(), nil, types.InsertContentInput{
		Document: "paper",
		Elements: []types.ElementInput{{ID: "para-1", Type: types.TypeParagraph, Content: "New result."}},
		Strategy: types.InsertInto,
		TargetID: "sec-methods",
	})
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, []any{"para-2"}, out["displayIds"])
	assert.Equal(t, false, out["fallback"])
	assert.EqualValues(t, 3, out["version"])

	assert.Contains(t, structure(t, store), `  [para-2] paragraph - "New result."`)
}

func TestInsertContentFallsBackOnUnknownTarget(t *testing.T) {
	store := seededVault(t)
	w := NewWrite(store, nil)

	res, _, err := w.InsertContent(context.Background(), nil, types.InsertContentInput{
		Document: "paper",
		Elements: []types.ElementInput{{ID: "s", Type: types.TypeSection, Content: "# Appendix"}},
		Strategy: types.InsertAfter,
		TargetID: "sec-nope",
	})
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, true, out["fallback"])
	assert.Equal(t, string(types.InsertAtEnd), out["strategy"])
	assert.NotEmpty(t, out["warnings"])

	s := structure(t, store)
	assert.Greater(t, strings.Index(s, "sec-appendix"), strings.Index(s, "sec-methods"))
}

func TestInsertContentRejects(t *testing.T) {
	w := NewWrite(seededVault(t), nil)
	ctx := context.Background()

	res, _, err := w.InsertContent(ctx, nil, types.InsertContentInput{Document: "paper", Strategy: types.InsertAtEnd})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, _, _ = w.InsertContent(ctx, nil, types.InsertContentInput{
		Document: "paper",
		Elements: []types.ElementInput{{ID: "p", Type: types.TypeParagraph, Content: "x"}},
		Strategy: "sideways",
	})
	assert.True(t, res.IsError)

	res, _, _ = w.InsertContent(ctx, nil, types.InsertContentInput{
		Document: "missing",
		Elements: []types.ElementInput{{ID: "p", Type: types.TypeParagraph, Content: "x"}},
		Strategy: types.InsertAtEnd,
	})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "document not found")
}

func TestUpdateDeleteMove(t *testing.T) {
	store := seededVault(t)
	w := NewWrite(store, nil)
	ctx := context.Background()

	res, _, err := w.UpdateElement(ctx, nil, types.UpdateElementInput{
		Document: "paper", ElementID: "sec-methods", Content: "# Methodology",
		Metadata: map[string]any{"title": "Methodology"},
	})
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, "sec-methodology", out["element"].(map[string]any)["display_id"])

	res, _, _ = w.MoveElement(ctx, nil, types.MoveElementInput{
		Document: "paper", ElementID: "sec-methodology",
		Strategy: types.InsertBefore, TargetID: "sec-introduction",
	})
	out = resultJSON(t, res)
	assert.Equal(t, "sec-methodology", out["displayId"])
	s := structure(t, store)
	assert.Less(t, strings.Index(s, "sec-methodology"), strings.Index(s, "sec-introduction"))

	res, _, _ = w.DeleteElement(ctx, nil, types.DeleteElementInput{Document: "paper", ElementID: "sec-introduction"})
	out = resultJSON(t, res)
	assert.Len(t, out["removed"], 2)
	assert.NotContains(t, structure(t, store), "sec-introduction")

	res, _, _ = w.DeleteElement(ctx, nil, types.DeleteElementInput{Document: "paper", ElementID: "sec-introduction"})
	assert.True(t, res.IsError)
}

func TestMoveIntoOwnSubtreeIsRefused(t *testing.T) {
	store := seededVault(t)
	w := NewWrite(store, nil)

	res, _, err := w.MoveElement(context.Background(), nil, types.MoveElementInput{
		Document: "paper", ElementID: "sec-methods",
		Strategy: types.InsertInto, TargetID: "sec-methods",
	})
	require.NoError(t, err)
	out := resultJSON(t, res)
	warnings := out["warnings"].([]any)
	require.Len(t, warnings, 1)
	assert.Equal(t, string(doctree.WarnInvalidMove), warnings[0].(map[string]any)["kind"])
}

func TestCreateAndDeleteDocument(t *testing.T) {
	store := newVault(t)
	w := NewWrite(store, nil)
	ctx := context.Background()

	res, _, err := w.CreateDocument(ctx, nil, types.CreateDocumentInput{ID: "draft", Title: "Draft"})
	require.NoError(t, err)
	assert.Equal(t, "draft", resultJSON(t, res)["document"])

	res, _, _ = w.CreateDocument(ctx, nil, types.CreateDocumentInput{ID: "draft"})
	assert.True(t, res.IsError)

	res, _, _ = w.DeleteDocument(ctx, nil, types.DeleteDocumentInput{Document: "draft"})
	assert.False(t, res.IsError)
	res, _, _ = w.DeleteDocument(ctx, nil, types.DeleteDocumentInput{Document: "draft"})
	assert.True(t, res.IsError)
}

func TestReadOnlyStore(t *testing.T) {
	dir := t.TempDir()
	rw := vault.New(dir)
	require.NoError(t, rw.Load())
	_, err := rw.ImportMarkdown(context.Background(), "paper", paperMarkdown)
	require.NoError(t, err)

	ro := vault.New(dir, vault.WithReadOnly())
	require.NoError(t, ro.Load())

	res, _, err := NewWrite(ro, nil).UpdateElement(context.Background(), nil, types.UpdateElementInput{
		Document: "paper", ElementID: "sec-methods", Content: "# M",
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "read-only")
}

func TestImportMarkdownGeneric(t *testing.T) {
	store := plainStore{newVault(t)}
	w := NewWrite(store, nil)
	ctx := context.Background()

	res, _, err := w.ImportMarkdown(ctx, nil, types.ImportMarkdownInput{Document: "notes", Markdown: "# Results\n\nFine.\n"})
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	assert.Contains(t, resultText(t, res), "Imported 2 elements into notes")

	nav := NewNavigate(store, 0)
	res, _, _ = nav.GetMarkdown(ctx, nil, types.GetMarkdownInput{Document: "notes"})
	assert.Equal(t, "# Results\n\nFine.", resultText(t, res))

	res, _, _ = nav.GetMarkdown(ctx, nil, types.GetMarkdownInput{Document: "notes", EmbedIDs: true})
	assert.True(t, res.IsError)

	doc, err := store.GetDocument(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, "Results", doc.Title)
}

func TestGetMarkdownWithEmbeddedIDs(t *testing.T) {
	nav := NewNavigate(seededVault(t), 0)
	res, _, err := nav.GetMarkdown(context.Background(), nil, types.GetMarkdownInput{Document: "paper", EmbedIDs: true})
	require.NoError(t, err)
	out := resultText(t, res)
	assert.Contains(t, out, "<!-- id: ")
	assert.Contains(t, out, "We measure.")
}

func TestSearchIndexed(t *testing.T) {
	s := NewSearch(seededVault(t))
	res, _, err := s.Search(context.Background(), nil, types.SearchInput{Query: "measure"})
	require.NoError(t, err)
	out := resultJSON(t, res)
	results := out["results"].([]any)
	require.Len(t, results, 1)
	hit := results[0].(map[string]any)
	assert.Equal(t, "para-1", hit["displayId"])
	assert.Equal(t, []any{"Methods"}, hit["sectionPath"])
}

func TestSearchScanFallback(t *testing.T) {
	s := NewSearch(plainStore{seededVault(t)})
	ctx := context.Background()

	res, _, err := s.Search(ctx, nil, types.SearchInput{Query: "MEASURE"})
	require.NoError(t, err)
	out := resultJSON(t, res)
	results := out["results"].([]any)
	require.Len(t, results, 1)
	hit := results[0].(map[string]any)
	assert.Equal(t, "paper", hit["document"])
	assert.Equal(t, []any{"Methods"}, hit["sectionPath"])

	res, _, _ = s.Search(ctx, nil, types.SearchInput{Query: "measure quantum"})
	assert.Contains(t, resultText(t, res), "No results found")

	res, _, _ = s.Search(ctx, nil, types.SearchInput{Query: "  "})
	assert.True(t, res.IsError)
}

func TestDocumentOverview(t *testing.T) {
	a := NewAnalyze(seededVault(t))
	ctx := context.Background()

	res, _, err := a.DocumentOverview(ctx, nil, types.DocumentOverviewInput{Document: "paper"})
	require.NoError(t, err)
	out := resultJSON(t, res)
	stats := out["stats"].(map[string]any)
	assert.EqualValues(t, 4, stats["elements"])
	assert.EqualValues(t, 2, stats["roots"])
	assert.EqualValues(t, 2, stats["maxDepth"])
	assert.Equal(t, "Introduction", out["title"])

	res, _, _ = a.DocumentOverview(ctx, nil, types.DocumentOverviewInput{})
	all := resultJSON(t, res)
	assert.EqualValues(t, 1, all["documents"])
}

func TestMutateRetriesVersionConflicts(t *testing.T) {
	ctx := context.Background()
	calls := 0
	edit := func(tree *doctree.Tree) error {
		calls++
		id, err := resolveElement(tree, "para-1")
		if err != nil {
			return err
		}
		return tree.UpdateContent(id, "LLMs are huge.", nil)
	}

	store := &conflictStore{Store: seededVault(t), n: maxSaveAttempts - 1}
	saved, _, err := mutate(ctx, store, "paper", nil, edit)
	require.NoError(t, err)
	assert.Equal(t, maxSaveAttempts, calls)
	assert.Equal(t, 3, saved.Version)

	store = &conflictStore{Store: seededVault(t), n: maxSaveAttempts}
	_, _, err = mutate(ctx, store, "paper", nil, edit)
	assert.ErrorIs(t, err, backend.ErrVersionConflict)
}
