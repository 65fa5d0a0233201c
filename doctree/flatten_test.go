package doctree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

func sampleDoc() []types.Element {
	return []types.Element{
		section("s1", "Introduction", ""),
		para("p1", "Large language models are widely used.", "s1"),
		para("p2", "This paper studies them.", "s1"),
		{ID: "s2", Type: types.TypeSection, Content: "## Related Work (2024)"},
		para("p3", "Prior art.", "s2"),
		{ID: "s3", Type: types.TypeSection, Content: "no heading here"},
		{ID: "ss1", Type: types.TypeSubsection, Content: "### Details", ParentID: "s3"},
		{ID: "t1", Type: types.TypeTable, Content: "| a |", ParentID: "ss1"},
		{ID: "c1", Type: types.TypeCodeBlock, Content: "```\nx\n```", ParentID: "ss1"},
		{ID: "i1", Type: types.TypeImage, Content: "![fig](fig.png)", ParentID: "ss1"},
		{ID: "l1", Type: types.TypeList, Content: "- a", ParentID: "ss1"},
		{ID: "q1", Type: types.TypeBlockquote, Content: "> q", ParentID: "ss1"},
		{ID: "x1", Type: "equation", Content: "$x$", ParentID: "ss1"},
	}
}

func TestRegenerateDisplayIDs(t *testing.T) {
	tree := Build(sampleDoc())
	tree.RegenerateDisplayIDs()

	want := map[string]string{
		"s1":  "sec-introduction",
		"p1":  "para-1",
		"p2":  "para-2",
		"s2":  "sec-related-work-2024",
		"p3":  "para-1",
		"s3":  "sec-1",
		"ss1": "subsec-1",
		"t1":  "table-1",
		"c1":  "code-1",
		"i1":  "img-1",
		"l1":  "list-1",
		"q1":  "quote-1",
		"x1":  "elem-1",
	}
	for id, display := range want {
		assert.Equal(t, display, tree.Elements[id].DisplayID, "element %s", id)
	}
}

func TestResolveDisplayIDFirstMatchWins(t *testing.T) {
	tree := Build(sampleDoc())

	id, ok := tree.ResolveDisplayID("para-1")
	require.True(t, ok)
	assert.Equal(t, "p1", id)

	_, ok = tree.ResolveDisplayID("para-9")
	assert.False(t, ok)

	_, ok = tree.ResolveDisplayID("")
	assert.False(t, ok)
}

func TestDisplayIDsFollowShape(t *testing.T) {
	tree := Build(sampleDoc())
	tree.RegenerateDisplayIDs()
	assert.Equal(t, "para-2", tree.Elements["p2"].DisplayID)

	_, err := tree.Remove("p1")
	require.NoError(t, err)
	tree.RegenerateDisplayIDs()
	assert.Equal(t, "para-1", tree.Elements["p2"].DisplayID)
}

func TestFlattenParentsBeforeChildren(t *testing.T) {
	out := Build(sampleDoc()).Flatten()

	pos := make(map[string]int, len(out))
	for i, e := range out {
		pos[e.ID] = i
	}
	for _, e := range out {
		if e.ParentID != "" {
			assert.Less(t, pos[e.ParentID], pos[e.ID], "%s before %s", e.ParentID, e.ID)
		}
		assert.NotEmpty(t, e.DisplayID)
	}
}

func TestToMarkdown(t *testing.T) {
	tree := Build([]types.Element{
		section("s1", "Intro", ""),
		para("p1", "First.\n", "s1"),
		para("p2", "   ", "s1"),
		section("s2", "End", ""),
	})

	assert.Equal(t, "## Intro\n\nFirst.\n\n## End", tree.ToMarkdown())
	assert.Equal(t, "", Build(nil).ToMarkdown())
}

func TestSummary(t *testing.T) {
	summary := Build(sampleDoc()).Summary(0)
	lines := strings.Split(summary, "\n")

	require.Len(t, lines, 13)
	assert.Equal(t, `[sec-introduction] section - "Introduction"`, lines[0])
	assert.Equal(t, `  [para-1] paragraph - "Large language models are widely used."`, lines[1])
	assert.Equal(t, `[sec-1] section - "no heading here"`, lines[5])
	assert.Equal(t, `    [table-1] table - "| a |"`, lines[7])
}

func TestSummaryDepthCap(t *testing.T) {
	summary := Build(sampleDoc()).Summary(1)

	assert.Contains(t, summary, "  [subsec-1] subsection")
	assert.Contains(t, summary, "max depth reached")
	assert.NotContains(t, summary, "[table-1]")
}

func TestSummaryEmpty(t *testing.T) {
	assert.Equal(t, "(empty document)", Build(nil).Summary(5))
}

func TestSummaryTruncatesLongContent(t *testing.T) {
	long := strings.Repeat("word ", 40)
	summary := Build([]types.Element{para("p", long, "")}).Summary(3)
	assert.Contains(t, summary, `..."`)
}

func TestRemoveDropsDescendants(t *testing.T) {
	tree := Build(sampleDoc())

	removed, err := tree.Remove("s3")
	require.NoError(t, err)
	assert.Equal(t, []string{"s3", "ss1", "t1", "c1", "i1", "l1", "q1", "x1"}, removed)
	assert.Len(t, tree.Elements, 5)
	assert.Equal(t, []string{"s1", "s2"}, ids(tree.Roots))

	_, err = tree.Remove("s3")
	assert.ErrorIs(t, err, ErrElementNotFound)
}

func TestUpdateContent(t *testing.T) {
	tree := Build(sampleDoc())

	require.NoError(t, tree.UpdateContent("s1", "## Overview", map[string]any{"title": "Overview"}))
	n := tree.Find("s1")
	assert.Equal(t, "## Overview", n.Content)
	assert.Equal(t, "Overview", n.Title())
	assert.Equal(t, 2, n.Metadata["level"])

	assert.ErrorIs(t, tree.UpdateContent("nope", "", nil), ErrElementNotFound)
}

func TestAncestors(t *testing.T) {
	tree := Build(sampleDoc())

	assert.Equal(t, []string{"s3", "ss1"}, ids(tree.Ancestors("t1")))
	assert.Empty(t, tree.Ancestors("s1"))
	assert.Nil(t, tree.Ancestors("missing"))
}

func TestStats(t *testing.T) {
	s := Build(sampleDoc()).Stats()

	assert.Equal(t, 13, s.Elements)
	assert.Equal(t, 3, s.Roots)
	assert.Equal(t, 3, s.MaxDepth)
	assert.Equal(t, 4, s.Containers)
	assert.Equal(t, 3, s.ByType["paragraph"])
}

func TestRenderAndSummarizeHelpers(t *testing.T) {
	flat := []types.Element{section("s1", "Intro", ""), para("p1", "Body.", "s1")}

	assert.Equal(t, "## Intro\n\nBody.", Render(flat))
	assert.Equal(t, "[sec-intro] section - \"Intro\"\n  [para-1] paragraph - \"Body.\"", Summarize(flat, 0))
}
