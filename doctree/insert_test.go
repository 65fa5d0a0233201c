package doctree

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

func introTree(t *testing.T) *Tree {
	t.Helper()
	return Build([]types.Element{
		{ID: "A", Type: types.TypeSection, Metadata: map[string]any{"title": "Introduction"}},
	}, WithIDGenerator(seqIDs("new")))
}

func TestInsertIntoBeginning(t *testing.T) {
	tree := introTree(t)

	res, err := tree.Insert([]types.Element{
		{ID: "para-x", Type: types.TypeParagraph, Content: "Foo."},
	}, types.Directive{Strategy: types.InsertInto, TargetID: "sec-introduction", Position: types.PositionBeginning})
	require.NoError(t, err)

	assert.Equal(t, "A", res.TargetID)
	assert.False(t, res.Fallback)

	out := tree.Flatten()
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].ID)
	assert.Equal(t, types.TypeSection, out[0].Type)
	assert.Equal(t, "A", out[1].ParentID)
	assert.Equal(t, "Foo.", out[1].Content)
	assert.Equal(t, out[1].ID, tree.Elements["A"].Children[0].ID)
}

func TestInsertIntoBeginningKeepsOrder(t *testing.T) {
	tree := introTree(t)
	_, err := tree.Insert([]types.Element{para("p-old", "old", "")},
		types.Directive{Strategy: types.InsertInto, TargetID: "sec-introduction"})
	require.NoError(t, err)

	_, err = tree.Insert([]types.Element{
		para("p1", "one", ""),
		para("p2", "two", ""),
	}, types.Directive{Strategy: types.InsertInto, TargetID: "sec-introduction", Position: types.PositionBeginning})
	require.NoError(t, err)

	var contents []string
	for _, c := range tree.Elements["A"].Children {
		contents = append(contents, c.Content)
	}
	assert.Equal(t, []string{"one", "two", "old"}, contents)
}

func TestInsertAfterRootSection(t *testing.T) {
	tree := introTree(t)

	_, err := tree.Insert([]types.Element{
		{ID: "sec-x", Type: types.TypeSection, Content: "## Methods", Metadata: map[string]any{"title": "Methods"}},
	}, types.Directive{Strategy: types.InsertAfter, TargetID: "sec-introduction"})
	require.NoError(t, err)

	require.Len(t, tree.Roots, 2)
	assert.Equal(t, "A", tree.Roots[0].ID)
	methods := tree.Roots[1]
	assert.Equal(t, "Methods", methods.Title())
	assert.Equal(t, "", methods.ParentID)
}

func TestInsertUnresolvedTargetFallsBackToEnd(t *testing.T) {
	tree := introTree(t)

	res, err := tree.Insert([]types.Element{
		para("para-1", "Lost?", ""),
	}, types.Directive{Strategy: types.InsertInto, TargetID: "sec-nonexistent"})
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.Equal(t, types.InsertAtEnd, res.Strategy)
	require.Len(t, tree.Roots, 2)
	assert.Equal(t, "Lost?", tree.Roots[1].Content)
	assert.Contains(t, warningKinds(res.Warnings), WarnTargetUnresolved)
}

func TestInsertAfterPreservesBatchOrder(t *testing.T) {
	tree := Build([]types.Element{
		section("s1", "Intro", ""),
		para("p1", "a", "s1"),
		para("p2", "d", "s1"),
	}, WithIDGenerator(seqIDs("new")))

	_, err := tree.Insert([]types.Element{
		para("x", "b", ""),
		para("y", "c", ""),
	}, types.Directive{Strategy: types.InsertAfter, TargetID: "para-1"})
	require.NoError(t, err)

	var contents []string
	for _, c := range tree.Elements["s1"].Children {
		contents = append(contents, c.Content)
		assert.Equal(t, "s1", c.ParentID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, contents)
}

func TestInsertBefore(t *testing.T) {
	tree := Build([]types.Element{
		section("s1", "Intro", ""),
		section("s2", "Results", ""),
	}, WithIDGenerator(seqIDs("new")))

	_, err := tree.Insert([]types.Element{
		section("sec-m", "Methods", ""),
		para("para-m", "We measured.", "sec-m"),
	}, types.Directive{Strategy: types.InsertBefore, TargetID: "sec-results"})
	require.NoError(t, err)

	require.Len(t, tree.Roots, 3)
	methods := tree.Roots[1]
	assert.Equal(t, "Methods", methods.Title())
	require.Len(t, methods.Children, 1)
	assert.Equal(t, "We measured.", methods.Children[0].Content)
	assert.Equal(t, methods.ID, methods.Children[0].ParentID)
}

func TestInsertIntoUnwrapsRedundantSection(t *testing.T) {
	tree := Build([]types.Element{
		section("s1", "Introduction", ""),
		para("p-old", "existing", "s1"),
	}, WithIDGenerator(seqIDs("new")))

	res, err := tree.Insert([]types.Element{
		section("sec-1", "Introduction", ""),
		para("para-1", "first", "sec-1"),
		para("para-2", "second", "sec-1"),
	}, types.Directive{Strategy: types.InsertInto, TargetID: "sec-introduction", Position: types.PositionEnd})
	require.NoError(t, err)

	children := tree.Elements["s1"].Children
	require.Len(t, children, 3)
	for _, c := range children {
		assert.Equal(t, types.TypeParagraph, c.Type, "no nested section wrapper")
		assert.Equal(t, "s1", c.ParentID)
	}
	assert.Equal(t, "first", children[1].Content)
	assert.Equal(t, "second", children[2].Content)
	assert.Len(t, res.Unwrapped, 1)
	assert.Len(t, tree.Elements, 4, "wrapper is not part of the tree")
	assert.Contains(t, warningKinds(res.Warnings), WarnWrapperDropped)
}

func TestInsertIntoUnwrapsNestedWrappersAtBeginning(t *testing.T) {
	tree := Build([]types.Element{
		section("s1", "Introduction", ""),
		para("p-old", "existing", "s1"),
	}, WithIDGenerator(seqIDs("new")))

	_, err := tree.Insert([]types.Element{
		section("sec-1", "Introduction", ""),
		{ID: "subsec-1", Type: types.TypeSubsection, Content: "### Background", ParentID: "sec-1"},
		para("para-1", "first", "subsec-1"),
		para("para-2", "second", "sec-1"),
	}, types.Directive{Strategy: types.InsertInto, TargetID: "sec-introduction", Position: types.PositionBeginning})
	require.NoError(t, err)

	var contents []string
	for _, c := range tree.Elements["s1"].Children {
		contents = append(contents, c.Content)
	}
	assert.Equal(t, []string{"first", "second", "existing"}, contents)
}

func TestInsertIntoStripsChildlessWrapper(t *testing.T) {
	tree := introTree(t)

	res, err := tree.Insert([]types.Element{
		{ID: "sec-x", Type: types.TypeSection, Content: "## Introduction\n\nBody text."},
	}, types.Directive{Strategy: types.InsertInto, TargetID: "sec-introduction"})
	require.NoError(t, err)

	children := tree.Elements["A"].Children
	require.Len(t, children, 1)
	assert.Equal(t, types.TypeParagraph, children[0].Type, "no nested section wrapper")
	assert.Equal(t, "Body text.", children[0].Content)
	assert.Equal(t, []string{children[0].ID}, res.Inserted)
	assert.Len(t, res.Unwrapped, 1)
	assert.Contains(t, warningKinds(res.Warnings), WarnWrapperDropped)

	var sections int
	for _, e := range tree.Flatten() {
		if e.DisplayID == "sec-introduction" {
			sections++
		}
	}
	assert.Equal(t, 1, sections, "display id stays unambiguous")
}

func TestInsertIntoDropsEmptyWrapper(t *testing.T) {
	tree := introTree(t)

	res, err := tree.Insert([]types.Element{
		section("sec-1", "Scope", ""),
	}, types.Directive{Strategy: types.InsertInto, TargetID: "sec-introduction"})
	require.NoError(t, err)

	assert.Empty(t, tree.Elements["A"].Children)
	assert.Empty(t, res.Inserted)
	assert.Len(t, res.Unwrapped, 1)
	assert.Contains(t, warningKinds(res.Warnings), WarnWrapperDropped)
}

func TestInsertUnderExistingParentKeepsNewChildren(t *testing.T) {
	u := uuid.NewString()
	tree := Build([]types.Element{section(u, "Introduction", "")}, WithIDGenerator(seqIDs("new")))

	res, err := tree.Insert([]types.Element{
		section(u, "Introduction", ""),
		para("para-new", "NEW CONTENT", u),
	}, types.Directive{Strategy: types.InsertAtEnd})
	require.NoError(t, err)

	assert.Equal(t, []string{u}, res.Skipped)
	require.Len(t, res.Inserted, 1)
	require.Len(t, tree.Roots, 1)
	children := tree.Elements[u].Children
	require.Len(t, children, 1)
	assert.Equal(t, "NEW CONTENT", children[0].Content)
	assert.Equal(t, u, children[0].ParentID)
	assert.Equal(t, res.Inserted[0], children[0].ID)
}

func TestInsertAtEndKeepsNestedSections(t *testing.T) {
	tree := introTree(t)

	_, err := tree.Insert([]types.Element{
		section("sec-1", "Methods", ""),
		{ID: "subsec-1", Type: types.TypeSubsection, Content: "### Setup", ParentID: "sec-1"},
		para("para-1", "Hardware.", "subsec-1"),
	}, types.Directive{Strategy: types.InsertAtEnd})
	require.NoError(t, err)

	require.Len(t, tree.Roots, 2)
	methods := tree.Roots[1]
	require.Len(t, methods.Children, 1)
	setup := methods.Children[0]
	assert.Equal(t, types.TypeSubsection, setup.Type)
	require.Len(t, setup.Children, 1)
	assert.Equal(t, "Hardware.", setup.Children[0].Content)
}

func TestInsertIsIdempotentForDurableIDs(t *testing.T) {
	base := []types.Element{section("s1", "Introduction", "")}
	id := uuid.NewString()
	newEls := []types.Element{para(id, "Once.", "")}
	d := types.Directive{Strategy: types.InsertInto, TargetID: "sec-introduction"}

	first, res, err := InsertFlat(base, newEls, d)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, res.Inserted)

	second, res, err := InsertFlat(first, newEls, d)
	require.NoError(t, err)
	assert.Empty(t, res.Inserted)
	assert.Equal(t, []string{id}, res.Skipped)
	assert.Equal(t, flatIDs(first), flatIDs(second))
}

func TestInsertTwiceWithLabelsYieldsDistinctIDs(t *testing.T) {
	base := []types.Element{section("s1", "Introduction", "")}
	newEls := []types.Element{para("para-1", "Again.", "")}
	d := types.Directive{Strategy: types.InsertInto, TargetID: "sec-introduction"}

	first, _, err := InsertFlat(base, newEls, d)
	require.NoError(t, err)
	second, _, err := InsertFlat(first, newEls, d)
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, e := range second {
		seen[e.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "id %s", id)
	}
	assert.Len(t, second, 3)
}

func TestInsertIntoNonContainerWarns(t *testing.T) {
	tree := Build([]types.Element{
		section("s1", "Intro", ""),
		para("p1", "host", "s1"),
	}, WithIDGenerator(seqIDs("new")))

	res, err := tree.Insert([]types.Element{para("para-9", "guest", "")},
		types.Directive{Strategy: types.InsertInto, TargetID: "para-1"})
	require.NoError(t, err)

	assert.Contains(t, warningKinds(res.Warnings), WarnNotContainer)
	require.Len(t, tree.Elements["p1"].Children, 1)
	assert.Equal(t, "guest", tree.Elements["p1"].Children[0].Content)
}

func TestInsertResolvesImmutableTarget(t *testing.T) {
	tree := introTree(t)

	res, err := tree.Insert([]types.Element{para("para-1", "x", "")},
		types.Directive{Strategy: types.InsertInto, TargetID: "A"})
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, "A", res.TargetID)
}

func TestInsertRejectsInvalidDirective(t *testing.T) {
	tests := []types.Directive{
		{Strategy: "insert_sideways"},
		{Strategy: ""},
		{Strategy: types.InsertInto, TargetID: "sec-introduction", Position: "middle"},
	}
	for _, d := range tests {
		tree := introTree(t)
		_, err := tree.Insert([]types.Element{para("para-1", "x", "")}, d)
		assert.True(t, errors.Is(err, ErrInvalidDirective), "%+v", d)
		assert.Len(t, tree.Elements, 1, "tree untouched")
	}
}

func TestEnsureUniqueIDs(t *testing.T) {
	tree := Build([]types.Element{para("new-1", "taken", "")}, WithIDGenerator(seqIDs("new")))

	out := tree.EnsureUniqueIDs([]types.Element{
		section("sec-1", "Methods", ""),
		para("para-1", "child", "sec-1"),
		para("para-1", "same label", "sec-1"),
	})

	require.Len(t, out, 3)
	assert.Equal(t, "new-2", out[0].ID, "collision with an existing id is skipped")
	assert.Equal(t, "new-3", out[1].ID)
	assert.Equal(t, "new-4", out[2].ID)
	assert.Equal(t, "sec-1", out[0].DisplayID)
	assert.Equal(t, "para-1", out[1].DisplayID)
	assert.Equal(t, "new-2", out[1].ParentID)
	assert.Equal(t, "new-2", out[2].ParentID)
}

func TestEnsureUniqueIDsKeepsDurableIDs(t *testing.T) {
	tree := introTree(t)
	id := uuid.NewString()

	out := tree.EnsureUniqueIDs([]types.Element{
		para(id, "durable", ""),
		para("para-1", "child of durable", id),
	})

	assert.Equal(t, id, out[0].ID)
	assert.Equal(t, id, out[1].ParentID)
}

func TestMove(t *testing.T) {
	tree := Build([]types.Element{
		section("s1", "Intro", ""),
		para("p1", "a", "s1"),
		section("s2", "Results", ""),
		para("p2", "b", "s2"),
	})

	res, err := tree.Move("s2", types.Directive{Strategy: types.InsertBefore, TargetID: "sec-intro"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "p2"}, res.Inserted)
	assert.Equal(t, []string{"s2", "s1"}, ids(tree.Roots))
	assert.Equal(t, []string{"p2"}, ids(tree.Elements["s2"].Children))
	assert.Len(t, tree.Elements, 4)
}

func TestMoveIntoOwnDescendantRefused(t *testing.T) {
	tree := Build([]types.Element{
		section("s1", "Intro", ""),
		{ID: "ss1", Type: types.TypeSubsection, ParentID: "s1"},
	})

	res, err := tree.Move("s1", types.Directive{Strategy: types.InsertInto, TargetID: "ss1"})
	require.NoError(t, err)
	assert.Contains(t, warningKinds(res.Warnings), WarnInvalidMove)
	assert.Equal(t, []string{"s1"}, ids(tree.Roots))
	assert.Equal(t, []string{"ss1"}, ids(tree.Elements["s1"].Children))
}

func TestCustomTypeMetadataWarning(t *testing.T) {
	tree := Build([]types.Element{section("s1", "Intro", "")},
		WithCustomTypes(types.CustomType{Name: "equation", Prefix: "eq", MetadataKeys: []string{"latex"}}))

	res, err := tree.Insert([]types.Element{
		{ID: "eq-1", Type: "equation", Content: "$E=mc^2$"},
	}, types.Directive{Strategy: types.InsertInto, TargetID: "sec-intro"})
	require.NoError(t, err)
	assert.Contains(t, warningKinds(res.Warnings), WarnCustomMetadata)

	out := tree.Flatten()
	assert.Equal(t, "eq-1", out[1].DisplayID)
}
