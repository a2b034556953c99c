package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/x12-parser/internal/types"
)

func record(index int, id string, fields ...types.Field) *types.Record {
	elements := make([]string, len(fields))
	for i, f := range fields {
		f.Position = i + 1
		fields[i] = f
		elements[i] = f.Value
	}
	return types.NewRecord(types.RawSegment{Index: index, ID: id, Elements: elements}, id, fields)
}

func hl(index int, id, parent, level string) *types.Record {
	return record(index, "HL",
		types.Field{Name: FieldHierarchicalID, Value: id},
		types.Field{Name: FieldHierarchicalParentID, Value: parent},
		types.Field{Name: FieldHierarchicalLevel, Value: level},
		types.Field{Name: FieldHierarchicalChild, Value: "1"},
	)
}

func seg(index int, id string) *types.Record {
	return record(index, id)
}

func newContext() *Context {
	tree := NewTree("270", "0001", "005010X279A1", types.DefaultDelimiters())
	return NewContext(tree, NewEnvelopeStack())
}

func TestOpenHierarchy_ParentChild(t *testing.T) {
	ctx := newContext()

	root, err := ctx.OpenHierarchy(hl(4, "1", "", "20"), "2000A")
	require.NoError(t, err)
	child, err := ctx.OpenHierarchy(hl(5, "2", "1", "21"), "2000B")
	require.NoError(t, err)

	tree := ctx.Tree()
	require.Len(t, tree.Hierarchy, 1)
	assert.Same(t, root, tree.Hierarchy[0])
	require.Len(t, root.Children, 1)
	assert.Same(t, child, root.Children[0])
	assert.Same(t, root, child.Parent)
	assert.Equal(t, 1, child.Depth())

	assert.Same(t, root.Loop, child.Loop.Parent)
	assert.Equal(t, "2000A/2000B", ctx.LoopPath())
	assert.Equal(t, []string{"1", "2"}, ctx.HierarchyPath())
}

func TestOpenHierarchy_SiblingPopsStack(t *testing.T) {
	ctx := newContext()
	steps := []struct {
		id, parent, level, loop string
		wantPath                []string
	}{
		{"1", "", "20", "2000A", []string{"1"}},
		{"2", "1", "21", "2000B", []string{"1", "2"}},
		{"3", "2", "22", "2000C", []string{"1", "2", "3"}},
		{"4", "3", "23", "2000D", []string{"1", "2", "3", "4"}},
		{"5", "2", "22", "2000C", []string{"1", "2", "5"}},
		{"6", "1", "21", "2000B", []string{"1", "6"}},
	}
	for i, s := range steps {
		_, err := ctx.OpenHierarchy(hl(i+4, s.id, s.parent, s.level), s.loop)
		require.NoError(t, err, "HL %s", s.id)
		assert.Equal(t, s.wantPath, ctx.HierarchyPath(), "after HL %s", s.id)
	}

	source := ctx.Tree().Hierarchy[0]
	require.Len(t, source.Children, 2)
	assert.Equal(t, "2", source.Children[0].ID)
	assert.Equal(t, "6", source.Children[1].ID)
	assert.Len(t, source.Children[0].Children, 2)
	assert.Len(t, ctx.Tree().FindLoops("2000C"), 2)
}

func TestOpenHierarchy_NewRootResetsStack(t *testing.T) {
	ctx := newContext()
	_, err := ctx.OpenHierarchy(hl(4, "1", "", "20"), "2000A")
	require.NoError(t, err)
	_, err = ctx.OpenHierarchy(hl(5, "2", "1", "21"), "2000B")
	require.NoError(t, err)

	_, err = ctx.OpenHierarchy(hl(6, "3", "", "20"), "2000A")
	require.NoError(t, err)

	assert.Equal(t, []string{"3"}, ctx.HierarchyPath())
	assert.Len(t, ctx.Tree().Hierarchy, 2)
}

func TestOpenHierarchy_Orphan(t *testing.T) {
	ctx := newContext()
	_, err := ctx.OpenHierarchy(hl(4, "1", "", "20"), "2000A")
	require.NoError(t, err)
	_, err = ctx.OpenHierarchy(hl(5, "2", "1", "21"), "2000B")
	require.NoError(t, err)

	_, err = ctx.OpenHierarchy(hl(6, "3", "9", "22"), "2000C")

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrOrphanedHierarchyLoop)
	assert.Equal(t, []string{"1", "2"}, ctx.HierarchyPath(), "stack unchanged")
	assert.Equal(t, "2000A/2000B", ctx.LoopPath(), "cursor unchanged")
}

func TestOpenHierarchy_ClosedParentIsOrphan(t *testing.T) {
	ctx := newContext()
	for i, s := range [][3]string{{"1", "", "20"}, {"2", "1", "21"}, {"3", "2", "22"}, {"4", "1", "21"}} {
		_, err := ctx.OpenHierarchy(hl(i+4, s[0], s[1], s[2]), "L"+s[2])
		require.NoError(t, err)
	}

	// HL 2 was popped by HL 4, so it can no longer be a parent.
	_, err := ctx.OpenHierarchy(hl(8, "5", "2", "22"), "L22")
	assert.ErrorIs(t, err, types.ErrOrphanedHierarchyLoop)
}

func TestOpenHierarchy_Duplicate(t *testing.T) {
	ctx := newContext()
	_, err := ctx.OpenHierarchy(hl(4, "1", "", "20"), "2000A")
	require.NoError(t, err)

	_, err = ctx.OpenHierarchy(hl(5, "1", "", "20"), "2000A")
	assert.ErrorIs(t, err, types.ErrDuplicateHierarchyID)
}

func TestOpenHierarchy_EmptyID(t *testing.T) {
	_, err := newContext().OpenHierarchy(hl(4, "", "", "20"), "2000A")
	assert.ErrorIs(t, err, types.ErrField)
}

func TestOpenLoop(t *testing.T) {
	ctx := newContext()

	// Before any HL the loop nests under the transaction root.
	submitter, err := ctx.OpenLoop("1000A", seg(3, "NM1"))
	require.NoError(t, err)
	assert.Same(t, ctx.Tree().Root, submitter.Parent)

	_, err = ctx.OpenHierarchy(hl(4, "1", "", "22"), "2000C")
	require.NoError(t, err)

	name, err := ctx.OpenLoop("2100C", seg(5, "NM1"))
	require.NoError(t, err)
	assert.Equal(t, "2000C", name.Parent.Name)

	first, err := ctx.OpenLoop("2110C", seg(6, "EQ"), "2100C")
	require.NoError(t, err)
	second, err := ctx.OpenLoop("2110C", seg(7, "EQ"), "2100C")
	require.NoError(t, err)

	assert.Same(t, name, first.Parent)
	assert.Same(t, name, second.Parent)
	assert.Len(t, name.Instances("2110C"), 2)
	assert.Equal(t, "2000C/2100C/2110C", ctx.LoopPath())
}

func TestOpenLoop_Placement(t *testing.T) {
	ctx := newContext()

	_, err := ctx.OpenLoop("2110C", seg(6, "EQ"), "2100C")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrLoopPlacement)
	assert.True(t, ctx.InLoop(HeaderLoop))
}

func TestAscend(t *testing.T) {
	ctx := newContext()
	_, err := ctx.OpenHierarchy(hl(4, "1", "", "22"), "2000C")
	require.NoError(t, err)
	_, err = ctx.OpenLoop("2100C", seg(5, "NM1"))
	require.NoError(t, err)
	_, err = ctx.OpenLoop("2110C", seg(6, "EB"), "2100C")
	require.NoError(t, err)
	_, err = ctx.OpenLoop("2115C", seg(7, "III"), "2110C")
	require.NoError(t, err)

	assert.True(t, ctx.WithinLoop("2110C"))
	assert.False(t, ctx.InLoop("2110C"))

	_, err = ctx.Ascend("2110C")
	require.NoError(t, err)
	assert.True(t, ctx.InLoop("2110C"))

	_, err = ctx.Ascend("2115C")
	assert.ErrorIs(t, err, types.ErrLoopPlacement)
}

func TestClose(t *testing.T) {
	ctx := newContext()
	ctx.Attach(seg(3, "ST"))
	_, err := ctx.OpenHierarchy(hl(4, "1", "", "20"), "2000A")
	require.NoError(t, err)

	ctx.Close(seg(5, "SE"))

	tree := ctx.Tree()
	require.NotNil(t, tree.Footer())
	assert.Equal(t, "SE", tree.Footer().Segments[0].ID())
	assert.Nil(t, ctx.CurrentHierarchy())

	var ids []string
	for _, r := range tree.Records() {
		ids = append(ids, r.ID())
	}
	assert.Equal(t, []string{"ST", "HL", "SE"}, ids)
}

func TestMarkers(t *testing.T) {
	ctx := newContext()

	assert.Equal(t, "", ctx.Marker("ls"))
	ctx.SetMarker("ls", "2110C")
	assert.Equal(t, "2110C", ctx.Marker("ls"))
	ctx.SetMarker("ls", "")
	assert.Equal(t, "", ctx.Marker("ls"))
}

func TestAnnotate(t *testing.T) {
	ctx := newContext()
	_, err := ctx.OpenHierarchy(hl(4, "1", "", "20"), "2000A")
	require.NoError(t, err)
	_, err = ctx.OpenHierarchy(hl(5, "2", "1", "21"), "2000B")
	require.NoError(t, err)

	pe := ctx.Annotate(types.Newf(types.KindNoMatchingRule, "no rule matches ZZ"), seg(6, "ZZ"))

	assert.Equal(t, types.KindNoMatchingRule, pe.Kind)
	assert.Equal(t, 6, pe.SegmentIndex)
	assert.Equal(t, "ZZ", pe.SegmentID)
	assert.Equal(t, "2000A/2000B", pe.LoopPath)
	assert.Equal(t, []string{"1", "2"}, pe.HierarchyPath)
	assert.Equal(t, "270", pe.TransactionSet)
	assert.Equal(t, "0001", pe.ControlNumber)
}

func TestAnnotate_KeepsExistingPosition(t *testing.T) {
	ctx := newContext()
	err := types.Newf(types.KindField, "bad").AtSegment(2, "BHT")

	pe := ctx.Annotate(err, seg(9, "HL"))

	assert.Equal(t, 2, pe.SegmentIndex)
	assert.Equal(t, "BHT", pe.SegmentID)
	assert.Equal(t, "header", pe.LoopPath)
	assert.Nil(t, pe.HierarchyPath)
}
