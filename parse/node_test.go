package parse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_Fields(t *testing.T) {
	tree, err := newExprParser(t).Parse(context.Background(), []byte("let x = (1 + y);"))
	require.NoError(t, err)

	stmt := tree.Root().NamedChild(0)
	require.Equal(t, "let_statement", stmt.Kind())

	name, ok := stmt.ChildByFieldName("name")
	require.True(t, ok)
	assert.Equal(t, "x", name.Text())
	assert.Equal(t, "identifier", name.Kind())

	value, ok := stmt.ChildByFieldName("value")
	require.True(t, ok)
	assert.Equal(t, "parenthesized_expression", value.Kind())
	assert.Equal(t, "(1 + y)", value.Text())
	assert.Equal(t, []string{"_expression"}, value.Supertypes())

	_, ok = stmt.ChildByFieldName("left")
	assert.False(t, ok)
	_, ok = stmt.ChildByFieldName("nonsense")
	assert.False(t, ok)

	var labels []string
	for i := range stmt.ChildCount() {
		labels = append(labels, stmt.FieldNameForChild(i))
	}
	assert.Equal(t, []string{"", "", "name", "", "", "", "value"}, labels)
}

func TestCursor_Walk(t *testing.T) {
	tree, err := newExprParser(t).Parse(context.Background(), []byte("1 + 2;"))
	require.NoError(t, err)

	c := tree.Walk()
	assert.Equal(t, "program", c.Node().Kind())
	assert.False(t, c.GotoParent())
	assert.False(t, c.GotoNextSibling())

	require.True(t, c.GotoFirstChild())
	assert.Equal(t, "binary_expression", c.Node().Kind())
	assert.Equal(t, 1, c.Depth())

	require.True(t, c.GotoFirstChild())
	assert.Equal(t, "left", c.FieldName())
	assert.Equal(t, "1", c.Node().Text())

	var kinds []string
	for c.GotoNextSibling() {
		kinds = append(kinds, c.Node().Kind())
	}
	assert.Equal(t, []string{"whitespace", "+", "whitespace", "number"}, kinds)
	assert.Equal(t, "right", c.FieldName())
	assert.Equal(t, 4, c.Node().StartByte())

	require.True(t, c.GotoPreviousSibling())
	assert.Equal(t, 3, c.Node().StartByte())
	require.True(t, c.GotoParent())
	require.True(t, c.GotoLastChild())
	assert.Equal(t, "2", c.Node().Text())

	c.Reset(tree.Root())
	require.True(t, c.GotoFirstChildForByte(5))
	assert.Equal(t, ";", c.Node().Kind())
}

func TestTree_Positions(t *testing.T) {
	tree, err := newExprParser(t).Parse(context.Background(), []byte("1;\n  let ab = 2;\n"))
	require.NoError(t, err)

	tests := []struct {
		offset int
		want   Point
	}{
		{0, Point{0, 0}},
		{2, Point{0, 2}},
		{3, Point{1, 0}},
		{9, Point{1, 6}},
		{17, Point{2, 0}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tree.Point(tt.offset), "offset %d", tt.offset)
		assert.Equal(t, tt.offset, tree.Offset(tt.want))
	}

	ab := tree.Root().DescendantForRange(9, 10)
	assert.Equal(t, "identifier", ab.Kind())
	assert.Equal(t, "ab", ab.Text())
	assert.Equal(t, Point{1, 6}, ab.Position())
}

func TestCursor_FieldChildren(t *testing.T) {
	tree, err := newExprParser(t).Parse(context.Background(), []byte("let x = 1 * 2;"))
	require.NoError(t, err)

	c := tree.Root().NamedChild(0).Walk()
	var fields []string
	for ok := c.GotoFirstFieldChild(); ok; ok = c.GotoNextFieldChild() {
		fields = append(fields, c.FieldName()+"="+c.Node().Text())
	}
	assert.Equal(t, []string{"name=x", "value=1 * 2"}, fields)
	assert.Equal(t, 8, c.StartByte())
	assert.Equal(t, 13, c.EndByte())

	value, _ := tree.Root().NamedChild(0).ChildByFieldName("value")
	assert.True(t, value.HasSupertype("_expression"))
	assert.False(t, value.HasSupertype("_statement"))
}
