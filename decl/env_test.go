package decl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvLetForbidsShadowing(t *testing.T) {
	root := NewEnv[int](nil)
	require.NoError(t, root.Let("x", 1))
	child := root.Push()
	assert.Error(t, child.Let("x", 2))
	require.NoError(t, child.Let("y", 2))
	assert.False(t, root.Has("y"))
	assert.True(t, child.HasLocal("y"))
	assert.False(t, child.HasLocal("x"))
}

func TestEnvAssignUpdatesNearest(t *testing.T) {
	root := NewEnv[int](nil)
	root.Set("x", 1)
	child := root.Push().Push()
	require.NoError(t, child.Assign("x", 5))
	x, ok := root.Get("x")
	assert.True(t, ok)
	assert.Equal(t, 5, x)

	assert.Error(t, child.Assign("missing", 0))
	_, ok = child.Get("missing")
	assert.False(t, ok)
}

func TestSlotSeesLaterAssignments(t *testing.T) {
	root := NewEnv[int](nil)
	root.Set("k", 10)
	slot := root.Push().GetSlot("k")
	require.NotNil(t, slot)
	require.NoError(t, root.Assign("k", 100))
	assert.Equal(t, 100, slot.Value)
	assert.Nil(t, root.GetSlot("missing"))
}

func TestEnvExtend(t *testing.T) {
	root := NewEnv[string](nil)
	root.Set("a", "1")
	ext := root.Extend(map[string]string{"b": "2", "c": "3"})
	assert.Equal(t, []string{"b", "c"}, ext.Keys())
	assert.Same(t, root, ext.Outer())
	assert.Equal(t, map[string]string{"a": "1"}, root.All())
}
