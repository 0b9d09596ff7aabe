package model_test

import (
	"testing"

	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetIn_CopyOnWrite(t *testing.T) {
	sibling := map[string]any{"keep": 1}
	before := map[string]any{
		"foo":     map[string]any{"bar": "old"},
		"sibling": sibling,
	}

	after := model.SetIn(before, model.Path{"foo", "bar"}, "new").(map[string]any)

	old, _ := model.GetIn(before, model.Path{"foo", "bar"})
	assert.Equal(t, "old", old)
	cur, ok := model.GetIn(after, model.Path{"foo", "bar"})
	require.True(t, ok)
	assert.Equal(t, "new", cur)

	assert.True(t, model.SameValue(sibling, after["sibling"]))
	assert.False(t, model.SameValue(before["foo"], after["foo"]))
}

func TestSetIn_CreatesIntermediateMaps(t *testing.T) {
	out := model.SetIn(nil, model.Path{"a", "b"}, 3)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 3}}, out)

	out = model.SetIn(map[string]any{"a": 1}, model.Path{"a", "b"}, 3)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 3}}, out)
}

func TestSetIn_RootReplaces(t *testing.T) {
	assert.Equal(t, "x", model.SetIn(map[string]any{"a": 1}, nil, "x"))
}

func TestGetIn_Missing(t *testing.T) {
	_, ok := model.GetIn(map[string]any{"a": 1}, model.Path{"a", "b"})
	assert.False(t, ok)
	_, ok = model.GetIn(map[string]any{}, model.Path{"x"})
	assert.False(t, ok)
	root, ok := model.GetIn(42, nil)
	assert.True(t, ok)
	assert.Equal(t, 42, root)
}

func TestSameValue(t *testing.T) {
	m := map[string]any{"a": 1}
	s := []any{1, 2}

	assert.True(t, model.SameValue(m, m))
	assert.False(t, model.SameValue(m, map[string]any{"a": 1}))
	assert.True(t, model.SameValue(s, s))
	assert.False(t, model.SameValue(s, s[:1]))
	assert.True(t, model.SameValue(3, 3))
	assert.False(t, model.SameValue(3, int64(3)))
	assert.True(t, model.SameValue(nil, nil))
	assert.False(t, model.SameValue(nil, 0))
}
