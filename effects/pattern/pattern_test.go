package pattern_test

import (
	"testing"

	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/pattern"
	"github.com/stretchr/testify/assert"
)

func TestIsMatch(t *testing.T) {
	inRange := pattern.Predicate(func(v any) bool {
		n, ok := v.(int)
		return ok && n >= 10 && n < 20
	})

	cases := []struct {
		name    string
		pattern any
		value   any
		want    bool
	}{
		{"string matches type", "inc", model.Action{Type: "inc"}, true},
		{"string mismatch", "inc", model.Action{Type: "dec"}, false},
		{"string against map", "inc", map[string]any{"type": "inc"}, true},
		{"string against scalar", "inc", "inc", false},
		{"object subset", map[string]any{"type": "add"}, model.Action{Type: "add", Payload: 1}, true},
		{"object key absent", map[string]any{"payload": 1}, model.Action{Type: "add"}, false},
		{"object strict equality", map[string]any{"payload": 1}, model.Action{Type: "add", Payload: 2}, false},
		{"predicate ok", map[string]any{"payload": inRange}, model.Action{Type: "x", Payload: 12}, true},
		{"predicate fails", map[string]any{"payload": inRange}, model.Action{Type: "x", Payload: 21}, false},
		{"plain func predicate", map[string]any{"type": func(v any) bool { return v == "x" }}, model.Action{Type: "x"}, true},
		{
			"nested object",
			map[string]any{"payload": map[string]any{"user": map[string]any{"id": 7}}},
			model.Action{Type: "x", Payload: map[string]any{"user": map[string]any{"id": 7, "name": "n"}}},
			true,
		},
		{
			"nested object mismatch",
			map[string]any{"payload": map[string]any{"user": map[string]any{"id": 7}}},
			model.Action{Type: "x", Payload: map[string]any{"user": map[string]any{"id": 8}}},
			false,
		},
		{
			"nested against scalar",
			map[string]any{"payload": map[string]any{"id": 1}},
			model.Action{Type: "x", Payload: 1},
			false,
		},
		{
			"routing metadata",
			map[string]any{"meta": map[string]any{"feedbacks": map[string]any{"isEffect": true}}},
			model.Action{Type: "x"}.WithRouting(model.Routing{IsEffect: true}),
			true,
		},
		{"empty object matches any object", map[string]any{}, model.Action{Type: "x"}, true},
		{"identity for scalars", 3, 3, true},
		{"identity mismatch", 3, "3", false},
		{"nil pattern", nil, nil, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pattern.IsMatch(tc.pattern, tc.value))
		})
	}
}

func TestIsMatch_IsPure(t *testing.T) {
	p := map[string]any{"type": "inc", "payload": map[string]any{"by": 2}}
	v := model.Action{Type: "inc", Payload: map[string]any{"by": 2}}

	first := pattern.IsMatch(p, v)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, pattern.IsMatch(p, v))
	}
	assert.True(t, first)
}

func TestIsMatch_ReferenceValuesCompareByIdentity(t *testing.T) {
	items := []any{1, 2}
	assert.True(t, pattern.IsMatch(map[string]any{"payload": items}, model.Action{Type: "x", Payload: items}))
	assert.False(t, pattern.IsMatch(map[string]any{"payload": items}, model.Action{Type: "x", Payload: []any{1, 2}}))
}

func TestIsMatch_NilEntryIsAbsent(t *testing.T) {
	value := map[string]any{"type": "x", "id": nil}
	assert.False(t, pattern.IsMatch(map[string]any{"id": nil}, value))
	assert.False(t, pattern.IsMatch(map[string]any{"id": func(any) bool { return true }}, value))
}

func TestIsMatch_NumbersNeedTheSameType(t *testing.T) {
	value := map[string]any{"n": float64(1)}
	assert.False(t, pattern.IsMatch(map[string]any{"n": 1}, value))
	assert.True(t, pattern.IsMatch(map[string]any{"n": 1.0}, value))
}
