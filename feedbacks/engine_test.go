package feedbacks_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/on-the-ground/effect_ive_feedbacks/blueprint"
	"github.com/on-the-ground/effect_ive_feedbacks/config"
	"github.com/on-the-ground/effect_ive_feedbacks/effects"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/log"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
	"github.com/on-the-ground/effect_ive_feedbacks/feedbacks"
	"github.com/on-the-ground/effect_ive_feedbacks/shared/helper"
	"github.com/on-the-ground/effect_ive_feedbacks/store"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_MissingStorePanics(t *testing.T) {
	e, err := feedbacks.New(context.Background(), feedbacks.WithLogger(log.NewTestLogger()))
	require.NoError(t, err)
	defer e.Close()

	assert.PanicsWithError(t, feedbacks.ErrMissingStore.Error(), func() {
		e.Middleware()(nil)
	})
	assert.ErrorIs(t, e.Dispatch(model.Action{Type: "x"}), feedbacks.ErrMissingStore)
}

func TestEngine_AttachToExistingStore(t *testing.T) {
	ctx := context.Background()
	e, err := feedbacks.New(ctx, feedbacks.WithLogger(log.NewTestLogger()))
	require.NoError(t, err)
	s := store.New(ctx, e.Reduce, map[string]any{})
	s.Use(e.Middleware())
	defer e.Close()

	require.NoError(t, e.Mount(nil, map[string]any{"n": blueprint.Init(1).On("inc", inc)}))
	require.NoError(t, s.Dispatch(model.Action{Type: "inc"}))
	assert.Equal(t, map[string]any{"n": 2}, s.GetState())
}

func TestEngine_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.MaxCost = 0
	_, err := feedbacks.New(context.Background(), feedbacks.WithConfig(cfg), feedbacks.WithLogger(log.NewTestLogger()))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestCapability_SelectRejectsFunction(t *testing.T) {
	e := newEngine(t, map[string]any{
		"a": blueprint.Init(0).On("bad", effects.Call("select", func() {})),
	})

	err := e.Dispatch(model.Action{Type: "bad"})
	assert.ErrorIs(t, err, feedbacks.ErrMalformedSelect)
	assert.ErrorIs(t, err, effects.ErrCapabilityFailed)
}

func TestCapability_SelectWholeTree(t *testing.T) {
	e := newEngine(t, map[string]any{
		"a":    blueprint.Init(3),
		"copy": blueprint.Init(nil).On("snap", effects.Call("select")),
	})

	require.NoError(t, e.Dispatch(model.Action{Type: "snap"}))
	assert.Equal(t, map[string]any{"a": 3, "copy": nil}, e.State()["copy"])
}

func TestCapability_GetStateIsDeprecated(t *testing.T) {
	e := newEngine(t, map[string]any{
		"a": blueprint.Init(0).On("old", effects.Call("getState")),
	})

	assert.ErrorIs(t, e.Dispatch(model.Action{Type: "old"}), feedbacks.ErrDeprecatedGetState)
	assert.Equal(t, 0, e.State()["a"])
}

func TestCapability_UnknownCallFails(t *testing.T) {
	e := newEngine(t, map[string]any{
		"a": blueprint.Init(0).On("x", effects.Call("nope")),
	})
	assert.ErrorIs(t, e.Dispatch(model.Action{Type: "x"}), effects.ErrUnresolvableCall)
}

func TestCapability_AddAndRemoveItems(t *testing.T) {
	e := newEngine(t, map[string]any{
		"list": blueprint.Init([]any{}).
			On("add", func(_ any, a model.Action) any { return effects.Call("addItem", a.Payload) }).
			On("remove", func(_ any, a model.Action) any { return effects.Call("removeItem", a.Payload) }),
	})

	for _, v := range []string{"x", "y", "z"} {
		require.NoError(t, e.Dispatch(model.Action{Type: "add", Payload: v}))
	}
	require.NoError(t, e.Dispatch(model.Action{Type: "remove", Payload: 0}))
	assert.Equal(t, []any{"y", "z"}, e.State()["list"])

	require.NoError(t, e.Dispatch(model.Action{Type: "remove", Payload: func(v any) bool { return v == "z" }}))
	assert.Equal(t, []any{"y"}, e.State()["list"])

	require.NoError(t, e.Dispatch(model.Action{Type: "remove", Payload: 9}))
	assert.Equal(t, []any{"y"}, e.State()["list"])

	assert.ErrorIs(t, e.Dispatch(model.Action{Type: "remove", Payload: "bad"}), feedbacks.ErrMalformedArgument)
}

func TestCapability_AddItemOnNonList(t *testing.T) {
	e := newEngine(t, map[string]any{
		"n": blueprint.Init(1).On("add", effects.Call("addItem", 2)),
	})
	assert.ErrorIs(t, e.Dispatch(model.Action{Type: "add"}), feedbacks.ErrMalformedArgument)
}

func TestCapability_Random(t *testing.T) {
	e := newEngine(t, map[string]any{
		"r": blueprint.Init(0.0).
			On("roll", effects.Call("random", 5, 10)).
			On("rollRange", effects.Call("random", effects.Range{Min: -1, Max: 0})),
	})

	for range 20 {
		require.NoError(t, e.Dispatch(model.Action{Type: "roll"}))
		r, err := feedbacks.Select[float64](e, "r")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, r, 5.0)
		assert.Less(t, r, 10.0)
	}

	require.NoError(t, e.Dispatch(model.Action{Type: "rollRange"}))
	r, err := feedbacks.Select[float64](e, "r")
	require.NoError(t, err)
	assert.Less(t, r, 0.0)
}

func TestCapability_Delay(t *testing.T) {
	e := newEngine(t, map[string]any{
		"d": blueprint.Init("").On("wait", effects.Call("delay", 5*time.Millisecond, "done")),
	})

	require.NoError(t, e.Dispatch(model.Action{Type: "wait"}))
	assert.Equal(t, "", e.State()["d"])
	require.Eventually(t, func() bool { return e.State()["d"] == "done" }, time.Second, 5*time.Millisecond)
}

func TestCapability_Current(t *testing.T) {
	e := newEngine(t, map[string]any{
		"n": blueprint.Init(4).On("double", effects.Generator(func(yield effects.Yield) any {
			return yield(effects.Call("current")).(int) * 2
		})),
	})

	require.NoError(t, e.Dispatch(model.Action{Type: "double"}))
	assert.Equal(t, 8, e.State()["n"])
}

func TestCapability_NextWithCompositeStopsBranch(t *testing.T) {
	after := false
	e := newEngine(t, map[string]any{
		"m": blueprint.Init(map[string]any{}).On("set", effects.Generator(func(yield effects.Yield) any {
			yield(effects.Call("next", map[string]any{"k": "v"}))
			after = true
			return "unreachable"
		})),
	})

	require.NoError(t, e.Dispatch(model.Action{Type: "set"}))
	assert.Equal(t, map[string]any{"k": "v"}, e.State()["m"])
	assert.False(t, after)
}

func TestCapability_Dispatch(t *testing.T) {
	e := newEngine(t, map[string]any{
		"a": blueprint.Init(0).On("go", effects.Call("dispatch", "inc")),
		"b": blueprint.Init(0).On("inc", inc),
	})

	require.NoError(t, e.Dispatch(model.Action{Type: "go"}))
	assert.Equal(t, map[string]any{"a": 0, "b": 1}, e.State())
}

func TestWithCapability(t *testing.T) {
	e := newEngine(t, map[string]any{
		"greeting": blueprint.Init("").On("greet", effects.Call("hello", "go")),
	}, feedbacks.WithCapability("hello", func(s *effects.Scope, args ...any) (any, error) {
		return "hello " + args[0].(string) + " at " + s.Path.String(), nil
	}))

	require.NoError(t, e.Dispatch(model.Action{Type: "greet"}))
	assert.Equal(t, "hello go at greeting", e.State()["greeting"])
}

func TestSelect_Typed(t *testing.T) {
	e := newEngine(t, map[string]any{"a": map[string]any{"b": blueprint.Init(2)}})

	v, err := feedbacks.Select[int](e, "a.b")
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = feedbacks.Select[string](e, "a.b")
	assert.ErrorIs(t, err, helper.ErrUnexpectedType)
	_, err = feedbacks.Select[int](e, "a.c")
	assert.ErrorIs(t, err, helper.ErrNotFound)
}

func TestEngine_SubscribeSeesEveryState(t *testing.T) {
	e := newEngine(t, map[string]any{"n": blueprint.Init(0).On("inc", inc)})
	var seen []any
	unsubscribe := e.Subscribe(func(state any) {
		seen = append(seen, state.(map[string]any)["n"])
	})
	defer unsubscribe()

	require.NoError(t, e.Dispatch(model.Action{Type: "inc"}))
	require.NoError(t, e.Dispatch(model.Action{Type: "inc"}))
	assert.Equal(t, []any{1, 2}, seen)
}

func TestEngine_CloseCancelsOngoingEffects(t *testing.T) {
	src := newSubject()
	e, err := feedbacks.NewStore(context.Background(), map[string]any{
		"live": effects.Observe(src),
	}, feedbacks.WithLogger(log.NewTestLogger()))
	require.NoError(t, err)
	require.Equal(t, 1, src.Subscribers())

	require.NoError(t, e.Close())
	assert.Equal(t, 0, src.Subscribers())
}

func TestEngine_GoldenState(t *testing.T) {
	todo := blueprint.Init(map[string]any{"done": false, "title": ""}).
		On("rename", func(s any, a model.Action) any {
			out := map[string]any{}
			for k, v := range s.(map[string]any) {
				out[k] = v
			}
			out["title"] = a.Payload.(map[string]any)["title"]
			return out
		})
	e := newEngine(t, map[string]any{
		"counter": blueprint.Init(0).On("inc", inc),
		"profile": map[string]any{
			"name": blueprint.Init("anon").On("rename", func(_ any, a model.Action) any {
				return a.Payload.(map[string]any)["title"]
			}),
			"tags": blueprint.Init([]any{"a"}).On("tag", func(_ any, a model.Action) any {
				return effects.Call("addItem", a.Payload)
			}),
		},
		"todos": blueprint.Init(map[string]any{}).ItemsLike(todo, func(a model.Action) (string, bool) {
			p, ok := a.Payload.(map[string]any)
			if !ok {
				return "", false
			}
			id, ok := p["id"].(string)
			return id, ok
		}),
	})

	actions := []model.Action{
		{Type: "inc"},
		{Type: "inc"},
		{Type: "tag", Payload: "b"},
		{Type: "rename", Payload: map[string]any{"id": "t1", "title": "write tests"}},
	}
	for _, a := range actions {
		require.NoError(t, e.Dispatch(a))
	}

	data, err := json.MarshalIndent(e.State(), "", "  ")
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "state", data)
}
