package feedbacks

import (
	"context"
	"fmt"
	"math/rand/v2"
	"reflect"
	"slices"
	"time"

	"github.com/on-the-ground/effect_ive_feedbacks/effects"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
)

// capabilities is the API table effects reach through effects.Call.
func (e *Engine) capabilities() effects.API {
	api := effects.API{
		"select":     e.capSelect,
		"current":    e.capCurrent,
		"next":       e.capNext,
		"dispatch":   e.capDispatch,
		"spawn":      e.capSpawn,
		"effect":     e.capEffect,
		"delay":      e.capDelay,
		"addItem":    e.capAddItem,
		"removeItem": e.capRemoveItem,
		"random":     e.capRandom,
		"mount":      e.capMount,
		"getState":   e.capGetState,
	}
	for name, fn := range e.extra {
		api[name] = fn
	}
	return api
}

// capSelect reads the whole state, or the value at a path, and records the
// read as a dependency of the running effect.
func (e *Engine) capSelect(s *effects.Scope, args ...any) (any, error) {
	p := model.Path{}
	if len(args) > 0 {
		var err error
		if p, err = toPath(args[0]); err != nil {
			return nil, err
		}
	}
	v, _ := model.GetIn(e.api.GetState(), p)
	s.Deps.Add(p, v)
	return effects.Raw(v), nil
}

func (e *Engine) capCurrent(s *effects.Scope, _ ...any) (any, error) {
	v, _ := model.GetIn(e.api.GetState(), s.Path)
	return effects.Raw(v), nil
}

// capNext writes straight to the running effect's path. Scalars come back
// as Raw so a generator can keep using them; anything else stops the branch.
func (e *Engine) capNext(s *effects.Scope, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: next takes one value, got %d", ErrMalformedArgument, len(args))
	}
	v := args[0]
	if err := e.api.Dispatch(UpdateAction(s.Path, v, s.Cause)); err != nil {
		return nil, err
	}
	if isScalar(v) {
		return effects.Raw(v), nil
	}
	return effects.Cancel, nil
}

func (e *Engine) capDispatch(_ *effects.Scope, args ...any) (any, error) {
	action, err := toAction(args)
	if err != nil {
		return nil, err
	}
	return effects.Void, e.api.Dispatch(action)
}

// capSpawn dispatches an action owned by the running effect's path.
func (e *Engine) capSpawn(s *effects.Scope, args ...any) (any, error) {
	action, err := toAction(args)
	if err != nil {
		return nil, err
	}
	return effects.Void, e.api.Dispatch(action.WithRouting(model.Routing{Path: s.Path.Append()}))
}

// capEffect hands an action to the matching custom effect handler, whose
// result is written at the running effect's path.
func (e *Engine) capEffect(s *effects.Scope, args ...any) (any, error) {
	action, err := toAction(args)
	if err != nil {
		return nil, err
	}
	return effects.Void, e.api.Dispatch(action.WithRouting(model.Routing{IsEffect: true, Path: s.Path.Append()}))
}

func (e *Engine) capDelay(_ *effects.Scope, args ...any) (any, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, fmt.Errorf("%w: delay takes a duration and an optional value", ErrMalformedArgument)
	}
	d, err := toDuration(args[0])
	if err != nil {
		return nil, err
	}
	value := effects.Void
	if len(args) == 2 {
		value = args[1]
	}
	return effects.Promise(func(ctx context.Context) (any, error) {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return value, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}), nil
}

func (e *Engine) capAddItem(s *effects.Scope, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: addItem takes one item", ErrMalformedArgument)
	}
	items, err := e.listAt(s.Path)
	if err != nil {
		return nil, err
	}
	return effects.Raw(append(items, args[0])), nil
}

// capRemoveItem drops the item at an index, or every item a predicate accepts.
func (e *Engine) capRemoveItem(s *effects.Scope, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: removeItem takes an index or a predicate", ErrMalformedArgument)
	}
	items, err := e.listAt(s.Path)
	if err != nil {
		return nil, err
	}
	switch sel := args[0].(type) {
	case int:
		if sel >= 0 && sel < len(items) {
			items = slices.Delete(items, sel, sel+1)
		}
	case func(any) bool:
		items = slices.DeleteFunc(items, sel)
	default:
		return nil, fmt.Errorf("%w: removeItem got %T", ErrMalformedArgument, args[0])
	}
	return effects.Raw(items), nil
}

// listAt copies the list at p. A missing value is an empty list.
func (e *Engine) listAt(p model.Path) ([]any, error) {
	cur, _ := model.GetIn(e.api.GetState(), p)
	switch l := cur.(type) {
	case nil:
		return []any{}, nil
	case []any:
		return slices.Clone(l), nil
	default:
		return nil, fmt.Errorf("%w: value at %s is %T, not a list", ErrMalformedArgument, p, cur)
	}
}

// capRandom draws from [min, max), [0, 1) without arguments.
func (e *Engine) capRandom(_ *effects.Scope, args ...any) (any, error) {
	lo, hi := 0.0, 1.0
	switch len(args) {
	case 0:
	case 1:
		r, ok := args[0].(effects.Range)
		if !ok {
			return nil, fmt.Errorf("%w: random takes an effects.Range or min and max", ErrMalformedArgument)
		}
		lo, hi = r.Min, r.Max
	case 2:
		var err error
		if lo, err = toFloat(args[0]); err != nil {
			return nil, err
		}
		if hi, err = toFloat(args[1]); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: random takes at most two bounds", ErrMalformedArgument)
	}
	if hi < lo {
		return nil, fmt.Errorf("%w: random bounds %v > %v", ErrMalformedArgument, lo, hi)
	}
	return effects.Raw(lo + rand.Float64()*(hi-lo)), nil
}

// capMount installs a sub-blueprint at the running effect's path.
func (e *Engine) capMount(s *effects.Scope, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: mount takes one blueprint", ErrMalformedArgument)
	}
	if err := e.mount(s.Path.Append(), args[0]); err != nil {
		return nil, err
	}
	return effects.Cancel, nil
}

func (e *Engine) capGetState(*effects.Scope, ...any) (any, error) {
	return nil, ErrDeprecatedGetState
}

func toPath(arg any) (model.Path, error) {
	switch p := arg.(type) {
	case string:
		return model.ParsePath(p), nil
	case model.Path:
		return p, nil
	case []string:
		return model.Path(p), nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrMalformedSelect, arg)
	}
}

func toAction(args []any) (model.Action, error) {
	if len(args) != 1 {
		return model.Action{}, fmt.Errorf("%w: expected one action, got %d arguments", ErrMalformedArgument, len(args))
	}
	switch a := args[0].(type) {
	case model.Action:
		return a, nil
	case *model.Action:
		if a != nil {
			return *a, nil
		}
	case string:
		return model.Action{Type: a}, nil
	}
	return model.Action{}, fmt.Errorf("%w: %T is not an action", ErrMalformedArgument, args[0])
}

func toDuration(arg any) (time.Duration, error) {
	switch d := arg.(type) {
	case time.Duration:
		return d, nil
	case int:
		return time.Duration(d) * time.Millisecond, nil
	case int64:
		return time.Duration(d) * time.Millisecond, nil
	case float64:
		return time.Duration(d * float64(time.Millisecond)), nil
	default:
		return 0, fmt.Errorf("%w: delay got %T", ErrMalformedArgument, arg)
	}
}

func toFloat(arg any) (float64, error) {
	v := reflect.ValueOf(arg)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	default:
		return 0, fmt.Errorf("%w: %T is not a number", ErrMalformedArgument, arg)
	}
}

func isScalar(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
