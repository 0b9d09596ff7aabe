// Package blueprint describes a state tree declaratively: initial values and
// the pattern-matched rules that move each node forward.
package blueprint

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_feedbacks/effects"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/pattern"
)

// Reducer computes a node's next value. It may return an effect instead of
// a value; the bridge runs it at the node's path.
type Reducer func(state any, action model.Action) any

type rule struct {
	pattern any
	reduce  Reducer
}

// KeyFunc picks the item an action is addressed to.
type KeyFunc func(model.Action) (key string, ok bool)

// Formula is an immutable blueprint node. Every builder method returns a new
// Formula with its own identity and leaves the receiver untouched.
type Formula struct {
	id         string
	initial    any
	hasInitial bool
	rules      []rule
	item       *Formula
	keyOf      KeyFunc
}

var _ effects.Template = Formula{}

// Init starts a formula with an initial state.
func Init(initial any) Formula {
	return Formula{}.Init(initial)
}

// On starts a formula with one rule and no initial state.
func On(pattern any, reducer any) Formula {
	return Formula{}.On(pattern, reducer)
}

func (f Formula) Init(initial any) Formula {
	f.id = uuid.New().String()
	f.initial = initial
	f.hasInitial = true
	return f
}

// On appends a rule. reducer is a Reducer, a func(any, model.Action) any,
// a func(any) any, or a constant value.
func (f Formula) On(pattern any, reducer any) Formula {
	rules := make([]rule, len(f.rules), len(f.rules)+1)
	copy(rules, f.rules)
	f.rules = append(rules, rule{pattern: pattern, reduce: toReducer(reducer)})
	f.id = uuid.New().String()
	return f
}

// ItemsLike makes the node a keyed collection of item nodes. Actions for
// which keyOf reports a key are reduced by item at that key.
func (f Formula) ItemsLike(item Formula, keyOf KeyFunc) Formula {
	f.item = &item
	f.keyOf = keyOf
	f.id = uuid.New().String()
	return f
}

// ID identifies this exact formula value.
func (f Formula) ID() string { return f.id }

func (f Formula) InitialState() (any, bool) { return f.initial, f.hasInitial }

// Match returns the reducer of the first rule whose pattern matches action.
func (f Formula) Match(action model.Action) (Reducer, bool) {
	for _, r := range f.rules {
		if pattern.IsMatch(r.pattern, action) {
			return r.reduce, true
		}
	}
	return nil, false
}

// Reduce applies the first matching rule. ok is false when no rule matched.
func (f Formula) Reduce(state any, action model.Action) (next any, ok bool) {
	reduce, ok := f.Match(action)
	if !ok {
		return state, false
	}
	return reduce(state, action), true
}

// Items returns the item formula and key function set by ItemsLike.
func (f Formula) Items() (Formula, KeyFunc, bool) {
	if f.item == nil {
		return Formula{}, nil, false
	}
	return *f.item, f.keyOf, true
}

// Reduce adapts a typed reducer. A state that is not an S is passed as S's zero value.
func Reduce[S any](fn func(state S, action model.Action) any) Reducer {
	return func(state any, action model.Action) any {
		s, _ := state.(S)
		return fn(s, action)
	}
}

func toReducer(reducer any) Reducer {
	switch fn := reducer.(type) {
	case Reducer:
		return fn
	case func(any, model.Action) any:
		return fn
	case func(any) any:
		return func(state any, _ model.Action) any { return fn(state) }
	case func() any:
		return func(any, model.Action) any { return fn() }
	case nil:
		return func(any, model.Action) any { return nil }
	default:
		if _, obs := reducer.(effects.Observable); isFunc(reducer) && !obs {
			panic(fmt.Sprintf("unsupported reducer type: %T", reducer))
		}
		return func(any, model.Action) any { return reducer }
	}
}
