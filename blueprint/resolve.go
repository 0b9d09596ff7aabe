package blueprint

import (
	"maps"
	"reflect"
	"slices"

	"github.com/on-the-ground/effect_ive_feedbacks/effects"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
)

// Subscription is an effect found in a blueprint, to be run at Path once the
// initial state is in place. Source is set for observables.
type Subscription struct {
	Path   model.Path
	Source effects.Observable
	Effect any
}

// ResolveInitialState computes the initial state of node. Formulas without
// an initial state, observables and other effects leave their key out and
// are returned as subscriptions instead. Slices, Raw values and structs are
// kept whole.
func ResolveInitialState(node any) (any, []Subscription) {
	var subs []Subscription
	v, _ := resolve(node, model.Path{}, &subs)
	return v, subs
}

func resolve(node any, p model.Path, subs *[]Subscription) (any, bool) {
	switch n := node.(type) {
	case nil:
		return nil, true
	case Formula:
		initial, ok := n.InitialState()
		if !ok {
			return nil, false
		}
		return resolve(initial, p, subs)
	case *Formula:
		if n == nil {
			return nil, true
		}
		return resolve(*n, p, subs)
	case map[string]any:
		out := make(map[string]any, len(n))
		for _, k := range slices.Sorted(maps.Keys(n)) {
			if v, ok := resolve(n[k], p.Append(k), subs); ok {
				out[k] = v
			}
		}
		return out, true
	}

	if src, ok := effects.AsObservable(node); ok {
		*subs = append(*subs, Subscription{Path: p, Source: src, Effect: effects.Observe(src)})
		return nil, false
	}
	if v, ok := effects.Unraw(node); ok {
		return v, true
	}
	if tpl, ok := node.(effects.Template); ok {
		initial, ok := tpl.InitialState()
		if !ok {
			return nil, false
		}
		return resolve(initial, p, subs)
	}
	if effects.IsEffect(node) {
		*subs = append(*subs, Subscription{Path: p, Effect: node})
		return nil, false
	}
	return node, true
}

func isFunc(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}
