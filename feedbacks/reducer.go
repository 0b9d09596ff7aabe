package feedbacks

import (
	"maps"
	"slices"

	"github.com/on-the-ground/effect_ive_feedbacks/blueprint"
	"github.com/on-the-ground/effect_ive_feedbacks/effects"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
)

// Reduce is the store reducer. Internal actions write at their routed path.
// Any other action is matched against the blueprint rules of every node;
// a rule that produces an effect leaves the state as is and queues the
// effect for the middleware to run at that node's path.
func (e *Engine) Reduce(state any, action model.Action) any {
	switch action.Type {
	case ActionUpdate, ActionReplace:
		return model.SetIn(state, routingPath(action), action.Payload)
	case ActionUpdateBlueprint:
		e.blueprint = setBlueprint(e.blueprint, routingPath(action), action.Payload)
		return state
	}
	if isInternal(action.Type) {
		return state
	}
	return e.walk(e.blueprint, model.Path{}, state, action)
}

func (e *Engine) walk(node any, p model.Path, state any, action model.Action) any {
	switch n := node.(type) {
	case blueprint.Formula:
		return e.reduceFormula(n, p, state, action)
	case *blueprint.Formula:
		if n == nil {
			return state
		}
		return e.reduceFormula(*n, p, state, action)
	case map[string]any:
		return e.walkChildren(n, p, state, action)
	default:
		return state
	}
}

func (e *Engine) walkChildren(children map[string]any, p model.Path, state any, action model.Action) any {
	for _, k := range slices.Sorted(maps.Keys(children)) {
		state = e.walk(children[k], p.Append(k), state, action)
	}
	return state
}

func (e *Engine) reduceFormula(f blueprint.Formula, p model.Path, state any, action model.Action) any {
	cur, _ := model.GetIn(state, p)
	if next, ok := f.Reduce(cur, action); ok {
		state = e.apply(p, state, next)
	}

	if item, keyOf, ok := f.Items(); ok {
		state = e.reduceItem(item, keyOf, p, state, action)
	}

	if initial, ok := f.InitialState(); ok {
		if children, ok := initial.(map[string]any); ok {
			state = e.walkChildren(children, p, state, action)
		}
	}
	return state
}

// reduceItem reduces the item addressed by action. A missing item starts
// from the item formula's initial state, and is only created when one of
// the item's rules matched.
func (e *Engine) reduceItem(item blueprint.Formula, keyOf blueprint.KeyFunc, p model.Path, state any, action model.Action) any {
	key, ok := keyOf(action)
	if !ok {
		return state
	}
	ip := p.Append(key)
	cur, exists := model.GetIn(state, ip)
	if !exists {
		cur = e.items.Resolve(item)
	}

	next, matched := item.Reduce(cur, action)
	if !matched {
		if exists {
			return e.reduceItemChildren(item, ip, state, action)
		}
		return state
	}
	if !exists && effects.IsEffect(next) {
		state = model.SetIn(state, ip, cur)
	}
	state = e.apply(ip, state, next)
	return e.reduceItemChildren(item, ip, state, action)
}

func (e *Engine) reduceItemChildren(item blueprint.Formula, ip model.Path, state any, action model.Action) any {
	if initial, ok := item.InitialState(); ok {
		if children, ok := initial.(map[string]any); ok {
			return e.walkChildren(children, ip, state, action)
		}
	}
	return state
}

func (e *Engine) apply(p model.Path, state, next any) any {
	if effects.IsEffect(next) {
		e.collected = append(e.collected, pendingEffect{path: p, effect: next})
		return state
	}
	return model.SetIn(state, p, next)
}

func (e *Engine) takeCollected() []pendingEffect {
	batch := e.collected
	e.collected = nil
	return batch
}

// setBlueprint stores bp at p inside the blueprint tree. Formulas on the
// way keep their rules and get bp merged into their initial state.
func setBlueprint(tree any, p model.Path, bp any) any {
	if len(p) == 0 {
		return bp
	}
	switch n := tree.(type) {
	case blueprint.Formula:
		initial, _ := n.InitialState()
		return n.Init(setBlueprint(initial, p, bp))
	case *blueprint.Formula:
		if n != nil {
			return setBlueprint(*n, p, bp)
		}
		return map[string]any{p[0]: setBlueprint(nil, p[1:], bp)}
	case map[string]any:
		out := maps.Clone(n)
		out[p[0]] = setBlueprint(n[p[0]], p[1:], bp)
		return out
	default:
		return map[string]any{p[0]: setBlueprint(nil, p[1:], bp)}
	}
}
