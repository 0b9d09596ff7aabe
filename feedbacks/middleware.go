package feedbacks

import (
	"slices"

	"github.com/on-the-ground/effect_ive_feedbacks/blueprint"
	"github.com/on-the-ground/effect_ive_feedbacks/effects"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/log"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/pattern"
	"github.com/on-the-ground/effect_ive_feedbacks/store"
)

func (e *Engine) handle(next store.DispatchFunc, action model.Action) error {
	if err := e.runner.Notify(action); err != nil {
		return err
	}

	routing := action.Routing()
	if routing != nil && routing.IsEffect {
		return e.runHandler(action, routingPath(action))
	}

	if err := next(action); err != nil {
		return err
	}
	e.publish(action)

	for _, pe := range e.takeCollected() {
		if inner, ok := effects.AsPermanent(pe.effect); ok {
			e.permanents.put(pe.path, inner)
			continue
		}
		if err := e.install(pe.path, pe.effect, action.Type, nil); err != nil {
			return err
		}
	}

	if routing != nil && routing.Path != nil && !isInternal(action.Type) {
		if h, ok := e.handlerFor(action); ok {
			if err := e.runDetached(routing.Path, h.handle(action), action.Type); err != nil {
				return err
			}
		}
	}

	return e.reevaluate(action.Type)
}

// install runs eff at p after cancelling whatever still runs there.
func (e *Engine) install(p model.Path, eff any, cause string, deps *effects.Deps) error {
	if _, err := e.ongoing.CancelAt(p); err != nil {
		return err
	}
	h, err := e.runner.Run(eff, e.commit(cause), &effects.Scope{Path: p, Deps: deps, Cause: cause})
	if err != nil {
		return err
	}
	if h == nil || h.Cancelled() {
		return nil
	}
	log.Emit(e.logger, log.LogDebug, "installed ongoing effect", map[string]interface{}{
		"path":  p.String(),
		"kind":  string(h.Kind),
		"cause": cause,
	})
	return e.ongoing.Insert(h)
}

// runDetached runs eff at p without claiming the path, so the effect that
// asked for it keeps running.
func (e *Engine) runDetached(p model.Path, eff any, cause string) error {
	h, err := e.runner.Run(eff, e.commit(cause), &effects.Scope{Path: p, Cause: cause})
	if err != nil {
		return err
	}
	e.detached = slices.DeleteFunc(e.detached, func(d *effects.Handle) bool {
		return d.Cancelled() || d.Finished()
	})
	if h != nil {
		e.detached = append(e.detached, h)
	}
	return nil
}

// commit writes every result back to the store as an update tagged with cause.
func (e *Engine) commit(cause string) effects.Callback {
	return func(res effects.Result) {
		if res.Assembled || res.Value == effects.Cancel || res.Value == effects.Void {
			return
		}
		effects.RaiseIfErrOnly(func() error {
			return e.api.Dispatch(UpdateAction(res.Path, res.Value, cause))
		})
	}
}

func (e *Engine) publish(action model.Action) {
	if action.Type != ActionUpdate && action.Type != ActionReplace {
		return
	}
	c := Commit{Path: routingPath(action), Value: action.Payload, Span: model.Now()}
	if action.Meta != nil && action.Meta.Cause != nil {
		c.Cause = action.Meta.Cause.Type
	}
	select {
	case e.sink <- c:
	default:
		log.Emit(e.logger, log.LogDebug, "commit source full, dropping commit", map[string]interface{}{
			"path": c.Path.String(),
		})
	}
}

func (e *Engine) handlerFor(action model.Action) (customHandler, bool) {
	for _, h := range e.handlers {
		if pattern.IsMatch(h.pattern, action) {
			return h, true
		}
	}
	return customHandler{}, false
}

// runHandler runs the custom handler matching an effect action at p. Effect
// actions never reach the reducer.
func (e *Engine) runHandler(action model.Action, p model.Path) error {
	h, ok := e.handlerFor(action)
	if !ok {
		log.Emit(e.logger, log.LogDebug, "no effect handler matched", map[string]interface{}{
			"action": action.Type,
			"path":   p.String(),
		})
		return nil
	}
	return e.runDetached(p, h.handle(action), action.Type)
}

// mount stores bp at p, replaces the state there with bp's initial state,
// and runs the effects found in bp at their paths. Permanent ones are
// registered and get their first run right away.
func (e *Engine) mount(p model.Path, bp any) error {
	if err := e.api.Dispatch(updateBlueprintAction(p, bp)); err != nil {
		return err
	}
	initial, subs := blueprint.ResolveInitialState(bp)
	if err := e.api.Dispatch(ReplaceAction(p, initial)); err != nil {
		return err
	}
	for _, sub := range subs {
		at := p.Concat(sub.Path)
		if inner, ok := effects.AsPermanent(sub.Effect); ok {
			e.permanents.put(at, inner)
			continue
		}
		if err := e.install(at, sub.Effect, ActionReplace, nil); err != nil {
			return err
		}
	}
	log.Emit(e.logger, log.LogDebug, "mounted blueprint", map[string]interface{}{
		"path":    p.String(),
		"effects": len(subs),
	})
	return e.reevaluate(ActionReplace)
}
