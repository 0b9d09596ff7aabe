// Package feedbacks connects blueprints and effects to a store.
//
// The Engine is both the store's reducer and a middleware. As a reducer it
// matches every action against the rules of each blueprint node. A rule may
// answer with a value, written at the node's path, or with an effect. As a
// middleware it runs those effects at their paths and writes what they
// resolve to back into the store as update actions that carry the cause.
//
// At most one effect runs per path. Starting an effect at a path cancels the
// one already running there first.
//
// Effects marked effects.Permanent are not run once but kept per path. They
// run again, after any action, when a value they read through the select
// capability has changed.
//
// A minimal counter:
//
//	e, err := feedbacks.NewStore(ctx, map[string]any{
//		"counter": blueprint.Init(0).On("inc", func(v any) any { return v.(int) + 1 }),
//	})
//	if err != nil {
//		return err
//	}
//	defer e.Close()
//	_ = e.Dispatch(model.Action{Type: "inc"})
package feedbacks
