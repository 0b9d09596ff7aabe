package cli

import (
	"maps"

	"github.com/on-the-ground/effect_ive_feedbacks/blueprint"
	"github.com/on-the-ground/effect_ive_feedbacks/effects"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
)

// Actions understood by the todo blueprint. Payloads carry an "id" and, for
// add, a "title".
const (
	ActionAdd    = "todo/add"
	ActionToggle = "todo/toggle"
	ActionRemove = "todo/remove"
)

// TodoBlueprint is the demo state: todos keyed by id, a counter of adds and
// the number of open todos, kept current by a permanent effect.
func TodoBlueprint() map[string]any {
	todo := blueprint.Init(map[string]any{"title": "", "done": false}).
		On(ActionAdd, func(s any, a model.Action) any {
			return with(s, "title", field(a, "title"))
		}).
		On(ActionToggle, func(s any, _ model.Action) any {
			done, _ := s.(map[string]any)["done"].(bool)
			return with(s, "done", !done)
		})

	return map[string]any{
		"todos": blueprint.Init(map[string]any{}).
			On(ActionRemove, func(s any, a model.Action) any {
				out := maps.Clone(s.(map[string]any))
				id, _ := field(a, "id").(string)
				delete(out, id)
				return out
			}).
			ItemsLike(todo, todoID),
		"added": blueprint.Init(0).On(ActionAdd, func(v any) any { return v.(int) + 1 }),
		"open": effects.Permanent(effects.Generator(func(yield effects.Yield) any {
			todos, _ := yield(effects.Call("select", "todos")).(map[string]any)
			open := 0
			for _, t := range todos {
				if done, _ := t.(map[string]any)["done"].(bool); !done {
					open++
				}
			}
			return open
		})),
	}
}

func todoID(a model.Action) (string, bool) {
	if a.Type == ActionRemove {
		return "", false
	}
	id, ok := field(a, "id").(string)
	return id, ok && id != ""
}

func field(a model.Action, key string) any {
	payload, _ := a.Payload.(map[string]any)
	return payload[key]
}

func with(s any, key string, v any) any {
	out := maps.Clone(s.(map[string]any))
	out[key] = v
	return out
}
