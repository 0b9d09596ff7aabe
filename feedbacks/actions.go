package feedbacks

import (
	"strings"

	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
)

const actionPrefix = "@@feedbacks/"

// Internal action types. They write state directly and never reach blueprint rules.
const (
	ActionUpdate          = actionPrefix + "UPDATE"
	ActionReplace         = actionPrefix + "REPLACE"
	ActionUpdateBlueprint = actionPrefix + "UPDATE_BLUEPRINT"
)

// CausePermanent is the cause recorded for writes of re-run permanent effects.
const CausePermanent = actionPrefix + "PERMANENT"

func isInternal(actionType string) bool {
	return strings.HasPrefix(actionType, actionPrefix)
}

func pathAction(actionType string, p model.Path, payload any, cause string) model.Action {
	meta := &model.Meta{Feedbacks: &model.Routing{Path: p}}
	if cause != "" {
		meta.Cause = &model.Cause{Type: cause}
	}
	return model.Action{Type: actionType, Payload: payload, Meta: meta}
}

// UpdateAction writes value at p.
func UpdateAction(p model.Path, value any, cause string) model.Action {
	return pathAction(ActionUpdate, p, value, cause)
}

// ReplaceAction replaces the subtree at p, the whole state when p is empty.
func ReplaceAction(p model.Path, value any) model.Action {
	return pathAction(ActionReplace, p, value, "")
}

func updateBlueprintAction(p model.Path, bp any) model.Action {
	return pathAction(ActionUpdateBlueprint, p, bp, "")
}

func routingPath(action model.Action) model.Path {
	if r := action.Routing(); r != nil && r.Path != nil {
		return r.Path
	}
	return model.Path{}
}

// Commit is one path-scoped write applied to the store.
type Commit struct {
	Path  model.Path
	Value any
	Cause string
	Span  model.TimeSpan
}

var _ model.TimeBounded = Commit{}

func (c Commit) TimeSpan() model.TimeSpan { return c.Span }
