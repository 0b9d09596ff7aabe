package feedbacks

import (
	"github.com/on-the-ground/effect_ive_feedbacks/effects"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/log"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
)

type permanentEffect struct {
	path   model.Path
	effect any
	deps   *effects.Deps
	dirty  bool
}

// changed reports whether a dependency read in the last run now holds another value.
func (pe *permanentEffect) changed(state any) bool {
	for _, dep := range pe.deps.List() {
		cur, _ := model.GetIn(state, dep.Path)
		if !model.SameValue(cur, dep.Value) {
			return true
		}
	}
	return false
}

// permanents holds one permanent effect per path, bucketed by path hash.
type permanents struct {
	buckets map[uint64][]*permanentEffect
	order   []*permanentEffect
}

func newPermanents() *permanents {
	return &permanents{buckets: map[uint64][]*permanentEffect{}}
}

// put registers eff at p, replacing the effect already there. Either way
// the effect runs on the next pass.
func (ps *permanents) put(p model.Path, eff any) {
	h := p.Hash()
	for _, pe := range ps.buckets[h] {
		if pe.path.Equal(p) {
			pe.effect, pe.deps, pe.dirty = eff, nil, true
			return
		}
	}
	pe := &permanentEffect{path: p.Append(), effect: eff, dirty: true}
	ps.buckets[h] = append(ps.buckets[h], pe)
	ps.order = append(ps.order, pe)
}

func (ps *permanents) list() []*permanentEffect {
	out := make([]*permanentEffect, len(ps.order))
	copy(out, ps.order)
	return out
}

func (ps *permanents) paths() []model.Path {
	out := make([]model.Path, 0, len(ps.order))
	for _, pe := range ps.order {
		out = append(out, pe.path.Append())
	}
	return out
}

// reevaluate re-runs the permanent effects that are new or whose
// dependencies changed. Passes do not nest.
func (e *Engine) reevaluate(cause string) error {
	if e.inPass {
		return nil
	}
	e.inPass = true
	defer func() { e.inPass = false }()

	for _, pe := range e.permanents.list() {
		if !pe.dirty && !pe.changed(e.api.GetState()) {
			continue
		}
		pe.dirty = false
		pe.deps = effects.NewDeps()
		log.Emit(e.logger, log.LogDebug, "running permanent effect", map[string]interface{}{
			"path":    pe.path.String(),
			"trigger": cause,
		})
		if err := e.install(pe.path, pe.effect, CausePermanent, pe.deps); err != nil {
			return err
		}
	}
	return nil
}
