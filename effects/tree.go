package effects

import (
	"maps"
	"slices"

	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
)

// visit resolves every leaf of tree in parallel. When no leaf suspends the
// assembled tree is delivered once, with Done set. Otherwise every leaf is
// delivered at its own path as it settles, and the assembled tree follows
// the last one, marked Assembled.
func (r *Runner) visit(tree map[string]any, cb Callback, s *Scope) *Handle {
	h := newHandle(s.Path, KindTree)
	var (
		acc     any = map[string]any{}
		pending int
		syncing = true
		early   []Result
	)

	deliver := func(res Result) {
		if syncing {
			early = append(early, res)
			return
		}
		cb(res)
	}
	settle := func() {
		pending--
		if pending == 0 && !syncing {
			h.finish()
			cb(Result{Value: acc, Path: s.Path, Done: true, Assembled: true})
		}
	}

	var walk func(node map[string]any, rel model.Path)
	walk = func(node map[string]any, rel model.Path) {
		for _, k := range slices.Sorted(maps.Keys(node)) {
			p := rel.Append(k)
			if sub, ok := node[k].(map[string]any); ok {
				if len(sub) == 0 {
					acc = model.SetIn(acc, p, map[string]any{})
					deliver(Result{Value: map[string]any{}, Path: s.Path.Concat(p)})
				}
				walk(sub, p)
				continue
			}

			pending++
			settled := false
			child := r.run(node[k], func(res Result) {
				if h.Cancelled() || !res.Done {
					return
				}
				if sub, ok := res.Value.(map[string]any); ok && !res.Resolved && !settled {
					settled = true
					walk(sub, p)
					settle()
					return
				}
				if res.Value == Cancel || res.Value == Void {
					if !settled {
						settled = true
						settle()
					}
					return
				}

				acc = model.SetIn(acc, p, res.Value)
				deliver(Result{Value: res.Value, Path: res.Path, Resolved: res.Resolved})
				if !settled {
					settled = true
					settle()
				}
			}, s.At(s.Path.Concat(p)), nil)
			h.adopt(child)
		}
	}
	walk(tree, model.Path{})
	syncing = false

	if pending == 0 {
		h.finish()
		cb(Result{Value: acc, Path: s.Path, Done: true})
	} else {
		for _, res := range early {
			cb(res)
		}
	}

	if h.Finished() {
		return nil
	}
	return h
}
