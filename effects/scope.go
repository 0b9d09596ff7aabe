package effects

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
)

// Scope is the context an effect runs in. Capabilities read it to learn
// which state path they act on.
type Scope struct {
	Path  model.Path
	Deps  *Deps
	Cause string
}

// At returns a scope for path p that shares deps and cause with s.
func (s *Scope) At(p model.Path) *Scope {
	if s == nil {
		return &Scope{Path: p}
	}
	return &Scope{Path: p, Deps: s.Deps, Cause: s.Cause}
}

// Dep is one path read through select, with the value observed at that time.
type Dep struct {
	Path  model.Path
	Value any
}

// Deps records the state paths a permanent effect depends on.
type Deps struct {
	mu      sync.Mutex
	entries []Dep
}

func NewDeps() *Deps { return &Deps{} }

// Add records p with the value just read. A repeated path keeps the latest value.
func (d *Deps) Add(p model.Path, observed any) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.entries {
		if d.entries[i].Path.Equal(p) {
			d.entries[i].Value = observed
			return
		}
	}
	d.entries = append(d.entries, Dep{Path: p.Append(), Value: observed})
}

func (d *Deps) List() []Dep {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Dep, len(d.entries))
	copy(out, d.entries)
	return out
}

func (d *Deps) Len() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Range is the argument shape of the random capability.
type Range struct {
	Min, Max float64
}

// Result is one delivery from the runner. Path is absolute. Resolved marks
// values that came out of Raw and must not be interpreted further. Assembled
// marks a tree whose leaves were already delivered at their own paths.
type Result struct {
	Value     any
	Path      model.Path
	Done      bool
	Resolved  bool
	Assembled bool
}

type Callback func(Result)

type Kind string

const (
	KindGenerator  Kind = "generator"
	KindObservable Kind = "observable"
	KindSequence   Kind = "sequence"
	KindTree       Kind = "tree"
)

// Handle is returned for effects that stay active after Run returns.
type Handle struct {
	ID   string
	Path model.Path
	Kind Kind

	mu        sync.Mutex
	cancelled bool
	finished  bool
	sub       *Handle
	kids      []*Handle
	onCancel  []func()
}

func newHandle(p model.Path, kind Kind) *Handle {
	return &Handle{ID: uuid.New().String(), Path: p, Kind: kind}
}

// NewHandle builds a handle whose Cancel calls onCancel once.
func NewHandle(p model.Path, kind Kind, onCancel func()) *Handle {
	h := newHandle(p, kind)
	if onCancel != nil {
		h.onCancel = []func(){onCancel}
	}
	return h
}

// Cancel stops the effect. Pending sub-results are dropped. Safe to call twice.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		return
	}
	h.cancelled = true
	sub, kids := h.sub, h.kids
	hooks := h.onCancel
	h.sub, h.kids, h.onCancel = nil, nil, nil
	h.mu.Unlock()

	sub.Cancel()
	for _, kid := range kids {
		kid.Cancel()
	}
	for _, fn := range hooks {
		fn()
	}
}

func (h *Handle) Cancelled() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// Finished reports whether the effect and every sub-effect it still owns
// have delivered their last result.
func (h *Handle) Finished() bool {
	if h == nil {
		return true
	}
	h.mu.Lock()
	finished, sub, kids := h.finished, h.sub, slices.Clone(h.kids)
	h.mu.Unlock()
	if !finished || !sub.Finished() {
		return false
	}
	for _, kid := range kids {
		if !kid.Finished() {
			return false
		}
	}
	return true
}

func (h *Handle) finish() {
	h.mu.Lock()
	h.finished = true
	h.mu.Unlock()
}

// setSub replaces the currently awaited sub-effect handle. The previous one
// has delivered what was awaited from it and is cancelled.
func (h *Handle) setSub(sub *Handle) {
	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		sub.Cancel()
		return
	}
	prev := h.sub
	h.sub = sub
	h.mu.Unlock()
	if prev != sub {
		prev.Cancel()
	}
}

// adopt ties child to h: cancelling h cancels child, and h is not finished
// while child runs.
func (h *Handle) adopt(child *Handle) {
	if child == nil {
		return
	}
	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		child.Cancel()
		return
	}
	h.kids = append(h.kids, child)
	h.mu.Unlock()
}

// whenCancelled runs fn on Cancel, or right away if already cancelled.
func (h *Handle) whenCancelled(fn func()) {
	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		fn()
		return
	}
	h.onCancel = append(h.onCancel, fn)
	h.mu.Unlock()
}
