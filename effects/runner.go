package effects

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/log"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/pattern"
	"github.com/on-the-ground/effect_ive_feedbacks/internal/supervisor"
	"go.uber.org/zap"
)

// Capability is an entry of the API table reachable through Call.
type Capability func(s *Scope, args ...any) (any, error)

type API map[string]Capability

// Scheduler queues work for the next turn of the cooperative loop.
type Scheduler interface {
	Post(task func())
}

// Lender hands loop ownership to another goroutine until restore is called.
// A scheduler that implements it lets generator bodies dispatch inline.
type Lender interface {
	Lend(gid int64) (restore func())
}

type waiter struct {
	id      string
	pattern any
	mapper  func(model.Action) any
	cb      Callback
	scope   *Scope
}

// Runner resolves effects into results delivered through callbacks.
// All methods except Pending must be called from the scheduler's loop.
type Runner struct {
	api       API
	sched     Scheduler
	lender    Lender
	sup       *supervisor.Supervisor
	logger    *zap.Logger
	unhandled func(error)

	mu      sync.Mutex
	waiters []*waiter
}

type RunnerOption func(*Runner)

func WithLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithUnhandled receives failures that surface outside any Run call:
// rejected promises, panicking generators, errors raised in async continuations.
func WithUnhandled(fn func(error)) RunnerOption {
	return func(r *Runner) { r.unhandled = fn }
}

func NewRunner(ctx context.Context, api API, sched Scheduler, opts ...RunnerOption) *Runner {
	r := &Runner{api: api, sched: sched, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if l, ok := sched.(Lender); ok {
		r.lender = l
	}
	if r.unhandled == nil {
		r.unhandled = func(err error) {
			log.Emit(r.logger, log.LogError, "unhandled effect failure", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	r.sup = supervisor.New(ctx, r.logger)
	return r
}

// Run resolves eff. Results resolved synchronously are delivered before Run
// returns. The handle is nil unless the effect stays active.
func (r *Runner) Run(eff any, cb Callback, scope *Scope, prior ...any) (h *Handle, err error) {
	defer recoverFatal(&err)
	if scope == nil {
		scope = &Scope{Path: model.Path{}}
	}
	return r.run(eff, cb, scope, prior), nil
}

func (r *Runner) run(eff any, cb Callback, s *Scope, prior []any) *Handle {
	switch e := eff.(type) {
	case waitFor:
		r.register(e, cb, s)
		return nil
	case wrapped:
		return r.run(e.inner, cb, s, prior)
	case permanent:
		return r.run(e.inner, cb, s, prior)
	case generator:
		return r.drive(e.body, cb, s)
	case sequence:
		return r.drain(e.seq, cb, s, prior)
	case flow:
		return r.drain(e.seq(), cb, s, prior)
	case call:
		return r.call(e, cb, s, prior)
	case observable:
		return r.subscribe(e.source, cb, s)
	case Observable:
		return r.subscribe(e, cb, s)
	case function:
		return r.run(e.fn(prior...), cb, s, nil)
	case promise:
		r.await(e.task, cb, s)
		return nil
	case recursive:
		return r.visit(e.tree, cb, s)
	case Template:
		initial, ok := e.InitialState()
		if !ok {
			return r.run(Void, cb, s, nil)
		}
		if tree, isTree := initial.(map[string]any); isTree {
			return r.visit(tree, cb, s)
		}
		return r.run(initial, cb, s, nil)
	case raw:
		cb(Result{Value: e.value, Path: s.Path, Done: true, Resolved: true})
		return nil
	default:
		cb(Result{Value: eff, Path: s.Path, Done: true})
		return nil
	}
}

func (r *Runner) call(c call, cb Callback, s *Scope, prior []any) *Handle {
	var fn Capability
	switch m := c.method.(type) {
	case string:
		fn = r.api[m]
		if fn == nil {
			raisef(ErrUnresolvableCall, "%q", m)
		}
	case Capability:
		fn = m
	case func(*Scope, ...any) (any, error):
		fn = m
	default:
		raisef(ErrUnresolvableCall, "%T", c.method)
	}
	if fn == nil {
		raisef(ErrUnresolvableCall, "nil capability")
	}

	out, err := fn(s, c.args...)
	if err != nil {
		Raise(fmt.Errorf("%w: %w", ErrCapabilityFailed, err))
	}
	return r.run(out, cb, s, prior)
}

func (r *Runner) subscribe(src Observable, cb Callback, s *Scope) *Handle {
	h := newHandle(s.Path, KindObservable)
	unsubscribe := src.Subscribe(func(v any) {
		r.sched.Post(r.guard(func() {
			if h.Cancelled() {
				return
			}
			r.run(v, cb, s, nil)
		}))
	})
	if unsubscribe != nil {
		h.whenCancelled(unsubscribe)
	}
	return h
}

func (r *Runner) await(task func(context.Context) (any, error), cb Callback, s *Scope) {
	started := r.sup.Go(func(ctx context.Context) {
		v, err := task(ctx)
		r.sched.Post(r.guard(func() {
			if err != nil {
				r.unhandled(fmt.Errorf("%w at %s: %w", ErrPromiseRejected, s.Path, err))
				return
			}
			r.run(v, cb, s, nil)
		}))
	})
	if !started {
		log.Emit(r.logger, log.LogDebug, "runner closed, promise dropped", map[string]interface{}{
			"path": s.Path.String(),
		})
	}
}

// drain resolves the elements of seq one after another. Each element gets the
// previous element's value as its prior result. Results of all but the last
// element are delivered with Done false.
func (r *Runner) drain(seq iter.Seq[any], cb Callback, s *Scope, prior []any) *Handle {
	next, stop := iter.Pull(seq)
	h := newHandle(s.Path, KindSequence)
	h.whenCancelled(stop)

	cur, ok := next()
	if !ok {
		stop()
		var last any
		if len(prior) > 0 {
			last = prior[0]
		}
		cb(Result{Value: last, Path: s.Path, Done: true})
		return nil
	}

	var step func(cur any, prior []any)
	step = func(cur any, prior []any) {
		for {
			following, more := next()
			if !more {
				stop()
				h.finish()
				h.setSub(r.run(cur, func(res Result) {
					if !h.Cancelled() {
						cb(res)
					}
				}, s, prior))
				return
			}

			advanced, inRun, syncDone := false, true, false
			var value any
			sub := r.run(cur, func(res Result) {
				if advanced || h.Cancelled() {
					return
				}
				cb(Result{Value: res.Value, Path: res.Path, Resolved: res.Resolved, Assembled: res.Assembled})
				if !res.Done {
					return
				}
				advanced = true
				if inRun {
					syncDone, value = true, res.Value
					return
				}
				step(following, []any{res.Value})
			}, s, prior)
			inRun = false
			h.setSub(sub)
			if !syncDone {
				return
			}
			cur, prior = following, []any{value}
		}
	}
	step(cur, prior)

	if h.Finished() {
		return nil
	}
	return h
}

func (r *Runner) register(w waitFor, cb Callback, s *Scope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiters = append(r.waiters, &waiter{
		id:      uuid.New().String(),
		pattern: w.pattern,
		mapper:  w.mapper,
		cb:      cb,
		scope:   s,
	})
}

// Notify resolves the pending waiters matched by action, newest first. Each
// waiter fires at most once. Waiters registered while notifying wait for the
// next action.
func (r *Runner) Notify(action model.Action) (err error) {
	defer recoverFatal(&err)

	r.mu.Lock()
	snapshot := slices.Clone(r.waiters)
	r.mu.Unlock()

	for i := len(snapshot) - 1; i >= 0; i-- {
		w := snapshot[i]
		if !pattern.IsMatch(w.pattern, action) {
			continue
		}
		if !r.take(w.id) {
			continue
		}
		log.Emit(r.logger, log.LogDebug, "waiter resolved", map[string]interface{}{
			"path":   w.scope.Path.String(),
			"action": action.Type,
		})
		r.run(w.mapper(action), w.cb, w.scope, nil)
	}
	return nil
}

func (r *Runner) take(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.waiters, func(w *waiter) bool { return w.id == id })
	if i < 0 {
		return false
	}
	r.waiters = slices.Delete(r.waiters, i, i+1)
	return true
}

// Pending returns the number of unresolved waiters.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}

// guard routes errors raised inside an async continuation to the unhandled hook.
func (r *Runner) guard(task func()) func() {
	return func() {
		var err error
		func() {
			defer recoverFatal(&err)
			task()
		}()
		if err != nil {
			r.unhandled(err)
		}
	}
}

func (r *Runner) lend(gid int64) func() {
	if r.lender == nil {
		return func() {}
	}
	return r.lender.Lend(gid)
}

// Close stops every supervised goroutine and drops pending waiters.
func (r *Runner) Close() error {
	r.sup.Close()
	r.mu.Lock()
	r.waiters = nil
	r.mu.Unlock()
	return nil
}
