package feedbacks

import (
	"context"
	"errors"
	"fmt"

	"github.com/on-the-ground/effect_ive_feedbacks/blueprint"
	"github.com/on-the-ground/effect_ive_feedbacks/config"
	"github.com/on-the-ground/effect_ive_feedbacks/effects"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/log"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
	"github.com/on-the-ground/effect_ive_feedbacks/internal/registry"
	"github.com/on-the-ground/effect_ive_feedbacks/internal/scheduler"
	"github.com/on-the-ground/effect_ive_feedbacks/shared/helper"
	"github.com/on-the-ground/effect_ive_feedbacks/store"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	ErrMissingStore       = errors.New("feedbacks middleware needs a store")
	ErrDeprecatedGetState = errors.New("getState is no longer supported, use select instead")
	ErrMalformedSelect    = errors.New("select expects a path: dotted string, []string or model.Path")
	ErrMalformedArgument  = errors.New("malformed capability argument")
)

type customHandler struct {
	pattern any
	handle  func(action model.Action) any
}

type pendingEffect struct {
	path   model.Path
	effect any
}

// Engine is the reducer and middleware pair that drives blueprints and their
// effects. Everything except Source, Close and the read accessors must run
// on the store's loop, which the store guarantees.
type Engine struct {
	cfg       config.Config
	logger    *zap.Logger
	ownLogger bool
	unhandled func(error)

	ctx    context.Context
	api    store.API
	store  *store.Store
	loop   *scheduler.Loop
	runner *effects.Runner

	ongoing    *registry.Registry
	detached   []*effects.Handle
	permanents *permanents
	inPass     bool

	handlers []customHandler
	extra    effects.API

	blueprint any
	collected []pendingEffect
	items     *blueprint.Cache

	sink chan Commit
}

// New builds an engine that is not yet attached to a store. Attach it with
// store.Use(e.Middleware()) on a store reducing with e.Reduce, then call Mount.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:        config.Default(),
		extra:      effects.API{},
		permanents: newPermanents(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if e.logger == nil {
		logger, err := log.New(e.cfg.Log.Level, e.cfg.Log.Development)
		if err != nil {
			return nil, err
		}
		e.logger, e.ownLogger = logger, true
	}
	if e.unhandled == nil {
		e.unhandled = func(err error) {
			log.Emit(e.logger, log.LogError, "unhandled effect failure", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	var err error
	if e.ongoing, err = registry.New(e.logger); err != nil {
		return nil, err
	}
	if e.items, err = blueprint.NewCache(e.cfg.Cache); err != nil {
		return nil, err
	}
	e.sink = make(chan Commit, e.cfg.Commits.BufferSize)
	e.ctx = ctx
	if e.ctx == nil {
		e.ctx = context.Background()
	}
	return e, nil
}

// NewStore creates a store driven by a new engine and mounts bp at the root.
func NewStore(ctx context.Context, bp any, opts ...Option) (*Engine, error) {
	e, err := New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	s := store.New(ctx, e.Reduce, map[string]any{}, store.WithLogger(e.logger))
	s.Use(e.Middleware())
	if err := e.Mount(nil, bp); err != nil {
		return nil, multierr.Append(err, e.Close())
	}
	return e, nil
}

// Middleware attaches the engine to a store. It panics with ErrMissingStore
// when given no store.
func (e *Engine) Middleware() store.Middleware {
	return func(api store.API) func(store.DispatchFunc) store.DispatchFunc {
		if s, ok := api.(*store.Store); api == nil || (ok && s == nil) {
			panic(ErrMissingStore)
		}
		e.attach(api)
		return func(next store.DispatchFunc) store.DispatchFunc {
			return func(action model.Action) error {
				return e.handle(next, action)
			}
		}
	}
}

// attach binds the engine to api. A store that cannot schedule work gets a
// loop of the engine's own for asynchronous results.
func (e *Engine) attach(api store.API) {
	e.api = api
	if s, ok := api.(*store.Store); ok {
		e.store = s
	}
	sched, ok := api.(effects.Scheduler)
	if !ok {
		e.loop = scheduler.New(e.ctx, e.logger)
		sched = e.loop
	}
	e.runner = effects.NewRunner(e.ctx, e.capabilities(), sched,
		effects.WithLogger(e.logger),
		effects.WithUnhandled(e.unhandled),
	)
}

// Mount installs bp at p and replaces the state there with bp's initial state.
// Observables found in bp are subscribed at their paths.
func (e *Engine) Mount(p model.Path, bp any) error {
	if e.api == nil {
		return ErrMissingStore
	}
	if p == nil {
		p = model.Path{}
	}
	return e.do(func() error { return e.mount(p, bp) })
}

// do runs fn on the store loop when the engine owns one.
func (e *Engine) do(fn func() error) error {
	if e.store == nil {
		return fn()
	}
	var err error
	if loopErr := e.store.Do(func() { err = fn() }); loopErr != nil {
		return loopErr
	}
	return err
}

func (e *Engine) Dispatch(action model.Action) error {
	if e.api == nil {
		return ErrMissingStore
	}
	return e.api.Dispatch(action)
}

func (e *Engine) GetState() any {
	if e.api == nil {
		return nil
	}
	return e.api.GetState()
}

// State returns the state tree, or an empty tree if the root is not a map.
func (e *Engine) State() map[string]any {
	if m, ok := e.GetState().(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// Subscribe calls fn with the new state after every reduced action.
func (e *Engine) Subscribe(fn store.Listener) (unsubscribe func()) {
	if e.store == nil {
		return func() {}
	}
	return e.store.Subscribe(fn)
}

// Flush waits until every result queued on the loop so far has been applied.
func (e *Engine) Flush() error {
	if e.store == nil {
		return nil
	}
	return e.store.Flush()
}

// Source streams every applied path-scoped write. Writes are dropped while
// the channel is full.
func (e *Engine) Source() <-chan Commit { return e.sink }

// Ongoing lists the effects still running, one per path.
func (e *Engine) Ongoing() []*effects.Handle {
	var handles []*effects.Handle
	_ = e.do(func() error {
		if err := e.ongoing.Prune(); err != nil {
			return err
		}
		var err error
		handles, err = e.ongoing.Handles()
		return err
	})
	return handles
}

// OngoingAt returns the effect still running at path.
func (e *Engine) OngoingAt(path string) (*effects.Handle, bool) {
	var (
		h     *effects.Handle
		found bool
	)
	_ = e.do(func() error {
		if err := e.ongoing.Prune(); err != nil {
			return err
		}
		var err error
		h, found, err = e.ongoing.Get(model.ParsePath(path))
		return err
	})
	return h, found
}

// PendingWaiters counts WaitFor effects not yet resolved.
func (e *Engine) PendingWaiters() int {
	if e.runner == nil {
		return 0
	}
	return e.runner.Pending()
}

// Permanents lists the paths of registered permanent effects, in registration order.
func (e *Engine) Permanents() []model.Path {
	var paths []model.Path
	_ = e.do(func() error {
		paths = e.permanents.paths()
		return nil
	})
	return paths
}

// Select reads the value at path as a T.
func Select[T any](e *Engine, path string) (T, error) {
	return helper.LookupTyped[T](func() (any, bool) {
		return model.GetIn(e.GetState(), model.ParsePath(path))
	})
}

// Close cancels every running effect and stops the store.
func (e *Engine) Close() error {
	var errs error
	cancelErr := e.do(func() error {
		var err error
		err = multierr.Append(err, e.ongoing.CancelAll())
		for _, h := range e.detached {
			h.Cancel()
		}
		e.detached = nil
		return err
	})
	if cancelErr != nil && !errors.Is(cancelErr, scheduler.ErrClosed) {
		errs = multierr.Append(errs, fmt.Errorf("failed to cancel ongoing effects: %w", cancelErr))
	}
	if e.runner != nil {
		errs = multierr.Append(errs, e.runner.Close())
	}
	if e.store != nil {
		e.store.Close()
	}
	if e.loop != nil {
		e.loop.Close()
	}
	e.items.Close()
	if e.ownLogger {
		log.Sync(e.logger)
	}
	return errs
}
