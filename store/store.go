// Package store is a small unidirectional state container. Every dispatch
// runs on one cooperative loop, so reducers and middlewares never race.
package store

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/log"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
	"github.com/on-the-ground/effect_ive_feedbacks/internal/scheduler"
	"go.uber.org/zap"
)

type Reducer func(state any, action model.Action) any

type DispatchFunc func(action model.Action) error

// API is the part of the store a middleware sees.
type API interface {
	GetState() any
	Dispatch(action model.Action) error
}

type Middleware func(api API) func(next DispatchFunc) DispatchFunc

type Listener func(state any)

type listener struct {
	id string
	fn Listener
}

type Store struct {
	loop    *scheduler.Loop
	logger  *zap.Logger
	reducer Reducer

	mu    sync.RWMutex
	state any

	dispatch DispatchFunc

	lmu       sync.Mutex
	listeners []listener
}

var _ API = (*Store)(nil)

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func New(ctx context.Context, reducer Reducer, initial any, opts ...Option) *Store {
	s := &Store{reducer: reducer, state: initial, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.loop = scheduler.New(ctx, s.logger)
	s.dispatch = s.apply
	return s
}

// Use wraps the dispatch chain with mws. The first middleware sees actions first.
func (s *Store) Use(mws ...Middleware) {
	for _, mw := range slices.Backward(mws) {
		s.dispatch = mw(s)(s.dispatch)
	}
}

func (s *Store) apply(action model.Action) error {
	s.mu.Lock()
	next := s.reducer(s.state, action)
	s.state = next
	s.mu.Unlock()

	s.lmu.Lock()
	ls := slices.Clone(s.listeners)
	s.lmu.Unlock()
	for _, l := range ls {
		l.fn(next)
	}
	return nil
}

func (s *Store) GetState() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch runs action through the middleware chain and the reducer. On the
// loop it runs inline; elsewhere it waits for the loop.
func (s *Store) Dispatch(action model.Action) error {
	var err error
	if loopErr := s.loop.Do(func() { err = s.dispatch(action) }); loopErr != nil {
		return loopErr
	}
	return err
}

// Subscribe calls fn after every reduced action with the new state.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	id := uuid.New().String()
	s.lmu.Lock()
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(l listener) bool { return l.id == id })
	}
}

// Post queues task on the loop.
func (s *Store) Post(task func()) { s.loop.Post(task) }

// Lend hands loop ownership to goroutine gid until restore is called.
func (s *Store) Lend(gid int64) (restore func()) { return s.loop.Lend(gid) }

// Do runs task on the loop and waits for it.
func (s *Store) Do(task func()) error { return s.loop.Do(task) }

// Flush waits until every task queued so far has run.
func (s *Store) Flush() error { return s.loop.Flush() }

func (s *Store) Close() {
	s.loop.Close()
	log.Emit(s.logger, log.LogDebug, "store closed", nil)
}
