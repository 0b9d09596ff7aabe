// Package supervisor owns the goroutines the runner spawns for promises,
// delays and generator coroutines.
package supervisor

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/log"
	"go.uber.org/zap"
)

// Supervisor manages the lifecycle of child goroutines.
//
//   - Every child gets its own cancellable context.
//   - Cancelling the parent context, or Close, cancels every child.
//   - Panics in children are recovered and logged.
//   - Close joins all children.
type Supervisor struct {
	ID string

	logger *zap.Logger
	wg     sync.WaitGroup

	mu              sync.Mutex
	childrenCancels []context.CancelFunc
	closed          bool

	doneCh  chan struct{}
	readyCh chan struct{}
}

func New(parent context.Context, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Supervisor{
		ID:              uuid.New().String(),
		logger:          logger,
		childrenCancels: make([]context.CancelFunc, 0),
		doneCh:          make(chan struct{}),
		readyCh:         make(chan struct{}),
	}
	s.watchParentCancel(parent)
	return s
}

// watchParentCancel propagates cancellation of the parent context to every child.
func (s *Supervisor) watchParentCancel(parent context.Context) {
	go func() {
		close(s.readyCh)
		select {
		case <-parent.Done():
			log.Emit(s.logger, log.LogInfo, "parent context cancelled, cancelling children", map[string]interface{}{
				"supervisor": s.ID,
			})
			s.cancelChildren()
		case <-s.doneCh:
		}
	}()
	<-s.readyCh
}

func (s *Supervisor) cancelChildren() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancelFn := range s.childrenCancels {
		cancelFn()
	}
}

// Go runs fn on a new goroutine. It reports false if the supervisor is closed.
func (s *Supervisor) Go(fn func(ctx context.Context)) bool {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return false
	}
	s.childrenCancels = append(s.childrenCancels, cancel)
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				log.Emit(s.logger, log.LogError, "panic in supervised routine", map[string]interface{}{
					"supervisor": s.ID,
					"error":      r,
				})
			}
		}()
		fn(ctx)
	}()
	return true
}

// Close cancels every child and waits for all of them to return.
func (s *Supervisor) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancelChildren()
	close(s.doneCh)

	log.Emit(s.logger, log.LogDebug, "waiting for all routines to finish", map[string]interface{}{
		"supervisor": s.ID,
	})
	s.wg.Wait()
	log.Emit(s.logger, log.LogDebug, "all routines finished", map[string]interface{}{
		"supervisor": s.ID,
	})
}
