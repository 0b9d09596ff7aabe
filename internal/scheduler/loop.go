// Package scheduler runs every state transition on one cooperative loop.
//
// The loop goroutine owns the store. Other goroutines hand work to it with
// Post (fire and forget) or Do (wait for completion). Code already running on
// the loop, or on a goroutine the loop has lent its ownership to, executes Do
// inline, which keeps dispatch re-entrant.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/log"
	"github.com/petermattis/goid"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("scheduler loop is closed")

// IMPORTANT:
// Tasks run one at a time, in the order they were posted. Ownership moves
// between goroutines only through Lend, and the lender blocks until the
// borrower hands control back, so no two goroutines ever run tasks at once.
type Loop struct {
	ID string

	logger *zap.Logger

	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool

	owner atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}
}

func New(ctx context.Context, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	l := &Loop{
		ID:     uuid.New().String(),
		logger: logger,
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}

	ready := make(chan struct{})
	go func() {
		defer close(l.doneCh)
		l.owner.Store(goid.Get())
		close(ready)
		l.run()
	}()
	<-ready

	log.Emit(l.logger, log.LogInfo, "scheduler loop started", map[string]interface{}{"loop": l.ID})
	return l
}

func (l *Loop) run() {
	for {
		task, ok := l.pop()
		if ok {
			l.exec(task)
			continue
		}
		select {
		case <-l.wake:
		case <-l.ctx.Done():
			return
		}
	}
}

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

func (l *Loop) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Emit(l.logger, log.LogError, "panic in scheduled task", map[string]interface{}{
				"loop":  l.ID,
				"error": r,
			})
		}
	}()
	task()
}

// Post enqueues task. It never blocks and never runs task inline.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		log.Emit(l.logger, log.LogDebug, "dropping task posted to closed loop", map[string]interface{}{"loop": l.ID})
		return
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// InLoop reports whether the calling goroutine currently owns the loop.
func (l *Loop) InLoop() bool {
	return l.owner.Load() == goid.Get()
}

// Do runs task on the loop and waits for it. Called from the owning
// goroutine it runs inline. A panic in task is re-raised in the caller.
func (l *Loop) Do(task func()) error {
	if l.InLoop() {
		task()
		return nil
	}

	done := make(chan struct{})
	var panicked any
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	l.Post(func() {
		defer close(done)
		defer func() { panicked = recover() }()
		task()
	})

	select {
	case <-done:
	case <-l.ctx.Done():
		select {
		case <-done:
		default:
			return fmt.Errorf("%w: task abandoned", ErrClosed)
		}
	}
	if panicked != nil {
		panic(panicked)
	}
	return nil
}

// Lend makes the goroutine gid the owner until restore is called. The caller
// must block while the borrower runs.
func (l *Loop) Lend(gid int64) (restore func()) {
	prev := l.owner.Swap(gid)
	return func() { l.owner.Store(prev) }
}

// Flush returns once every task posted before it has run.
func (l *Loop) Flush() error {
	return l.Do(func() {})
}

// Close stops the loop. Tasks still queued are dropped.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	dropped := len(l.queue)
	l.queue = nil
	l.mu.Unlock()

	l.cancel()
	<-l.doneCh
	log.Emit(l.logger, log.LogInfo, "scheduler loop closed", map[string]interface{}{
		"loop":    l.ID,
		"dropped": dropped,
	})
}
