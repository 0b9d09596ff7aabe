package effects_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/on-the-ground/effect_ive_feedbacks/effects"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/log"
)

// queueScheduler holds posted tasks until the test runs them.
type queueScheduler struct {
	tasks chan func()
}

func newQueueScheduler() *queueScheduler {
	return &queueScheduler{tasks: make(chan func(), 64)}
}

func (q *queueScheduler) Post(task func()) { q.tasks <- task }

func (q *queueScheduler) runNext(t *testing.T) {
	t.Helper()
	select {
	case task := <-q.tasks:
		task()
	case <-time.After(time.Second):
		t.Fatal("no task was posted")
	}
}

func (q *queueScheduler) queued() int { return len(q.tasks) }

type collector struct {
	mu      sync.Mutex
	results []effects.Result
}

func (c *collector) cb(res effects.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, res)
}

func (c *collector) all() []effects.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]effects.Result, len(c.results))
	copy(out, c.results)
	return out
}

func (c *collector) values() []any {
	var out []any
	for _, res := range c.all() {
		out = append(out, res.Value)
	}
	return out
}

// subject is an observable the test emits into.
type subject struct {
	mu   sync.Mutex
	next int
	subs map[int]func(any)
}

func newSubject() *subject { return &subject{subs: map[int]func(any){}} }

func (s *subject) Subscribe(next func(any)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subs[id] = next
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *subject) Emit(v any) {
	s.mu.Lock()
	subs := make([]func(any), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
}

func (s *subject) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

type testRunner struct {
	*effects.Runner
	sched     *queueScheduler
	mu        sync.Mutex
	unhandled []error
}

func newTestRunner(t *testing.T, api effects.API) *testRunner {
	t.Helper()
	tr := &testRunner{sched: newQueueScheduler()}
	tr.Runner = effects.NewRunner(context.Background(), api, tr.sched,
		effects.WithLogger(log.NewTestLogger()),
		effects.WithUnhandled(func(err error) {
			tr.mu.Lock()
			defer tr.mu.Unlock()
			tr.unhandled = append(tr.unhandled, err)
		}),
	)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func (tr *testRunner) errors() []error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]error(nil), tr.unhandled...)
}
