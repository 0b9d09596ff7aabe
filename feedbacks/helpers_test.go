package feedbacks_test

import (
	"context"
	"sync"
	"testing"

	"github.com/on-the-ground/effect_ive_feedbacks/effects/log"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
	"github.com/on-the-ground/effect_ive_feedbacks/feedbacks"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, bp any, opts ...feedbacks.Option) *feedbacks.Engine {
	t.Helper()
	opts = append([]feedbacks.Option{feedbacks.WithLogger(log.NewTestLogger())}, opts...)
	e, err := feedbacks.NewStore(context.Background(), bp, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// subject is an observable the test emits into. It remembers the last
// subscriber so a test can emit into it after it unsubscribed.
type subject struct {
	mu       sync.Mutex
	next     int
	subs     map[int]func(any)
	lastNext func(any)
}

func newSubject() *subject { return &subject{subs: map[int]func(any){}} }

func (s *subject) Subscribe(next func(any)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subs[id] = next
	s.lastNext = next
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

// EmitStale emits to the last subscriber even if it already unsubscribed.
func (s *subject) EmitStale(v any) {
	s.mu.Lock()
	fn := s.lastNext
	s.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

func (s *subject) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

type errorSink struct {
	mu   sync.Mutex
	errs []error
}

func (s *errorSink) collect(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *errorSink) all() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func inc(v any) any { return v.(int) + 1 }

func payload(_ any, a model.Action) any { return a.Payload }
