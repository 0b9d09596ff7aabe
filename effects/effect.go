package effects

import (
	"context"
	"iter"
	"sync"

	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
)

// Effect is a sealed interface over the effect descriptor variants.
// Any value that is not an Effect is a plain value and resolves to itself.
type Effect interface {
	effect()
}

// Template is implemented by blueprint formulas. The runner resolves a
// template as a recursive tree over its initial state.
type Template interface {
	InitialState() (any, bool)
}

// IsEffect reports whether v needs the runner to produce its value.
func IsEffect(v any) bool {
	switch v.(type) {
	case Effect, Template:
		return true
	default:
		return false
	}
}

type sentinel struct{ name string }

func (s *sentinel) String() string { return s.name }

var (
	// Cancel stops the branch that resolves to it: a generator stops advancing,
	// and the bridge writes nothing.
	Cancel any = &sentinel{name: "effects.Cancel"}

	// Void resolves to no write. A generator receives nil for it.
	Void any = &sentinel{name: "effects.Void"}
)

// --- wait-for ---

type waitFor struct {
	pattern any
	mapper  func(model.Action) any
}

func (waitFor) effect() {}

// WaitFor resolves with mapper(action) for the next dispatched action that
// matches pattern. A nil mapper yields the action itself.
func WaitFor(pattern any, mapper func(model.Action) any) Effect {
	if mapper == nil {
		mapper = func(a model.Action) any { return a }
	}
	return waitFor{pattern: pattern, mapper: mapper}
}

// --- wrapper ---

type wrapped struct{ inner any }

func (wrapped) effect() {}

// Wrap marks inner as an effect without changing how it resolves.
func Wrap(inner any) Effect { return wrapped{inner: inner} }

// --- generator ---

// Yield hands a sub-effect to the driver and returns its resolved value.
type Yield func(effect any) any

// GeneratorFunc is a cooperative step sequence. Its return value is the
// generator's result; returning nil or Void delivers nothing.
type GeneratorFunc func(yield Yield) any

type generator struct{ body GeneratorFunc }

func (generator) effect() {}

func Generator(body GeneratorFunc) Effect { return generator{body: body} }

// --- pull iterator ---

type sequence struct{ seq iter.Seq[any] }

func (sequence) effect() {}

// Sequence drains seq, resolving each element with the previous element's
// value as its prior result.
func Sequence(seq iter.Seq[any]) Effect { return sequence{seq: seq} }

// --- flow ---

type flow struct{ steps []any }

func (flow) effect() {}

// Flow is a sequential pipeline. Each step is invoked with the value of the
// step before it; a non-invocable first step is the seed. Plain
// func(any) any and func(...any) any steps are accepted as functions.
func Flow(steps ...any) Effect {
	out := make([]any, len(steps))
	for i, s := range steps {
		switch fn := s.(type) {
		case func(any) any:
			out[i] = Func(func(prior ...any) any {
				if len(prior) == 0 {
					return fn(nil)
				}
				return fn(prior[0])
			})
		case func(...any) any:
			out[i] = Func(fn)
		default:
			out[i] = s
		}
	}
	return flow{steps: out}
}

func (f flow) seq() iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, s := range f.steps {
			if !yield(s) {
				return
			}
		}
	}
}

// --- call ---

type call struct {
	method any
	args   []any
}

func (call) effect() {}

// Call invokes a capability by name, or a Capability value directly.
func Call(method any, args ...any) Effect { return call{method: method, args: args} }

// --- observable ---

// Observable pushes values to its subscriber until unsubscribed.
type Observable interface {
	Subscribe(next func(any)) (unsubscribe func())
}

// ObservableFunc adapts a subscribe function.
type ObservableFunc func(next func(any)) (unsubscribe func())

func (f ObservableFunc) Subscribe(next func(any)) func() { return f(next) }

type observable struct{ source Observable }

func (observable) effect() {}

// Observe treats every emission of source as a fresh effect result.
func Observe(source Observable) Effect { return observable{source: source} }

// AsObservable returns the source of an Observe effect or a bare Observable.
func AsObservable(v any) (Observable, bool) {
	switch o := v.(type) {
	case observable:
		return o.source, true
	case Observable:
		return o, true
	default:
		return nil, false
	}
}

// FromChannel emits every value received from ch until ch is closed or the
// subscription is cancelled.
func FromChannel[T any](ch <-chan T) Observable {
	return ObservableFunc(func(next func(any)) func() {
		stop := make(chan struct{})
		var once sync.Once
		go func() {
			for {
				select {
				case <-stop:
					return
				case v, ok := <-ch:
					if !ok {
						return
					}
					next(v)
				}
			}
		}()
		return func() { once.Do(func() { close(stop) }) }
	})
}

// --- function ---

type function struct{ fn func(prior ...any) any }

func (function) effect() {}

// Func is invoked with the prior results; its return value is resolved again.
func Func(fn func(prior ...any) any) Effect { return function{fn: fn} }

// --- promise ---

type promise struct {
	task func(context.Context) (any, error)
}

func (promise) effect() {}

// Promise runs task on its own goroutine. The settled value is resolved on
// the scheduler, never synchronously.
func Promise(task func(ctx context.Context) (any, error)) Effect { return promise{task: task} }

// Resolve is an already settled promise. It still resolves asynchronously.
func Resolve(v any) Effect {
	return Promise(func(context.Context) (any, error) { return v, nil })
}

// --- recursive tree ---

type recursive struct{ tree map[string]any }

func (recursive) effect() {}

// Recursive resolves every leaf of tree in parallel and reassembles the
// results at the same relative paths.
func Recursive(tree map[string]any) Effect { return recursive{tree: tree} }

// --- raw ---

type raw struct{ value any }

func (raw) effect() {}

// Raw is an already resolved terminal value.
func Raw(v any) Effect { return raw{value: v} }

// Unraw returns the value inside a Raw effect.
func Unraw(v any) (any, bool) {
	r, ok := v.(raw)
	return r.value, ok
}

// --- permanent ---

type permanent struct{ inner any }

func (permanent) effect() {}

// Permanent marks an effect that the bridge re-runs whenever a dependency it
// selected has changed.
func Permanent(inner any) Effect { return permanent{inner: inner} }

// AsPermanent returns the inner effect of a Permanent marker.
func AsPermanent(v any) (any, bool) {
	p, ok := v.(permanent)
	return p.inner, ok
}
