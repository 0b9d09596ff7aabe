// Package effects describes effects as data and resolves them.
//
// An effect is a value that asks for another value to be produced, maybe
// later, maybe many times. Business logic returns effects instead of
// performing side effects itself, and the Runner turns every supported shape
// into results delivered through one callback.
//
// # Shapes
//
// Every shape has its own constructor and is recognised by type, never by
// inspecting methods at resolution time:
//   - plain values resolve to themselves, synchronously
//   - Call invokes a capability from the runner's API table
//   - Promise runs a task on a supervised goroutine
//   - Func is invoked with the prior results
//   - Generator is a coroutine whose yielded sub-effects are resolved in turn
//   - Sequence and Flow resolve elements one after another
//   - Observe subscribes to a push source until cancelled
//   - WaitFor resolves with the next matching action, once
//   - Recursive resolves a tree of effects in parallel
//   - Raw is a resolved value that must not be interpreted again
//
// # Scheduling
//
// The Runner never starts threads of control of its own beyond promise tasks
// and generator bodies. Results that arrive later are posted to the
// Scheduler, so every callback runs on the cooperative loop, in the order
// the underlying sources fired.
//
// # Cancellation
//
// Run returns a Handle for effects that stay active. Cancelling a generator
// drops whatever its pending sub-effect resolves to; cancelling an
// observable unsubscribes it.
package effects
