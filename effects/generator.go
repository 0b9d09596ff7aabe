package effects

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/petermattis/goid"
)

var errStopped = errors.New("generator stopped")

type genStep struct {
	eff      any
	ret      any
	done     bool
	panicked any
}

// drive runs body as a coroutine on a supervised goroutine. Control moves
// between the driver and the body over unbuffered channels, and the body
// borrows loop ownership while it runs, so exactly one side is active.
func (r *Runner) drive(body GeneratorFunc, cb Callback, s *Scope) *Handle {
	h := newHandle(s.Path, KindGenerator)
	steps := make(chan genStep)
	resume := make(chan any)
	stop := make(chan struct{})
	exited := make(chan struct{})
	started := make(chan int64, 1)

	var stopOnce sync.Once
	h.whenCancelled(func() { stopOnce.Do(func() { close(stop) }) })

	ok := r.sup.Go(func(ctx context.Context) {
		defer close(exited)
		started <- goid.Get()

		select {
		case <-resume:
		case <-stop:
			return
		case <-ctx.Done():
			return
		}

		final := genStep{done: true}
		stopped := false
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == errStopped {
						stopped = true
						return
					}
					final.panicked = rec
				}
			}()
			final.ret = body(func(eff any) any {
				select {
				case steps <- genStep{eff: eff}:
				case <-stop:
					panic(errStopped)
				case <-ctx.Done():
					panic(errStopped)
				}
				select {
				case v := <-resume:
					return v
				case <-stop:
					panic(errStopped)
				case <-ctx.Done():
					panic(errStopped)
				}
			})
		}()
		if stopped {
			return
		}
		select {
		case steps <- final:
		case <-stop:
		case <-ctx.Done():
		}
	})
	if !ok {
		return nil
	}
	gid := <-started

	advance := func(v any) (genStep, bool) {
		restore := r.lend(gid)
		defer restore()
		select {
		case resume <- v:
		case <-exited:
			return genStep{}, false
		}
		select {
		case st := <-steps:
			return st, true
		case <-exited:
			return genStep{}, false
		}
	}

	var step func(v any)
	step = func(v any) {
		defer func() {
			if rec := recover(); rec != nil {
				h.Cancel()
				panic(rec)
			}
		}()
		for {
			if h.Cancelled() {
				return
			}
			st, alive := advance(v)
			if !alive || h.Cancelled() {
				h.finish()
				return
			}
			if st.done {
				h.finish()
				if st.panicked != nil {
					r.unhandled(fmt.Errorf("%w at %s: %v", ErrGeneratorPanicked, s.Path, st.panicked))
					return
				}
				if st.ret == nil || st.ret == Void {
					return
				}
				h.setSub(r.run(st.ret, cb, s, nil))
				return
			}

			taken, inRun, syncDone := false, true, false
			var value any
			sub := r.run(st.eff, func(res Result) {
				if taken || !res.Done || h.Cancelled() {
					return
				}
				taken = true
				if res.Value == Cancel {
					h.Cancel()
					return
				}
				resolved := res.Value
				if resolved == Void {
					resolved = nil
				}
				if inRun {
					syncDone, value = true, resolved
					return
				}
				step(resolved)
			}, s, nil)
			inRun = false
			h.setSub(sub)
			if !syncDone {
				return
			}
			v = value
		}
	}
	step(nil)

	if h.Cancelled() || h.Finished() {
		return nil
	}
	return h
}
