package effects

import (
	"errors"
	"fmt"
)

var (
	ErrUnresolvableCall  = errors.New("call target is neither a capability nor a function")
	ErrCapabilityFailed  = errors.New("capability failed")
	ErrGeneratorPanicked = errors.New("generator panicked")
	ErrPromiseRejected   = errors.New("promise rejected")
)

type fatal struct{ err error }

func (f fatal) Error() string { return f.err.Error() }

// Raise aborts the current Run with err. Run and Notify return it to their caller.
func Raise(err error) {
	panic(fatal{err: err})
}

// recoverFatal turns a Raise panic into *errp. Other panics keep unwinding.
func recoverFatal(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if f, ok := r.(fatal); ok {
		*errp = f.err
		return
	}
	panic(r)
}

func raisef(base error, format string, args ...any) {
	Raise(fmt.Errorf("%w: "+format, append([]any{base}, args...)...))
}

func RaiseIfErrOnly(fn func() error) {
	if err := fn(); err != nil {
		Raise(err)
	}
}
