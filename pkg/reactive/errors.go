package reactive

import (
	"errors"
	"fmt"

	rerrors "github.com/vango-dev/reactor/internal/errors"
)

// ErrTornDown is returned when a torn-down watcher is asked to evaluate.
var ErrTornDown = errors.New("reactive: watcher torn down")

// ErrScopeMounted is returned when Mount is called twice on a scope.
var ErrScopeMounted = errors.New("reactive: scope already mounted")

// ErrScopeDestroyed is returned when mounting a destroyed scope.
var ErrScopeDestroyed = errors.New("reactive: scope destroyed")

// ErrLoopRunning is returned by EventLoop.Run when the loop is already running.
var ErrLoopRunning = errors.New("reactive: event loop already running")

// EvalError wraps a failure raised while evaluating a watcher's getter,
// running its callback, a lifecycle hook or a nextTick callback.
type EvalError struct {
	// Code is the diagnostic code: R003 for getters, R004 for callbacks,
	// R007 for hooks and R008 for nextTick callbacks.
	Code string

	// Info describes where the failure happened, e.g. `getter for watcher "a.b"`.
	Info string

	// Recovered is the recovered panic value.
	Recovered any
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	return fmt.Sprintf("reactive: error in %s: %v", e.Info, e.Recovered)
}

// Unwrap returns the recovered value when it is an error.
func (e *EvalError) Unwrap() error {
	if err, ok := e.Recovered.(error); ok {
		return err
	}
	return nil
}

// Diagnostic returns the coded diagnostic for e.
func (e *EvalError) Diagnostic() *rerrors.Diagnostic {
	return rerrors.New(e.Code).WithSubject(e.Info).Wrap(e)
}

// CycleError reports a watcher that kept re-entering the queue during a
// single flush. The rest of that flush is abandoned.
type CycleError struct {
	WatcherID  uint64
	Expression string
	Count      int
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return e.Diagnostic().Error()
}

// Diagnostic returns the coded diagnostic for e.
func (e *CycleError) Diagnostic() *rerrors.Diagnostic {
	return rerrors.New(rerrors.CodeUpdateLoop).
		WithSubject(fmt.Sprintf("watcher %q (id %d, %d runs in one flush)", e.Expression, e.WatcherID, e.Count))
}

// recoverEval converts a recovered panic into an *EvalError. An *EvalError
// raised by a nested evaluation is passed through unchanged.
func recoverEval(r any, code, info string) error {
	if ee, ok := r.(*EvalError); ok {
		return ee
	}
	return &EvalError{Code: code, Info: info, Recovered: r}
}
