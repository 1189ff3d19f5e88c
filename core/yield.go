package core

import "context"

// Poll is the outcome of resuming a cooperative unit of work.
type Poll int

const (
	// PollReady means the operation completed (or, from Proceed, that the
	// caller may continue doing work).
	PollReady Poll = iota

	// PollPending means the caller must suspend and return control to the
	// scheduler now; the waker has been armed to trigger a retry.
	PollPending
)

func (p Poll) String() string {
	switch p {
	case PollReady:
		return "ready"
	case PollPending:
		return "pending"
	default:
		return "unknown"
	}
}

// Waker is the resumption signal for a suspended PollTask. Wake marks the
// task as runnable again; the executor reposts it on the next scheduling
// turn. Wake must be safe to call from any goroutine and is idempotent while
// the task is suspended.
type Waker interface {
	Wake()
}

// Proceed is the voluntary yield checkpoint.
//
// A leaf operation calls Proceed after doing some work. PollReady means the
// budget allowed the work and was decremented; the caller continues.
// PollPending means the budget for this resume is exhausted: the register is
// left untouched, the waker is armed so the scheduler retries the task
// promptly, and the caller must suspend immediately.
//
// Outside any budgeted worker (no register in ctx) Proceed always returns
// PollReady, so leaf operations are safe to reuse in unbudgeted contexts.
//
// Place checkpoints in leaf operations only -- ones that do not themselves
// resume nested units. A checkpoint at every level of a deep call chain
// counts one piece of real work many times and silently shrinks the
// effective budget.
func Proceed(ctx context.Context, waker Waker) Poll {
	r := BudgetRegisterFromContext(ctx)
	if r == nil {
		return PollReady
	}

	next, ok := r.current.Decrement()
	if !ok {
		if waker != nil {
			waker.Wake()
		}
		return PollPending
	}

	r.current = next
	return PollReady
}

// PollYield consumes one checkpoint using the waker installed in the run
// context. It is the convenient form of Proceed for iterator-style leaves:
//
//	for item := range source {
//		process(item)
//		if core.PollYield(ctx) == core.PollPending {
//			return core.PollPending
//		}
//	}
func PollYield(ctx context.Context) Poll {
	return Proceed(ctx, WakerFromContext(ctx))
}

// =============================================================================
// Context Helper
// =============================================================================

type wakerKeyType struct{}

var wakerKey wakerKeyType

// WithWaker attaches the current task's resumption signal to its run context.
// The executor installs this before each resume of a PollTask.
func WithWaker(ctx context.Context, w Waker) context.Context {
	return context.WithValue(ctx, wakerKey, w)
}

// WakerFromContext returns the suspension handle of the task being resumed,
// or nil when the context does not belong to a PollTask resume.
func WakerFromContext(ctx context.Context) Waker {
	if v := ctx.Value(wakerKey); v != nil {
		return v.(Waker)
	}
	return nil
}
