package core

import "context"

// Register is the budget slot owned by a single worker goroutine.
//
// Go has no thread-local storage, so instead of a hidden global each worker
// creates one Register when its loop starts and threads it to tasks through
// the run context (see WithBudgetRegister). A Register must never be shared
// between goroutines: all accounting is per-worker and the slot is
// unsynchronized.
//
// The register starts unconstrained. It only ever holds a finite value while
// a RunBudgeted region is active; the checkpoint decrement in Proceed is the
// only other mutation during a region.
type Register struct {
	current Budget
}

// NewBudgetRegister creates a register holding an unconstrained budget.
// Workers call this once at loop start.
func NewBudgetRegister() *Register {
	return &Register{current: UnconstrainedBudget()}
}

// Get returns the budget currently held by the register.
func (r *Register) Get() Budget {
	return r.current
}

// Set stores a budget into the register.
func (r *Register) Set(b Budget) {
	r.current = b
}

// HasRemaining reports whether the current budget would allow at least one
// more checkpoint, without performing a decrement. The scheduler uses this
// for its inline-rerun heuristic; leaf operations should call Proceed instead.
func (r *Register) HasRemaining() bool {
	if r == nil {
		return true
	}
	return r.current.HasRemaining()
}

// ForceUnconstrained removes the budgeting constraint with no restoration
// semantics. It is meant for workers that are exempt from fairness accounting,
// such as a goroutine dedicated to running blocking adapters, and must not be
// used on a worker that later depends on the previous register value.
func (r *Register) ForceUnconstrained() {
	r.current = UnconstrainedBudget()
}

// RunBudgeted runs body inside a budgeted region.
//
// The previous budget is read, a fresh InitialBudget is installed, and the
// previous value is restored when body returns, no matter how it returns.
// The restore runs in a defer so a panic propagating out of body cannot leave
// the register corrupted for subsequent work on the same worker. Regions
// nest: an inner region gets its own full allowance and on exit the enclosing
// region's count resumes exactly where it left off.
func (r *Register) RunBudgeted(body func()) {
	prev := r.current
	r.current = InitialBudget()
	defer func() {
		r.current = prev
	}()
	body()
}

// RunBudgetedResult is RunBudgeted for bodies that produce a value, such as
// the resume of a PollTask. The restore guarantee is identical.
func RunBudgetedResult[T any](r *Register, body func() T) T {
	prev := r.current
	r.current = InitialBudget()
	defer func() {
		r.current = prev
	}()
	return body()
}

// =============================================================================
// Context Helper
// =============================================================================

type budgetRegisterKeyType struct{}

var budgetRegisterKey budgetRegisterKeyType

// WithBudgetRegister attaches a worker's register to the run context handed
// to tasks. Workers call this once when building their run context.
func WithBudgetRegister(ctx context.Context, r *Register) context.Context {
	return context.WithValue(ctx, budgetRegisterKey, r)
}

// BudgetRegisterFromContext returns the register of the worker executing the
// current task, or nil when the context does not belong to a budgeted worker.
func BudgetRegisterFromContext(ctx context.Context) *Register {
	if v := ctx.Value(budgetRegisterKey); v != nil {
		return v.(*Register)
	}
	return nil
}

// HasBudgetRemaining reports whether the current task's budget allows more
// work, without decrementing. Outside any budgeted worker it returns true.
func HasBudgetRemaining(ctx context.Context) bool {
	return BudgetRegisterFromContext(ctx).HasRemaining()
}
