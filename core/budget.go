package core

import "fmt"

// DefaultBudget is the number of proceed checkpoints a task may pass on each
// resume before it is asked to yield.
//
// The value itself is chosen somewhat arbitrarily. It needs to be high enough
// to amortize wakeup and scheduling costs, but low enough that a runaway task
// does not starve its siblings for too long. It also needs to be high enough
// that deeply nested tasks get to do at least some useful work per resume.
// Treat it as a tunable parameter, not a law; BudgetWithLimit exists for
// callers that want a different trade-off.
const DefaultBudget uint8 = 128

// Budget tracks the amount of "work" a task may still do before yielding back
// to the scheduler.
//
// A Budget is either unconstrained (no limit, the state of a worker outside
// any budgeted region) or limited with a remaining checkpoint count. It is a
// plain value: Decrement returns a new Budget rather than mutating in place,
// so a stale copy can never corrupt the register it was read from.
type Budget struct {
	remaining uint8
	limited   bool
}

// UnconstrainedBudget returns a budget with no limit. Checkpoints will never
// report exhaustion against it.
func UnconstrainedBudget() Budget {
	return Budget{}
}

// InitialBudget returns the budget assigned to a task on each resume.
func InitialBudget() Budget {
	return Budget{remaining: DefaultBudget, limited: true}
}

// BudgetWithLimit returns a limited budget with a custom starting count.
func BudgetWithLimit(n uint8) Budget {
	return Budget{remaining: n, limited: true}
}

// Decrement consumes one checkpoint from the budget.
//
// It returns the resulting budget and true when the caller may proceed, or
// the receiver unchanged and false when the budget is exhausted. The count
// never wraps: decrementing an exhausted budget reports exhaustion instead.
// An unconstrained budget always proceeds and is returned unchanged.
func (b Budget) Decrement() (Budget, bool) {
	if !b.limited {
		return b, true
	}
	if b.remaining == 0 {
		return b, false
	}
	return Budget{remaining: b.remaining - 1, limited: true}, true
}

// HasRemaining reports whether at least one more checkpoint would proceed.
func (b Budget) HasRemaining() bool {
	return !b.limited || b.remaining > 0
}

// IsUnconstrained reports whether the budget carries no limit.
func (b Budget) IsUnconstrained() bool {
	return !b.limited
}

// Remaining returns the remaining checkpoint count and whether the budget is
// limited at all. The count is only meaningful when limited is true.
func (b Budget) Remaining() (uint8, bool) {
	return b.remaining, b.limited
}

// String renders the budget for logs and debug output.
func (b Budget) String() string {
	if !b.limited {
		return "unconstrained"
	}
	return fmt.Sprintf("remaining(%d)", b.remaining)
}
