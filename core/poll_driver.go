package core

import (
	"context"
	"sync"
)

// pollDriver drives one PollTask through repeated resumes until it completes.
//
// The driver is the task's Waker: Proceed arms it on budget exhaustion, and
// any other leaf may arm it from any goroutine. State machine per resume:
//
//   - task returns PollReady: finished, the driver is dropped.
//   - task returns PollPending and the waker fired during the resume: the
//     task is immediately runnable again. It goes to the worker's inline
//     rerun slot when the resume ended with budget to spare, otherwise to
//     the back of the ready queue so siblings get a turn first.
//   - task returns PollPending with no wake yet: the driver parks. The next
//     Wake reposts it, exactly once.
type pollDriver struct {
	task          PollTask
	traits        TaskTraits
	post          func(Task, TaskTraits)
	onBudgetYield func()

	mu       sync.Mutex
	notified bool
	parked   bool
}

// WrapPollTask converts a resumable task into a self-reposting Task that a
// budgeted worker can execute. post must enqueue the given Task for a later
// scheduling turn; onBudgetYield (optional) is invoked each time the task is
// requeued because its checkpoint budget ran out.
func WrapPollTask(task PollTask, traits TaskTraits, post func(Task, TaskTraits), onBudgetYield func()) Task {
	d := &pollDriver{
		task:          task,
		traits:        traits,
		post:          post,
		onBudgetYield: onBudgetYield,
	}
	return d.resume
}

// Wake marks the task runnable again. While the task is mid-resume the wake
// is latched and consumed when the resume returns; while parked it reposts
// the task, exactly once per park.
func (d *pollDriver) Wake() {
	d.mu.Lock()
	if d.parked {
		d.parked = false
		d.mu.Unlock()
		d.post(d.resume, d.traits)
		return
	}
	d.notified = true
	d.mu.Unlock()
}

// resume is the Task the worker actually executes, once per scheduling turn.
// The worker has already entered the budgeted region for this resume.
func (d *pollDriver) resume(ctx context.Context) {
	reg := BudgetRegisterFromContext(ctx)

	result := d.task(WithWaker(ctx, d))

	// Read while still inside the region: after the worker's region exits
	// the register reverts to the enclosing value.
	budgetLeft := reg.HasRemaining()

	if result == PollReady {
		return
	}

	d.mu.Lock()
	if !d.notified {
		// Suspended for real; Wake will repost us.
		d.parked = true
		d.mu.Unlock()
		return
	}
	d.notified = false
	d.mu.Unlock()

	// Woken during its own resume. With budget left this was an ordinary
	// readiness wake, so retry on this worker without a queue round-trip.
	// With the budget exhausted the task is yielding for fairness: send it
	// to the back of the ready queue.
	if budgetLeft {
		if offer := InlineRerunFromContext(ctx); offer != nil && offer(d.resume, d.traits) {
			return
		}
	} else if d.onBudgetYield != nil {
		d.onBudgetYield()
	}
	d.post(d.resume, d.traits)
}

// =============================================================================
// Inline rerun slot
// =============================================================================

// InlineRerunFunc offers a task for immediate rerun on the current worker,
// ahead of the ready queue. It returns false when the slot is occupied.
type InlineRerunFunc func(task Task, traits TaskTraits) bool

type inlineRerunKeyType struct{}

var inlineRerunKey inlineRerunKeyType

// WithInlineRerun installs a worker's inline rerun slot into its run context.
func WithInlineRerun(ctx context.Context, offer InlineRerunFunc) context.Context {
	return context.WithValue(ctx, inlineRerunKey, offer)
}

// InlineRerunFromContext returns the current worker's inline rerun slot, or
// nil when the context does not belong to a worker that supports it.
func InlineRerunFromContext(ctx context.Context) InlineRerunFunc {
	if v := ctx.Value(inlineRerunKey); v != nil {
		return v.(InlineRerunFunc)
	}
	return nil
}
