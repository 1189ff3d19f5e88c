package core

import "context"

// Task is a plain unit of work (Closure). It runs to completion on a single
// resume and never suspends.
type Task func(ctx context.Context)

// PollTask is a resumable unit of work.
//
// Each call is one resume: the executor runs it inside a budgeted region and
// the task does some work before returning. PollReady means the task is
// finished. PollPending means the task suspended; it must have armed its
// waker first (the Proceed checkpoint does this on exhaustion) so the
// executor knows when to resume it again.
type PollTask func(ctx context.Context) Poll

// =============================================================================
// TaskTraits: Define task attributes (priority, blocking behavior, etc.)
// =============================================================================

type TaskPriority int

const (
	// TaskPriorityBestEffort: Lowest priority
	TaskPriorityBestEffort TaskPriority = iota

	// TaskPriorityUserVisible: Default priority
	TaskPriorityUserVisible

	// TaskPriorityUserBlocking: Highest priority
	TaskPriorityUserBlocking
)

type TaskTraits struct {
	Priority TaskPriority

	// MayBlock marks work that can block its worker for long stretches.
	// Such work belongs on a blocking worker, which runs with an
	// unconstrained budget because checkpoint fairness accounting does not
	// apply to it.
	MayBlock bool

	Category string
}

func DefaultTaskTraits() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserVisible}
}

func TraitsUserBlocking() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserBlocking}
}

func TraitsBestEffort() TaskTraits {
	return TaskTraits{Priority: TaskPriorityBestEffort}
}

func TraitsUserVisible() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserVisible}
}

func TraitsMayBlock() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserVisible, MayBlock: true}
}

// =============================================================================
// TaskRunner: Define task submission interface
// =============================================================================

type TaskRunner interface {
	PostTask(task Task)
	PostTaskWithTraits(task Task, traits TaskTraits)

	// PostPollTask submits a resumable task. The runner drives it through
	// repeated budgeted resumes until it reports PollReady.
	PostPollTask(task PollTask)
	PostPollTaskWithTraits(task PollTask, traits TaskTraits)
}

// =============================================================================
// Context Helper
// =============================================================================

type taskRunnerKeyType struct{}

var taskRunnerKey taskRunnerKeyType

func GetCurrentTaskRunner(ctx context.Context) TaskRunner {
	if v := ctx.Value(taskRunnerKey); v != nil {
		return v.(TaskRunner)
	}
	return nil
}
