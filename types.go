package cooprunner

import "github.com/coopruntime/go-coop-runner/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the cooprunner package for most use cases.

// Task is a plain unit of work (Closure)
type Task = core.Task

// PollTask is a resumable unit of work driven through budgeted resumes
type PollTask = core.PollTask

// Poll is the outcome of a resume or a Proceed checkpoint
type Poll = core.Poll

// Waker is the resumption signal for a suspended PollTask
type Waker = core.Waker

// Budget tracks remaining checkpoints for the current resume
type Budget = core.Budget

// Register is the per-worker budget slot
type Register = core.Register

// TaskTraits defines task attributes (priority, blocking behavior, etc.)
type TaskTraits = core.TaskTraits

// TaskPriority defines the priority levels for tasks
type TaskPriority = core.TaskPriority

// TaskRunner is the interface for posting tasks
type TaskRunner = core.TaskRunner

// BudgetedWorker runs tasks sequentially on a dedicated goroutine with a
// private budget register
type BudgetedWorker = core.BudgetedWorker

// Poll outcomes
const (
	PollReady   Poll = core.PollReady
	PollPending Poll = core.PollPending
)

// Priority constants
const (
	TaskPriorityBestEffort   TaskPriority = core.TaskPriorityBestEffort
	TaskPriorityUserVisible  TaskPriority = core.TaskPriorityUserVisible
	TaskPriorityUserBlocking TaskPriority = core.TaskPriorityUserBlocking
)

// Convenience functions for creating TaskTraits
var (
	DefaultTaskTraits  = core.DefaultTaskTraits
	TraitsUserBlocking = core.TraitsUserBlocking
	TraitsBestEffort   = core.TraitsBestEffort
	TraitsUserVisible  = core.TraitsUserVisible
	TraitsMayBlock     = core.TraitsMayBlock
)

// Checkpoint functions, re-exported so leaf operations only need this package
var (
	Proceed            = core.Proceed
	PollYield          = core.PollYield
	HasBudgetRemaining = core.HasBudgetRemaining
	WakerFromContext   = core.WakerFromContext
)

// NewBudgetedWorker creates a worker with a dedicated goroutine whose
// resumes are budgeted.
func NewBudgetedWorker() *BudgetedWorker {
	return core.NewBudgetedWorker()
}

// NewBlockingWorker creates a dedicated worker exempt from budget accounting.
// Use it for blocking adapters.
func NewBlockingWorker() *BudgetedWorker {
	return core.NewBlockingWorker()
}

// GetCurrentTaskRunner retrieves the current TaskRunner from context
var GetCurrentTaskRunner = core.GetCurrentTaskRunner
