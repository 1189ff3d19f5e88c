package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// BudgetedWorker binds a dedicated goroutine to execute tasks sequentially.
// It guarantees that all tasks submitted to it run on the same goroutine, and
// that goroutine owns a private budget Register: every resume executes inside
// a budgeted region, so no single task can hog the worker past its
// checkpoint allowance.
//
// Use cases:
//  1. Driving resumable PollTasks that cooperate via Proceed checkpoints
//  2. Simulating Main Thread / UI Thread behavior with fairness between tasks
//  3. With NewBlockingWorker, hosting blocking adapters that are exempt from
//     budget accounting
//
// The register is created inside the worker goroutine and never escapes it,
// so budget accounting needs no locks and two workers can never interfere
// with each other's counts.
type BudgetedWorker struct {
	// Task queue: Buffered channel for tasks
	workQueue chan TaskItem

	// Lifecycle control
	ctx    context.Context
	cancel context.CancelFunc

	// For graceful shutdown
	stopped      chan struct{}
	once         sync.Once
	closed       atomic.Bool
	shutdownChan chan struct{}
	shutdownOnce sync.Once

	// Handlers
	panicHandler PanicHandler
	metrics      Metrics
	logger       Logger

	// Blocking workers run with a forced-unconstrained register and never
	// enter budgeted regions.
	blocking bool

	// Inline rerun slot. Touched only from the worker goroutine.
	inlineSlot *TaskItem

	// Observability counters
	metricResumes atomic.Int64
	metricYields  atomic.Int64
	lastResumeAt  atomic.Int64 // unix nanos

	// Metadata
	name string
	mu   sync.Mutex
}

// NewBudgetedWorker creates and starts a worker whose resumes are budgeted.
// It immediately spawns the dedicated goroutine.
func NewBudgetedWorker() *BudgetedWorker {
	return NewBudgetedWorkerWithConfig(nil)
}

// NewBudgetedWorkerWithConfig creates a budgeted worker with custom handlers.
func NewBudgetedWorkerWithConfig(config *SchedulerConfig) *BudgetedWorker {
	return newWorker(config, false)
}

// NewBlockingWorker creates and starts a worker for blocking adapters. Its
// register is forced unconstrained before the loop starts, so Proceed
// checkpoints inside its tasks always report PollReady: fairness accounting
// deliberately does not apply to this goroutine.
func NewBlockingWorker() *BudgetedWorker {
	return NewBlockingWorkerWithConfig(nil)
}

// NewBlockingWorkerWithConfig creates a blocking worker with custom handlers.
func NewBlockingWorkerWithConfig(config *SchedulerConfig) *BudgetedWorker {
	return newWorker(config, true)
}

func newWorker(config *SchedulerConfig, blocking bool) *BudgetedWorker {
	config = config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	r := &BudgetedWorker{
		workQueue:    make(chan TaskItem, 100), // Buffer to avoid blocking senders
		ctx:          ctx,
		cancel:       cancel,
		stopped:      make(chan struct{}),
		shutdownChan: make(chan struct{}),
		panicHandler: config.PanicHandler,
		metrics:      config.Metrics,
		logger:       config.Logger,
		blocking:     blocking,
	}

	// Start the dedicated message loop
	go r.runLoop()

	return r
}

// Name returns the name of the worker
func (r *BudgetedWorker) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

// SetName sets the name of the worker
func (r *BudgetedWorker) SetName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
}

// PostTask submits a plain task for execution
func (r *BudgetedWorker) PostTask(task Task) {
	r.PostTaskWithTraits(task, DefaultTaskTraits())
}

// PostTaskWithTraits submits a plain task with traits
func (r *BudgetedWorker) PostTaskWithTraits(task Task, traits TaskTraits) {
	// Check if worker is closed to avoid panic on closed channel
	if r.closed.Load() {
		r.metrics.RecordTaskRejected(r.Name(), "closed")
		return
	}

	select {
	case <-r.ctx.Done():
		// Worker stopped, drop task
	case r.workQueue <- TaskItem{Task: task, Traits: traits}:
		// Successfully queued
	}
}

// PostPollTask submits a resumable task. The worker resumes it inside a
// fresh budgeted region on every scheduling turn until it reports PollReady.
func (r *BudgetedWorker) PostPollTask(task PollTask) {
	r.PostPollTaskWithTraits(task, DefaultTaskTraits())
}

// PostPollTaskWithTraits submits a resumable task with traits
func (r *BudgetedWorker) PostPollTaskWithTraits(task PollTask, traits TaskTraits) {
	wrapped := WrapPollTask(task, traits, r.PostTaskWithTraits, func() {
		r.metricYields.Add(1)
		r.metrics.RecordBudgetYield(r.Name())
	})
	r.PostTaskWithTraits(wrapped, traits)
}

// Shutdown marks the worker as closed and signals shutdown waiters.
// Unlike Stop(), this method does NOT immediately terminate the runLoop,
// which allows tasks to call Shutdown() from within themselves.
func (r *BudgetedWorker) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.closed.Store(true)
		r.cancel()
		close(r.shutdownChan)
	})
}

// IsClosed returns true if the worker has been stopped
func (r *BudgetedWorker) IsClosed() bool {
	return r.closed.Load()
}

// Stop stops the worker and releases resources
func (r *BudgetedWorker) Stop() {
	r.once.Do(func() {
		// 1. Mark as closed
		r.closed.Store(true)

		// 2. Cancel context to stop accepting new tasks
		r.cancel()

		// 3. Wait for runLoop to finish (ensures current task completes)
		<-r.stopped
	})
}

// runLoop is the core of this worker, it occupies a dedicated goroutine.
// The budget Register lives here and nowhere else.
func (r *BudgetedWorker) runLoop() {
	defer close(r.stopped) // Signal that Stop() can return

	reg := NewBudgetRegister()

	runCtx := context.WithValue(r.ctx, taskRunnerKey, TaskRunner(r))
	runCtx = WithBudgetRegister(runCtx, reg)
	runCtx = WithInlineRerun(runCtx, r.offerInline)

	if r.blocking {
		reg.ForceUnconstrained()
		r.metrics.RecordForcedUnconstrained(r.Name())
		r.logger.Debug("worker budget forced unconstrained", F("worker", r.Name()))
	}

	for {
		select {
		case item := <-r.workQueue:
			r.resumeOne(runCtx, reg, item)

			// Drain the inline rerun slot: tasks woken mid-resume with
			// budget to spare retry here without a queue round-trip.
			for r.inlineSlot != nil {
				next := *r.inlineSlot
				r.inlineSlot = nil
				r.resumeOne(runCtx, reg, next)
			}

		case <-r.ctx.Done():
			return
		}
	}
}

// offerInline is the worker's InlineRerunFunc. Only ever called from the
// worker goroutine, during a resume.
func (r *BudgetedWorker) offerInline(task Task, traits TaskTraits) bool {
	if r.inlineSlot != nil {
		return false
	}
	r.inlineSlot = &TaskItem{Task: task, Traits: traits}
	return true
}

// resumeOne executes one resume: a budgeted region around the task (skipped
// for blocking workers), panic recovery, and metrics.
func (r *BudgetedWorker) resumeOne(ctx context.Context, reg *Register, item TaskItem) {
	start := time.Now()

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.metrics.RecordTaskPanic(r.Name(), rec)
				r.panicHandler.HandlePanic(ctx, r.Name(), -1, rec, debug.Stack())
			}
		}()

		if r.blocking {
			item.Task(ctx)
			return
		}
		// The register restore in RunBudgeted runs even when the task
		// panics, before the recover above observes it.
		reg.RunBudgeted(func() {
			item.Task(ctx)
		})
	}()

	r.metricResumes.Add(1)
	r.lastResumeAt.Store(time.Now().UnixNano())
	r.metrics.RecordResumeDuration(r.Name(), item.Traits.Priority, time.Since(start))
	r.metrics.RecordQueueDepth(r.Name(), len(r.workQueue))
}

// Stats returns a snapshot of the worker's observable state.
func (r *BudgetedWorker) Stats() WorkerStats {
	workerType := "budgeted"
	if r.blocking {
		workerType = "blocking"
	}
	var last time.Time
	if ns := r.lastResumeAt.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return WorkerStats{
		Name:         r.Name(),
		Type:         workerType,
		Pending:      len(r.workQueue),
		Resumes:      r.metricResumes.Load(),
		BudgetYields: r.metricYields.Load(),
		Blocking:     r.blocking,
		Closed:       r.closed.Load(),
		LastResumeAt: last,
	}
}

// =============================================================================
// Synchronization Methods
// =============================================================================

// WaitIdle blocks until all currently queued tasks have completed execution.
// This is implemented by posting a barrier task and waiting for it to execute.
//
// Note: Parked poll tasks are suspended, not queued, so WaitIdle does not
// wait for them to finish.
func (r *BudgetedWorker) WaitIdle(ctx context.Context) error {
	if r.IsClosed() {
		return fmt.Errorf("worker is closed")
	}

	done := make(chan struct{})

	// Post a barrier task that closes the done channel
	r.PostTask(func(taskCtx context.Context) {
		close(done)
	})

	// Wait for barrier task or context cancellation
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FlushAsync posts a barrier task that executes the callback when all prior
// tasks complete. This is a non-blocking alternative to WaitIdle.
func (r *BudgetedWorker) FlushAsync(callback func()) {
	r.PostTask(func(ctx context.Context) {
		callback()
	})
}

// WaitShutdown blocks until Shutdown() is called on this worker, either by
// an external caller or by a task running on the worker itself.
func (r *BudgetedWorker) WaitShutdown(ctx context.Context) error {
	select {
	case <-r.shutdownChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
