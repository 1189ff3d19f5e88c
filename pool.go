package cooprunner

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coopruntime/go-coop-runner/core"
)

// WorkerPool manages a set of worker goroutines pulling from a shared ready
// queue. Each worker owns a private budget register, so the pool gives you
// parallelism between tasks and checkpoint fairness within each worker,
// without any cross-worker budget synchronization.
type WorkerPool struct {
	id        string
	workers   int
	scheduler *core.TaskScheduler
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	runningMu sync.RWMutex

	metricYields atomic.Int64
}

// NewWorkerPool creates a new WorkerPool with a FIFO ready queue
func NewWorkerPool(id string, workers int) *WorkerPool {
	return NewWorkerPoolWithConfig(id, workers, core.DefaultSchedulerConfig())
}

// NewWorkerPoolWithConfig creates a FIFO WorkerPool with custom handlers
func NewWorkerPoolWithConfig(id string, workers int, config *core.SchedulerConfig) *WorkerPool {
	return &WorkerPool{
		id:        id,
		workers:   workers,
		scheduler: core.NewFIFOTaskSchedulerWithConfig(workers, config),
	}
}

// NewPriorityWorkerPool creates a new WorkerPool with a priority ready queue
func NewPriorityWorkerPool(id string, workers int) *WorkerPool {
	return NewPriorityWorkerPoolWithConfig(id, workers, core.DefaultSchedulerConfig())
}

// NewPriorityWorkerPoolWithConfig creates a priority WorkerPool with custom handlers
func NewPriorityWorkerPoolWithConfig(id string, workers int, config *core.SchedulerConfig) *WorkerPool {
	return &WorkerPool{
		id:        id,
		workers:   workers,
		scheduler: core.NewPriorityTaskSchedulerWithConfig(workers, config),
	}
}

// Start starts all worker goroutines
func (tg *WorkerPool) Start(ctx context.Context) {
	tg.runningMu.Lock()
	defer tg.runningMu.Unlock()

	if tg.running {
		return // Already running
	}

	tg.ctx, tg.cancel = context.WithCancel(ctx)
	tg.running = true

	for i := 0; i < tg.workers; i++ {
		tg.wg.Add(1)
		go tg.workerLoop(i, tg.ctx)
	}
}

// Stop stops the worker pool
func (tg *WorkerPool) Stop() {
	// Always shutdown scheduler to clean up resources even if the pool was
	// never started
	tg.scheduler.Shutdown()

	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return
	}
	tg.runningMu.Unlock()

	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()
}

// StopGraceful stops the pool gracefully, waiting for queued tasks to complete.
// Returns error if timeout is exceeded before tasks complete.
func (tg *WorkerPool) StopGraceful(timeout time.Duration) error {
	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return nil
	}
	tg.runningMu.Unlock()

	// First, gracefully shutdown the scheduler (waits for the queue to drain)
	err := tg.scheduler.ShutdownGraceful(timeout)

	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()

	return err
}

// ID returns the ID of the worker pool
func (tg *WorkerPool) ID() string {
	return tg.id
}

// IsRunning returns whether the worker pool is running
func (tg *WorkerPool) IsRunning() bool {
	tg.runningMu.RLock()
	defer tg.runningMu.RUnlock()
	return tg.running
}

// workerLoop is the main loop for each worker. The budget register is
// created here, on the worker goroutine, and never leaves it: budget
// accounting across the pool's workers is fully independent.
func (tg *WorkerPool) workerLoop(id int, ctx context.Context) {
	defer tg.wg.Done()
	stopCh := ctx.Done()

	reg := core.NewBudgetRegister()

	// Inline rerun slot, local to this worker goroutine.
	var inlineSlot *core.TaskItem
	offer := func(task core.Task, traits core.TaskTraits) bool {
		if inlineSlot != nil {
			return false
		}
		inlineSlot = &core.TaskItem{Task: task, Traits: traits}
		return true
	}

	runCtx := core.WithBudgetRegister(ctx, reg)
	runCtx = core.WithInlineRerun(runCtx, offer)

	metrics := tg.scheduler.GetMetrics()
	panicHandler := tg.scheduler.GetPanicHandler()

	execute := func(item core.TaskItem) {
		tg.scheduler.OnTaskStart()
		start := time.Now()

		func() {
			defer func() {
				tg.scheduler.OnTaskEnd()
				if rec := recover(); rec != nil {
					metrics.RecordTaskPanic(tg.id, rec)
					panicHandler.HandlePanic(runCtx, tg.id, id, rec, debug.Stack())
				}
			}()
			// One budgeted region per resume. The restore runs even on
			// panic, so the next task on this worker starts clean.
			reg.RunBudgeted(func() {
				item.Task(runCtx)
			})
		}()

		metrics.RecordResumeDuration(tg.id, item.Traits.Priority, time.Since(start))
	}

	for {
		// Pull tasks from the shared ready queue
		item, ok := tg.scheduler.GetWork(stopCh)
		if !ok {
			// Queue closed or context canceled
			return
		}

		execute(item)

		// Tasks woken mid-resume with budget to spare retry here before
		// this worker goes back to the shared queue.
		for inlineSlot != nil {
			next := *inlineSlot
			inlineSlot = nil
			execute(next)
		}
	}
}

// Join waits for all worker goroutines to finish
func (tg *WorkerPool) Join() {
	tg.wg.Wait()
}

// WorkerCount returns the number of workers
func (tg *WorkerPool) WorkerCount() int {
	return tg.workers
}

func (tg *WorkerPool) QueuedTaskCount() int {
	return tg.scheduler.QueuedTaskCount()
}

func (tg *WorkerPool) ActiveTaskCount() int {
	return tg.scheduler.ActiveTaskCount()
}

// Stats returns a snapshot of the pool's observable state.
func (tg *WorkerPool) Stats() core.PoolStats {
	return core.PoolStats{
		ID:           tg.id,
		Workers:      tg.workers,
		Queued:       tg.scheduler.QueuedTaskCount(),
		Active:       tg.scheduler.ActiveTaskCount(),
		BudgetYields: tg.metricYields.Load(),
		Running:      tg.IsRunning(),
	}
}

// =============================================================================
// TaskRunner implementation
// =============================================================================

// PostTask submits a plain task to the pool
func (tg *WorkerPool) PostTask(task core.Task) {
	tg.PostTaskWithTraits(task, core.DefaultTaskTraits())
}

// PostTaskWithTraits submits a plain task with traits
func (tg *WorkerPool) PostTaskWithTraits(task core.Task, traits core.TaskTraits) {
	tg.scheduler.PostInternal(task, traits)
}

// PostPollTask submits a resumable task. Whichever worker picks it up
// resumes it inside a fresh budgeted region; on yield it goes to the back of
// the shared queue, so a task may migrate between workers across resumes.
func (tg *WorkerPool) PostPollTask(task core.PollTask) {
	tg.PostPollTaskWithTraits(task, core.DefaultTaskTraits())
}

// PostPollTaskWithTraits submits a resumable task with traits
func (tg *WorkerPool) PostPollTaskWithTraits(task core.PollTask, traits core.TaskTraits) {
	wrapped := core.WrapPollTask(task, traits, tg.PostTaskWithTraits, func() {
		tg.metricYields.Add(1)
		tg.scheduler.GetMetrics().RecordBudgetYield(tg.id)
	})
	tg.PostTaskWithTraits(wrapped, traits)
}

// =============================================================================
// Global Worker Pool Helper (Singleton)
// =============================================================================

var (
	globalWorkerPool *WorkerPool
	globalMu         sync.Mutex
)

// InitGlobalWorkerPool initializes the global worker pool with the specified
// number of workers. It starts the pool immediately.
func InitGlobalWorkerPool(workers int) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalWorkerPool != nil {
		return // Already initialized
	}

	globalWorkerPool = NewWorkerPool("global-pool", workers)
	globalWorkerPool.Start(context.Background())
}

// GetGlobalWorkerPool returns the global worker pool instance.
// It panics if InitGlobalWorkerPool has not been called.
func GetGlobalWorkerPool() *WorkerPool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalWorkerPool == nil {
		panic("GlobalWorkerPool not initialized. Call InitGlobalWorkerPool() first.")
	}
	return globalWorkerPool
}

// ShutdownGlobalWorkerPool stops the global worker pool.
func ShutdownGlobalWorkerPool() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalWorkerPool != nil {
		globalWorkerPool.Stop()
		globalWorkerPool = nil
	}
}
