// Package cooprunner provides a cooperatively scheduled task executor for Go
// with opt-in yield points for improved fairness.
//
// A single resume of a task may do a lot of work before it returns. A task
// that keeps finding more work ready -- draining an always-ready stream, for
// example -- can starve its siblings on the same worker, and the executor
// cannot forcibly preempt it. Instead, tasks collaborate: each resume gets a
// budget of checkpoints (128 by default), leaf operations spend one
// checkpoint per unit of real work via Proceed, and when the budget runs out
// the checkpoint reports PollPending, re-arms the task's waker, and the task
// returns control to the scheduler. The scheduler retries it on the next
// turn with a fresh budget.
//
// # Quick Start
//
// Initialize the global worker pool at application startup:
//
//	cooprunner.InitGlobalWorkerPool(4) // 4 workers
//	defer cooprunner.ShutdownGlobalWorkerPool()
//
// Post a resumable task that yields between units of work:
//
//	pool := cooprunner.GetGlobalWorkerPool()
//	pool.PostPollTask(func(ctx context.Context) cooprunner.Poll {
//		for item, ok := next(); ok; item, ok = next() {
//			process(item)
//			if cooprunner.PollYield(ctx) == cooprunner.PollPending {
//				return cooprunner.PollPending // resumed later, budget refreshed
//			}
//		}
//		return cooprunner.PollReady
//	})
//
// # Placing yield points
//
// Yield points should be placed after at least some work has been done, and
// only in "leaf" operations -- those that do not themselves resume other
// units. A checkpoint at every level of a deep call chain counts each piece
// of work several times against the budget and starves deep tasks.
//
// # Key Concepts
//
// BudgetedWorker: A dedicated goroutine executing tasks sequentially. It
// owns a private budget register; every resume runs inside a budgeted region
// whose previous register value is restored on every exit path, so regions
// nest safely and a panicking task cannot corrupt accounting for its
// successors.
//
// WorkerPool: N workers pulling from one shared ready queue. Budget
// accounting is per worker with no cross-worker synchronization.
//
// Blocking workers: created with NewBlockingWorker, these force their
// register unconstrained and are deliberately exempt from fairness
// accounting. Use them for blocking adapters.
//
// # Observability
//
// Workers and pools expose stats snapshots, and the
// observability/prometheus package adapts the core Metrics interface
// (resume durations, budget-exhaustion yields, queue depth) to Prometheus
// collectors.
package cooprunner
