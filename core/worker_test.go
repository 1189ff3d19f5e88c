package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitOrFatal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// TestBudgetedWorker_SequentialTasks verifies basic execution order
// Given: A budgeted worker
// When: Three plain tasks are posted
// Then: They run in order on the worker goroutine
func TestBudgetedWorker_SequentialTasks(t *testing.T) {
	worker := NewBudgetedWorker()
	defer worker.Stop()

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	for i := 1; i <= 3; i++ {
		i := i
		worker.PostTask(func(ctx context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			if i == 3 {
				close(done)
			}
		})
	}

	waitOrFatal(t, done, "tasks to finish")

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("execution order = %v, want [1 2 3]", order)
	}
}

// TestBudgetedWorker_TaskSeesBudgetedRegion verifies region installation
// Given: A budgeted worker
// When: A task inspects its run context
// Then: It finds a register holding a fresh limited budget
func TestBudgetedWorker_TaskSeesBudgetedRegion(t *testing.T) {
	worker := NewBudgetedWorker()
	defer worker.Stop()

	done := make(chan struct{})
	var sawLimited bool
	var sawRemaining uint8

	worker.PostTask(func(ctx context.Context) {
		if reg := BudgetRegisterFromContext(ctx); reg != nil {
			sawRemaining, sawLimited = reg.Get().Remaining()
		}
		close(done)
	})

	waitOrFatal(t, done, "task to run")

	if !sawLimited {
		t.Fatal("task did not see a limited budget")
	}
	if sawRemaining != DefaultBudget {
		t.Errorf("task saw remaining = %d, want %d", sawRemaining, DefaultBudget)
	}
}

// TestBudgetedWorker_PollTaskYieldsAndCompletes verifies budget-driven yielding
// Given: A poll task that needs more checkpoints than one budget allows
// When: It is posted to a budgeted worker
// Then: It completes across multiple resumes, yielding when the budget runs out
func TestBudgetedWorker_PollTaskYieldsAndCompletes(t *testing.T) {
	worker := NewBudgetedWorker()
	defer worker.Stop()

	// Needs three resumes: each resume processes until the 129th checkpoint
	// of that resume reports exhaustion.
	const total = 300
	processed := 0
	done := make(chan struct{})

	worker.PostPollTask(func(ctx context.Context) Poll {
		for processed < total {
			processed++
			if PollYield(ctx) == PollPending {
				return PollPending
			}
		}
		close(done)
		return PollReady
	})

	waitOrFatal(t, done, "poll task to finish")

	if processed != total {
		t.Errorf("processed = %d, want %d", processed, total)
	}

	stats := worker.Stats()
	if stats.BudgetYields == 0 {
		t.Error("BudgetYields = 0, want > 0")
	}
	if stats.Resumes < 3 {
		t.Errorf("Resumes = %d, want >= 3", stats.Resumes)
	}
}

// TestBudgetedWorker_SiblingFairness verifies interleaving between tasks
// Given: One endless-until-counted poll task and one plain sibling task
// When: The poll task keeps exhausting its budget
// Then: The sibling still gets to run between resumes
func TestBudgetedWorker_SiblingFairness(t *testing.T) {
	worker := NewBudgetedWorker()
	defer worker.Stop()

	var siblingRan atomic.Bool
	done := make(chan struct{})
	resumes := 0

	worker.PostPollTask(func(ctx context.Context) Poll {
		resumes++
		for {
			if siblingRan.Load() {
				close(done)
				return PollReady
			}
			if PollYield(ctx) == PollPending {
				return PollPending
			}
		}
	})
	worker.PostTask(func(ctx context.Context) {
		siblingRan.Store(true)
	})

	waitOrFatal(t, done, "poll task to observe sibling")

	if resumes < 2 {
		t.Errorf("resumes = %d, want >= 2 (sibling ran between resumes)", resumes)
	}
}

// TestBudgetedWorker_ParkedTaskWakes verifies the park/wake path
// Given: A poll task that suspends without arming its waker inline
// When: The waker is invoked later from another goroutine
// Then: The task is resumed exactly once and completes
func TestBudgetedWorker_ParkedTaskWakes(t *testing.T) {
	worker := NewBudgetedWorker()
	defer worker.Stop()

	wakerCh := make(chan Waker, 1)
	done := make(chan struct{})
	resumed := false

	worker.PostPollTask(func(ctx context.Context) Poll {
		if !resumed {
			resumed = true
			wakerCh <- WakerFromContext(ctx)
			return PollPending
		}
		close(done)
		return PollReady
	})

	var w Waker
	select {
	case w = <-wakerCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first resume")
	}

	// Give the worker a moment to park the task before waking it.
	time.Sleep(10 * time.Millisecond)
	w.Wake()

	waitOrFatal(t, done, "parked task to complete after wake")
}

// TestBudgetedWorker_SelfWakeRerunsInline verifies the inline rerun slot
// Given: A poll task that wakes itself and suspends with budget to spare
// When: The resume returns PollPending
// Then: The task is rerun without being reposted through the queue
func TestBudgetedWorker_SelfWakeRerunsInline(t *testing.T) {
	worker := NewBudgetedWorker()
	defer worker.Stop()

	done := make(chan struct{})
	resumes := 0

	worker.PostPollTask(func(ctx context.Context) Poll {
		resumes++
		if resumes < 3 {
			WakerFromContext(ctx).Wake()
			return PollPending
		}
		close(done)
		return PollReady
	})

	waitOrFatal(t, done, "self-waking task to finish")

	stats := worker.Stats()
	if stats.BudgetYields != 0 {
		t.Errorf("BudgetYields = %d, want 0 (self-wakes were not budget yields)", stats.BudgetYields)
	}
	if stats.Resumes != 3 {
		t.Errorf("Resumes = %d, want 3", stats.Resumes)
	}
}

// TestBlockingWorker_ExemptFromBudget verifies the blocking escape
// Given: A blocking worker
// When: A poll task passes far more checkpoints than the default budget
// Then: It completes in a single resume with no budget yields
func TestBlockingWorker_ExemptFromBudget(t *testing.T) {
	worker := NewBlockingWorker()
	defer worker.Stop()

	done := make(chan struct{})
	worker.PostPollTask(func(ctx context.Context) Poll {
		for i := 0; i < 5000; i++ {
			if PollYield(ctx) == PollPending {
				t.Error("checkpoint reported PollPending on a blocking worker")
				return PollPending
			}
		}
		close(done)
		return PollReady
	})

	waitOrFatal(t, done, "blocking poll task to finish")

	stats := worker.Stats()
	if stats.Resumes != 1 {
		t.Errorf("Resumes = %d, want 1", stats.Resumes)
	}
	if stats.BudgetYields != 0 {
		t.Errorf("BudgetYields = %d, want 0", stats.BudgetYields)
	}
	if !stats.Blocking {
		t.Error("Stats().Blocking = false, want true")
	}
}

// recordingPanicHandler captures panics for assertions.
type recordingPanicHandler struct {
	mu     sync.Mutex
	panics []any
}

func (h *recordingPanicHandler) HandlePanic(ctx context.Context, workerName string, workerID int, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	h.panics = append(h.panics, panicInfo)
	h.mu.Unlock()
}

// TestBudgetedWorker_PanicDoesNotCorruptBudget verifies unwind safety
// Given: A task that panics mid-region
// When: A subsequent task runs on the same worker
// Then: The panic is routed to the handler and the next task still sees a
// fresh full budget
func TestBudgetedWorker_PanicDoesNotCorruptBudget(t *testing.T) {
	handler := &recordingPanicHandler{}
	worker := NewBudgetedWorkerWithConfig(&SchedulerConfig{PanicHandler: handler})
	defer worker.Stop()

	done := make(chan struct{})
	var sawRemaining uint8
	var sawLimited bool

	worker.PostTask(func(ctx context.Context) {
		// Burn some budget, then unwind out of the region.
		Proceed(ctx, nil)
		Proceed(ctx, nil)
		panic("boom")
	})
	worker.PostTask(func(ctx context.Context) {
		if reg := BudgetRegisterFromContext(ctx); reg != nil {
			sawRemaining, sawLimited = reg.Get().Remaining()
		}
		close(done)
	})

	waitOrFatal(t, done, "follow-up task after panic")

	handler.mu.Lock()
	panics := len(handler.panics)
	handler.mu.Unlock()
	if panics != 1 {
		t.Errorf("recorded panics = %d, want 1", panics)
	}
	if !sawLimited || sawRemaining != DefaultBudget {
		t.Errorf("follow-up task budget = (%d, %v), want (%d, true)", sawRemaining, sawLimited, DefaultBudget)
	}
}

// TestBudgetedWorker_WaitIdleAndShutdown verifies lifecycle basics
// Given: A worker with queued tasks
// When: WaitIdle is called and then a task triggers Shutdown
// Then: WaitIdle returns after the queue drains and WaitShutdown unblocks
func TestBudgetedWorker_WaitIdleAndShutdown(t *testing.T) {
	worker := NewBudgetedWorker()
	defer worker.Stop()

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		worker.PostTask(func(ctx context.Context) {
			ran.Add(1)
		})
	}

	if err := worker.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}
	if got := ran.Load(); got != 10 {
		t.Errorf("tasks run before WaitIdle returned = %d, want 10", got)
	}

	worker.Shutdown()
	if err := worker.WaitShutdown(context.Background()); err != nil {
		t.Fatalf("WaitShutdown() error = %v", err)
	}
	if !worker.IsClosed() {
		t.Error("IsClosed() after Shutdown = false, want true")
	}
}
