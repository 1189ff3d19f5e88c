package core

import (
	"fmt"
	"sync/atomic"
	"time"
)

// TaskScheduler owns the ready queue that budgeted workers pull from.
//
// It does not know which task yields when; fairness inside one resume is the
// budget register's job. The scheduler's job is the ready queue, the worker
// wakeup signal, and shutdown.
type TaskScheduler struct {
	queue       TaskQueue
	signal      chan struct{}
	workerCount int

	metricQueued int32 // Waiting in ready queue
	metricActive int32 // Executing in a worker

	// Handlers and Metrics
	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler
	logger              Logger

	// Lifecycle
	shuttingDown int32 // atomic flag
}

func NewPriorityTaskScheduler(workerCount int) *TaskScheduler {
	return NewPriorityTaskSchedulerWithConfig(workerCount, DefaultSchedulerConfig())
}

func NewPriorityTaskSchedulerWithConfig(workerCount int, config *SchedulerConfig) *TaskScheduler {
	return newTaskScheduler(NewPriorityTaskQueue(), workerCount, config)
}

func NewFIFOTaskScheduler(workerCount int) *TaskScheduler {
	return NewFIFOTaskSchedulerWithConfig(workerCount, DefaultSchedulerConfig())
}

func NewFIFOTaskSchedulerWithConfig(workerCount int, config *SchedulerConfig) *TaskScheduler {
	return newTaskScheduler(NewFIFOTaskQueue(), workerCount, config)
}

func newTaskScheduler(queue TaskQueue, workerCount int, config *SchedulerConfig) *TaskScheduler {
	config = config.withDefaults()
	return &TaskScheduler{
		queue:               queue,
		signal:              make(chan struct{}, workerCount*2),
		workerCount:         workerCount,
		panicHandler:        config.PanicHandler,
		metrics:             config.Metrics,
		rejectedTaskHandler: config.RejectedTaskHandler,
		logger:              config.Logger,
	}
}

// PostInternal enqueues a task on the ready queue and nudges a worker.
func (s *TaskScheduler) PostInternal(task Task, traits TaskTraits) {
	// If shutting down, reject new tasks
	if atomic.LoadInt32(&s.shuttingDown) == 1 {
		s.rejectedTaskHandler.HandleRejectedTask("TaskScheduler", "shutting down")
		s.metrics.RecordTaskRejected("TaskScheduler", "shutting down")
		return
	}

	s.queue.Push(task, traits)
	atomic.AddInt32(&s.metricQueued, 1)

	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full, but task is already queued.
		// Some worker will pick it up on its next pass.
	}
}

// GetWork blocks until a task is available or stopCh fires (Called by Worker).
// Traits travel with the task so workers can label their metrics.
func (s *TaskScheduler) GetWork(stopCh <-chan struct{}) (TaskItem, bool) {
	for {
		// Try to pop one task
		if item, ok := s.queue.Pop(); ok {
			atomic.AddInt32(&s.metricQueued, -1)
			return item, true
		}

		select {
		case <-s.signal:
			continue
		case <-stopCh:
			return TaskItem{}, false
		}
	}
}

func (s *TaskScheduler) Shutdown() {
	// 1. Mark as shutting down to stop accepting new tasks
	atomic.StoreInt32(&s.shuttingDown, 1)

	// 2. Clear queue to release all task references (including parked poll
	//    task wrappers waiting on their wakers)
	s.queue.Clear()

	s.logger.Info("scheduler shut down", F("dropped", "ready queue cleared"))
}

// ShutdownGraceful waits for all queued and active tasks to complete.
// Returns error if timeout is exceeded before tasks complete.
func (s *TaskScheduler) ShutdownGraceful(timeout time.Duration) error {
	atomic.StoreInt32(&s.shuttingDown, 1)

	deadline := time.After(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			// Timeout exceeded, force clear remaining queue
			s.queue.Clear()
			return fmt.Errorf("shutdown graceful timeout after %v, forced clearing", timeout)
		case <-ticker.C:
			if s.QueuedTaskCount() == 0 && s.ActiveTaskCount() == 0 {
				return nil
			}
		}
	}
}

// Metrics
func (s *TaskScheduler) WorkerCount() int     { return s.workerCount }
func (s *TaskScheduler) QueuedTaskCount() int { return int(atomic.LoadInt32(&s.metricQueued)) }
func (s *TaskScheduler) ActiveTaskCount() int { return int(atomic.LoadInt32(&s.metricActive)) }

func (s *TaskScheduler) OnTaskStart() {
	atomic.AddInt32(&s.metricActive, 1)
}

func (s *TaskScheduler) OnTaskEnd() {
	atomic.AddInt32(&s.metricActive, -1)
}

// GetPanicHandler returns the panic handler for this scheduler
func (s *TaskScheduler) GetPanicHandler() PanicHandler {
	return s.panicHandler
}

// GetMetrics returns the metrics collector for this scheduler
func (s *TaskScheduler) GetMetrics() Metrics {
	return s.metrics
}

// GetLogger returns the logger for this scheduler
func (s *TaskScheduler) GetLogger() Logger {
	return s.logger
}
