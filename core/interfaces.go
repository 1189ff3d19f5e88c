package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during a resume.
//
// The worker recovers the panic so that its budget register is restored and
// the loop survives; the handler decides what to do with the panic value.
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context from the panicked task
	// - workerName: The name of the worker where the panic occurred
	// - workerID: The ID of the worker within its pool (-1 for dedicated workers)
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, workerName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, workerName string, workerID int, panicInfo any, stackTrace []byte) {
	if workerID >= 0 {
		fmt.Printf("[Worker %d @ %s] Panic: %v\nStack trace:\n%s",
			workerID, workerName, panicInfo, stackTrace)
	} else {
		fmt.Printf("[Worker %s] Panic: %v\nStack trace:\n%s",
			workerName, panicInfo, stackTrace)
	}
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting executor and budget metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution.
type Metrics interface {
	// RecordResumeDuration records how long one resume of a task took.
	RecordResumeDuration(workerName string, priority TaskPriority, duration time.Duration)

	// RecordBudgetYield records that a task exhausted its checkpoint budget
	// and was asked to yield back to the scheduler.
	RecordBudgetYield(workerName string)

	// RecordForcedUnconstrained records that a worker removed its budget
	// constraint (blocking-adapter escape).
	RecordForcedUnconstrained(workerName string)

	// RecordTaskPanic records that a task panicked during a resume.
	RecordTaskPanic(workerName string, panicInfo any)

	// RecordQueueDepth records the current ready-queue depth.
	// This can be called periodically to track queue growth/shrinkage.
	RecordQueueDepth(workerName string, depth int)

	// RecordTaskRejected records that a task was rejected (e.g., during shutdown).
	RecordTaskRejected(workerName string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordResumeDuration is a no-op.
func (m *NilMetrics) RecordResumeDuration(workerName string, priority TaskPriority, duration time.Duration) {
}

// RecordBudgetYield is a no-op.
func (m *NilMetrics) RecordBudgetYield(workerName string) {
}

// RecordForcedUnconstrained is a no-op.
func (m *NilMetrics) RecordForcedUnconstrained(workerName string) {
}

// RecordTaskPanic is a no-op.
func (m *NilMetrics) RecordTaskPanic(workerName string, panicInfo any) {
}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(workerName string, depth int) {
}

// RecordTaskRejected is a no-op.
func (m *NilMetrics) RecordTaskRejected(workerName string, reason string) {
}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when a task is rejected by the scheduler.
// This can happen when:
// - The scheduler is shutting down
// - The signal channel is full (backpressure)
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	// HandleRejectedTask is called when a task is rejected.
	//
	// Parameters:
	// - workerName: The name of the worker or scheduler
	// - reason: Why the task was rejected (e.g., "shutdown", "backpressure")
	HandleRejectedTask(workerName string, reason string)
}

// DefaultRejectedTaskHandler provides a basic handler that logs rejected tasks.
type DefaultRejectedTaskHandler struct{}

// HandleRejectedTask logs the rejected task.
func (h *DefaultRejectedTaskHandler) HandleRejectedTask(workerName string, reason string) {
	fmt.Printf("[Worker %s] Task rejected: %s", workerName, reason)
}

// =============================================================================
// SchedulerConfig: Configuration for TaskScheduler
// =============================================================================

// SchedulerConfig holds configuration options for TaskScheduler and workers.
// All handlers are optional; if not provided, default implementations will be used.
type SchedulerConfig struct {
	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record execution and budget metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called when a task is rejected. Defaults to DefaultRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler

	// Logger is used for scheduler and worker lifecycle logging. Defaults to NoOpLogger.
	Logger Logger
}

// DefaultSchedulerConfig returns a config with default handlers.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		PanicHandler:        &DefaultPanicHandler{},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{},
		Logger:              &NoOpLogger{},
	}
}

func (c *SchedulerConfig) withDefaults() *SchedulerConfig {
	out := &SchedulerConfig{}
	if c != nil {
		*out = *c
	}
	if out.PanicHandler == nil {
		out.PanicHandler = &DefaultPanicHandler{}
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.RejectedTaskHandler == nil {
		out.RejectedTaskHandler = &DefaultRejectedTaskHandler{}
	}
	if out.Logger == nil {
		out.Logger = &NoOpLogger{}
	}
	return out
}
