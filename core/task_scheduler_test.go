package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

// recordingRejectedHandler captures rejections for assertions.
type recordingRejectedHandler struct {
	mu      sync.Mutex
	reasons []string
}

func (h *recordingRejectedHandler) HandleRejectedTask(workerName string, reason string) {
	h.mu.Lock()
	h.reasons = append(h.reasons, reason)
	h.mu.Unlock()
}

// TestTaskScheduler_PostAndGetWork verifies the handoff path
// Given: A FIFO scheduler with one queued task
// When: GetWork is called
// Then: The task item comes back with its traits intact
func TestTaskScheduler_PostAndGetWork(t *testing.T) {
	s := NewFIFOTaskScheduler(1)
	noop := func(ctx context.Context) {}

	s.PostInternal(noop, TaskTraits{Priority: TaskPriorityUserBlocking, Category: "io"})

	if got := s.QueuedTaskCount(); got != 1 {
		t.Fatalf("QueuedTaskCount() = %d, want 1", got)
	}

	stop := make(chan struct{})
	item, ok := s.GetWork(stop)
	if !ok {
		t.Fatal("GetWork() = false, want true")
	}
	if item.Traits.Category != "io" || item.Traits.Priority != TaskPriorityUserBlocking {
		t.Errorf("traits = %+v, want io/user-blocking", item.Traits)
	}
	if got := s.QueuedTaskCount(); got != 0 {
		t.Errorf("QueuedTaskCount() after GetWork = %d, want 0", got)
	}
}

// TestTaskScheduler_GetWorkStops verifies worker unblocking
// Given: A scheduler with an empty queue
// When: The stop channel closes while a worker waits in GetWork
// Then: GetWork returns false
func TestTaskScheduler_GetWorkStops(t *testing.T) {
	s := NewFIFOTaskScheduler(1)

	stop := make(chan struct{})
	result := make(chan bool, 1)
	go func() {
		_, ok := s.GetWork(stop)
		result <- ok
	}()

	close(stop)

	select {
	case ok := <-result:
		if ok {
			t.Error("GetWork() after stop = true, want false")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("GetWork did not return after stop")
	}
}

// TestTaskScheduler_RejectsAfterShutdown verifies the rejection path
// Given: A scheduler that has been shut down
// When: A task is posted
// Then: The task is rejected with reason "shutting down" and not queued
func TestTaskScheduler_RejectsAfterShutdown(t *testing.T) {
	handler := &recordingRejectedHandler{}
	s := NewFIFOTaskSchedulerWithConfig(1, &SchedulerConfig{RejectedTaskHandler: handler})

	s.Shutdown()
	s.PostInternal(func(ctx context.Context) {}, DefaultTaskTraits())

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.reasons) != 1 || handler.reasons[0] != "shutting down" {
		t.Errorf("rejections = %v, want [shutting down]", handler.reasons)
	}
	if got := s.QueuedTaskCount(); got != 0 {
		t.Errorf("QueuedTaskCount() = %d, want 0", got)
	}
}

// TestTaskScheduler_ShutdownGraceful verifies the drain path
// Given: A scheduler with no queued or active work
// When: ShutdownGraceful is called
// Then: It returns without error well within the timeout
func TestTaskScheduler_ShutdownGraceful(t *testing.T) {
	s := NewFIFOTaskScheduler(1)

	if err := s.ShutdownGraceful(2 * time.Second); err != nil {
		t.Errorf("ShutdownGraceful() error = %v, want nil", err)
	}
}
