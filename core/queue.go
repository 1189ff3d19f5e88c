package core

import (
	"container/heap"
	"sync"

	"github.com/gammazero/deque"
)

type TaskItem struct {
	Task   Task
	Traits TaskTraits
}

// TaskQueue defines the interface for different ready-queue implementations
type TaskQueue interface {
	Push(t Task, traits TaskTraits)
	Pop() (TaskItem, bool)
	PeekTraits() (TaskTraits, bool)
	Len() int
	IsEmpty() bool
	Clear() // Clear all tasks from the queue
}

// =============================================================================
// FIFOTaskQueue: plain FIFO ready queue
// =============================================================================

// FIFOTaskQueue is a FIFO ready queue backed by a ring-buffer deque, so
// steady-state push/pop churn from reposted poll tasks does not reallocate.
type FIFOTaskQueue struct {
	mu    sync.Mutex
	tasks deque.Deque[TaskItem]
}

func NewFIFOTaskQueue() *FIFOTaskQueue {
	return &FIFOTaskQueue{}
}

func (q *FIFOTaskQueue) Push(t Task, traits TaskTraits) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks.PushBack(TaskItem{Task: t, Traits: traits})
}

func (q *FIFOTaskQueue) Pop() (TaskItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.tasks.Len() == 0 {
		return TaskItem{}, false
	}
	return q.tasks.PopFront(), true
}

func (q *FIFOTaskQueue) PeekTraits() (TaskTraits, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.tasks.Len() == 0 {
		return TaskTraits{}, false
	}
	return q.tasks.Front().Traits, true
}

func (q *FIFOTaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks.Len()
}

func (q *FIFOTaskQueue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *FIFOTaskQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks.Clear()
}

// =============================================================================
// PriorityTaskQueue: priority-ordered ready queue (FIFO within a priority)
// =============================================================================

type priorityItem struct {
	item TaskItem
	seq  uint64 // Insertion order for FIFO within the same priority
}

type priorityHeap []priorityItem

func (h priorityHeap) Len() int { return len(h) }

func (h priorityHeap) Less(i, j int) bool {
	if h[i].item.Traits.Priority != h[j].item.Traits.Priority {
		return h[i].item.Traits.Priority > h[j].item.Traits.Priority
	}
	return h[i].seq < h[j].seq
}

func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *priorityHeap) Push(x any) {
	*h = append(*h, x.(priorityItem))
}

func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = priorityItem{}
	*h = old[:n-1]
	return it
}

type PriorityTaskQueue struct {
	mu      sync.Mutex
	heap    priorityHeap
	nextSeq uint64
}

func NewPriorityTaskQueue() *PriorityTaskQueue {
	return &PriorityTaskQueue{}
}

func (q *PriorityTaskQueue) Push(t Task, traits TaskTraits) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.heap, priorityItem{
		item: TaskItem{Task: t, Traits: traits},
		seq:  q.nextSeq,
	})
	q.nextSeq++
}

func (q *PriorityTaskQueue) Pop() (TaskItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) == 0 {
		return TaskItem{}, false
	}
	return heap.Pop(&q.heap).(priorityItem).item, true
}

func (q *PriorityTaskQueue) PeekTraits() (TaskTraits, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return TaskTraits{}, false
	}
	return q.heap[0].item.Traits, true
}

func (q *PriorityTaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

func (q *PriorityTaskQueue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *PriorityTaskQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.heap = nil
}
