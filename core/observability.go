package core

import "time"

// WorkerStats represents runtime observability state for a budgeted worker.
type WorkerStats struct {
	Name         string
	Type         string
	Pending      int
	Resumes      int64
	BudgetYields int64
	Blocking     bool
	Closed       bool
	LastResumeAt time.Time
}

// PoolStats represents runtime observability state for a worker pool.
type PoolStats struct {
	ID           string
	Workers      int
	Queued       int
	Active       int
	BudgetYields int64
	Running      bool
}
