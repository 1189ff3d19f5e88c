package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/coopruntime/go-coop-runner/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// WorkerSnapshotProvider provides current worker stats snapshots.
type WorkerSnapshotProvider interface {
	Stats() core.WorkerStats
}

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports worker/pool Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	workersMu sync.RWMutex
	workers   map[string]WorkerSnapshotProvider

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	workerPending *prom.GaugeVec
	workerResumes *prom.GaugeVec
	workerYields  *prom.GaugeVec
	workerClosed  *prom.GaugeVec

	poolQueued  *prom.GaugeVec
	poolActive  *prom.GaugeVec
	poolYields  *prom.GaugeVec
	poolWorkers *prom.GaugeVec
	poolRunning *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	workerPending := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cooprunner",
		Name:      "worker_pending",
		Help:      "Number of pending tasks per worker.",
	}, []string{"worker", "type"})
	workerResumes := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cooprunner",
		Name:      "worker_resumes_total",
		Help:      "Worker resume count snapshot.",
	}, []string{"worker", "type"})
	workerYields := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cooprunner",
		Name:      "worker_budget_yields_total",
		Help:      "Worker budget-exhaustion yield count snapshot.",
	}, []string{"worker", "type"})
	workerClosed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cooprunner",
		Name:      "worker_closed",
		Help:      "Worker closed state (1=closed, 0=open).",
	}, []string{"worker", "type"})

	poolQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cooprunner",
		Name:      "pool_queued",
		Help:      "Queued tasks per pool.",
	}, []string{"pool"})
	poolActive := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cooprunner",
		Name:      "pool_active",
		Help:      "Active tasks per pool.",
	}, []string{"pool"})
	poolYields := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cooprunner",
		Name:      "pool_budget_yields_total",
		Help:      "Pool budget-exhaustion yield count snapshot.",
	}, []string{"pool"})
	poolWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cooprunner",
		Name:      "pool_workers",
		Help:      "Worker count per pool.",
	}, []string{"pool"})
	poolRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cooprunner",
		Name:      "pool_running",
		Help:      "Pool running state (1=running, 0=stopped).",
	}, []string{"pool"})

	var err error
	if workerPending, err = registerCollector(reg, workerPending); err != nil {
		return nil, err
	}
	if workerResumes, err = registerCollector(reg, workerResumes); err != nil {
		return nil, err
	}
	if workerYields, err = registerCollector(reg, workerYields); err != nil {
		return nil, err
	}
	if workerClosed, err = registerCollector(reg, workerClosed); err != nil {
		return nil, err
	}
	if poolQueued, err = registerCollector(reg, poolQueued); err != nil {
		return nil, err
	}
	if poolActive, err = registerCollector(reg, poolActive); err != nil {
		return nil, err
	}
	if poolYields, err = registerCollector(reg, poolYields); err != nil {
		return nil, err
	}
	if poolWorkers, err = registerCollector(reg, poolWorkers); err != nil {
		return nil, err
	}
	if poolRunning, err = registerCollector(reg, poolRunning); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:      interval,
		workers:       make(map[string]WorkerSnapshotProvider),
		pools:         make(map[string]PoolSnapshotProvider),
		workerPending: workerPending,
		workerResumes: workerResumes,
		workerYields:  workerYields,
		workerClosed:  workerClosed,
		poolQueued:    poolQueued,
		poolActive:    poolActive,
		poolYields:    poolYields,
		poolWorkers:   poolWorkers,
		poolRunning:   poolRunning,
	}, nil
}

// AddWorker adds or replaces a worker snapshot provider by name.
func (p *SnapshotPoller) AddWorker(name string, provider WorkerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "worker")
	p.workersMu.Lock()
	p.workers[name] = provider
	p.workersMu.Unlock()
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.workersMu.RLock()
	for name, provider := range p.workers {
		stats := provider.Stats()
		typeLabel := normalizeLabel(stats.Type, "unknown")
		p.workerPending.WithLabelValues(name, typeLabel).Set(float64(stats.Pending))
		p.workerResumes.WithLabelValues(name, typeLabel).Set(float64(stats.Resumes))
		p.workerYields.WithLabelValues(name, typeLabel).Set(float64(stats.BudgetYields))
		if stats.Closed {
			p.workerClosed.WithLabelValues(name, typeLabel).Set(1)
		} else {
			p.workerClosed.WithLabelValues(name, typeLabel).Set(0)
		}
	}
	p.workersMu.RUnlock()

	p.poolsMu.RLock()
	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolYields.WithLabelValues(name).Set(float64(stats.BudgetYields))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		if stats.Running {
			p.poolRunning.WithLabelValues(name).Set(1)
		} else {
			p.poolRunning.WithLabelValues(name).Set(0)
		}
	}
	p.poolsMu.RUnlock()
}
