package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/coopruntime/go-coop-runner/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	resumeDurationSeconds    *prom.HistogramVec
	budgetYieldTotal         *prom.CounterVec
	forcedUnconstrainedTotal *prom.CounterVec
	taskPanicTotal           *prom.CounterVec
	taskRejectedTotal        *prom.CounterVec
	queueDepth               *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "cooprunner"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "resume_duration_seconds",
		Help:      "Duration of one task resume in seconds.",
		Buckets:   buckets,
	}, []string{"worker", "priority"})
	yieldVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "budget_yield_total",
		Help:      "Total number of resumes that ended because the checkpoint budget was exhausted.",
	}, []string{"worker"})
	forcedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "budget_forced_unconstrained_total",
		Help:      "Total number of workers that removed their budget constraint.",
	}, []string{"worker"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task panics.",
	}, []string{"worker"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_rejected_total",
		Help:      "Total number of rejected tasks.",
	}, []string{"worker", "reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current ready-queue depth.",
	}, []string{"worker"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if yieldVec, err = registerCollector(reg, yieldVec); err != nil {
		return nil, err
	}
	if forcedVec, err = registerCollector(reg, forcedVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		resumeDurationSeconds:    durationVec,
		budgetYieldTotal:         yieldVec,
		forcedUnconstrainedTotal: forcedVec,
		taskPanicTotal:           panicVec,
		taskRejectedTotal:        rejectedVec,
		queueDepth:               queueDepthVec,
	}, nil
}

// RecordResumeDuration records the duration of one resume.
func (m *MetricsExporter) RecordResumeDuration(workerName string, priority core.TaskPriority, duration time.Duration) {
	if m == nil {
		return
	}
	m.resumeDurationSeconds.WithLabelValues(normalizeLabel(workerName, "unknown"), priorityLabel(priority)).Observe(duration.Seconds())
}

// RecordBudgetYield records a budget-exhaustion yield.
func (m *MetricsExporter) RecordBudgetYield(workerName string) {
	if m == nil {
		return
	}
	m.budgetYieldTotal.WithLabelValues(normalizeLabel(workerName, "unknown")).Inc()
}

// RecordForcedUnconstrained records a worker removing its budget constraint.
func (m *MetricsExporter) RecordForcedUnconstrained(workerName string) {
	if m == nil {
		return
	}
	m.forcedUnconstrainedTotal.WithLabelValues(normalizeLabel(workerName, "unknown")).Inc()
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(workerName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(workerName, "unknown")).Inc()
}

// RecordQueueDepth records ready-queue depth.
func (m *MetricsExporter) RecordQueueDepth(workerName string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(workerName, "unknown")).Set(float64(depth))
}

// RecordTaskRejected records task rejection events.
func (m *MetricsExporter) RecordTaskRejected(workerName string, reason string) {
	if m == nil {
		return
	}
	m.taskRejectedTotal.WithLabelValues(normalizeLabel(workerName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func priorityLabel(priority core.TaskPriority) string {
	switch priority {
	case core.TaskPriorityUserBlocking:
		return "user_blocking"
	case core.TaskPriorityUserVisible:
		return "user_visible"
	case core.TaskPriorityBestEffort:
		return "best_effort"
	default:
		return "unknown"
	}
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
