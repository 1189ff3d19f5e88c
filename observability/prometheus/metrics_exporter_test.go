package prometheus

import (
	"testing"
	"time"

	"github.com/coopruntime/go-coop-runner/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("cooprunner", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.RecordResumeDuration("worker-a", core.TaskPriorityUserVisible, 250*time.Millisecond)
	exporter.RecordBudgetYield("worker-a")
	exporter.RecordBudgetYield("worker-a")
	exporter.RecordForcedUnconstrained("worker-a")
	exporter.RecordTaskPanic("worker-a", "panic")
	exporter.RecordQueueDepth("worker-a", 7)
	exporter.RecordTaskRejected("worker-a", "shutdown")

	yieldTotal := testutil.ToFloat64(exporter.budgetYieldTotal.WithLabelValues("worker-a"))
	if yieldTotal != 2 {
		t.Fatalf("budget yield total = %v, want 2", yieldTotal)
	}

	forcedTotal := testutil.ToFloat64(exporter.forcedUnconstrainedTotal.WithLabelValues("worker-a"))
	if forcedTotal != 1 {
		t.Fatalf("forced unconstrained total = %v, want 1", forcedTotal)
	}

	panicTotal := testutil.ToFloat64(exporter.taskPanicTotal.WithLabelValues("worker-a"))
	if panicTotal != 1 {
		t.Fatalf("panic total = %v, want 1", panicTotal)
	}

	queueDepth := testutil.ToFloat64(exporter.queueDepth.WithLabelValues("worker-a"))
	if queueDepth != 7 {
		t.Fatalf("queue depth = %v, want 7", queueDepth)
	}

	rejected := testutil.ToFloat64(exporter.taskRejectedTotal.WithLabelValues("worker-a", "shutdown"))
	if rejected != 1 {
		t.Fatalf("rejected total = %v, want 1", rejected)
	}

	histCount, err := histogramSampleCount(exporter.resumeDurationSeconds.WithLabelValues("worker-a", "user_visible"))
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if histCount != 1 {
		t.Fatalf("duration sample count = %d, want 1", histCount)
	}
}

func TestMetricsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("cooprunner", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("first NewMetricsExporter failed: %v", err)
	}
	second, err := NewMetricsExporter("cooprunner", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("second NewMetricsExporter failed: %v", err)
	}

	first.RecordBudgetYield("worker-a")
	second.RecordBudgetYield("worker-a")

	got := testutil.ToFloat64(first.budgetYieldTotal.WithLabelValues("worker-a"))
	if got != 2 {
		t.Fatalf("shared yield counter = %v, want 2", got)
	}
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}
