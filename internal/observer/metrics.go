package observer

import (
	"time"

	"github.com/muaviaUsmani/bananas/internal/job"
	"github.com/muaviaUsmani/bananas/internal/metrics"
)

// MetricsObserver adapts the five lifecycle hooks onto a metrics.Collector.
// Grounded on the C++ original's SimpleConsoleMetrics/WorkerMetricsCallback
// shape (five named callbacks) paired with the teacher's in-memory
// Collector.
type MetricsObserver struct {
	collector *metrics.Collector
}

// NewMetricsObserver wraps collector (or metrics.Default() if nil).
func NewMetricsObserver(collector *metrics.Collector) *MetricsObserver {
	if collector == nil {
		collector = metrics.Default()
	}
	return &MetricsObserver{collector: collector}
}

func (m *MetricsObserver) OnJobQueued(queue, className, _ string) {
	m.collector.RecordQueued(queue, className)
}

func (m *MetricsObserver) OnJobStarted(queue, className, _ string, _ uint) {
	m.collector.RecordStarted(queue, className)
}

func (m *MetricsObserver) OnJobCompleted(queue, className, _ string, status job.JobStatus, start time.Time, _ uint) {
	m.collector.RecordCompleted(queue, className, status, time.Since(start))
}

func (m *MetricsObserver) OnJobRetry(queue, className, _ string, _ uint, _ int64) {
	m.collector.RecordRetried(queue, className)
}

func (m *MetricsObserver) OnJobRemoved(queue, className, _ string, _ job.JobStatus, _ uint) {
	m.collector.RecordRemoved(queue, className)
}
