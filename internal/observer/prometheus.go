package observer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/muaviaUsmani/bananas/internal/job"
)

// PrometheusObserver exports the five lifecycle hooks as Prometheus
// counters/histograms labeled by queue, className, and (where relevant)
// outcome status. Grounded on g-cesar-DistributedQ's labeled-counter
// metrics usage.
type PrometheusObserver struct {
	queued    *prometheus.CounterVec
	started   *prometheus.CounterVec
	completed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	retried   *prometheus.CounterVec
	removed   *prometheus.CounterVec
}

// NewPrometheusObserver registers its metrics against reg (use
// prometheus.DefaultRegisterer in production, a fresh prometheus.NewRegistry()
// in tests to avoid duplicate-registration panics across test runs).
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	o := &PrometheusObserver{
		queued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bananas_jobs_queued_total",
			Help: "Jobs pushed onto a queue.",
		}, []string{"queue", "class"}),
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bananas_jobs_started_total",
			Help: "Job attempts started.",
		}, []string{"queue", "class"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bananas_jobs_completed_total",
			Help: "Job attempts completed, by outcome status.",
		}, []string{"queue", "class", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bananas_job_duration_seconds",
			Help:    "Attempt wall-clock duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue", "class"}),
		retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bananas_jobs_retried_total",
			Help: "Jobs re-enqueued after a failed attempt.",
		}, []string{"queue", "class"}),
		removed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bananas_jobs_removed_total",
			Help: "Jobs reaching a terminal failure.",
		}, []string{"queue", "class"}),
	}

	reg.MustRegister(o.queued, o.started, o.completed, o.duration, o.retried, o.removed)
	return o
}

func (o *PrometheusObserver) OnJobQueued(queue, className, _ string) {
	o.queued.WithLabelValues(queue, className).Inc()
}

func (o *PrometheusObserver) OnJobStarted(queue, className, _ string, _ uint) {
	o.started.WithLabelValues(queue, className).Inc()
}

func (o *PrometheusObserver) OnJobCompleted(queue, className, _ string, status job.JobStatus, start time.Time, _ uint) {
	o.completed.WithLabelValues(queue, className, string(status)).Inc()
	o.duration.WithLabelValues(queue, className).Observe(time.Since(start).Seconds())
}

func (o *PrometheusObserver) OnJobRetry(queue, className, _ string, _ uint, _ int64) {
	o.retried.WithLabelValues(queue, className).Inc()
}

func (o *PrometheusObserver) OnJobRemoved(queue, className, _ string, _ job.JobStatus, _ uint) {
	o.removed.WithLabelValues(queue, className).Inc()
}
