// Package metrics tracks in-process counters for the worker engine: job
// outcomes by queue/className/status, queue depths, and worker utilization.
// It backs internal/observer.MetricsObserver.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/muaviaUsmani/bananas/internal/job"
)

var (
	globalCollector *Collector
	once            sync.Once
)

// statusKey groups a counter by queue, job class name, and outcome status.
type statusKey struct {
	queue     string
	className string
	status    job.JobStatus
}

// Collector tracks system-wide metrics in memory.
type Collector struct {
	totalJobsQueued    atomic.Int64
	totalJobsStarted   atomic.Int64
	totalJobsCompleted atomic.Int64
	totalJobsRemoved   atomic.Int64
	totalJobsRetried   atomic.Int64

	mu            sync.RWMutex
	jobsByStatus  map[statusKey]int64
	queueDepths   map[string]int64
	totalDuration time.Duration
	operationCnt  int64
	startTime     time.Time
	activeWorkers int64
	totalWorkers  int64
}

// Metrics is a point-in-time snapshot of Collector state.
type Metrics struct {
	TotalJobsQueued    int64                 `json:"total_jobs_queued"`
	TotalJobsStarted   int64                 `json:"total_jobs_started"`
	TotalJobsCompleted int64                 `json:"total_jobs_completed"`
	TotalJobsRemoved   int64                 `json:"total_jobs_removed"`
	TotalJobsRetried   int64                 `json:"total_jobs_retried"`
	QueueDepths        map[string]int64      `json:"queue_depths"`
	AvgJobDuration     time.Duration         `json:"avg_job_duration"`
	WorkerUtilization  float64               `json:"worker_utilization"`
	Uptime             time.Duration         `json:"uptime"`
}

// Default returns the process-wide collector instance.
func Default() *Collector {
	once.Do(func() { globalCollector = NewCollector() })
	return globalCollector
}

// NewCollector creates a new, empty metrics collector.
func NewCollector() *Collector {
	return &Collector{
		jobsByStatus: make(map[statusKey]int64),
		queueDepths:  make(map[string]int64),
		startTime:    time.Now(),
	}
}

// RecordQueued increments the queued counter for queue/className.
func (c *Collector) RecordQueued(queue, className string) {
	c.totalJobsQueued.Add(1)
	c.bump(statusKey{queue, className, "queued"})
}

// RecordStarted increments the started counter for queue/className.
func (c *Collector) RecordStarted(queue, className string) {
	c.totalJobsStarted.Add(1)
	c.bump(statusKey{queue, className, "started"})
}

// RecordCompleted records an attempt's outcome and its duration.
func (c *Collector) RecordCompleted(queue, className string, status job.JobStatus, duration time.Duration) {
	c.totalJobsCompleted.Add(1)
	c.bump(statusKey{queue, className, status})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalDuration += duration
	c.operationCnt++
}

// RecordRetried increments the retry counter for queue/className.
func (c *Collector) RecordRetried(queue, className string) {
	c.totalJobsRetried.Add(1)
	c.bump(statusKey{queue, className, job.StatusErrorRetry})
}

// RecordRemoved increments the terminal-removal counter for queue/className.
func (c *Collector) RecordRemoved(queue, className string) {
	c.totalJobsRemoved.Add(1)
	c.bump(statusKey{queue, className, job.StatusErrorRemove})
}

func (c *Collector) bump(k statusKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobsByStatus[k]++
}

// RecordQueueDepth updates the current depth for queue.
func (c *Collector) RecordQueueDepth(queue string, depth int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queueDepths[queue] = depth
}

// RecordWorkerActivity updates worker utilization metrics.
func (c *Collector) RecordWorkerActivity(active, total int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeWorkers = active
	c.totalWorkers = total
}

// GetMetrics returns a snapshot of current metrics.
func (c *Collector) GetMetrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	queueDepths := make(map[string]int64, len(c.queueDepths))
	for k, v := range c.queueDepths {
		queueDepths[k] = v
	}

	var avgDuration time.Duration
	if c.operationCnt > 0 {
		avgDuration = c.totalDuration / time.Duration(c.operationCnt)
	}

	var utilization float64
	if c.totalWorkers > 0 {
		utilization = float64(c.activeWorkers) / float64(c.totalWorkers) * 100
	}

	return Metrics{
		TotalJobsQueued:    c.totalJobsQueued.Load(),
		TotalJobsStarted:   c.totalJobsStarted.Load(),
		TotalJobsCompleted: c.totalJobsCompleted.Load(),
		TotalJobsRemoved:   c.totalJobsRemoved.Load(),
		TotalJobsRetried:   c.totalJobsRetried.Load(),
		QueueDepths:        queueDepths,
		AvgJobDuration:     avgDuration,
		WorkerUtilization:  utilization,
		Uptime:             time.Since(c.startTime),
	}
}

// Reset clears all metrics. Useful for tests.
func (c *Collector) Reset() {
	c.totalJobsQueued.Store(0)
	c.totalJobsStarted.Store(0)
	c.totalJobsCompleted.Store(0)
	c.totalJobsRemoved.Store(0)
	c.totalJobsRetried.Store(0)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobsByStatus = make(map[statusKey]int64)
	c.queueDepths = make(map[string]int64)
	c.totalDuration = 0
	c.operationCnt = 0
	c.startTime = time.Now()
	c.activeWorkers = 0
	c.totalWorkers = 0
}

// GetMetrics returns metrics from the global collector.
func GetMetrics() Metrics { return Default().GetMetrics() }

// ResetMetrics resets the global collector.
func ResetMetrics() { Default().Reset() }
