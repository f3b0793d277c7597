package metrics

import (
	"testing"
	"time"

	"github.com/muaviaUsmani/bananas/internal/job"
)

func TestNewCollector_StartsEmpty(t *testing.T) {
	c := NewCollector()

	m := c.GetMetrics()
	if m.TotalJobsQueued != 0 || m.TotalJobsStarted != 0 || m.TotalJobsCompleted != 0 {
		t.Errorf("expected zeroed collector, got %+v", m)
	}
}

func TestCollector_RecordQueuedAndStarted(t *testing.T) {
	c := NewCollector()

	c.RecordQueued("q", "Echo")
	c.RecordStarted("q", "Echo")
	c.RecordStarted("q", "Echo")

	m := c.GetMetrics()
	if m.TotalJobsQueued != 1 {
		t.Errorf("expected 1 queued, got %d", m.TotalJobsQueued)
	}
	if m.TotalJobsStarted != 2 {
		t.Errorf("expected 2 started, got %d", m.TotalJobsStarted)
	}
}

func TestCollector_RecordCompletedTracksDuration(t *testing.T) {
	c := NewCollector()

	c.RecordCompleted("q", "Echo", job.StatusNoError, 10*time.Millisecond)
	c.RecordCompleted("q", "Echo", job.StatusErrorRetry, 30*time.Millisecond)

	m := c.GetMetrics()
	if m.TotalJobsCompleted != 2 {
		t.Errorf("expected 2 completed, got %d", m.TotalJobsCompleted)
	}
	if m.AvgJobDuration != 20*time.Millisecond {
		t.Errorf("expected avg duration 20ms, got %v", m.AvgJobDuration)
	}
}

func TestCollector_RecordRetriedAndRemoved(t *testing.T) {
	c := NewCollector()

	c.RecordRetried("q", "Fail")
	c.RecordRemoved("q", "Fail")

	m := c.GetMetrics()
	if m.TotalJobsRetried != 1 {
		t.Errorf("expected 1 retried, got %d", m.TotalJobsRetried)
	}
	if m.TotalJobsRemoved != 1 {
		t.Errorf("expected 1 removed, got %d", m.TotalJobsRemoved)
	}
}

func TestCollector_RecordQueueDepth(t *testing.T) {
	c := NewCollector()

	c.RecordQueueDepth("q", 5)
	m := c.GetMetrics()
	if m.QueueDepths["q"] != 5 {
		t.Errorf("expected depth 5, got %d", m.QueueDepths["q"])
	}
}

func TestCollector_WorkerUtilization(t *testing.T) {
	c := NewCollector()

	c.RecordWorkerActivity(3, 10)
	m := c.GetMetrics()
	if m.WorkerUtilization != 30 {
		t.Errorf("expected utilization 30%%, got %f", m.WorkerUtilization)
	}
}

func TestCollector_Reset(t *testing.T) {
	c := NewCollector()
	c.RecordQueued("q", "Echo")
	c.Reset()

	m := c.GetMetrics()
	if m.TotalJobsQueued != 0 {
		t.Errorf("expected reset collector, got %+v", m)
	}
}
