package observer

import (
	"testing"
	"time"

	"github.com/muaviaUsmani/bananas/internal/job"
	"github.com/muaviaUsmani/bananas/internal/metrics"
)

type recordingObserver struct {
	events []string
}

func (r *recordingObserver) OnJobQueued(queue, className, uuid string) {
	r.events = append(r.events, "queued:"+uuid)
}
func (r *recordingObserver) OnJobStarted(queue, className, uuid string, tries uint) {
	r.events = append(r.events, "started:"+uuid)
}
func (r *recordingObserver) OnJobCompleted(queue, className, uuid string, status job.JobStatus, start time.Time, tries uint) {
	r.events = append(r.events, "completed:"+uuid)
}
func (r *recordingObserver) OnJobRetry(queue, className, uuid string, tries uint, retryAfterSecs int64) {
	r.events = append(r.events, "retry:"+uuid)
}
func (r *recordingObserver) OnJobRemoved(queue, className, uuid string, finalStatus job.JobStatus, totalTries uint) {
	r.events = append(r.events, "removed:"+uuid)
}

type panickingObserver struct{}

func (panickingObserver) OnJobQueued(string, string, string)                                  { panic("boom") }
func (panickingObserver) OnJobStarted(string, string, string, uint)                            { panic("boom") }
func (panickingObserver) OnJobCompleted(string, string, string, job.JobStatus, time.Time, uint) { panic("boom") }
func (panickingObserver) OnJobRetry(string, string, string, uint, int64)                       { panic("boom") }
func (panickingObserver) OnJobRemoved(string, string, string, job.JobStatus, uint)              { panic("boom") }

func TestMultiObserver_FansOutToAllMembers(t *testing.T) {
	a := &recordingObserver{}
	b := &recordingObserver{}
	m := NewMultiObserver(a, b)

	m.OnJobQueued("q", "Echo", "u1")

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected both observers notified, got %v and %v", a.events, b.events)
	}
}

func TestMultiObserver_SwallowsPanickingMember(t *testing.T) {
	ok := &recordingObserver{}
	m := NewMultiObserver(panickingObserver{}, ok)

	m.OnJobStarted("q", "Echo", "u1", 1)

	if len(ok.events) != 1 {
		t.Fatalf("expected the non-panicking observer to still be notified, got %v", ok.events)
	}
}

func TestMetricsObserver_RecordsLifecycle(t *testing.T) {
	collector := metrics.NewCollector()
	obs := NewMetricsObserver(collector)

	obs.OnJobQueued("q", "Echo", "u1")
	obs.OnJobStarted("q", "Echo", "u1", 1)
	obs.OnJobCompleted("q", "Echo", "u1", job.StatusNoError, time.Now(), 1)

	m := collector.GetMetrics()
	if m.TotalJobsQueued != 1 || m.TotalJobsStarted != 1 || m.TotalJobsCompleted != 1 {
		t.Fatalf("expected one of each event recorded, got %+v", m)
	}
}
