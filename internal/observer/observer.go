// Package observer implements the passive Metrics Observer surface: five
// hooks notified at every job lifecycle transition. All hooks are optional
// and non-failing — an observer that panics or errors never affects the
// job outcome.
package observer

import (
	"time"

	"github.com/muaviaUsmani/bananas/internal/job"
)

// Observer receives lifecycle notifications from a Worker. Implementations
// must not block meaningfully; the worker calls these synchronously from
// its own goroutine.
type Observer interface {
	OnJobQueued(queue, className, uuid string)
	OnJobStarted(queue, className, uuid string, tries uint)
	OnJobCompleted(queue, className, uuid string, status job.JobStatus, start time.Time, tries uint)
	OnJobRetry(queue, className, uuid string, tries uint, retryAfterSecs int64)
	OnJobRemoved(queue, className, uuid string, finalStatus job.JobStatus, totalTries uint)
}

// NoOpObserver implements Observer with empty bodies. Useful as a
// zero-value default so worker code never has to nil-check.
type NoOpObserver struct{}

func (NoOpObserver) OnJobQueued(string, string, string)                                     {}
func (NoOpObserver) OnJobStarted(string, string, string, uint)                               {}
func (NoOpObserver) OnJobCompleted(string, string, string, job.JobStatus, time.Time, uint)    {}
func (NoOpObserver) OnJobRetry(string, string, string, uint, int64)                           {}
func (NoOpObserver) OnJobRemoved(string, string, string, job.JobStatus, uint)                 {}

// MultiObserver fans a notification out to every member, swallowing panics
// from any one of them (ObserverError, spec.md §7.5) so a broken observer
// never takes down the worker. Grounded on the teacher's MultiLogger
// fan-out pattern in internal/logger/logger.go.
type MultiObserver struct {
	Observers []Observer
}

// NewMultiObserver constructs a fan-out observer over the given members.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	return &MultiObserver{Observers: observers}
}

func safely(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

func (m *MultiObserver) OnJobQueued(queue, className, uuid string) {
	for _, o := range m.Observers {
		o := o
		safely(func() { o.OnJobQueued(queue, className, uuid) })
	}
}

func (m *MultiObserver) OnJobStarted(queue, className, uuid string, tries uint) {
	for _, o := range m.Observers {
		o := o
		safely(func() { o.OnJobStarted(queue, className, uuid, tries) })
	}
}

func (m *MultiObserver) OnJobCompleted(queue, className, uuid string, status job.JobStatus, start time.Time, tries uint) {
	for _, o := range m.Observers {
		o := o
		safely(func() { o.OnJobCompleted(queue, className, uuid, status, start, tries) })
	}
}

func (m *MultiObserver) OnJobRetry(queue, className, uuid string, tries uint, retryAfterSecs int64) {
	for _, o := range m.Observers {
		o := o
		safely(func() { o.OnJobRetry(queue, className, uuid, tries, retryAfterSecs) })
	}
}

func (m *MultiObserver) OnJobRemoved(queue, className, uuid string, finalStatus job.JobStatus, totalTries uint) {
	for _, o := range m.Observers {
		o := o
		safely(func() { o.OnJobRemoved(queue, className, uuid, finalStatus, totalTries) })
	}
}
