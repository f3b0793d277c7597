// Package worker implements the Queue Worker: the Push/DoOne/Loop state
// machine that is the heart of the system. It orchestrates the queue
// backend, the job registry and codec, the process isolator, and the
// metrics observer into one attempt-at-a-time execution engine.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/muaviaUsmani/bananas/internal/isolate"
	"github.com/muaviaUsmani/bananas/internal/job"
	"github.com/muaviaUsmani/bananas/internal/logger"
	"github.com/muaviaUsmani/bananas/internal/observer"
	"github.com/muaviaUsmani/bananas/internal/queue"
)

// Config is the Queue Worker's option set, matching spec.md §4.F's table.
type Config struct {
	// ForkToHandle runs each attempt in a fresh child process when true.
	ForkToHandle bool
	// CleanSuccessfulJobsLogs deletes a successful record immediately
	// instead of keeping it with a TTL.
	CleanSuccessfulJobsLogs bool
	// JobLogExpireSeconds is the TTL applied to retained records.
	JobLogExpireSeconds int
	// QueueTimeout is the seconds for one blocking-pop attempt.
	QueueTimeout int
	// JobTimeout bounds a single attempt's execution; zero means no bound.
	JobTimeout time.Duration
}

// Worker ties a backend, registry, isolator, and observer together into the
// Push/DoOne/Loop engine described by the spec's Queue Worker section.
type Worker struct {
	backend  queue.Backend
	registry *job.Registry
	isolator isolate.Isolator
	observer observer.Observer
	cfg      Config
	log      logger.Logger
}

// New constructs a Worker. obs may be nil, in which case a no-op observer is
// used. obs is wrapped in a MultiObserver so a panicking hook is swallowed.
func New(backend queue.Backend, registry *job.Registry, isolator isolate.Isolator, obs observer.Observer, cfg Config) *Worker {
	if obs == nil {
		obs = observer.NoOpObserver{}
	}
	return &Worker{
		backend:  backend,
		registry: registry,
		isolator: isolator,
		observer: observer.NewMultiObserver(obs),
		cfg:      cfg,
		log:      logger.Default().WithComponent(logger.ComponentWorker),
	}
}

// Push encodes j, stores its persistent record, and enqueues it onto queue
// (immediately, or deferred until scheduledAt if non-nil). Returns the
// generated uuid.
func (w *Worker) Push(ctx context.Context, queueName string, j job.Job, scheduledAt *time.Time) (string, error) {
	name := j.Name()

	env, err := job.Encode(name, j)
	if err != nil {
		return "", fmt.Errorf("worker: push: %w", err)
	}

	persistentKey := "job_instance:" + env.UUID

	record := queue.JobRecord{
		queue.FieldTries:     "0",
		queue.FieldMaxTries:  strconv.FormatUint(uint64(j.MaxTries()), 10),
		queue.FieldPayload:   string(env.Data),
		queue.FieldCreatedAt: strconv.FormatInt(time.Now().Unix(), 10),
		queue.FieldClassName: name,
	}

	if err := w.backend.SetPersistentData(ctx, persistentKey, record); err != nil {
		return "", fmt.Errorf("worker: push: %w", err)
	}

	if scheduledAt != nil {
		if err := w.backend.PushToLater(ctx, queueName, persistentKey, scheduledAt.Unix()); err != nil {
			return "", fmt.Errorf("worker: push: %w", err)
		}
	} else {
		if err := w.backend.Push(ctx, queueName, persistentKey); err != nil {
			return "", fmt.Errorf("worker: push: %w", err)
		}
	}

	w.observer.OnJobQueued(queueName, name, env.UUID)

	return env.UUID, nil
}

// DoOne runs a single pop-decode-execute-classify-persist iteration against
// queueName. It returns false when there was no work to do (the queue was
// empty for the whole QueueTimeout). A popped key whose record has already
// been garbage-collected is dropped and still reported as true.
func (w *Worker) DoOne(ctx context.Context, queueName string) (bool, error) {
	key, ok, err := w.backend.Pop(ctx, queueName, w.cfg.QueueTimeout)
	if err != nil {
		return false, fmt.Errorf("worker: pop: %w", err)
	}
	if !ok {
		return false, nil
	}

	record, err := w.backend.GetPersistentData(ctx, key)
	if err != nil {
		return false, fmt.Errorf("worker: get record: %w", err)
	}
	if record == nil {
		w.log.Debug("popped key has no persistent record, dropping", "key", key)
		return true, nil
	}

	jobUUID := uuidFromKey(key)
	className := record[queue.FieldClassName]
	tries := parseUintField(record[queue.FieldTries])
	maxTries := parseUintField(record[queue.FieldMaxTries])

	env := job.Envelope{ClassName: className, UUID: jobUUID, Data: []byte(record[queue.FieldPayload])}

	j, err := job.Decode(w.registry, env, tries, maxTries)
	if err != nil {
		w.log.Warn("decode failed, retrying", "key", key, "class", className, "error", err)
		w.finishAsRetry(ctx, queueName, key, record, tries, env.ClassName, jobUUID, err.Error())
		return true, nil
	}

	start := time.Now()
	w.observer.OnJobStarted(queueName, className, jobUUID, tries)

	runCtx := ctx
	if w.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.cfg.JobTimeout)
		defer cancel()
	}

	result := w.isolator.Run(runCtx, env, j)

	status := result.Status
	if status != job.StatusNoError {
		if j.RetryIfError() && tries+1 < maxTries {
			status = job.StatusErrorRetry
		} else {
			status = job.StatusErrorRemove
		}
	}

	record[queue.FieldTries] = strconv.FormatUint(uint64(tries+1), 10)
	record[queue.FieldRetryAfter] = strconv.FormatInt(retryAfterSeconds(status, j), 10)
	if result.Stdout != "" {
		record[queue.FieldJobStdout] = result.Stdout
	}
	if result.Stderr != "" {
		record[queue.FieldJobStderr] = result.Stderr
	}
	if result.Exception != "" {
		record[queue.FieldLastException] = result.Exception
	}

	w.observer.OnJobCompleted(queueName, className, jobUUID, status, start, tries+1)

	if err := w.applyResultPolicy(ctx, queueName, key, record, status, className, jobUUID, tries); err != nil {
		return false, err
	}

	return true, nil
}

// applyResultPolicy implements step 9 of DoOne.
func (w *Worker) applyResultPolicy(ctx context.Context, queueName, key string, record queue.JobRecord, status job.JobStatus, className, uuid string, priorTries uint) error {
	switch status {
	case job.StatusNoError:
		if w.cfg.CleanSuccessfulJobsLogs {
			return w.backend.DelPersistentData(ctx, key)
		}
		if err := w.backend.SetPersistentData(ctx, key, record); err != nil {
			return err
		}
		return w.backend.Expire(ctx, key, w.cfg.JobLogExpireSeconds)

	case job.StatusErrorRemove:
		if err := w.backend.SetPersistentData(ctx, key, record); err != nil {
			return err
		}
		if err := w.backend.Expire(ctx, key, w.cfg.JobLogExpireSeconds); err != nil {
			return err
		}
		w.observer.OnJobRemoved(queueName, className, uuid, status, priorTries+1)
		return nil

	default: // StatusErrorRetry, StatusErrorExcept
		if err := w.backend.SetPersistentData(ctx, key, record); err != nil {
			return err
		}

		retryAfter := parseInt64Field(record[queue.FieldRetryAfter])
		if retryAfter <= 0 {
			if err := w.backend.Push(ctx, queueName, key); err != nil {
				return err
			}
		} else {
			if err := w.backend.PushToLater(ctx, queueName, key, time.Now().Unix()+retryAfter); err != nil {
				return err
			}
		}

		w.observer.OnJobRetry(queueName, className, uuid, priorTries+1, retryAfter)
		return nil
	}
}

// finishAsRetry handles a decode failure (step 4's "on decode failure →
// errorretry"): the record's try count advances and it goes back on the
// ready list without ever reaching onJobStarted.
func (w *Worker) finishAsRetry(ctx context.Context, queueName, key string, record queue.JobRecord, tries uint, className, uuid, reason string) {
	record[queue.FieldTries] = strconv.FormatUint(uint64(tries+1), 10)
	record[queue.FieldRetryAfter] = "0"
	record[queue.FieldLastException] = reason
	_ = w.backend.SetPersistentData(ctx, key, record)
	_ = w.backend.Push(ctx, queueName, key)
	w.observer.OnJobRetry(queueName, className, uuid, tries+1, 0)
}

// Loop calls DoOne until stop reports true, checked between iterations
// (never mid-attempt).
func (w *Worker) Loop(ctx context.Context, queueName string, stop func() bool) {
	for {
		if stop() {
			return
		}
		if ctx.Err() != nil {
			return
		}

		if _, err := w.DoOne(ctx, queueName); err != nil {
			w.log.Warn("DoOne failed", "queue", queueName, "error", err)
		}
	}
}

// PendingJobTypeCounts reports, for queueName's ready list, how many pending
// entries carry each className in their persistent record; the registry is
// not consulted, and keys without a record are skipped. This is the supplemented
// GetNumberOfPendentJobTypes operation from the original implementation.
func (w *Worker) PendingJobTypeCounts(ctx context.Context, queueName string) (map[string]int, error) {
	keys, err := w.backend.GetFullQueue(ctx, queueName)
	if err != nil {
		return nil, fmt.Errorf("worker: pending counts: %w", err)
	}

	counts := make(map[string]int)
	for _, key := range keys {
		className, ok, err := w.backend.GetPersistentField(ctx, key, queue.FieldClassName)
		if err != nil {
			return nil, fmt.Errorf("worker: pending counts: %w", err)
		}
		if !ok {
			continue
		}
		counts[className]++
	}

	return counts, nil
}

func uuidFromKey(key string) string {
	const prefix = "job_instance:"
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):]
	}
	return key
}

func parseUintField(s string) uint {
	v, _ := strconv.ParseUint(s, 10, 64)
	return uint(v)
}

func parseInt64Field(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

// retryAfterSeconds returns the backoff a retried job requested via the
// optional job.RetryDelayer capability, or 0 (immediate retry) otherwise.
// Only meaningful when status is StatusErrorRetry; any other outcome
// explicitly clears the record's retryAfter field for the next attempt.
func retryAfterSeconds(status job.JobStatus, j job.Job) int64 {
	if status != job.StatusErrorRetry {
		return 0
	}
	rd, ok := j.(job.RetryDelayer)
	if !ok {
		return 0
	}
	if delay := rd.RetryAfterSeconds(); delay > 0 {
		return delay
	}
	return 0
}
