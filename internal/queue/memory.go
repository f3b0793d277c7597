package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// scheduledEntry is one item in a queue's scheduled min-heap, ordered by
// score and, for ties, insertion order (emulating Redis ZSET's
// lexicographic tie-break closely enough for single-process tests: FIFO
// among equal scores is a reasonable, documented substitute).
type scheduledEntry struct {
	key   string
	score int64
	seq   uint64
}

type scheduledHeap []*scheduledEntry

func (h scheduledHeap) Len() int { return len(h) }
func (h scheduledHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	return h[i].seq < h[j].seq
}
func (h scheduledHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *scheduledHeap) Push(x any)   { *h = append(*h, x.(*scheduledEntry)) }
func (h *scheduledHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type memQueue struct {
	ready     []string
	scheduled scheduledHeap
}

// MemoryBackend is the reference, non-durable Backend implementation used
// for tests and local development. It emulates the same merge and
// blocking-pop semantics as RedisBackend with a mutex and a condition
// variable instead of network round trips.
type MemoryBackend struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queues  map[string]*memQueue
	records map[string]JobRecord
	expires map[string]time.Time
	seq     uint64
}

// NewMemoryBackend constructs an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	b := &MemoryBackend{
		queues:  make(map[string]*memQueue),
		records: make(map[string]JobRecord),
		expires: make(map[string]time.Time),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *MemoryBackend) queueFor(name string) *memQueue {
	q, ok := b.queues[name]
	if !ok {
		q = &memQueue{}
		b.queues[name] = q
	}
	return q
}

func (b *MemoryBackend) Push(_ context.Context, queue, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.queueFor(queue)
	q.ready = append(q.ready, key)
	b.cond.Broadcast()
	return nil
}

func (b *MemoryBackend) PushToLater(_ context.Context, queue, key string, when int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.queueFor(queue)
	b.seq++
	heap.Push(&q.scheduled, &scheduledEntry{key: key, score: when, seq: b.seq})
	b.cond.Broadcast()
	return nil
}

// migrateDue moves any scheduled entries whose score <= now onto the ready
// list. Caller must hold b.mu.
func (b *MemoryBackend) migrateDue(q *memQueue, now int64) {
	for q.scheduled.Len() > 0 && q.scheduled[0].score <= now {
		entry := heap.Pop(&q.scheduled).(*scheduledEntry)
		q.ready = append(q.ready, entry.key)
	}
}

func (b *MemoryBackend) Pop(_ context.Context, queue string, timeoutSeconds int) (string, bool, error) {
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)

	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		q := b.queueFor(queue)
		b.migrateDue(q, time.Now().Unix())

		if len(q.ready) > 0 {
			key := q.ready[0]
			q.ready = q.ready[1:]
			return key, true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", false, nil
		}

		timer := time.AfterFunc(remaining, func() {
			b.mu.Lock()
			b.cond.Broadcast()
			b.mu.Unlock()
		})
		b.cond.Wait()
		timer.Stop()
	}
}

func (b *MemoryBackend) GetFullQueue(_ context.Context, queue string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.queueFor(queue)
	out := make([]string, len(q.ready))
	copy(out, q.ready)
	return out, nil
}

func (b *MemoryBackend) recordLocked(key string) JobRecord {
	if exp, ok := b.expires[key]; ok && time.Now().After(exp) {
		delete(b.records, key)
		delete(b.expires, key)
	}
	return b.records[key]
}

func (b *MemoryBackend) GetPersistentData(_ context.Context, key string) (JobRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := b.recordLocked(key)
	if rec == nil {
		return nil, nil
	}
	out := make(JobRecord, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, nil
}

func (b *MemoryBackend) GetPersistentField(_ context.Context, key, field string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := b.recordLocked(key)
	if rec == nil {
		return "", false, nil
	}
	v, ok := rec[field]
	return v, ok, nil
}

func (b *MemoryBackend) SetPersistentData(_ context.Context, key string, fields JobRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[key]
	if !ok {
		rec = make(JobRecord)
		b.records[key] = rec
	}
	for k, v := range fields {
		rec[k] = v
	}
	return nil
}

func (b *MemoryBackend) DelPersistentData(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.records, key)
	delete(b.expires, key)
	return nil
}

func (b *MemoryBackend) Expire(_ context.Context, key string, seconds int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.records[key]; !ok {
		return nil
	}
	b.expires[key] = time.Now().Add(time.Duration(seconds) * time.Second)
	return nil
}

func (b *MemoryBackend) TTL(_ context.Context, key string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.records[key]; !ok {
		return -2, nil
	}
	exp, ok := b.expires[key]
	if !ok {
		return -1, nil
	}
	remaining := int64(time.Until(exp).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (b *MemoryBackend) Size(_ context.Context, queue string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.queueFor(queue)
	return int64(len(q.ready) + q.scheduled.Len()), nil
}

func (b *MemoryBackend) Clear(_ context.Context, queue string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.queueFor(queue)
	count := int64(len(q.ready) + q.scheduled.Len())
	q.ready = nil
	q.scheduled = nil
	return count, nil
}
