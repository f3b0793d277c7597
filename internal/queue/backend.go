// Package queue provides the pluggable backend behind the worker engine:
// a named ready list plus a scored scheduled set for deferred entries, and
// a per-key persistent record store.
package queue

import "context"

// JobRecord is the durable, field-level-mergeable state attached to a
// persistentKey. Fields not mentioned in a SetPersistentData call are left
// untouched by backends that honor merge semantics (Redis HSET; the
// in-memory backend emulates the same contract).
type JobRecord map[string]string

// Canonical JobRecord field names, shared by every backend and by the worker.
const (
	FieldTries          = "tries"
	FieldMaxTries       = "maxtries"
	FieldPayload        = "payload"
	FieldCreatedAt      = "created_at_unixt"
	FieldClassName      = "className"
	FieldRetryAfter     = "retryAfter"
	FieldJobStdout      = "JobStdout"
	FieldJobStderr      = "JobStderr"
	FieldLastException  = "LastException"
)

// Backend abstracts push / deferred-push / blocking-pop / persistent-kv.
// Every operation may fail with a transient I/O error, which propagates to
// the caller unchanged.
type Backend interface {
	// Push appends key at the tail of queue's ready list.
	Push(ctx context.Context, queue, key string) error

	// PushToLater inserts key into queue's scheduled set with score when
	// (unix seconds).
	PushToLater(ctx context.Context, queue, key string, when int64) error

	// Pop removes and returns either the head of the ready list, waiting up
	// to timeoutSeconds, or a scheduled entry whose score <= now. The order
	// of the two checks is backend-specific: MemoryBackend moves due entries
	// onto the ready list before each check, while RedisBackend tries BLPOP
	// first and consults the scheduled set only after BLPOP times out.
	// Returns ("", false, nil) when neither yields an entry.
	Pop(ctx context.Context, queue string, timeoutSeconds int) (key string, ok bool, err error)

	// GetFullQueue returns a snapshot of queue's ready list.
	GetFullQueue(ctx context.Context, queue string) ([]string, error)

	// GetPersistentData returns the full record for key. A missing key
	// returns (nil, nil) — the caller distinguishes "absent" from "error".
	GetPersistentData(ctx context.Context, key string) (JobRecord, error)

	// GetPersistentField returns a single field, and whether it was present.
	GetPersistentField(ctx context.Context, key, field string) (string, bool, error)

	// SetPersistentData upserts fields into key's record with merge
	// semantics: fields not mentioned are left untouched.
	SetPersistentData(ctx context.Context, key string, fields JobRecord) error

	// DelPersistentData deletes key's record entirely.
	DelPersistentData(ctx context.Context, key string) error

	// Expire sets a TTL (seconds) on key's record.
	Expire(ctx context.Context, key string, seconds int) error

	// TTL returns the remaining seconds on key's record, or -1 if it has
	// none, or -2 if key does not exist.
	TTL(ctx context.Context, key string) (int64, error)

	// Size reports the combined count of ready-list and scheduled-set
	// entries for queue.
	Size(ctx context.Context, queue string) (int64, error)

	// Clear removes every entry from queue's ready list and scheduled set,
	// returning the count removed. Persistent records are untouched.
	Clear(ctx context.Context, queue string) (int64, error)
}
