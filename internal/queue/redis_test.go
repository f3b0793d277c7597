package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	backend, err := NewRedisBackend("redis://"+mr.Addr(), RedisOptions{Prefix: "bananas:"})
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}

	return backend, mr
}

func TestRedisBackend_PushPop(t *testing.T) {
	backend, mr := setupTestRedis(t)
	defer mr.Close()
	defer backend.Close()

	ctx := context.Background()

	if err := backend.Push(ctx, "q", "job_instance:1"); err != nil {
		t.Fatalf("push: %v", err)
	}

	key, ok, err := backend.Pop(ctx, "q", 1)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if !ok || key != "job_instance:1" {
		t.Fatalf("expected job_instance:1, got %q ok=%v", key, ok)
	}
}

func TestRedisBackend_PopTimeoutEmpty(t *testing.T) {
	backend, mr := setupTestRedis(t)
	defer mr.Close()
	defer backend.Close()

	_, ok, err := backend.Pop(context.Background(), "empty-q", 1)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if ok {
		t.Fatal("expected no key on empty queue")
	}
}

func TestRedisBackend_ScheduledPopAfterDue(t *testing.T) {
	backend, mr := setupTestRedis(t)
	defer mr.Close()
	defer backend.Close()

	ctx := context.Background()
	past := time.Now().Add(-1 * time.Second).Unix()

	if err := backend.PushToLater(ctx, "q", "job_instance:later", past); err != nil {
		t.Fatalf("pushtolater: %v", err)
	}

	key, ok, err := backend.Pop(ctx, "q", 1)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if !ok || key != "job_instance:later" {
		t.Fatalf("expected scheduled job to be delivered, got %q ok=%v", key, ok)
	}

	size, err := backend.Size(ctx, "q")
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if size != 0 {
		t.Errorf("expected queue to be empty after pop, got size=%d", size)
	}
}

func TestRedisBackend_ScheduledEntryNotYetDue(t *testing.T) {
	backend, mr := setupTestRedis(t)
	defer mr.Close()
	defer backend.Close()

	ctx := context.Background()
	future := time.Now().Add(1 * time.Hour).Unix()

	if err := backend.PushToLater(ctx, "q", "job_instance:future", future); err != nil {
		t.Fatalf("pushtolater: %v", err)
	}

	_, ok, err := backend.Pop(ctx, "q", 1)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if ok {
		t.Fatal("expected not-yet-due entry to remain undelivered")
	}
}

func TestRedisBackend_PersistentDataMergeSemantics(t *testing.T) {
	backend, mr := setupTestRedis(t)
	defer mr.Close()
	defer backend.Close()

	ctx := context.Background()
	key := "job_instance:abc"

	if err := backend.SetPersistentData(ctx, key, JobRecord{FieldTries: "0", FieldClassName: "Echo"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := backend.SetPersistentData(ctx, key, JobRecord{FieldTries: "1"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	rec, err := backend.GetPersistentData(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec[FieldTries] != "1" {
		t.Errorf("expected tries=1, got %s", rec[FieldTries])
	}
	if rec[FieldClassName] != "Echo" {
		t.Errorf("expected className to survive merge, got %s", rec[FieldClassName])
	}
}

func TestRedisBackend_DelPersistentData(t *testing.T) {
	backend, mr := setupTestRedis(t)
	defer mr.Close()
	defer backend.Close()

	ctx := context.Background()
	key := "job_instance:del"

	if err := backend.SetPersistentData(ctx, key, JobRecord{FieldTries: "0"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := backend.DelPersistentData(ctx, key); err != nil {
		t.Fatalf("del: %v", err)
	}

	rec, err := backend.GetPersistentData(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil record after delete, got %v", rec)
	}
}

func TestRedisBackend_Clear(t *testing.T) {
	backend, mr := setupTestRedis(t)
	defer mr.Close()
	defer backend.Close()

	ctx := context.Background()

	if err := backend.Push(ctx, "q", "a"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := backend.PushToLater(ctx, "q", "b", time.Now().Add(time.Hour).Unix()); err != nil {
		t.Fatalf("pushtolater: %v", err)
	}

	count, err := backend.Clear(ctx, "q")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 cleared, got %d", count)
	}

	size, err := backend.Size(ctx, "q")
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if size != 0 {
		t.Errorf("expected empty queue after clear, got %d", size)
	}
}
