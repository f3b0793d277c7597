package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/muaviaUsmani/bananas/internal/job"
	"github.com/muaviaUsmani/bananas/internal/queue"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)

	c, err := New("redis://"+s.Addr(), queue.RedisOptions{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, s
}

func TestNew_ConnectionFailure(t *testing.T) {
	c, err := New("redis://invalid-host:9999", queue.RedisOptions{})
	if err == nil {
		t.Fatal("expected error for invalid Redis URL, got nil")
	}
	if c != nil {
		t.Error("expected nil client on connection failure")
	}
}

func TestPush_ReturnsValidUUID(t *testing.T) {
	c, s := newTestClient(t)
	defer s.Close()
	defer c.Close()

	jobID, err := c.Push(context.Background(), "default", job.NewEchoJob("hi"))
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(jobID) != 36 {
		t.Errorf("expected UUID length 36, got %d (%s)", len(jobID), jobID)
	}
}

func TestPush_StoresPersistentRecord(t *testing.T) {
	c, s := newTestClient(t)
	defer s.Close()
	defer c.Close()

	jobID, err := c.Push(context.Background(), "default", job.NewEchoJob("hi"))
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	record, err := c.backend.GetPersistentData(context.Background(), "job_instance:"+jobID)
	if err != nil {
		t.Fatalf("GetPersistentData: %v", err)
	}
	if record[queue.FieldClassName] != "Echo" {
		t.Errorf("expected className Echo, got %q", record[queue.FieldClassName])
	}
}

func TestPushLater_SchedulesRatherThanEnqueues(t *testing.T) {
	c, s := newTestClient(t)
	defer s.Close()
	defer c.Close()

	jobID, err := c.PushLater(context.Background(), "default", job.NewEchoJob("hi"), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PushLater: %v", err)
	}

	keys, err := c.backend.GetFullQueue(context.Background(), "default")
	if err != nil {
		t.Fatalf("GetFullQueue: %v", err)
	}
	for _, k := range keys {
		if k == "job_instance:"+jobID {
			t.Fatal("expected scheduled job not to appear on the ready list yet")
		}
	}
}

func TestPush_ConcurrentPushesAllSucceed(t *testing.T) {
	c, s := newTestClient(t)
	defer s.Close()
	defer c.Close()

	var wg sync.WaitGroup
	jobCount := 50
	errs := make(chan error, jobCount)

	for i := 0; i < jobCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Push(context.Background(), "default", job.NewEchoJob("hi"))
			if err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("error pushing job: %v", err)
	}
}

func TestPendingJobTypeCounts(t *testing.T) {
	c, s := newTestClient(t)
	defer s.Close()
	defer c.Close()

	ctx := context.Background()
	if _, err := c.Push(ctx, "default", job.NewEchoJob("a")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if _, err := c.Push(ctx, "default", job.NewEchoJob("b")); err != nil {
		t.Fatalf("Push: %v", err)
	}

	counts, err := c.PendingJobTypeCounts(ctx, "default")
	if err != nil {
		t.Fatalf("PendingJobTypeCounts: %v", err)
	}
	if counts["Echo"] != 2 {
		t.Errorf("expected 2 Echo jobs pending, got %d", counts["Echo"])
	}
}
