// Package client is a thin producer-facing facade: it lets a process that
// only enqueues work (never runs it) push jobs onto a queue without
// depending on a registry, isolator, or observer of its own.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/muaviaUsmani/bananas/internal/job"
	"github.com/muaviaUsmani/bananas/internal/queue"
	"github.com/muaviaUsmani/bananas/internal/worker"
)

// Client pushes jobs onto a Redis-backed queue.
type Client struct {
	backend *queue.RedisBackend
	pusher  *worker.Worker
}

// New connects to redisURL and returns a Client ready to push jobs.
func New(redisURL string, opts queue.RedisOptions) (*Client, error) {
	backend, err := queue.NewRedisBackend(redisURL, opts)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	// The worker backing Push never calls DoOne, so the isolator, observer,
	// registry, and Config it carries are all irrelevant to this facade.
	w := worker.New(backend, job.NewRegistry(), nil, nil, worker.Config{})

	return &Client{backend: backend, pusher: w}, nil
}

// Push enqueues j onto queueName for immediate processing. Returns the
// generated uuid.
func (c *Client) Push(ctx context.Context, queueName string, j job.Job) (string, error) {
	return c.pusher.Push(ctx, queueName, j, nil)
}

// PushLater enqueues j onto queueName, deferred until at.
func (c *Client) PushLater(ctx context.Context, queueName string, j job.Job, at time.Time) (string, error) {
	return c.pusher.Push(ctx, queueName, j, &at)
}

// PendingJobTypeCounts reports how many pending entries on queueName carry
// each className in their persistent record.
func (c *Client) PendingJobTypeCounts(ctx context.Context, queueName string) (map[string]int, error) {
	return c.pusher.PendingJobTypeCounts(ctx, queueName)
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	return c.backend.Close()
}
