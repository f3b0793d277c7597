package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// scheduledPopScript is the exact scheduled-pop Lua script: fetch the
// lowest-scored entry whose score <= now, remove it before returning so two
// concurrent workers cannot observe the same entry.
const scheduledPopScript = `
local expired = redis.call('zrangebyscore', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if expired and #expired > 0 then
    redis.call('zremrangebyrank', KEYS[1], 0, 0)
end
return expired
`

// clearScript removes every entry from a queue's ready list and scheduled
// set, returning the combined count removed — the supplemented "clear" op
// ported from Laravel's LuaScripts (via the C++ original).
const clearScript = `
local size = redis.call('llen', KEYS[1]) + redis.call('zcard', KEYS[2])
redis.call('del', KEYS[1], KEYS[2])
return size
`

// ErrBackendUnavailable is returned when the Redis circuit breaker is open
// or the underlying connection repeatedly fails.
var ErrBackendUnavailable = errors.New("queue: backend unavailable")

// RedisBackend is the durable Backend: ready list (LIST), scheduled set
// (ZSET), and persistent job records (HASH), all namespaced by prefix.
type RedisBackend struct {
	client  *redis.Client
	prefix  string
	breaker *gobreaker.CircuitBreaker
}

// RedisOptions configures connection pooling; zero-value fields fall back
// to sensible worker-queue defaults.
type RedisOptions struct {
	PoolSize        int
	MinIdleConns    int
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ConnMaxIdleTime time.Duration
	Prefix          string
}

// NewRedisBackend parses redisURL, applies pool tuning, verifies
// connectivity, and wraps every call in a circuit breaker so repeated Redis
// errors trip fast into ErrBackendUnavailable instead of retrying forever.
func NewRedisBackend(redisURL string, opts RedisOptions) (*RedisBackend, error) {
	parsed, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("queue: parse redis url: %w", err)
	}

	parsed.PoolSize = firstNonZero(opts.PoolSize, 50)
	parsed.MinIdleConns = firstNonZero(opts.MinIdleConns, 5)
	parsed.DialTimeout = firstNonZeroDuration(opts.DialTimeout, 5*time.Second)
	parsed.ReadTimeout = firstNonZeroDuration(opts.ReadTimeout, 10*time.Second)
	parsed.WriteTimeout = firstNonZeroDuration(opts.WriteTimeout, 3*time.Second)
	parsed.ConnMaxIdleTime = firstNonZeroDuration(opts.ConnMaxIdleTime, 10*time.Minute)
	parsed.ContextTimeoutEnabled = true

	client := redis.NewClient(parsed)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("queue: connect to redis: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-queue",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &RedisBackend{
		client:  client,
		prefix:  opts.Prefix,
		breaker: breaker,
	}, nil
}

func firstNonZero(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func firstNonZeroDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

func (b *RedisBackend) readyKey(queue string) string     { return b.prefix + queue }
func (b *RedisBackend) scheduledKey(queue string) string { return b.prefix + queue + ":later" }
func (b *RedisBackend) recordKey(key string) string      { return b.prefix + key }

func (b *RedisBackend) guard(ctx context.Context, fn func() error) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return ErrBackendUnavailable
		}
		return err
	}
	_ = ctx
	return nil
}

func (b *RedisBackend) Push(ctx context.Context, queue, key string) error {
	return b.guard(ctx, func() error {
		return b.client.RPush(ctx, b.readyKey(queue), key).Err()
	})
}

func (b *RedisBackend) PushToLater(ctx context.Context, queue, key string, when int64) error {
	return b.guard(ctx, func() error {
		return b.client.ZAdd(ctx, b.scheduledKey(queue), redis.Z{
			Score:  float64(when),
			Member: key,
		}).Err()
	})
}

// Pop implements spec.md §4.C's two-step pop: BLPOP first; on timeout, run
// the scheduled-pop Lua script against the scheduled set.
func (b *RedisBackend) Pop(ctx context.Context, queue string, timeoutSeconds int) (string, bool, error) {
	var key string
	var found bool

	err := b.guard(ctx, func() error {
		res, err := b.client.BLPop(ctx, time.Duration(timeoutSeconds)*time.Second, b.readyKey(queue)).Result()
		if err == nil {
			// BLPop returns [key, value]; value is our queue entry.
			key = res[1]
			found = true
			return nil
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}

		now := time.Now().Unix()
		result, err := b.client.Eval(ctx, scheduledPopScript, []string{b.scheduledKey(queue)}, now).StringSlice()
		if err != nil {
			return err
		}
		if len(result) > 0 {
			key = result[0]
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return key, found, nil
}

func (b *RedisBackend) GetFullQueue(ctx context.Context, queue string) ([]string, error) {
	var out []string
	err := b.guard(ctx, func() error {
		res, err := b.client.LRange(ctx, b.readyKey(queue), 0, -1).Result()
		out = res
		return err
	})
	return out, err
}

func (b *RedisBackend) GetPersistentData(ctx context.Context, key string) (JobRecord, error) {
	var out JobRecord
	err := b.guard(ctx, func() error {
		res, err := b.client.HGetAll(ctx, b.recordKey(key)).Result()
		if err != nil {
			return err
		}
		if len(res) == 0 {
			out = nil
			return nil
		}
		out = JobRecord(res)
		return nil
	})
	return out, err
}

func (b *RedisBackend) GetPersistentField(ctx context.Context, key, field string) (string, bool, error) {
	var value string
	var ok bool
	err := b.guard(ctx, func() error {
		res, err := b.client.HGet(ctx, b.recordKey(key), field).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		value = res
		ok = true
		return nil
	})
	return value, ok, err
}

func (b *RedisBackend) SetPersistentData(ctx context.Context, key string, fields JobRecord) error {
	if len(fields) == 0 {
		return nil
	}
	args := make(map[string]any, len(fields))
	for k, v := range fields {
		args[k] = v
	}
	return b.guard(ctx, func() error {
		return b.client.HSet(ctx, b.recordKey(key), args).Err()
	})
}

func (b *RedisBackend) DelPersistentData(ctx context.Context, key string) error {
	return b.guard(ctx, func() error {
		return b.client.Del(ctx, b.recordKey(key)).Err()
	})
}

func (b *RedisBackend) Expire(ctx context.Context, key string, seconds int) error {
	return b.guard(ctx, func() error {
		return b.client.Expire(ctx, b.recordKey(key), time.Duration(seconds)*time.Second).Err()
	})
}

func (b *RedisBackend) TTL(ctx context.Context, key string) (int64, error) {
	var seconds int64
	err := b.guard(ctx, func() error {
		d, err := b.client.TTL(ctx, b.recordKey(key)).Result()
		if err != nil {
			return err
		}
		if d < 0 {
			// go-redis reports the -1 (no TTL) and -2 (missing key) replies as raw durations.
			seconds = int64(d)
			return nil
		}
		seconds = int64(d.Seconds())
		return nil
	})
	return seconds, err
}

func (b *RedisBackend) Size(ctx context.Context, queue string) (int64, error) {
	var size int64
	err := b.guard(ctx, func() error {
		n, err := b.client.LLen(ctx, b.readyKey(queue)).Result()
		if err != nil {
			return err
		}
		m, err := b.client.ZCard(ctx, b.scheduledKey(queue)).Result()
		if err != nil {
			return err
		}
		size = n + m
		return nil
	})
	return size, err
}

func (b *RedisBackend) Clear(ctx context.Context, queue string) (int64, error) {
	var count int64
	err := b.guard(ctx, func() error {
		res, err := b.client.Eval(ctx, clearScript, []string{b.readyKey(queue), b.scheduledKey(queue)}).Int64()
		count = res
		return err
	})
	return count, err
}

// Close releases the underlying Redis connection pool.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
