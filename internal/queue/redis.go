package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"guildgate/internal/domain"
)

// RedisQueue keeps the FIFO in a Redis list so queued requests survive a
// process restart. Items are popped before processing, so delivery remains
// at-most-once.
type RedisQueue struct {
	client   *redis.Client
	key      string
	leaseTTL time.Duration
}

// DefaultLeaseTTL bounds how long a crashed consumer can block others. A
// live consumer refreshes its lease before every item.
const DefaultLeaseTTL = 30 * time.Second

// The lease is only extended or deleted by the holder of its token
var (
	refreshLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// NewRedisQueue connects to redisURL and verifies the connection
func NewRedisQueue(redisURL, key string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisQueueWithClient(client, key), nil
}

// NewRedisQueueWithClient creates a queue from an existing Redis client
func NewRedisQueueWithClient(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key, leaseTTL: DefaultLeaseTTL}
}

func (q *RedisQueue) Enqueue(ctx context.Context, req *domain.VerificationRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal verification request: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueue verification request: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*domain.VerificationRequest, bool, error) {
	data, err := q.client.LPop(ctx, q.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("dequeue verification request: %w", err)
	}

	var req domain.VerificationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		// The item is already removed from the list
		return nil, false, fmt.Errorf("%w: %v", ErrCorruptItem, err)
	}
	return &req, true, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return int(n), nil
}

// Close closes the Redis connection
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// AcquireLease takes the consumer lease stored next to the list. Every
// process draining the same key competes for it.
func (q *RedisQueue) AcquireLease(ctx context.Context) (Lease, error) {
	l := &redisLease{client: q.client, key: q.key + ":lease", token: uuid.NewString(), ttl: q.leaseTTL}
	ok, err := q.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire queue lease: %w", err)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}
	return l, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

func (l *redisLease) Refresh(ctx context.Context) error {
	n, err := refreshLease.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("refresh queue lease: %w", err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseLease.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release queue lease: %w", err)
	}
	return nil
}
