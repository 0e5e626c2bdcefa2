package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// hitScript prunes expired members, checks the cardinality and admits
// the new member in a single round trip, so check-and-increment cannot
// race between concurrent callers.
//
// KEYS[1] = counter key
// ARGV[1] = window start (unix ms), ARGV[2] = now (unix ms)
// ARGV[3] = limit, ARGV[4] = member id, ARGV[5] = window (ms)
const hitScript = `
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[3]) then
  return {0, count}
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {1, count + 1}
`

type RedisStoreOpts struct {
	TimeProvider func() time.Time
	UUIDProvider func() uuid.UUID
}

type redisStore struct {
	client       *redis.Client
	timeProvider func() time.Time
	uuidProvider func() uuid.UUID
}

func NewRedisStore(client *redis.Client, opts *RedisStoreOpts) CounterStore {
	timeProvider := time.Now
	uuidProvider := uuid.New
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	if opts != nil && opts.UUIDProvider != nil {
		uuidProvider = opts.UUIDProvider
	}
	return &redisStore{
		client:       client,
		timeProvider: timeProvider,
		uuidProvider: uuidProvider,
	}
}

func (s *redisStore) Hit(ctx context.Context, key string, window time.Duration, limit int) (bool, int, error) {
	now := s.timeProvider()
	windowStart := now.Add(-window).UnixMilli()
	member := fmt.Sprintf("%d:%s", now.UnixMilli(), s.uuidProvider().String())

	res, err := s.client.Eval(ctx, hitScript, []string{key},
		windowStart,
		now.UnixMilli(),
		limit,
		member,
		window.Milliseconds(),
	).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to execute rate limit script: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected rate limit script reply: %v", res)
	}
	allowed, ok := values[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected rate limit script reply: %v", res)
	}
	count, ok := values[1].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected rate limit script reply: %v", res)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return allowed == 1, remaining, nil
}

func (s *redisStore) Count(ctx context.Context, key string, window time.Duration) (int64, error) {
	now := s.timeProvider()
	windowStart := now.Add(-window).UnixMilli()

	count, err := s.client.ZCount(ctx, key,
		fmt.Sprintf("(%d", windowStart),
		fmt.Sprintf("%d", now.UnixMilli()),
	).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count rate limit events: %w", err)
	}
	return count, nil
}
