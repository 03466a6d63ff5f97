package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"collabhub/internal/ratelimit/models"
)

// allowScript trims the window, then adds a member if under the limit.
// Returns {allowed, count, oldestMs}.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestMs = now
if oldest[2] then oldestMs = tonumber(oldest[2]) end
return {allowed, count, oldestMs}
`)

// RedisBucketStore shares handshake windows across gateway processes.
type RedisBucketStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisBucketStore(client redis.UniversalClient, prefix string) *RedisBucketStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisBucketStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	now := s.now()
	nowMs := now.UnixMilli()
	res, err := allowScript.Run(ctx, s.client, []string{s.key(key)},
		nowMs, window.Milliseconds(), limit, strconv.FormatInt(nowMs, 10)+"-"+uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("check rate limit %s: %w", key, err)
	}

	resetAt := time.UnixMilli(res[2]).Add(window)
	result := &models.Result{
		Allowed:   res[0] == 1,
		Limit:     limit,
		Remaining: max(limit-int(res[1]), 0),
		ResetAt:   resetAt,
	}
	if !result.Allowed {
		result.RetryAfter = retryAfter(resetAt.Sub(now))
	}
	return result, nil
}

func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("reset rate limit %s: %w", key, err)
	}
	return nil
}

func (s *RedisBucketStore) key(key string) string {
	return s.prefix + ":" + key
}
