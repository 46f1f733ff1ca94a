package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"memberverify/internal/ratelimit/models"
)

// hitScript increments a fixed-window counter unless it already reached the
// limit. Returns {allowed, count, pttl}.
var hitScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= limit then
  local ttl = redis.call('PTTL', KEYS[1])
  return {0, current, ttl}
end
current = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], window)
  ttl = window
end
return {1, current, ttl}
`)

const keyPrefix = "ratelimit:"

// Store keeps counters in Redis so limits hold across restarts and instances.
// Window expiry is driven by key TTLs.
type Store struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func (s *Store) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (*models.Result, error) {
	raw, err := hitScript.Run(ctx, s.client, []string{keyPrefix + key}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("rate limit script: unexpected reply length %d", len(raw))
	}

	allowed := raw[0] == 1
	count := int(raw[1])
	ttl := time.Duration(raw[2]) * time.Millisecond
	if ttl < 0 {
		ttl = window
	}
	return models.NewResult(count, limit, allowed, now.Add(ttl), now), nil
}

func (s *Store) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset rate limit key: %w", err)
	}
	return nil
}
