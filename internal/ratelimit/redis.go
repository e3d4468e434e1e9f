package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// hitScript runs the fixed-window step server-side so concurrent instances
// observe one counter. Returns {allowed, count, pttl}.
var hitScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
  redis.call('SET', KEYS[1], 1, 'PX', ARGV[2])
  return {1, 1, tonumber(ARGV[2])}
end
current = tonumber(current)
local ttl = redis.call('PTTL', KEYS[1])
if current < tonumber(ARGV[1]) then
  redis.call('INCR', KEYS[1])
  return {1, current + 1, ttl}
end
return {0, current, ttl}
`)

// RedisStore shares windows across processes through Redis.
type RedisStore struct {
	client redis.Scripter
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a store that namespaces keys under prefix.
func NewRedisStore(client redis.Scripter, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// Hit implements Store.
func (s *RedisStore) Hit(ctx context.Context, key string, max int, win time.Duration) (Decision, error) {
	res, err := hitScript.Run(ctx, s.client, []string{s.key(key)}, max, win.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis hit: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("ratelimit: redis hit: unexpected reply %v", res)
	}
	ttl := time.Duration(res[2]) * time.Millisecond
	if ttl < 0 {
		ttl = 0
	}
	return Decision{
		Allowed: res[0] == 1,
		Count:   int(res[1]),
		ResetAt: s.now().Add(ttl),
	}, nil
}

func (s *RedisStore) key(k string) string {
	return s.prefix + ":" + k
}
