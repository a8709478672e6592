package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces the limiter keys
const DefaultPrefix = "rowfilter:ratelimit:"

// slidingWindow trims entries older than the window, then records the request
// if the window still has room. Scores are Unix milliseconds.
// Returns {allowed, count, oldest score}.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
	local current = redis.call('ZCARD', key)

	local allowed = 0
	if current < limit then
		redis.call('ZADD', key, now, member)
		current = current + 1
		allowed = 1
	end
	redis.call('PEXPIRE', key, ttl)

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local first = now
	if oldest[2] then
		first = tonumber(oldest[2])
	end
	return {allowed, current, first}
`)

// Redis is a sliding window limiter shared by every server using the same
// Redis instance
type Redis struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
	seq    atomic.Int64
}

// NewRedis creates a Redis-backed limiter allowing limit requests per window
func NewRedis(client redis.UniversalClient, limit int, window time.Duration, prefix string) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be greater than 0")
	}
	if window <= 0 {
		return nil, errors.New("window must be greater than 0")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Redis{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
		now:    time.Now,
	}, nil
}

// NewRedisFromURL connects to the Redis instance at url (redis://...) and
// checks it answers
func NewRedisFromURL(ctx context.Context, url string, limit int, window time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}
	return NewRedis(client, limit, window, DefaultPrefix)
}

// Allow records the request in the key's window
func (r *Redis) Allow(ctx context.Context, key string) (*Info, error) {
	now := r.now()
	windowStart := now.Add(-r.window)
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatInt(r.seq.Add(1), 10)

	result, err := slidingWindow.Run(ctx, r.client, []string{r.prefix + key},
		now.UnixMilli(),
		windowStart.UnixMilli(),
		r.limit,
		r.window.Milliseconds(),
		member,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}
	if len(result) != 3 {
		return nil, errors.New("unexpected redis script result")
	}
	allowed, count, oldest := result[0], result[1], result[2]

	remaining := r.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return &Info{
		Limit:     r.limit,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(oldest).Add(r.window),
		Allowed:   allowed == 1,
	}, nil
}

// Reset forgets the key's window
func (r *Redis) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Close closes the Redis client
func (r *Redis) Close() error {
	return r.client.Close()
}
