package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// TokenBucket is an in-memory limiter. Each key owns a bucket of Limit tokens
// refilled continuously at Limit per Window.
type TokenBucket struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewTokenBucket creates an in-memory limiter allowing limit requests per
// window and key. Idle buckets are dropped in the background until Close.
func NewTokenBucket(limit int, window time.Duration) (*TokenBucket, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be greater than 0")
	}
	if window <= 0 {
		return nil, errors.New("window must be greater than 0")
	}

	tb := &TokenBucket{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go tb.cleanupLoop(2 * window)
	return tb, nil
}

// Allow takes one token from the key's bucket
func (tb *TokenBucket) Allow(ctx context.Context, key string) (*Info, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, exists := tb.buckets[key]
	if !exists {
		b = &bucket{tokens: float64(tb.limit), lastSeen: now}
		tb.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastSeen); elapsed > 0 {
		b.tokens += float64(tb.limit) * elapsed.Seconds() / tb.window.Seconds()
		if b.tokens > float64(tb.limit) {
			b.tokens = float64(tb.limit)
		}
	}
	b.lastSeen = now

	info := &Info{Limit: tb.limit}
	if b.tokens >= 1 {
		b.tokens--
		info.Allowed = true
	}
	info.Remaining = int(b.tokens)

	// time until one whole token is back
	missing := 1 - (b.tokens - float64(int(b.tokens)))
	if info.Remaining > 0 {
		missing = 0
	}
	info.ResetAt = now.Add(time.Duration(missing * float64(tb.window) / float64(tb.limit)))
	return info, nil
}

func (tb *TokenBucket) cleanupLoop(idle time.Duration) {
	ticker := time.NewTicker(idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tb.mu.Lock()
			now := tb.now()
			for key, b := range tb.buckets {
				if now.Sub(b.lastSeen) > idle {
					delete(tb.buckets, key)
				}
			}
			tb.mu.Unlock()
		case <-tb.done:
			return
		}
	}
}

// Close stops the cleanup goroutine
func (tb *TokenBucket) Close() error {
	tb.once.Do(func() { close(tb.done) })
	return nil
}
