// Package ratelimit bounds how many API requests a client may make in a
// window, in process or shared through Redis
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether a client identified by key may make one more request
type Limiter interface {
	Allow(ctx context.Context, key string) (*Info, error)
}

// Info describes the limit state after a decision
type Info struct {
	// Limit is the number of requests allowed per window
	Limit int
	// Remaining is the number of requests left in the current window
	Remaining int
	// ResetAt is when the window frees capacity again
	ResetAt time.Time
	// Allowed reports whether the request may proceed
	Allowed bool
}
