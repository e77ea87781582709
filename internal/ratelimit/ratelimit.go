// Package ratelimit provides fixed-window request limiters keyed by an
// arbitrary string (client IP for the auth endpoints).
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether one more request for key fits in the current
// window. When it does not, retryAfter is the time left until the window
// resets.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (allowed bool, retryAfter time.Duration, err error)
}
