package ratelimit

import "context"

// RateLimiter controls render request throughput per document kind.
type RateLimiter interface {
	Allow(ctx context.Context, kind string) (bool, error)
	Wait(ctx context.Context, kind string) error
}
