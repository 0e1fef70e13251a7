package rate

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Limiter limits operations based on a provided key.
type Limiter interface {
	// Wait blocks until an operation for key is permitted, or ctx is done.
	Wait(ctx context.Context, key string) error
}

type localRateLimiter struct {
	limit rate.Limit
	burst int

	sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLocalRateLimiter returns an in memory limiter permitting limit
// operations per second for each key. Bursts of up to limit operations, and
// at least one, are allowed.
func NewLocalRateLimiter(limit rate.Limit) Limiter {
	burst := int(limit)
	if burst < 1 {
		burst = 1
	}

	return &localRateLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait implements Limiter.Wait.
func (l *localRateLimiter) Wait(ctx context.Context, key string) error {
	l.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	l.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.Wrap(err, "rate limit wait failed")
	}
	return nil
}

// NoLimiter never limits operations
type NoLimiter struct {
}

// Wait implements Limiter.Wait.
func (n *NoLimiter) Wait(ctx context.Context, _ string) error {
	return ctx.Err()
}
