package telegram

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// APILimiter throttles requests to the Telegram API. This protects the
// account from FLOOD_WAIT bans and is independent of the hourly forward
// budget in internal/ratelimit.
type APILimiter struct {
	limiter *rate.Limiter

	// extra pause imposed after a FLOOD_WAIT response
	floodWaitUntil time.Time
	mu             sync.Mutex
}

// NewAPILimiter creates a limiter allowing rps requests per second with the
// given burst.
func NewAPILimiter(rps float64, burst int) *APILimiter {
	return &APILimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// DefaultAPILimiter returns conservative settings suited to a long-running
// monitoring session.
func DefaultAPILimiter() *APILimiter {
	return NewAPILimiter(2.0, 1)
}

// Wait blocks until the next request is allowed or the context is canceled.
func (r *APILimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	waitUntil := r.floodWaitUntil
	r.mu.Unlock()

	if time.Now().Before(waitUntil) {
		select {
		case <-time.After(time.Until(waitUntil)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return r.limiter.Wait(ctx)
}

// SetFloodWait pauses all requests for the given number of seconds.
func (r *APILimiter) SetFloodWait(seconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.floodWaitUntil = time.Now().Add(time.Duration(seconds) * time.Second)
}
