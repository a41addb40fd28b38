// Package ratelimit paces outgoing requests with a rate that adapts to
// how the remote side responds. It never retries: a failed call is
// reported to the caller once and the limiter slows down.
//
// Example usage:
//
//	lim := ratelimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5)
//	err := lim.Do(ctx, func() error {
//	    return sendSomething()
//	})
package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/keshon/fadebot/internal/logging"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// recoveryWindow is how long the limiter holds its rate after a throttle.
const recoveryWindow = 10 * time.Second

// AdaptiveLimiter manages a rate limit that adjusts automatically based
// on the outcome of requests. It increases on success and decreases when
// the remote side throttles or fails. Safe for concurrent use.
type AdaptiveLimiter struct {
	mu        sync.RWMutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
	now       func() time.Time
	log       zerolog.Logger
}

// NewAdaptiveLimiter creates an AdaptiveLimiter.
//
// Parameters:
//   - initial: starting requests per second
//   - min: minimum allowed rate
//   - max: maximum allowed rate
//   - stepUp: increment on success
//   - stepDown: multiplier applied on throttling (e.g., 0.5 to halve)
func NewAdaptiveLimiter(initial, lo, hi rate.Limit, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	if initial < 1 {
		initial = 1
	}
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, max(1, int(initial))),
		minLimit: lo,
		maxLimit: hi,
		stepUp:   stepUp,
		stepDown: stepDown,
		now:      time.Now,
		log:      logging.Module("ratelimit"),
	}
}

// Wait blocks until a token is available or the context is canceled.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return a.limiter.Wait(ctx)
}

// Success increases the rate after a successful request.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.now().Sub(a.lastError) > recoveryWindow {
		a.adjustLimit(a.limiter.Limit() + a.stepUp)
	}
}

// RateLimited reduces the rate after a response indicating overload.
func (a *AdaptiveLimiter) RateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = a.now()
	a.adjustLimit(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// CurrentLimit returns the current requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return float64(a.limiter.Limit())
}

// Do waits for a token, runs fn exactly once and feeds the outcome back
// into the limiter. The error from fn is returned unchanged.
func (a *AdaptiveLimiter) Do(ctx context.Context, fn func() error) error {
	if err := a.Wait(ctx); err != nil {
		return err
	}
	err := fn()
	switch {
	case err == nil:
		a.Success()
	case Throttled(err):
		a.RateLimited()
		a.log.Warn().Float64("limit", a.CurrentLimit()).Msg("Throttled, slowing down")
	}
	return err
}

// adjustLimit sets the limiter to a new rate, respecting min/max boundaries.
func (a *AdaptiveLimiter) adjustLimit(newLimit rate.Limit) {
	oldLimit := a.limiter.Limit()

	if newLimit > a.maxLimit {
		newLimit = a.maxLimit
	} else if newLimit < a.minLimit {
		newLimit = a.minLimit
	}

	if newLimit != oldLimit {
		a.limiter.SetLimit(newLimit)
		a.limiter.SetBurst(max(1, int(newLimit)))
	}
}

// HTTPError is implemented by errors that carry an HTTP status code.
type HTTPError interface {
	error
	StatusCode() int
}

// Throttled reports whether err is a 429 or 5xx response.
func Throttled(err error) bool {
	var httpErr HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	code := httpErr.StatusCode()
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}
