package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles outbound calls per provider with a token bucket.
// Providers without limits pass straight through.
type RateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	metrics  map[string]*RateLimitMetrics
}

// RateLimitMetrics tracks usage statistics for monitoring.
type RateLimitMetrics struct {
	TotalRequests int64         `json:"total_requests"`
	RejectedCount int64         `json:"rejected_count"`
	TotalWait     time.Duration `json:"total_wait"`
	LastRequestAt time.Time     `json:"last_request_at"`
}

// NewRateLimiter creates an empty limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		metrics:  make(map[string]*RateLimitMetrics),
	}
}

// SetLimits configures requestsPerMinute for provider, with a burst of a
// tenth of the per-minute budget (at least 1). Zero or negative removes the
// limit.
func (r *RateLimiter) SetLimits(provider string, requestsPerMinute int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if requestsPerMinute <= 0 {
		delete(r.limiters, provider)
		return
	}

	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	r.limiters[provider] = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	if _, ok := r.metrics[provider]; !ok {
		r.metrics[provider] = &RateLimitMetrics{}
	}
}

// Acquire blocks until provider may send a request or ctx is done.
func (r *RateLimiter) Acquire(ctx context.Context, provider string) error {
	r.mu.RLock()
	limiter := r.limiters[provider]
	r.mu.RUnlock()

	if limiter == nil {
		return nil
	}

	start := time.Now()
	err := limiter.Wait(ctx)
	waited := time.Since(start)

	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.metrics[provider]
	if err != nil {
		m.RejectedCount++
		return fmt.Errorf("rate limit for %s: %w", provider, err)
	}
	m.TotalRequests++
	m.TotalWait += waited
	m.LastRequestAt = time.Now()
	return nil
}

// CanProceed reports whether a request would go out without waiting.
func (r *RateLimiter) CanProceed(provider string) bool {
	r.mu.RLock()
	limiter := r.limiters[provider]
	r.mu.RUnlock()

	if limiter == nil {
		return true
	}
	return limiter.Tokens() >= 1
}

// WaitTime estimates how long the next request for provider would wait.
func (r *RateLimiter) WaitTime(provider string) time.Duration {
	r.mu.RLock()
	limiter := r.limiters[provider]
	r.mu.RUnlock()

	if limiter == nil {
		return 0
	}
	res := limiter.Reserve()
	defer res.Cancel()
	return res.Delay()
}

// GetMetrics returns a copy of provider's metrics, or nil if it is unlimited.
func (r *RateLimiter) GetMetrics(provider string) *RateLimitMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.metrics[provider]
	if !ok {
		return nil
	}
	copied := *m
	return &copied
}
