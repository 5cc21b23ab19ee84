// Package ratelimit provides token bucket rate limiting for MCP tools.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Limiter is a single token bucket. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	tokens  float64
	last    time.Time
	rate    float64          // tokens per second
	burst   int              // bucket capacity, also the initial token count
	nowFunc func() time.Time // injectable clock for testing
}

// NewLimiter creates a full bucket refilling at rate tokens per second.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		tokens:  float64(burst),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow takes a token if one is available.
func (l *Limiter) Allow() bool {
	ok, _ := l.reserve()
	return ok
}

// reserve takes a token or reports how long until one is available.
func (l *Limiter) reserve() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if l.last.IsZero() {
		l.last = now
	}
	if elapsed := now.Sub(l.last).Seconds(); elapsed > 0 {
		l.tokens = min(l.tokens+l.rate*elapsed, float64(l.burst))
		l.last = now
	}

	if l.tokens >= 1 {
		l.tokens--
		return true, 0
	}
	if l.rate <= 0 {
		return false, -1
	}
	wait := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
	return false, wait
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default per-tool limiters. Simulations are
// the expensive call; store queries are cheap.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"brunel_run":       NewLimiter(6.0/60.0, 2), // 6/minute, burst 2
		"brunel_rate":      NewLimiter(1.0, 10),     // 60/minute, burst 10
		"brunel_runs":      NewLimiter(1.0, 10),     // 60/minute, burst 10
		"brunel_scenarios": NewLimiter(1.0, 10),     // 60/minute, burst 10
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}

	allowed, wait := limiter.reserve()
	if allowed {
		return nil
	}
	if wait < 0 {
		return fmt.Errorf("rate limit exceeded for %s", toolName)
	}
	return fmt.Errorf("rate limit exceeded for %s, retry in %s", toolName, wait.Round(time.Second))
}
