package ratelimit

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func fakeClock(l *Limiter) *time.Time {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.nowFunc = func() time.Time { return now }
	return &now
}

func TestAllow_Burst(t *testing.T) {
	l := NewLimiter(1.0, 3)
	fakeClock(l)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Errorf("request %d should be allowed (within burst)", i+1)
		}
	}
	if l.Allow() {
		t.Error("request after burst exhaustion should be rejected")
	}
}

func TestAllow_Refill(t *testing.T) {
	l := NewLimiter(10.0, 2)
	now := fakeClock(l)

	l.Allow()
	l.Allow()
	if l.Allow() {
		t.Fatal("expected rejection after burst")
	}

	// 10 tokens/sec for 150ms refills one and a half tokens.
	*now = now.Add(150 * time.Millisecond)
	if !l.Allow() {
		t.Error("expected one refilled token")
	}
	if l.Allow() {
		t.Error("half a token must not be enough")
	}

	// A long idle period never exceeds the burst.
	*now = now.Add(time.Hour)
	allowed := 0
	for l.Allow() {
		allowed++
	}
	if allowed != 2 {
		t.Errorf("allowed %d after idle, want burst of 2", allowed)
	}
}

func TestAllow_ZeroRate(t *testing.T) {
	l := NewLimiter(0, 1)
	now := fakeClock(l)

	if !l.Allow() {
		t.Error("first request should use the initial token")
	}
	*now = now.Add(time.Hour)
	if l.Allow() {
		t.Error("zero rate never refills")
	}
}

func TestAllow_ConcurrentAccess(t *testing.T) {
	l := NewLimiter(0, 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 100 {
		t.Errorf("allowed %d requests, want exactly the burst of 100", allowed)
	}
}

func TestNewToolLimiters(t *testing.T) {
	limiters := NewToolLimiters()

	tests := []struct {
		tool  string
		burst int
	}{
		{"brunel_run", 2},
		{"brunel_rate", 10},
		{"brunel_runs", 10},
		{"brunel_scenarios", 10},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			limiter, ok := limiters[tt.tool]
			if !ok {
				t.Fatalf("missing rate limiter for tool: %s", tt.tool)
			}
			if limiter.burst != tt.burst {
				t.Errorf("burst = %d, want %d", limiter.burst, tt.burst)
			}
		})
	}
}

func TestCheckLimit(t *testing.T) {
	limiters := ToolLimiters{"slow": NewLimiter(1.0/60.0, 1)}
	fakeClock(limiters["slow"])

	if err := CheckLimit(limiters, "slow"); err != nil {
		t.Errorf("unexpected error for first call: %v", err)
	}
	err := CheckLimit(limiters, "slow")
	if err == nil {
		t.Fatal("expected rate limit error after burst exhaustion")
	}
	if !strings.Contains(err.Error(), "retry in 1m0s") {
		t.Errorf("error should report the wait: %v", err)
	}

	if err := CheckLimit(limiters, "unknown_tool"); err != nil {
		t.Errorf("unexpected error for unknown tool: %v", err)
	}
}
