package ratelimit

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// manualClock is advanced explicitly by tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func clocked(perSecond float64, burst int) (*Limiter, *manualClock) {
	clock := newManualClock()
	l := NewLimiter(perSecond, burst)
	l.nowFunc = clock.Now
	return l, clock
}

// step advances the clock by after, then calls Allow for key.
type step struct {
	after time.Duration
	key   string
	want  bool
}

func TestLimiter_Schedule(t *testing.T) {
	tests := []struct {
		name      string
		perSecond float64
		burst     int
		steps     []step
	}{
		{
			name:      "burst then reject",
			perSecond: 1,
			burst:     2,
			steps: []step{
				{key: "a", want: true},
				{key: "a", want: true},
				{key: "a", want: false},
			},
		},
		{
			name:      "one token per interval",
			perSecond: 4,
			burst:     1,
			steps: []step{
				{key: "a", want: true},
				{after: 249 * time.Millisecond, key: "a", want: false},
				{after: time.Millisecond, key: "a", want: true},
				{after: 250 * time.Millisecond, key: "a", want: true},
				{key: "a", want: false},
			},
		},
		{
			name:      "idle time refills up to burst only",
			perSecond: 50,
			burst:     2,
			steps: []step{
				{key: "a", want: true},
				{key: "a", want: true},
				{after: time.Hour, key: "a", want: true},
				{key: "a", want: true},
				{key: "a", want: false},
			},
		},
		{
			name:      "half tokens accumulate",
			perSecond: 2,
			burst:     1,
			steps: []step{
				{key: "a", want: true},
				{after: 250 * time.Millisecond, key: "a", want: false},
				{after: 250 * time.Millisecond, key: "a", want: true},
			},
		},
		{
			name:      "keys have separate buckets",
			perSecond: 1,
			burst:     1,
			steps: []step{
				{key: "a", want: true},
				{key: "a", want: false},
				{key: "b", want: true},
				{key: "b", want: false},
				{after: time.Second, key: "a", want: true},
				{key: "b", want: true},
			},
		},
		{
			name:      "zero rate spends the initial burst once",
			perSecond: 0,
			burst:     1,
			steps: []step{
				{key: "a", want: true},
				{after: 24 * time.Hour, key: "a", want: false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, clock := clocked(tt.perSecond, tt.burst)
			for i, s := range tt.steps {
				clock.Advance(s.after)
				if got := l.Allow(s.key); got != s.want {
					t.Fatalf("step %d: Allow(%q) = %v, want %v", i, s.key, got, s.want)
				}
			}
		})
	}
}

func TestLimiter_ClockGoingBackwardsRefillsNothing(t *testing.T) {
	l, clock := clocked(1, 1)
	clock.Advance(time.Minute)
	if !l.Allow("a") {
		t.Fatal("first request rejected")
	}

	clock.Advance(-30 * time.Second)
	if l.Allow("a") {
		t.Error("request allowed after the clock stepped back")
	}
	if got := l.RetryAfter("a"); got != time.Second {
		t.Errorf("RetryAfter = %v, want 1s", got)
	}
}

func TestLimiter_RetryAfter(t *testing.T) {
	l, clock := clocked(0.5, 1)

	if got := l.RetryAfter("a"); got != 0 {
		t.Errorf("RetryAfter on a full bucket = %v, want 0", got)
	}
	if !l.Allow("a") {
		t.Fatal("first request rejected")
	}
	if got := l.RetryAfter("a"); got != 2*time.Second {
		t.Errorf("RetryAfter after spending = %v, want 2s", got)
	}

	clock.Advance(1500 * time.Millisecond)
	if got := l.RetryAfter("a"); got != 500*time.Millisecond {
		t.Errorf("RetryAfter after 1.5s = %v, want 500ms", got)
	}

	// RetryAfter only inspects the bucket.
	for i := 0; i < 3; i++ {
		l.RetryAfter("a")
	}
	clock.Advance(500 * time.Millisecond)
	if !l.Allow("a") {
		t.Error("request rejected once the reported wait had passed")
	}
}

func TestLimiter_RetryAfterZeroRate(t *testing.T) {
	l, _ := clocked(0, 1)
	l.Allow("a")
	if got := l.RetryAfter("a"); got != rate.InfDuration {
		t.Errorf("RetryAfter = %v, want rate.InfDuration", got)
	}
}

func TestLimiter_ConcurrentFrozenClock(t *testing.T) {
	l, _ := clocked(1000, 50)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	// With time frozen no tokens refill, so exactly the burst gets through.
	if got := allowed.Load(); got != 50 {
		t.Errorf("allowed %d requests, want 50", got)
	}
}

func TestPerMinute(t *testing.T) {
	clock := newManualClock()
	pm := PerMinute(30, 1)
	pm.nowFunc = clock.Now

	if !pm.Allow("a") {
		t.Fatal("first request rejected")
	}
	clock.Advance(1999 * time.Millisecond)
	if pm.Allow("a") {
		t.Error("30/min refilled a token in under 2s")
	}
	clock.Advance(time.Millisecond)
	if !pm.Allow("a") {
		t.Error("30/min did not refill a token after 2s")
	}
}

func TestCheckLimit(t *testing.T) {
	clock := newManualClock()
	limiters := NewToolLimiters()
	for _, l := range limiters {
		l.nowFunc = clock.Now
	}

	if err := CheckLimit(limiters, "unknown_tool"); err != nil {
		t.Errorf("unknown tool limited: %v", err)
	}

	// sdrsweep_run allows 6 per minute with a burst of 2.
	for i := 0; i < 2; i++ {
		if err := CheckLimit(limiters, "sdrsweep_run"); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	err := CheckLimit(limiters, "sdrsweep_run")
	if err == nil {
		t.Fatal("third call within the burst window allowed")
	}
	if !strings.Contains(err.Error(), "rate limit exceeded for sdrsweep_run") || !strings.Contains(err.Error(), "retry in 10s") {
		t.Errorf("error = %q, want tool name and 10s wait", err)
	}

	// Other tools keep their own budget.
	if err := CheckLimit(limiters, "sdrsweep_results"); err != nil {
		t.Errorf("sdrsweep_results limited by sdrsweep_run usage: %v", err)
	}

	clock.Advance(10 * time.Second)
	if err := CheckLimit(limiters, "sdrsweep_run"); err != nil {
		t.Errorf("call after 10s: %v", err)
	}
}
