// Package ratelimit provides per-key token bucket rate limiting for MCP tools.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter hands out one token bucket per key, all sharing the same rate and
// burst. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
	nowFunc func() time.Time
}

// NewLimiter creates a limiter refilling perSecond tokens per second. burst
// is both the bucket size and the initial token count.
func NewLimiter(perSecond float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		nowFunc: time.Now,
	}
}

// PerMinute creates a limiter allowing n requests per minute.
func PerMinute(n float64, burst int) *Limiter {
	return NewLimiter(n/60.0, burst)
}

// Allow reports whether a request for key may proceed, consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	b, now := l.bucket(key)
	return b.AllowN(now, 1)
}

// RetryAfter returns how long key must wait before Allow can succeed. It does
// not consume a token. A zero rate with an empty bucket never refills and
// yields rate.InfDuration.
func (l *Limiter) RetryAfter(key string) time.Duration {
	b, now := l.bucket(key)
	missing := 1 - b.TokensAt(now)
	if missing <= 0 {
		return 0
	}
	if l.limit <= 0 {
		return rate.InfDuration
	}
	return time.Duration(missing / float64(l.limit) * float64(time.Second))
}

func (l *Limiter) bucket(key string) (*rate.Limiter, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	return b, l.nowFunc()
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default per-tool limits. Running an experiment
// is expensive; listing results is not.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"sdrsweep_run":     PerMinute(6, 2),
		"sdrsweep_results": PerMinute(60, 10),
		"sdrsweep_export":  PerMinute(5, 2),
	}
}

// CheckLimit returns an error if toolName is over its limit. Tools without a
// limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}

	if !limiter.Allow(toolName) {
		wait := limiter.RetryAfter(toolName)
		if wait == rate.InfDuration {
			return fmt.Errorf("rate limit exceeded for %s", toolName)
		}
		return fmt.Errorf("rate limit exceeded for %s, retry in %s", toolName, wait.Round(time.Second))
	}
	return nil
}
