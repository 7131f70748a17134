// Package ratelimit spaces outbound requests per category so the
// upstream site never sees two requests of the same kind closer
// together than that category's interval.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Request categories understood by the client.
const (
	CategoryDefault = "default"
	CategoryLive    = "live"
	CategoryArchive = "archive"
	CategoryScrape  = "scrape"
)

// DefaultIntervals mirrors the minimum spacing the site tolerates
// without throttling.
func DefaultIntervals() map[string]time.Duration {
	return map[string]time.Duration{
		CategoryDefault: time.Second,
		CategoryLive:    time.Second * 5,
		CategoryArchive: time.Second * 2,
		CategoryScrape:  time.Second * 3,
	}
}

// Limiter gates requests per category. Categories are fully
// independent of each other; an unknown category falls back to the
// "default" interval.
type Limiter struct {
	mu        sync.Mutex
	intervals map[string]time.Duration
	limiters  map[string]*rate.Limiter
}

func NewLimiter(intervals map[string]time.Duration) *Limiter {
	if intervals == nil {
		intervals = DefaultIntervals()
	}
	if _, ok := intervals[CategoryDefault]; !ok {
		intervals[CategoryDefault] = time.Second
	}
	return &Limiter{
		intervals: intervals,
		limiters:  map[string]*rate.Limiter{},
	}
}

func (l *Limiter) limiter(category string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[category]
	if ok {
		return limiter
	}

	interval, ok := l.intervals[category]
	if !ok {
		interval = l.intervals[CategoryDefault]
	}
	// burst 1: the first request passes immediately, every
	// subsequent one is spaced by the interval
	limiter = rate.NewLimiter(rate.Every(interval), 1)
	l.limiters[category] = limiter
	return limiter
}

// Wait blocks until enough time has elapsed since the last request in
// the category, then records now as the last request time. It only
// fails when the context is cancelled or its deadline cannot
// accommodate the wait.
func (l *Limiter) Wait(ctx context.Context, category string) error {
	return l.limiter(category).Wait(ctx)
}
