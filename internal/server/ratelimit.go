package server

import (
	"context"
	"sync"
	"time"

	logx "github.com/timberline-assist/server/pkg/logger"
)

type rateWindow struct {
	count int
	start time.Time
}

// rateLimiter enforces a fixed per-minute message budget per client key.
// Stale windows are dropped by a periodic sweep so the map does not grow
// with one-off clients.
type rateLimiter struct {
	perMinute int

	mu      sync.Mutex
	windows map[string]*rateWindow
}

func newRateLimiter(perMinute int) *rateLimiter {
	return &rateLimiter{
		perMinute: perMinute,
		windows:   make(map[string]*rateWindow),
	}
}

// Allow reports whether the key may send another message in the current
// window. A non-positive budget disables limiting.
func (l *rateLimiter) Allow(key string) bool {
	if l.perMinute <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= time.Minute {
		l.windows[key] = &rateWindow{count: 1, start: now}
		return true
	}
	if w.count >= l.perMinute {
		return false
	}
	w.count++
	return true
}

// RunSweeper drops expired windows on a fixed interval until ctx is cancelled.
func (l *rateLimiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *rateLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-time.Minute)
	removed := 0
	for key, w := range l.windows {
		if w.start.Before(cutoff) {
			delete(l.windows, key)
			removed++
		}
	}
	if removed > 0 {
		logx.Debug().Int("removed", removed).Msg("expired rate-limit windows swept")
	}
}
