// Package ratelimit implements a fixed-window request counter. The same
// limiter guards the HTTP perimeter (keyed by client IP) and transaction
// creation (keyed by user ID).
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	Limit           int
	Window          time.Duration
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Limit:           60,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// Limiter admits at most Limit requests per key in each window. A window
// opens on a key's first request and is not extended by later ones.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*window

	denied atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

type window struct {
	start time.Time
	count int
}

// Metrics is a snapshot of limiter activity.
type Metrics struct {
	Denied     int64
	ActiveKeys int64
}

// NewLimiter starts a limiter and its background sweep of expired windows.
// Call Stop to end the sweep.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	rl := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		windows: make(map[string]*window),
		stop:    make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Allow records one request for key and reports whether it fits the window.
func (rl *Limiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.cfg.Window {
		rl.windows[key] = &window{start: now, count: 1}
		return true
	}
	if w.count >= rl.cfg.Limit {
		rl.denied.Add(1)
		return false
	}
	w.count++
	return true
}

// RetryAfter is the time until key's current window resets.
func (rl *Limiter) RetryAfter(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok {
		return 0
	}
	return max(w.start.Add(rl.cfg.Window).Sub(rl.now()), 0)
}

func (rl *Limiter) sweepLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

// sweep drops keys whose window has ended.
func (rl *Limiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, w := range rl.windows {
		if now.Sub(w.start) >= rl.cfg.Window {
			delete(rl.windows, key)
		}
	}
}

func (rl *Limiter) ActiveKeys() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		Denied:     rl.denied.Load(),
		ActiveKeys: int64(rl.ActiveKeys()),
	}
}

// Middleware rejects requests over the limit for the key chosen by keyFn.
// onLimit writes the rejection body; Retry-After is already set when it runs.
func (rl *Limiter) Middleware(keyFn func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if rl.Allow(key) {
				next.ServeHTTP(w, r)
				return
			}

			secs := int(rl.RetryAfter(key).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
		})
	}
}
