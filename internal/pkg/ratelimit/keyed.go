package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Keyed is a token-bucket limiter per key (remote IP, OTP identifier, ...)
// with periodic removal of idle keys.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
	r       rate.Limit
	burst   int
	idle    time.Duration
	stop    chan struct{}
	once    sync.Once
}

// New creates a limiter allowing r events/second per key with bursts of up to burst.
func New(r rate.Limit, burst int) *Keyed {
	k := &Keyed{
		entries: make(map[string]*entry),
		r:       r,
		burst:   burst,
		idle:    10 * time.Minute,
		stop:    make(chan struct{}),
	}
	go k.cleanup(5 * time.Minute)
	return k
}

// PerMinute is a convenience for limits expressed as events per minute.
// n must be positive.
func PerMinute(n, burst int) *Keyed {
	return New(rate.Every(time.Minute/time.Duration(n)), burst)
}

// Allow reports whether one more event for key may happen now.
func (k *Keyed) Allow(key string) bool {
	return k.get(key).Allow()
}

// RetryAfter is how long a caller that was just denied should wait for the
// next token.
func (k *Keyed) RetryAfter() time.Duration {
	if k.r == rate.Inf || k.r <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(k.r))
}

// Close stops the cleanup goroutine.
func (k *Keyed) Close() {
	k.once.Do(func() { close(k.stop) })
}

func (k *Keyed) get(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	if e, ok := k.entries[key]; ok {
		e.lastSeen = time.Now()
		return e.limiter
	}
	l := rate.NewLimiter(k.r, k.burst)
	k.entries[key] = &entry{limiter: l, lastSeen: time.Now()}
	return l
}

func (k *Keyed) cleanup(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-k.stop:
			return
		case <-t.C:
			k.sweep(time.Now())
		}
	}
}

func (k *Keyed) sweep(now time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, e := range k.entries {
		if now.Sub(e.lastSeen) > k.idle {
			delete(k.entries, key)
		}
	}
}
