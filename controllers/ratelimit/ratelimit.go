package ratelimit

import (
	"net/http"
	"sync"
	"time"
)

// Limiter is a simple in-memory per-IP rate limiter for the write
// endpoints. Counters reset after the window; stale entries are swept
// in the background until Stop is called.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
	window   time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	lastSeen time.Time
	count    int
}

func NewLimiter(limit int, window time.Duration) *Limiter {
	l := &Limiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		stop:     make(chan struct{}),
	}
	go func() {
		ticker := time.NewTicker(window)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.cleanup()
			case <-l.stop:
				return
			}
		}
	}()
	return l
}

// Stop terminates the background sweeper. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.window {
			delete(l.visitors, ip)
		}
	}
}

// Wrap limits every request passing through the handler.
func (l *Limiter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(r) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// WrapMethods limits only the listed methods; everything else passes
// straight through. Reads on a mixed-method route stay unthrottled.
func (l *Limiter) WrapMethods(next http.HandlerFunc, methods ...string) http.HandlerFunc {
	limited := make(map[string]bool, len(methods))
	for _, m := range methods {
		limited[m] = true
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if limited[r.Method] && !l.allow(r) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func (l *Limiter) allow(r *http.Request) bool {
	ip := r.RemoteAddr
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		ip = realIP
	} else if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip = fwd
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	v, exists := l.visitors[ip]
	if !exists || time.Since(v.lastSeen) > l.window {
		l.visitors[ip] = &visitor{lastSeen: time.Now(), count: 1}
		return true
	}
	v.count++
	v.lastSeen = time.Now()
	return v.count <= l.limit
}
