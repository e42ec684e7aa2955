package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// maxTrackedIPs bounds the limiter map; it is reset when full.
const maxTrackedIPs = 10000

type ipLimiter struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	every time.Duration
	burst int
}

func newIPLimiter(every time.Duration, burst int) *ipLimiter {
	if every <= 0 {
		every = 2 * time.Second
	}
	if burst <= 0 {
		burst = 10
	}
	return &ipLimiter{m: map[string]*rate.Limiter{}, every: every, burst: burst}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.m[ip]; ok {
		return lim
	}
	if len(l.m) >= maxTrackedIPs {
		l.m = map[string]*rate.Limiter{}
	}
	lim := rate.NewLimiter(rate.Every(l.every), l.burst)
	l.m[ip] = lim
	return lim
}

// withRateLimit expects middleware.RealIP to have normalised RemoteAddr.
func (l *ipLimiter) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.get(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "60")
			writeErr(w, http.StatusTooManyRequests, "rate_limit", "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withConcurrencyLimit(sem *semaphore.Weighted) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sem.TryAcquire(1) {
				writeErr(w, http.StatusServiceUnavailable, "capacity", "Service at capacity")
				return
			}
			defer sem.Release(1)
			next.ServeHTTP(w, r)
		})
	}
}

func withLogging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"dur", time.Since(start),
				"req_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
