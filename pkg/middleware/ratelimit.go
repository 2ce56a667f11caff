// pkg/middleware/ratelimit.go
package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"apgate/pkg/apierr"
)

// RateLimit is a fixed-window request budget per client IP.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

var (
	// AuthLimit guards credential endpoints (login, refresh).
	AuthLimit = RateLimit{Requests: 10, Window: 15 * time.Minute}
	// APILimit guards the general authenticated endpoints.
	APILimit = RateLimit{Requests: 100, Window: 15 * time.Minute}
)

// clientIP prefers proxy headers over RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if parts := strings.Split(xff, ","); len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// memLimiters holds per-key token buckets for the in-process fallback.
type memLimiters struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
}

func (m *memLimiters) get(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if time.Since(m.lastCleanup) > 5*time.Minute {
		for k, l := range m.limiters {
			// A full bucket means the key has been idle for a window.
			if l.Tokens() >= float64(m.burst) {
				delete(m.limiters, k)
			}
		}
		m.lastCleanup = time.Now()
	}
	l, ok := m.limiters[key]
	if !ok {
		l = rate.NewLimiter(m.limit, m.burst)
		m.limiters[key] = l
	}
	return l
}

// RateLimiter enforces cfg per client IP. With a Redis client it uses a
// shared fixed-window counter (INCR + EXPIRE); without one it falls back
// to in-process token buckets. Redis failures fail open.
func RateLimiter(name string, cfg RateLimit, rdb *redis.Client, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	mem := &memLimiters{
		limiters:    map[string]*rate.Limiter{},
		limit:       rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds()),
		burst:       cfg.Requests,
		lastCleanup: time.Now(),
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if ip == "" {
				next.ServeHTTP(w, r)
				return
			}
			allowed, retryAfter := true, cfg.Window
			if rdb != nil {
				key := "ratelimit:" + name + ":" + ip
				n, err := rdb.Incr(r.Context(), key).Result()
				if err != nil {
					log.Warnw("rate limit redis", "err", err)
				} else {
					if n == 1 {
						rdb.Expire(r.Context(), key, cfg.Window)
					}
					if n > int64(cfg.Requests) {
						allowed = false
						if ttl, err := rdb.TTL(r.Context(), key).Result(); err == nil && ttl > 0 {
							retryAfter = ttl
						}
					}
				}
			} else {
				lim := mem.get(ip)
				if !lim.Allow() {
					allowed = false
					res := lim.Reserve()
					retryAfter = res.Delay()
					res.Cancel()
				}
			}
			if !allowed {
				secs := int(retryAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
				log.Warnw("rate limit exceeded", "limiter", name, "ip", ip, "path", r.URL.Path)
				apierr.Write(w, http.StatusTooManyRequests, "too-many-requests", "RateLimitError", "Too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
