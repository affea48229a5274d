package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"identity-certifier/pkg/httputil"
)

const (
	defaultIdleTTL = 10 * time.Minute
	evictEvery     = 512
)

// RateLimiter は呼び出し元プリンシパルごとにトークンバケットを適用する。
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
	onReject func()

	mu     sync.Mutex
	byKey  map[string]*limiterEntry
	allows uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter は毎秒 rps 件、バースト burst 件のレート制限を生成する。
// rps が0以下の場合は nil を返し、制限しない。
func NewRateLimiter(rps float64, burst int, onReject func()) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		idleTTL:  defaultIdleTTL,
		now:      time.Now,
		onReject: onReject,
		byKey:    make(map[string]*limiterEntry),
	}
}

// Allow は key に対して1件のリクエストを許可するかを返す。
func (l *RateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	// アイドルなエントリを定期的に破棄
	l.allows++
	if l.allows%evictEvery == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}

// Middleware はコンテキストの呼び出し元ごとにレート制限するミドルウェアを返す。
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(CallerFromContext(r.Context()).String()) {
			if l.onReject != nil {
				l.onReject()
			}
			w.Header().Set("Retry-After", "1")
			httputil.Error(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many certification requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
