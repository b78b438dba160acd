package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"go-freelance/internal/metrics"
	"go-freelance/internal/ratelimit"
)

// IdentityRateLimiter counts requests per caller in fixed windows. The
// caller is the authenticated user when an identity is attached, otherwise
// the client IP. Store errors let the request through.
type IdentityRateLimiter struct {
	store   ratelimit.Store
	limit   int64
	window  time.Duration
	metrics *metrics.Metrics
}

func NewIdentityRateLimiter(store ratelimit.Store, limit int, window time.Duration, m *metrics.Metrics) *IdentityRateLimiter {
	if limit <= 0 {
		limit = 300
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &IdentityRateLimiter{store: store, limit: int64(limit), window: window, metrics: m}
}

func (l *IdentityRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + ClientIP(r)
		if identity, ok := IdentityFromContext(r.Context()); ok {
			key = "user:" + identity.ID
		}

		win, err := l.store.Hit(r.Context(), key, l.window)
		if err != nil {
			slog.Warn("rate limit store unavailable", "key", key, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set(headerRateLimitLimit, strconv.FormatInt(l.limit, 10))
		w.Header().Set(headerRateLimitRemaining, strconv.FormatInt(win.Remaining(l.limit), 10))
		w.Header().Set(headerRateLimitReset, strconv.FormatInt(win.ResetAt.Unix(), 10))

		if win.Count > l.limit {
			retry := int64(math.Ceil(time.Until(win.ResetAt).Seconds()))
			if retry < 1 {
				retry = 1
			}
			l.metrics.Limited("identity")
			w.Header().Set(headerRetryAfter, strconv.FormatInt(retry, 10))
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, please try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}
