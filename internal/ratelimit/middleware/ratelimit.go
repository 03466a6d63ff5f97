package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"collabhub/internal/ratelimit/models"
	"collabhub/pkg/platform/httputil"
)

// BucketStore is a sliding-window counter.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

// Metrics records rejected requests. Optional.
type Metrics interface {
	HandshakeRejected(reason string)
}

type Middleware struct {
	store   BucketStore
	limit   int
	window  time.Duration
	logger  *slog.Logger
	metrics Metrics
}

type Option func(*Middleware)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Middleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMetrics(metrics Metrics) Option {
	return func(m *Middleware) {
		m.metrics = metrics
	}
}

// New builds a limiter allowing limit requests per window and client.
// A non-positive limit disables limiting.
func New(store BucketStore, limit int, window time.Duration, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		limit:  limit,
		window: window,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Middleware) disabled() bool {
	return m == nil || m.store == nil || m.limit <= 0 || m.window <= 0
}

// LimitConnects throttles websocket handshakes per client address. Store
// failures let the request through.
func (m *Middleware) LimitConnects(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled() {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := clientIP(r)
		result, err := m.store.Allow(ctx, models.ConnectKey(ip), m.limit, m.window)
		if err != nil {
			m.logger.WarnContext(ctx, "connect rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)
		if !result.Allowed {
			m.logger.InfoContext(ctx, "connect rate limited", "client_ip", ip, "retry_after", result.RetryAfter)
			if m.metrics != nil {
				m.metrics.HandshakeRejected("rate_limited")
			}
			writeRateLimitExceeded(w, result)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many connection attempts from this address. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
