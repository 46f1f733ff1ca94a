package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"memberverify/internal/ratelimit/models"
	"memberverify/pkg/platform/httputil"
	metadata "memberverify/pkg/platform/middleware/metadata"
	"memberverify/pkg/requestcontext"
)

type RateLimiter interface {
	CheckNamespace(ctx context.Context, ns models.Namespace, client string) (*models.Result, error)
}

type Middleware struct {
	limiter  RateLimiter
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns the middleware into a pass-through (RATELIMIT_DISABLED).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests per client IP within namespace ns. Store failures
// fail open.
func (m *Middleware) RateLimit(ns models.Namespace) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			if ip == "" {
				ip = metadata.ClientIPFromRequest(r)
			}

			result, err := m.limiter.CheckNamespace(ctx, ns, ip)
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit store unavailable, allowing request",
					"namespace", ns,
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.logger.InfoContext(ctx, "request rate limited", "namespace", ns, "client_ip", ip)
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

type rateLimitedResponse struct {
	httputil.ErrorResponse
	RetryAfter int `json:"retry_after"`
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, rateLimitedResponse{
		ErrorResponse: httputil.ErrorResponse{
			Error:            "rate_limited",
			ErrorDescription: "too many requests, try again later",
		},
		RetryAfter: result.RetryAfter,
	})
}
