// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"golang.org/x/time/rate"

	"github.com/spinwire/spinwire/internal/auth"
	"github.com/spinwire/spinwire/internal/logging"
	"github.com/spinwire/spinwire/internal/metrics"
)

// ChiMiddlewareConfig holds configuration for the middleware factories.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// ChiMiddleware provides Chi-compatible middleware factories built on the
// production-hardened Chi ecosystem implementations.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates the middleware factory. CORS origins default
// to empty, requiring explicit configuration.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           86400,
	})

	return &ChiMiddleware{
		config: config,
		cors:   corsHandler,
	}
}

// CORS returns a Chi-compatible CORS middleware using go-chi/cors.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns an IP-based rate limiter using go-chi/httprate.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		m.config.RateLimitRequests,
		m.config.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}

// RateLimitLogin is a strict per-IP limiter for the login endpoint.
func (m *ChiMiddleware) RateLimitLogin() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.LimitByIP(5, 5*time.Minute)
}

// PrometheusMetrics records request counts and latency per endpoint.
func PrometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		metrics.RecordAPIRequest(
			r.Method,
			r.URL.Path,
			strconv.Itoa(wrapper.statusCode),
			time.Since(start),
		)
	})
}

// statusResponseWriter wraps http.ResponseWriter to capture the status code.
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

type contextKey string

const claimsContextKey contextKey = "claims"

// ClaimsFromContext returns the authenticated token claims, or nil when
// the request did not pass through Authenticate.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}

// Authenticate validates the bearer token and stores its claims in the
// request context. Rejections are uniform so responses never reveal
// whether the token was missing, malformed, or expired.
func Authenticate(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ExtractBearerToken(r.Header.Get("Authorization"))
			if err != nil {
				metrics.AuthFailuresTotal.Inc()
				respondError(w, http.StatusUnauthorized, ErrCodeAuthError, "Authentication required")
				return
			}

			claims, err := jwtManager.ValidateToken(token)
			if err != nil {
				metrics.AuthFailuresTotal.Inc()
				logging.Debug().Err(err).Msg("Rejected bearer token")
				respondError(w, http.StatusUnauthorized, ErrCodeAuthError, "Authentication required")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IntervalLimiter enforces a minimum interval between requests per
// authenticated identity. Unlike the per-IP limiters, this throttles a
// single misbehaving companion without affecting other DJs behind the
// same NAT.
type IntervalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

// NewIntervalLimiter creates a limiter with the given minimum interval.
func NewIntervalLimiter(interval time.Duration) *IntervalLimiter {
	return &IntervalLimiter{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// Allow reports whether the identity may proceed now.
func (l *IntervalLimiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// Middleware rejects over-rate requests with 429 before the handler runs,
// so a throttled request has no side effects. Must be applied after
// Authenticate.
func (l *IntervalLimiter) Middleware(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				respondError(w, http.StatusUnauthorized, ErrCodeAuthError, "Authentication required")
				return
			}

			if !l.Allow(claims.DJID) {
				metrics.APIRateLimitHits.WithLabelValues(endpoint).Inc()
				respondError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "Too many track events, slow down")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
