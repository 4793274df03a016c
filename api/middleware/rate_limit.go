package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/walletcore/api/responses"
	"github.com/angelmondragon/walletcore/pkg/config"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
	"github.com/angelmondragon/walletcore/pkg/logger"
)

// RateLimiter is satisfied by pkg/redis.Client.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit throttles requests per client IP and, once authenticated, per
// user. Limiter failures are logged and the request is allowed through.
func RateLimit(limiter RateLimiter, cfg config.RateLimitConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || cfg.Window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if cfg.IPLimit > 0 {
				if ip := clientIP(r); ip != "" {
					if !allow(ctx, limiter, logg, "ip:"+ip, int64(cfg.IPLimit), cfg.Window) {
						writeRateLimited(w, r, logg, cfg.Window)
						return
					}
				}
			}

			if cfg.UserLimit > 0 {
				if userID := UserIDFromContext(ctx); userID != "" {
					if !allow(ctx, limiter, logg, "user:"+userID, int64(cfg.UserLimit), cfg.Window) {
						writeRateLimited(w, r, logg, cfg.Window)
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func allow(ctx context.Context, limiter RateLimiter, logg *logger.Logger, scope string, limit int64, window time.Duration) bool {
	ok, _, err := limiter.FixedWindowAllow(ctx, scope, limit, window)
	if err != nil {
		if logg != nil {
			logg.Warn(logg.WithField(ctx, "scope", scope), "rate limit check failed")
		}
		return true
	}
	return ok
}

func writeRateLimited(w http.ResponseWriter, r *http.Request, logg *logger.Logger, window time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests"))
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
