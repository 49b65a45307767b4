package middleware

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"

	"go.uber.org/zap"

	"nutrigate/internal/metrics"
	"nutrigate/internal/ratelimit"
	"nutrigate/pkg/logging/logging"
)

// RateLimit applies admission control before any provider work happens.
// The client identity is the X-Client-ID header when set, otherwise the
// remote IP.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ClientID(r)

			if err := limiter.Admit(clientID); err != nil {
				metrics.RateLimitedTotal.Inc()

				var rlErr *ratelimit.Error
				retryAfter := 0
				if errors.As(err, &rlErr) {
					retryAfter = int(math.Ceil(rlErr.RetryAfter.Seconds()))
				}

				logger := logging.L(r.Context())
				logger.Warn("rate limited",
					zap.String("client_id", clientID),
					zap.Int("retry_after_s", retryAfter),
				)

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"error":"rate_limit_exceeded","retryAfterSeconds":%d}`, retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientID extracts the client identity used for rate limiting.
func ClientID(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	// RealIP middleware rewrites RemoteAddr; strip the port when present.
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
