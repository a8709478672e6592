package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/rowfilter/internal/web/middleware"
	"github.com/conduit-lang/rowfilter/internal/web/response"
)

// KeyFunc identifies the client a request counts against
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by the remote address host. Forwarding headers are
// ignored since clients control them.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the limit with 429 and reports the limit
// state in X-RateLimit-* headers. When the limiter fails the request is let
// through and the failure logged.
func Middleware(limiter Limiter, key KeyFunc) middleware.Middleware {
	if key == nil {
		key = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := limiter.Allow(r.Context(), key(r))
			if err != nil {
				middleware.GetLogger(r.Context()).Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

			if !info.Allowed {
				retry := time.Until(info.ResetAt)
				if retry < time.Second {
					retry = time.Second
				}
				h.Set("Retry-After", strconv.Itoa(int(retry.Round(time.Second).Seconds())))
				response.RenderError(w, http.StatusTooManyRequests,
					fmt.Errorf("rate limit of %d requests exceeded", info.Limit))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
