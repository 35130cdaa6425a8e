package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/threatforge/gateway/internal/api/response"
	"github.com/threatforge/gateway/internal/audit"
	"github.com/threatforge/gateway/internal/ratelimit"
)

// RateLimit applies per-identity rate limiting after authentication.
type RateLimit struct {
	limiter  ratelimit.Limiter
	recorder audit.Recorder
	limit    int
	window   time.Duration
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(l ratelimit.Limiter, recorder audit.Recorder, limit int, window time.Duration) *RateLimit {
	return &RateLimit{limiter: l, recorder: recorder, limit: limit, window: window}
}

// Limit returns middleware consuming the given quota cost per request. The
// cost is admitted atomically: a rejected request consumes nothing.
func (rl *RateLimit) Limit(cost int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := Identity(r)
			if identity == "" {
				// Auth middleware didn't run; pass through.
				next.ServeHTTP(w, r)
				return
			}

			decision, err := rl.limiter.Admit(r.Context(), identity, cost)
			if err != nil {
				// On limiter error, allow the request (fail open).
				slog.Error("rate limiter error", "error", err, "identity", identity)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				retryAfter := int(decision.RetryAfter / time.Second)
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(decision.RetryAfter).Unix(), 10))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				rl.recordRejection(r, identity)
				response.Error(w, http.StatusTooManyRequests,
					"RATE_LIMIT_EXCEEDED", "Too many requests", map[string]int{"retry_after": retryAfter})
				return
			}

			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(rl.window).Unix(), 10))
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimit) recordRejection(r *http.Request, identity string) {
	e := audit.NewEvent(identity, r.URL.Path, audit.ClassSecurity, "RATE_LIMIT_EXCEEDED", "")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rl.recorder.Record(ctx, e); err != nil {
			slog.Error("recording audit event", "error", err, "code", "RATE_LIMIT_EXCEEDED")
		}
	}()
	slog.Warn("rate limit exceeded", "audit_class", audit.ClassSecurity, "identity", identity, "path", r.URL.Path)
}
