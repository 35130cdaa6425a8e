package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/threatforge/gateway/internal/api/response"
	"github.com/threatforge/gateway/internal/audit"
	"github.com/threatforge/gateway/internal/auth"
)

// anonymousIdentity is used for all requests when authentication is disabled.
const anonymousIdentity = "anonymous"

// Auth verifies bearer tokens issued by the token service.
type Auth struct {
	tokens   *auth.TokenService
	recorder audit.Recorder
	enabled  bool
}

// NewAuth creates a new Auth middleware. When enabled is false, all requests
// pass through under a shared anonymous identity.
func NewAuth(tokens *auth.TokenService, recorder audit.Recorder, enabled bool) *Auth {
	return &Auth{tokens: tokens, recorder: recorder, enabled: enabled}
}

// Authenticate validates the Bearer token and sets the key identity in the
// request context. Verification compares expiry against wall-clock time at
// this moment, not token issuance.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled {
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), anonymousIdentity)))
			return
		}

		token := extractBearerToken(r)
		if token == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		identity, err := a.tokens.Verify(token)
		if err != nil {
			a.recordFailure(r, err)
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				response.Error(w, http.StatusUnauthorized,
					"TOKEN_EXPIRED", "Token has expired", nil)
			default:
				response.Error(w, http.StatusUnauthorized,
					"INVALID_TOKEN", "Invalid token", nil)
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

func (a *Auth) recordFailure(r *http.Request, err error) {
	code := "INVALID_TOKEN"
	if errors.Is(err, auth.ErrTokenExpired) {
		code = "TOKEN_EXPIRED"
	}
	e := audit.NewEvent("", r.URL.Path, audit.ClassSecurity, code, err.Error())
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.recorder.Record(ctx, e); err != nil {
			slog.Error("recording audit event", "error", err, "code", code)
		}
	}()
	slog.Warn("authentication failed", "audit_class", audit.ClassSecurity, "code", code, "path", r.URL.Path)
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
