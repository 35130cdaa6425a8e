package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mw "github.com/threatforge/gateway/internal/api/middleware"
	"github.com/threatforge/gateway/internal/audit"
	"github.com/threatforge/gateway/internal/auth"
	"github.com/threatforge/gateway/internal/ratelimit"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTokenService(t *testing.T, ttl time.Duration) (*auth.TokenService, string) {
	t.Helper()
	ks, err := auth.NewKeystore([]string{"key-one"}, true)
	require.NoError(t, err)
	svc := auth.NewTokenService(ks, []byte(testSecret), ttl)
	return svc, "key-one"
}

// okHandler responds 200 and exposes the identity it saw.
func okHandler(identity *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*identity = mw.Identity(r)
		w.WriteHeader(http.StatusOK)
	})
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

// --- Auth ---

func TestAuthenticate_ValidToken(t *testing.T) {
	svc, rawKey := newTokenService(t, time.Hour)
	token, err := svc.Issue(rawKey)
	require.NoError(t, err)

	var identity string
	a := mw.NewAuth(svc, audit.NopRecorder{}, true)
	handler := a.Authenticate(okHandler(&identity))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/threat-model", nil)
	r.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, identity)
	// The identity is derived from the key, never the key itself.
	assert.NotEqual(t, rawKey, identity)
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	svc, _ := newTokenService(t, time.Hour)
	a := mw.NewAuth(svc, audit.NopRecorder{}, true)

	var identity string
	handler := a.Authenticate(okHandler(&identity))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/threat-model", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, rec))
}

func TestAuthenticate_MalformedHeader(t *testing.T) {
	svc, _ := newTokenService(t, time.Hour)
	a := mw.NewAuth(svc, audit.NopRecorder{}, true)
	handler := a.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, header := range []string{"key-one", "Basic key-one", "Bearer"} {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/threat-model", nil)
		r.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	svc, rawKey := newTokenService(t, -time.Minute)
	token, err := svc.Issue(rawKey)
	require.NoError(t, err)

	verifier, _ := newTokenService(t, time.Hour)
	a := mw.NewAuth(verifier, audit.NopRecorder{}, true)
	handler := a.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/threat-model", nil)
	r.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_EXPIRED", errorCode(t, rec))
}

func TestAuthenticate_GarbageToken(t *testing.T) {
	svc, _ := newTokenService(t, time.Hour)
	a := mw.NewAuth(svc, audit.NopRecorder{}, true)
	handler := a.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/threat-model", nil)
	r.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, rec))
}

func TestAuthenticate_Disabled(t *testing.T) {
	var identity string
	a := mw.NewAuth(nil, audit.NopRecorder{}, false)
	handler := a.Authenticate(okHandler(&identity))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/threat-model", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", identity)
}

// --- Logger ---

func TestLogger_AssignsRequestID(t *testing.T) {
	handler := mw.Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestLogger_KeepsCallerRequestID(t *testing.T) {
	handler := mw.Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	r.Header.Set("X-Request-ID", "upstream-trace-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, "upstream-trace-42", rec.Header().Get("X-Request-ID"))
}

// --- RateLimit ---

// capturingRecorder delivers recorded events on a channel so tests can wait
// for the asynchronous write.
type capturingRecorder struct {
	events chan audit.Event
}

func (r *capturingRecorder) Record(_ context.Context, e audit.Event) error {
	r.events <- e
	return nil
}

// failingLimiter always errors.
type failingLimiter struct{}

func (failingLimiter) Admit(context.Context, string, int) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("limiter down")
}

func authedRequest(identity string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/threat-model", nil)
	return r.WithContext(auth.WithIdentity(r.Context(), identity))
}

func TestLimit_UnderLimit(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(3, time.Minute, 0)
	rl := mw.NewRateLimit(limiter, audit.NopRecorder{}, 3, time.Minute)
	handler := rl.Limit(1)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("abc123"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestLimit_Exceeded(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(2, time.Minute, 0)
	rl := mw.NewRateLimit(limiter, audit.NopRecorder{}, 2, time.Minute)
	handler := rl.Limit(1)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest("abc123"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("abc123"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorCode(t, rec))

	retryAfter := rec.Header().Get("Retry-After")
	require.NotEmpty(t, retryAfter)
	assert.NotEqual(t, "0", retryAfter)
}

func TestLimit_ExceededRecordsSecurityEvent(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(1, time.Minute, 0)
	recorder := &capturingRecorder{events: make(chan audit.Event, 1)}
	rl := mw.NewRateLimit(limiter, recorder, 1, time.Minute)
	handler := rl.Limit(1)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("abc123"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("abc123"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	select {
	case e := <-recorder.events:
		assert.Equal(t, audit.ClassSecurity, e.Class)
		assert.Equal(t, "RATE_LIMIT_EXCEEDED", e.Code)
		assert.Equal(t, "abc123", e.Identity)
		assert.Equal(t, "/api/v1/threat-model", e.Endpoint)
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event recorded")
	}
}

func TestLimit_DoubleCostAtomic(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(3, time.Minute, 0)
	rl := mw.NewRateLimit(limiter, audit.NopRecorder{}, 3, time.Minute)
	single := rl.Limit(1)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	double := rl.Limit(2)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// 2 of 3 units used.
	rec := httptest.NewRecorder()
	double.ServeHTTP(rec, authedRequest("abc123"))
	require.Equal(t, http.StatusOK, rec.Code)

	// A second double request would need 2 units; only 1 remains.
	rec = httptest.NewRecorder()
	double.ServeHTTP(rec, authedRequest("abc123"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// The rejected request consumed nothing: a single still fits.
	rec = httptest.NewRecorder()
	single.ServeHTTP(rec, authedRequest("abc123"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLimit_IdentitiesIndependent(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(1, time.Minute, 0)
	rl := mw.NewRateLimit(limiter, audit.NopRecorder{}, 1, time.Minute)
	handler := rl.Limit(1)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("abc123"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("abc123"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("def456"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLimit_FailOpen(t *testing.T) {
	rl := mw.NewRateLimit(failingLimiter{}, audit.NopRecorder{}, 10, time.Minute)
	handler := rl.Limit(1)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("abc123"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLimit_NoIdentityPassesThrough(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(1, time.Minute, 0)
	rl := mw.NewRateLimit(limiter, audit.NopRecorder{}, 1, time.Minute)
	handler := rl.Limit(1)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/threat-model", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}
