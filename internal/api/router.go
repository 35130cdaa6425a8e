package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/threatforge/gateway/internal/api/middleware"
	"github.com/threatforge/gateway/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler   http.HandlerFunc
	TokenHandler    http.HandlerFunc
	GenerateHandler http.HandlerFunc
	CompareHandler  http.HandlerFunc
	UploadHandler   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes. The
// token endpoint is public; everything under /api/v1/threat-model requires a
// bearer token and consumes rate-limit quota (double for compare).
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public routes
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Post("/api/token", orNotImplemented(deps.TokenHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		r.With(deps.RateLimit.Limit(1)).
			Post("/api/v1/threat-model", orNotImplemented(deps.GenerateHandler))
		r.With(deps.RateLimit.Limit(2)).
			Post("/api/v1/threat-model/compare", orNotImplemented(deps.CompareHandler))
		r.With(deps.RateLimit.Limit(1)).
			Post("/api/v1/threat-model/upload", orNotImplemented(deps.UploadHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
