package middleware

import (
	"net/http"

	"github.com/threatforge/gateway/internal/auth"
)

// Identity returns the authenticated key identity set by the auth middleware,
// or "" for unauthenticated requests.
func Identity(r *http.Request) string {
	return auth.IdentityFromContext(r.Context())
}
