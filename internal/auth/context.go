package auth

import "context"

type contextKey struct{}

// WithIdentity returns a context carrying the authenticated key identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// IdentityFromContext returns the authenticated key identity, or "" when the
// request was not authenticated.
func IdentityFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
