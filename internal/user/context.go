package user

import "context"

type contextKey struct{}

// NewContext returns a context carrying the authenticated user. Set by the
// auth middleware once the token subject has been loaded.
func NewContext(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// FromContext extracts the authenticated user attached by the auth middleware.
func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(contextKey{}).(*User)
	return u, ok
}
