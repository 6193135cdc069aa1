package authz

import "context"

// AuthContext is the per-request, read-only snapshot of identity plus the
// resolved permission set. It lives only in the request context and is never
// persisted.
type AuthContext struct {
	UserID      string
	Email       string
	Name        string
	ProfileID   string
	Memberships []Membership
	Permissions PermissionSet
}

type authContextKey struct{}

// ContextWithAuth attaches the snapshot to the context.
func ContextWithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, &ac)
}

// AuthFromContext extracts the snapshot if the request was authorized.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	if ctx == nil {
		return AuthContext{}, false
	}
	v, ok := ctx.Value(authContextKey{}).(*AuthContext)
	if !ok || v == nil {
		return AuthContext{}, false
	}
	return *v, true
}
