package httpapi

import (
	"errors"
	"net/http"

	"teamboard.io/internal/authz"
	"teamboard.io/internal/obs"
	"teamboard.io/internal/token"
)

var publicPaths = []string{
	"/auth/login",
	"/auth/refresh",
	"/healthz",
	"/readyz",
	"/metrics",
	"/",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// withAuth verifies the bearer token, resolves the caller's permissions and
// attaches the auth context. Requests on public paths pass through untouched.
// Verification failures are uniform: the response never says whether the
// token was malformed, expired or revoked.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := token.ExtractFromRequest(r)
		if !ok {
			unauthorized(w, r)
			return
		}

		identity, err := a.tokens.VerifyAccess(r.Context(), raw)
		if err != nil {
			if errors.Is(err, token.ErrInvalid) || errors.Is(err, token.ErrExpired) || errors.Is(err, token.ErrRevoked) {
				unauthorized(w, r)
				return
			}
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}

		res, err := a.resolver.Resolve(r.Context(), identity.UserID)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "authorization error")
			return
		}

		ctx := authz.ContextWithAuth(r.Context(), authz.AuthContext{
			UserID:      identity.UserID,
			Email:       identity.Email,
			Name:        identity.Name,
			ProfileID:   identity.ProfileID,
			Memberships: res.Memberships,
			Permissions: res.PermissionSet(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="teamboard"`)
	writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
}

// RequirePermission guards a handler behind a single permission. The denial
// names the missing permission; the caller is already authenticated so the
// message is not an oracle.
func RequirePermission(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := authz.AuthFromContext(r.Context())
			if !ok {
				unauthorized(w, r)
				return
			}
			if err := ac.Permissions.Require(name); err != nil {
				var denied *authz.DeniedError
				if errors.As(err, &denied) {
					obs.LogEntry(map[string]any{
						"level":      "warn",
						"msg":        "permission_denied",
						"request_id": RequestIDFromContext(r.Context()),
						"user_id":    ac.UserID,
						"permission": denied.Permission,
						"path":       r.URL.Path,
					})
				}
				writeError(w, r, http.StatusForbidden, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
