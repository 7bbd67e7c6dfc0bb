package auth

import (
	"context"
	"net/http"
	"strings"
)

// PermissionSource resolves the permission map for a user id. A user with no
// stored profile gets the least-privilege default map.
type PermissionSource interface {
	PermissionsFor(ctx context.Context, userID string) (PermissionMap, error)
}

// Middleware validates JWTs and enforces per-feature permissions.
type Middleware struct {
	Secret []byte
	Policy Policy
	Source PermissionSource
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy, source PermissionSource) *Middleware {
	return &Middleware{Secret: secret, Policy: policy, Source: source}
}

// Wrap applies auth and permission checks to the handler. Permissions are
// resolved on every request; results are never cached across requests.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		feature, level, ok := m.Policy.RequiredAccess(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		token := extractBearer(r)
		claims, err := ParseJWT(token, m.Secret)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		role, _ := NormalizeRole(claims.Role)

		permissions := DefaultPermissions()
		if m.Source != nil {
			resolved, err := m.Source.PermissionsFor(r.Context(), claims.Subject)
			if err != nil {
				http.Error(w, "permission lookup failed", http.StatusInternalServerError)
				return
			}
			if resolved != nil {
				permissions = resolved
			}
		}

		ctx := WithIdentity(r.Context(), claims.Subject, role, claims.SuperAdmin, permissions)
		if !HasPermission(permissions, feature, level) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
