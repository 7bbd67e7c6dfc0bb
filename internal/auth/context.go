package auth

import "context"

type contextKey string

const (
	contextKeySubject     contextKey = "auth.subject"
	contextKeyRole        contextKey = "auth.role"
	contextKeySuperAdmin  contextKey = "auth.super_admin"
	contextKeyPermissions contextKey = "auth.permissions"
)

// WithIdentity stores the resolved caller identity in context.
func WithIdentity(ctx context.Context, subject string, role Role, superAdmin bool, permissions PermissionMap) context.Context {
	ctx = context.WithValue(ctx, contextKeySubject, subject)
	ctx = context.WithValue(ctx, contextKeyRole, role)
	ctx = context.WithValue(ctx, contextKeySuperAdmin, superAdmin)
	ctx = context.WithValue(ctx, contextKeyPermissions, permissions)
	return ctx
}

// SubjectFromContext extracts the caller's user id from context.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if subject, ok := ctx.Value(contextKeySubject).(string); ok {
		return subject
	}
	return ""
}

// RoleFromContext extracts the caller's role from context.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeyRole)
	if role, ok := value.(Role); ok {
		return role
	}
	if role, ok := value.(string); ok {
		if normalized, valid := NormalizeRole(role); valid {
			return normalized
		}
	}
	return ""
}

// SuperAdminFromContext reports whether the caller is a superadmin account.
func SuperAdminFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	if flag, ok := ctx.Value(contextKeySuperAdmin).(bool); ok {
		return flag
	}
	return false
}

// PermissionsFromContext extracts the caller's permission map. Absence
// resolves to an empty map, which grants nothing.
func PermissionsFromContext(ctx context.Context) PermissionMap {
	if ctx == nil {
		return PermissionMap{}
	}
	if permissions, ok := ctx.Value(contextKeyPermissions).(PermissionMap); ok && permissions != nil {
		return permissions
	}
	return PermissionMap{}
}
