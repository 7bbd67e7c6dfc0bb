package auth

// Role represents a user role. Roles are a display/organizational concern:
// access is always decided by the per-feature permission map, never by role.
type Role string

const (
	RoleUser       Role = "user"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleUser, RoleSupervisor, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}
