package users

import (
	"errors"
	"time"

	"labmaint-cloud/internal/auth"
)

// UserProfile owns a user's role and permission map. Permissions are the
// single source of truth for feature access; the role is descriptive and
// grants nothing by itself.
type UserProfile struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Email       string             `json:"email,omitempty"`
	Role        auth.Role          `json:"role"`
	SuperAdmin  bool               `json:"super_admin"`
	Permissions auth.PermissionMap `json:"permissions"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Validate checks profile invariants.
func (u UserProfile) Validate() error {
	if u.ID == "" {
		return errors.New("user profile: empty id")
	}
	if u.Name == "" {
		return errors.New("user profile: empty name")
	}
	if _, ok := auth.NormalizeRole(string(u.Role)); !ok {
		return errors.New("user profile: invalid role")
	}
	return nil
}
