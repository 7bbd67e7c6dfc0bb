package users

import "errors"

var (
	// ErrNotFound indicates a missing user profile.
	ErrNotFound = errors.New("user: not found")
	// ErrProtectedUser indicates an attempt to remove or demote a
	// superadmin by anyone but that superadmin.
	ErrProtectedUser = errors.New("user: superadmin is protected")
)
