package auth

import "errors"

// ErrPermissionDenied indicates the caller lacks the required access level.
var ErrPermissionDenied = errors.New("auth: permission denied")
