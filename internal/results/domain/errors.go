package results

import "errors"

// ErrNotFound indicates a missing maintenance result.
var ErrNotFound = errors.New("result: not found")
