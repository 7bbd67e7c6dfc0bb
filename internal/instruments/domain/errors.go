package instruments

import "errors"

// ErrNotFound indicates a missing instrument record.
var ErrNotFound = errors.New("instrument: not found")
