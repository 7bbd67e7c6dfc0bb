package templates

import "errors"

var (
	// ErrNotFound indicates a missing template record.
	ErrNotFound = errors.New("template: not found")
	// ErrUnknownSectionType indicates a section with an unsupported rule type.
	ErrUnknownSectionType = errors.New("template: unknown section type")
)
