package report

import "errors"

var (
	// ErrCodeTaken means the requested custom lookup code is already in use.
	// The caller should pick a different code or omit it; custom codes are
	// never silently replaced.
	ErrCodeTaken = errors.New("lookup code already taken")

	// ErrAllocationExhausted means code generation kept colliding. At the
	// code-space size this signals an operational problem, not user error.
	ErrAllocationExhausted = errors.New("could not allocate a unique lookup code")

	// ErrInvalidCode means a supplied custom code fails the 6-12 character
	// [A-Z0-9] format.
	ErrInvalidCode = errors.New("lookup code must be 6-12 letters or digits")

	// ErrEmptyCode means a lookup was attempted with a blank code.
	ErrEmptyCode = errors.New("lookup code must not be empty")

	// ErrNotFound means no report matches the given lookup code.
	ErrNotFound = errors.New("report not found")
)

// MissingFieldError identifies the first required submission field found empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing required field: " + e.Field
}
