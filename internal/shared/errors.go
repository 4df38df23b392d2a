package shared

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the core error taxonomy. Services wrap these with
// messages naming the offending ids or fields.
var (
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a duplicate name or a deletion blocked by existing references.
	ErrConflict = errors.New("conflict")
	// ErrBadRequest indicates malformed input, an empty update, or an id outside the allowed set.
	ErrBadRequest = errors.New("bad request")
)

// NotFoundf builds a NotFound error with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Conflictf builds a Conflict error with a formatted message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

// BadRequestf builds a BadRequest error with a formatted message.
func BadRequestf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrBadRequest)
}
