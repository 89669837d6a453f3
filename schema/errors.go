package schema

import (
	"errors"
	"fmt"
)

// Registry construction and codec error types
var (
	// ErrDuplicateTypeID is returned when two record types share a type id
	ErrDuplicateTypeID = errors.New("duplicate type id")

	// ErrMissingTypeID is returned when a record spec omits its type id
	ErrMissingTypeID = errors.New("record type missing type id")

	// ErrUnknownTypeID is returned when a type id is absent from the registry
	ErrUnknownTypeID = errors.New("unknown type id")

	// ErrUnencodableType is returned when encode hits a value of
	// unregistered, non-primitive, non-container type
	ErrUnencodableType = errors.New("type not encodable")

	// ErrUndecodableType is returned when no decode strategy applies to
	// the expected type
	ErrUndecodableType = errors.New("type not decodable")

	// ErrDecode is the sentinel wrapped by every DecodeError
	ErrDecode = errors.New("decode failed")
)

// DecodeError reports a wire value that does not match the expected type
// and that no legacy override resolved. It carries the offending field
// path and both shapes for diagnostics.
type DecodeError struct {
	Path     string
	Expected string
	Actual   string
	Reason   string
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode failed at %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap allows errors.Is(err, ErrDecode)
func (e *DecodeError) Unwrap() error { return ErrDecode }

// NewDecodeError builds a DecodeError for the given context and shapes.
// A nil context produces an empty path.
func NewDecodeError(ctx *DocContext, expected, actual, reason string) *DecodeError {
	path := ""
	if ctx != nil {
		path = ctx.Path.String()
	}
	return &DecodeError{Path: path, Expected: expected, Actual: actual, Reason: reason}
}
