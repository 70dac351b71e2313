package missionset

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Sentinels
// -----------------------------------------------------------------------------

// Error sentinel values for common conditions.
var (
	// ErrNotFound indicates a requested key does not exist in the store.
	ErrNotFound = errNotFound{}

	// ErrInvalidPath indicates a path that would escape the storage root,
	// or a type or id that is not a single path segment.
	ErrInvalidPath = errors.New("invalid path: outside the dataset root or not a single path segment")

	// ErrHiddenType indicates a type name with a leading "." or "_".
	ErrHiddenType = errors.New("hidden name is not a mission type")

	// ErrPath matches every *PathError.
	ErrPath = errors.New("path does not resolve")

	// ErrParse matches every *ParseError.
	ErrParse = errors.New("malformed document")

	// ErrSchema matches every *SchemaError.
	ErrSchema = errors.New("schema violation")

	// ErrInsufficientTasks indicates a sample larger than the task collection.
	ErrInsufficientTasks = errors.New("not enough tasks")
)

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

// -----------------------------------------------------------------------------
// Typed errors
// -----------------------------------------------------------------------------

// PathError reports that a root, type, or id does not resolve to the
// expected file or directory.
type PathError struct {
	// Path is the attempted store key.
	Path string
	// Err is the underlying cause, usually ErrNotFound.
	Err error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("missionset: path %s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPath.
func (e *PathError) Is(target error) bool { return target == ErrPath }

// ParseError reports that a document is not valid structured data.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("missionset: parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is reports whether target is ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// SchemaError reports parsed content with a missing field or the wrong
// shape.
type SchemaError struct {
	// Path is the store key of the offending document.
	Path string
	// Index is the position of the offending element in an array document,
	// or -1 when the problem concerns the document as a whole.
	Index int
	// Field is the dotted name of the offending field. Empty for the element
	// itself.
	Field string
	// Message describes the violation.
	Message string
}

func (e *SchemaError) Error() string {
	subject := e.Field
	if subject == "" {
		subject = "value"
	}
	if e.Index >= 0 {
		return fmt.Sprintf("missionset: %s: element %d: %s: %s", e.Path, e.Index, subject, e.Message)
	}
	return fmt.Sprintf("missionset: %s: %s: %s", e.Path, subject, e.Message)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// fieldError is a schema violation not yet tied to a document.
type fieldError struct {
	field   string
	message string
}

func missingField(field string) *fieldError {
	return &fieldError{field: field, message: "is required"}
}

func wrongType(field, want string, got any) *fieldError {
	return &fieldError{field: field, message: fmt.Sprintf("must be %s, got %s", want, jsonKind(got))}
}

func (fe *fieldError) at(path string, index int) *SchemaError {
	return &SchemaError{Path: path, Index: index, Field: fe.field, Message: fe.message}
}

// jsonKind names the JSON kind of a decoded value for error messages.
func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
