// Package apperr defines the error taxonomy shared by services and
// handlers. Every error carries a machine-readable kind so handlers can map
// it to an HTTP status without string matching.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind machine-readable error category
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindPolicyViolation   Kind = "policy_violation"
	KindInvalidTransition Kind = "invalid_transition"
	KindConflict          Kind = "conflict"
	KindExport            Kind = "export_error"
)

// Error application error with a kind and optional wrapped cause
type Error struct {
	Kind    Kind
	Message string
	// Fields lists the offending input fields for validation errors.
	Fields []string
	// Guard names the failed workflow guard for policy violations.
	Guard string
	Err   error
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, strings.Join(e.Fields, ", "))
	}
	if e.Guard != "" {
		return fmt.Sprintf("%s: %s (guard: %s)", e.Kind, e.Message, e.Guard)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation builds a validation error listing the invalid fields.
func Validation(message string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// NotFound builds a not-found error for the named resource.
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// Forbidden builds a role/permission error.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// PolicyViolation builds a workflow guard failure naming the guard.
func PolicyViolation(guard, message string) *Error {
	return &Error{Kind: KindPolicyViolation, Message: message, Guard: guard}
}

// InvalidTransition builds an error for an undefined state/event pair.
func InvalidTransition(message string) *Error {
	return &Error{Kind: KindInvalidTransition, Message: message}
}

// Conflict builds an error for a lost concurrent-update race.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Export wraps a renderer failure.
func Export(cause error) *Error {
	return &Error{Kind: KindExport, Message: "export failed", Err: cause}
}

// KindOf extracts the kind of an error, or "" for plain errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
