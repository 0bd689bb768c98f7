// Package dErrors provides coded domain errors. Services attach a Code so
// transports can map failures to responses without inspecting error text.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and policy decisions.
type Code string

const (
	// CodeUnauthorized covers failed authentication. The message is uniform
	// regardless of whether the username exists.
	CodeUnauthorized Code = "unauthorized"

	// CodeForbidden covers role/ownership denials. Fails closed: no partial
	// data accompanies this code, and for reviewers it is indistinguishable
	// from a missing record.
	CodeForbidden Code = "forbidden"

	// CodeNotFound is surfaced to admin callers only.
	CodeNotFound Code = "not_found"

	// CodeConflict covers unique-constraint style collisions (usernames).
	CodeConflict Code = "conflict"

	// CodeDuplicate marks a blind-index collision on submission. Recoverable
	// by the caller, not a bug.
	CodeDuplicate Code = "duplicate"

	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"

	// CodeDecryption marks an authentication failure or malformed ciphertext.
	// Fatal for the record, opaque to end users, logged loudly server-side.
	CodeDecryption Code = "decryption_failure"

	// CodeDataIntegrity marks a deserialization failure after a successful
	// decrypt. Kept distinct from CodeDecryption to aid diagnosis.
	CodeDataIntegrity Code = "data_integrity"

	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// Error carries a Code alongside the message and an optional cause.
type Error struct {
	code    Code
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the classification of this error.
func (e *Error) Code() Code { return e.code }

// Message returns the caller-facing description without the cause chain.
func (e *Error) Message() string { return e.message }

// New constructs a domain error with the given code.
func New(code Code, message string) error {
	return &Error{code: code, message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{code: code, message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.code == code
	}
	return false
}

// Is is a readability alias for HasCode at call sites that test a single code.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from an error chain, defaulting to CodeInternal
// for unclassified errors so transports never leak internals.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}
