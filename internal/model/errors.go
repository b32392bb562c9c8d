package model

import (
	"errors"
	"fmt"
)

// Typed errors shared by the stores and services. They propagate to the
// caller unmodified; the presentation layer translates them.
var (
	// ErrPermissionDenied means the actor is not authorized for the
	// operation attempted (not the same as a NONE resolution, which is a
	// valid decision, not an error).
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidStateTransition means the request is not in the state the
	// operation requires.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrDuplicateRequest means an active PENDING request already exists
	// for the (teacher, class) pair.
	ErrDuplicateRequest = errors.New("pending request already exists")

	// ErrStaleRequestState means a concurrent reviewer decided the request
	// first. The caller must re-fetch and decide manually whether to retry.
	ErrStaleRequestState = errors.New("request state changed concurrently")

	// ErrNotFound means the assignment, request or class code is unknown.
	ErrNotFound = errors.New("not found")
)

// AccessDeniedError carries enough context to build the user-facing denial
// message for a gated exam mutation. Callers must surface this message
// rather than re-deriving their own.
type AccessDeniedError struct {
	Required  AccessLevel
	Actual    string
	ClassCode string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("Access Denied: required %s access level, your access: %s on %s",
		e.Required, e.Actual, e.ClassCode)
}

// Unwrap lets errors.Is treat a denial as ErrPermissionDenied.
func (e *AccessDeniedError) Unwrap() error {
	return ErrPermissionDenied
}
