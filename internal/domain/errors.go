package domain

import (
	"errors"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a folder (or a membership on removal) was not found
	NotFoundError struct {
		Message string
	}

	// InvalidArgumentError indicates malformed input: empty ids, empty
	// contributor batches, or an owner listed as a contributor
	InvalidArgumentError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// PermissionDeniedError indicates the actor lacks the manage capability
	// for the attempted operation
	PermissionDeniedError struct {
		Message string
	}
)

// Error implementations
func (e *NotFoundError) Error() string         { return e.Message }
func (e *InvalidArgumentError) Error() string  { return e.Message }
func (e *UnauthorizedError) Error() string     { return e.Message }
func (e *PermissionDeniedError) Error() string { return e.Message }

// StatusCode implementations (HTTPError interface)
func (e *NotFoundError) StatusCode() int         { return http.StatusNotFound }
func (e *InvalidArgumentError) StatusCode() int  { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int     { return http.StatusUnauthorized }
func (e *PermissionDeniedError) StatusCode() int { return http.StatusForbidden }

// Sentinel errors - callers branch on these with errors.Is(), never on
// message text.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrPermissionDenied = errors.New("permission denied")
)

// Is allows errors.Is() to match typed errors against their sentinels.
func (e *NotFoundError) Is(target error) bool         { return target == ErrNotFound }
func (e *InvalidArgumentError) Is(target error) bool  { return target == ErrInvalidArgument }
func (e *UnauthorizedError) Is(target error) bool     { return target == ErrUnauthorized }
func (e *PermissionDeniedError) Is(target error) bool { return target == ErrPermissionDenied }
