// Package fserrors defines the error taxonomy shared by the path model,
// the upload validator, the backend adapters and the browser session.
package fserrors

import (
	"context"
	"errors"
	"fmt"
)

// Validation and navigation errors. These are detected before any network
// call is made.
var (
	ErrInvalidSegment      = errors.New("invalid path segment")
	ErrAtRoot              = errors.New("already at root")
	ErrEmptyName           = errors.New("name cannot be empty")
	ErrDisallowedExtension = errors.New("file type not allowed")
)

// Runtime errors.
var (
	ErrTimeout            = errors.New("operation timed out")
	ErrMissingCredentials = errors.New("credentials not configured")
	// ErrBackend matches any *BackendError through errors.Is.
	ErrBackend = errors.New("backend error")
)

// BackendError wraps a listing, create or upload failure reported by a
// storage backend or by the remote proxy.
type BackendError struct {
	Backend    string
	Op         string
	Message    string
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: %s (status %d)", e.Backend, e.Op, msg, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %s", e.Backend, e.Op, msg)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is reports ErrBackend as a match so callers don't need errors.As for the
// common case.
func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}

// NewBackendError builds a BackendError from an underlying client error.
func NewBackendError(backend, op string, err error) *BackendError {
	be := &BackendError{Backend: backend, Op: op, Err: err}
	if err != nil {
		be.Message = err.Error()
	}
	return be
}

// Classify maps a failure from a network-bound call onto the taxonomy.
// Deadline errors become ErrTimeout, errors already in the taxonomy pass
// through, anything else is wrapped in a BackendError.
func Classify(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%s %s: %w", backend, op, ErrTimeout)
	}
	if errors.Is(err, ErrBackend) || isValidation(err) {
		return err
	}
	return NewBackendError(backend, op, err)
}

func isValidation(err error) bool {
	return errors.Is(err, ErrInvalidSegment) ||
		errors.Is(err, ErrAtRoot) ||
		errors.Is(err, ErrEmptyName) ||
		errors.Is(err, ErrDisallowedExtension) ||
		errors.Is(err, ErrMissingCredentials)
}

// IsValidation reports whether err was raised before any backend call.
func IsValidation(err error) bool {
	return isValidation(err)
}
