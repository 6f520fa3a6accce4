package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy shared by the lookup client, dataset layer and copy manager
var (
	ErrTransport          = errors.New("transport error")
	ErrAuthFailure        = errors.New("authentication failure")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrValidation         = errors.New("validation error")
	ErrResourceConflict   = errors.New("resource conflict")
	ErrReadOnly           = errors.New("dataset is read-only")
	ErrFrozen             = errors.New("dataset is frozen")
	ErrUnsupportedScheme  = errors.New("unsupported base URI scheme")
	ErrNotFound           = errors.New("not found")
	ErrBusy               = errors.New("operation already in progress")
	ErrIndexOutOfBounds   = errors.New("index out of bounds")
	ErrInvalidDatasetName = errors.New("invalid dataset name")
)

// HTTPError describes a non-2xx response from the lookup server.
type HTTPError struct {
	Status int
	Route  string
	Body   string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s failed with HTTP status %d", e.Route, e.Status)
	}
	return fmt.Sprintf("%s failed with HTTP status %d: %s", e.Route, e.Status, body)
}

// Unwrap maps the status code onto the error taxonomy.
func (e *HTTPError) Unwrap() error {
	if e.Status == 401 || e.Status == 403 {
		return ErrAuthFailure
	}
	return ErrTransport
}

// ValidationError reports a violated local invariant.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a ValidationError
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// IsAuthFailure reports whether err should trigger a login prompt
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrAuthFailure)
}

// IsTransport reports whether err is a network or server failure
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsValidation reports whether err is a local invariant violation
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsCancellation reports whether err only signals that the task was cancelled.
// Cancellation unwinds silently and is never surfaced to the user.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
