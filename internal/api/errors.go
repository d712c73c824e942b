package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/taskclient/internal/model"
)

// ErrAuthRequired means the API rejected the session (HTTP 401) or no
// session exists for an authenticated call. Callers must log the user out.
var ErrAuthRequired = errors.New("api: authentication required")

// ValidationError carries input problems, either found locally before a
// request or reported by the API as a 400 with an "errors" object.
type ValidationError struct {
	Messages []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, " ")
}

// UserMessage joins the messages with spaces, as the register form shows them.
func (e *ValidationError) UserMessage() string {
	return strings.Join(e.Messages, " ")
}

// NewValidationError wraps a local validation failure.
func NewValidationError(err error) *ValidationError {
	var fe model.FieldError
	if errors.As(err, &fe) {
		return &ValidationError{Messages: []string{fe.Message}}
	}
	return &ValidationError{Messages: []string{err.Error()}}
}

// RequestError is any failure other than authentication and validation:
// network errors, unexpected statuses, undecodable bodies.
type RequestError struct {
	Method string
	Path   string
	Status int
	Body   string
	Err    error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.Path, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsAuthRequired reports whether err means the session is no longer valid.
func IsAuthRequired(err error) bool {
	return errors.Is(err, ErrAuthRequired)
}

// IsCancelled reports whether err comes from a cancelled context. A
// cancelled fetch is not a failure.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// UserMessage returns text safe to show the user. Validation messages come
// from the API or the form; everything else becomes fallback, so raw
// transport errors never reach the screen.
func UserMessage(err error, fallback string) string {
	var verr *ValidationError
	if errors.As(err, &verr) && len(verr.Messages) > 0 {
		return verr.UserMessage()
	}
	return fallback
}
