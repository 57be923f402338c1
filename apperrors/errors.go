package apperrors

import (
	"fmt"
	"net/http"
)

// Error represents an application error with an HTTP-equivalent code.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any wrapped error against the sentinel it was derived from,
// so errors.Is(Wrap(ErrNotFound, err), ErrNotFound) holds.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap returns a copy of the sentinel carrying err as its cause.
func Wrap(sentinel *Error, err error) *Error {
	return New(sentinel.Code, sentinel.Message, err)
}

// Reconciliation error taxonomy. Conflict is never surfaced to callers over
// HTTP; a lost CAS race is absorbed and logged by the reconciler.
var (
	ErrUnauthorized = New(http.StatusUnauthorized, "Invalid signature", nil)
	ErrNotFound     = New(http.StatusNotFound, "Not found", nil)
	ErrMalformed    = New(http.StatusBadRequest, "Malformed payload", nil)
	ErrConflict     = New(http.StatusConflict, "Status already resolved", nil)
	ErrUnavailable  = New(http.StatusServiceUnavailable, "Processor unavailable", nil)
)
