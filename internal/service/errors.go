package service

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map them to HTTP status codes; anything that does
// not wrap one of these is treated as an internal error.
var (
	ErrValidation       = errors.New("validation_error")
	ErrNotFound         = errors.New("not_found")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrConflict         = errors.New("conflict")
	ErrCapacityExceeded = errors.New("capacity_exceeded")
	ErrQuotaExceeded    = errors.New("quota_exceeded")
	ErrTooManyAttempts  = errors.New("too_many_attempts")
)

// Error is a caller-facing failure: a stable kind plus a readable message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// Code is the stable identifier of the error kind.
func (e *Error) Code() string { return e.Kind.Error() }

func fail(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
