package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// InvalidStateError reports an operation attempted against an entity whose
// current state forbids it (attempt limit reached, repeat required, etc.).
// It is always recoverable by the caller.
type InvalidStateError struct {
	msg string
}

func NewInvalidStateError(msg string) error {
	return &InvalidStateError{msg: msg}
}

func (err InvalidStateError) Error() string {
	return err.msg
}

func IsInvalidState(err error) bool {
	_, ok := errors.Cause(err).(*InvalidStateError)
	return ok
}

// ForbiddenError reports a role/ownership violation.
type ForbiddenError struct {
	msg string
}

func NewForbiddenError(msg string) error {
	return &ForbiddenError{msg: msg}
}

func (err ForbiddenError) Error() string {
	return err.msg
}

func IsForbidden(err error) bool {
	_, ok := errors.Cause(err).(*ForbiddenError)
	return ok
}

// ErrWriteConflict is returned by repositories when a versioned update lost
// the race against a concurrent writer. Services retry a bounded number of
// times before giving up.
var ErrWriteConflict = errors.New("write conflict")

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
