package core

import "github.com/pkg/errors"

// FieldError reports a problem with one input field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is an input error. Field errors take precedence over Err
// when it is presented to users.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

// NewFieldError is a ValidationError about a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err *ValidationError) Error() string {
	switch {
	case err.Err != nil:
		return err.Err.Error()
	case len(err.Fields) > 0:
		return err.Fields[0].Field + ": " + err.Fields[0].Error
	}
	return "invalid input"
}

func (err *ValidationError) Unwrap() error { return err.Err }

// FieldMap indexes the field errors by field, the last error of a field winning.
func (err *ValidationError) FieldMap() map[string]string {
	return FieldMap(err.Fields)
}

func FieldMap(flds []FieldError) map[string]string {
	m := make(map[string]string, len(flds))
	for _, fld := range flds {
		m[fld.Field] = fld.Error
	}
	return m
}

// ShutdownError reports a failure after which the process must stop gracefully.
type ShutdownError struct {
	Reason string
	Err    error
}

func NewShutdownError(reason string, err error) error {
	return &ShutdownError{Reason: reason, Err: err}
}

func (s *ShutdownError) Error() string {
	if s.Err == nil {
		return s.Reason
	}
	return s.Reason + ": " + s.Err.Error()
}

func (s *ShutdownError) Unwrap() error { return s.Err }

func IsShutdown(err error) bool {
	var sErr *ShutdownError
	return errors.As(err, &sErr)
}
