package core

import "github.com/pkg/errors"

type FieldError struct {
	Field string
	Error string
}

// ValidationError is a client error on the request input.
// Fields is empty when the error concerns the request as a whole.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

// NewFieldValidationError reports a single invalid field; msg is both the field and the error message.
func NewFieldValidationError(field, msg string) error {
	return NewValidationError(errors.New(msg), FieldError{Field: field, Error: msg})
}

func (err *ValidationError) Error() string {
	if err.Err == nil {
		return "invalid input"
	}
	return err.Err.Error()
}

// FieldMap returns the messages keyed by field name, nil if no field is involved.
func (err *ValidationError) FieldMap() map[string]string {
	if len(err.Fields) == 0 {
		return nil
	}
	m := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		m[f.Field] = f.Error
	}
	return m
}

// shutdownError is returned by code that found the process in a state it cannot serve from.
type shutdownError struct {
	msg string
}

func NewShutdownError(msg string) error {
	return &shutdownError{msg: msg}
}

func (s *shutdownError) Error() string {
	return s.msg
}

func IsShutdown(err error) bool {
	var se *shutdownError
	return errors.As(err, &se)
}
