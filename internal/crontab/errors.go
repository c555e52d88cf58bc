package crontab

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidKind = errors.New("crontab: invalid field kind")
	ErrFieldCount  = errors.New("crontab: wrong number of fields")
	ErrEmptyField  = errors.New("crontab: empty field")
	ErrMalformed   = errors.New("crontab: malformed field")
	ErrUnknownName = errors.New("crontab: unknown value name")
	ErrOutOfRange  = errors.New("crontab: value out of range")
)

// FieldError reports a field that could not be parsed. Err is one of
// ErrEmptyField, ErrMalformed, ErrUnknownName or ErrOutOfRange.
type FieldError struct {
	Kind   FieldKind
	Text   string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("crontab: invalid %s field %q: %s", e.Kind, e.Text, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

var _ error = (*FieldError)(nil)

// ExpressionError reports an expression with the wrong number of fields.
type ExpressionError struct {
	Expression string
	Want       int
	Got        int
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf(
		"crontab: %q is not a valid expression: want %d fields (%s), got %d",
		e.Expression, e.Want, fieldOrder(e.Want), e.Got,
	)
}

func (e *ExpressionError) Unwrap() error {
	return ErrFieldCount
}

var _ error = (*ExpressionError)(nil)

func fieldOrder(count int) string {
	if count == 6 {
		return "second minute hour day month day-of-week"
	}
	return "minute hour day month day-of-week"
}
