package handler

import (
	"errors"
	"fmt"

	"github.com/glizzus/recurring/internal/crontab"
)

// UserError is an error type that is used to represent
// an error that should be displayed to the user.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

var _ error = (*UserError)(nil)

// userMessage turns errors the user can act on into a message for them.
// It reports false for internal failures.
func userMessage(err error) (string, bool) {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Message, true
	}

	var fieldErr *crontab.FieldError
	if errors.As(err, &fieldErr) {
		return fmt.Sprintf("Invalid %s field `%s`: %s.", fieldErr.Kind, fieldErr.Text, fieldErr.Reason), true
	}
	var exprErr *crontab.ExpressionError
	if errors.As(err, &exprErr) {
		return fmt.Sprintf("Expected %d fields but got %d.", exprErr.Want, exprErr.Got), true
	}
	return "", false
}
