package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedDate        = errors.New("malformed date")
	ErrMalformedTemperature = errors.New("malformed temperature")
	ErrEmptySky             = errors.New("no sky condition")
)

// ParseError reports a free-text field that could not be converted to a typed
// value. It is recoverable: the row carrying the field is dropped.
type ParseError struct {
	Field string
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErr(field, input string, err error) *ParseError {
	return &ParseError{Field: field, Input: input, Err: err}
}
