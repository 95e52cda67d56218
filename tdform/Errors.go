package tdform

import "errors"

// Error implements errors unique to a TDForm
type Error struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *Error) Error() string {
	return "tdform: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrUnsupported reports a TDForm Type that was never registered
var ErrUnsupported = errors.New("td form not supported")
