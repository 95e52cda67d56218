package valuefunction

import "errors"

// Error implements errors unique to a ValueFunction
type Error struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *Error) Error() string {
	return "valuefunction: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrUnsupported reports a ValueFunction Type that was never
	// registered
	ErrUnsupported = errors.New("value function not supported")

	// ErrTooManyActions reports that more distinct actions were used
	// than the ValueFunction was configured for
	ErrTooManyActions = errors.New("exceeded number of actions")

	// ErrStateDims reports a state whose dimension does not match the
	// ValueFunction
	ErrStateDims = errors.New("invalid state dimension")
)
