package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEntry reports a malformed outcome report or state
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrUnsupportedLearner reports a learner Type which was never
	// registered
	ErrUnsupportedLearner = errors.New("learner not supported")

	// ErrNotRunning reports a call to an Agent which is not running
	ErrNotRunning = errors.New("learner not running")
)

// ConfigError reports a hyperparameter which could not be coerced to
// its type or which has an impossible value
type ConfigError struct {
	Key string
	Err error
}

// Error satisfies the error interface
func (c *ConfigError) Error() string {
	return fmt.Sprintf("agent: parameter %q: %v", c.Key, c.Err)
}

// Unwrap returns the underlying error
func (c *ConfigError) Unwrap() error {
	return c.Err
}

// IsConfigError returns whether or not an error reports an invalid
// hyperparameter
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}
