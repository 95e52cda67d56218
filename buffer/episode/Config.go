package episode

import "fmt"

// DefaultCapacity is the default maximum number of buffered entries
const DefaultCapacity int = 10000

// Config determines the Buffer created by New
type Config struct {
	// Capacity is the maximum number of entries which may be buffered
	// at once. Submissions block while the buffer holds Capacity
	// entries.
	Capacity int
}

// DefaultConfig returns a Config with the default capacity
func DefaultConfig() Config {
	return Config{Capacity: DefaultCapacity}
}

// Validate returns an error if the Config cannot be used to create a
// Buffer
func (c Config) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("capacity must be >= 1 (have %d)", c.Capacity)
	}
	return nil
}
