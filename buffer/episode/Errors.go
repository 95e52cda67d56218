package episode

import "errors"

// BufferError implements errors unique to an episode buffer
type BufferError struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *BufferError) Error() string {
	return "episode: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *BufferError) Unwrap() error {
	return e.Err
}

var (
	// ErrDuplicate reports an entry whose eid is already buffered
	ErrDuplicate = errors.New("duplicate eid")

	// ErrClosed reports a submission to a closed buffer
	ErrClosed = errors.New("buffer closed")
)

// IsDuplicate returns whether or not an error reports that an entry was
// rejected because an entry with the same eid is already buffered.
//
// Duplicates are never inserted and never retried, so callers should
// log them rather than resubmit.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsClosed returns whether or not an error reports that the buffer was
// closed before or while an entry was being submitted
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
