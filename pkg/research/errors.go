package research

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrJobNotFound       = errors.New("job not found")
	ErrNoSearchTerms     = errors.New("no search terms generated")
	ErrAllSearchesFailed = errors.New("all searches failed")

	// errStopped ends a run whose consumer went away. It is never finalized.
	errStopped = errors.New("stream consumer stopped")
)

// ParseError carries model output that could not be read as tool calls.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparsable tool calls: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func isParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
