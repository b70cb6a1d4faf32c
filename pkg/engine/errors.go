package engine

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat matches every *UnsupportedFormatError through errors.Is.
var ErrUnsupportedFormat = errors.New("unsupported format")

// UnsupportedFormatError is the only error Extract returns. Tag is the
// format as the caller declared it.
type UnsupportedFormatError struct {
	Tag string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q", e.Tag)
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// AttemptError wraps the failure of a single attempt. It is logged and
// recorded in the provenance, never returned from Extract.
type AttemptError struct {
	Attempt string
	Err     error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("attempt %s: %v", e.Attempt, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }
