package callgraph

import (
	"errors"
	"fmt"
)

// ErrBatchLimit is wrapped by every BatchLimitError.
var ErrBatchLimit = errors.New("batch limit exceeded")

// BatchLimitError reports a batch rejected before any analysis.
type BatchLimitError struct {
	Limit  string // "objects" or "chars"
	Max    int
	Actual int
}

func (e *BatchLimitError) Error() string {
	return fmt.Sprintf("%v: %s %d exceeds %d", ErrBatchLimit, e.Limit, e.Actual, e.Max)
}

func (e *BatchLimitError) Unwrap() error { return ErrBatchLimit }
