package inputqueue

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout matches every *TimeoutError via errors.Is.
var ErrTimeout = errors.New("inputqueue: operation timed out")

// TimeoutError is returned to a reader whose timeout elapsed before an item
// was handed to it.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %s; the time allotted may have been a portion of a longer timeout", e.Op, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
