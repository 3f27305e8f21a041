package sortediter

import "fmt"

// InvalidStateError signals a programmer error: an iterator was asked to do
// something its current state machine state does not allow (e.g. Peek before
// HasNext), or an internal ordering invariant was violated. It is never a
// condition callers are expected to recover from.
type InvalidStateError struct {
	Msg string
}

func (e *InvalidStateError) Error() string { return "sortediter: invalid state: " + e.Msg }

func invalidState(format string, args ...any) error {
	return &InvalidStateError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidArgumentError signals a seek to a target smaller than the last
// emitted element of a forwardable iterator.
type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string { return "sortediter: invalid argument: " + e.Msg }

func invalidArgument(format string, args ...any) error {
	return &InvalidArgumentError{Msg: fmt.Sprintf(format, args...)}
}
