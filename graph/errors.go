package graph

import "fmt"

// StateError reports that a component observed itself in a state that should
// be unreachable given the calling discipline: a programmer error, not a
// runtime condition callers can recover from.
type StateError struct {
	Msg string
	Err error
}

func stateErrf(err error, format string, args ...any) error {
	return &StateError{Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *StateError) Unwrap() error { return e.Err }

func (e *StateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("graph: invalid state: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("graph: invalid state: %s", e.Msg)
}

// ArgumentError reports a caller-supplied argument that violates a documented
// precondition.
type ArgumentError struct {
	Msg string
	Err error
}

func argumentErrf(err error, format string, args ...any) error {
	return &ArgumentError{Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *ArgumentError) Unwrap() error { return e.Err }

func (e *ArgumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("graph: invalid argument: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("graph: invalid argument: %s", e.Msg)
}

// SchemaMutationError is returned to the caller, never panicked: it reports a
// rejected schema edit (label collision, cyclic supertype) that leaves the
// transaction free to continue.
type SchemaMutationError struct {
	Msg string
}

func schemaMutationErrf(format string, args ...any) error {
	return &SchemaMutationError{Msg: fmt.Sprintf(format, args...)}
}

func (e *SchemaMutationError) Error() string {
	return fmt.Sprintf("graph: illegal schema mutation: %s", e.Msg)
}

// StorageError wraps a failure surfaced by the storage façade. Once returned,
// the owning transaction is considered poisoned and must be aborted.
type StorageError struct {
	Op  string
	Err error
}

func storageErrf(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Error() string {
	return fmt.Sprintf("graph: storage failure during %s: %v", e.Op, e.Err)
}
