// Package sortediter is a generic algebra of lazy, forwardable, sorted
// iterators: the connective tissue between the storage cursor and the
// adjacency/traversal layers. Every iterator moves through three states —
// empty, fetched, completed — the natural shape of a pull-based iterator in
// Go, generalized from the ambient storage layer's single concrete
// RawRangeCursor into a reusable algebra with Map/Merge/Intersect/Distinct.
package sortediter

// Cmp orders two elements the same way bytes.Compare orders byte strings:
// negative if a < b, zero if equal, positive if a > b.
type Cmp[T any] func(a, b T) int

// Source is the pull-based primitive a Iter is built on. Implementations
// need not be safe for concurrent use; the owning Iter serializes access.
type Source[T any] interface {
	// Fetch returns the next element in ascending order, or ok=false if the
	// source is exhausted.
	Fetch() (v T, ok bool)
	// SeekSource advances the source so that the next Fetch (if any) returns
	// an element >= target. It is only ever called with a target beyond
	// whatever the source has already fetched.
	SeekSource(target T)
	// Close releases any resources (storage cursors, etc).
	Close()
}

type state int

const (
	stateEmpty state = iota
	stateFetched
	stateCompleted
)

// Iter is a forwardable sorted iterator: Peek/HasNext/Next/Seek/Recycle over
// a Source, enforcing the EMPTY/FETCHED/COMPLETED state machine and the
// monotonic-non-decreasing emission invariant.
type Iter[T any] struct {
	cmp Cmp[T]
	src Source[T]

	state state
	cur   T

	hasLast bool
	last    T

	onConsumed  []func()
	onFinalise  []func()
	consumedRan bool
}

// New builds an Iter around a Source, ordered by cmp.
func New[T any](cmp Cmp[T], src Source[T]) *Iter[T] {
	return &Iter[T]{cmp: cmp, src: src}
}

func (it *Iter[T]) ensureFetched() {
	if it.state != stateEmpty {
		return
	}
	v, ok := it.src.Fetch()
	if !ok {
		it.state = stateCompleted
		it.runOnConsumed()
		return
	}
	if it.hasLast && it.cmp(it.last, v) > 0 {
		panic(invalidState("emitted %v after %v: order violated", v, it.last))
	}
	it.cur = v
	it.state = stateFetched
}

func (it *Iter[T]) runOnConsumed() {
	if it.consumedRan {
		return
	}
	it.consumedRan = true
	for _, f := range it.onConsumed {
		f()
	}
}

// HasNext reports whether Peek/Next would yield a value.
func (it *Iter[T]) HasNext() bool {
	it.ensureFetched()
	return it.state == stateFetched
}

// Peek returns the next element without consuming it. Panics if !HasNext().
func (it *Iter[T]) Peek() T {
	it.ensureFetched()
	if it.state != stateFetched {
		panic(invalidState("Peek called without a fetched element"))
	}
	return it.cur
}

// Next consumes and returns the next element. Panics if !HasNext().
func (it *Iter[T]) Next() T {
	v := it.Peek()
	it.last = v
	it.hasLast = true
	it.state = stateEmpty
	return v
}

// Seek positions the iterator so the next emitted element, if any, is >=
// target. Seeking to a target < the last emitted element is rejected: it
// would require rewinding, which forwardable iterators cannot do. Seeking to
// a target equal to the last emitted element is a no-op.
func (it *Iter[T]) Seek(target T) {
	if it.hasLast {
		if c := it.cmp(target, it.last); c < 0 {
			panic(invalidArgument("seek target %v is before last emitted element %v", target, it.last))
		} else if c == 0 {
			return // every later element is already >= last
		}
	}
	if it.state == stateCompleted {
		return
	}
	if it.state == stateFetched && it.cmp(it.cur, target) >= 0 {
		return // already positioned at or beyond target
	}
	it.state = stateEmpty
	it.src.SeekSource(target)
}

// Recycle releases the iterator's resources. Idempotent.
func (it *Iter[T]) Recycle() {
	it.src.Close()
	for _, f := range it.onFinalise {
		f()
	}
	it.onFinalise = nil
}

// OnConsumed registers f to run when the iterator becomes COMPLETED through
// natural iteration (not through Recycle).
func (it *Iter[T]) OnConsumed(f func()) *Iter[T] {
	it.onConsumed = append(it.onConsumed, f)
	return it
}

// OnFinalise registers f to run when Recycle is called.
func (it *Iter[T]) OnFinalise(f func()) *Iter[T] {
	it.onFinalise = append(it.onFinalise, f)
	return it
}

// Collect drains the iterator into a slice. Intended for tests and small
// result sets.
func Collect[T any](it *Iter[T]) []T {
	var out []T
	for it.HasNext() {
		out = append(out, it.Next())
	}
	return out
}
