package sortediter

import "container/heap"

// mergeSource is an N-way ordered union of forwardable streams, implemented
// as a min-heap over each active child's peeked element. This is what lets
// the adjacency overlay present buffered and persisted edges as a single
// ordered stream without ever materializing either side.
type mergeSource[T any] struct {
	cmp      Cmp[T]
	children []*Iter[T]
	h        *mergeHeap[T]
	primed   bool
}

// Merge combines children (each already ordered per cmp) into one
// forwardable, ordered stream. Duplicate elements across children are not
// removed here; compose with Distinct for that.
func Merge[T any](cmp Cmp[T], children ...*Iter[T]) *Iter[T] {
	ms := &mergeSource[T]{cmp: cmp, children: children, h: &mergeHeap[T]{cmp: cmp}}
	return New(cmp, ms)
}

func (m *mergeSource[T]) prime() {
	if m.primed {
		return
	}
	m.primed = true
	for _, c := range m.children {
		if c.HasNext() {
			heap.Push(m.h, c)
		}
	}
}

func (m *mergeSource[T]) Fetch() (T, bool) {
	m.prime()
	var zero T
	if m.h.Len() == 0 {
		return zero, false
	}
	c := m.h.items[0]
	v := c.Next()
	if c.HasNext() {
		heap.Fix(m.h, 0)
	} else {
		heap.Pop(m.h)
	}
	return v, true
}

func (m *mergeSource[T]) SeekSource(target T) {
	m.prime()
	for i := 0; i < m.h.Len(); {
		c := m.h.items[i]
		if c.HasNext() && m.cmp(c.Peek(), target) < 0 {
			c.Seek(target)
		}
		i++
	}
	// Rebuild the heap: seeking may have exhausted children or reordered them.
	alive := m.h.items[:0]
	for _, c := range m.h.items {
		if c.HasNext() {
			alive = append(alive, c)
		}
	}
	m.h.items = alive
	heap.Init(m.h)
}

func (m *mergeSource[T]) Close() {
	for _, c := range m.children {
		c.Recycle()
	}
}

type mergeHeap[T any] struct {
	cmp   Cmp[T]
	items []*Iter[T]
}

func (h *mergeHeap[T]) Len() int { return len(h.items) }
func (h *mergeHeap[T]) Less(i, j int) bool {
	return h.cmp(h.items[i].Peek(), h.items[j].Peek()) < 0
}
func (h *mergeHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergeHeap[T]) Push(x any)    { h.items = append(h.items, x.(*Iter[T])) }
func (h *mergeHeap[T]) Pop() any {
	n := len(h.items)
	v := h.items[n-1]
	h.items[n-1] = nil
	h.items = h.items[:n-1]
	return v
}
