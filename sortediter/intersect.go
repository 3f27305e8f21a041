package sortediter

// intersectSource walks N forwardable streams in lockstep: take the max of
// the current peeks and seek every other stream to it, repeating until all
// agree (an intersection hit) or one stream is exhausted.
type intersectSource[T any] struct {
	cmp      Cmp[T]
	children []*Iter[T]
}

// Intersect yields elements present in every child stream, all children
// ordered per cmp.
func Intersect[T any](cmp Cmp[T], children ...*Iter[T]) *Iter[T] {
	return New(cmp, &intersectSource[T]{cmp: cmp, children: children})
}

func (s *intersectSource[T]) Fetch() (T, bool) {
	var zero T
	if len(s.children) == 0 {
		return zero, false
	}
	for {
		if !s.children[0].HasNext() {
			return zero, false
		}
		max := s.children[0].Peek()
		for _, c := range s.children[1:] {
			if !c.HasNext() {
				return zero, false
			}
			if v := c.Peek(); s.cmp(v, max) > 0 {
				max = v
			}
		}
		agree := true
		for _, c := range s.children {
			if s.cmp(c.Peek(), max) != 0 {
				c.Seek(max)
				agree = false
			}
		}
		if agree {
			for _, c := range s.children {
				c.Next()
			}
			return max, true
		}
	}
}

func (s *intersectSource[T]) SeekSource(target T) {
	for _, c := range s.children {
		if !c.HasNext() {
			continue
		}
		if s.cmp(c.Peek(), target) < 0 {
			c.Seek(target)
		}
	}
}

func (s *intersectSource[T]) Close() {
	for _, c := range s.children {
		c.Recycle()
	}
}
