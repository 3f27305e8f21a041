package traversal

import (
	"github.com/kestrelgraph/hypercore/graph"
	"github.com/kestrelgraph/hypercore/iid"
	"github.com/kestrelgraph/hypercore/sortediter"
)

// GraphIterator executes one starting binding of a Procedure to exhaustion:
// a backtracking search over the procedure's ordered edges, maintaining an
// assignment from procedure vertices to graph vertices and a per-step
// candidate-iterator stack, per §4.6 steps 1-6.
type GraphIterator struct {
	tx     *graph.Tx
	proc   *Procedure
	filter map[Identifier]bool

	bindings   map[Identifier]iid.VertexIID
	iters      []*sortediter.Iter[iid.VertexIID]
	scopeBound map[string]bool

	step int
	done bool
}

func newGraphIterator(tx *graph.Tx, proc *Procedure, start iid.VertexIID, filter []Identifier) *GraphIterator {
	filterSet := make(map[Identifier]bool, len(filter))
	for _, id := range filter {
		filterSet[id] = true
	}
	gi := &GraphIterator{
		tx:         tx,
		proc:       proc,
		filter:     filterSet,
		bindings:   map[Identifier]iid.VertexIID{proc.start: start},
		iters:      make([]*sortediter.Iter[iid.VertexIID], len(proc.edges)),
		scopeBound: make(map[string]bool),
	}
	return gi
}

// Next advances the search to the next full binding. ok is false once the
// starting binding is exhausted; err is set only on an internal storage
// failure, never on a plain miss.
func (gi *GraphIterator) Next() (VertexMap, bool, error) {
	if gi.done {
		return nil, false, nil
	}
	for {
		if gi.step == len(gi.proc.edges) {
			vm := gi.project()
			if !gi.popStep() {
				gi.done = true
			}
			return vm, true, nil
		}

		edge := gi.proc.edges[gi.step]
		it := gi.iters[gi.step]
		if it == nil {
			from, ok := gi.bindings[edge.From]
			if !ok {
				return nil, false, &graph.StateError{Msg: "procedure edge's source is unbound at execution time"}
			}
			var err error
			it, err = edge.candidates(gi.tx, from)
			if err != nil {
				return nil, false, err
			}
			gi.iters[gi.step] = it
		}

		advanced, err := gi.tryAdvance(edge, it)
		if err != nil {
			return nil, false, err
		}
		if advanced {
			continue
		}
		if !gi.popStep() {
			gi.done = true
			return nil, false, nil
		}
	}
}

// tryAdvance consumes candidates from it until one satisfies edge.To's
// vertex properties and any scope consistency requirement, binding it and
// moving the search to the next step.
func (gi *GraphIterator) tryAdvance(edge *Edge, it *sortediter.Iter[iid.VertexIID]) (bool, error) {
	toVertex := gi.proc.vertices[edge.To]
	for it.HasNext() {
		cand := it.Next()
		ok, err := toVertex.Accepts(gi.tx, cand)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		if existing, already := gi.bindings[edge.To]; already && !existing.Equal(cand) {
			continue
		}
		if scope, has := toVertex.Scope(); has {
			key := scope.String()
			if bound, existed := gi.scopeBound[key]; existed && bound {
				continue
			}
			gi.scopeBound[key] = true
		}
		gi.bindings[edge.To] = cand
		gi.step++
		return true, nil
	}
	return false, nil
}

// popStep unwinds the most recently completed step whose candidate iterator
// still has unexplored alternatives, clearing every binding and scope
// registration made at the steps it unwinds through. Clearing scope
// registrations here is what lets a later attempt at the same
// (relation, roleType, player) with a different repetition be considered
// unbound rather than falsely already-taken.
//
// The step gi.step is at when popStep is called owns the iterator that just
// exhausted (if any — a full projection at gi.step == len(gi.iters) owns
// none), and the backward loop below only ever inspects gi.iters at indices
// it decrements *into*, never the one it started at. That iterator is
// cleared up front so a later rebind that reaches this step again builds a
// fresh one instead of reusing the exhausted one and seeing no candidates.
func (gi *GraphIterator) popStep() bool {
	if gi.step < len(gi.iters) {
		if it := gi.iters[gi.step]; it != nil {
			it.Recycle()
			gi.iters[gi.step] = nil
		}
	}
	for gi.step > 0 {
		gi.step--
		edge := gi.proc.edges[gi.step]
		toVertex := gi.proc.vertices[edge.To]
		if scope, has := toVertex.Scope(); has {
			delete(gi.scopeBound, scope.String())
		}
		delete(gi.bindings, edge.To)

		it := gi.iters[gi.step]
		if it != nil && it.HasNext() {
			return true
		}
		if it != nil {
			it.Recycle()
		}
		gi.iters[gi.step] = nil
	}
	return false
}

func (gi *GraphIterator) project() VertexMap {
	vm := make(VertexMap, len(gi.filter))
	for id := range gi.filter {
		if v, ok := gi.bindings[id]; ok {
			vm[id] = v
		}
	}
	return vm
}

// Recycle releases every still-open candidate iterator. Safe to call more
// than once.
func (gi *GraphIterator) Recycle() {
	for i, it := range gi.iters {
		if it != nil {
			it.Recycle()
			gi.iters[i] = nil
		}
	}
}
