package traversal

import (
	"context"
	"fmt"
	"iter"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelgraph/hypercore/graph"
	"github.com/kestrelgraph/hypercore/iid"
)

// VertexMap is one complete or partial binding of procedure identifiers to
// graph vertices, the unit of both intermediate state and final results.
type VertexMap map[Identifier]VertexIID

// VertexIID re-exports the graph package's vertex identity so callers of
// this package don't need to import iid directly for the common case of
// reading back a traversal result.
type VertexIID = iid.VertexIID

// Procedure is a compiled, executable traversal: a DAG of Vertex bindings
// connected by totally ordered Edge steps. Exactly one vertex is the
// starting vertex.
type Procedure struct {
	vertices map[Identifier]Vertex
	edges    []*Edge
	start    Identifier
}

// NewProcedure creates an empty procedure whose starting vertex is
// identified by start; start must be registered via AddVertex before Build.
func NewProcedure(start Identifier) *Procedure {
	return &Procedure{vertices: make(map[Identifier]Vertex), start: start}
}

func (p *Procedure) AddVertex(v Vertex) { p.vertices[v.ID()] = v }

func (p *Procedure) AddEdge(e *Edge) { p.edges = append(p.edges, e) }

// Build validates the procedure and fixes edge execution order (ascending
// Order), matching §4.6's "totally ordered ProcedureEdge steps numbered
// 1..n".
func (p *Procedure) Build() error {
	if _, ok := p.vertices[p.start]; !ok {
		return &graph.StateError{Msg: fmt.Sprintf("starting vertex %q was never registered", p.start)}
	}
	for _, e := range p.edges {
		if _, ok := p.vertices[e.From]; !ok {
			return &graph.StateError{Msg: fmt.Sprintf("edge order %d references unknown vertex %q", e.Order, e.From)}
		}
		if _, ok := p.vertices[e.To]; !ok {
			return &graph.StateError{Msg: fmt.Sprintf("edge order %d references unknown vertex %q", e.Order, e.To)}
		}
	}
	sort.Slice(p.edges, func(i, j int) bool { return p.edges[i].Order < p.edges[j].Order })
	return nil
}

// Iterator materializes the starting vertex, runs a GraphIterator per
// starting binding, and returns the distinct projections restricted to
// filter, as a pull-based sequence a caller ranges over.
func (p *Procedure) Iterator(ctx context.Context, tx *graph.Tx, filter []Identifier) iter.Seq[VertexMap] {
	return func(yield func(VertexMap) bool) {
		seen := make(map[string]struct{})
		startVertex := p.vertices[p.start]
		starts, err := startVertex.Start(tx)
		if err != nil {
			return
		}
		defer starts.Recycle()
		for starts.HasNext() {
			if ctx.Err() != nil {
				return
			}
			sv := starts.Next()
			gi := newGraphIterator(tx, p, sv, filter)
			for {
				vm, ok, err := gi.Next()
				if err != nil || !ok {
					break
				}
				key := projectionKey(vm, filter)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				if !yield(vm) {
					return
				}
			}
		}
	}
}

// Producer partitions the starting-vertex iterator across parallelism
// workers, each running an independent GraphIterator, and collapses
// duplicate bindings across workers with a shared Distinct set. Result order
// across workers is not guaranteed. parallelism <= 0 defaults to the
// Graph's configured Options.Parallelism (tx.DefaultParallelism()).
func (p *Procedure) Producer(ctx context.Context, tx *graph.Tx, filter []Identifier, parallelism int) iter.Seq[VertexMap] {
	if parallelism <= 0 {
		parallelism = tx.DefaultParallelism()
	}
	if parallelism < 1 {
		parallelism = 1
	}
	return func(yield func(VertexMap) bool) {
		startVertex := p.vertices[p.start]
		starts, err := startVertex.Start(tx)
		if err != nil {
			return
		}
		defer starts.Recycle()
		var startBindings []VertexIID
		for starts.HasNext() {
			startBindings = append(startBindings, starts.Next())
		}

		results := make(chan VertexMap, parallelism*4)
		// cctx is ours to cancel (unlike ctx, which the caller owns), so that
		// stopping early below always unblocks any worker parked in its
		// results<- / gctx.Done() select instead of leaking it.
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		g, gctx := errgroup.WithContext(cctx)
		g.SetLimit(parallelism)
		for _, sv := range startBindings {
			sv := sv
			g.Go(func() error {
				gi := newGraphIterator(tx, p, sv, filter)
				for {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					vm, ok, err := gi.Next()
					if err != nil {
						return err
					}
					if !ok {
						return nil
					}
					select {
					case results <- vm:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
			})
		}
		done := make(chan struct{})
		go func() { g.Wait(); close(done) }()

		seen := make(map[string]struct{})
	drain:
		for {
			select {
			case vm := <-results:
				key := projectionKey(vm, filter)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				if !yield(vm) {
					break drain
				}
			case <-done:
				// Drain whatever's left in the buffer before stopping.
				for {
					select {
					case vm := <-results:
						key := projectionKey(vm, filter)
						if _, dup := seen[key]; !dup {
							seen[key] = struct{}{}
							if !yield(vm) {
								return
							}
						}
					default:
						break drain
					}
				}
			}
		}
	}
}

func projectionKey(vm VertexMap, filter []Identifier) string {
	b := make([]byte, 0, 64)
	for _, id := range filter {
		b = append(b, []byte(id)...)
		b = append(b, ':')
		if v, ok := vm[id]; ok {
			b = append(b, v.Bytes()...)
		}
		b = append(b, '|')
	}
	return string(b)
}
