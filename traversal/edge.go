package traversal

import (
	"sort"

	"github.com/kestrelgraph/hypercore/graph"
	"github.com/kestrelgraph/hypercore/iid"
	"github.com/kestrelgraph/hypercore/sortediter"
)

// Edge is one totally ordered step of a compiled procedure: walk from a
// bound vertex to an as-yet-unbound one across a single adjacency.
type Edge struct {
	Order int
	From  Identifier
	To    Identifier

	Encoding iid.Encoding
	Dir      iid.Direction

	// RoleTypes restricts a ROLEPLAYER step to edges carrying one of these
	// role type ids; empty means any role type. Ignored for base encodings.
	RoleTypes []uint64
}

// candidates streams every graph vertex reachable from `from` across this
// edge, deduplicated and in ascending vertex-IID order, already restricted
// to RoleTypes when the encoding is optimised. The underlying edge streams
// are ordered by view IID, which for a ROLEPLAYER edge sorts by role type
// first; collecting to a slice before re-sorting by player identity avoids
// merging streams whose orderings disagree.
func (e *Edge) candidates(tx *graph.Tx, from iid.VertexIID) (*sortediter.Iter[iid.VertexIID], error) {
	vx, err := tx.Vertex(from)
	if err != nil {
		return nil, err
	}
	if vx == nil {
		return sortediter.FromSlice(iid.Compare, nil), nil
	}
	var adj *graph.Adjacency
	if e.Dir == iid.Forward {
		adj = vx.Outs()
	} else {
		adj = vx.Ins()
	}

	var streams []*sortediter.Iter[*graph.Edge]
	switch {
	case e.Encoding.IsOptimised() && len(e.RoleTypes) > 0:
		for _, rt := range e.RoleTypes {
			streams = append(streams, adj.EdgeStreamOptimised(e.Encoding, iid.RoleTypeLookaheadComponent(rt)))
		}
	case e.Encoding.IsOptimised():
		streams = append(streams, adj.EdgeStreamOptimised(e.Encoding))
	default:
		streams = append(streams, adj.EdgeStream(e.Encoding))
	}

	var ids []iid.VertexIID
	for _, s := range streams {
		for s.HasNext() {
			ids = append(ids, otherEndOf(s.Next(), e.Dir))
		}
		s.Recycle()
	}
	sort.Slice(ids, func(i, j int) bool { return iid.Compare(ids[i], ids[j]) < 0 })
	deduped := ids[:0]
	for i, id := range ids {
		if i == 0 || !id.Equal(ids[i-1]) {
			deduped = append(deduped, id)
		}
	}
	return sortediter.FromSlice(iid.Compare, deduped), nil
}

func otherEndOf(e *graph.Edge, dir iid.Direction) iid.VertexIID {
	if dir == iid.Forward {
		return e.To()
	}
	return e.From()
}
