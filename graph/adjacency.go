package graph

import (
	"bytes"

	"github.com/kestrelgraph/hypercore/iid"
	"github.com/kestrelgraph/hypercore/sortediter"
)

// Adjacency is one vertex's edges in one direction (out or in). Its buffer
// always exists; whether reads also consult storage is decided per call from
// the owning vertex's isNew flag, which is how the three read/write postures
// of §4.4 fall out of a single implementation (see vertex.go's vertexBase
// doc comment).
type Adjacency struct {
	tx    *Tx
	owner iid.VertexIID
	dir   iid.Direction
	buf   *lookaheadBuffer

	ownerIsNew func() bool
}

func newAdjacency(tx *Tx, owner iid.VertexIID, dir iid.Direction, isNew func() bool) *Adjacency {
	return &Adjacency{tx: tx, owner: owner, dir: dir, buf: &lookaheadBuffer{}, ownerIsNew: isNew}
}

// Edge looks up a single edge to adjacent by exact identity.
func (a *Adjacency) Edge(enc iid.Encoding, adjacent iid.VertexIID) (*Edge, error) {
	return a.edge(enc, adjacent, nil)
}

// EdgeOptimised looks up a single ROLEPLAYER edge by adjacent and its
// role-instance suffix.
func (a *Adjacency) EdgeOptimised(enc iid.Encoding, adjacent, roleInstance iid.VertexIID) (*Edge, error) {
	return a.edge(enc, adjacent, roleInstance)
}

func (a *Adjacency) edge(enc iid.Encoding, adjacent, roleInstance iid.VertexIID) (*Edge, error) {
	infix := iid.MakeInfix(enc, a.dir)
	view := iid.NewEdgeViewIID(a.owner, infix, adjacent, roleInstance)

	if rec := a.buf.find(infix, enc, adjacent, roleInstance, view); rec != nil {
		return a.wrap(enc, rec, true), nil
	}
	if a.ownerIsNew() {
		return nil, nil
	}
	raw, err := a.tx.getRaw(view.Bytes())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	rec := &edgeRecord{view: view, adjacent: adjacent, roleInstance: roleInstance}
	if len(raw) > 0 {
		rec.overridden = iid.VertexIID(raw)
	}
	return a.wrap(enc, rec, true), nil
}

// EdgeStream prefix-scans by a (possibly partial) lookahead over a base
// encoding, returning results in ascending view-IID order.
func (a *Adjacency) EdgeStream(enc iid.Encoding, lookahead ...[]byte) *sortediter.Iter[*Edge] {
	return a.stream(enc, lookahead)
}

// EdgeStreamOptimised prefix-scans ROLEPLAYER edges: lookahead's first
// component is the role type id, matching §4.4's "prepending the roleType id
// to the lookahead".
func (a *Adjacency) EdgeStreamOptimised(enc iid.Encoding, lookahead ...[]byte) *sortediter.Iter[*Edge] {
	return a.stream(enc, lookahead)
}

func (a *Adjacency) stream(enc iid.Encoding, lookahead [][]byte) *sortediter.Iter[*Edge] {
	infix := iid.MakeInfix(enc, a.dir)
	bufStream := a.buf.stream(infix, enc, lookahead)

	if a.ownerIsNew() {
		return sortediter.Map(edgeCmp, bufStream, a.recordToEdge(enc), a.edgeToRecordInv())
	}

	prefix := append(append([]byte{}, a.owner...), byte(infix))
	for _, comp := range lookahead {
		prefix = append(prefix, comp...)
	}
	storageStream := sortediter.NewKVSource[*edgeRecord](
		edgeRecordCmp,
		a.tx.vertices,
		sortediter.BytesPrefix(prefix),
		func(key, value []byte) *edgeRecord { return a.decodeStorageEdge(enc, key, value) },
		func(rec *edgeRecord) []byte { return rec.view.Bytes() },
		a.tx.logger,
	)

	merged := sortediter.Distinct(edgeRecordCmp, sortediter.Merge(edgeRecordCmp, bufStream, storageStream))
	return sortediter.Map(edgeCmp, merged, a.recordToEdge(enc), a.edgeToRecordInv())
}

// UnsortedEdges returns every buffered-or-persisted edge under enc's infix,
// with no ordering guarantee, for callers that don't need one (e.g. a full
// vertex-delete sweep).
func (a *Adjacency) UnsortedEdges(enc iid.Encoding) []*Edge {
	infix := iid.MakeInfix(enc, a.dir)
	var out []*Edge
	for _, rec := range a.buf.all() {
		if a.encodingOf(rec) != enc {
			continue
		}
		out = append(out, a.wrap(enc, rec, true))
	}
	if !a.ownerIsNew() {
		prefix := append(append([]byte{}, a.owner...), byte(infix))
		cur := sortediter.BytesPrefix(prefix).NewCursor(a.tx.vertices.Cursor(), a.tx.logger)
		for cur.Next() {
			rec := a.decodeStorageEdge(enc, cur.Key(), cur.Value())
			out = append(out, a.wrap(enc, rec, true))
		}
	}
	return out
}

func (a *Adjacency) decodeStorageEdge(enc iid.Encoding, key, value []byte) *edgeRecord {
	parts, err := iid.ParseEdgeParts(iid.EdgeViewIID(key), len(a.owner))
	if err != nil {
		panic(stateErrf(err, "corrupt edge view in storage"))
	}
	rec := &edgeRecord{view: iid.EdgeViewIID(key), adjacent: parts.Adjacent, roleInstance: parts.RoleInstance}
	if len(value) > 0 {
		rec.overridden = iid.VertexIID(value)
	}
	return rec
}

func edgeCmp(a, b *Edge) int {
	return bytes.Compare(a.ownerView.Bytes(), b.ownerView.Bytes())
}

func (a *Adjacency) recordToEdge(enc iid.Encoding) func(*edgeRecord) *Edge {
	return func(rec *edgeRecord) *Edge { return a.wrap(enc, rec, true) }
}

func (a *Adjacency) edgeToRecordInv() func(*Edge) *edgeRecord {
	return func(e *Edge) *edgeRecord { return &edgeRecord{view: e.ownerView} }
}

func (a *Adjacency) wrap(enc iid.Encoding, rec *edgeRecord, persisted bool) *Edge {
	from, to := a.owner, rec.adjacent
	if a.dir == iid.Backward {
		from, to = rec.adjacent, a.owner
	}
	return &Edge{
		tx: a.tx, enc: enc, from: from, to: to,
		roleInstance: rec.roleInstance, overridden: rec.overridden,
		isInferred: rec.isInferred, persisted: persisted,
		ownerView: rec.view,
	}
}

func (e *Edge) otherEnd(owner iid.VertexIID) iid.VertexIID {
	if owner.Equal(e.from) {
		return e.to
	}
	return e.from
}

// Put creates (or idempotently rediscovers) an edge to adjacent and mirrors
// its registration onto adjacent's opposite-direction adjacency.
func (a *Adjacency) Put(enc iid.Encoding, adjacent iid.VertexIID, isInferred bool) (*Edge, error) {
	return a.put(enc, adjacent, nil, isInferred, true)
}

// PutOptimised creates a ROLEPLAYER edge carrying a role-instance suffix.
func (a *Adjacency) PutOptimised(enc iid.Encoding, adjacent, roleInstance iid.VertexIID, isInferred bool) (*Edge, error) {
	return a.put(enc, adjacent, roleInstance, isInferred, true)
}

func (a *Adjacency) put(enc iid.Encoding, adjacent, roleInstance iid.VertexIID, isInferred bool, reflexive bool) (*Edge, error) {
	if err := a.tx.requireWritable(); err != nil {
		return nil, err
	}
	infix := iid.MakeInfix(enc, a.dir)
	view := iid.NewEdgeViewIID(a.owner, infix, adjacent, roleInstance)

	if existing := a.buf.find(infix, enc, adjacent, roleInstance, view); existing != nil {
		if existing.isInferred != isInferred {
			return nil, stateErrf(nil, "re-put of %v with mismatched isInferred flag", view)
		}
		return a.wrap(enc, existing, true), nil
	}
	if enc == iid.SUB && a.dir == iid.Forward {
		if a.owner.Equal(adjacent) {
			return nil, schemaMutationErrf("type %s cannot be its own supertype", a.owner)
		}
		cyclic, err := a.tx.reachesViaSub(adjacent, a.owner)
		if err != nil {
			return nil, err
		}
		if cyclic {
			return nil, schemaMutationErrf("making %s a supertype of %s would create a cycle", adjacent, a.owner)
		}
	}
	// Buffered-over-persisted re-put (§8 scenario 2): if the identical edge
	// already exists in storage, adopt its identity rather than re-buffering
	// a duplicate that Commit would write again.
	if !a.ownerIsNew() {
		if raw, err := a.tx.getRaw(view.Bytes()); err != nil {
			return nil, err
		} else if raw != nil {
			rec := &edgeRecord{view: view, adjacent: adjacent, roleInstance: roleInstance, isInferred: isInferred}
			if len(raw) > 0 {
				rec.overridden = iid.VertexIID(raw)
			}
			return a.wrap(enc, rec, true), nil
		}
	}

	rec := &edgeRecord{view: view, adjacent: adjacent, roleInstance: roleInstance, isInferred: isInferred}
	a.buf.put(infix, enc, adjacent, roleInstance, rec)
	a.tx.markModifiedByIID(a.owner)

	if reflexive {
		mirror, err := a.tx.adjacencyFor(adjacent, a.dir.Reverse())
		if err != nil {
			return nil, err
		}
		if mirror != nil {
			if _, err := mirror.put(enc, a.owner, roleInstance, isInferred, false); err != nil {
				return nil, err
			}
		}
	}
	return a.wrap(enc, rec, true), nil
}

// Remove deletes a specific edge from both endpoints and, if persisted, from
// storage.
func (a *Adjacency) Remove(e *Edge) error { return e.Delete() }

// Delete removes every buffered-or-persisted edge under enc matching the
// given lookahead prefix.
func (a *Adjacency) Delete(enc iid.Encoding, lookahead ...[]byte) error {
	stream := a.stream(enc, lookahead)
	defer stream.Recycle()
	for stream.HasNext() {
		if err := a.Remove(stream.Next()); err != nil {
			return err
		}
	}
	return nil
}

// encodingOf recovers a buffered record's encoding from the infix byte
// embedded in its view, at the fixed offset right after this adjacency's
// owner segment.
func (a *Adjacency) encodingOf(rec *edgeRecord) iid.Encoding {
	return iid.Infix(rec.view[len(a.owner)]).Encoding()
}

// DeleteAll removes every edge under this adjacency, across all encodings.
func (a *Adjacency) DeleteAll() error {
	var toDelete []*Edge
	for _, rec := range a.buf.all() {
		toDelete = append(toDelete, a.wrap(a.encodingOf(rec), rec, true))
	}
	if !a.ownerIsNew() {
		cur := sortediter.BytesPrefix(a.owner).NewCursor(a.tx.vertices.Cursor(), a.tx.logger)
		for cur.Next() {
			key := cur.Key()
			if len(key) <= len(a.owner) {
				continue // the vertex's own existence key
			}
			ib := key[len(a.owner)]
			if ib >= iid.LabelInfix {
				continue // a property key, not an edge view
			}
			infix := iid.Infix(ib)
			if infix.Direction() != a.dir {
				continue // the mirror direction's edges, owned by the same vertex
			}
			enc := infix.Encoding()
			rec := a.decodeStorageEdge(enc, key, cur.Value())
			toDelete = append(toDelete, a.wrap(enc, rec, true))
		}
	}
	for _, e := range toDelete {
		if err := a.Remove(e); err != nil {
			return err
		}
	}
	return nil
}

// Commit persists every non-inferred buffered edge on this adjacency's
// forward side. Edge.Commit writes both views, so the backward-side
// adjacency has nothing left to do.
func (a *Adjacency) Commit() error {
	if a.dir == iid.Backward {
		return nil
	}
	for _, rec := range a.buf.all() {
		if rec.isInferred {
			continue
		}
		e := a.wrap(a.encodingOf(rec), rec, false)
		if err := e.Commit(); err != nil {
			return err
		}
	}
	return nil
}
