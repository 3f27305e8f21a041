package graph

import "github.com/kestrelgraph/hypercore/iid"

// Edge is a typed directed edge between two vertices, with a mirrored
// registration on both endpoints' adjacencies. Whether it is buffered,
// persisted, or both is not exposed as a distinct Go type: the "persisted"
// flag records whether storage has (or, once Commit runs, will have) a copy,
// and Delete/Commit branch on it internally.
type Edge struct {
	tx *Tx

	enc          iid.Encoding
	from         iid.VertexIID
	to           iid.VertexIID
	roleInstance iid.VertexIID
	overridden   iid.VertexIID
	isInferred   bool
	persisted    bool

	// ownerView is the view IID from the adjacency this Edge was produced
	// by (forward for an Outs adjacency, backward for an Ins one). It is
	// the ordering key EdgeStream results are sorted by.
	ownerView iid.EdgeViewIID
}

func (e *Edge) From() iid.VertexIID     { return e.from }
func (e *Edge) To() iid.VertexIID       { return e.to }
func (e *Edge) Encoding() iid.Encoding  { return e.enc }
func (e *Edge) IsInferred() bool        { return e.isInferred }
func (e *Edge) RoleInstance() (iid.VertexIID, bool) {
	return e.roleInstance, e.roleInstance != nil
}

func (e *Edge) Overridden() (iid.VertexIID, bool) {
	return e.overridden, e.overridden != nil
}

func (e *Edge) SetOverridden(target iid.VertexIID) {
	e.overridden = target
}

func (e *Edge) ForwardView() iid.EdgeViewIID {
	return iid.NewEdgeViewIID(e.from, iid.MakeInfix(e.enc, iid.Forward), e.to, e.roleInstance)
}

func (e *Edge) BackwardView() iid.EdgeViewIID {
	return iid.NewEdgeViewIID(e.to, iid.MakeInfix(e.enc, iid.Backward), e.from, e.roleInstance)
}

// Commit writes both of the edge's views to storage. Callers are expected to
// have already excluded inferred edges (see Adjacency.Commit); Commit itself
// does not re-check the flag.
func (e *Edge) Commit() error {
	value := []byte{}
	if e.overridden != nil {
		value = e.overridden.Bytes()
	}
	if err := e.tx.putRaw(e.ForwardView().Bytes(), value); err != nil {
		return err
	}
	if err := e.tx.putRaw(e.BackwardView().Bytes(), value); err != nil {
		return err
	}
	e.persisted = true
	return nil
}

// Delete removes the edge from both endpoints' buffered adjacency and, if it
// was persisted, deletes both view keys from storage. Safe to call more than
// once.
func (e *Edge) Delete() error {
	fromV, err := e.tx.vertexByIID(e.from)
	if err != nil {
		return err
	}
	toV, err := e.tx.vertexByIID(e.to)
	if err != nil {
		return err
	}
	if fromV != nil {
		fromV.Outs().buf.removeExact(iid.MakeInfix(e.enc, iid.Forward), e.enc, e.to, e.roleInstance, e.ForwardView())
	}
	if toV != nil {
		toV.Ins().buf.removeExact(iid.MakeInfix(e.enc, iid.Backward), e.enc, e.from, e.roleInstance, e.BackwardView())
	}
	if e.persisted {
		if err := e.tx.deleteRaw(e.ForwardView().Bytes()); err != nil {
			return err
		}
		if err := e.tx.deleteRaw(e.BackwardView().Bytes()); err != nil {
			return err
		}
		e.persisted = false
	}
	return nil
}
