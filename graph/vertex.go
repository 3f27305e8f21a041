package graph

import (
	"github.com/kestrelgraph/hypercore/iid"
)

// Vertex is the common surface of TypeVertex and ThingVertex: identity,
// adjacency, and lifecycle. Concrete behaviour lives on the two kinds
// because their properties differ; only the shape they share is captured
// here.
type Vertex interface {
	IID() iid.VertexIID
	Kind() iid.Kind
	Outs() *Adjacency
	Ins() *Adjacency
	IsNew() bool
	Modified() bool
	Delete() error
	Commit() error
}

// vertexBase is embedded by TypeVertex and ThingVertex. isNew distinguishes
// a vertex created in this transaction (nothing to union with in storage,
// so its adjacencies never need to consult the store) from one loaded from a
// persisted IID (whose adjacencies merge buffer and storage). A read-only
// transaction never sets isNew, so its adjacencies always take the merge
// path with an empty buffer — the "Read" posture from §4.4's table falls out
// of that for free rather than needing a third code path.
type vertexBase struct {
	tx     *Tx
	id     iid.VertexIID
	isNew  bool
	deleted  bool
	modified bool

	outs *Adjacency
	ins  *Adjacency

	propsSet     map[byte][]byte
	propsDeleted map[byte]bool
}

func newVertexBase(tx *Tx, id iid.VertexIID, isNew bool) vertexBase {
	vb := vertexBase{tx: tx, id: id, isNew: isNew}
	return vb
}

func (v *vertexBase) IID() iid.VertexIID { return v.id }
func (v *vertexBase) Kind() iid.Kind     { return v.id.Kind() }
func (v *vertexBase) IsNew() bool        { return v.isNew }
func (v *vertexBase) Modified() bool     { return v.modified }

func (v *vertexBase) markModified() { v.modified = true }

func (v *vertexBase) setProperty(infix byte, value []byte) {
	if v.propsSet == nil {
		v.propsSet = make(map[byte][]byte)
	}
	v.propsSet[infix] = value
	delete(v.propsDeleted, infix)
	v.markModified()
}

func (v *vertexBase) deleteProperty(infix byte) {
	if v.propsDeleted == nil {
		v.propsDeleted = make(map[byte]bool)
	}
	v.propsDeleted[infix] = true
	delete(v.propsSet, infix)
	v.markModified()
}

// property reads a buffered write first, falling back to storage unless the
// property was buffered-deleted or the vertex is new (nothing persisted yet).
func (v *vertexBase) property(infix byte) ([]byte, bool) {
	if raw, ok := v.propsSet[infix]; ok {
		return raw, true
	}
	if v.propsDeleted[infix] {
		return nil, false
	}
	if v.isNew {
		return nil, false
	}
	return v.tx.getPropertyFromStorage(v.id, infix)
}

// TypeVertex is a schema vertex: entity type, attribute type, relation type,
// or role type.
type TypeVertex struct {
	vertexBase
}

func (t *TypeVertex) Outs() *Adjacency { return t.outs }
func (t *TypeVertex) Ins() *Adjacency  { return t.ins }

func (t *TypeVertex) Label() string {
	raw, ok := t.property(iid.LabelInfix)
	if !ok {
		return ""
	}
	return string(raw)
}

// SetLabel renames the type, updating the TYPE_INDEX secondary index. It is
// rejected with a *SchemaMutationError (never panics, never poisons the
// transaction) if the new scoped label is already taken by another type.
func (t *TypeVertex) SetLabel(label string) error {
	return t.tx.renameType(t, label, t.Scope())
}

func (t *TypeVertex) Scope() string {
	raw, ok := t.property(iid.ScopeInfix)
	if !ok {
		return ""
	}
	return string(raw)
}

func (t *TypeVertex) SetScope(scope string) error {
	return t.tx.renameType(t, t.Label(), scope)
}

func (t *TypeVertex) ScopedLabel() string {
	return scopedLabel(t.Scope(), t.Label())
}

// SetSupertype adds a SUB edge from t to super. It is rejected with a
// *SchemaMutationError (never panics, never poisons the transaction) if
// super is t itself or already has t somewhere in its own supertype chain,
// which would otherwise close a cycle.
func (t *TypeVertex) SetSupertype(super *TypeVertex) (*Edge, error) {
	return t.tx.setSupertype(t, super)
}

func (t *TypeVertex) IsAbstract() bool {
	_, ok := t.property(iid.AbstractInfix)
	return ok
}

func (t *TypeVertex) SetAbstract(abstract bool) {
	if abstract {
		t.setProperty(iid.AbstractInfix, []byte{})
	} else {
		t.deleteProperty(iid.AbstractInfix)
	}
}

func (t *TypeVertex) ValueType() (iid.ValueType, bool) {
	raw, ok := t.property(iid.ValueTypeInfix)
	if !ok || len(raw) != 1 {
		return 0, false
	}
	return iid.ValueType(raw[0]), true
}

func (t *TypeVertex) SetValueType(vt iid.ValueType) {
	t.setProperty(iid.ValueTypeInfix, []byte{byte(vt)})
}

func (t *TypeVertex) Regex() (string, bool) {
	raw, ok := t.property(iid.RegexInfix)
	if !ok {
		return "", false
	}
	return string(raw), true
}

func (t *TypeVertex) SetRegex(pattern string) {
	t.setProperty(iid.RegexInfix, []byte(pattern))
}

func (t *TypeVertex) Delete() error { return t.tx.deleteVertex(&t.vertexBase, t) }
func (t *TypeVertex) Commit() error { return t.tx.commitVertex(&t.vertexBase) }

// ThingVertex is an instance vertex: entity, attribute, relation, or role.
type ThingVertex struct {
	vertexBase
}

func (t *ThingVertex) Outs() *Adjacency { return t.outs }
func (t *ThingVertex) Ins() *Adjacency  { return t.ins }

func (t *ThingVertex) TypeIID() iid.VertexIID { return t.id.TypeIID() }

// Value returns the attribute's canonically-encoded value bytes. Only
// meaningful for Attribute vertices; returns ok=false otherwise. The value
// type needed to decode it lives on the attribute's TypeVertex.
func (t *ThingVertex) Value() ([]byte, bool) {
	if t.id.Kind() != iid.Attribute {
		return nil, false
	}
	return t.property(iid.ValueInfix)
}

func (t *ThingVertex) setValue(encoded []byte) {
	t.setProperty(iid.ValueInfix, encoded)
}

func (t *ThingVertex) Delete() error { return t.tx.deleteVertex(&t.vertexBase, t) }
func (t *ThingVertex) Commit() error { return t.tx.commitVertex(&t.vertexBase) }

func scopedLabel(scope, label string) string {
	if scope == "" {
		return label
	}
	return scope + ":" + label
}
