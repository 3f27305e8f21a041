package traversal

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kestrelgraph/hypercore/graph"
	"github.com/kestrelgraph/hypercore/iid"
	"github.com/kestrelgraph/hypercore/sortediter"
)

// ValuePredicate tests a decoded attribute value against a query-time bound
// literal. It receives the attribute's raw canonical encoding and its value
// type, mirroring how the ambient encoding layer keeps predicates blind to
// the storage representation.
type ValuePredicate func(valueType iid.ValueType, encoded []byte) bool

// Vertex is one node of a compiled procedure: a variable binding site, plus
// enough properties to both materialize a starting-vertex iterator and to
// accept-or-reject a candidate reached by walking an adjacency.
type Vertex interface {
	ID() Identifier
	IsStarting() bool
	// Scope reports the role-instance scope this vertex binds to, if any.
	Scope() (ScopeKey, bool)
	// Start materializes this vertex's own candidate iterator. Only called
	// for the procedure's starting vertex.
	Start(tx *graph.Tx) (*sortediter.Iter[iid.VertexIID], error)
	// Accepts reports whether candidate satisfies this vertex's own
	// properties (type/label/value filters), independent of how it was
	// reached.
	Accepts(tx *graph.Tx, candidate iid.VertexIID) (bool, error)
}

// TypeVertex binds a procedure variable to a schema (type) vertex, filtered
// by an allowed set of scoped labels. An empty Labels set accepts any type of
// the given kinds.
type TypeVertex struct {
	id         Identifier
	isStarting bool
	Kinds      []iid.Kind
	Labels     []string
}

func NewTypeVertex(id Identifier, isStarting bool) *TypeVertex {
	return &TypeVertex{id: id, isStarting: isStarting}
}

func (v *TypeVertex) ID() Identifier          { return v.id }
func (v *TypeVertex) IsStarting() bool        { return v.isStarting }
func (v *TypeVertex) Scope() (ScopeKey, bool) { return ScopeKey{}, false }

func (v *TypeVertex) Start(tx *graph.Tx) (*sortediter.Iter[iid.VertexIID], error) {
	var ids []iid.VertexIID
	for _, label := range v.Labels {
		tv, ok, err := tx.TypeByLabel(label)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, tv.IID())
		}
	}
	sortVertexIIDs(ids)
	return sortediter.FromSlice(iid.Compare, ids), nil
}

func (v *TypeVertex) Accepts(tx *graph.Tx, candidate iid.VertexIID) (bool, error) {
	if len(v.Kinds) > 0 && !containsKind(v.Kinds, candidate.Kind()) {
		return false, nil
	}
	if len(v.Labels) == 0 {
		return true, nil
	}
	vx, err := tx.Vertex(candidate)
	if err != nil || vx == nil {
		return false, err
	}
	tv, ok := vx.(*graph.TypeVertex)
	if !ok {
		return false, nil
	}
	label := tv.ScopedLabel()
	for _, l := range v.Labels {
		if l == label {
			return true, nil
		}
	}
	return false, nil
}

// ThingVertex binds a procedure variable to an instance vertex, filtered by
// an allowed-instance-type bitmap (type ordinals — a type vertex's own
// TypeID, which is dense and small enough to serve directly as a roaring
// bitmap key) and an optional value predicate for attribute variables.
type ThingVertex struct {
	id            Identifier
	isStarting    bool
	scope         ScopeKey
	hasScope      bool
	AllowedTypes  *roaring.Bitmap
	StartType     *graph.TypeVertex // required when IsStarting(): scans ThingsOfType
	ValuePredicate ValuePredicate
}

func NewThingVertex(id Identifier, isStarting bool) *ThingVertex {
	return &ThingVertex{id: id, isStarting: isStarting, AllowedTypes: roaring.New()}
}

func (v *ThingVertex) ID() Identifier   { return v.id }
func (v *ThingVertex) IsStarting() bool { return v.isStarting }

func (v *ThingVertex) SetScope(s ScopeKey) { v.scope, v.hasScope = s, true }
func (v *ThingVertex) Scope() (ScopeKey, bool) { return v.scope, v.hasScope }

func (v *ThingVertex) Start(tx *graph.Tx) (*sortediter.Iter[iid.VertexIID], error) {
	if v.StartType == nil {
		return sortediter.FromSlice(iid.Compare, nil), nil
	}
	return tx.ThingsOfType(v.StartType), nil
}

func (v *ThingVertex) Accepts(tx *graph.Tx, candidate iid.VertexIID) (bool, error) {
	if !candidate.Kind().IsThing() {
		return false, nil
	}
	if v.AllowedTypes != nil && !v.AllowedTypes.IsEmpty() && !v.AllowedTypes.Contains(uint32(candidate.TypeID())) {
		return false, nil
	}
	if v.ValuePredicate == nil {
		return true, nil
	}
	vx, err := tx.Vertex(candidate)
	if err != nil || vx == nil {
		return false, err
	}
	tv, ok := vx.(*graph.ThingVertex)
	if !ok {
		return false, nil
	}
	encoded, ok := tv.Value()
	if !ok {
		return false, nil
	}
	typeVx, err := tx.Vertex(tv.TypeIID())
	if err != nil || typeVx == nil {
		return false, err
	}
	valueType, ok := typeVx.(*graph.TypeVertex).ValueType()
	if !ok {
		return false, nil
	}
	return v.ValuePredicate(valueType, encoded), nil
}

func containsKind(kinds []iid.Kind, k iid.Kind) bool {
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}

func sortVertexIIDs(ids []iid.VertexIID) {
	sort.Slice(ids, func(i, j int) bool { return iid.Compare(ids[i], ids[j]) < 0 })
}
