package iid

import (
	"fmt"

	"github.com/kestrelgraph/hypercore/internal/byteio"
)

// VertexIID is a vertex's byte-exact identity: `kind | typeID` for a type
// vertex, `kind | typeID | instanceID` for a thing vertex. Comparing two
// VertexIIDs byte-lexicographically is the graph's vertex ordering.
type VertexIID []byte

const (
	typeVertexLen  = 1 + 8
	thingVertexLen = 1 + 8 + 8
)

// NewTypeVertexIID builds the IID of a type (schema) vertex.
func NewTypeVertexIID(kind Kind, typeID uint64) VertexIID {
	if !kind.IsType() {
		panic(fmt.Sprintf("iid: %v is not a type kind", kind))
	}
	b := byteio.NewBuilder(typeVertexLen)
	b.AppendByte(byte(kind)).AppendUint64(typeID)
	return VertexIID(b.Bytes())
}

// NewThingVertexIID builds the IID of a thing (instance) vertex.
func NewThingVertexIID(kind Kind, typeID, instanceID uint64) VertexIID {
	if !kind.IsThing() {
		panic(fmt.Sprintf("iid: %v is not a thing kind", kind))
	}
	b := byteio.NewBuilder(thingVertexLen)
	b.AppendByte(byte(kind)).AppendUint64(typeID).AppendUint64(instanceID)
	return VertexIID(b.Bytes())
}

func ParseVertexIID(raw []byte) (VertexIID, error) {
	if len(raw) != typeVertexLen && len(raw) != thingVertexLen {
		return nil, fmt.Errorf("iid: invalid vertex iid length %d", len(raw))
	}
	return VertexIID(raw), nil
}

func (v VertexIID) Bytes() []byte { return []byte(v) }

func (v VertexIID) Kind() Kind { return Kind(v[0]) }

func (v VertexIID) IsType() bool { return v.Kind().IsType() }

// TypeID returns the type-segment of the IID: the vertex's own scope-local id
// if it is itself a type, or the id of its type if it is a thing.
func (v VertexIID) TypeID() uint64 {
	d := byteio.NewDecoder(v[1:])
	id, err := d.Uint64()
	if err != nil {
		panic(err)
	}
	return id
}

// InstanceID returns the instance segment. Panics on a type vertex.
func (v VertexIID) InstanceID() uint64 {
	if v.IsType() {
		panic("iid: type vertices have no instance segment")
	}
	d := byteio.NewDecoder(v[9:])
	id, err := d.Uint64()
	if err != nil {
		panic(err)
	}
	return id
}

// TypeIID returns the IID of the type this thing (or type-of-itself) belongs
// to, i.e. the corresponding type kind plus this vertex's TypeID.
func (v VertexIID) TypeIID() VertexIID {
	if v.IsType() {
		return v
	}
	var tk Kind
	switch v.Kind() {
	case Entity:
		tk = EntityType
	case Attribute:
		tk = AttributeType
	case Relation:
		tk = RelationType
	case Role:
		tk = RoleType
	default:
		panic("iid: unknown thing kind")
	}
	return NewTypeVertexIID(tk, v.TypeID())
}

func (v VertexIID) String() string {
	if v.IsType() {
		return fmt.Sprintf("%s#%d", v.Kind(), v.TypeID())
	}
	return fmt.Sprintf("%s#%d:%d", v.Kind(), v.TypeID(), v.InstanceID())
}

func (v VertexIID) Equal(o VertexIID) bool {
	if len(v) != len(o) {
		return false
	}
	for i := range v {
		if v[i] != o[i] {
			return false
		}
	}
	return true
}

// Compare orders two vertex IIDs byte-lexicographically.
func Compare(a, b VertexIID) int {
	return compareBytes(a, b)
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}
