package iid

import (
	"fmt"
)

// EdgeViewIID is one directional view of an edge:
//
//	owner | infix | tail
//
// where tail is built from lookahead components followed by leaf instance
// segments, so that prefix-scanning the tail's lookahead components alone
// (see LookaheadTail) finds all edges sharing them, regardless of the leaf
// instance ids. For a base encoding the tail is
// `adjacentKind | adjacentTypeID [| adjacentInstanceID]`; for the optimised
// ROLEPLAYER encoding it is
// `roleTypeID | adjacentKind | adjacentTypeID | adjacentInstanceID | roleInstanceID`,
// with the role type hoisted in front specifically so a scan can filter by
// role type without touching the player's own identity.
type EdgeViewIID []byte

// EdgeParts is a decomposed edge view, either freshly built or reconstructed
// via ParseEdgeParts.
type EdgeParts struct {
	Owner        VertexIID
	Infix        Infix
	Adjacent     VertexIID
	RoleInstance VertexIID // non-nil iff Infix.Encoding().IsOptimised()
}

// NewEdgeViewIID assembles one view of an edge.
func NewEdgeViewIID(owner VertexIID, infix Infix, adjacent VertexIID, roleInstance VertexIID) EdgeViewIID {
	optimised := infix.Encoding().IsOptimised()
	if optimised == (roleInstance == nil) {
		panic("iid: role-instance suffix required iff encoding is optimised")
	}
	buf := make([]byte, 0, len(owner)+1+9+9+8+8)
	buf = append(buf, owner...)
	buf = append(buf, byte(infix))
	if optimised {
		buf = append(buf, encodeUint64(roleInstance.TypeID())...)
	}
	buf = append(buf, byte(adjacent.Kind()))
	buf = append(buf, encodeUint64(adjacent.TypeID())...)
	if adjacent.Kind().IsThing() {
		buf = append(buf, encodeUint64(adjacent.InstanceID())...)
	}
	if optimised {
		buf = append(buf, encodeUint64(roleInstance.InstanceID())...)
	}
	return EdgeViewIID(buf)
}

func (v EdgeViewIID) Bytes() []byte { return []byte(v) }

func (v EdgeViewIID) Owner(ownerLen int) VertexIID { return VertexIID(v[:ownerLen]) }

func (v EdgeViewIID) Infix(ownerLen int) Infix { return Infix(v[ownerLen]) }

// ParseEdgeParts fully decodes a view, given the byte length of its owner
// segment (9 for a type vertex, 17 for a thing vertex).
func ParseEdgeParts(view EdgeViewIID, ownerLen int) (EdgeParts, error) {
	if len(view) < ownerLen+1 {
		return EdgeParts{}, fmt.Errorf("iid: edge view too short")
	}
	owner := VertexIID(view[:ownerLen])
	infix := Infix(view[ownerLen])
	rest := view[ownerLen+1:]

	var roleTypeID uint64
	optimised := infix.Encoding().IsOptimised()
	if optimised {
		if len(rest) < 8 {
			return EdgeParts{}, fmt.Errorf("iid: truncated role type segment")
		}
		roleTypeID = decodeUint64(rest[:8])
		rest = rest[8:]
	}
	if len(rest) < 9 {
		return EdgeParts{}, fmt.Errorf("iid: truncated adjacent segment")
	}
	adjKind := Kind(rest[0])
	adjTypeID := decodeUint64(rest[1:9])
	rest = rest[9:]

	var adjacent VertexIID
	if adjKind.IsThing() {
		if len(rest) < 8 {
			return EdgeParts{}, fmt.Errorf("iid: truncated adjacent instance segment")
		}
		adjacent = NewThingVertexIID(adjKind, adjTypeID, decodeUint64(rest[:8]))
		rest = rest[8:]
	} else {
		adjacent = NewTypeVertexIID(adjKind, adjTypeID)
	}

	var roleInstance VertexIID
	if optimised {
		if len(rest) < 8 {
			return EdgeParts{}, fmt.Errorf("iid: truncated role instance segment")
		}
		roleInstance = NewThingVertexIID(Role, roleTypeID, decodeUint64(rest[:8]))
	}

	return EdgeParts{Owner: owner, Infix: infix, Adjacent: adjacent, RoleInstance: roleInstance}, nil
}

func (v EdgeViewIID) Compare(o EdgeViewIID) int {
	return compareBytes(v, o)
}

func (v EdgeViewIID) Equal(o EdgeViewIID) bool {
	return v.Compare(o) == 0
}

func (v EdgeViewIID) String() string {
	return fmt.Sprintf("%x", []byte(v))
}

// FlipInfixDirection returns the infix of the opposite view of the same
// logical edge.
func FlipInfixDirection(infix Infix) Infix {
	return MakeInfix(infix.Encoding(), infix.Direction().Reverse())
}

// LookaheadTail computes the ordered list of tail components used to bucket
// a buffered edge and to prefix-scan persisted ones: for a base encoding,
// [adjacentKind, adjacentTypeID]; for the optimised ROLEPLAYER encoding,
// [roleTypeID, adjacentKind, adjacentTypeID].
func LookaheadTail(enc Encoding, adjacent VertexIID, roleInstance VertexIID) [][]byte {
	adjKind := []byte{byte(adjacent.Kind())}
	adjType := encodeUint64(adjacent.TypeID())
	if enc.IsOptimised() {
		return [][]byte{encodeUint64(roleInstance.TypeID()), adjKind, adjType}
	}
	return [][]byte{adjKind, adjType}
}

// RoleTypeLookaheadComponent encodes a role type id as the first lookahead
// component of an optimised (ROLEPLAYER) edge stream, letting a caller filter
// by role type alone before it knows which player it's looking for — the
// literal "prepending the roleType id to the lookahead" query shape.
func RoleTypeLookaheadComponent(roleTypeID uint64) []byte {
	return encodeUint64(roleTypeID)
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func decodeUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
