package iid

import (
	"bytes"
	"testing"
)

func TestVertexIID_TypeAndThing(t *testing.T) {
	tv := NewTypeVertexIID(EntityType, 7)
	if tv.Kind() != EntityType || tv.TypeID() != 7 {
		t.Fatalf("type vertex = %v", tv)
	}

	iv := NewThingVertexIID(Entity, 7, 42)
	if iv.Kind() != Entity || iv.TypeID() != 7 || iv.InstanceID() != 42 {
		t.Fatalf("thing vertex = %v", iv)
	}
	if !bytes.Equal(iv.TypeIID(), tv) {
		t.Fatalf("thing.TypeIID() = %x, wanted %x", iv.TypeIID(), tv)
	}
}

func TestVertexIID_OrderingIsNumericOnBigEndianSegments(t *testing.T) {
	a := NewThingVertexIID(Entity, 1, 5)
	b := NewThingVertexIID(Entity, 1, 300)
	if Compare(a, b) >= 0 {
		t.Fatalf("expected a < b (5 < 300), got compare = %d", Compare(a, b))
	}
}

func TestEdgeViewIID_ForwardBackwardDistinctKeys(t *testing.T) {
	x := NewTypeVertexIID(EntityType, 1)
	y := NewTypeVertexIID(EntityType, 2)
	fwd := NewEdgeViewIID(x, MakeInfix(SUB, Forward), y, nil)
	bwd := NewEdgeViewIID(y, MakeInfix(SUB, Backward), x, nil)
	if bytes.Equal(fwd, bwd) {
		t.Fatalf("forward and backward views must differ")
	}
}

func TestEdgeViewIID_Roleplayer_RequiresSuffix(t *testing.T) {
	rel := NewThingVertexIID(Relation, 1, 1)
	player := NewThingVertexIID(Entity, 2, 1)
	roleInstance := NewThingVertexIID(Role, 3, 1)

	view := NewEdgeViewIID(rel, MakeInfix(ROLEPLAYER, Forward), player, roleInstance)
	// tail = roleTypeID(8) + adjacentKind(1) + adjacentTypeID(8) + adjacentInstanceID(8) + roleInstanceID(8)
	wantLen := len(rel) + 1 + 8 + 1 + 8 + 8 + 8
	if len(view) != wantLen {
		t.Fatalf("unexpected view length %d, wanted %d", len(view), wantLen)
	}

	parts, err := ParseEdgeParts(view, len(rel))
	if err != nil {
		t.Fatal(err)
	}
	if !parts.Adjacent.Equal(player) {
		t.Fatalf("parsed adjacent = %v, wanted %v", parts.Adjacent, player)
	}
	if !parts.RoleInstance.Equal(roleInstance) {
		t.Fatalf("parsed role instance = %v, wanted %v", parts.RoleInstance, roleInstance)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic building ROLEPLAYER view without suffix")
		}
	}()
	NewEdgeViewIID(rel, MakeInfix(ROLEPLAYER, Forward), player, nil)
}

func TestLookaheadTail_BaseVsOptimised(t *testing.T) {
	player := NewThingVertexIID(Entity, 9, 1)
	tail := LookaheadTail(OWNS, player, nil)
	if len(tail) != 2 {
		t.Fatalf("base lookahead components = %d, wanted 2", len(tail))
	}

	roleInstance := NewThingVertexIID(Role, 4, 1)
	tail2 := LookaheadTail(ROLEPLAYER, player, roleInstance)
	if len(tail2) != 3 {
		t.Fatalf("optimised lookahead components = %d, wanted 3", len(tail2))
	}
	if !bytes.Equal(tail2[0], encodeUint64(4)) {
		t.Fatalf("first optimised component should be role type id")
	}
}

func TestAttributeInstanceID_ContentAddressed(t *testing.T) {
	enc1, err := EncodeValue(ValueTypeString, "Alex")
	if err != nil {
		t.Fatal(err)
	}
	enc2, err := EncodeValue(ValueTypeString, "Alex")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(enc1, enc2) {
		t.Fatalf("encoding not canonical: %x != %x", enc1, enc2)
	}
	id1 := AttributeInstanceID(5, enc1)
	id2 := AttributeInstanceID(5, enc2)
	if id1 != id2 {
		t.Fatalf("same (type, value) produced different instance ids: %d != %d", id1, id2)
	}

	enc3, _ := EncodeValue(ValueTypeString, "John")
	id3 := AttributeInstanceID(5, enc3)
	if id3 == id1 {
		t.Fatalf("different values collided: both hashed to %d", id1)
	}
}
