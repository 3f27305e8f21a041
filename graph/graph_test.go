package graph

import (
	"testing"

	"github.com/kestrelgraph/hypercore/iid"
	"github.com/kestrelgraph/hypercore/internal/storekv"
	"github.com/kestrelgraph/hypercore/sortediter"
)

func openTestGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := Open(storekv.OpenMem(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func mustTx(t *testing.T, g *Graph, writable bool) *Tx {
	t.Helper()
	tx, err := g.BeginTx(writable)
	if err != nil {
		t.Fatal(err)
	}
	return tx
}

func TestNewType_LabelAndScope(t *testing.T) {
	g := openTestGraph(t)
	tx := mustTx(t, g, true)
	defer tx.Close()

	person, err := tx.NewType(iid.EntityType, "person", "")
	if err != nil {
		t.Fatal(err)
	}
	if person.Label() != "person" || person.ScopedLabel() != "person" {
		t.Fatalf("label = %q, scoped = %q", person.Label(), person.ScopedLabel())
	}

	role, err := tx.NewType(iid.RoleType, "friend", "friendship")
	if err != nil {
		t.Fatal(err)
	}
	if role.ScopedLabel() != "friendship:friend" {
		t.Fatalf("scoped label = %q", role.ScopedLabel())
	}
}

func TestPut_MirrorConsistency(t *testing.T) {
	g := openTestGraph(t)
	tx := mustTx(t, g, true)
	defer tx.Close()

	person, _ := tx.NewType(iid.EntityType, "person", "")
	attr, _ := tx.NewType(iid.AttributeType, "name", "")

	edge, err := person.Outs().Put(iid.OWNS, attr.IID(), false)
	if err != nil {
		t.Fatal(err)
	}
	if !edge.From().Equal(person.IID()) || !edge.To().Equal(attr.IID()) {
		t.Fatalf("edge endpoints wrong: from=%v to=%v", edge.From(), edge.To())
	}

	back, err := attr.Ins().Edge(iid.OWNS, person.IID())
	if err != nil {
		t.Fatal(err)
	}
	if back == nil {
		t.Fatalf("mirror edge missing on attr.Ins()")
	}
	if !back.From().Equal(person.IID()) || !back.To().Equal(attr.IID()) {
		t.Fatalf("mirror endpoints wrong: from=%v to=%v", back.From(), back.To())
	}
}

func TestPut_BufferIdempotence(t *testing.T) {
	g := openTestGraph(t)
	tx := mustTx(t, g, true)
	defer tx.Close()

	a, _ := tx.NewType(iid.EntityType, "a", "")
	b, _ := tx.NewType(iid.EntityType, "b", "")

	e1, err := a.Outs().Put(iid.SUB, b.IID(), false)
	if err != nil {
		t.Fatal(err)
	}
	e2, err := a.Outs().Put(iid.SUB, b.IID(), false)
	if err != nil {
		t.Fatal(err)
	}
	if !e1.ForwardView().Equal(e2.ForwardView()) {
		t.Fatalf("repeated Put produced different edge identity")
	}

	edges := sortediter.Collect(a.Outs().EdgeStream(iid.SUB, []byte{byte(b.IID().Kind())}, encodeTypeID(b.IID())))
	if len(edges) != 1 {
		t.Fatalf("expected exactly one buffered edge, got %d", len(edges))
	}
}

func TestSetSupertype_RejectsCycle(t *testing.T) {
	g := openTestGraph(t)
	tx := mustTx(t, g, true)
	defer tx.Close()

	a, _ := tx.NewType(iid.EntityType, "a", "")
	b, _ := tx.NewType(iid.EntityType, "b", "")
	c, _ := tx.NewType(iid.EntityType, "c", "")

	if _, err := a.SetSupertype(b); err != nil {
		t.Fatal(err)
	}
	if _, err := b.SetSupertype(c); err != nil {
		t.Fatal(err)
	}

	if _, err := c.SetSupertype(a); err == nil {
		t.Fatal("expected a cycle (c -> a -> b -> c) to be rejected")
	} else if _, ok := err.(*SchemaMutationError); !ok {
		t.Fatalf("expected *SchemaMutationError, got %T: %v", err, err)
	}

	if _, err := a.SetSupertype(a); err == nil {
		t.Fatal("expected a type as its own supertype to be rejected")
	} else if _, ok := err.(*SchemaMutationError); !ok {
		t.Fatalf("expected *SchemaMutationError, got %T: %v", err, err)
	}

	if edges := sortediter.Collect(c.Outs().EdgeStream(iid.SUB, []byte{byte(a.IID().Kind())}, encodeTypeID(a.IID()))); len(edges) != 0 {
		t.Fatalf("rejected cycle must not have buffered an edge, got %d", len(edges))
	}
}

func TestRoundTrip_CommitAndReopen(t *testing.T) {
	store := storekv.OpenMem()
	g, err := Open(store, Options{})
	if err != nil {
		t.Fatal(err)
	}

	tx := mustTx(t, g, true)
	a, _ := tx.NewType(iid.EntityType, "a", "")
	b, _ := tx.NewType(iid.EntityType, "b", "")
	if _, err := a.Outs().Put(iid.SUB, b.IID(), false); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	g2, err := Open(store, Options{})
	if err != nil {
		t.Fatal(err)
	}
	rtx := mustTx(t, g2, false)
	defer rtx.Close()

	v, err := rtx.Vertex(a.IID())
	if err != nil {
		t.Fatal(err)
	}
	if v == nil {
		t.Fatal("committed vertex not found after reopen")
	}
	tv := v.(*TypeVertex)
	if tv.Label() != "a" {
		t.Fatalf("label after reopen = %q", tv.Label())
	}

	edge, err := tv.Outs().Edge(iid.SUB, b.IID())
	if err != nil {
		t.Fatal(err)
	}
	if edge == nil {
		t.Fatal("committed edge not found after reopen")
	}
}

func TestPut_BufferedOverPersistedRePut(t *testing.T) {
	store := storekv.OpenMem()
	g, err := Open(store, Options{})
	if err != nil {
		t.Fatal(err)
	}

	tx1 := mustTx(t, g, true)
	a, _ := tx1.NewType(iid.EntityType, "a", "")
	b, _ := tx1.NewType(iid.EntityType, "b", "")
	if _, err := a.Outs().Put(iid.OWNS, b.IID(), false); err != nil {
		t.Fatal(err)
	}
	if err := tx1.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2 := mustTx(t, g, true)
	defer tx2.Close()
	v, err := tx2.Vertex(a.IID())
	if err != nil {
		t.Fatal(err)
	}
	aTV := v.(*TypeVertex)

	edge, err := aTV.Outs().Put(iid.OWNS, b.IID(), false)
	if err != nil {
		t.Fatal(err)
	}
	if !edge.ForwardView().Equal(forwardViewOf(a.IID(), iid.OWNS, b.IID())) {
		t.Fatalf("re-put returned a different edge identity")
	}

	edges := sortediter.Collect(aTV.Outs().EdgeStream(iid.OWNS))
	if len(edges) != 1 {
		t.Fatalf("expected exactly one edge after buffered-over-persisted re-put, got %d", len(edges))
	}
}

func TestRename_CollisionRejected(t *testing.T) {
	g := openTestGraph(t)
	tx := mustTx(t, g, true)
	defer tx.Close()

	person, _ := tx.NewType(iid.EntityType, "person", "")
	dog, _ := tx.NewType(iid.EntityType, "dog", "")

	err := dog.SetLabel("person")
	if err == nil {
		t.Fatal("expected rename collision to be rejected")
	}
	if _, ok := err.(*SchemaMutationError); !ok {
		t.Fatalf("expected *SchemaMutationError, got %T: %v", err, err)
	}

	resolved, ok, err := tx.TypeByLabel("person")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || !resolved.IID().Equal(person.IID()) {
		t.Fatalf("index should still resolve person -> person's IID")
	}
	if dog.Label() != "dog" {
		t.Fatalf("dog's label should be unchanged, got %q", dog.Label())
	}
}

func TestDelete_Completeness(t *testing.T) {
	store := storekv.OpenMem()
	g, err := Open(store, Options{})
	if err != nil {
		t.Fatal(err)
	}

	tx1 := mustTx(t, g, true)
	person, _ := tx1.NewType(iid.EntityType, "person", "")
	name, _ := tx1.NewType(iid.AttributeType, "name", "")
	if _, err := person.Outs().Put(iid.OWNS, name.IID(), false); err != nil {
		t.Fatal(err)
	}
	if err := tx1.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2 := mustTx(t, g, true)
	v, err := tx2.Vertex(person.IID())
	if err != nil {
		t.Fatal(err)
	}
	if err := v.(*TypeVertex).Delete(); err != nil {
		t.Fatal(err)
	}
	if err := tx2.Commit(); err != nil {
		t.Fatal(err)
	}

	tx3 := mustTx(t, g, false)
	defer tx3.Close()
	gone, err := tx3.Vertex(person.IID())
	if err != nil {
		t.Fatal(err)
	}
	if gone != nil {
		t.Fatalf("deleted vertex still resolvable")
	}
	_, ok, err := tx3.TypeByLabel("person")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("type index entry should be gone after delete")
	}
}

func TestAttribute_ContentAddressedDedup(t *testing.T) {
	g := openTestGraph(t)
	tx := mustTx(t, g, true)
	defer tx.Close()

	nameType, _ := tx.NewType(iid.AttributeType, "name", "")
	nameType.SetValueType(iid.ValueTypeString)

	a1, err := tx.NewAttribute(nameType, iid.ValueTypeString, "Alex")
	if err != nil {
		t.Fatal(err)
	}
	a2, err := tx.NewAttribute(nameType, iid.ValueTypeString, "Alex")
	if err != nil {
		t.Fatal(err)
	}
	if !a1.IID().Equal(a2.IID()) {
		t.Fatalf("same (type, value) should collapse to one vertex")
	}
}

func encodeTypeID(v iid.VertexIID) []byte {
	id := v.TypeID()
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(id)
		id >>= 8
	}
	return b
}

func forwardViewOf(from iid.VertexIID, enc iid.Encoding, to iid.VertexIID) iid.EdgeViewIID {
	return iid.NewEdgeViewIID(from, iid.MakeInfix(enc, iid.Forward), to, nil)
}
