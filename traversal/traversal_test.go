package traversal

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kestrelgraph/hypercore/graph"
	"github.com/kestrelgraph/hypercore/iid"
	"github.com/kestrelgraph/hypercore/internal/storekv"
)

func openTestTx(t *testing.T) (*graph.Graph, *graph.Tx) {
	t.Helper()
	g, err := graph.Open(storekv.OpenMem(), graph.Options{})
	if err != nil {
		t.Fatal(err)
	}
	tx, err := g.BeginTx(true)
	if err != nil {
		t.Fatal(err)
	}
	return g, tx
}

// TestProcedure_HasWalk exercises a two-step procedure: start at every
// person entity, walk HAS to its name attribute, accept only "Alex".
func TestProcedure_HasWalk(t *testing.T) {
	_, tx := openTestTx(t)
	defer tx.Close()

	personType, _ := tx.NewType(iid.EntityType, "person", "")
	nameType, _ := tx.NewType(iid.AttributeType, "name", "")
	nameType.SetValueType(iid.ValueTypeString)

	x, _ := tx.NewThing(iid.Entity, personType)
	y, _ := tx.NewThing(iid.Entity, personType)
	alex, err := tx.NewAttribute(nameType, iid.ValueTypeString, "Alex")
	if err != nil {
		t.Fatal(err)
	}
	john, err := tx.NewAttribute(nameType, iid.ValueTypeString, "John")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := x.Outs().Put(iid.HAS, alex.IID(), false); err != nil {
		t.Fatal(err)
	}
	if _, err := y.Outs().Put(iid.HAS, john.IID(), false); err != nil {
		t.Fatal(err)
	}

	proc := NewProcedure("x")
	xVertex := NewThingVertex("x", true)
	xVertex.StartType = personType
	xVertex.AllowedTypes.Add(uint32(personType.IID().TypeID()))
	proc.AddVertex(xVertex)

	nameVertex := NewThingVertex("name", false)
	nameVertex.AllowedTypes.Add(uint32(nameType.IID().TypeID()))
	expected, _ := iid.EncodeValue(iid.ValueTypeString, "Alex")
	nameVertex.ValuePredicate = func(vt iid.ValueType, encoded []byte) bool {
		v, err := iid.DecodeValue(vt, encoded)
		if err != nil {
			return false
		}
		s, _ := v.(string)
		return s == "Alex"
	}
	proc.AddVertex(nameVertex)
	proc.AddEdge(&Edge{Order: 1, From: "x", To: "name", Encoding: iid.HAS, Dir: iid.Forward})
	if err := proc.Build(); err != nil {
		t.Fatal(err)
	}

	var results []VertexMap
	for vm := range proc.Iterator(context.Background(), tx, []Identifier{"x", "name"}) {
		results = append(results, vm)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one match, got %d", len(results))
	}
	if !results[0]["x"].Equal(x.IID()) {
		t.Fatalf("expected x bound to %v, got %v", x.IID(), results[0]["x"])
	}
	if !results[0]["name"].Equal(alex.IID()) {
		t.Fatalf("expected name bound to %v (Alex), got %v", alex.IID(), results[0]["name"])
	}
	_ = expected
}

// TestProcedure_RolePlayerLookahead is scenario 3 (lookahead walk): a
// relation instance with two role-player edges under the same role type must
// yield both players when queried by role type alone.
func TestProcedure_RolePlayerLookahead(t *testing.T) {
	_, tx := openTestTx(t)
	defer tx.Close()

	personType, _ := tx.NewType(iid.EntityType, "person", "")
	friendshipType, _ := tx.NewType(iid.RelationType, "friendship", "")
	friendRole, _ := tx.NewType(iid.RoleType, "friend", "friendship")

	x, _ := tx.NewThing(iid.Entity, personType)
	y, _ := tx.NewThing(iid.Entity, personType)
	r, _ := tx.NewThing(iid.Relation, friendshipType)
	rx, _ := tx.NewThing(iid.Role, friendRole)
	ry, _ := tx.NewThing(iid.Role, friendRole)

	if _, err := r.Outs().PutOptimised(iid.ROLEPLAYER, x.IID(), rx.IID(), false); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Outs().PutOptimised(iid.ROLEPLAYER, y.IID(), ry.IID(), false); err != nil {
		t.Fatal(err)
	}

	proc := NewProcedure("r")
	rVertex := NewThingVertex("r", true)
	rVertex.StartType = friendshipType
	proc.AddVertex(rVertex)

	playerVertex := NewThingVertex("player", false)
	playerVertex.AllowedTypes = roaring.New()
	playerVertex.AllowedTypes.Add(uint32(personType.IID().TypeID()))
	proc.AddVertex(playerVertex)

	proc.AddEdge(&Edge{
		Order: 1, From: "r", To: "player",
		Encoding: iid.ROLEPLAYER, Dir: iid.Forward,
		RoleTypes: []uint64{friendRole.IID().TypeID()},
	})
	if err := proc.Build(); err != nil {
		t.Fatal(err)
	}

	seen := map[string]bool{}
	for vm := range proc.Iterator(context.Background(), tx, []Identifier{"player"}) {
		seen[vm["player"].String()] = true
	}
	if len(seen) != 2 || !seen[x.IID().String()] || !seen[y.IID().String()] {
		t.Fatalf("expected both role players, got %v", seen)
	}
}

// TestGraphIterator_ScopeClearedOnBacktrack is scenario 5's shape collapsed
// to its essential single-relation case: one relation r has two role players
// under role type "friend" — Alex, then (in candidate order) John. A
// downstream predicate rejects Alex, forcing the search to backtrack into
// r's own role-player step and retry with John under the very same scope
// key (relation="r", roleType="friend", player="player1"). If popStep did
// not clear that scope registration on the way back out, the retry with
// John would be wrongly treated as already-bound and the search would come
// back empty despite John being a perfectly good answer.
func TestGraphIterator_ScopeClearedOnBacktrack(t *testing.T) {
	_, tx := openTestTx(t)
	defer tx.Close()

	personType, _ := tx.NewType(iid.EntityType, "person", "")
	friendshipType, _ := tx.NewType(iid.RelationType, "friendship", "")
	friendRole, _ := tx.NewType(iid.RoleType, "friend", "friendship")
	nameType, _ := tx.NewType(iid.AttributeType, "name", "")
	nameType.SetValueType(iid.ValueTypeString)

	alex, _ := tx.NewThing(iid.Entity, personType)
	john, _ := tx.NewThing(iid.Entity, personType)
	r, _ := tx.NewThing(iid.Relation, friendshipType)
	roleAlex, _ := tx.NewThing(iid.Role, friendRole)
	roleJohn, _ := tx.NewThing(iid.Role, friendRole)

	nameAlex, err := tx.NewAttribute(nameType, iid.ValueTypeString, "Alex")
	if err != nil {
		t.Fatal(err)
	}
	nameJohn, err := tx.NewAttribute(nameType, iid.ValueTypeString, "John")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := alex.Outs().Put(iid.HAS, nameAlex.IID(), false); err != nil {
		t.Fatal(err)
	}
	if _, err := john.Outs().Put(iid.HAS, nameJohn.IID(), false); err != nil {
		t.Fatal(err)
	}

	// Candidate order for r's role players follows ascending vertex IID, i.e.
	// creation order: Alex is tried before John.
	if _, err := r.Outs().PutOptimised(iid.ROLEPLAYER, alex.IID(), roleAlex.IID(), false); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Outs().PutOptimised(iid.ROLEPLAYER, john.IID(), roleJohn.IID(), false); err != nil {
		t.Fatal(err)
	}

	proc := NewProcedure("r")
	rVertex := NewThingVertex("r", true)
	rVertex.StartType = friendshipType
	proc.AddVertex(rVertex)

	player1 := NewThingVertex("player1", false)
	player1.AllowedTypes.Add(uint32(personType.IID().TypeID()))
	player1.SetScope(ScopeKey{Relation: "r", RoleType: "friend", Player: "player1", Repetition: 1})
	proc.AddVertex(player1)

	name1 := NewThingVertex("name1", false)
	name1.AllowedTypes.Add(uint32(nameType.IID().TypeID()))
	name1.ValuePredicate = func(vt iid.ValueType, encoded []byte) bool {
		v, err := iid.DecodeValue(vt, encoded)
		if err != nil {
			return false
		}
		s, _ := v.(string)
		return s == "John"
	}
	proc.AddVertex(name1)

	proc.AddEdge(&Edge{
		Order: 1, From: "r", To: "player1",
		Encoding: iid.ROLEPLAYER, Dir: iid.Forward,
		RoleTypes: []uint64{friendRole.IID().TypeID()},
	})
	proc.AddEdge(&Edge{Order: 2, From: "player1", To: "name1", Encoding: iid.HAS, Dir: iid.Forward})
	if err := proc.Build(); err != nil {
		t.Fatal(err)
	}

	var results []VertexMap
	for vm := range proc.Iterator(context.Background(), tx, []Identifier{"player1"}) {
		results = append(results, vm)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one answer (John, reached only after backtracking past Alex), got %d — scope binding likely leaked across the backtrack", len(results))
	}
	if !results[0]["player1"].Equal(john.IID()) {
		t.Fatalf("expected player1 bound to John (%v), got %v", john.IID(), results[0]["player1"])
	}
}
