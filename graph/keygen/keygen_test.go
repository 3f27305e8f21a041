package keygen

import (
	"testing"

	"github.com/kestrelgraph/hypercore/internal/storekv"
	"github.com/kestrelgraph/hypercore/iid"
)

func TestKeyGen_MonotonicPerKind(t *testing.T) {
	g := New()
	a1 := g.Next(iid.EntityType)
	a2 := g.Next(iid.EntityType)
	b1 := g.Next(iid.AttributeType)
	if a2 <= a1 {
		t.Fatalf("expected strictly increasing ids, got %d then %d", a1, a2)
	}
	if b1 != 1 {
		t.Fatalf("expected independent counter per kind, got %d", b1)
	}
}

func TestKeyGen_SurvivesFlushAndLoad(t *testing.T) {
	store := storekv.OpenMem()
	defer store.Close()

	g := New()
	g.Next(iid.EntityType)
	g.Next(iid.EntityType)
	tx, err := store.BeginTx(true)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Flush(tx); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	g2 := New()
	rtx, err := store.BeginTx(false)
	if err != nil {
		t.Fatal(err)
	}
	if err := g2.Load(rtx); err != nil {
		t.Fatal(err)
	}
	rtx.Rollback()

	next := g2.Next(iid.EntityType)
	if next != 3 {
		t.Fatalf("expected recovered counter to continue at 3, got %d", next)
	}
}
