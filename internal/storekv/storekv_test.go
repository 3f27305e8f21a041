package storekv

import (
	"testing"

	"github.com/kestrelgraph/hypercore/internal/testutil"
)

func TestMemStore_PutGetDelete(t *testing.T) {
	s := OpenMem()
	defer s.Close()

	wtx := testutil.Must(s.BeginTx(true))
	buck := testutil.Must(wtx.Vertices())
	testutil.Ensure(buck.Put([]byte("a"), []byte("1")))
	testutil.Ensure(buck.Put([]byte("b"), []byte("2")))
	testutil.Ensure(wtx.Commit())

	rtx := testutil.Must(s.BeginTx(false))
	defer rtx.Rollback()
	rbuck := testutil.Must(rtx.Vertices())
	if rbuck == nil {
		t.Fatalf("bucket not found")
	}
	if got := string(rbuck.Get([]byte("a"))); got != "1" {
		t.Fatalf("get a = %q, wanted 1", got)
	}
	if got := rbuck.Get([]byte("missing")); got != nil {
		t.Fatalf("get missing = %v, wanted nil", got)
	}
}

func TestMemStore_CursorOrderingAndSeek(t *testing.T) {
	s := OpenMem()
	defer s.Close()

	wtx := testutil.Must(s.BeginTx(true))
	buck := testutil.Must(wtx.Vertices())
	for _, k := range []string{"a", "c", "e", "g"} {
		testutil.Ensure(buck.Put([]byte(k), []byte(k)))
	}
	testutil.Ensure(wtx.Commit())

	rtx := testutil.Must(s.BeginTx(false))
	defer rtx.Rollback()
	rbuck := testutil.Must(rtx.Vertices())
	cur := rbuck.Cursor()

	var got []string
	for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
		got = append(got, string(k))
	}
	want := []string{"a", "c", "e", "g"}
	if len(got) != len(want) {
		t.Fatalf("scan = %v, wanted %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scan[%d] = %q, wanted %q", i, got[i], want[i])
		}
	}

	if k, _ := cur.Seek([]byte("b")); string(k) != "c" {
		t.Fatalf("seek(b) = %q, wanted c (smallest key >= b)", k)
	}
	if k, _ := cur.Seek([]byte("z")); k != nil {
		t.Fatalf("seek(z) = %q, wanted nil (past end)", k)
	}
}

func TestMemStore_SeekLastPrefix(t *testing.T) {
	s := OpenMem()
	defer s.Close()

	wtx := testutil.Must(s.BeginTx(true))
	buck := testutil.Must(wtx.Vertices())
	for _, k := range []string{"a\x01", "a\x02", "a\x03", "b\x01"} {
		testutil.Ensure(buck.Put([]byte(k), []byte(k)))
	}
	testutil.Ensure(wtx.Commit())

	rtx := testutil.Must(s.BeginTx(false))
	defer rtx.Rollback()
	rbuck := testutil.Must(rtx.Vertices())
	cur := rbuck.Cursor()

	k, _ := cur.SeekLast([]byte("a"))
	if string(k) != "a\x03" {
		t.Fatalf("SeekLast(a) = %q, wanted a\\x03", k)
	}
}

func TestMemStore_SeekLastAllFFPrefix(t *testing.T) {
	s := OpenMem()
	defer s.Close()

	wtx := testutil.Must(s.BeginTx(true))
	buck := testutil.Must(wtx.Vertices())
	for _, k := range [][]byte{{0xFF, 0x01}, {0xFF, 0x02}} {
		testutil.Ensure(buck.Put(k, k))
	}
	testutil.Ensure(wtx.Commit())

	rtx := testutil.Must(s.BeginTx(false))
	defer rtx.Rollback()
	rbuck := testutil.Must(rtx.Vertices())
	cur := rbuck.Cursor()

	k, _ := cur.SeekLast([]byte{0xFF})
	if len(k) != 2 || k[1] != 0x02 {
		t.Fatalf("SeekLast(0xFF) = %v, wanted {0xFF, 0x02}", k)
	}
}

func TestMemStore_ReadOnlyRejectsWrites(t *testing.T) {
	s := OpenMem()
	defer s.Close()

	wtx := testutil.Must(s.BeginTx(true))
	testutil.Must(wtx.Vertices())
	testutil.Ensure(wtx.Commit())

	rtx := testutil.Must(s.BeginTx(false))
	defer rtx.Rollback()
	buck := testutil.Must(rtx.Vertices())
	if err := buck.Put([]byte("x"), []byte("y")); err != ErrNotWritable {
		t.Fatalf("Put on read tx = %v, wanted ErrNotWritable", err)
	}
}

func TestMemStore_VerticesAndIndexAreIndependent(t *testing.T) {
	s := OpenMem()
	defer s.Close()

	wtx := testutil.Must(s.BeginTx(true))
	vb := testutil.Must(wtx.Vertices())
	ib := testutil.Must(wtx.Index())
	testutil.Ensure(vb.Put([]byte("k"), []byte("vertices")))
	testutil.Ensure(ib.Put([]byte("k"), []byte("index")))
	testutil.Ensure(wtx.Commit())

	rtx := testutil.Must(s.BeginTx(false))
	defer rtx.Rollback()
	rvb := testutil.Must(rtx.Vertices())
	rib := testutil.Must(rtx.Index())
	if got := string(rvb.Get([]byte("k"))); got != "vertices" {
		t.Fatalf("vertices[k] = %q, wanted vertices", got)
	}
	if got := string(rib.Get([]byte("k"))); got != "index" {
		t.Fatalf("index[k] = %q, wanted index", got)
	}
}
