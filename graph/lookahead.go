package graph

import (
	"sort"
	"sync"

	"github.com/kestrelgraph/hypercore/iid"
	"github.com/kestrelgraph/hypercore/sortediter"
)

// edgeRecord is one buffered edge as seen from a single adjacency (a single
// direction of a single owner). Its view is the comparison key: the owner
// vertex's own directional view of the edge.
type edgeRecord struct {
	view         iid.EdgeViewIID
	adjacent     iid.VertexIID
	roleInstance iid.VertexIID // nil unless the encoding is optimised
	overridden   iid.VertexIID // nil unless this is an inherited type edge
	isInferred   bool
}

func edgeRecordCmp(a, b *edgeRecord) int { return a.view.Compare(b.view) }

// edgeBucket is the leaf of the lookahead index: an ordered set of edges that
// share a full lookahead chain.
type edgeBucket struct {
	mu    sync.Mutex
	items []*edgeRecord
}

func (b *edgeBucket) find(view iid.EdgeViewIID) *edgeRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := sort.Search(len(b.items), func(i int) bool { return b.items[i].view.Compare(view) >= 0 })
	if i < len(b.items) && b.items[i].view.Compare(view) == 0 {
		return b.items[i]
	}
	return nil
}

func (b *edgeBucket) insert(rec *edgeRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := sort.Search(len(b.items), func(i int) bool { return b.items[i].view.Compare(rec.view) >= 0 })
	b.items = append(b.items, nil)
	copy(b.items[i+1:], b.items[i:])
	b.items[i] = rec
}

func (b *edgeBucket) remove(view iid.EdgeViewIID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := sort.Search(len(b.items), func(i int) bool { return b.items[i].view.Compare(view) >= 0 })
	if i < len(b.items) && b.items[i].view.Compare(view) == 0 {
		b.items = append(b.items[:i], b.items[i+1:]...)
	}
}

func (b *edgeBucket) snapshot() []*edgeRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*edgeRecord, len(b.items))
	copy(out, b.items)
	return out
}

// lookaheadBuffer is one adjacency's buffered edges, indexed the way §4.4
// describes: an `edges` map from a fully-qualified lookahead-chain key to its
// ordered bucket, and an `infixes` map from each shorter chain key to the set
// of one-component-longer chain keys descending from it, so a query with a
// shallow lookahead can walk down to every matching leaf bucket. Both maps
// are sync.Map-backed so traversal and commit can read them while the owning
// transaction's mutation goroutine still holds the pen.
type lookaheadBuffer struct {
	edges   sync.Map // string(chain key) -> *edgeBucket
	infixes sync.Map // string(chain key) -> *childSet
}

type childSet struct {
	mu       sync.Mutex
	children map[string]struct{}
}

func (c *childSet) add(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.children == nil {
		c.children = make(map[string]struct{})
	}
	c.children[key] = struct{}{}
}

func (c *childSet) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.children))
	for k := range c.children {
		out = append(out, k)
	}
	return out
}

// chain builds the ordered list of lookahead-chain keys for infix and tail,
// from the shallowest (infix alone) to the deepest (the full lookahead).
func chain(infix iid.Infix, lookahead [][]byte) []string {
	keys := make([]string, len(lookahead)+1)
	cur := []byte{byte(infix)}
	keys[0] = string(cur)
	for i, comp := range lookahead {
		cur = append(append([]byte{}, cur...), comp...)
		keys[i+1] = string(cur)
	}
	return keys
}

func (lb *lookaheadBuffer) bucket(key string, create bool) *edgeBucket {
	if v, ok := lb.edges.Load(key); ok {
		return v.(*edgeBucket)
	}
	if !create {
		return nil
	}
	b := &edgeBucket{}
	actual, _ := lb.edges.LoadOrStore(key, b)
	return actual.(*edgeBucket)
}

func (lb *lookaheadBuffer) addChild(parent, child string) {
	if v, ok := lb.infixes.Load(parent); ok {
		v.(*childSet).add(child)
		return
	}
	cs := &childSet{}
	cs.add(child)
	actual, loaded := lb.infixes.LoadOrStore(parent, cs)
	if loaded {
		actual.(*childSet).add(child)
	}
}

// find looks up a buffered edge by its exact full view, given enc and the
// adjacent/roleInstance used to build the lookahead chain.
func (lb *lookaheadBuffer) find(infix iid.Infix, enc iid.Encoding, adjacent, roleInstance iid.VertexIID, view iid.EdgeViewIID) *edgeRecord {
	lookahead := iid.LookaheadTail(enc, adjacent, roleInstance)
	keys := chain(infix, lookahead)
	leaf := lb.bucket(keys[len(keys)-1], false)
	if leaf == nil {
		return nil
	}
	return leaf.find(view)
}

// put stores rec in the leaf bucket for enc's full lookahead chain, wiring up
// every intermediate infixes step.
func (lb *lookaheadBuffer) put(infix iid.Infix, enc iid.Encoding, adjacent, roleInstance iid.VertexIID, rec *edgeRecord) {
	lookahead := iid.LookaheadTail(enc, adjacent, roleInstance)
	keys := chain(infix, lookahead)
	for i := 0; i < len(keys)-1; i++ {
		lb.addChild(keys[i], keys[i+1])
	}
	lb.bucket(keys[len(keys)-1], true).insert(rec)
}

func (lb *lookaheadBuffer) removeExact(infix iid.Infix, enc iid.Encoding, adjacent, roleInstance iid.VertexIID, view iid.EdgeViewIID) {
	lookahead := iid.LookaheadTail(enc, adjacent, roleInstance)
	keys := chain(infix, lookahead)
	if leaf := lb.bucket(keys[len(keys)-1], false); leaf != nil {
		leaf.remove(view)
	}
}

// collectLeaves walks depth levels down from startKey through infixes,
// returning every leaf chain key reachable.
func collectLeaves(infixes *sync.Map, startKey string, depth int) []string {
	frontier := []string{startKey}
	for i := 0; i < depth; i++ {
		var next []string
		for _, k := range frontier {
			if v, ok := infixes.Load(k); ok {
				next = append(next, v.(*childSet).list()...)
			}
		}
		frontier = next
	}
	return frontier
}

// stream returns a forwardable, ordered stream of every buffered edge whose
// lookahead chain starts with the given partial lookahead (length may be
// less than the encoding's full LookaheadLen).
func (lb *lookaheadBuffer) stream(infix iid.Infix, enc iid.Encoding, partial [][]byte) *sortediter.Iter[*edgeRecord] {
	startKey := chain(infix, partial)[len(partial)]
	depth := enc.LookaheadLen() - len(partial)
	leaves := collectLeaves(&lb.infixes, startKey, depth)
	streams := make([]*sortediter.Iter[*edgeRecord], 0, len(leaves))
	for _, leaf := range leaves {
		if b := lb.bucket(leaf, false); b != nil {
			streams = append(streams, sortediter.FromSlice(edgeRecordCmp, b.snapshot()))
		}
	}
	return sortediter.Merge(edgeRecordCmp, streams...)
}

// all returns every buffered edge under this adjacency, in no particular
// order, for the unsorted full-scan and delete-all cases.
func (lb *lookaheadBuffer) all() []*edgeRecord {
	var out []*edgeRecord
	lb.edges.Range(func(_, v any) bool {
		out = append(out, v.(*edgeBucket).snapshot()...)
		return true
	})
	return out
}
