// Package graph is the vertex/adjacency/edge engine of the hypergraph core:
// a transaction opens a storage handle, mutates or queries through typed
// vertices, and commit drains buffered vertices and edges into storage.
package graph

import (
	"bytes"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/kestrelgraph/hypercore/graph/keygen"
	"github.com/kestrelgraph/hypercore/iid"
	"github.com/kestrelgraph/hypercore/internal/storekv"
	"github.com/kestrelgraph/hypercore/sortediter"
)

// Graph is the database handle: the storage backend plus the key generator
// scoped to it, per §5's "global state is the storage handle and the
// per-prefix key generator; both are scoped to the ... database handle."
type Graph struct {
	store       storekv.Store
	keygen      *keygen.KeyGen
	logger      *slog.Logger
	parallelism int
}

// Options configures a Graph, mirroring the ambient storage layer's own
// Options struct.
type Options struct {
	// Logger receives structured diagnostics. When nil, Open builds one from
	// Logf if set, else a text handler writing to os.Stderr.
	Logger *slog.Logger
	// Logf is a printf-style logging hook, used in place of Logger when
	// Logger is nil, for callers wiring in an existing non-slog logger.
	Logf func(format string, args ...any)
	// Verbose raises the effective log level to Debug when Logger is nil.
	Verbose bool
	// IsTesting mirrors the storage layer's own IsTesting knob. Nothing in
	// this package reads it; it enables no extra assertions.
	IsTesting bool
	// Parallelism is the default worker count traversal.Procedure.Producer
	// partitions its starting-vertex iterator into when a caller doesn't
	// specify one explicitly. Defaults to runtime.GOMAXPROCS(0).
	Parallelism int
}

// Open wraps an already-open storekv.Store (bbolt-backed or in-memory) as a
// Graph, loading the persisted key generator state.
func Open(store storekv.Store, opts Options) (*Graph, error) {
	logger := opts.Logger
	if logger == nil {
		level := slog.LevelInfo
		if opts.Verbose {
			level = slog.LevelDebug
		}
		if opts.Logf != nil {
			logger = slog.New(newLogfHandler(opts.Logf, level))
		} else {
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		}
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	g := &Graph{store: store, keygen: keygen.New(), logger: logger, parallelism: parallelism}

	tx, err := store.BeginTx(false)
	if err != nil {
		return nil, storageErrf("open", err)
	}
	defer tx.Rollback()
	if err := g.keygen.Load(tx); err != nil {
		return nil, storageErrf("load keygen", err)
	}
	return g, nil
}

func (g *Graph) Close() error { return g.store.Close() }

// Tx is a single interactive transaction: it accumulates buffered vertex and
// edge mutations, presented as a union with storage, until Commit flushes.
type Tx struct {
	graph    *Graph
	storeTx  storekv.Tx
	vertices storekv.Bucket
	index    storekv.Bucket
	logger   *slog.Logger

	writable bool
	done     bool

	// byIID is reached by every tx.Vertex()/edge.candidates() call, including
	// concurrently from traversal.Procedure.Producer's worker fan-out (§5),
	// so it is guarded by mu rather than left a bare map.
	mu    sync.Mutex
	byIID map[string]Vertex
}

// BeginTx opens a transaction. Writable transactions may create vertices,
// mutate properties, and buffer edges; read-only ones may only query.
func (g *Graph) BeginTx(writable bool) (*Tx, error) {
	storeTx, err := g.store.BeginTx(writable)
	if err != nil {
		return nil, storageErrf("begin", err)
	}
	vertices, err := storeTx.Vertices()
	if err != nil {
		storeTx.Rollback()
		return nil, storageErrf("open vertices bucket", err)
	}
	index, err := storeTx.Index()
	if err != nil {
		storeTx.Rollback()
		return nil, storageErrf("open index bucket", err)
	}
	return &Tx{
		graph: g, storeTx: storeTx, vertices: vertices, index: index,
		logger: g.logger, writable: writable, byIID: make(map[string]Vertex),
	}, nil
}

func (tx *Tx) requireWritable() error {
	if !tx.writable {
		return argumentErrf(nil, "transaction is read-only")
	}
	return nil
}

func (tx *Tx) getRaw(key []byte) ([]byte, error) {
	if tx.vertices == nil {
		return nil, nil
	}
	return tx.vertices.Get(key), nil
}

func (tx *Tx) putRaw(key, value []byte) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	if err := tx.vertices.Put(key, value); err != nil {
		return storageErrf("put", err)
	}
	return nil
}

func (tx *Tx) deleteRaw(key []byte) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	if err := tx.vertices.Delete(key); err != nil {
		return storageErrf("delete", err)
	}
	return nil
}

func (tx *Tx) getPropertyFromStorage(id iid.VertexIID, infix byte) ([]byte, bool) {
	if tx.vertices == nil {
		return nil, false
	}
	key := append(append([]byte{}, id...), infix)
	v := tx.vertices.Get(key)
	if v == nil {
		return nil, false
	}
	return v, true
}

// vertexByIID returns the cached Vertex handle for id, loading it from
// storage on first access within this transaction. Returns (nil, nil) if no
// such vertex exists. Double-checked against mu so two Producer workers
// racing on the same uncached id converge on a single handle instead of each
// installing their own.
func (tx *Tx) vertexByIID(id iid.VertexIID) (Vertex, error) {
	key := string(id)
	tx.mu.Lock()
	v, ok := tx.byIID[key]
	tx.mu.Unlock()
	if ok {
		return v, nil
	}
	if tx.vertices != nil {
		if tx.vertices.Get(id.Bytes()) == nil {
			return nil, nil
		}
	}
	v = tx.newVertexHandle(id, false)
	tx.mu.Lock()
	if existing, ok := tx.byIID[key]; ok {
		tx.mu.Unlock()
		return existing, nil
	}
	tx.byIID[key] = v
	tx.mu.Unlock()
	return v, nil
}

func (tx *Tx) storeVertexHandle(id iid.VertexIID, v Vertex) {
	tx.mu.Lock()
	tx.byIID[string(id)] = v
	tx.mu.Unlock()
}

// adjacencyFor returns the (out or in) adjacency of the vertex at id,
// creating an in-memory handle for it if it isn't already loaded. Used for
// mirror registration, where the other endpoint of a Put may not yet have
// been touched by the caller.
func (tx *Tx) adjacencyFor(id iid.VertexIID, dir iid.Direction) (*Adjacency, error) {
	v, err := tx.vertexByIID(id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	if dir == iid.Forward {
		return v.Outs(), nil
	}
	return v.Ins(), nil
}

func (tx *Tx) markModifiedByIID(id iid.VertexIID) {
	tx.mu.Lock()
	v, ok := tx.byIID[string(id)]
	tx.mu.Unlock()
	if !ok {
		return
	}
	switch vv := v.(type) {
	case *TypeVertex:
		vv.markModified()
	case *ThingVertex:
		vv.markModified()
	}
}

func (tx *Tx) newVertexHandle(id iid.VertexIID, isNew bool) Vertex {
	var v Vertex
	if id.IsType() {
		tv := &TypeVertex{vertexBase: newVertexBase(tx, id, isNew)}
		v = tv
	} else {
		iv := &ThingVertex{vertexBase: newVertexBase(tx, id, isNew)}
		v = iv
	}
	tx.wireAdjacency(v)
	return v
}

func (tx *Tx) wireAdjacency(v Vertex) {
	id := v.IID()
	isNewFn := func() bool { return v.IsNew() }
	switch vv := v.(type) {
	case *TypeVertex:
		vv.outs = newAdjacency(tx, id, iid.Forward, isNewFn)
		vv.ins = newAdjacency(tx, id, iid.Backward, isNewFn)
	case *ThingVertex:
		vv.outs = newAdjacency(tx, id, iid.Forward, isNewFn)
		vv.ins = newAdjacency(tx, id, iid.Backward, isNewFn)
	}
}

// NewType creates a buffered type vertex with a freshly generated id.
func (tx *Tx) NewType(kind iid.Kind, label, scope string) (*TypeVertex, error) {
	if err := tx.requireWritable(); err != nil {
		return nil, err
	}
	if _, ok, err := tx.TypeByLabel(scopedLabel(scope, label)); err != nil {
		return nil, err
	} else if ok {
		return nil, schemaMutationErrf("type %q already exists", scopedLabel(scope, label))
	}
	id := iid.NewTypeVertexIID(kind, tx.graph.keygen.Next(kind))
	v := tx.newVertexHandle(id, true).(*TypeVertex)
	v.setProperty(iid.LabelInfix, []byte(label))
	if scope != "" {
		v.setProperty(iid.ScopeInfix, []byte(scope))
	}
	tx.storeVertexHandle(id, v)
	tx.indexPut(scopedLabel(scope, label), id)
	return v, nil
}

// NewThing creates a buffered instance vertex with a freshly generated id.
func (tx *Tx) NewThing(kind iid.Kind, typeVertex *TypeVertex) (*ThingVertex, error) {
	if err := tx.requireWritable(); err != nil {
		return nil, err
	}
	id := iid.NewThingVertexIID(kind, typeVertex.IID().TypeID(), tx.graph.keygen.Next(kind))
	v := tx.newVertexHandle(id, true).(*ThingVertex)
	tx.storeVertexHandle(id, v)
	return v, nil
}

// NewAttribute creates or rediscovers the content-addressed attribute vertex
// for (typeVertex, value): two writes of the same (type, value) collapse
// onto the same vertex.
func (tx *Tx) NewAttribute(typeVertex *TypeVertex, valueType iid.ValueType, value any) (*ThingVertex, error) {
	if err := tx.requireWritable(); err != nil {
		return nil, err
	}
	encoded, err := iid.EncodeValue(valueType, value)
	if err != nil {
		return nil, argumentErrf(err, "encoding attribute value")
	}
	typeID := typeVertex.IID().TypeID()
	instanceID := iid.AttributeInstanceID(typeID, encoded)
	id := iid.NewThingVertexIID(iid.Attribute, typeID, instanceID)

	if existing, err := tx.vertexByIID(id); err != nil {
		return nil, err
	} else if existing != nil {
		return existing.(*ThingVertex), nil
	}
	v := tx.newVertexHandle(id, true).(*ThingVertex)
	v.setValue(encoded)
	tx.storeVertexHandle(id, v)
	return v, nil
}

// Vertex returns the vertex at id, or nil if it doesn't exist.
func (tx *Tx) Vertex(id iid.VertexIID) (Vertex, error) { return tx.vertexByIID(id) }

// DefaultParallelism reports the Graph's configured Producer worker count
// (Options.Parallelism, or runtime.GOMAXPROCS(0) if unset).
func (tx *Tx) DefaultParallelism() int { return tx.graph.parallelism }

// ThingsOfType streams every instance of typeVertex, both persisted ones and
// ones created in this transaction, in ascending instance-id order. It needs
// no secondary index: a thing's own IID
// is `kind | typeID | instanceID`, so every instance of a type occupies one
// contiguous byte-prefix range of the vertices bucket, the existence key
// being the only key of exactly thingVertexLen at that prefix (edge-view and
// property keys under the same prefix are always longer). Used by the
// traversal package to materialize a starting-vertex iterator restricted by
// allowed instance type.
func (tx *Tx) ThingsOfType(typeVertex *TypeVertex) *sortediter.Iter[iid.VertexIID] {
	thingKind := typeVertex.Kind().ThingKindForType()
	prefix := append([]byte{byte(thingKind)}, typeVertex.IID()[1:]...)
	existenceLen := len(prefix) + 8

	var buffered []iid.VertexIID
	tx.mu.Lock()
	for _, v := range tx.byIID {
		if tv, ok := v.(*ThingVertex); ok && tv.isNew && bytes.HasPrefix(tv.id, prefix) {
			buffered = append(buffered, tv.id)
		}
	}
	tx.mu.Unlock()
	sort.Slice(buffered, func(i, j int) bool { return iid.Compare(buffered[i], buffered[j]) < 0 })
	bufStream := sortediter.FromSlice(iid.Compare, buffered)

	if tx.vertices == nil {
		return bufStream
	}
	src := sortediter.NewKVSource[iid.VertexIID](
		iid.Compare,
		tx.vertices,
		sortediter.BytesPrefix(prefix),
		func(key, _ []byte) iid.VertexIID { return iid.VertexIID(append([]byte{}, key...)) },
		func(v iid.VertexIID) []byte { return v.Bytes() },
		tx.logger,
	)
	persisted := sortediter.Filter(iid.Compare, src, func(v iid.VertexIID) bool { return len(v) == existenceLen })
	return sortediter.Merge(iid.Compare, bufStream, persisted)
}

// TypeByLabel resolves a scoped label to its type vertex, consulting the
// buffered label overlay before the persisted TYPE_INDEX.
func (tx *Tx) TypeByLabel(scoped string) (*TypeVertex, bool, error) {
	tx.mu.Lock()
	for _, v := range tx.byIID {
		tv, ok := v.(*TypeVertex)
		if ok && !tv.deleted && tv.ScopedLabel() == scoped {
			tx.mu.Unlock()
			return tv, true, nil
		}
	}
	tx.mu.Unlock()
	if tx.index == nil {
		return nil, false, nil
	}
	raw := tx.index.Get([]byte(scoped))
	if raw == nil {
		return nil, false, nil
	}
	id, err := iid.ParseVertexIID(raw)
	if err != nil {
		return nil, false, storageErrf("parse type index entry", err)
	}
	v, err := tx.vertexByIID(id)
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		return nil, false, nil
	}
	return v.(*TypeVertex), true, nil
}

func (tx *Tx) indexPut(scoped string, id iid.VertexIID) {
	if tx.index != nil {
		_ = tx.index.Put([]byte(scoped), id.Bytes())
	}
}

func (tx *Tx) indexDelete(scoped string) {
	if tx.index != nil {
		_ = tx.index.Delete([]byte(scoped))
	}
}

// renameType implements §4.3's four-step atomic rename: verify the new label
// is free, write the new index entry and the label/scope properties, then
// delete the old index entry last, so an observer within the same
// transaction never sees a state where neither entry resolves.
func (tx *Tx) renameType(t *TypeVertex, newLabel, newScope string) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	oldScoped := t.ScopedLabel()
	newScoped := scopedLabel(newScope, newLabel)
	if newScoped == oldScoped {
		return nil
	}
	if existing, ok, err := tx.TypeByLabel(newScoped); err != nil {
		return err
	} else if ok && !existing.IID().Equal(t.IID()) {
		return schemaMutationErrf("type %q already exists", newScoped)
	}

	t.setProperty(iid.LabelInfix, []byte(newLabel))
	if newScope != "" {
		t.setProperty(iid.ScopeInfix, []byte(newScope))
	} else {
		t.deleteProperty(iid.ScopeInfix)
	}
	tx.indexPut(newScoped, t.IID())
	if !t.isNew {
		if err := tx.putRaw(append(append([]byte{}, t.IID()...), iid.LabelInfix), []byte(newLabel)); err != nil {
			return err
		}
		if err := tx.indexPersist(newScoped, t.IID()); err != nil {
			return err
		}
	}
	tx.indexDelete(oldScoped)
	if !t.isNew {
		if err := tx.indexPersistDelete(oldScoped); err != nil {
			return err
		}
	}
	return nil
}

// setSupertype creates a SUB edge from t to super. The cycle check itself
// lives in Adjacency.put, since a caller can also reach it directly through
// t.Outs().Put(iid.SUB, ...); this is just the ergonomic, TypeVertex-typed
// entry point, matching SetLabel/SetScope's relationship to renameType.
func (tx *Tx) setSupertype(t, super *TypeVertex) (*Edge, error) {
	return t.Outs().Put(iid.SUB, super.IID(), false)
}

// reachesViaSub reports whether target is reachable from start by following
// zero or more outgoing SUB edges, i.e. whether start already has target
// somewhere in its supertype chain. visited guards the walk against looping
// forever should the graph already (illegally) contain a cycle.
func (tx *Tx) reachesViaSub(start, target iid.VertexIID) (bool, error) {
	visited := map[string]bool{}
	queue := []iid.VertexIID{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		key := string(id)
		if visited[key] {
			continue
		}
		visited[key] = true
		if id.Equal(target) {
			return true, nil
		}
		adj, err := tx.adjacencyFor(id, iid.Forward)
		if err != nil {
			return false, err
		}
		if adj == nil {
			continue
		}
		stream := adj.EdgeStream(iid.SUB)
		for stream.HasNext() {
			queue = append(queue, stream.Next().To())
		}
		stream.Recycle()
	}
	return false, nil
}

func (tx *Tx) indexPersist(scoped string, id iid.VertexIID) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	if err := tx.index.Put([]byte(scoped), id.Bytes()); err != nil {
		return storageErrf("put type index", err)
	}
	return nil
}

func (tx *Tx) indexPersistDelete(scoped string) error {
	if err := tx.index.Delete([]byte(scoped)); err != nil {
		return storageErrf("delete type index", err)
	}
	return nil
}

// deleteVertex removes v: its adjacencies (both directions, mirrored onto
// neighbours), its property keys, its TYPE_INDEX entry if it is a type, and
// its own existence key.
func (tx *Tx) deleteVertex(vb *vertexBase, v Vertex) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	if vb.deleted {
		return nil
	}
	if err := v.Outs().DeleteAll(); err != nil {
		return err
	}
	if err := v.Ins().DeleteAll(); err != nil {
		return err
	}
	if tv, ok := v.(*TypeVertex); ok {
		scoped := tv.ScopedLabel()
		tx.indexDelete(scoped)
		if !vb.isNew {
			if err := tx.indexPersistDelete(scoped); err != nil {
				return err
			}
		}
	}
	if !vb.isNew {
		for _, infix := range []byte{iid.LabelInfix, iid.ScopeInfix, iid.AbstractInfix, iid.ValueTypeInfix, iid.RegexInfix, iid.ValueInfix} {
			_ = tx.deleteRaw(append(append([]byte{}, vb.id...), infix))
		}
		if err := tx.deleteRaw(vb.id.Bytes()); err != nil {
			return err
		}
	}
	vb.deleted = true
	vb.propsSet = nil
	tx.mu.Lock()
	delete(tx.byIID, string(vb.id))
	tx.mu.Unlock()
	return nil
}

// commitVertex persists a single vertex's existence key and buffered
// property writes, then commits both of its adjacencies.
func (tx *Tx) commitVertex(vb *vertexBase) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	if vb.deleted {
		return nil
	}
	if err := tx.putRaw(vb.id.Bytes(), []byte{}); err != nil {
		return err
	}
	for infix, value := range vb.propsSet {
		if err := tx.putRaw(append(append([]byte{}, vb.id...), infix), value); err != nil {
			return err
		}
	}
	for infix := range vb.propsDeleted {
		if err := tx.deleteRaw(append(append([]byte{}, vb.id...), infix)); err != nil {
			return err
		}
	}
	vb.propsSet = nil
	vb.propsDeleted = nil
	vb.isNew = false
	vb.modified = false

	if err := vb.outs.Commit(); err != nil {
		return err
	}
	if err := vb.ins.Commit(); err != nil {
		return err
	}
	return nil
}

// Commit flushes every touched vertex's buffered state to storage and
// commits the underlying storage transaction. Atomic at the storage façade
// level: either every write lands or none do.
func (tx *Tx) Commit() error {
	if tx.done {
		return stateErrf(nil, "transaction already closed")
	}
	if err := tx.requireWritable(); err != nil {
		return err
	}
	tx.mu.Lock()
	touched := make([]Vertex, 0, len(tx.byIID))
	for _, v := range tx.byIID {
		touched = append(touched, v)
	}
	tx.mu.Unlock()
	for _, v := range touched {
		switch vv := v.(type) {
		case *TypeVertex:
			if err := tx.commitVertex(&vv.vertexBase); err != nil {
				return err
			}
		case *ThingVertex:
			if err := tx.commitVertex(&vv.vertexBase); err != nil {
				return err
			}
		}
	}
	if err := tx.graph.keygen.Flush(tx.storeTx); err != nil {
		return storageErrf("flush keygen", err)
	}
	if err := tx.storeTx.Commit(); err != nil {
		return storageErrf("commit", err)
	}
	tx.done = true
	return nil
}

// Close rolls back any uncommitted work. Safe to call after Commit.
func (tx *Tx) Close() error {
	if tx.done {
		return nil
	}
	tx.done = true
	if err := tx.storeTx.Rollback(); err != nil {
		return storageErrf("rollback", err)
	}
	return nil
}
