// Package keygen is the per-prefix monotonic instance-id generator scoped to
// a database handle, the graph's only piece of process-local mutable state
// outside a transaction's own buffers.
package keygen

import (
	"sync"

	"github.com/kestrelgraph/hypercore/internal/storekv"
	"github.com/kestrelgraph/hypercore/iid"
	"github.com/vmihailenco/msgpack/v5"
)

const stateKey = "keygen"

// KeyGen hands out strictly increasing instance ids, one counter per vertex
// kind, and persists the high-water mark so ids are never reused across a
// close/reopen even though it keeps its live counters in memory.
type KeyGen struct {
	mu   sync.Mutex
	next map[iid.Kind]uint64
}

// New builds an empty generator; call Load to seed it from storage.
func New() *KeyGen {
	return &KeyGen{next: make(map[iid.Kind]uint64)}
}

// Load seeds the generator from the store's persisted high-water marks, if
// any. Safe to call once at database open.
func (g *KeyGen) Load(tx storekv.Tx) error {
	b, err := tx.Meta()
	if err != nil {
		return err
	}
	if b == nil {
		return nil
	}
	raw := b.Get([]byte(stateKey))
	if raw == nil {
		return nil
	}
	var state map[byte]uint64
	if err := msgpack.Unmarshal(raw, &state); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for k, v := range state {
		g.next[iid.Kind(k)] = v
	}
	return nil
}

// Seed raises the in-memory counter for kind to at least min, without
// touching storage. Nothing in this module calls it; Load is the only path
// that seeds counters at database open.
func (g *KeyGen) Seed(kind iid.Kind, min uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next[kind] < min {
		g.next[kind] = min
	}
}

// Next returns the next id for kind and reserves it.
func (g *KeyGen) Next(kind iid.Kind) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next[kind]++
	return g.next[kind]
}

// Flush persists the current high-water marks. Call on every commit that
// consumed new ids.
func (g *KeyGen) Flush(tx storekv.Tx) error {
	g.mu.Lock()
	state := make(map[byte]uint64, len(g.next))
	for k, v := range g.next {
		state[byte(k)] = v
	}
	g.mu.Unlock()

	b, err := tx.Meta()
	if err != nil {
		return err
	}
	raw, err := msgpack.Marshal(state)
	if err != nil {
		return err
	}
	return b.Put([]byte(stateKey), raw)
}
