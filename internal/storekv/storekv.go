// Package storekv is the storage façade the hypergraph core is built on: a
// point get/put/delete interface plus a sorted, forwardable, seekable cursor
// over an ordered key-value store. Two backends are provided: a bbolt-backed
// one for real durability and an in-memory one for tests.
//
// A transaction exposes exactly the three collections the hypergraph ever
// opens — the vertex/property/edge-view key space, the scoped-label index,
// and the key generator's persisted high-water marks — directly as
// Vertices()/Index()/Meta() rather than through a general-purpose
// named-bucket registry; the domain has no notion of arbitrary or nested
// buckets, so the façade doesn't carry one either.
package storekv

import "errors"

// ErrNotWritable is returned by mutating calls on a read-only transaction.
var ErrNotWritable = errors.New("storekv: transaction is not writable")

const (
	verticesBucketName = "vertices"
	indexBucketName    = "index"
	metaBucketName      = "meta"
)

// Store represents a key-value storage backend (bbolt, in-memory, ...).
type Store interface {
	// BeginTx starts a new transaction.
	BeginTx(writable bool) (Tx, error)
	// Close closes the store.
	Close() error
}

// Tx represents a storage transaction over the three fixed collections.
type Tx interface {
	// Writable returns true if this is a writable transaction.
	Writable() bool

	// Vertices returns the vertex/property/edge-view bucket, creating it on
	// first access from a writable transaction. On a read-only transaction
	// it returns (nil, nil) if the bucket has never been created.
	Vertices() (Bucket, error)

	// Index returns the scoped-label secondary index bucket, under the same
	// lazy-creation rule as Vertices.
	Index() (Bucket, error)

	// Meta returns the key generator's persisted-state bucket, under the
	// same lazy-creation rule as Vertices.
	Meta() (Bucket, error)

	// Commit commits the transaction.
	Commit() error

	// Rollback aborts the transaction. Safe to call multiple times.
	Rollback() error
}

// Bucket represents a sorted key-value collection.
type Bucket interface {
	// Get retrieves a value by key. Returns nil if not found.
	Get(key []byte) []byte

	// Put stores a key-value pair.
	Put(key, value []byte) error

	// Delete removes a key. Deleting an absent key is a no-op.
	Delete(key []byte) error

	// Cursor returns a cursor for iteration. The cursor is only valid for the
	// lifetime of the enclosing transaction.
	Cursor() Cursor

	// KeyCount returns the number of keys in the bucket (best effort).
	KeyCount() int
}

// Cursor iterates over a sorted bucket. It tolerates concurrent writes to the
// bucket made by the same transaction at keys the cursor is not currently
// positioned on.
type Cursor interface {
	// First moves to the first key-value pair.
	First() (key, value []byte)

	// Last moves to the last key-value pair.
	Last() (key, value []byte)

	// Seek moves to the smallest key >= seek.
	Seek(seek []byte) (key, value []byte)

	// SeekLast moves to the largest key having the given prefix (or, if
	// prefix is empty, to the last key in the bucket).
	SeekLast(prefix []byte) (key, value []byte)

	// Next moves to the next key-value pair.
	Next() (key, value []byte)

	// Prev moves to the previous key-value pair.
	Prev() (key, value []byte)
}
