package storekv

import (
	"bytes"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// OpenMem returns a transient in-memory Store, intended for tests. Each
// transaction snapshots the store's three collections for isolation
// (simplicity over efficiency, matching the ambient in-memory test backend).
func OpenMem() Store {
	s := &memStore{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

type memStore struct {
	mu       sync.Mutex
	cond     *sync.Cond
	vertices *memBucket
	index    *memBucket
	meta     *memBucket
	closed   bool
	writer   bool
}

func (s *memStore) BeginTx(writable bool) (Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("storekv: store closed")
	}
	if writable {
		for s.writer && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			return nil, fmt.Errorf("storekv: store closed")
		}
		s.writer = true
	}
	return &memTx{
		writable: writable,
		base:     s,
		vertices: s.vertices.clone(),
		index:    s.index.clone(),
		meta:     s.meta.clone(),
	}, nil
}

func (s *memStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.vertices, s.index, s.meta = nil, nil, nil
	if s.cond != nil {
		s.cond.Broadcast()
	}
	return nil
}

type memTx struct {
	base     *memStore
	writable bool
	vertices *memBucket
	index    *memBucket
	meta     *memBucket
	closed   bool
}

func (tx *memTx) Writable() bool { return tx.writable }

func (tx *memTx) closeLocked() {
	if tx.closed {
		return
	}
	tx.closed = true
	if tx.writable {
		tx.base.writer = false
		tx.base.cond.Broadcast()
	}
}

func (tx *memTx) Vertices() (Bucket, error) { return tx.namedBucket(&tx.vertices) }

func (tx *memTx) Index() (Bucket, error) { return tx.namedBucket(&tx.index) }

func (tx *memTx) Meta() (Bucket, error) { return tx.namedBucket(&tx.meta) }

func (tx *memTx) namedBucket(slot **memBucket) (Bucket, error) {
	if tx.closed {
		panic("storekv: tx is closed")
	}
	if *slot == nil {
		if !tx.writable {
			return nil, nil
		}
		*slot = &memBucket{}
	}
	return memBucketHandle{tx: tx, b: *slot}, nil
}

func (tx *memTx) Commit() error {
	if tx.closed {
		return nil
	}
	if !tx.writable {
		return ErrNotWritable
	}
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	if tx.base.closed {
		tx.closeLocked()
		return fmt.Errorf("storekv: store closed")
	}
	tx.base.vertices, tx.base.index, tx.base.meta = tx.vertices, tx.index, tx.meta
	tx.closeLocked()
	return nil
}

func (tx *memTx) Rollback() error {
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	tx.closeLocked()
	return nil
}

type memBucket struct {
	items []memKV // sorted by key
}

func (b *memBucket) clone() *memBucket {
	if b == nil {
		return nil
	}
	out := &memBucket{items: make([]memKV, len(b.items))}
	for i, kv := range b.items {
		out.items[i] = memKV{key: slices.Clone(kv.key), value: slices.Clone(kv.value)}
	}
	return out
}

type memKV struct {
	key   []byte
	value []byte
}

type memBucketHandle struct {
	tx *memTx
	b  *memBucket
}

func (b memBucketHandle) Get(key []byte) []byte {
	i, ok := b.find(key)
	if !ok {
		return nil
	}
	return b.b.items[i].value
}

func (b memBucketHandle) Put(key, value []byte) error {
	if !b.tx.writable {
		return ErrNotWritable
	}
	key = slices.Clone(key)
	value = slices.Clone(value)

	i, ok := b.find(key)
	if ok {
		b.b.items[i].value = value
		return nil
	}
	b.b.items = slices.Insert(b.b.items, i, memKV{key: key, value: value})
	return nil
}

func (b memBucketHandle) Delete(key []byte) error {
	if !b.tx.writable {
		return ErrNotWritable
	}
	i, ok := b.find(key)
	if !ok {
		return nil
	}
	b.b.items = slices.Delete(b.b.items, i, i+1)
	return nil
}

func (b memBucketHandle) Cursor() Cursor {
	return &memCursor{b: b.b, pos: -1}
}

func (b memBucketHandle) KeyCount() int { return len(b.b.items) }

func (b memBucketHandle) find(key []byte) (idx int, ok bool) {
	items := b.b.items
	i := sort.Search(len(items), func(i int) bool {
		return bytes.Compare(items[i].key, key) >= 0
	})
	if i < len(items) && bytes.Equal(items[i].key, key) {
		return i, true
	}
	return i, false
}

type memCursor struct {
	b   *memBucket
	pos int
}

func (c *memCursor) First() ([]byte, []byte) {
	c.pos = 0
	return c.at(c.pos)
}

func (c *memCursor) Last() ([]byte, []byte) {
	c.pos = len(c.b.items) - 1
	return c.at(c.pos)
}

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	items := c.b.items
	c.pos = sort.Search(len(items), func(i int) bool {
		return bytes.Compare(items[i].key, seek) >= 0
	})
	return c.at(c.pos)
}

// SeekLast finds the largest key under prefix. items is a flat sorted slice
// rather than a tree, so this is a direct binary search for the first key
// past the prefix range followed by one step back, with no successor-key
// arithmetic needed (unlike the bbolt cursor, which has to compute one).
func (c *memCursor) SeekLast(prefix []byte) ([]byte, []byte) {
	if len(prefix) == 0 {
		return c.Last()
	}
	items := c.b.items
	end := sort.Search(len(items), func(i int) bool {
		return !bytes.HasPrefix(items[i].key, prefix) && bytes.Compare(items[i].key, prefix) >= 0
	})
	c.pos = end - 1
	return c.at(c.pos)
}

func (c *memCursor) Next() ([]byte, []byte) {
	c.pos++
	return c.at(c.pos)
}

func (c *memCursor) Prev() ([]byte, []byte) {
	c.pos--
	return c.at(c.pos)
}

func (c *memCursor) at(pos int) ([]byte, []byte) {
	if pos < 0 || pos >= len(c.b.items) {
		return nil, nil
	}
	kv := c.b.items[pos]
	return kv.key, kv.value
}
