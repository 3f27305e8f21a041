package storekv

import (
	"bytes"

	"go.etcd.io/bbolt"
)

// OpenBolt opens (or creates) a bbolt-backed Store at path.
func OpenBolt(path string, opt *bbolt.Options) (Store, error) {
	bdb, err := bbolt.Open(path, 0666, opt)
	if err != nil {
		return nil, err
	}
	return &boltStore{bdb: bdb}, nil
}

type boltStore struct {
	bdb *bbolt.DB
}

func (s *boltStore) BeginTx(writable bool) (Tx, error) {
	btx, err := s.bdb.Begin(writable)
	if err != nil {
		return nil, err
	}
	return &boltTx{btx: btx}, nil
}

func (s *boltStore) Close() error { return s.bdb.Close() }

type boltTx struct {
	btx *bbolt.Tx
}

func (tx *boltTx) Writable() bool { return tx.btx.Writable() }

func (tx *boltTx) Vertices() (Bucket, error) { return tx.namedBucket(verticesBucketName) }

func (tx *boltTx) Index() (Bucket, error) { return tx.namedBucket(indexBucketName) }

func (tx *boltTx) Meta() (Bucket, error) { return tx.namedBucket(metaBucketName) }

func (tx *boltTx) namedBucket(name string) (Bucket, error) {
	if tx.btx.Writable() {
		b, err := tx.btx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return nil, err
		}
		return boltBucket{b: b}, nil
	}
	b := tx.btx.Bucket([]byte(name))
	if b == nil {
		return nil, nil
	}
	return boltBucket{b: b}, nil
}

func (tx *boltTx) Commit() error { return tx.btx.Commit() }

func (tx *boltTx) Rollback() error {
	err := tx.btx.Rollback()
	if err == bbolt.ErrTxClosed {
		return nil
	}
	return err
}

type boltBucket struct {
	b *bbolt.Bucket
}

func (b boltBucket) Get(key []byte) []byte { return b.b.Get(key) }

func (b boltBucket) Put(key, value []byte) error { return b.b.Put(key, value) }

func (b boltBucket) Delete(key []byte) error { return b.b.Delete(key) }

func (b boltBucket) Cursor() Cursor { return boltCursor{c: b.b.Cursor()} }

func (b boltBucket) KeyCount() int { return b.b.Stats().KeyN }

type boltCursor struct {
	c *bbolt.Cursor
}

func (c boltCursor) First() ([]byte, []byte) { return c.c.First() }

func (c boltCursor) Last() ([]byte, []byte) { return c.c.Last() }

func (c boltCursor) Seek(seek []byte) ([]byte, []byte) { return c.c.Seek(seek) }

// SeekLast finds the largest key under prefix by seeking one past the last
// possible key of that prefix and stepping back. Bumping the prefix by one
// (treating it as a big-endian integer) produces exactly that successor key
// for any prefix that isn't all 0xFF; the seek lands either on a key outside
// the prefix range or past the end of the bucket, and Prev() from there is
// the last matching key. An all-0xFF prefix has no successor to seek to, so
// that case walks forward from the prefix instead and backs up one step past
// the last key still inside it.
func (c boltCursor) SeekLast(prefix []byte) ([]byte, []byte) {
	if len(prefix) == 0 {
		return c.c.Last()
	}
	if successor, ok := prefixSuccessor(prefix); ok {
		if k, _ := c.c.Seek(successor); k == nil {
			return c.c.Last()
		}
		return c.c.Prev()
	}
	k, _ := c.c.Seek(prefix)
	for k != nil && bytes.HasPrefix(k, prefix) {
		k, _ = c.c.Next()
	}
	if k == nil {
		return c.c.Last()
	}
	return c.c.Prev()
}

func (c boltCursor) Next() ([]byte, []byte) { return c.c.Next() }

func (c boltCursor) Prev() ([]byte, []byte) { return c.c.Prev() }

// prefixSuccessor returns prefix treated as a big-endian integer and
// incremented by one, or ok=false if prefix is all 0xFF and has no successor
// of the same length.
func prefixSuccessor(prefix []byte) (successor []byte, ok bool) {
	successor = append([]byte(nil), prefix...)
	for i := len(successor) - 1; i >= 0; i-- {
		successor[i]++
		if successor[i] != 0 {
			return successor, true
		}
	}
	return nil, false
}
