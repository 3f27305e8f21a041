package sortediter

import (
	"log/slog"

	"github.com/kestrelgraph/hypercore/internal/storekv"
)

// KVDecode turns a raw (key, value) pair from storage into a typed element.
type KVDecode[T any] func(key, value []byte) T

// KVEncodeKey turns a typed element into the storage key used to seek to it.
type KVEncodeKey[T any] func(v T) []byte

// kvSource adapts a forward ByteRangeCursor into a Source[T], letting a
// storage prefix scan participate in Map/Merge/Intersect/Distinct pipelines
// alongside in-memory buffered streams.
type kvSource[T any] struct {
	cur    *ByteRangeCursor
	decode KVDecode[T]
	encode KVEncodeKey[T]
}

// NewKVSource builds a forwardable Iter[T] over a ByteRange scan of bucket,
// decoding each (key, value) pair via decode.
func NewKVSource[T any](cmp Cmp[T], bucket storekv.Bucket, rang ByteRange, decode KVDecode[T], encode KVEncodeKey[T], logger *slog.Logger) *Iter[T] {
	src := &kvSource[T]{
		cur:    rang.NewCursor(bucket.Cursor(), logger),
		decode: decode,
		encode: encode,
	}
	return New(cmp, src)
}

func (s *kvSource[T]) Fetch() (T, bool) {
	var zero T
	if !s.cur.Next() {
		return zero, false
	}
	return s.decode(s.cur.Key(), s.cur.Value()), true
}

func (s *kvSource[T]) SeekSource(target T) {
	s.cur.Seek(s.encode(target))
}

func (s *kvSource[T]) Close() {}
