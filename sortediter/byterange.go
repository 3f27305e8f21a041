package sortediter

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/kestrelgraph/hypercore/internal/storekv"
)

const debugLogRawScans = false

// ByteRange defines a range of byte strings, generalized from the ambient
// storage layer's RawRange. The constructors use the same mnemonics: O means
// open, I means inclusive, E means exclusive; the first letter is for the
// lower bound, the second for the upper bound. The iterator algebra built on
// top of ByteRange only ever runs forward (§4.2); the underlying
// storekv.Cursor still exposes SeekLast for the rare direct storage-level
// reverse lookup, but ByteRange itself has no reverse mode to keep it in
// sync with.
type ByteRange struct {
	Prefix   []byte
	Lower    []byte
	Upper    []byte
	LowerInc bool
	UpperInc bool
}

func BytesOO() ByteRange         { return ByteRange{} }
func BytesIO(l []byte) ByteRange { return ByteRange{Lower: l, LowerInc: true} }
func BytesEO(l []byte) ByteRange { return ByteRange{Lower: l, LowerInc: false} }
func BytesOI(u []byte) ByteRange { return ByteRange{Upper: u, UpperInc: true} }
func BytesOE(u []byte) ByteRange { return ByteRange{Upper: u, UpperInc: false} }
func BytesPrefix(p []byte) ByteRange {
	return ByteRange{Prefix: p}
}
func (r ByteRange) Prefixed(p []byte) ByteRange { r.Prefix = p; return r }

func (r *ByteRange) start(bcur storekv.Cursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	var skipInitial bool
	lower := r.Lower
	if lower != nil {
		skipInitial = !r.LowerInc
		if r.Prefix != nil && !bytes.HasPrefix(lower, r.Prefix) {
			panic("sortediter: lower bound does not match prefix")
		}
	} else if r.Prefix != nil {
		lower = r.Prefix
	}
	if lower != nil {
		k, v = bcur.Seek(lower)
		if skipInitial && !bytes.HasPrefix(k, lower) {
			skipInitial = false
		}
	} else {
		k, v = bcur.First()
	}
	if debugLogRawScans {
		logger.LogAttrs(context.Background(), slog.LevelDebug, "sortediter.start", slog.String("key", hexstr(k)))
	}
	if k != nil && r.match(k, v) {
		if skipInitial {
			return r.next(bcur, logger)
		}
		return k, v
	}
	return nil, nil
}

func (r *ByteRange) next(bcur storekv.Cursor, logger *slog.Logger) ([]byte, []byte) {
	k, v := bcur.Next()
	if k != nil && r.match(k, v) {
		return k, v
	}
	return nil, nil
}

// seekForward moves the cursor to the smallest key >= target and re-applies
// the range bounds. Used to implement Source.SeekSource for storage-backed
// streams.
func (r *ByteRange) seekForward(bcur storekv.Cursor, target []byte) ([]byte, []byte) {
	k, v := bcur.Seek(target)
	if k != nil && r.match(k, v) {
		return k, v
	}
	return nil, nil
}

func (r *ByteRange) match(k, v []byte) bool {
	if r.Prefix != nil && !bytes.HasPrefix(k, r.Prefix) {
		return false
	}
	if upper := r.Upper; upper != nil {
		cmp := bytes.Compare(k, upper)
		if cmp > 0 || (cmp == 0 && !r.UpperInc) {
			return false
		}
	}
	return true
}

// ByteRangeCursor is a raw (key, value) cursor over a ByteRange, used
// directly by callers that just want bytes (the graph package's storage
// scans) without going through the T-typed Source/Iter machinery.
type ByteRangeCursor struct {
	rang   ByteRange
	bcur   storekv.Cursor
	logger *slog.Logger
	k, v   []byte
	init   bool
}

func (r ByteRange) NewCursor(bcur storekv.Cursor, logger *slog.Logger) *ByteRangeCursor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ByteRangeCursor{rang: r, bcur: bcur, logger: logger}
}

func (c *ByteRangeCursor) Next() bool {
	if c.init {
		c.k, c.v = c.rang.next(c.bcur, c.logger)
	} else {
		c.init = true
		c.k, c.v = c.rang.start(c.bcur, c.logger)
	}
	return c.k != nil
}

func (c *ByteRangeCursor) Key() []byte   { return c.k }
func (c *ByteRangeCursor) Value() []byte { return c.v }

// Seek moves the cursor directly to the smallest key >= target, discarding
// whatever was previously fetched.
func (c *ByteRangeCursor) Seek(target []byte) bool {
	c.init = true
	c.k, c.v = c.rang.seekForward(c.bcur, target)
	return c.k != nil
}

func hexstr(b []byte) string {
	if b == nil {
		return "<nil>"
	}
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hextable[c>>4]
		out[i*2+1] = hextable[c&0xf]
	}
	return string(out)
}
