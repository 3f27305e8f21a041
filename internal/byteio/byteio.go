// Package byteio provides small fixed-width and varint byte-buffer helpers
// used by the iid package.
package byteio

import (
	"encoding/binary"
	"fmt"
)

// Builder accumulates bytes for a composite key or value.
type Builder struct {
	Buf []byte
}

func NewBuilder(capHint int) *Builder {
	return &Builder{Buf: make([]byte, 0, capHint)}
}

func (b *Builder) Bytes() []byte { return b.Buf }

func (b *Builder) Len() int { return len(b.Buf) }

func (b *Builder) AppendByte(v byte) *Builder {
	b.Buf = append(b.Buf, v)
	return b
}

func (b *Builder) AppendRaw(v []byte) *Builder {
	b.Buf = append(b.Buf, v...)
	return b
}

// AppendUint64 appends v as an 8-byte big-endian segment. Big-endian is
// required so that byte-lexicographic order equals numeric order.
func (b *Builder) AppendUint64(v uint64) *Builder {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	b.Buf = append(b.Buf, tmp[:]...)
	return b
}

// AppendUint16 appends v as a 2-byte big-endian segment.
func (b *Builder) AppendUint16(v uint16) *Builder {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	b.Buf = append(b.Buf, tmp[:]...)
	return b
}

func (b *Builder) AppendUvarint(v uint64) *Builder {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	b.Buf = append(b.Buf, tmp[:n]...)
	return b
}

func (b *Builder) AppendVarBytes(v []byte) *Builder {
	b.AppendUvarint(uint64(len(v)))
	b.Buf = append(b.Buf, v...)
	return b
}

// Decoder reads sequential fields off a byte slice, tracking the original
// slice for error offsets.
type Decoder struct {
	orig []byte
	buf  []byte
}

func NewDecoder(buf []byte) *Decoder {
	return &Decoder{orig: buf, buf: buf}
}

func (d *Decoder) Off() int { return len(d.orig) - len(d.buf) }

func (d *Decoder) Remaining() []byte { return d.buf }

func (d *Decoder) Len() int { return len(d.buf) }

func (d *Decoder) Raw(n int) ([]byte, error) {
	if len(d.buf) < n {
		return nil, fmt.Errorf("byteio: at offset %d: need %d bytes, have %d", d.Off(), n, len(d.buf))
	}
	v := d.buf[:n]
	d.buf = d.buf[n:]
	return v, nil
}

func (d *Decoder) Byte() (byte, error) {
	v, err := d.Raw(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func (d *Decoder) Uint64() (uint64, error) {
	v, err := d.Raw(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

func (d *Decoder) Uint16() (uint16, error) {
	v, err := d.Raw(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(v), nil
}

func (d *Decoder) Uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		return 0, fmt.Errorf("byteio: at offset %d: invalid uvarint", d.Off())
	}
	d.buf = d.buf[n:]
	return v, nil
}

func (d *Decoder) VarBytes() ([]byte, error) {
	n, err := d.Uvarint()
	if err != nil {
		return nil, err
	}
	return d.Raw(int(n))
}
