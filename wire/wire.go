// Package wire implements the OTRv4 on-the-wire encoding of spec.md
// §4.1: fixed-width big-endian integers, length-prefixed byte strings,
// Ed448 points/scalars, DH MPIs, and ring-signature transcripts. Every
// decoder fails closed on truncation, unknown type tags, non-canonical
// points, or length overflow, never partially consuming malformed
// input.
package wire

import (
	"encoding/binary"

	"otrng/otrerr"
)

// Encoder accumulates a wire message by appending fixed-width fields,
// mirroring the teacher's pattern of building up a byte slice field by
// field rather than reflecting over a struct.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

func (e *Encoder) Bytes() []byte { return e.buf }

// Byte appends a single byte.
func (e *Encoder) Byte(b byte) *Encoder {
	e.buf = append(e.buf, b)
	return e
}

// Uint16 appends a big-endian 16-bit integer.
func (e *Encoder) Uint16(v uint16) *Encoder {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

// Uint32 appends a big-endian 32-bit integer.
func (e *Encoder) Uint32(v uint32) *Encoder {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

// Uint64 appends a big-endian 64-bit integer.
func (e *Encoder) Uint64(v uint64) *Encoder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

// Raw appends bytes verbatim, with no length prefix.
func (e *Encoder) Raw(b []byte) *Encoder {
	e.buf = append(e.buf, b...)
	return e
}

// Data appends a 4-byte unsigned length prefix followed by the raw bytes.
func (e *Encoder) Data(b []byte) *Encoder {
	e.Uint32(uint32(len(b)))
	e.buf = append(e.buf, b...)
	return e
}

// MPI appends a 4-byte length followed by the canonical minimal
// unsigned big-endian representation (no leading zero byte, empty for
// zero), matching spec.md §4.1's `MPI` definition.
func (e *Encoder) MPI(b []byte) *Encoder {
	trimmed := trimLeadingZeros(b)
	e.Data(trimmed)
	return e
}

func trimLeadingZeros(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	return b[i:]
}

// Decoder consumes a wire message front to back, failing closed the
// moment an operation runs past the end of the buffer.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps b for sequential decoding.
func NewDecoder(b []byte) *Decoder { return &Decoder{buf: b} }

// Remaining returns the number of unconsumed bytes.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

func (d *Decoder) require(n int) error {
	if d.Remaining() < n {
		return otrerr.Malformed
	}
	return nil
}

// Byte reads a single byte.
func (d *Decoder) Byte() (byte, error) {
	if err := d.require(1); err != nil {
		return 0, err
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

// Uint16 reads a big-endian 16-bit integer.
func (d *Decoder) Uint16() (uint16, error) {
	if err := d.require(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(d.buf[d.pos:])
	d.pos += 2
	return v, nil
}

// Uint32 reads a big-endian 32-bit integer.
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

// Uint64 reads a big-endian 64-bit integer.
func (d *Decoder) Uint64() (uint64, error) {
	if err := d.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

// Raw reads exactly n raw bytes.
func (d *Decoder) Raw(n int) ([]byte, error) {
	if err := d.require(n); err != nil {
		return nil, err
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// maxDataLen bounds a single `data` field to guard against a
// maliciously large length prefix causing an unbounded allocation
// (spec.md §4.1: "fail closed on ... length overflow").
const maxDataLen = 64 * 1024 * 1024

// Data reads a 4-byte length prefix then that many raw bytes.
func (d *Decoder) Data() ([]byte, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if n > maxDataLen {
		return nil, otrerr.Malformed
	}
	return d.Raw(int(n))
}

// MPI reads a `data`-framed canonical minimal unsigned integer,
// rejecting a non-canonical leading zero byte.
func (d *Decoder) MPI() ([]byte, error) {
	b, err := d.Data()
	if err != nil {
		return nil, err
	}
	if len(b) > 0 && b[0] == 0 {
		return nil, otrerr.Malformed
	}
	return b, nil
}

// Done reports whether the decoder has consumed every byte; callers
// use it to reject trailing garbage after a message's known fields.
func (d *Decoder) Done() bool { return d.Remaining() == 0 }
