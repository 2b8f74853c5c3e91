package ed448

import (
	"crypto/rand"

	"github.com/cloudflare/circl/ecc/goldilocks"
)

// Scalar is an exponent in the prime-order Goldilocks subgroup,
// backing both the ring signature's random commitments/responses and
// the ratchet's ECDH scalar multiplications.
type Scalar struct{ s goldilocks.Scalar }

// Point is an element of the prime-order Goldilocks subgroup.
type Point struct{ p goldilocks.Point }

// RandomScalar draws a uniformly random scalar from the CSPRNG, used
// for ephemeral DAKE keys and ring-signature commitments.
func RandomScalar() (*Scalar, error) {
	var buf [ScalarSize]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, err
	}
	var s goldilocks.Scalar
	s.FromBytes(buf[:])
	return &Scalar{s: s}, nil
}

// ScalarFromBytes reduces a wide byte string into a scalar mod the
// subgroup order, used to turn a KDF/hash output into a challenge.
func ScalarFromBytes(b []byte) *Scalar {
	var s goldilocks.Scalar
	s.FromBytes(b)
	return &Scalar{s: s}
}

// Bytes returns the 57-byte little-endian scalar encoding.
func (s *Scalar) Bytes() []byte {
	b := s.s.ToBytes()
	out := make([]byte, ScalarSize)
	copy(out, b)
	return out
}

// Add returns s + other mod L.
func (s *Scalar) Add(other *Scalar) *Scalar {
	var r goldilocks.Scalar
	r.Add(&s.s, &other.s)
	return &Scalar{s: r}
}

// Sub returns s - other mod L.
func (s *Scalar) Sub(other *Scalar) *Scalar {
	var r goldilocks.Scalar
	r.Sub(&s.s, &other.s)
	return &Scalar{s: r}
}

// Mul returns s * other mod L.
func (s *Scalar) Mul(other *Scalar) *Scalar {
	var r goldilocks.Scalar
	r.Mul(&s.s, &other.s)
	return &Scalar{s: r}
}

// BasePoint returns the Goldilocks subgroup generator.
func BasePoint() *Point {
	p := goldilocks.Generator()
	return &Point{p: *p}
}

// ScalarBaseMult returns s * G.
func ScalarBaseMult(s *Scalar) *Point {
	var r goldilocks.Point
	r.ScalarBaseMult(&s.s)
	return &Point{p: r}
}

// ScalarMult returns s * P.
func ScalarMult(s *Scalar, p *Point) *Point {
	var r goldilocks.Point
	r.ScalarMult(&s.s, &p.p)
	return &Point{p: r}
}

// Add returns p + q.
func (p *Point) Add(q *Point) *Point {
	var r goldilocks.Point
	r.Add(&p.p, &q.p)
	return &Point{p: r}
}

// Bytes returns the 57-byte compressed point encoding.
func (p *Point) Bytes() []byte {
	b, _ := p.p.MarshalBinary()
	out := make([]byte, PointSize)
	copy(out, b)
	return out
}

// PointFromBytes decodes a compressed point, rejecting non-canonical
// encodings (spec.md §4.1: "fail closed on ... non-canonical points").
func PointFromBytes(b []byte) (*Point, error) {
	if len(b) != PointSize {
		return nil, ErrInvalidPoint
	}
	var p goldilocks.Point
	if err := p.UnmarshalBinary(b); err != nil {
		return nil, ErrInvalidPoint
	}
	if !p.IsOnCurve() {
		return nil, ErrInvalidPoint
	}
	return &Point{p: p}, nil
}

// PublicFromPoint narrows a Point back to the wire PublicKey type
// used by signing keys and profile records.
func PublicFromPoint(p *Point) PublicKey {
	var pk PublicKey
	copy(pk[:], p.Bytes())
	return pk
}

// PointFromPublic widens a PublicKey into group-arithmetic form.
func PointFromPublic(pub PublicKey) (*Point, error) {
	return PointFromBytes(pub[:])
}
