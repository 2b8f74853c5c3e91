package wire

import (
	"otrng/crypto/ed448"
	"otrng/crypto/ringsig"
	"otrng/otrerr"
)

// PubKeyType tags which kind of Ed448 public key a record holds
// (spec.md §4.1).
type PubKeyType uint16

const (
	PubKeyTypeIdentity    PubKeyType = 0x0010
	PubKeyTypeForging     PubKeyType = 0x0011
	PubKeyTypeSharedPrekey PubKeyType = 0x0012
)

// Point appends a 57-byte compressed Ed448 point.
func (e *Encoder) Point(pub ed448.PublicKey) *Encoder {
	return e.Raw(pub[:])
}

// Point reads a 57-byte compressed Ed448 point, rejecting a
// non-canonical encoding immediately (fail closed).
func (d *Decoder) Point() (ed448.PublicKey, error) {
	var out ed448.PublicKey
	b, err := d.Raw(ed448.PointSize)
	if err != nil {
		return out, err
	}
	if _, err := ed448.PointFromBytes(b); err != nil {
		return out, otrerr.Malformed
	}
	copy(out[:], b)
	return out, nil
}

// PubKeyRecord appends a 2-byte type tag followed by the point.
func (e *Encoder) PubKeyRecord(typ PubKeyType, pub ed448.PublicKey) *Encoder {
	return e.Uint16(uint16(typ)).Point(pub)
}

// PubKeyRecord reads a tagged public-key record, failing closed on an
// unrecognized type tag.
func (d *Decoder) PubKeyRecord() (PubKeyType, ed448.PublicKey, error) {
	var zero ed448.PublicKey
	tag, err := d.Uint16()
	if err != nil {
		return 0, zero, err
	}
	typ := PubKeyType(tag)
	switch typ {
	case PubKeyTypeIdentity, PubKeyTypeForging, PubKeyTypeSharedPrekey:
	default:
		return 0, zero, otrerr.Malformed
	}
	pub, err := d.Point()
	if err != nil {
		return 0, zero, err
	}
	return typ, pub, nil
}

// Scalar appends a 57-byte little-endian Ed448 scalar.
func (e *Encoder) Scalar(s *ed448.Scalar) *Encoder {
	return e.Raw(s.Bytes())
}

// Scalar reads a 57-byte Ed448 scalar.
func (d *Decoder) Scalar() (*ed448.Scalar, error) {
	b, err := d.Raw(ed448.ScalarSize)
	if err != nil {
		return nil, err
	}
	return ed448.ScalarFromBytes(b), nil
}

// RingSig appends the six-scalar (c1,r1,c2,r2,c3,r3) transcript,
// 342 bytes on the wire (spec.md §4.1).
func (e *Encoder) RingSig(sig *ringsig.Sig) *Encoder {
	return e.Scalar(sig.C1).Scalar(sig.R1).Scalar(sig.C2).Scalar(sig.R2).Scalar(sig.C3).Scalar(sig.R3)
}

// RingSig reads a ring-signature transcript.
func (d *Decoder) RingSig() (*ringsig.Sig, error) {
	var err error
	sig := &ringsig.Sig{}
	if sig.C1, err = d.Scalar(); err != nil {
		return nil, err
	}
	if sig.R1, err = d.Scalar(); err != nil {
		return nil, err
	}
	if sig.C2, err = d.Scalar(); err != nil {
		return nil, err
	}
	if sig.R2, err = d.Scalar(); err != nil {
		return nil, err
	}
	if sig.C3, err = d.Scalar(); err != nil {
		return nil, err
	}
	if sig.R3, err = d.Scalar(); err != nil {
		return nil, err
	}
	return sig, nil
}

// DHPublic appends a DH public key as an MPI.
func (e *Encoder) DHPublic(b []byte) *Encoder {
	return e.MPI(b)
}

// DHPublic reads a DH public key MPI.
func (d *Decoder) DHPublic() ([]byte, error) {
	return d.MPI()
}
