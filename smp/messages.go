package smp

import (
	"otrng/crypto/ed448"
	"otrng/wire"
)

// SMP1 opens an exchange: A = r_a*G plus a proof of knowledge of r_a,
// with an optional human-readable question (spec.md §4.7).
type SMP1 struct {
	Question string
	A        ed448.PublicKey
	Proof    *SingleProof
}

// SMP2 answers an SMP1: B = r_b*G and Tb = r_b*A + x_b*G, with a
// compound proof of knowledge of (r_b, x_b).
type SMP2 struct {
	B     ed448.PublicKey
	T     ed448.PublicKey
	Proof *DualProof
}

// SMP3 completes the initiator's side: Ta = r_a*B + x_a*G, with a
// compound proof of knowledge of (r_a, x_a).
type SMP3 struct {
	T     ed448.PublicKey
	Proof *DualProof
}

// SMP4 closes the exchange. Success is informational only: each party
// determines its own result from its locally-held Ta/Tb, never from
// the peer's say-so, so a dishonest SMP4 cannot manufacture a false
// SUCCEEDED on the other side.
type SMP4 struct {
	Success bool
}

func (m *SMP1) Serialize() []byte {
	e := wire.NewEncoder()
	e.Data([]byte(m.Question))
	e.Point(m.A)
	e.Scalar(m.Proof.C)
	e.Scalar(m.Proof.S)
	return e.Bytes()
}

func DecodeSMP1(b []byte) (*SMP1, error) {
	d := wire.NewDecoder(b)
	q, err := d.Data()
	if err != nil {
		return nil, err
	}
	a, err := d.Point()
	if err != nil {
		return nil, err
	}
	c, err := d.Scalar()
	if err != nil {
		return nil, err
	}
	s, err := d.Scalar()
	if err != nil {
		return nil, err
	}
	return &SMP1{Question: string(q), A: a, Proof: &SingleProof{C: c, S: s}}, nil
}

func (m *SMP2) Serialize() []byte {
	e := wire.NewEncoder()
	e.Point(m.B)
	e.Point(m.T)
	e.Scalar(m.Proof.C)
	e.Scalar(m.Proof.S1)
	e.Scalar(m.Proof.S2)
	return e.Bytes()
}

func DecodeSMP2(b []byte) (*SMP2, error) {
	d := wire.NewDecoder(b)
	bPub, err := d.Point()
	if err != nil {
		return nil, err
	}
	t, err := d.Point()
	if err != nil {
		return nil, err
	}
	c, err := d.Scalar()
	if err != nil {
		return nil, err
	}
	s1, err := d.Scalar()
	if err != nil {
		return nil, err
	}
	s2, err := d.Scalar()
	if err != nil {
		return nil, err
	}
	return &SMP2{B: bPub, T: t, Proof: &DualProof{C: c, S1: s1, S2: s2}}, nil
}

func (m *SMP3) Serialize() []byte {
	e := wire.NewEncoder()
	e.Point(m.T)
	e.Scalar(m.Proof.C)
	e.Scalar(m.Proof.S1)
	e.Scalar(m.Proof.S2)
	return e.Bytes()
}

func DecodeSMP3(b []byte) (*SMP3, error) {
	d := wire.NewDecoder(b)
	t, err := d.Point()
	if err != nil {
		return nil, err
	}
	c, err := d.Scalar()
	if err != nil {
		return nil, err
	}
	s1, err := d.Scalar()
	if err != nil {
		return nil, err
	}
	s2, err := d.Scalar()
	if err != nil {
		return nil, err
	}
	return &SMP3{T: t, Proof: &DualProof{C: c, S1: s1, S2: s2}}, nil
}

func (m *SMP4) Serialize() []byte {
	e := wire.NewEncoder()
	if m.Success {
		e.Byte(1)
	} else {
		e.Byte(0)
	}
	return e.Bytes()
}

func DecodeSMP4(b []byte) (*SMP4, error) {
	d := wire.NewDecoder(b)
	v, err := d.Byte()
	if err != nil {
		return nil, err
	}
	return &SMP4{Success: v != 0}, nil
}
