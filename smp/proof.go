// Package smp implements the Socialist Millionaires' Protocol engine
// of spec.md §4.7: a four-message zero-knowledge equality-of-secrets
// proof, state-machined across EXPECT1..EXPECT4/SUCCEEDED/FAILED. The
// underlying proof system is a pair of Diffie-Hellman-masked group
// elements whose difference collapses to exactly (x_a - x_b)*G,
// verified by each side with compound Schnorr proofs of knowledge
// built the same way crypto/ringsig builds its ring-signature
// branches: commit, Fiat-Shamir challenge, response.
package smp

import (
	"otrng/crypto/ed448"
	"otrng/crypto/shake"
)

// SingleProof proves knowledge of the scalar r such that T = r*base,
// used for SMP1's bare commitment.
type SingleProof struct {
	C, S *ed448.Scalar
}

func proveSingle(base, t *ed448.Point, r *ed448.Scalar, usage shake.Usage) (*SingleProof, error) {
	k, err := ed448.RandomScalar()
	if err != nil {
		return nil, err
	}
	w := ed448.ScalarMult(k, base)
	c := challenge1(usage, base, t, w)
	s := k.Sub(c.Mul(r))
	return &SingleProof{C: c, S: s}, nil
}

func verifySingle(base, t *ed448.Point, proof *SingleProof, usage shake.Usage) bool {
	w := ed448.ScalarMult(proof.S, base).Add(ed448.ScalarMult(proof.C, t))
	c := challenge1(usage, base, t, w)
	return bytesEqual(c.Bytes(), proof.C.Bytes())
}

func challenge1(usage shake.Usage, base, t, w *ed448.Point) *ed448.Scalar {
	var buf []byte
	buf = append(buf, base.Bytes()...)
	buf = append(buf, t.Bytes()...)
	buf = append(buf, w.Bytes()...)
	digest := shake.Derive(usage, buf, 114)
	return ed448.ScalarFromBytes(digest)
}

// DualProof proves knowledge of (r1, r2) such that T = r1*base1 +
// r2*base2, used by SMP2 and SMP3 to bind a fresh blinding scalar and
// the local secret together in one transcript.
type DualProof struct {
	C, S1, S2 *ed448.Scalar
}

func proveDual(base1, base2, t *ed448.Point, r1, r2 *ed448.Scalar, usage shake.Usage) (*DualProof, error) {
	k1, err := ed448.RandomScalar()
	if err != nil {
		return nil, err
	}
	k2, err := ed448.RandomScalar()
	if err != nil {
		return nil, err
	}
	w := ed448.ScalarMult(k1, base1).Add(ed448.ScalarMult(k2, base2))
	c := challenge2(usage, base1, base2, t, w)
	s1 := k1.Sub(c.Mul(r1))
	s2 := k2.Sub(c.Mul(r2))
	return &DualProof{C: c, S1: s1, S2: s2}, nil
}

func verifyDual(base1, base2, t *ed448.Point, proof *DualProof, usage shake.Usage) bool {
	w := ed448.ScalarMult(proof.S1, base1).Add(ed448.ScalarMult(proof.S2, base2)).Add(ed448.ScalarMult(proof.C, t))
	c := challenge2(usage, base1, base2, t, w)
	return bytesEqual(c.Bytes(), proof.C.Bytes())
}

func challenge2(usage shake.Usage, base1, base2, t, w *ed448.Point) *ed448.Scalar {
	var buf []byte
	buf = append(buf, base1.Bytes()...)
	buf = append(buf, base2.Bytes()...)
	buf = append(buf, t.Bytes()...)
	buf = append(buf, w.Bytes()...)
	digest := shake.Derive(usage, buf, 114)
	return ed448.ScalarFromBytes(digest)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
