// Package ringsig implements the triple-Schnorr ring signature
// spec.md §4.2 uses for DAKE authentication: given three public keys
// A1, A2, A3, a holder of exactly one matching secret produces a
// transcript proving "I know one of the three secrets" without
// revealing which, binding an arbitrary message t. This is the otrng
// analogue of the teacher's crypto/signer_schnorr package, generalized
// from a single-key Schnorr signature (kyber's sign/schnorr over
// Ed25519) to a 1-of-3 OR-proof over Ed448.
package ringsig

import (
	"errors"

	"otrng/crypto/ed448"
	"otrng/crypto/shake"
)

// Sig is the six-scalar transcript (c1,r1,c2,r2,c3,r3), 342 bytes on
// the wire (spec.md §4.1).
type Sig struct {
	C1, R1 *ed448.Scalar
	C2, R2 *ed448.Scalar
	C3, R3 *ed448.Scalar
}

// Size is the serialized length of a Sig: six 57-byte scalars.
const Size = 6 * ed448.ScalarSize

var ErrVerifyFailed = errors.New("ringsig: verification failed")

// Sign produces a ring signature binding message t, proving knowledge
// of secret for the keyholder at index `which` (0, 1, or 2) among
// pubs[0..2].
func Sign(pubs [3]ed448.PublicKey, which int, secret *ed448.Scalar, t []byte) (*Sig, error) {
	if which < 0 || which > 2 {
		return nil, errors.New("ringsig: which must be 0, 1, or 2")
	}

	var c, r [3]*ed448.Scalar
	var T [3]*ed448.Point

	A := [3]*ed448.Point{}
	for i := 0; i < 3; i++ {
		p, err := ed448.PointFromPublic(pubs[i])
		if err != nil {
			return nil, err
		}
		A[i] = p
	}

	// Simulate the two branches we don't hold the secret for.
	for j := 0; j < 3; j++ {
		if j == which {
			continue
		}
		cj, err := ed448.RandomScalar()
		if err != nil {
			return nil, err
		}
		rj, err := ed448.RandomScalar()
		if err != nil {
			return nil, err
		}
		c[j] = cj
		r[j] = rj
		// T_j = r_j*G + c_j*A_j
		T[j] = ed448.ScalarBaseMult(rj).Add(ed448.ScalarMult(cj, A[j]))
	}

	// Real commitment for the held branch.
	k, err := ed448.RandomScalar()
	if err != nil {
		return nil, err
	}
	T[which] = ed448.ScalarBaseMult(k)

	challenge := computeChallenge(pubs, T, t)

	// c_which = challenge - sum of the other two c_j, mod L.
	sum := c[(which+1)%3].Add(c[(which+2)%3])
	cWhich := challenge.Sub(sum)
	// r_which = k - c_which * secret, mod L.
	rWhich := k.Sub(cWhich.Mul(secret))

	c[which] = cWhich
	r[which] = rWhich

	return &Sig{
		C1: c[0], R1: r[0],
		C2: c[1], R2: r[1],
		C3: c[2], R3: r[2],
	}, nil
}

// Verify checks that sig proves knowledge of one of the three secrets
// matching pubs, binding message t.
func Verify(pubs [3]ed448.PublicKey, sig *Sig, t []byte) error {
	A := [3]*ed448.Point{}
	for i := 0; i < 3; i++ {
		p, err := ed448.PointFromPublic(pubs[i])
		if err != nil {
			return err
		}
		A[i] = p
	}

	c := [3]*ed448.Scalar{sig.C1, sig.C2, sig.C3}
	r := [3]*ed448.Scalar{sig.R1, sig.R2, sig.R3}

	var T [3]*ed448.Point
	for j := 0; j < 3; j++ {
		T[j] = ed448.ScalarBaseMult(r[j]).Add(ed448.ScalarMult(c[j], A[j]))
	}

	challenge := computeChallenge(pubs, T, t)
	sum := sig.C1.Add(sig.C2).Add(sig.C3)

	if !bytesEqual(sum.Bytes(), challenge.Bytes()) {
		return ErrVerifyFailed
	}
	return nil
}

// computeChallenge hashes usage || domain || A1||A2||A3||T1||T2||T3||t,
// per spec.md §4.2's ring-signature challenge input, reduced to a scalar.
func computeChallenge(pubs [3]ed448.PublicKey, T [3]*ed448.Point, t []byte) *ed448.Scalar {
	var buf []byte
	for _, p := range pubs {
		buf = append(buf, p[:]...)
	}
	for _, p := range T {
		buf = append(buf, p.Bytes()...)
	}
	buf = append(buf, t...)
	digest := shake.Derive(shake.UsageRingSigAuth, buf, 114)
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
