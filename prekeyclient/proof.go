package prekeyclient

import (
	"errors"
	"math/big"

	"otrng/crypto/dh3072"
	"otrng/crypto/ed448"
	"otrng/crypto/shake"
	"otrng/wire"
)

// ErrProofFailed means a publication's proof of knowledge did not
// verify against the values it accompanies.
var ErrProofFailed = errors.New("prekeyclient: proof verification failed")

// ECDHProof is a batched Schnorr proof of knowledge of n discrete logs
// in the Ed448 group, sharing one Fiat-Shamir challenge: a publishing
// client proves it holds every prekey message's and prekey profile's
// private scalar without revealing them (spec.md §6's usage 0x13/0x15,
// proof-message-ECDH and proof-shared-ECDH).
type ECDHProof struct {
	C *ed448.Scalar
	R []*ed448.Scalar
}

// GenerateECDHProof proves knowledge of privs[i] for pubs[i], for every
// i, binding context (the publication's MAC-of-proofs chain) and usage
// (which of the two ECDH proof slots this is).
func GenerateECDHProof(privs []*ed448.Scalar, pubs []ed448.PublicKey, usage shake.Usage, context []byte) (*ECDHProof, error) {
	n := len(privs)
	ks := make([]*ed448.Scalar, n)
	ts := make([]*ed448.Point, n)
	for i := range privs {
		k, err := ed448.RandomScalar()
		if err != nil {
			return nil, err
		}
		ks[i] = k
		ts[i] = ed448.ScalarBaseMult(k)
	}
	c := ecdhChallenge(usage, pubs, ts, context)
	r := make([]*ed448.Scalar, n)
	for i := range privs {
		r[i] = ks[i].Sub(c.Mul(privs[i]))
	}
	return &ECDHProof{C: c, R: r}, nil
}

// VerifyECDHProof checks a batched proof against pubs, under the same
// usage and context it was generated with.
func VerifyECDHProof(proof *ECDHProof, pubs []ed448.PublicKey, usage shake.Usage, context []byte) error {
	if len(proof.R) != len(pubs) {
		return ErrProofFailed
	}
	ts := make([]*ed448.Point, len(pubs))
	for i, pub := range pubs {
		a, err := ed448.PointFromPublic(pub)
		if err != nil {
			return ErrProofFailed
		}
		ts[i] = ed448.ScalarBaseMult(proof.R[i]).Add(ed448.ScalarMult(proof.C, a))
	}
	c := ecdhChallenge(usage, pubs, ts, context)
	if !bytesEqual(c.Bytes(), proof.C.Bytes()) {
		return ErrProofFailed
	}
	return nil
}

func ecdhChallenge(usage shake.Usage, pubs []ed448.PublicKey, ts []*ed448.Point, context []byte) *ed448.Scalar {
	var buf []byte
	for _, p := range pubs {
		buf = append(buf, p[:]...)
	}
	for _, t := range ts {
		buf = append(buf, t.Bytes()...)
	}
	buf = append(buf, context...)
	digest := shake.DerivePrekey(usage, buf, 114)
	return ed448.ScalarFromBytes(digest)
}

func (p *ECDHProof) Serialize() []byte {
	e := wire.NewEncoder()
	e.Scalar(p.C)
	e.Uint32(uint32(len(p.R)))
	for _, r := range p.R {
		e.Scalar(r)
	}
	return e.Bytes()
}

func DecodeECDHProof(b []byte) (*ECDHProof, error) {
	d := wire.NewDecoder(b)
	c, err := d.Scalar()
	if err != nil {
		return nil, err
	}
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if n > 1024 {
		return nil, errMalformedProof
	}
	r := make([]*ed448.Scalar, n)
	for i := range r {
		s, err := d.Scalar()
		if err != nil {
			return nil, err
		}
		r[i] = s
	}
	if !d.Done() {
		return nil, errMalformedProof
	}
	return &ECDHProof{C: c, R: r}, nil
}

// DHProof is the DH-group analogue of ECDHProof, over the 3072-bit
// modular group (spec.md §6's usage 0x14, proof-message-DH), proving
// knowledge of the private exponent behind every published DH public
// key without revealing it.
type DHProof struct {
	C *big.Int
	R []*big.Int
}

func GenerateDHProof(privs []*dh3072.PrivateKey, pubs []*dh3072.PublicKey, context []byte) (*DHProof, error) {
	q := dh3072.Order()
	n := len(privs)
	ks := make([]*big.Int, n)
	ts := make([]*dh3072.PublicKey, n)
	for i := range privs {
		k, err := dh3072.RandomExponent()
		if err != nil {
			return nil, err
		}
		ks[i] = k
		ts[i] = dh3072.ExpG(k)
	}
	c := dhChallenge(pubs, ts, context)
	r := make([]*big.Int, n)
	for i := range privs {
		// r_i = k_i - c*x_i mod q
		cx := new(big.Int).Mul(c, privs[i].Exponent())
		ri := new(big.Int).Sub(ks[i], cx)
		ri.Mod(ri, q)
		r[i] = ri
	}
	return &DHProof{C: c, R: r}, nil
}

func VerifyDHProof(proof *DHProof, pubs []*dh3072.PublicKey, context []byte) error {
	if len(proof.R) != len(pubs) {
		return ErrProofFailed
	}
	ts := make([]*dh3072.PublicKey, len(pubs))
	for i, pub := range pubs {
		// T_i = g^r_i * y_i^c
		ts[i] = dh3072.Combine(dh3072.ExpG(proof.R[i]), dh3072.Exp(pub, proof.C))
	}
	c := dhChallenge(pubs, ts, context)
	if c.Cmp(proof.C) != 0 {
		return ErrProofFailed
	}
	return nil
}

func dhChallenge(pubs []*dh3072.PublicKey, ts []*dh3072.PublicKey, context []byte) *big.Int {
	var buf []byte
	for _, p := range pubs {
		buf = append(buf, p.Bytes()...)
	}
	for _, t := range ts {
		buf = append(buf, t.Bytes()...)
	}
	buf = append(buf, context...)
	digest := shake.DerivePrekey(shake.UsageProofMessageDH, buf, 64)
	return new(big.Int).Mod(new(big.Int).SetBytes(digest), dh3072.Order())
}

func (p *DHProof) Serialize() []byte {
	e := wire.NewEncoder()
	e.MPI(p.C.Bytes())
	e.Uint32(uint32(len(p.R)))
	for _, r := range p.R {
		e.MPI(r.Bytes())
	}
	return e.Bytes()
}

func DecodeDHProof(b []byte) (*DHProof, error) {
	d := wire.NewDecoder(b)
	cBytes, err := d.MPI()
	if err != nil {
		return nil, err
	}
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if n > 1024 {
		return nil, errMalformedProof
	}
	r := make([]*big.Int, n)
	for i := range r {
		rBytes, err := d.MPI()
		if err != nil {
			return nil, err
		}
		r[i] = new(big.Int).SetBytes(rBytes)
	}
	if !d.Done() {
		return nil, errMalformedProof
	}
	return &DHProof{C: new(big.Int).SetBytes(cBytes), R: r}, nil
}

var errMalformedProof = errors.New("prekeyclient: malformed proof encoding")

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
