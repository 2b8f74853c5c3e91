// Package ed448 wraps the Ed448-Goldilocks operations otrng needs:
// long-term and ephemeral identity keypairs, and the group arithmetic
// the ring signature and ratchet ECDH mixing build on, both via
// circl's Goldilocks curve group. It replaces the teacher's
// crypto/key_ed25519 package, generalized from kyber's Ed25519 suite
// to circl's Ed448 implementation, since OTRv4 fixes the larger curve.
//
// A KeyPair's public half and its Sign/Verify are built directly on
// the discrete-log Scalar/Point group of group.go rather than circl's
// opaque EdDSA signer: the same secret scalar that produces the
// public point profile records carry is also the one a ring signature
// (crypto/ringsig) proves knowledge of, so a long-term key behaves
// identically whether it signs alone or as one arm of a ring. Sign is
// the n=1 degenerate case of the same proof algebra ringsig.Sign
// implements for n=3.
package ed448

import (
	"errors"

	"otrng/crypto/shake"
)

// PointSize is the length in bytes of a compressed Ed448 point
// (spec.md §4.1: "Ed448 point = 57-byte compressed").
const PointSize = 57

// ScalarSize is the length in bytes of an Ed448 scalar
// (spec.md §4.1: "Ed448 scalar = 57 bytes little-endian").
const ScalarSize = 57

// SignatureSize is the length of a Sign output: a commitment point
// followed by a response scalar.
const SignatureSize = PointSize + ScalarSize

var (
	ErrInvalidPoint     = errors.New("ed448: invalid or non-canonical point encoding")
	ErrInvalidScalar    = errors.New("ed448: invalid scalar encoding")
	ErrInvalidSignature = errors.New("ed448: invalid signature encoding")
	ErrVerifyFailed     = errors.New("ed448: signature verification failed")
)

// KeyPair is a long-term or ephemeral Ed448 identity keypair.
type KeyPair struct {
	Public  PublicKey
	Private *Scalar
}

// PublicKey is a 57-byte compressed Ed448 point.
type PublicKey [PointSize]byte

// SeedSize is the width of the symmetric seed a KeyPair's secret
// scalar is reduced from, the value spec.md §6 persists to a
// private-key file.
const SeedSize = 57

// Generate creates a fresh long-term or ephemeral Ed448 keypair.
func Generate() (*KeyPair, error) {
	secret, err := RandomScalar()
	if err != nil {
		return nil, err
	}
	return keyPairFromScalar(secret), nil
}

func keyPairFromScalar(secret *Scalar) *KeyPair {
	pub := PublicFromPoint(ScalarBaseMult(secret))
	return &KeyPair{Public: pub, Private: secret}
}

// Seed returns the 57-byte encoding of this keypair's secret scalar,
// suitable for compact persistence.
func (kp *KeyPair) Seed() []byte {
	return kp.Private.Bytes()
}

// KeyPairFromSeed rebuilds a KeyPair from a persisted seed.
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != SeedSize {
		return nil, ErrInvalidScalar
	}
	return keyPairFromScalar(ScalarFromBytes(seed)), nil
}

// schnorrChallenge hashes the commitment, public key, and message into
// the scalar challenge shared by Sign/Verify here and by ringsig's
// n=3 generalization.
func schnorrChallenge(r *Point, pub PublicKey, msg []byte) *Scalar {
	buf := make([]byte, 0, PointSize*2+len(msg))
	buf = append(buf, r.Bytes()...)
	buf = append(buf, pub[:]...)
	buf = append(buf, msg...)
	digest := shake.Derive(shake.UsageIdentitySig, buf, 114)
	return ScalarFromBytes(digest)
}

// Sign produces a detached Schnorr signature over msg.
func (kp *KeyPair) Sign(msg []byte) []byte {
	k, err := RandomScalar()
	if err != nil {
		// RandomScalar only fails if the system CSPRNG is broken, in
		// which case nothing downstream can proceed safely either.
		panic("ed448: CSPRNG failure during signing: " + err.Error())
	}
	r := ScalarBaseMult(k)
	c := schnorrChallenge(r, kp.Public, msg)
	s := k.Sub(c.Mul(kp.Private))

	out := make([]byte, 0, SignatureSize)
	out = append(out, r.Bytes()...)
	out = append(out, s.Bytes()...)
	return out
}

// Verify checks a detached Schnorr signature produced by Sign.
func Verify(pub PublicKey, msg, sig []byte) bool {
	if len(sig) != SignatureSize {
		return false
	}
	r, err := PointFromBytes(sig[:PointSize])
	if err != nil {
		return false
	}
	s := ScalarFromBytes(sig[PointSize:])

	pubPoint, err := PointFromPublic(pub)
	if err != nil {
		return false
	}
	c := schnorrChallenge(r, pub, msg)
	check := ScalarBaseMult(s).Add(ScalarMult(c, pubPoint))
	return bytesEqual(check.Bytes(), r.Bytes())
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

// Bytes returns the 57-byte compressed point encoding.
func (p PublicKey) Bytes() []byte {
	out := make([]byte, PointSize)
	copy(out, p[:])
	return out
}
