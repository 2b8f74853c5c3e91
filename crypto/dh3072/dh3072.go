// Package dh3072 implements the 3072-bit finite-field Diffie-Hellman
// group spec.md §1 fixes (RFC 3526 MODP Group 15), generalizing the
// teacher's crypto/dh25519 package from an elliptic-curve group
// (kyber's Ed25519 suite) to a classic multiplicative group. Exponent
// bookkeeping is kept on kyber's group/mod.Int, the same modular-integer
// type the teacher's curve suite is built from, since it is a natural
// fit for a fixed finite field independent of any curve.
package dh3072

import (
	"crypto/rand"
	"errors"
	"math/big"

	"go.dedis.ch/kyber/v4/group/mod"
)

var ErrInvalid = errors.New("dh3072: invalid input")

// prime is the RFC 3526 Group 15 (3072-bit MODP) safe prime.
var prime = mustHex("" +
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF" +
	"9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE38" +
	"6BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F83655D" +
	"23DCA3AD961C62F356208552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C" +
	"180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A8A" +
	"AAC42DAD33170D04507A33A85521ABDF1CBA64ECFB850458DBEF0A8AEA71575D060C7DB3970F85A6E1E4C7ABF5AE8CDB09" +
	"33D71E8C94E04A25619DCEE3D2261AD2EE6BF12FFA06D98A0864D87602733EC86A64521F2B18177B200CBBE117577A615D" +
	"6C770988C0BAD946E208E24FA074E5AB3143DB5BFCE0FD108E4B82D120A93AD2CAFFFFFFFFFFFFFFFF", 16)

var generator = big.NewInt(2)

// order is the prime order q = (p-1)/2 of the subgroup exponents are
// reduced into for proof arithmetic (p is a safe prime, p = 2q+1).
var order = new(big.Int).Rsh(new(big.Int).Sub(prime, big.NewInt(1)), 1)

func mustHex(s string, base int) *big.Int {
	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		panic("dh3072: bad prime constant")
	}
	return n
}

// Order returns the subgroup order q used to reduce Schnorr-style
// proof exponents over this group (prekeyclient's publication proofs).
func Order() *big.Int { return new(big.Int).Set(order) }

// RandomExponent draws a random exponent reduced mod the group order,
// suitable as a proof commitment witness.
func RandomExponent() (*big.Int, error) {
	buf := make([]byte, 384)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return new(big.Int).Mod(new(big.Int).SetBytes(buf), order), nil
}

// ExpG computes g^x mod p for an arbitrary exponent x, the commitment
// primitive a Schnorr-style discrete-log proof builds on.
func ExpG(x *big.Int) *PublicKey {
	g := mod.NewInt(generator, prime)
	return &PublicKey{y: mod.NewInt(new(big.Int), prime).Exp(g, x)}
}

// Exp computes pub^x mod p, the verifier-side analogue of ExpG for an
// arbitrary base.
func Exp(pub *PublicKey, x *big.Int) *PublicKey {
	return &PublicKey{y: mod.NewInt(new(big.Int), prime).Exp(pub.y, x)}
}

// Combine computes a*b mod p, used to fold a proof commitment with a
// challenge term.
func Combine(a, b *PublicKey) *PublicKey {
	return &PublicKey{y: mod.NewInt(new(big.Int), prime).Mul(a.y, b.y)}
}

// Exponent exposes the raw secret exponent for proof arithmetic
// (response = witness - challenge*exponent mod q).
func (priv *PrivateKey) Exponent() *big.Int { return new(big.Int).Set(priv.x.V) }

// PrivateKeyFromExponent rebuilds a PrivateKey from a persisted raw
// exponent (prekeyclient/store's secret-material round trip).
func PrivateKeyFromExponent(x *big.Int) *PrivateKey {
	return &PrivateKey{x: mod.NewInt(new(big.Int).Set(x), prime)}
}

// PrivateKey is a secret exponent; bit length matched to the group.
type PrivateKey struct{ x *mod.Int }

// PublicKey is g^x mod p.
type PublicKey struct{ y *mod.Int }

// New generates a fresh DH keypair in the 3072-bit group.
func New() (*PrivateKey, *PublicKey, error) {
	buf := make([]byte, 384)
	if _, err := rand.Read(buf); err != nil {
		return nil, nil, err
	}
	x := mod.NewInt(new(big.Int).SetBytes(buf), prime)
	g := mod.NewInt(generator, prime)
	y := mod.NewInt(new(big.Int), prime).Exp(g, x.V)
	return &PrivateKey{x: x}, &PublicKey{y: y}, nil
}

// Public recovers the public key g^x for a given private exponent.
func (priv *PrivateKey) Public() *PublicKey {
	g := mod.NewInt(generator, prime)
	return &PublicKey{y: mod.NewInt(new(big.Int), prime).Exp(g, priv.x.V)}
}

// SharedSecret computes the DH output their_pub^our_priv mod p, the
// MPI-encoded input to the root-key KDF mix (spec.md §4.5).
func SharedSecret(priv *PrivateKey, pub *PublicKey) ([]byte, error) {
	if priv == nil || pub == nil {
		return nil, ErrInvalid
	}
	shared := mod.NewInt(new(big.Int), prime).Exp(pub.y, priv.x.V)
	return shared.V.Bytes(), nil
}

// Bytes returns the MPI-style minimal unsigned big-endian encoding of
// the public key's y value.
func (pub *PublicKey) Bytes() []byte {
	return pub.y.V.Bytes()
}

// FromBytes decodes a public key from its MPI payload, rejecting
// representatives outside [2, p-2] (fails closed on malformed input).
func FromBytes(b []byte) (*PublicKey, error) {
	y := new(big.Int).SetBytes(b)
	if y.Cmp(big.NewInt(1)) <= 0 || y.Cmp(new(big.Int).Sub(prime, big.NewInt(1))) >= 0 {
		return nil, ErrInvalid
	}
	return &PublicKey{y: mod.NewInt(y, prime)}, nil
}
