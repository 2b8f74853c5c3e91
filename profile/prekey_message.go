package profile

import (
	"otrng/crypto/dh3072"
	"otrng/crypto/ed448"
	"otrng/otrerr"
	"otrng/wire"
)

// PrekeyMessage is spec.md §3's one-shot offer: { identifier,
// instance_tag, ecdh_public, dh_public }. The matching secrets are
// held locally by the publishing client and each message is consumed
// at most once.
type PrekeyMessage struct {
	Identifier  uint32
	InstanceTag wire.InstanceTag
	ECDHPublic  ed448.PublicKey
	DHPublic    []byte // MPI
}

// Serialize returns the wire encoding.
func (m *PrekeyMessage) Serialize() []byte {
	e := wire.NewEncoder()
	e.Uint32(m.Identifier)
	e.Uint32(uint32(m.InstanceTag))
	e.Point(m.ECDHPublic)
	e.DHPublic(m.DHPublic)
	return e.Bytes()
}

// DecodePrekeyMessage parses a serialized prekey message.
func DecodePrekeyMessage(b []byte) (*PrekeyMessage, error) {
	d := wire.NewDecoder(b)
	m := &PrekeyMessage{}

	id, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	m.Identifier = id

	tag, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	m.InstanceTag = wire.InstanceTag(tag)

	ecdh, err := d.Point()
	if err != nil {
		return nil, err
	}
	m.ECDHPublic = ecdh

	dh, err := d.DHPublic()
	if err != nil {
		return nil, err
	}
	if _, err := dh3072.FromBytes(dh); err != nil {
		return nil, otrerr.Malformed
	}
	m.DHPublic = dh

	if !d.Done() {
		return nil, otrerr.Malformed
	}
	return m, nil
}

// PrekeySecrets holds the private halves of a published PrekeyMessage,
// kept locally by the publisher (spec.md §3) until consumed once by an
// incoming DAKE.
type PrekeySecrets struct {
	ECDHPrivate *ed448.Scalar
	DHPrivate   *dh3072.PrivateKey
}
