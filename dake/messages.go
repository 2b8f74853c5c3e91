// Package dake implements the three-message Deniable Authenticated Key
// Exchange of spec.md §4.4: IDENTITY, AUTH-R, AUTH-I. It plays the
// role the teacher's x3dh package plays for Signal's X3DH handshake,
// generalized from a one-shot asymmetric key agreement into OTRv4's
// three-message, ring-signature-authenticated exchange.
package dake

import (
	"otrng/configs"
	"otrng/crypto/dh3072"
	"otrng/crypto/ed448"
	"otrng/crypto/ringsig"
	"otrng/otrerr"
	"otrng/profile"
	"otrng/wire"
)

// Identity is the first DAKE message (type 0x35): the sender's client
// profile plus an ephemeral ECDH point Y and ephemeral DH public B.
type Identity struct {
	Header        wire.Header
	ClientProfile *profile.ClientProfile
	Y             ed448.PublicKey
	B             []byte // MPI
}

// Serialize returns the wire encoding of the IDENTITY message.
func (m *Identity) Serialize() []byte {
	e := wire.NewEncoder()
	m.Header.Encode(e)
	e.Data(m.ClientProfile.Serialize())
	e.Point(m.Y)
	e.DHPublic(m.B)
	return e.Bytes()
}

// DecodeIdentity parses a serialized IDENTITY message. The header's
// type byte must already have been dispatched by the caller.
func DecodeIdentity(b []byte) (*Identity, error) {
	d := wire.NewDecoder(b)
	h, err := wire.DecodeHeader(d)
	if err != nil {
		return nil, err
	}
	if h.Type != configs.MsgTypeIdentity {
		return nil, otrerr.Malformed
	}

	cpBytes, err := d.Data()
	if err != nil {
		return nil, err
	}
	cp, err := profile.DecodeClientProfile(cpBytes)
	if err != nil {
		return nil, err
	}

	y, err := d.Point()
	if err != nil {
		return nil, err
	}

	b64, err := d.DHPublic()
	if err != nil {
		return nil, err
	}
	if _, err := dh3072.FromBytes(b64); err != nil {
		return nil, otrerr.Malformed
	}

	if !d.Done() {
		return nil, otrerr.Malformed
	}

	return &Identity{Header: h, ClientProfile: cp, Y: y, B: b64}, nil
}

// AuthR is the second DAKE message (type 0x36): the responder's own
// client profile, ephemeral ECDH point X and DH public A, and a ring
// signature over build_auth_msg(0, ...).
type AuthR struct {
	Header        wire.Header
	ClientProfile *profile.ClientProfile
	X             ed448.PublicKey
	A             []byte // MPI
	Sigma         *ringsig.Sig
}

// Serialize returns the wire encoding of the AUTH-R message.
func (m *AuthR) Serialize() []byte {
	e := wire.NewEncoder()
	m.Header.Encode(e)
	e.Data(m.ClientProfile.Serialize())
	e.Point(m.X)
	e.DHPublic(m.A)
	e.RingSig(m.Sigma)
	return e.Bytes()
}

// DecodeAuthR parses a serialized AUTH-R message.
func DecodeAuthR(b []byte) (*AuthR, error) {
	d := wire.NewDecoder(b)
	h, err := wire.DecodeHeader(d)
	if err != nil {
		return nil, err
	}
	if h.Type != configs.MsgTypeAuthR {
		return nil, otrerr.Malformed
	}

	cpBytes, err := d.Data()
	if err != nil {
		return nil, err
	}
	cp, err := profile.DecodeClientProfile(cpBytes)
	if err != nil {
		return nil, err
	}

	x, err := d.Point()
	if err != nil {
		return nil, err
	}

	a, err := d.DHPublic()
	if err != nil {
		return nil, err
	}
	if _, err := dh3072.FromBytes(a); err != nil {
		return nil, otrerr.Malformed
	}

	sigma, err := d.RingSig()
	if err != nil {
		return nil, err
	}

	if !d.Done() {
		return nil, otrerr.Malformed
	}

	return &AuthR{Header: h, ClientProfile: cp, X: x, A: a, Sigma: sigma}, nil
}

// AuthI is the third and final DAKE message (type 0x37): the
// initiator's ring signature over build_auth_msg(1, ...).
type AuthI struct {
	Header wire.Header
	Sigma  *ringsig.Sig
}

// Serialize returns the wire encoding of the AUTH-I message.
func (m *AuthI) Serialize() []byte {
	e := wire.NewEncoder()
	m.Header.Encode(e)
	e.RingSig(m.Sigma)
	return e.Bytes()
}

// DecodeAuthI parses a serialized AUTH-I message.
func DecodeAuthI(b []byte) (*AuthI, error) {
	d := wire.NewDecoder(b)
	h, err := wire.DecodeHeader(d)
	if err != nil {
		return nil, err
	}
	if h.Type != configs.MsgTypeAuthI {
		return nil, otrerr.Malformed
	}

	sigma, err := d.RingSig()
	if err != nil {
		return nil, err
	}
	if !d.Done() {
		return nil, otrerr.Malformed
	}

	return &AuthI{Header: h, Sigma: sigma}, nil
}

// buildAuthMsg constructs t = byte || serialize(ip) || serialize(rp) ||
// y || x || b || a, the transcript both AUTH-R and AUTH-I sign over
// (spec.md §4.4).
func buildAuthMsg(tag byte, ip, rp *profile.ClientProfile, y, x ed448.PublicKey, b, a []byte) []byte {
	e := wire.NewEncoder()
	e.Byte(tag)
	e.Data(ip.Serialize())
	e.Data(rp.Serialize())
	e.Point(y)
	e.Point(x)
	e.DHPublic(b)
	e.DHPublic(a)
	return e.Bytes()
}
