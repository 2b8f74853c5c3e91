// Package profile implements the signed, versioned, expiring identity
// attestations of spec.md §3/§4.3: the client profile and the prekey
// profile, plus the one-shot prekey message and the ensemble that
// bundles all three for asynchronous session initiation.
package profile

import (
	"time"

	"otrng/crypto/ed448"
	"otrng/crypto/shake"
	"otrng/otrerr"
	"otrng/wire"
)

// ClientProfile is the tuple of spec.md §3: owner instance tag,
// long-term and forging public keys, supported-versions string,
// expiry, an optional transitional DSA key, and the long-term
// signature over the rest.
type ClientProfile struct {
	OwnerInstanceTag wire.InstanceTag
	LongTermPublic   ed448.PublicKey
	ForgingPublic    ed448.PublicKey
	Versions         string // "4" or "34"
	Expiry           int64  // unix seconds

	TransitionalDSAPublic []byte // optional
	MACOverTransitional    []byte // optional, present iff TransitionalDSAPublic is

	Signature []byte
}

// serializeUnsigned lays out every field but the trailing signature,
// in canonical order, the exact bytes the long-term key signs
// (spec.md §4.3: "signed ... over the serialization truncated before
// the signature field").
func (p *ClientProfile) serializeUnsigned() []byte {
	e := wire.NewEncoder()
	e.Uint32(uint32(p.OwnerInstanceTag))
	e.PubKeyRecord(wire.PubKeyTypeIdentity, p.LongTermPublic)
	e.PubKeyRecord(wire.PubKeyTypeForging, p.ForgingPublic)
	e.Data([]byte(p.Versions))
	e.Uint64(uint64(p.Expiry))
	if p.TransitionalDSAPublic != nil {
		e.Byte(1)
		e.Data(p.TransitionalDSAPublic)
		e.Data(p.MACOverTransitional)
	} else {
		e.Byte(0)
	}
	return e.Bytes()
}

// Serialize returns the full wire encoding, body followed by signature.
func (p *ClientProfile) Serialize() []byte {
	e := wire.NewEncoder()
	e.Raw(p.serializeUnsigned())
	e.Data(p.Signature)
	return e.Bytes()
}

// DecodeClientProfile parses a serialized client profile.
func DecodeClientProfile(b []byte) (*ClientProfile, error) {
	d := wire.NewDecoder(b)
	p := &ClientProfile{}

	tag, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	p.OwnerInstanceTag = wire.InstanceTag(tag)

	_, longTerm, err := d.PubKeyRecord()
	if err != nil {
		return nil, err
	}
	p.LongTermPublic = longTerm

	_, forging, err := d.PubKeyRecord()
	if err != nil {
		return nil, err
	}
	p.ForgingPublic = forging

	versions, err := d.Data()
	if err != nil {
		return nil, err
	}
	p.Versions = string(versions)

	expiry, err := d.Uint64()
	if err != nil {
		return nil, err
	}
	p.Expiry = int64(expiry)

	hasTransitional, err := d.Byte()
	if err != nil {
		return nil, err
	}
	switch hasTransitional {
	case 0:
	case 1:
		dsaPub, err := d.Data()
		if err != nil {
			return nil, err
		}
		mac, err := d.Data()
		if err != nil {
			return nil, err
		}
		p.TransitionalDSAPublic = dsaPub
		p.MACOverTransitional = mac
	default:
		return nil, otrerr.Malformed
	}

	sig, err := d.Data()
	if err != nil {
		return nil, err
	}
	p.Signature = sig

	if !d.Done() {
		return nil, otrerr.Malformed
	}
	return p, nil
}

// Sign computes and attaches the long-term signature.
func (p *ClientProfile) Sign(kp *ed448.KeyPair) {
	p.Signature = kp.Sign(p.serializeUnsigned())
}

// Validate checks spec.md §4.3's acceptance rule: signature verifies,
// expiry > now, "4" is among the advertised versions, the instance tag
// matches expectedTag, and — if a transitional DSA key is attached —
// its MAC verifies under a key derived from the long-term public key.
func Validate(p *ClientProfile, expectedTag wire.InstanceTag, now time.Time) error {
	if !ed448.Verify(p.LongTermPublic, p.serializeUnsigned(), p.Signature) {
		return otrerr.CryptoFail
	}
	if now.Unix() >= p.Expiry {
		return otrerr.ProfileExpired
	}
	if !versionsInclude4(p.Versions) {
		return otrerr.Malformed
	}
	if p.OwnerInstanceTag != expectedTag {
		return otrerr.Malformed
	}
	if p.TransitionalDSAPublic != nil {
		macKey := shake.Derive(shake.UsageClientProfileHash, p.LongTermPublic[:], 64)
		want := shake.Derive(shake.UsageClientProfileHash, append(macKey, p.TransitionalDSAPublic...), 64)
		if !hmacEqual(want, p.MACOverTransitional) {
			return otrerr.CryptoFail
		}
	}
	return nil
}

func versionsInclude4(versions string) bool {
	for _, c := range versions {
		if c == '4' {
			return true
		}
	}
	return false
}

func hmacEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
