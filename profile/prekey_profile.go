package profile

import (
	"time"

	"otrng/crypto/ed448"
	"otrng/otrerr"
	"otrng/wire"
)

// PrekeyProfile is spec.md §3's { owner_instance_tag, expiry,
// shared_prekey_public, signature_by_long_term } tuple.
type PrekeyProfile struct {
	OwnerInstanceTag   wire.InstanceTag
	Expiry             int64
	SharedPrekeyPublic ed448.PublicKey
	Signature          []byte
}

func (p *PrekeyProfile) serializeUnsigned() []byte {
	e := wire.NewEncoder()
	e.Uint32(uint32(p.OwnerInstanceTag))
	e.Uint64(uint64(p.Expiry))
	e.PubKeyRecord(wire.PubKeyTypeSharedPrekey, p.SharedPrekeyPublic)
	return e.Bytes()
}

// Serialize returns the full wire encoding.
func (p *PrekeyProfile) Serialize() []byte {
	e := wire.NewEncoder()
	e.Raw(p.serializeUnsigned())
	e.Data(p.Signature)
	return e.Bytes()
}

// DecodePrekeyProfile parses a serialized prekey profile.
func DecodePrekeyProfile(b []byte) (*PrekeyProfile, error) {
	d := wire.NewDecoder(b)
	p := &PrekeyProfile{}

	tag, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	p.OwnerInstanceTag = wire.InstanceTag(tag)

	expiry, err := d.Uint64()
	if err != nil {
		return nil, err
	}
	p.Expiry = int64(expiry)

	_, pub, err := d.PubKeyRecord()
	if err != nil {
		return nil, err
	}
	p.SharedPrekeyPublic = pub

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

// Sign attaches the long-term signature.
func (p *PrekeyProfile) Sign(kp *ed448.KeyPair) {
	p.Signature = kp.Sign(p.serializeUnsigned())
}

// ValidatePrekeyProfile checks the signature under ownerLongTerm and
// that the profile has not expired.
func ValidatePrekeyProfile(p *PrekeyProfile, ownerLongTerm ed448.PublicKey, now time.Time) error {
	if !ed448.Verify(ownerLongTerm, p.serializeUnsigned(), p.Signature) {
		return otrerr.CryptoFail
	}
	if now.Unix() >= p.Expiry {
		return otrerr.ProfileExpired
	}
	return nil
}
