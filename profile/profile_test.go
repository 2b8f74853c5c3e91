package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"otrng/crypto/dh3072"
	"otrng/crypto/ed448"
	"otrng/wire"
)

func newTestClientProfile(t *testing.T, kp *ed448.KeyPair, tag wire.InstanceTag, expiry time.Time) *ClientProfile {
	t.Helper()
	forging, err := ed448.Generate()
	require.NoError(t, err)

	p := &ClientProfile{
		OwnerInstanceTag: tag,
		LongTermPublic:   kp.Public,
		ForgingPublic:    forging.Public,
		Versions:         "4",
		Expiry:           expiry.Unix(),
	}
	p.Sign(kp)
	return p
}

func TestClientProfileRoundTrip(t *testing.T) {
	kp, err := ed448.Generate()
	require.NoError(t, err)
	tag := wire.InstanceTag(0x12345678)
	p := newTestClientProfile(t, kp, tag, time.Now().Add(24*time.Hour))

	decoded, err := DecodeClientProfile(p.Serialize())
	require.NoError(t, err)
	require.Equal(t, p.OwnerInstanceTag, decoded.OwnerInstanceTag)
	require.Equal(t, p.LongTermPublic, decoded.LongTermPublic)
	require.Equal(t, p.Versions, decoded.Versions)

	require.NoError(t, Validate(decoded, tag, time.Now()))
}

func TestClientProfileRejectsExpired(t *testing.T) {
	kp, err := ed448.Generate()
	require.NoError(t, err)
	tag := wire.InstanceTag(0x100)
	p := newTestClientProfile(t, kp, tag, time.Now().Add(-time.Hour))

	require.Error(t, Validate(p, tag, time.Now()))
}

func TestClientProfileRejectsBadSignature(t *testing.T) {
	kp, err := ed448.Generate()
	require.NoError(t, err)
	tag := wire.InstanceTag(0x100)
	p := newTestClientProfile(t, kp, tag, time.Now().Add(time.Hour))
	p.Signature[0] ^= 0xff

	require.Error(t, Validate(p, tag, time.Now()))
}

func TestClientProfileRejectsWrongInstanceTag(t *testing.T) {
	kp, err := ed448.Generate()
	require.NoError(t, err)
	tag := wire.InstanceTag(0x100)
	p := newTestClientProfile(t, kp, tag, time.Now().Add(time.Hour))

	require.Error(t, Validate(p, wire.InstanceTag(0x200), time.Now()))
}

func TestClientProfileRejectsMissingV4(t *testing.T) {
	kp, err := ed448.Generate()
	require.NoError(t, err)
	tag := wire.InstanceTag(0x100)
	p := newTestClientProfile(t, kp, tag, time.Now().Add(time.Hour))
	p.Versions = "3"
	p.Sign(kp)

	require.Error(t, Validate(p, tag, time.Now()))
}

func TestPrekeyProfileRoundTrip(t *testing.T) {
	longTerm, err := ed448.Generate()
	require.NoError(t, err)
	sharedPrekey, err := ed448.Generate()
	require.NoError(t, err)

	pp := &PrekeyProfile{
		OwnerInstanceTag:   wire.InstanceTag(0x100),
		Expiry:             time.Now().Add(time.Hour).Unix(),
		SharedPrekeyPublic: sharedPrekey.Public,
	}
	pp.Sign(longTerm)

	decoded, err := DecodePrekeyProfile(pp.Serialize())
	require.NoError(t, err)
	require.NoError(t, ValidatePrekeyProfile(decoded, longTerm.Public, time.Now()))
}

func TestPrekeyMessageRoundTrip(t *testing.T) {
	ecdh, err := ed448.Generate()
	require.NoError(t, err)
	_, dhPub, err := dh3072.New()
	require.NoError(t, err)

	m := &PrekeyMessage{
		Identifier:  1,
		InstanceTag: wire.InstanceTag(0x100),
		ECDHPublic:  ecdh.Public,
		DHPublic:    dhPub.Bytes(),
	}

	decoded, err := DecodePrekeyMessage(m.Serialize())
	require.NoError(t, err)
	require.Equal(t, m.Identifier, decoded.Identifier)
	require.Equal(t, m.ECDHPublic, decoded.ECDHPublic)
}

func TestEnsembleRoundTrip(t *testing.T) {
	tag := wire.InstanceTag(0x100)
	longTerm, err := ed448.Generate()
	require.NoError(t, err)
	cp := newTestClientProfile(t, longTerm, tag, time.Now().Add(time.Hour))

	sharedPrekey, err := ed448.Generate()
	require.NoError(t, err)
	pp := &PrekeyProfile{
		OwnerInstanceTag:   tag,
		Expiry:             time.Now().Add(time.Hour).Unix(),
		SharedPrekeyPublic: sharedPrekey.Public,
	}
	pp.Sign(longTerm)

	ecdh, err := ed448.Generate()
	require.NoError(t, err)
	_, dhPub, err := dh3072.New()
	require.NoError(t, err)
	pm := &PrekeyMessage{
		Identifier:  7,
		InstanceTag: tag,
		ECDHPublic:  ecdh.Public,
		DHPublic:    dhPub.Bytes(),
	}

	ens := &Ensemble{ClientProfile: cp, PrekeyProfile: pp, PrekeyMessage: pm}
	decoded, err := DecodeEnsemble(ens.Serialize())
	require.NoError(t, err)
	require.NoError(t, decoded.Validate(tag, time.Now()))
}

func TestEnsembleRejectsMismatchedInstanceTag(t *testing.T) {
	tag := wire.InstanceTag(0x100)
	longTerm, err := ed448.Generate()
	require.NoError(t, err)
	cp := newTestClientProfile(t, longTerm, tag, time.Now().Add(time.Hour))

	sharedPrekey, err := ed448.Generate()
	require.NoError(t, err)
	pp := &PrekeyProfile{
		OwnerInstanceTag:   tag,
		Expiry:             time.Now().Add(time.Hour).Unix(),
		SharedPrekeyPublic: sharedPrekey.Public,
	}
	pp.Sign(longTerm)

	ecdh, err := ed448.Generate()
	require.NoError(t, err)
	_, dhPub, err := dh3072.New()
	require.NoError(t, err)
	pm := &PrekeyMessage{
		Identifier:  7,
		InstanceTag: wire.InstanceTag(0x200),
		ECDHPublic:  ecdh.Public,
		DHPublic:    dhPub.Bytes(),
	}

	ens := &Ensemble{ClientProfile: cp, PrekeyProfile: pp, PrekeyMessage: pm}
	require.Error(t, ens.Validate(tag, time.Now()))
}
