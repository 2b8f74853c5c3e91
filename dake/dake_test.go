package dake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"otrng/crypto/ed448"
	"otrng/otrerr"
	"otrng/profile"
	"otrng/wire"
)

func newTestParty(t *testing.T, tag wire.InstanceTag) (*ed448.KeyPair, *profile.ClientProfile) {
	t.Helper()
	longTerm, err := ed448.Generate()
	require.NoError(t, err)
	forging, err := ed448.Generate()
	require.NoError(t, err)

	p := &profile.ClientProfile{
		OwnerInstanceTag: tag,
		LongTermPublic:   longTerm.Public,
		ForgingPublic:    forging.Public,
		Versions:         "4",
		Expiry:           time.Now().Add(time.Hour).Unix(),
	}
	p.Sign(longTerm)
	return longTerm, p
}

func TestFullDakeExchangeDerivesMatchingSecret(t *testing.T) {
	initiatorTag := wire.InstanceTag(0x100)
	responderTag := wire.InstanceTag(0x200)

	initiatorKP, initiatorProfile := newTestParty(t, initiatorTag)
	responderKP, responderProfile := newTestParty(t, responderTag)

	initiatorEngine := NewEngine(initiatorTag, initiatorProfile, initiatorKP)
	responderEngine := NewEngine(responderTag, responderProfile, responderKP)

	identity, err := initiatorEngine.StartInitiator(responderTag)
	require.NoError(t, err)
	require.Equal(t, StateWaitingAuthR, initiatorEngine.State())

	wireIdentity, err := DecodeIdentity(identity.Serialize())
	require.NoError(t, err)

	authR, err := responderEngine.ReceiveIdentity(wireIdentity)
	require.NoError(t, err)
	require.NotNil(t, authR)
	require.Equal(t, StateWaitingAuthI, responderEngine.State())

	wireAuthR, err := DecodeAuthR(authR.Serialize())
	require.NoError(t, err)

	authI, err := initiatorEngine.ReceiveAuthR(wireAuthR)
	require.NoError(t, err)
	require.Equal(t, StateDone, initiatorEngine.State())

	initiatorResult, err := initiatorEngine.FinalizeAsInitiator()
	require.NoError(t, err)

	wireAuthI, err := DecodeAuthI(authI.Serialize())
	require.NoError(t, err)

	responderResult, err := responderEngine.ReceiveAuthI(wireAuthI)
	require.NoError(t, err)
	require.Equal(t, StateDone, responderEngine.State())

	require.Equal(t, initiatorResult.K, responderResult.K)
	require.Equal(t, responderProfile.LongTermPublic, initiatorResult.PeerLongTerm)
	require.Equal(t, initiatorProfile.LongTermPublic, responderResult.PeerLongTerm)
}

func TestReceiveAuthRRejectsBadSignature(t *testing.T) {
	initiatorTag := wire.InstanceTag(0x100)
	responderTag := wire.InstanceTag(0x200)

	initiatorKP, initiatorProfile := newTestParty(t, initiatorTag)
	responderKP, responderProfile := newTestParty(t, responderTag)

	initiatorEngine := NewEngine(initiatorTag, initiatorProfile, initiatorKP)
	responderEngine := NewEngine(responderTag, responderProfile, responderKP)

	identity, err := initiatorEngine.StartInitiator(responderTag)
	require.NoError(t, err)

	wireIdentity, err := DecodeIdentity(identity.Serialize())
	require.NoError(t, err)
	authR, err := responderEngine.ReceiveIdentity(wireIdentity)
	require.NoError(t, err)

	authR.Sigma.C1 = authR.Sigma.C1.Add(authR.Sigma.C1)

	_, err = initiatorEngine.ReceiveAuthR(authR)
	require.ErrorIs(t, err, otrerr.CryptoFail)
}

func TestReceiveIdentityDuringWaitingAuthISilentlyIgnored(t *testing.T) {
	initiatorTag := wire.InstanceTag(0x100)
	responderTag := wire.InstanceTag(0x200)
	thirdTag := wire.InstanceTag(0x300)

	initiatorKP, initiatorProfile := newTestParty(t, initiatorTag)
	responderKP, responderProfile := newTestParty(t, responderTag)
	_, thirdProfile := newTestParty(t, thirdTag)

	initiatorEngine := NewEngine(initiatorTag, initiatorProfile, initiatorKP)
	responderEngine := NewEngine(responderTag, responderProfile, responderKP)

	identity, err := initiatorEngine.StartInitiator(responderTag)
	require.NoError(t, err)
	wireIdentity, err := DecodeIdentity(identity.Serialize())
	require.NoError(t, err)

	_, err = responderEngine.ReceiveIdentity(wireIdentity)
	require.NoError(t, err)
	require.Equal(t, StateWaitingAuthI, responderEngine.State())

	secondIdentity := &Identity{
		Header:        wire.Header{Type: 0x35, Sender: thirdTag, Receiver: responderTag},
		ClientProfile: thirdProfile,
		Y:             identity.Y,
		B:             identity.B,
	}
	reply, err := responderEngine.ReceiveIdentity(secondIdentity)
	require.NoError(t, err)
	require.Nil(t, reply)
	require.Equal(t, StateWaitingAuthI, responderEngine.State())
}
