package prekeyclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"otrng/configs"
	"otrng/crypto/dh3072"
	"otrng/crypto/ed448"
	"otrng/crypto/ringsig"
	"otrng/crypto/shake"
	"otrng/profile"
	"otrng/wire"
)

func newTestClient(t *testing.T, tag wire.InstanceTag) (*ed448.KeyPair, *profile.ClientProfile) {
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

func serverPhiBytes(ourIdentity, serverIdentity string) []byte {
	e := wire.NewEncoder()
	e.Data([]byte(ourIdentity))
	e.Data([]byte(serverIdentity))
	return e.Bytes()
}

// serverReplyToDAKE1 plays the prekey server's half of the handshake:
// it signs a DAKE2 over the same transcript shape Engine expects, and
// hands back its ephemeral private scalar so the test can independently
// derive the session key Engine computes internally.
func serverReplyToDAKE1(t *testing.T, serverKP *ed448.KeyPair, serverIdentity, ourIdentity string, clientKP *ed448.KeyPair, clientProfile *profile.ClientProfile, dake1 *DAKE1) (*DAKE2, *ed448.Scalar) {
	t.Helper()
	sPriv, err := ed448.RandomScalar()
	require.NoError(t, err)
	sPub := ed448.PublicFromPoint(ed448.ScalarBaseMult(sPriv))

	composite := compositeIdentityBytes([]byte(serverIdentity), serverKP.Public)

	tr := wire.NewEncoder()
	tr.Byte(0)
	tr.Raw(shake.DerivePrekey(shake.UsageInitiatorClientProfile, clientProfile.Serialize(), 64))
	tr.Raw(shake.DerivePrekey(shake.UsageInitiatorCompositeIdentity, composite, 64))
	tr.Point(dake1.I)
	tr.Point(sPub)
	tr.Raw(shake.DerivePrekey(shake.UsageInitiatorCompositePhi, serverPhiBytes(ourIdentity, serverIdentity), 64))

	pubs := [3]ed448.PublicKey{clientKP.Public, serverKP.Public, dake1.I}
	sigma, err := ringsig.Sign(pubs, 1, serverKP.Private, tr.Bytes())
	require.NoError(t, err)

	return &DAKE2{
		InstanceTag:    dake1.InstanceTag,
		ServerIdentity: []byte(serverIdentity),
		ServerLongTerm: serverKP.Public,
		S:              sPub,
		Sigma:          sigma,
	}, sPriv
}

// serverDeriveSK recomputes the session key from the server's side,
// matching Engine.ReceiveDAKE2's ECDH(i, S) -> KDF(usage_SK, ...).
func serverDeriveSK(t *testing.T, sPriv *ed448.Scalar, clientI ed448.PublicKey) []byte {
	t.Helper()
	iPoint, err := ed448.PointFromPublic(clientI)
	require.NoError(t, err)
	ecdhShared := ed448.ScalarMult(sPriv, iPoint).Bytes()
	return shake.DerivePrekey(shake.UsageSK, ecdhShared, 64)
}

func serverMacKey(t *testing.T, sPriv *ed448.Scalar, clientI ed448.PublicKey) []byte {
	t.Helper()
	sk := serverDeriveSK(t, sPriv, clientI)
	return shake.DerivePrekey(shake.UsagePreMACKey, sk, 64)
}

func serverVerifyDAKE3(t *testing.T, serverKP, clientKP *ed448.KeyPair, serverIdentity, ourIdentity string, dake1 *DAKE1, dake2 *DAKE2, dake3 *DAKE3) {
	t.Helper()
	composite := compositeIdentityBytes(dake2.ServerIdentity, dake2.ServerLongTerm)

	tr := wire.NewEncoder()
	tr.Byte(1)
	tr.Raw(shake.DerivePrekey(shake.UsageReceiverClientProfile, dake1.ClientProfile.Serialize(), 64))
	tr.Raw(shake.DerivePrekey(shake.UsageReceiverCompositeIdentity, composite, 64))
	tr.Point(dake1.I)
	tr.Point(dake2.S)
	tr.Raw(shake.DerivePrekey(shake.UsageReceiverCompositePhi, serverPhiBytes(ourIdentity, serverIdentity), 64))

	pubs := [3]ed448.PublicKey{clientKP.Public, serverKP.Public, dake1.I}
	require.NoError(t, ringsig.Verify(pubs, dake3.Sigma, tr.Bytes()))
}

func TestDAKEHandshakeAndStorageInfoRequestRoundTrip(t *testing.T) {
	clientTag := wire.InstanceTag(0x111)
	clientKP, clientProfile := newTestClient(t, clientTag)
	serverKP, err := ed448.Generate()
	require.NoError(t, err)

	engine := NewEngine(clientTag, "alice@example.org", "prekey-server.example.org", clientProfile, clientKP, serverKP.Public)

	dake1, err := engine.StartStorageInfoRequest()
	require.NoError(t, err)
	require.Equal(t, clientTag, dake1.InstanceTag)

	wireDAKE1, err := DecodeDAKE1(dake1.Serialize())
	require.NoError(t, err)

	dake2, sPriv := serverReplyToDAKE1(t, serverKP, "prekey-server.example.org", "alice@example.org", clientKP, clientProfile, wireDAKE1)
	wireDAKE2, err := DecodeDAKE2(dake2.Serialize())
	require.NoError(t, err)

	dake3, err := engine.ReceiveDAKE2(wireDAKE2)
	require.NoError(t, err)

	wireDAKE3, err := DecodeDAKE3(dake3.Serialize())
	require.NoError(t, err)
	serverVerifyDAKE3(t, serverKP, clientKP, "prekey-server.example.org", "alice@example.org", wireDAKE1, dake2, wireDAKE3)

	body, err := decodeStorageInfoRequestBody(wireDAKE3.Message)
	require.NoError(t, err)

	macKey := serverMacKey(t, sPriv, wireDAKE1.I)
	e := wire.NewEncoder()
	e.Raw(macKey)
	e.Byte(configs.PrekeyMsgStorageInfoRequest)
	wantMAC := shake.DerivePrekey(shake.UsageStorageInfoReqMAC, e.Bytes(), macSize)
	require.Equal(t, wantMAC, body.MAC)

	status := &StorageStatus{InstanceTag: clientTag, StoredCount: 7}
	se := wire.NewEncoder()
	se.Raw(macKey)
	se.Raw(status.macBody())
	status.MAC = shake.DerivePrekey(shake.UsageStorageStatusMAC, se.Bytes(), macSize)

	wireStatus, err := DecodeStorageStatus(status.Serialize())
	require.NoError(t, err)
	count, err := engine.VerifyStorageStatus(wireStatus)
	require.NoError(t, err)
	require.Equal(t, uint32(7), count)

	fe := wire.NewEncoder()
	fe.Raw(macKey)
	fe.Byte(configs.PrekeyMsgFailure)
	failure := &Failure{InstanceTag: clientTag, MAC: shake.DerivePrekey(shake.UsageFailureMAC, fe.Bytes(), macSize)}
	wireFailure, err := DecodeFailure(failure.Serialize())
	require.NoError(t, err)
	require.NoError(t, engine.VerifyFailure(wireFailure))
}

func TestDAKEHandshakeAndPublicationRoundTrip(t *testing.T) {
	clientTag := wire.InstanceTag(0x222)
	clientKP, clientProfile := newTestClient(t, clientTag)
	serverKP, err := ed448.Generate()
	require.NoError(t, err)

	engine := NewEngine(clientTag, "bob@example.org", "prekey-server.example.org", clientProfile, clientKP, serverKP.Public)

	sharedPriv, err := ed448.RandomScalar()
	require.NoError(t, err)
	prekeyProfile := &profile.PrekeyProfile{
		OwnerInstanceTag:   clientTag,
		Expiry:             time.Now().Add(time.Hour).Unix(),
		SharedPrekeyPublic: ed448.PublicFromPoint(ed448.ScalarBaseMult(sharedPriv)),
	}
	prekeyProfile.Sign(clientKP)

	ecdhPub, secrets, dhPub, err := EphemeralKeyPair()
	require.NoError(t, err)
	pm := &profile.PrekeyMessage{Identifier: 1, InstanceTag: clientTag, ECDHPublic: ecdhPub, DHPublic: dhPub.Bytes()}

	req := &PublicationRequest{
		PrekeyMessages: []*profile.PrekeyMessage{pm},
		PrekeySecrets:  []*profile.PrekeySecrets{secrets},
		PrekeyProfile:  prekeyProfile,
		PrekeyProfileX: sharedPriv,
	}

	dake1, err := engine.StartPublish(req)
	require.NoError(t, err)

	wireDAKE1, err := DecodeDAKE1(dake1.Serialize())
	require.NoError(t, err)

	dake2, sPriv := serverReplyToDAKE1(t, serverKP, "prekey-server.example.org", "bob@example.org", clientKP, clientProfile, wireDAKE1)
	wireDAKE2, err := DecodeDAKE2(dake2.Serialize())
	require.NoError(t, err)

	dake3, err := engine.ReceiveDAKE2(wireDAKE2)
	require.NoError(t, err)

	wireDAKE3, err := DecodeDAKE3(dake3.Serialize())
	require.NoError(t, err)
	serverVerifyDAKE3(t, serverKP, clientKP, "prekey-server.example.org", "bob@example.org", wireDAKE1, dake2, wireDAKE3)

	body, err := decodePublicationBody(wireDAKE3.Message)
	require.NoError(t, err)
	require.Len(t, body.PrekeyMessages, 1)
	require.NotNil(t, body.ECDHProof)
	require.NotNil(t, body.DHProof)
	require.NotNil(t, body.SharedECDHProof)

	sk := serverDeriveSK(t, sPriv, wireDAKE1.I)
	proofContext := shake.DerivePrekey(shake.UsageProofContext, sk, 64)

	require.NoError(t, VerifyECDHProof(body.ECDHProof, []ed448.PublicKey{pm.ECDHPublic}, shake.UsageProofMessageECDH, proofContext))
	require.NoError(t, VerifyECDHProof(body.SharedECDHProof, []ed448.PublicKey{prekeyProfile.SharedPrekeyPublic}, shake.UsageProofSharedECDH, proofContext))

	dhPubKey, err := dh3072.FromBytes(pm.DHPublic)
	require.NoError(t, err)
	require.NoError(t, VerifyDHProof(body.DHProof, []*dh3072.PublicKey{dhPubKey}, proofContext))

	macKey := serverMacKey(t, sPriv, wireDAKE1.I)
	se := wire.NewEncoder()
	se.Raw(macKey)
	se.Byte(configs.PrekeyMsgSuccess)
	success := &Success{InstanceTag: clientTag, MAC: shake.DerivePrekey(shake.UsageSuccessMAC, se.Bytes(), macSize)}
	wireSuccess, err := DecodeSuccess(success.Serialize())
	require.NoError(t, err)
	require.NoError(t, engine.VerifySuccess(wireSuccess))
}

func TestEnsembleQueryRoundTrip(t *testing.T) {
	tag := wire.InstanceTag(0x333)
	query := BuildEnsembleQuery(tag, "carol@example.org", "4")
	decoded, err := DecodeEnsembleQueryRetrieval(query.Serialize())
	require.NoError(t, err)
	require.Equal(t, "carol@example.org", decoded.Identity)
	require.Equal(t, "4", decoded.Versions)

	empty := &NoPrekeyInStorage{InstanceTag: tag}
	decodedEmpty, err := DecodeNoPrekeyInStorage(empty.Serialize())
	require.NoError(t, err)
	require.Equal(t, tag, decodedEmpty.InstanceTag)
}
