package prekeyclient

import (
	"otrng/configs"
	"otrng/crypto/dh3072"
	"otrng/crypto/ed448"
	"otrng/crypto/ringsig"
	"otrng/crypto/shake"
	"otrng/otrerr"
	"otrng/profile"
	"otrng/wire"
)

// ServerSession drives one client's DAKE from the prekey server's side,
// the counterpart to Engine. It plays the role demo/relay's HTTP
// handlers delegate to, keeping every cryptographic step grounded here
// rather than duplicated at the transport layer.
type ServerSession struct {
	tag            wire.InstanceTag
	serverKP       *ed448.KeyPair
	serverIdentity string
	clientIdentity string

	clientProfile *profile.ClientProfile
	clientI       ed448.PublicKey

	ephemeralPriv *ed448.Scalar
	ephemeralPub  ed448.PublicKey

	macKey []byte
}

// NewServerSession starts a session for one client connection.
// serverKP is the prekey server's own long-term identity, the key a
// client verifies DAKE2 against out of band (trust-on-first-use).
func NewServerSession(serverIdentity string, serverKP *ed448.KeyPair) *ServerSession {
	return &ServerSession{serverKP: serverKP, serverIdentity: serverIdentity}
}

// ReceiveDAKE1 validates the opening message and replies with a signed
// DAKE2. clientIdentity is the bare identity the client authenticated
// as at the transport layer (e.g. the path segment demo/relay's
// publish endpoint is called on), needed to reproduce the same
// composite-phi transcript input the client signs against.
func (s *ServerSession) ReceiveDAKE1(clientIdentity string, msg *DAKE1) (*DAKE2, error) {
	s.tag = msg.InstanceTag
	s.clientIdentity = clientIdentity
	s.clientProfile = msg.ClientProfile
	s.clientI = msg.I

	ephPriv, err := ed448.RandomScalar()
	if err != nil {
		return nil, err
	}
	s.ephemeralPriv = ephPriv
	s.ephemeralPub = ed448.PublicFromPoint(ed448.ScalarBaseMult(ephPriv))

	composite := compositeIdentityBytes([]byte(s.serverIdentity), s.serverKP.Public)
	t := s.buildTranscript(0, shake.UsageInitiatorClientProfile, shake.UsageInitiatorCompositeIdentity, shake.UsageInitiatorCompositePhi, composite)

	pubs := [3]ed448.PublicKey{msg.ClientProfile.LongTermPublic, s.serverKP.Public, msg.I}
	sigma, err := ringsig.Sign(pubs, 1, s.serverKP.Private, t)
	if err != nil {
		return nil, err
	}

	return &DAKE2{
		InstanceTag:    msg.InstanceTag,
		ServerIdentity: []byte(s.serverIdentity),
		ServerLongTerm: s.serverKP.Public,
		S:              s.ephemeralPub,
		Sigma:          sigma,
	}, nil
}

func (s *ServerSession) buildTranscript(tag byte, profileUsage, identityUsage, phiUsage shake.Usage, composite []byte) []byte {
	enc := wire.NewEncoder()
	enc.Byte(tag)
	enc.Raw(shake.DerivePrekey(profileUsage, s.clientProfile.Serialize(), 64))
	enc.Raw(shake.DerivePrekey(identityUsage, composite, 64))
	enc.Point(s.clientI)
	enc.Point(s.ephemeralPub)
	phi := wire.NewEncoder()
	phi.Data([]byte(s.clientIdentity))
	phi.Data([]byte(s.serverIdentity))
	enc.Raw(shake.DerivePrekey(phiUsage, phi.Bytes(), 64))
	return enc.Bytes()
}

// PublishedMaterial is what a successfully verified publication offers
// the server to store.
type PublishedMaterial struct {
	ClientProfile  *profile.ClientProfile
	PrekeyProfile  *profile.PrekeyProfile
	PrekeyMessages []*profile.PrekeyMessage
}

// ReceiveDAKE3 verifies the client's ring signature and dispatches to
// whichever op the client's DAKE3 carries. storageInfo is non-nil only
// for a storage-info-request; material is non-nil only for a
// publication whose proofs and MAC both check out.
func (s *ServerSession) ReceiveDAKE3(msg *DAKE3) (storageInfo bool, material *PublishedMaterial, err error) {
	if msg.InstanceTag != s.tag {
		return false, nil, otrerr.StateViolation
	}
	composite := compositeIdentityBytes([]byte(s.serverIdentity), s.serverKP.Public)
	t := s.buildTranscript(1, shake.UsageReceiverClientProfile, shake.UsageReceiverCompositeIdentity, shake.UsageReceiverCompositePhi, composite)

	pubs := [3]ed448.PublicKey{s.clientProfile.LongTermPublic, s.serverKP.Public, s.clientI}
	if err := ringsig.Verify(pubs, msg.Sigma, t); err != nil {
		return false, nil, otrerr.CryptoFail
	}

	iPoint, err := ed448.PointFromPublic(s.clientI)
	if err != nil {
		return false, nil, otrerr.CryptoFail
	}
	ecdhShared := ed448.ScalarMult(s.ephemeralPriv, iPoint).Bytes()
	sk := shake.DerivePrekey(shake.UsageSK, ecdhShared, 64)
	s.macKey = shake.DerivePrekey(shake.UsagePreMACKey, sk, 64)

	if len(msg.Message) == 0 {
		return false, nil, otrerr.Malformed
	}
	switch msg.Message[0] {
	case configs.PrekeyMsgStorageInfoRequest:
		body, err := decodeStorageInfoRequestBody(msg.Message)
		if err != nil {
			return false, nil, err
		}
		e := wire.NewEncoder()
		e.Raw(s.macKey)
		e.Byte(configs.PrekeyMsgStorageInfoRequest)
		want := shake.DerivePrekey(shake.UsageStorageInfoReqMAC, e.Bytes(), macSize)
		if !bytesEqual(want, body.MAC) {
			return false, nil, otrerr.CryptoFail
		}
		return true, nil, nil

	case configs.PrekeyMsgPublication:
		body, err := decodePublicationBody(msg.Message)
		if err != nil {
			return false, nil, err
		}
		if err := s.verifyPublication(sk, body); err != nil {
			return false, nil, err
		}
		return false, &PublishedMaterial{
			ClientProfile:  body.ClientProfile,
			PrekeyProfile:  body.PrekeyProfile,
			PrekeyMessages: body.PrekeyMessages,
		}, nil

	default:
		return false, nil, otrerr.Malformed
	}
}

func (s *ServerSession) verifyPublication(sk []byte, body publicationBody) error {
	mac := s.publicationMAC(body)
	if !bytesEqual(mac, body.MAC) {
		return otrerr.CryptoFail
	}

	proofContext := shake.DerivePrekey(shake.UsageProofContext, sk, 64)

	if len(body.PrekeyMessages) > 0 {
		if body.ECDHProof == nil || body.DHProof == nil {
			return otrerr.CryptoFail
		}
		ecdhPubs := make([]ed448.PublicKey, len(body.PrekeyMessages))
		dhPubs := make([]*dh3072.PublicKey, len(body.PrekeyMessages))
		for i, pm := range body.PrekeyMessages {
			ecdhPubs[i] = pm.ECDHPublic
			dhPub, err := dh3072.FromBytes(pm.DHPublic)
			if err != nil {
				return otrerr.Malformed
			}
			dhPubs[i] = dhPub
		}
		if err := VerifyECDHProof(body.ECDHProof, ecdhPubs, shake.UsageProofMessageECDH, proofContext); err != nil {
			return otrerr.CryptoFail
		}
		if err := VerifyDHProof(body.DHProof, dhPubs, proofContext); err != nil {
			return otrerr.CryptoFail
		}
	}

	if body.PrekeyProfile != nil {
		if body.SharedECDHProof == nil {
			return otrerr.CryptoFail
		}
		if err := VerifyECDHProof(body.SharedECDHProof, []ed448.PublicKey{body.PrekeyProfile.SharedPrekeyPublic}, shake.UsageProofSharedECDH, proofContext); err != nil {
			return otrerr.CryptoFail
		}
	}

	return nil
}

// publicationMAC mirrors Engine.publicationMAC exactly: both sides must
// fold the same fields through the same usages to agree on the tag.
func (s *ServerSession) publicationMAC(body publicationBody) []byte {
	enc := wire.NewEncoder()
	enc.Raw(s.macKey)
	enc.Byte(configs.PrekeyMsgPublication)
	enc.Uint32(uint32(len(body.PrekeyMessages)))

	var pmBuf []byte
	for _, pm := range body.PrekeyMessages {
		pmBuf = append(pmBuf, pm.Serialize()...)
	}
	enc.Raw(shake.DerivePrekey(shake.UsagePrekeyMessageHash, pmBuf, 64))

	if body.ClientProfile != nil {
		enc.Byte(1)
		enc.Raw(shake.DerivePrekey(shake.UsageClientProfileHash, body.ClientProfile.Serialize(), 64))
	} else {
		enc.Byte(0)
	}

	if body.PrekeyProfile != nil {
		enc.Byte(1)
		enc.Raw(shake.DerivePrekey(shake.UsagePrekeyProfileHash, body.PrekeyProfile.Serialize(), 64))
	} else {
		enc.Byte(0)
	}

	var proofBuf []byte
	if body.ECDHProof != nil {
		proofBuf = append(proofBuf, body.ECDHProof.Serialize()...)
	}
	if body.DHProof != nil {
		proofBuf = append(proofBuf, body.DHProof.Serialize()...)
	}
	if body.SharedECDHProof != nil {
		proofBuf = append(proofBuf, body.SharedECDHProof.Serialize()...)
	}
	enc.Raw(shake.DerivePrekey(shake.UsageMACOfProofs, proofBuf, 64))

	return shake.DerivePrekey(shake.UsagePreMACTag, enc.Bytes(), macSize)
}

// MakeStorageStatus builds a MAC'd reply reporting count prekey
// messages on file for the client this session authenticated.
func (s *ServerSession) MakeStorageStatus(count uint32) *StorageStatus {
	msg := &StorageStatus{InstanceTag: s.tag, StoredCount: count}
	e := wire.NewEncoder()
	e.Raw(s.macKey)
	e.Raw(msg.macBody())
	msg.MAC = shake.DerivePrekey(shake.UsageStorageStatusMAC, e.Bytes(), macSize)
	return msg
}

// MakeSuccess builds a MAC'd confirmation that a publication was
// stored.
func (s *ServerSession) MakeSuccess() *Success {
	msg := &Success{InstanceTag: s.tag}
	e := wire.NewEncoder()
	e.Raw(s.macKey)
	e.Raw(msg.macBody())
	msg.MAC = shake.DerivePrekey(shake.UsageSuccessMAC, e.Bytes(), macSize)
	return msg
}

// MakeFailure builds a MAC'd rejection of the client's request.
func (s *ServerSession) MakeFailure() *Failure {
	msg := &Failure{InstanceTag: s.tag}
	e := wire.NewEncoder()
	e.Raw(s.macKey)
	e.Raw(msg.macBody())
	msg.MAC = shake.DerivePrekey(shake.UsageFailureMAC, e.Bytes(), macSize)
	return msg
}
