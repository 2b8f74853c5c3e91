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

// PendingOp names the one request a DAKE3 attaches.
type PendingOp int

const (
	PendingNone PendingOp = iota
	PendingStorageInfoRequest
	PendingPublication
)

// PublicationRequest is everything StartPublish needs to build a
// publication body: the fresh prekey messages to offer (with their
// still-held private halves, so the engine can prove knowledge of
// them), and optionally refreshed client/prekey profiles.
type PublicationRequest struct {
	PrekeyMessages []*profile.PrekeyMessage
	PrekeySecrets  []*profile.PrekeySecrets // parallel to PrekeyMessages
	ClientProfile  *profile.ClientProfile   // nil to skip republishing
	PrekeyProfile  *profile.PrekeyProfile   // nil to skip
	PrekeyProfileX *ed448.Scalar            // shared prekey's private scalar, required iff PrekeyProfile != nil
}

// Engine drives one client's DAKE with a prekey server through to a
// MAC-authenticated request, the prekey-server analogue of dake.Engine.
// It is not reusable across exchanges.
type Engine struct {
	ourTag         wire.InstanceTag
	ourIdentity    string
	serverIdentity string
	clientProfile  *profile.ClientProfile
	keyPair        *ed448.KeyPair
	serverLongTerm ed448.PublicKey

	ecdhPriv *ed448.Scalar
	ecdhPub  ed448.PublicKey

	pendingOp  PendingOp
	pendingPub *PublicationRequest

	macKey []byte
}

// NewEngine constructs an idle engine. serverLongTerm is the server's
// long-term public key, obtained out of band (spec.md §4.10 treats the
// server's own identity verification as the deployment's
// responsibility, not this protocol's).
func NewEngine(ourTag wire.InstanceTag, ourIdentity, serverIdentity string, clientProfile *profile.ClientProfile, keyPair *ed448.KeyPair, serverLongTerm ed448.PublicKey) *Engine {
	return &Engine{
		ourTag:         ourTag,
		ourIdentity:    ourIdentity,
		serverIdentity: serverIdentity,
		clientProfile:  clientProfile,
		keyPair:        keyPair,
		serverLongTerm: serverLongTerm,
	}
}

func (e *Engine) generateEphemeral() error {
	priv, err := ed448.RandomScalar()
	if err != nil {
		return err
	}
	e.ecdhPriv = priv
	e.ecdhPub = ed448.PublicFromPoint(ed448.ScalarBaseMult(priv))
	return nil
}

// StartStorageInfoRequest begins a DAKE whose DAKE3 will ask the server
// how many prekey messages it still holds for this client.
func (e *Engine) StartStorageInfoRequest() (*DAKE1, error) {
	e.pendingOp = PendingStorageInfoRequest
	return e.start()
}

// StartPublish begins a DAKE whose DAKE3 will publish req's prekey
// material.
func (e *Engine) StartPublish(req *PublicationRequest) (*DAKE1, error) {
	e.pendingOp = PendingPublication
	e.pendingPub = req
	return e.start()
}

func (e *Engine) start() (*DAKE1, error) {
	if err := e.generateEphemeral(); err != nil {
		return nil, err
	}
	return &DAKE1{InstanceTag: e.ourTag, ClientProfile: e.clientProfile, I: e.ecdhPub}, nil
}

// phiBytes binds both parties' bare identities into the transcript, the
// "composite phi" of spec.md §4.10.
func (e *Engine) phiBytes() []byte {
	enc := wire.NewEncoder()
	enc.Data([]byte(e.ourIdentity))
	enc.Data([]byte(e.serverIdentity))
	return enc.Bytes()
}

func compositeIdentityBytes(serverIdentity []byte, serverLongTerm ed448.PublicKey) []byte {
	enc := wire.NewEncoder()
	enc.Data(serverIdentity)
	enc.PubKeyRecord(wire.PubKeyTypeIdentity, serverLongTerm)
	return enc.Bytes()
}

// buildTranscript mirrors dake.buildAuthMsg's shape, generalized to the
// prekey server's KDF-folded fields: tag || KDF(profileUsage, our
// client profile) || KDF(identityUsage, composite identity) || I || S
// || KDF(phiUsage, composite phi) (spec.md §4.10).
func (e *Engine) buildTranscript(tag byte, profileUsage, identityUsage, phiUsage shake.Usage, composite []byte, s ed448.PublicKey) []byte {
	enc := wire.NewEncoder()
	enc.Byte(tag)
	enc.Raw(shake.DerivePrekey(profileUsage, e.clientProfile.Serialize(), 64))
	enc.Raw(shake.DerivePrekey(identityUsage, composite, 64))
	enc.Point(e.ecdhPub)
	enc.Point(s)
	enc.Raw(shake.DerivePrekey(phiUsage, e.phiBytes(), 64))
	return enc.Bytes()
}

// ringPubs is the fixed 3-slot ring every prekey-server ring signature
// signs over: the client's long-term key, the server's long-term key,
// and the client's ephemeral I (by analogy with dake.Engine's
// AUTH-R/AUTH-I ring of initiator/responder/ephemeral keys).
func (e *Engine) ringPubs() [3]ed448.PublicKey {
	return [3]ed448.PublicKey{e.keyPair.Public, e.serverLongTerm, e.ecdhPub}
}

// ReceiveDAKE2 verifies the server's ring signature and, on success,
// derives the session keys and builds the DAKE3 for whichever op was
// started.
func (e *Engine) ReceiveDAKE2(msg *DAKE2) (*DAKE3, error) {
	if msg.InstanceTag != e.ourTag {
		return nil, otrerr.StateViolation
	}
	composite := compositeIdentityBytes(msg.ServerIdentity, msg.ServerLongTerm)
	t := e.buildTranscript(0, shake.UsageInitiatorClientProfile, shake.UsageInitiatorCompositeIdentity, shake.UsageInitiatorCompositePhi, composite, msg.S)
	pubs := e.ringPubs()
	if err := ringsig.Verify(pubs, msg.Sigma, t); err != nil {
		return nil, otrerr.CryptoFail
	}

	sPoint, err := ed448.PointFromPublic(msg.S)
	if err != nil {
		return nil, otrerr.CryptoFail
	}
	ecdhShared := ed448.ScalarMult(e.ecdhPriv, sPoint).Bytes()
	sk := shake.DerivePrekey(shake.UsageSK, ecdhShared, 64)
	e.macKey = shake.DerivePrekey(shake.UsagePreMACKey, sk, 64)

	t1 := e.buildTranscript(1, shake.UsageReceiverClientProfile, shake.UsageReceiverCompositeIdentity, shake.UsageReceiverCompositePhi, composite, msg.S)
	sigma, err := ringsig.Sign(pubs, 0, e.keyPair.Private, t1)
	if err != nil {
		return nil, err
	}

	var body []byte
	switch e.pendingOp {
	case PendingStorageInfoRequest:
		body = e.buildStorageInfoRequestBody()
	case PendingPublication:
		b, err := e.buildPublicationBody(sk)
		if err != nil {
			return nil, err
		}
		body = b
	default:
		return nil, otrerr.StateViolation
	}

	return &DAKE3{InstanceTag: e.ourTag, Sigma: sigma, Message: body}, nil
}

func (e *Engine) buildStorageInfoRequestBody() []byte {
	enc := wire.NewEncoder()
	enc.Raw(e.macKey)
	enc.Byte(configs.PrekeyMsgStorageInfoRequest)
	mac := shake.DerivePrekey(shake.UsageStorageInfoReqMAC, enc.Bytes(), macSize)
	return storageInfoRequestBody{MAC: mac}.serialize()
}

func (e *Engine) buildPublicationBody(sk []byte) ([]byte, error) {
	req := e.pendingPub

	ecdhPrivs := make([]*ed448.Scalar, 0, len(req.PrekeyMessages)+1)
	ecdhPubs := make([]ed448.PublicKey, 0, len(req.PrekeyMessages)+1)
	for i, pm := range req.PrekeyMessages {
		ecdhPrivs = append(ecdhPrivs, req.PrekeySecrets[i].ECDHPrivate)
		ecdhPubs = append(ecdhPubs, pm.ECDHPublic)
	}

	dhPrivs := make([]*dh3072.PrivateKey, 0, len(req.PrekeyMessages))
	dhPubs := make([]*dh3072.PublicKey, 0, len(req.PrekeyMessages))
	for i := range req.PrekeyMessages {
		dhPrivs = append(dhPrivs, req.PrekeySecrets[i].DHPrivate)
		pub, err := dh3072.FromBytes(req.PrekeyMessages[i].DHPublic)
		if err != nil {
			return nil, err
		}
		dhPubs = append(dhPubs, pub)
	}

	proofContext := shake.DerivePrekey(shake.UsageProofContext, sk, 64)

	var ecdhProof *ECDHProof
	var dhProof *DHProof
	if len(req.PrekeyMessages) > 0 {
		p, err := GenerateECDHProof(ecdhPrivs, ecdhPubs, shake.UsageProofMessageECDH, proofContext)
		if err != nil {
			return nil, err
		}
		ecdhProof = p

		p2, err := GenerateDHProof(dhPrivs, dhPubs, proofContext)
		if err != nil {
			return nil, err
		}
		dhProof = p2
	}
	var sharedECDHProof *ECDHProof
	if req.PrekeyProfile != nil {
		sharedPub := req.PrekeyProfile.SharedPrekeyPublic
		p, err := GenerateECDHProof([]*ed448.Scalar{req.PrekeyProfileX}, []ed448.PublicKey{sharedPub}, shake.UsageProofSharedECDH, proofContext)
		if err != nil {
			return nil, err
		}
		sharedECDHProof = p
	}

	body := publicationBody{
		ClientProfile:   req.ClientProfile,
		PrekeyProfile:   req.PrekeyProfile,
		PrekeyMessages:  req.PrekeyMessages,
		ECDHProof:       ecdhProof,
		DHProof:         dhProof,
		SharedECDHProof: sharedECDHProof,
	}

	mac := e.publicationMAC(body)
	body.MAC = mac
	return body.serialize(), nil
}

// publicationMAC computes the pre-MAC over the publication's
// type/count/client-profile/prekey-profile/prekey-messages chain, each
// folded through its own KDF usage before the final tag (spec.md §6:
// usage_pre_MAC_key / usage 0x09's analogues per field).
func (e *Engine) publicationMAC(body publicationBody) []byte {
	enc := wire.NewEncoder()
	enc.Raw(e.macKey)
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

func (e *Engine) verifyResponseMAC(usage shake.Usage, typ byte, extra []byte, mac []byte) error {
	enc := wire.NewEncoder()
	enc.Raw(e.macKey)
	enc.Byte(typ)
	enc.Raw(extra)
	want := shake.DerivePrekey(usage, enc.Bytes(), macSize)
	if !bytesEqual(want, mac) {
		return otrerr.CryptoFail
	}
	return nil
}

// VerifyStorageStatus checks the MAC on a StorageStatus reply and
// returns the reported count.
func (e *Engine) VerifyStorageStatus(msg *StorageStatus) (uint32, error) {
	var extra wire.Encoder
	extra.Uint32(msg.StoredCount)
	if err := e.verifyResponseMAC(shake.UsageStorageStatusMAC, configs.PrekeyMsgStorageStatus, extra.Bytes(), msg.MAC); err != nil {
		return 0, err
	}
	return msg.StoredCount, nil
}

// VerifySuccess checks the MAC on a Success reply.
func (e *Engine) VerifySuccess(msg *Success) error {
	return e.verifyResponseMAC(shake.UsageSuccessMAC, configs.PrekeyMsgSuccess, nil, msg.MAC)
}

// VerifyFailure checks the MAC on a Failure reply.
func (e *Engine) VerifyFailure(msg *Failure) error {
	return e.verifyResponseMAC(shake.UsageFailureMAC, configs.PrekeyMsgFailure, nil, msg.MAC)
}

// BuildEnsembleQuery constructs the unauthenticated ensemble query for
// identity (optionally filtered to versions; empty means "any").
func BuildEnsembleQuery(ourTag wire.InstanceTag, identity, versions string) *EnsembleQueryRetrieval {
	return &EnsembleQueryRetrieval{InstanceTag: ourTag, Identity: identity, Versions: versions}
}
