// Package prekeyclient implements the client side of the prekey-server
// sub-protocol spec.md §4.10/§6 defines: a DAKE1/DAKE2/DAKE3 exchange
// authenticating a client to the server, followed by a MAC-protected
// request (publish this client's prekey material, or ask how much is
// still stored), plus an unauthenticated ensemble query/retrieval path
// any peer can use to fetch a stranger's prekey ensemble. It plays the
// role the teacher's client package plays for first contact with its
// chat server, generalized from a bearer-token REST login into OTRv4's
// ring-signature-authenticated DAKE. The server's own transport is out
// of scope here (demo/relay supplies one); this package only builds
// and parses the messages and proves/verifies their cryptography.
package prekeyclient

import (
	"otrng/configs"
	"otrng/crypto/ed448"
	"otrng/crypto/ringsig"
	"otrng/otrerr"
	"otrng/profile"
	"otrng/wire"
)

func encodeHeader(e *wire.Encoder, typ byte, tag wire.InstanceTag) {
	e.Uint16(configs.WireVersion)
	e.Byte(typ)
	e.Uint32(uint32(tag))
}

// decodeHeader reads the fixed version/type/instance_tag prefix every
// prekey-server message opens with, rejecting a type byte other than
// want.
func decodeHeader(d *wire.Decoder, want byte) (wire.InstanceTag, error) {
	version, err := d.Uint16()
	if err != nil {
		return 0, err
	}
	if version != configs.WireVersion {
		return 0, otrerr.VersionMismatch
	}
	typ, err := d.Byte()
	if err != nil {
		return 0, err
	}
	if typ != want {
		return 0, otrerr.Malformed
	}
	tag, err := d.Uint32()
	if err != nil {
		return 0, err
	}
	return wire.InstanceTag(tag), nil
}

// DAKE1 is the client's opening message (type 0x08): its client
// profile and an ephemeral ECDH public I.
type DAKE1 struct {
	InstanceTag   wire.InstanceTag
	ClientProfile *profile.ClientProfile
	I             ed448.PublicKey
}

func (m *DAKE1) Serialize() []byte {
	e := wire.NewEncoder()
	encodeHeader(e, configs.PrekeyMsgDAKE1, m.InstanceTag)
	e.Data(m.ClientProfile.Serialize())
	e.Point(m.I)
	return e.Bytes()
}

func DecodeDAKE1(b []byte) (*DAKE1, error) {
	d := wire.NewDecoder(b)
	tag, err := decodeHeader(d, configs.PrekeyMsgDAKE1)
	if err != nil {
		return nil, err
	}
	cpBytes, err := d.Data()
	if err != nil {
		return nil, err
	}
	cp, err := profile.DecodeClientProfile(cpBytes)
	if err != nil {
		return nil, err
	}
	i, err := d.Point()
	if err != nil {
		return nil, err
	}
	if !d.Done() {
		return nil, otrerr.Malformed
	}
	return &DAKE1{InstanceTag: tag, ClientProfile: cp, I: i}, nil
}

// DAKE2 is the server's reply (type 0x09): its advertised identity, its
// long-term public key, an ephemeral ECDH public S, and a ring
// signature proving it holds the matching long-term secret.
type DAKE2 struct {
	InstanceTag    wire.InstanceTag
	ServerIdentity []byte
	ServerLongTerm ed448.PublicKey
	S              ed448.PublicKey
	Sigma          *ringsig.Sig
}

func (m *DAKE2) Serialize() []byte {
	e := wire.NewEncoder()
	encodeHeader(e, configs.PrekeyMsgDAKE2, m.InstanceTag)
	e.Data(m.ServerIdentity)
	e.PubKeyRecord(wire.PubKeyTypeIdentity, m.ServerLongTerm)
	e.Point(m.S)
	e.RingSig(m.Sigma)
	return e.Bytes()
}

func DecodeDAKE2(b []byte) (*DAKE2, error) {
	d := wire.NewDecoder(b)
	tag, err := decodeHeader(d, configs.PrekeyMsgDAKE2)
	if err != nil {
		return nil, err
	}
	identity, err := d.Data()
	if err != nil {
		return nil, err
	}
	_, longTerm, err := d.PubKeyRecord()
	if err != nil {
		return nil, err
	}
	s, err := d.Point()
	if err != nil {
		return nil, err
	}
	sigma, err := d.RingSig()
	if err != nil {
		return nil, err
	}
	if !d.Done() {
		return nil, otrerr.Malformed
	}
	return &DAKE2{InstanceTag: tag, ServerIdentity: identity, ServerLongTerm: longTerm, S: s, Sigma: sigma}, nil
}

// DAKE3 is the client's closing message (type 0x0A): its own ring
// signature plus one embedded op body (a StorageInfoRequest or a
// Publication, both already MAC'd under prekey_mac_k).
type DAKE3 struct {
	InstanceTag wire.InstanceTag
	Sigma       *ringsig.Sig
	Message     []byte
}

func (m *DAKE3) Serialize() []byte {
	e := wire.NewEncoder()
	encodeHeader(e, configs.PrekeyMsgDAKE3, m.InstanceTag)
	e.RingSig(m.Sigma)
	e.Data(m.Message)
	return e.Bytes()
}

func DecodeDAKE3(b []byte) (*DAKE3, error) {
	d := wire.NewDecoder(b)
	tag, err := decodeHeader(d, configs.PrekeyMsgDAKE3)
	if err != nil {
		return nil, err
	}
	sigma, err := d.RingSig()
	if err != nil {
		return nil, err
	}
	msg, err := d.Data()
	if err != nil {
		return nil, err
	}
	if !d.Done() {
		return nil, otrerr.Malformed
	}
	return &DAKE3{InstanceTag: tag, Sigma: sigma, Message: msg}, nil
}

const macSize = 64

// storageInfoRequestBody is DAKE3's embedded payload when the client is
// only asking how many prekey messages the server still holds for it.
type storageInfoRequestBody struct {
	MAC []byte
}

func (b storageInfoRequestBody) serialize() []byte {
	e := wire.NewEncoder()
	e.Byte(configs.PrekeyMsgStorageInfoRequest)
	e.Raw(b.MAC)
	return e.Bytes()
}

func decodeStorageInfoRequestBody(b []byte) (storageInfoRequestBody, error) {
	d := wire.NewDecoder(b)
	typ, err := d.Byte()
	if err != nil {
		return storageInfoRequestBody{}, err
	}
	if typ != configs.PrekeyMsgStorageInfoRequest {
		return storageInfoRequestBody{}, otrerr.Malformed
	}
	mac, err := d.Raw(macSize)
	if err != nil {
		return storageInfoRequestBody{}, err
	}
	if !d.Done() {
		return storageInfoRequestBody{}, otrerr.Malformed
	}
	return storageInfoRequestBody{MAC: mac}, nil
}

// publicationBody is DAKE3's embedded payload when the client publishes
// fresh prekey material: an optional refreshed client profile, an
// optional refreshed prekey profile, a batch of one-shot prekey
// messages, proofs of knowledge over all of it, and the closing MAC.
type publicationBody struct {
	ClientProfile    *profile.ClientProfile
	PrekeyProfile    *profile.PrekeyProfile
	PrekeyMessages   []*profile.PrekeyMessage
	ECDHProof        *ECDHProof // over every prekey message's ECDH public
	DHProof          *DHProof   // over every prekey message's DH public
	SharedECDHProof  *ECDHProof // over the prekey profile's shared ECDH public, if PrekeyProfile != nil
	MAC              []byte
}

func (b publicationBody) serialize() []byte {
	e := wire.NewEncoder()
	e.Byte(configs.PrekeyMsgPublication)
	e.Uint32(uint32(len(b.PrekeyMessages)))
	for _, m := range b.PrekeyMessages {
		e.Data(m.Serialize())
	}
	if b.ClientProfile != nil {
		e.Byte(1)
		e.Data(b.ClientProfile.Serialize())
	} else {
		e.Byte(0)
	}
	if b.PrekeyProfile != nil {
		e.Byte(1)
		e.Data(b.PrekeyProfile.Serialize())
	} else {
		e.Byte(0)
	}
	if b.ECDHProof != nil {
		e.Byte(1)
		e.Data(b.ECDHProof.Serialize())
	} else {
		e.Byte(0)
	}
	if b.DHProof != nil {
		e.Byte(1)
		e.Data(b.DHProof.Serialize())
	} else {
		e.Byte(0)
	}
	if b.SharedECDHProof != nil {
		e.Byte(1)
		e.Data(b.SharedECDHProof.Serialize())
	} else {
		e.Byte(0)
	}
	e.Raw(b.MAC)
	return e.Bytes()
}

func decodePublicationBody(raw []byte) (publicationBody, error) {
	d := wire.NewDecoder(raw)
	typ, err := d.Byte()
	if err != nil {
		return publicationBody{}, err
	}
	if typ != configs.PrekeyMsgPublication {
		return publicationBody{}, otrerr.Malformed
	}
	n, err := d.Uint32()
	if err != nil {
		return publicationBody{}, err
	}
	if n > 1024 {
		return publicationBody{}, otrerr.Malformed
	}
	b := publicationBody{}
	for i := uint32(0); i < n; i++ {
		pmBytes, err := d.Data()
		if err != nil {
			return publicationBody{}, err
		}
		pm, err := profile.DecodePrekeyMessage(pmBytes)
		if err != nil {
			return publicationBody{}, err
		}
		b.PrekeyMessages = append(b.PrekeyMessages, pm)
	}
	hasCP, err := d.Byte()
	if err != nil {
		return publicationBody{}, err
	}
	if hasCP == 1 {
		cpBytes, err := d.Data()
		if err != nil {
			return publicationBody{}, err
		}
		cp, err := profile.DecodeClientProfile(cpBytes)
		if err != nil {
			return publicationBody{}, err
		}
		b.ClientProfile = cp
	}
	hasPP, err := d.Byte()
	if err != nil {
		return publicationBody{}, err
	}
	if hasPP == 1 {
		ppBytes, err := d.Data()
		if err != nil {
			return publicationBody{}, err
		}
		pp, err := profile.DecodePrekeyProfile(ppBytes)
		if err != nil {
			return publicationBody{}, err
		}
		b.PrekeyProfile = pp
	}
	hasECDH, err := d.Byte()
	if err != nil {
		return publicationBody{}, err
	}
	if hasECDH == 1 {
		proofBytes, err := d.Data()
		if err != nil {
			return publicationBody{}, err
		}
		proof, err := DecodeECDHProof(proofBytes)
		if err != nil {
			return publicationBody{}, err
		}
		b.ECDHProof = proof
	}
	hasDH, err := d.Byte()
	if err != nil {
		return publicationBody{}, err
	}
	if hasDH == 1 {
		proofBytes, err := d.Data()
		if err != nil {
			return publicationBody{}, err
		}
		proof, err := DecodeDHProof(proofBytes)
		if err != nil {
			return publicationBody{}, err
		}
		b.DHProof = proof
	}
	hasSharedECDH, err := d.Byte()
	if err != nil {
		return publicationBody{}, err
	}
	if hasSharedECDH == 1 {
		proofBytes, err := d.Data()
		if err != nil {
			return publicationBody{}, err
		}
		proof, err := DecodeECDHProof(proofBytes)
		if err != nil {
			return publicationBody{}, err
		}
		b.SharedECDHProof = proof
	}
	mac, err := d.Raw(macSize)
	if err != nil {
		return publicationBody{}, err
	}
	if !d.Done() {
		return publicationBody{}, otrerr.Malformed
	}
	b.MAC = mac
	return b, nil
}

// StorageStatus (type 0x0B) reports how many prekey messages the
// server still holds for the requesting client.
type StorageStatus struct {
	InstanceTag wire.InstanceTag
	StoredCount uint32
	MAC         []byte
}

func (m *StorageStatus) macBody() []byte {
	e := wire.NewEncoder()
	e.Byte(configs.PrekeyMsgStorageStatus)
	e.Uint32(m.StoredCount)
	return e.Bytes()
}

func (m *StorageStatus) Serialize() []byte {
	e := wire.NewEncoder()
	encodeHeader(e, configs.PrekeyMsgStorageStatus, m.InstanceTag)
	e.Uint32(m.StoredCount)
	e.Raw(m.MAC)
	return e.Bytes()
}

func DecodeStorageStatus(b []byte) (*StorageStatus, error) {
	d := wire.NewDecoder(b)
	tag, err := decodeHeader(d, configs.PrekeyMsgStorageStatus)
	if err != nil {
		return nil, err
	}
	count, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	mac, err := d.Raw(macSize)
	if err != nil {
		return nil, err
	}
	if !d.Done() {
		return nil, otrerr.Malformed
	}
	return &StorageStatus{InstanceTag: tag, StoredCount: count, MAC: mac}, nil
}

// Success (type 0x0C) confirms a publication was stored.
type Success struct {
	InstanceTag wire.InstanceTag
	MAC         []byte
}

func (m *Success) macBody() []byte {
	e := wire.NewEncoder()
	e.Byte(configs.PrekeyMsgSuccess)
	return e.Bytes()
}

func (m *Success) Serialize() []byte {
	e := wire.NewEncoder()
	encodeHeader(e, configs.PrekeyMsgSuccess, m.InstanceTag)
	e.Raw(m.MAC)
	return e.Bytes()
}

func DecodeSuccess(b []byte) (*Success, error) {
	d := wire.NewDecoder(b)
	tag, err := decodeHeader(d, configs.PrekeyMsgSuccess)
	if err != nil {
		return nil, err
	}
	mac, err := d.Raw(macSize)
	if err != nil {
		return nil, err
	}
	if !d.Done() {
		return nil, otrerr.Malformed
	}
	return &Success{InstanceTag: tag, MAC: mac}, nil
}

// Failure (type 0x0D) reports a rejected publication or request.
type Failure struct {
	InstanceTag wire.InstanceTag
	MAC         []byte
}

func (m *Failure) macBody() []byte {
	e := wire.NewEncoder()
	e.Byte(configs.PrekeyMsgFailure)
	return e.Bytes()
}

func (m *Failure) Serialize() []byte {
	e := wire.NewEncoder()
	encodeHeader(e, configs.PrekeyMsgFailure, m.InstanceTag)
	e.Raw(m.MAC)
	return e.Bytes()
}

func DecodeFailure(b []byte) (*Failure, error) {
	d := wire.NewDecoder(b)
	tag, err := decodeHeader(d, configs.PrekeyMsgFailure)
	if err != nil {
		return nil, err
	}
	mac, err := d.Raw(macSize)
	if err != nil {
		return nil, err
	}
	if !d.Done() {
		return nil, otrerr.Malformed
	}
	return &Failure{InstanceTag: tag, MAC: mac}, nil
}

// NoPrekeyInStorage (type 0x0E) answers an ensemble query when the
// server has nothing on file for the requested identity. Unlike the
// four messages above it is never MAC'd: ensemble retrieval is a public
// read path with no prior DAKE session to key a MAC from.
type NoPrekeyInStorage struct {
	InstanceTag wire.InstanceTag
}

func (m *NoPrekeyInStorage) Serialize() []byte {
	e := wire.NewEncoder()
	encodeHeader(e, configs.PrekeyMsgNoPrekey, m.InstanceTag)
	return e.Bytes()
}

func DecodeNoPrekeyInStorage(b []byte) (*NoPrekeyInStorage, error) {
	d := wire.NewDecoder(b)
	tag, err := decodeHeader(d, configs.PrekeyMsgNoPrekey)
	if err != nil {
		return nil, err
	}
	if !d.Done() {
		return nil, otrerr.Malformed
	}
	return &NoPrekeyInStorage{InstanceTag: tag}, nil
}

// EnsembleRetrieval (type 0x0F) carries every ensemble the server holds
// for the queried identity.
type EnsembleRetrieval struct {
	InstanceTag wire.InstanceTag
	Ensembles   []*profile.Ensemble
}

func (m *EnsembleRetrieval) Serialize() []byte {
	e := wire.NewEncoder()
	encodeHeader(e, configs.PrekeyMsgEnsembleRetrieval, m.InstanceTag)
	e.Uint32(uint32(len(m.Ensembles)))
	for _, ens := range m.Ensembles {
		e.Data(ens.Serialize())
	}
	return e.Bytes()
}

func DecodeEnsembleRetrieval(b []byte) (*EnsembleRetrieval, error) {
	d := wire.NewDecoder(b)
	tag, err := decodeHeader(d, configs.PrekeyMsgEnsembleRetrieval)
	if err != nil {
		return nil, err
	}
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if n > 1024 {
		return nil, otrerr.Malformed
	}
	out := &EnsembleRetrieval{InstanceTag: tag}
	for i := uint32(0); i < n; i++ {
		ensBytes, err := d.Data()
		if err != nil {
			return nil, err
		}
		ens, err := profile.DecodeEnsemble(ensBytes)
		if err != nil {
			return nil, err
		}
		out.Ensembles = append(out.Ensembles, ens)
	}
	if !d.Done() {
		return nil, otrerr.Malformed
	}
	return out, nil
}

// EnsembleQueryRetrieval (type 0x10) asks the server for every
// ensemble on file for identity, optionally filtered by versions. It
// needs no DAKE: asking for a stranger's public prekey material is an
// anonymous read.
type EnsembleQueryRetrieval struct {
	InstanceTag wire.InstanceTag
	Identity    string
	Versions    string
}

func (m *EnsembleQueryRetrieval) Serialize() []byte {
	e := wire.NewEncoder()
	encodeHeader(e, configs.PrekeyMsgEnsembleQuery, m.InstanceTag)
	e.Data([]byte(m.Identity))
	e.Data([]byte(m.Versions))
	return e.Bytes()
}

func DecodeEnsembleQueryRetrieval(b []byte) (*EnsembleQueryRetrieval, error) {
	d := wire.NewDecoder(b)
	tag, err := decodeHeader(d, configs.PrekeyMsgEnsembleQuery)
	if err != nil {
		return nil, err
	}
	identity, err := d.Data()
	if err != nil {
		return nil, err
	}
	versions, err := d.Data()
	if err != nil {
		return nil, err
	}
	if !d.Done() {
		return nil, otrerr.Malformed
	}
	return &EnsembleQueryRetrieval{InstanceTag: tag, Identity: string(identity), Versions: string(versions)}, nil
}
