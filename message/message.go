// Package message implements the data-message framer of spec.md §4.6:
// the wire layout wrapping a ratchet.Header around an XSalsa20
// ciphertext, a SHAKE-256 MAC, and any revealed old MAC keys, plus the
// TLV records carried in the decrypted payload.
package message

import (
	"otrng/configs"
	"otrng/crypto/xsalsa20"
	"otrng/otrerr"
	"otrng/ratchet"
	"otrng/wire"
)

// MACSize is the wire length of a data message's authentication tag.
const MACSize = 64

// Flag bits for DataMessage.Flags (spec.md §4.6).
const (
	FlagIgnoreUnreadable byte = 1 << 0
)

// DataMessage is one encrypted conversation message: the fixed OTRv4
// header, the ratchet key-schedule header, and the ciphertext/MAC
// framing.
type DataMessage struct {
	Header          wire.Header
	Flags           byte
	RatchetHeader   ratchet.Header
	Nonce           [xsalsa20.NonceSize]byte
	Ciphertext      []byte
	MAC             [MACSize]byte
	RevealedMACKeys []byte // concatenation of 64-byte mk_mac values
}

// authenticatedData returns everything the MAC covers except the MAC
// itself and the revealed-keys trailer, which is appended after
// authentication per spec.md §4.6's field order.
func (m *DataMessage) authenticatedData() []byte {
	e := wire.NewEncoder()
	m.Header.Encode(e)
	e.Byte(m.Flags)
	m.RatchetHeader.Encode(e)
	e.Raw(m.Nonce[:])
	e.Data(m.Ciphertext)
	return e.Bytes()
}

// Serialize returns the full wire encoding of the data message.
func (m *DataMessage) Serialize() []byte {
	e := wire.NewEncoder()
	m.Header.Encode(e)
	e.Byte(m.Flags)
	m.RatchetHeader.Encode(e)
	e.Raw(m.Nonce[:])
	e.Data(m.Ciphertext)
	e.Raw(m.MAC[:])
	e.Data(m.RevealedMACKeys)
	return e.Bytes()
}

// DecodeDataMessage parses a serialized data message.
func DecodeDataMessage(b []byte) (*DataMessage, error) {
	d := wire.NewDecoder(b)
	h, err := wire.DecodeHeader(d)
	if err != nil {
		return nil, err
	}
	if h.Type != configs.MsgTypeData {
		return nil, otrerr.Malformed
	}

	flags, err := d.Byte()
	if err != nil {
		return nil, err
	}

	rh, err := ratchet.DecodeHeader(d)
	if err != nil {
		return nil, err
	}

	nonceBytes, err := d.Raw(xsalsa20.NonceSize)
	if err != nil {
		return nil, err
	}

	ciphertext, err := d.Data()
	if err != nil {
		return nil, err
	}

	macBytes, err := d.Raw(MACSize)
	if err != nil {
		return nil, err
	}

	revealed, err := d.Data()
	if err != nil {
		return nil, err
	}

	if !d.Done() {
		return nil, otrerr.Malformed
	}

	msg := &DataMessage{Header: h, Flags: flags, RatchetHeader: rh, Ciphertext: ciphertext, RevealedMACKeys: revealed}
	copy(msg.Nonce[:], nonceBytes)
	copy(msg.MAC[:], macBytes)
	return msg, nil
}
