package ratchet

import (
	"otrng/crypto/ed448"
	"otrng/otrerr"
	"otrng/wire"
)

// Header carries the per-message key-schedule metadata spec.md §4.6
// places in front of a data message's ciphertext: which chain
// generation and index produced the message key, and the sender's
// current ECDH (and, every third ratchet, DH) public.
type Header struct {
	Pn         uint32
	RatchetID  uint32
	MessageID  uint32
	ECDHPublic ed448.PublicKey
	DHPublic   []byte // nil unless this generation mixed a fresh DH secret
}

// Encode appends the header fields to e.
func (h Header) Encode(e *wire.Encoder) {
	e.Uint32(h.Pn)
	e.Uint32(h.RatchetID)
	e.Uint32(h.MessageID)
	e.Point(h.ECDHPublic)
	if h.DHPublic != nil {
		e.Byte(1)
		e.DHPublic(h.DHPublic)
	} else {
		e.Byte(0)
	}
}

// DecodeHeader parses a Header from d.
func DecodeHeader(d *wire.Decoder) (Header, error) {
	var h Header
	var err error
	if h.Pn, err = d.Uint32(); err != nil {
		return h, err
	}
	if h.RatchetID, err = d.Uint32(); err != nil {
		return h, err
	}
	if h.MessageID, err = d.Uint32(); err != nil {
		return h, err
	}
	if h.ECDHPublic, err = d.Point(); err != nil {
		return h, err
	}
	flag, err := d.Byte()
	if err != nil {
		return h, err
	}
	switch flag {
	case 0:
	case 1:
		b, err := d.DHPublic()
		if err != nil {
			return h, err
		}
		h.DHPublic = b
	default:
		return h, otrerr.Malformed
	}
	return h, nil
}
