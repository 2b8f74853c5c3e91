package wire

import (
	"otrng/configs"
	"otrng/otrerr"
)

// InstanceTag is the 32-bit per-client identifier of spec.md §3. Zero
// is reserved and never valid on the wire.
type InstanceTag uint32

// MinInstanceTag is the smallest value a valid instance tag may take.
const MinInstanceTag InstanceTag = 0x100

// Valid reports whether t satisfies spec.md §3's "value >= 0x100" rule.
func (t InstanceTag) Valid() bool { return t >= MinInstanceTag }

// Header is the common framing spec.md §4.4 puts in front of every
// DAKE and data message: version tag, type byte, sender/receiver
// instance tags.
type Header struct {
	Type     byte
	Sender   InstanceTag
	Receiver InstanceTag
}

// Encode writes the fixed header fields; callers append the
// message-specific body afterward.
func (h Header) Encode(e *Encoder) {
	e.Uint16(configs.WireVersion)
	e.Byte(h.Type)
	e.Uint32(uint32(h.Sender))
	e.Uint32(uint32(h.Receiver))
}

// DecodeHeader reads and validates the fixed header, rejecting an
// unrecognized version outright (spec.md §7: VersionMismatch).
func DecodeHeader(d *Decoder) (Header, error) {
	var h Header
	version, err := d.Uint16()
	if err != nil {
		return h, err
	}
	if version != configs.WireVersion {
		return h, otrerr.VersionMismatch
	}
	typ, err := d.Byte()
	if err != nil {
		return h, err
	}
	sender, err := d.Uint32()
	if err != nil {
		return h, err
	}
	receiver, err := d.Uint32()
	if err != nil {
		return h, err
	}
	h.Type = typ
	h.Sender = InstanceTag(sender)
	h.Receiver = InstanceTag(receiver)
	return h, nil
}
