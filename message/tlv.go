package message

import "otrng/wire"

// TLVType tags the kind of in-band record carried after the
// human-readable part of a decrypted payload (spec.md §6).
type TLVType uint16

const (
	TLVPadding             TLVType = 0x0000
	TLVDisconnected        TLVType = 0x0001
	TLVSMP1                TLVType = 0x0002
	TLVSMP2                TLVType = 0x0003
	TLVSMP3                TLVType = 0x0004
	TLVSMP4                TLVType = 0x0005
	TLVSMPAbort            TLVType = 0x0006
	TLVExtraSymmKeyRequest TLVType = 0x0007
)

// TLV is one type-length-value record.
type TLV struct {
	Type  TLVType
	Value []byte
}

// Payload is the decrypted content of a data message: an optional
// human-readable message followed by zero or more TLV records, OTR's
// long-standing NUL-separated convention.
type Payload struct {
	Message string
	TLVs    []TLV
}

// Serialize lays out the payload as message-bytes, a NUL separator,
// then each TLV as a 2-byte type, 2-byte length, and value.
func (p *Payload) Serialize() []byte {
	e := wire.NewEncoder()
	e.Raw([]byte(p.Message))
	e.Byte(0)
	for _, t := range p.TLVs {
		e.Uint16(uint16(t.Type))
		e.Uint16(uint16(len(t.Value)))
		e.Raw(t.Value)
	}
	return e.Bytes()
}

// ParsePayload splits b at the first NUL into the message text and
// the trailing TLV records, failing closed on a truncated TLV.
func ParsePayload(b []byte) (*Payload, error) {
	sep := -1
	for i, c := range b {
		if c == 0 {
			sep = i
			break
		}
	}
	if sep == -1 {
		return &Payload{Message: string(b)}, nil
	}

	p := &Payload{Message: string(b[:sep])}
	d := wire.NewDecoder(b[sep+1:])
	for !d.Done() {
		typ, err := d.Uint16()
		if err != nil {
			return nil, err
		}
		length, err := d.Uint16()
		if err != nil {
			return nil, err
		}
		value, err := d.Raw(int(length))
		if err != nil {
			return nil, err
		}
		p.TLVs = append(p.TLVs, TLV{Type: TLVType(typ), Value: value})
	}
	return p, nil
}
