package profile

import (
	"time"

	"otrng/otrerr"
	"otrng/wire"
)

// Ensemble bundles the three records a peer needs to initiate a
// session asynchronously (spec.md §3): the publisher's client profile,
// prekey profile, and a one-shot prekey message.
type Ensemble struct {
	ClientProfile *ClientProfile
	PrekeyProfile *PrekeyProfile
	PrekeyMessage *PrekeyMessage
}

// Serialize returns the wire encoding of the three sub-records, each
// length-prefixed so they can be parsed back independently.
func (e *Ensemble) Serialize() []byte {
	enc := wire.NewEncoder()
	enc.Data(e.ClientProfile.Serialize())
	enc.Data(e.PrekeyProfile.Serialize())
	enc.Data(e.PrekeyMessage.Serialize())
	return enc.Bytes()
}

// DecodeEnsemble parses a serialized ensemble.
func DecodeEnsemble(b []byte) (*Ensemble, error) {
	d := wire.NewDecoder(b)

	cpBytes, err := d.Data()
	if err != nil {
		return nil, err
	}
	cp, err := DecodeClientProfile(cpBytes)
	if err != nil {
		return nil, err
	}

	ppBytes, err := d.Data()
	if err != nil {
		return nil, err
	}
	pp, err := DecodePrekeyProfile(ppBytes)
	if err != nil {
		return nil, err
	}

	pmBytes, err := d.Data()
	if err != nil {
		return nil, err
	}
	pm, err := DecodePrekeyMessage(pmBytes)
	if err != nil {
		return nil, err
	}

	if !d.Done() {
		return nil, otrerr.Malformed
	}

	return &Ensemble{ClientProfile: cp, PrekeyProfile: pp, PrekeyMessage: pm}, nil
}

// Validate checks both embedded profiles and that the prekey message's
// instance tag matches the client profile's owner.
func (e *Ensemble) Validate(expectedTag wire.InstanceTag, now time.Time) error {
	if err := Validate(e.ClientProfile, expectedTag, now); err != nil {
		return err
	}
	if err := ValidatePrekeyProfile(e.PrekeyProfile, e.ClientProfile.LongTermPublic, now); err != nil {
		return err
	}
	if e.PrekeyMessage.InstanceTag != expectedTag {
		return otrerr.Malformed
	}
	return nil
}
