package conversation

// Policy is a bitmask of host-configurable behavior, mirroring the
// original's OTRNG_* policy bits (client_state.c) rather than the
// prose "policy={3,4}" spec.md §8's scenarios use.
type Policy uint8

const (
	// AllowV3 permits negotiating the legacy protocol version. Carried
	// for bitmask fidelity with the original; this library implements
	// no v3 DAKE (spec.md's Non-goals exclude OTRv3 compatibility), so
	// setting it alone, without AllowV4, yields no usable negotiation.
	AllowV3 Policy = 1 << iota
	// AllowV4 permits negotiating OTRv4, the only version this library
	// can actually speak.
	AllowV4
	// RequireEncryption causes Send to refuse plaintext entirely
	// instead of merely warning, once a conversation has ever reached
	// ENCRYPTED.
	RequireEncryption
	// WhitespaceStartAKE causes a received whitespace tag to trigger
	// an automatic AKE, per spec.md §4.9's whitespace-tag handling.
	WhitespaceStartAKE
)

// Has reports whether every bit in want is set in p.
func (p Policy) Has(want Policy) bool { return p&want == want }
