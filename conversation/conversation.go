// Package conversation implements the driver of spec.md §4.9: message
// classification, version negotiation, and the glue wiring the DAKE
// engine, ratchet key manager, data-message framer, SMP engine, and
// fragmenter into one two-party session. It plays the role the
// teacher's ChatApp/client.go event loop plays, generalized from a
// single fixed transport into a transport-agnostic driver the host
// feeds strings into and pulls strings out of.
package conversation

import (
	"errors"
	"time"

	"otrng/account"
	"otrng/callbacks"
	"otrng/configs"
	"otrng/crypto/ed448"
	"otrng/crypto/shake"
	"otrng/dake"
	"otrng/frag"
	"otrng/message"
	"otrng/otrerr"
	"otrng/profile"
	"otrng/ratchet"
	"otrng/smp"
	"otrng/wire"
)

// ErrReceivedUnencrypted is returned alongside valid plaintext when a
// plain message arrives outside START: a warning, not a failure, per
// spec.md §4.9 ("raises Warning::ReceivedUnencrypted and still
// delivers the plaintext").
var ErrReceivedUnencrypted = errors.New("otrng: received unencrypted message outside START")

// Conversation is one two-party session: exactly one key manager, one
// SMP transcript, one fragmentation context, per spec.md §3's
// lifecycle rule.
type Conversation struct {
	acc        *account.Account
	ourProfile *profile.ClientProfile
	peerTag    wire.InstanceTag
	policy     Policy
	collab     callbacks.Collaborator

	phase          Phase
	weInitiatedDake bool
	runningVersion int

	dakeEngine *dake.Engine
	ratchet    *ratchet.State
	smpEngine  *smp.Engine
	defrag     *frag.Defragmenter

	peerLongTerm ed448.PublicKey
	ourFP        []byte
	peerFP       []byte
	ssid         []byte

	transportMTU int
	heartbeat    time.Duration
}

// New returns a conversation in START, addressed to peerTag, acting
// under acc's identity and ourProfile's advertised versions/expiry.
func New(acc *account.Account, ourProfile *profile.ClientProfile, peerTag wire.InstanceTag, policy Policy, collab callbacks.Collaborator) *Conversation {
	return &Conversation{
		acc:          acc,
		ourProfile:   ourProfile,
		peerTag:      peerTag,
		policy:       policy,
		collab:       collab,
		phase:        Start(),
		defrag:       frag.New(peerTag, acc.InstanceTag),
		transportMTU: configs.DefaultTransportMTU,
		heartbeat:    configs.DefaultHeartbeat,
	}
}

// Phase reports the conversation's current phase.
func (c *Conversation) Phase() Phase { return c.phase }

// SetTransportMTU overrides the default outbound fragment piece size
// (spec.md §5's host-policy hint).
func (c *Conversation) SetTransportMTU(mms int) { c.transportMTU = mms }

// Heartbeat overrides the default heartbeat hint. The core never
// schedules its own timer; the host decides when to act on it.
func (c *Conversation) Heartbeat(interval time.Duration) { c.heartbeat = interval }

// HeartbeatInterval reports the current heartbeat hint.
func (c *Conversation) HeartbeatInterval() time.Duration { return c.heartbeat }

// StartQuery returns the "?OTRv<versions>? " tag to prepend to an
// outbound plaintext, offering an AKE (spec.md §8's S1).
func (c *Conversation) StartQuery(message string) string {
	return BuildQuery(c.policy, message)
}

// StartWhitespaceTag returns message wrapped in a whitespace AKE
// advertisement (spec.md §8's S2).
func (c *Conversation) StartWhitespaceTag(message string) []byte {
	return BuildWhitespaceTag(c.policy, message)
}

// StartDAKE begins a v4 DAKE as initiator, returning the outbound
// pieces to send.
func (c *Conversation) StartDAKE() ([]string, error) {
	if !c.policy.Has(AllowV4) {
		return nil, otrerr.VersionMismatch
	}
	c.dakeEngine = dake.NewEngine(c.acc.InstanceTag, c.ourProfile, c.acc.LongTerm)
	identity, err := c.dakeEngine.StartInitiator(c.peerTag)
	if err != nil {
		return nil, err
	}
	c.weInitiatedDake = true
	c.runningVersion = 4
	c.phase = Dake4(c.dakeEngine.State())
	return c.wrapAndFragment(identity.Serialize())
}

// Send encrypts plaintext for the peer, returning the outbound
// fragments to transmit.
func (c *Conversation) Send(plaintext string) ([]string, error) {
	return c.sendPayload(&message.Payload{Message: plaintext})
}

func (c *Conversation) sendPayload(payload *message.Payload) ([]string, error) {
	switch c.phase.Kind {
	case PhaseFinished:
		return nil, otrerr.StateFinished
	case PhaseEncrypted:
	default:
		return nil, otrerr.NotEncrypted
	}

	msg, err := message.Encrypt(c.ratchet, c.acc.InstanceTag, c.peerTag, 0, payload.Serialize())
	if err != nil {
		return nil, err
	}
	return c.wrapAndFragment(msg.Serialize())
}

// Close issues an SMP_ABORT (if SMP is mid-flight) and a DISCONNECTED
// TLV in an otherwise-empty data message, then forgets all ratchet
// state and returns to START (spec.md §4.9).
func (c *Conversation) Close() ([]string, error) {
	if c.phase.Kind != PhaseEncrypted {
		c.reset()
		return nil, nil
	}

	payload := &message.Payload{TLVs: []message.TLV{{Type: message.TLVDisconnected}}}
	if c.smpEngine != nil && c.smpEngine.State() != smp.StateExpect1 {
		payload.TLVs = append([]message.TLV{{Type: message.TLVSMPAbort}}, payload.TLVs...)
	}

	out, err := c.sendPayload(payload)
	c.reset()
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Conversation) reset() {
	if c.ratchet != nil {
		c.ratchet.Wipe()
	}
	c.ratchet = nil
	c.dakeEngine = nil
	c.smpEngine = nil
	c.phase = Start()
	c.weInitiatedDake = false
	c.runningVersion = 0
}

func (c *Conversation) wrapAndFragment(raw []byte) ([]string, error) {
	return frag.Fragment(c.transportMTU, c.acc.InstanceTag, c.peerTag, raw)
}

func peekHeader(raw []byte) (wire.Header, error) {
	d := wire.NewDecoder(raw)
	return wire.DecodeHeader(d)
}

func derivePeerFingerprints(ourLongTerm, peerLongTerm ed448.PublicKey) (ourFP, peerFP []byte) {
	return smp.Fingerprint(ourLongTerm[:]), smp.Fingerprint(peerLongTerm[:])
}

func deriveSSID(k []byte) []byte {
	return shake.Derive(shake.UsageSK, k, 8)
}
