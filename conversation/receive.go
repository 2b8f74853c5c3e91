package conversation

import (
	"otrng/callbacks"
	"otrng/configs"
	"otrng/dake"
	"otrng/message"
	"otrng/otrerr"
	"otrng/ratchet"
	"otrng/smp"
	"otrng/wire"
)

// Inbound is what Receive hands back to the host for one processed
// transport string: a human-readable payload, if any, plus a warning
// that accompanies it rather than replacing it (spec.md §4.9:
// "delivers the plaintext" even when it also raises
// Warning::ReceivedUnencrypted).
type Inbound struct {
	Plaintext string
	Warning   error
}

// Receive processes one inbound transport string, probing its kind in
// the fixed order classify.go documents and routing it to the DAKE
// engine, ratchet/framer, or SMP dispatcher as appropriate. It returns
// the plaintext (if any) to surface to the host, the outbound pieces
// (if any) to transmit in reply, and an error for the synchronous
// cases spec.md §7 names (NotEncrypted/StateFinished never arise
// here; those are Send's domain). Errors spec.md §7 marks silent-drop
// or silent-ignore are swallowed here and never returned; the host
// only learns of them as a missing reply.
func (c *Conversation) Receive(raw string) (*Inbound, []string, error) {
	switch Classify(raw) {
	case KindQuery:
		return c.receiveQuery(raw)
	case KindWhitespaceTagged:
		return c.receiveWhitespaceTagged(raw)
	case KindFragment:
		return c.receiveFragment(raw)
	case KindEncoded:
		return c.receiveEncoded(raw)
	default:
		return c.receivePlaintext(raw)
	}
}

func (c *Conversation) receivePlaintext(raw string) (*Inbound, []string, error) {
	if c.phase.Kind != PhaseStart {
		return &Inbound{Plaintext: raw, Warning: ErrReceivedUnencrypted}, nil, nil
	}
	return &Inbound{Plaintext: raw}, nil, nil
}

func (c *Conversation) receiveQuery(raw string) (*Inbound, []string, error) {
	versions := ParseQueryVersions(raw)
	version := NegotiateVersion(c.policy, versions)
	if version != 4 || c.phase.Kind != PhaseStart {
		return nil, nil, nil
	}
	out, err := c.StartDAKE()
	return nil, out, err
}

func (c *Conversation) receiveWhitespaceTagged(raw string) (*Inbound, []string, error) {
	plaintext := StripWhitespaceTag(raw)
	in := &Inbound{Plaintext: plaintext}
	if c.phase.Kind != PhaseStart {
		in.Warning = ErrReceivedUnencrypted
	}

	if !c.policy.Has(WhitespaceStartAKE) {
		return in, nil, nil
	}
	versions := ParseWhitespaceVersions(raw)
	version := NegotiateVersion(c.policy, versions)
	if version != 4 || c.phase.Kind != PhaseStart {
		return in, nil, nil
	}
	out, err := c.StartDAKE()
	if err != nil {
		return in, nil, err
	}
	return in, out, nil
}

func (c *Conversation) receiveEncoded(raw string) (*Inbound, []string, error) {
	body, err := unwrapEncoded(raw)
	if err != nil {
		return nil, nil, nil // Malformed: silent-drop, spec.md §7
	}
	return c.receiveWireMessage(body)
}

func (c *Conversation) receiveFragment(raw string) (*Inbound, []string, error) {
	body, complete, err := c.defrag.Feed(raw)
	if err != nil {
		return nil, nil, nil // Malformed: silent-drop
	}
	if !complete {
		return nil, nil, nil
	}
	return c.receiveWireMessage(body)
}

// receiveWireMessage dispatches a fully reassembled wire message
// (a DAKE message or a data message) by peeking its type byte.
func (c *Conversation) receiveWireMessage(body []byte) (*Inbound, []string, error) {
	h, err := peekHeader(body)
	if err != nil {
		return nil, nil, nil // Malformed/VersionMismatch: silent-drop
	}

	switch h.Type {
	case configs.MsgTypeIdentity:
		out, err := c.onIdentity(body)
		return nil, out, err
	case configs.MsgTypeAuthR:
		out, err := c.onAuthR(body)
		return nil, out, err
	case configs.MsgTypeAuthI:
		out, err := c.onAuthI(body)
		return nil, out, err
	case configs.MsgTypeData:
		return c.onDataMessage(body)
	default:
		return nil, nil, nil
	}
}

func silentOutcome(err error) ([]string, error) {
	if otrerr.SilentDrop(err) || otrerr.SilentIgnore(err) {
		return nil, nil
	}
	return nil, err
}

func (c *Conversation) onIdentity(body []byte) ([]string, error) {
	msg, err := dake.DecodeIdentity(body)
	if err != nil {
		return silentOutcome(err)
	}
	if msg.Header.Receiver != 0 && msg.Header.Receiver != c.acc.InstanceTag {
		return nil, nil
	}

	if c.dakeEngine == nil {
		c.dakeEngine = dake.NewEngine(c.acc.InstanceTag, c.ourProfile, c.acc.LongTerm)
	}

	authR, err := c.dakeEngine.ReceiveIdentity(msg)
	if err != nil {
		return silentOutcome(err)
	}
	if authR == nil {
		// Tie-break loss, or Q3's silent-ignore of a retransmitted
		// IDENTITY while already waiting on AUTH-I.
		return nil, nil
	}

	c.runningVersion = 4
	c.weInitiatedDake = false
	c.phase = Dake4(c.dakeEngine.State())
	return c.wrapAndFragment(authR.Serialize())
}

func (c *Conversation) onAuthR(body []byte) ([]string, error) {
	if c.dakeEngine == nil {
		return nil, nil // StateViolation: silent-ignore
	}
	msg, err := dake.DecodeAuthR(body)
	if err != nil {
		return silentOutcome(err)
	}

	authI, err := c.dakeEngine.ReceiveAuthR(msg)
	if err != nil {
		return silentOutcome(err)
	}

	result, err := c.dakeEngine.FinalizeAsInitiator()
	if err != nil {
		return silentOutcome(err)
	}
	c.completeDake(result)

	return c.wrapAndFragment(authI.Serialize())
}

func (c *Conversation) onAuthI(body []byte) ([]string, error) {
	if c.dakeEngine == nil {
		return nil, nil // StateViolation: silent-ignore
	}
	msg, err := dake.DecodeAuthI(body)
	if err != nil {
		return silentOutcome(err)
	}

	result, err := c.dakeEngine.ReceiveAuthI(msg)
	if err != nil {
		return silentOutcome(err)
	}
	c.completeDake(result)
	return nil, nil
}

// completeDake seeds the ratchet from a finished DAKE's mixed secret,
// transitions to ENCRYPTED, and fires the gone_secure/fingerprint_seen
// collaborator callbacks (spec.md §4.4's closing paragraph).
func (c *Conversation) completeDake(result *dake.Result) {
	c.ratchet = ratchet.New(result.K, result.OurECDHPriv, result.OurECDHPub, result.OurDHPriv, result.OurDHPub, result.TheirECDHPub, result.TheirDHBytes, configs.DefaultMaxSkip)
	c.peerLongTerm = result.PeerLongTerm
	c.ourFP, c.peerFP = derivePeerFingerprints(c.acc.LongTerm.Public, result.PeerLongTerm)
	c.ssid = deriveSSID(result.K)
	c.smpEngine = smp.NewEngine()
	c.dakeEngine = nil
	c.phase = Encrypted()

	ctx := c.convCtx()
	c.collab.GoneSecure(ctx)
	c.collab.FingerprintSeen(c.peerFP, ctx)
}

func (c *Conversation) convCtx() callbacks.ConversationContext {
	return callbacks.ConversationContext{PeerInstanceTag: c.peerTag, OurInstanceTag: c.acc.InstanceTag}
}

func (c *Conversation) onDataMessage(body []byte) (*Inbound, []string, error) {
	if c.phase.Kind != PhaseEncrypted {
		return nil, nil, nil // no ratchet to decrypt under: drop
	}
	msg, err := message.DecodeDataMessage(body)
	if err != nil {
		out, derr := silentOutcome(err)
		return nil, out, derr
	}

	plaintext, err := message.Decrypt(c.ratchet, msg)
	if err != nil {
		out, derr := silentOutcome(err)
		return nil, out, derr
	}

	payload, err := message.ParsePayload(plaintext)
	if err != nil {
		return nil, nil, nil
	}

	out, err := c.processTLVs(payload.TLVs)
	if err != nil {
		return nil, out, err
	}

	if payload.Message == "" {
		return nil, out, nil
	}
	return &Inbound{Plaintext: payload.Message}, out, nil
}
