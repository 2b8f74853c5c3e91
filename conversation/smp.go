package conversation

import (
	"bytes"
	"encoding/binary"
	"errors"

	"otrng/callbacks"
	"otrng/crypto/ed448"
	"otrng/crypto/shake"
	"otrng/message"
	"otrng/otrerr"
	"otrng/smp"
	"otrng/wire"
)

// orderFingerprints returns (initiator_fp, responder_fp) in a fixed,
// role-independent order so both sides of an SMP exchange compute the
// same x = KDF_smp(...) input regardless of who calls StartSMP
// (spec.md §4.7): the lexicographically smaller fingerprint is always
// "initiator_fp".
func orderFingerprints(ourFP, peerFP []byte) (initiatorFP, responderFP []byte) {
	if bytes.Compare(ourFP, peerFP) <= 0 {
		return ourFP, peerFP
	}
	return peerFP, ourFP
}

func (c *Conversation) smpSecret(secret string) *ed448.Scalar {
	initFP, respFP := orderFingerprints(c.ourFP, c.peerFP)
	return smp.DeriveSecret(4, initFP, respFP, c.ssid, secret)
}

// StartSMP begins an SMP exchange as the initiator over the current
// ENCRYPTED conversation, comparing secret against whatever the peer
// later submits. question is carried in the clear inside SMP1
// (spec.md §4.7).
func (c *Conversation) StartSMP(secret, question string) ([]string, error) {
	if c.phase.Kind != PhaseEncrypted {
		return nil, otrerr.NotEncrypted
	}
	c.smpEngine = smp.NewEngine()
	msg1, err := c.smpEngine.StartSMP1(c.smpSecret(secret), question)
	if err != nil {
		return nil, err
	}
	return c.sendPayload(&message.Payload{TLVs: []message.TLV{{Type: message.TLVSMP1, Value: msg1.Serialize()}}})
}

// AnswerSMP submits the local secret in response to an SMP1 the
// collaborator was already prompted about (via SMPAskForSecret or
// SMPAskForAnswer), producing SMP2.
func (c *Conversation) AnswerSMP(secret string) ([]string, error) {
	if c.phase.Kind != PhaseEncrypted || c.smpEngine == nil {
		return nil, otrerr.NotEncrypted
	}
	msg2, err := c.smpEngine.AnswerSMP1(c.smpSecret(secret))
	if err != nil {
		return nil, err
	}
	return c.sendPayload(&message.Payload{TLVs: []message.TLV{{Type: message.TLVSMP2, Value: msg2.Serialize()}}})
}

// AbortSMP cancels any in-flight SMP exchange, resetting the local
// engine and notifying the peer with an SMP_ABORT TLV.
func (c *Conversation) AbortSMP() ([]string, error) {
	if c.phase.Kind != PhaseEncrypted {
		return nil, otrerr.NotEncrypted
	}
	if c.smpEngine != nil {
		c.smpEngine.ReceiveAbort()
	}
	return c.sendPayload(&message.Payload{TLVs: []message.TLV{{Type: message.TLVSMPAbort}}})
}

// processTLVs dispatches every TLV carried in a decrypted data
// message, per spec.md §4.7/§6. It returns the outbound fragments of
// any reply the dispatch produced, in arrival order, and stops at the
// first DISCONNECTED TLV (spec.md §4.9: the conversation tears down
// and nothing after it matters).
func (c *Conversation) processTLVs(tlvs []message.TLV) ([]string, error) {
	var out []string
	ctx := c.convCtx()

	for _, t := range tlvs {
		switch t.Type {
		case message.TLVPadding:
			// ignored, per spec.md §6.

		case message.TLVDisconnected:
			if c.ratchet != nil {
				c.ratchet.Wipe()
			}
			c.ratchet = nil
			c.dakeEngine = nil
			c.smpEngine = nil
			c.phase = Finished()
			c.collab.GoneInsecure(ctx)
			return out, nil

		case message.TLVSMP1:
			pieces, err := c.dispatchSMP1(t.Value, ctx)
			if err != nil {
				return out, err
			}
			out = append(out, pieces...)

		case message.TLVSMP2:
			pieces, err := c.dispatchSMP2(t.Value, ctx)
			if err != nil {
				return out, err
			}
			out = append(out, pieces...)

		case message.TLVSMP3:
			pieces, err := c.dispatchSMP3(t.Value, ctx)
			if err != nil {
				return out, err
			}
			out = append(out, pieces...)

		case message.TLVSMP4:
			if err := c.dispatchSMP4(t.Value, ctx); err != nil {
				return out, err
			}

		case message.TLVSMPAbort:
			if c.smpEngine != nil {
				c.smpEngine.ReceiveAbort()
			}
			c.collab.SMPUpdate(callbacks.SMPAbort, 0, ctx)

		case message.TLVExtraSymmKeyRequest:
			c.dispatchExtraSymmKey(t.Value, ctx)
		}
	}
	return out, nil
}

// cheatAbort reacts to an out-of-order SMP input (spec.md §4.7: "any
// -> out-of-order SMP_* -> EXPECT1, emit SMP_ABORT to peer, event
// CHEATED"): the engine has already reset itself; this sends the
// abort and surfaces the event.
func (c *Conversation) cheatAbort(ctx callbacks.ConversationContext) ([]string, error) {
	c.collab.SMPUpdate(callbacks.SMPCheated, 0, ctx)
	return c.sendPayload(&message.Payload{TLVs: []message.TLV{{Type: message.TLVSMPAbort}}})
}

func (c *Conversation) dispatchSMP1(value []byte, ctx callbacks.ConversationContext) ([]string, error) {
	msg, err := smp.DecodeSMP1(value)
	if err != nil {
		return nil, nil // Malformed: silent-drop
	}
	if c.smpEngine == nil {
		c.smpEngine = smp.NewEngine()
	}
	question, err := c.smpEngine.ReceiveSMP1(msg)
	if errors.Is(err, smp.ErrCheated) {
		return c.cheatAbort(ctx)
	}
	if err != nil {
		return nil, nil // Malformed/CryptoFail: silent-drop
	}
	if question != "" {
		c.collab.SMPAskForAnswer(question, ctx)
		c.collab.SMPUpdate(callbacks.SMPAskForAnswer, 0, ctx)
	} else {
		c.collab.SMPAskForSecret(ctx)
		c.collab.SMPUpdate(callbacks.SMPAskForSecret, 0, ctx)
	}
	return nil, nil
}

func (c *Conversation) dispatchSMP2(value []byte, ctx callbacks.ConversationContext) ([]string, error) {
	msg, err := smp.DecodeSMP2(value)
	if err != nil {
		return nil, nil
	}
	if c.smpEngine == nil {
		c.smpEngine = smp.NewEngine()
	}
	smp3, err := c.smpEngine.ReceiveSMP2(msg)
	if errors.Is(err, smp.ErrCheated) {
		return c.cheatAbort(ctx)
	}
	if err != nil {
		return nil, nil
	}
	c.collab.SMPUpdate(callbacks.SMPInProgress, 50, ctx)
	return c.sendPayload(&message.Payload{TLVs: []message.TLV{{Type: message.TLVSMP3, Value: smp3.Serialize()}}})
}

func (c *Conversation) dispatchSMP3(value []byte, ctx callbacks.ConversationContext) ([]string, error) {
	msg, err := smp.DecodeSMP3(value)
	if err != nil {
		return nil, nil
	}
	if c.smpEngine == nil {
		c.smpEngine = smp.NewEngine()
	}
	smp4, result, err := c.smpEngine.ReceiveSMP3(msg)
	if errors.Is(err, smp.ErrCheated) {
		return c.cheatAbort(ctx)
	}
	if err != nil {
		return nil, nil
	}
	c.surfaceSMPResult(result, ctx)
	return c.sendPayload(&message.Payload{TLVs: []message.TLV{{Type: message.TLVSMP4, Value: smp4.Serialize()}}})
}

func (c *Conversation) dispatchSMP4(value []byte, ctx callbacks.ConversationContext) error {
	msg, err := smp.DecodeSMP4(value)
	if err != nil {
		return nil
	}
	if c.smpEngine == nil {
		c.smpEngine = smp.NewEngine()
	}
	result, err := c.smpEngine.ReceiveSMP4(msg)
	if errors.Is(err, smp.ErrCheated) {
		_, sendErr := c.cheatAbort(ctx)
		return sendErr
	}
	if err != nil {
		return nil
	}
	c.surfaceSMPResult(result, ctx)
	return nil
}

func (c *Conversation) surfaceSMPResult(result smp.Result, ctx callbacks.ConversationContext) {
	switch result {
	case smp.ResultSucceeded:
		c.collab.SMPUpdate(callbacks.SMPSuccess, 100, ctx)
	case smp.ResultFailed:
		c.collab.SMPUpdate(callbacks.SMPFailure, 100, ctx)
	}
}

// extraSymmKeyUseTagSize is the fixed width of TLV 0x0007's leading
// use-tag field (spec.md §6: "use_tag, use_data").
const extraSymmKeyUseTagSize = 4

func (c *Conversation) dispatchExtraSymmKey(value []byte, ctx callbacks.ConversationContext) {
	if len(value) < extraSymmKeyUseTagSize || c.ratchet == nil {
		return
	}
	useTag := binary.BigEndian.Uint32(value[:extraSymmKeyUseTagSize])
	useData := value[extraSymmKeyUseTagSize:]
	key := deriveExtraSymmKey(c.ssid, useTag, useData)
	c.collab.ReceivedExtraSymmKey(ctx, useTag, useData, key)
}

// deriveExtraSymmKey derives the usage-tagged key TLV 0x0007 surfaces
// to the host, binding it to this conversation's session id so two
// conversations never derive the same extra symmetric key.
func deriveExtraSymmKey(ssid []byte, useTag uint32, useData []byte) []byte {
	e := wire.NewEncoder()
	e.Raw(ssid)
	e.Uint32(useTag)
	e.Raw(useData)
	return shake.Derive(shake.UsageExtraSymmKey, e.Bytes(), 32)
}
