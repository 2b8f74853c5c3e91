package smp

import (
	"errors"

	"otrng/crypto/ed448"
	"otrng/crypto/shake"
	"otrng/otrerr"
)

// State is one node of the SMP state machine (spec.md §4.7).
type State int

const (
	StateExpect1 State = iota
	StateExpect2
	StateExpect3
	StateExpect4
	StateSucceeded
	StateFailed
)

// Result is the outcome surfaced to the conversation layer once an
// exchange concludes.
type Result int

const (
	ResultNone Result = iota
	ResultSucceeded
	ResultFailed
)

// ErrCheated is returned when an SMP message arrives out of turn,
// i.e. a type this engine's current state does not expect. The engine
// resets to EXPECT1; the caller is responsible for sending SMP_ABORT
// to the peer and surfacing a Cheated event, per spec.md §4.7's
// "any -> out-of-order SMP_* -> EXPECT1, emit SMP_ABORT, event CHEATED".
var ErrCheated = errors.New("smp: message received out of turn")

// DeriveSecret computes the shared scalar x = KDF_smp(version ||
// initiator_fp || responder_fp || ssid || answer) spec.md §4.7 names
// as the SMP input, binding the comparison to this exchange's
// identities and session so a transcript can't be replayed into a
// different conversation.
func DeriveSecret(version byte, initiatorFP, responderFP, ssid []byte, answer string) *ed448.Scalar {
	buf := make([]byte, 0, 1+len(initiatorFP)+len(responderFP)+len(ssid)+len(answer))
	buf = append(buf, version)
	buf = append(buf, initiatorFP...)
	buf = append(buf, responderFP...)
	buf = append(buf, ssid...)
	buf = append(buf, []byte(answer)...)
	digest := shake.Derive(shake.UsageSMPSecret, buf, 114)
	return ed448.ScalarFromBytes(digest)
}

// Fingerprint computes KDF_fp(longTermPublic), truncated to the
// 56-byte fingerprint spec.md §4.7 feeds into DeriveSecret.
func Fingerprint(longTermPublic []byte) []byte {
	return shake.Derive(shake.UsageFingerprint, longTermPublic, 56)
}

// Engine runs one side of an SMP exchange. The same type plays both
// the initiator and the responder role, dispatched on which method is
// called next, the way dake.Engine plays both DAKE roles.
type Engine struct {
	state       State
	weInitiated bool

	x  *ed448.Scalar // our secret scalar
	ra *ed448.Scalar // our random blinding scalar (kept from SMP1/SMP2 through SMP3)

	ourPoint  *ed448.Point // A (initiator) or B (responder), sent out
	peerPoint *ed448.Point // the peer's A or B, received

	ourT  *ed448.Point // Ta or Tb, computed and sent by us
	peerT *ed448.Point // the T value received from the peer
}

// NewEngine returns an idle engine in EXPECT1.
func NewEngine() *Engine {
	return &Engine{state: StateExpect1}
}

// State reports the engine's current state.
func (e *Engine) State() State { return e.state }

// StartSMP1 begins a new exchange as the initiator, valid only from
// EXPECT1 (spec.md's idle state, including after a prior exchange's
// SUCCEEDED/FAILED/ABORT outcome).
func (e *Engine) StartSMP1(secret *ed448.Scalar, question string) (*SMP1, error) {
	if e.state != StateExpect1 {
		return nil, otrerr.StateViolation
	}
	r, err := ed448.RandomScalar()
	if err != nil {
		return nil, err
	}
	a := ed448.ScalarBaseMult(r)
	proof, err := proveSingle(ed448.BasePoint(), a, r, shake.UsageSMPChallenge1)
	if err != nil {
		return nil, err
	}

	e.x = secret
	e.ra = r
	e.ourPoint = a
	e.weInitiated = true
	e.state = StateExpect2

	return &SMP1{Question: question, A: ed448.PublicFromPoint(a), Proof: proof}, nil
}

// ReceiveSMP1 validates an incoming SMP1 while idle and returns its
// question for the caller to prompt the local user with. The exchange
// doesn't advance state until AnswerSMP1 is called with the answer.
func (e *Engine) ReceiveSMP1(msg *SMP1) (string, error) {
	if e.state != StateExpect1 {
		return "", e.cheat()
	}
	a, err := ed448.PointFromPublic(msg.A)
	if err != nil {
		return "", otrerr.Malformed
	}
	if !verifySingle(ed448.BasePoint(), a, msg.Proof, shake.UsageSMPChallenge1) {
		return "", otrerr.CryptoFail
	}
	e.peerPoint = a
	e.weInitiated = false
	return msg.Question, nil
}

// AnswerSMP1 submits the local secret in response to a prompted SMP1,
// producing SMP2 and moving to EXPECT3 (awaiting SMP3).
func (e *Engine) AnswerSMP1(secret *ed448.Scalar) (*SMP2, error) {
	if e.peerPoint == nil || e.weInitiated {
		return nil, otrerr.StateViolation
	}
	r, err := ed448.RandomScalar()
	if err != nil {
		return nil, err
	}
	b := ed448.ScalarBaseMult(r)
	tb := ed448.ScalarMult(r, e.peerPoint).Add(ed448.ScalarMult(secret, ed448.BasePoint()))
	proof, err := proveDual(e.peerPoint, ed448.BasePoint(), tb, r, secret, shake.UsageSMPChallenge2)
	if err != nil {
		return nil, err
	}

	e.x = secret
	e.ra = r
	e.ourPoint = b
	e.ourT = tb
	e.state = StateExpect3

	return &SMP2{B: ed448.PublicFromPoint(b), T: ed448.PublicFromPoint(tb), Proof: proof}, nil
}

// ReceiveSMP2 handles the initiator's receipt of SMP2 while EXPECT2,
// producing SMP3 and moving to EXPECT4.
func (e *Engine) ReceiveSMP2(msg *SMP2) (*SMP3, error) {
	if e.state != StateExpect2 {
		return nil, e.cheat()
	}
	b, err := ed448.PointFromPublic(msg.B)
	if err != nil {
		return nil, otrerr.Malformed
	}
	tb, err := ed448.PointFromPublic(msg.T)
	if err != nil {
		return nil, otrerr.Malformed
	}
	if !verifyDual(e.ourPoint, ed448.BasePoint(), tb, msg.Proof, shake.UsageSMPChallenge2) {
		return nil, otrerr.CryptoFail
	}

	ta := ed448.ScalarMult(e.ra, b).Add(ed448.ScalarMult(e.x, ed448.BasePoint()))
	proof, err := proveDual(b, ed448.BasePoint(), ta, e.ra, e.x, shake.UsageSMPChallenge3)
	if err != nil {
		return nil, err
	}

	e.peerPoint = b
	e.peerT = tb
	e.ourT = ta
	e.state = StateExpect4

	return &SMP3{T: ed448.PublicFromPoint(ta), Proof: proof}, nil
}

// ReceiveSMP3 handles the responder's receipt of SMP3 while EXPECT3.
// Because r_a*B = r_b*A = r_a*r_b*G, Ta - Tb equals exactly
// (x_a - x_b)*G: Ta == Tb iff the two secrets were equal. The
// responder learns this immediately and is the first to know the
// result, matching spec.md's "EXPECT3 -SMP3-> SMP4 out, result".
func (e *Engine) ReceiveSMP3(msg *SMP3) (*SMP4, Result, error) {
	if e.state != StateExpect3 {
		return nil, ResultNone, e.cheat()
	}
	ta, err := ed448.PointFromPublic(msg.T)
	if err != nil {
		return nil, ResultNone, otrerr.Malformed
	}
	if !verifyDual(e.ourPoint, ed448.BasePoint(), ta, msg.Proof, shake.UsageSMPChallenge3) {
		return nil, ResultNone, otrerr.CryptoFail
	}

	success := bytesEqual(ta.Bytes(), e.ourT.Bytes())
	result := ResultFailed
	if success {
		result = ResultSucceeded
	}
	e.reset()
	return &SMP4{Success: success}, result, nil
}

// ReceiveSMP4 handles the initiator's receipt of SMP4 while EXPECT4.
// The initiator's result comes from her own Ta against the Tb she
// received in SMP2, never from msg.Success, so a lying peer cannot
// manufacture a false success here.
func (e *Engine) ReceiveSMP4(msg *SMP4) (Result, error) {
	if e.state != StateExpect4 {
		return ResultNone, e.cheat()
	}
	_ = msg
	success := bytesEqual(e.ourT.Bytes(), e.peerT.Bytes())
	result := ResultFailed
	if success {
		result = ResultSucceeded
	}
	e.reset()
	return result, nil
}

// ReceiveAbort resets the engine to EXPECT1 on an incoming SMP_ABORT,
// from any state. The caller surfaces the Abort event itself.
func (e *Engine) ReceiveAbort() {
	e.reset()
}

func (e *Engine) cheat() error {
	e.reset()
	return ErrCheated
}

func (e *Engine) reset() {
	e.state = StateExpect1
	e.weInitiated = false
	e.x = nil
	e.ra = nil
	e.ourPoint = nil
	e.peerPoint = nil
	e.ourT = nil
	e.peerT = nil
}
