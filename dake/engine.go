package dake

import (
	"math/big"
	"time"

	"otrng/configs"
	"otrng/crypto/dh3072"
	"otrng/crypto/ed448"
	"otrng/crypto/ringsig"
	"otrng/crypto/shake"
	"otrng/otrerr"
	"otrng/profile"
	"otrng/wire"
)

// State is the DAKE engine's own position, tracked independently of
// the conversation driver's broader Phase (spec.md §9's Dake4/Dake3
// substates nest one of these).
type State int

const (
	StateStart State = iota
	StateWaitingAuthR
	StateWaitingAuthI
	StateDone
)

// Result is everything the conversation/ratchet layer needs once a
// DAKE completes: the mixed root secret, the peer's identity, and both
// sides' DAKE ephemerals, so gone_secure/fingerprint_seen can fire and
// ratchet.New can seed the double ratchet directly from it.
type Result struct {
	K               []byte
	PeerLongTerm    ed448.PublicKey
	PeerProfile     *profile.ClientProfile
	PeerInstanceTag wire.InstanceTag

	OurECDHPriv  *ed448.Scalar
	OurECDHPub   ed448.PublicKey
	OurDHPriv    *dh3072.PrivateKey
	OurDHPub     *dh3072.PublicKey
	TheirECDHPub ed448.PublicKey
	TheirDHBytes []byte
}

// Engine drives one side of a single DAKE exchange. It is not
// reusable across exchanges; the conversation driver constructs a
// fresh Engine each time a new handshake begins.
type Engine struct {
	ourTag     wire.InstanceTag
	ourProfile *profile.ClientProfile
	ourKeyPair *ed448.KeyPair

	state State

	// Ephemeral material generated when we act as initiator (Identity)
	// or responder (AuthR); exactly one pair is populated at a time.
	ecdhPriv *ed448.Scalar
	ecdhPub  ed448.PublicKey
	dhPriv   *dh3072.PrivateKey
	dhPub    *dh3072.PublicKey

	// Transcript state accumulated as the exchange progresses.
	initiatorProfile *profile.ClientProfile
	responderProfile *profile.ClientProfile
	y, x             ed448.PublicKey
	b, a             []byte

	weAreInitiator bool
}

// NewEngine constructs an idle engine for a fresh exchange.
func NewEngine(ourTag wire.InstanceTag, ourProfile *profile.ClientProfile, ourKeyPair *ed448.KeyPair) *Engine {
	return &Engine{ourTag: ourTag, ourProfile: ourProfile, ourKeyPair: ourKeyPair, state: StateStart}
}

// State reports the engine's current position.
func (e *Engine) State() State { return e.state }

func generateEphemeral() (*ed448.Scalar, ed448.PublicKey, *dh3072.PrivateKey, *dh3072.PublicKey, error) {
	ecdhPriv, err := ed448.RandomScalar()
	if err != nil {
		return nil, ed448.PublicKey{}, nil, nil, err
	}
	ecdhPub := ed448.PublicFromPoint(ed448.ScalarBaseMult(ecdhPriv))

	dhPriv, dhPub, err := dh3072.New()
	if err != nil {
		return nil, ed448.PublicKey{}, nil, nil, err
	}
	return ecdhPriv, ecdhPub, dhPriv, dhPub, nil
}

// StartInitiator begins a fresh exchange as the initiator, generating
// ephemeral keys and returning the IDENTITY message to send.
func (e *Engine) StartInitiator(peerTag wire.InstanceTag) (*Identity, error) {
	ecdhPriv, ecdhPub, dhPriv, dhPub, err := generateEphemeral()
	if err != nil {
		return nil, err
	}
	e.ecdhPriv, e.ecdhPub, e.dhPriv, e.dhPub = ecdhPriv, ecdhPub, dhPriv, dhPub
	e.weAreInitiator = true
	e.state = StateWaitingAuthR

	return &Identity{
		Header:        wire.Header{Type: configs.MsgTypeIdentity, Sender: e.ourTag, Receiver: peerTag},
		ClientProfile: e.ourProfile,
		Y:             ecdhPub,
		B:             dhPub.Bytes(),
	}, nil
}

// tieBreakPrefersIncoming reports whether, on a concurrent IDENTITY
// collision, the incoming message should win and restart us as the
// responder (spec.md §4.4: compare numeric(B_ours) vs numeric(Y_theirs)).
func tieBreakPrefersIncoming(ourB []byte, theirY ed448.PublicKey) bool {
	ours := new(big.Int).SetBytes(ourB)
	theirs := new(big.Int).SetBytes(theirY[:])
	return ours.Cmp(theirs) >= 0
}

// ReceiveIdentity processes an incoming IDENTITY message, producing
// the AUTH-R message to send back, or (nil, nil) if the message was
// silently discarded per spec.md §4.4/§9's collision and retransmission
// rules.
func (e *Engine) ReceiveIdentity(msg *Identity) (*AuthR, error) {
	switch e.state {
	case StateWaitingAuthI:
		// Q3: an IDENTITY arriving while we're already the responder
		// waiting on AUTH-I is silently ignored, tolerating peer
		// retransmission rather than restarting an exchange that has
		// already progressed further.
		return nil, nil
	case StateWaitingAuthR:
		if !tieBreakPrefersIncoming(e.b, msg.Y) {
			return nil, nil
		}
		// We lose the race: forget our initiator ephemerals and
		// restart as responder to the winning IDENTITY.
		e.ecdhPriv, e.ecdhPub, e.dhPriv, e.dhPub = nil, ed448.PublicKey{}, nil, nil
		e.weAreInitiator = false
	case StateStart:
		e.weAreInitiator = false
	case StateDone:
		return nil, otrerr.StateViolation
	}

	if time.Now().Unix() >= msg.ClientProfile.Expiry {
		return nil, otrerr.ProfileExpired
	}

	ecdhPriv, ecdhPub, dhPriv, dhPub, err := generateEphemeral()
	if err != nil {
		return nil, err
	}
	e.ecdhPriv, e.ecdhPub, e.dhPriv, e.dhPub = ecdhPriv, ecdhPub, dhPriv, dhPub

	e.initiatorProfile = msg.ClientProfile
	e.responderProfile = e.ourProfile
	e.y = msg.Y
	e.x = ecdhPub
	e.b = msg.B
	e.a = dhPub.Bytes()

	t := buildAuthMsg(0, e.initiatorProfile, e.responderProfile, e.y, e.x, e.b, e.a)
	pubs := [3]ed448.PublicKey{e.initiatorProfile.LongTermPublic, e.responderProfile.LongTermPublic, e.y}
	sigma, err := ringsig.Sign(pubs, 1, e.ourKeyPair.Private, t)
	if err != nil {
		return nil, err
	}

	e.state = StateWaitingAuthI

	return &AuthR{
		Header:        wire.Header{Type: configs.MsgTypeAuthR, Sender: e.ourTag, Receiver: msg.Header.Sender},
		ClientProfile: e.ourProfile,
		X:             e.x,
		A:             e.a,
		Sigma:         sigma,
	}, nil
}

// ReceiveAuthR processes an incoming AUTH-R message (we must be the
// initiator, in StateWaitingAuthR), producing the AUTH-I message to
// send back.
func (e *Engine) ReceiveAuthR(msg *AuthR) (*AuthI, error) {
	if e.state != StateWaitingAuthR || !e.weAreInitiator {
		return nil, otrerr.StateViolation
	}
	if time.Now().Unix() >= msg.ClientProfile.Expiry {
		return nil, otrerr.ProfileExpired
	}

	e.initiatorProfile = e.ourProfile
	e.responderProfile = msg.ClientProfile
	e.y = e.ecdhPub
	e.x = msg.X
	e.b = e.dhPub.Bytes()
	e.a = msg.A

	t := buildAuthMsg(0, e.initiatorProfile, e.responderProfile, e.y, e.x, e.b, e.a)
	pubs := [3]ed448.PublicKey{e.initiatorProfile.LongTermPublic, e.responderProfile.LongTermPublic, e.y}
	if err := ringsig.Verify(pubs, msg.Sigma, t); err != nil {
		return nil, otrerr.CryptoFail
	}

	t1 := buildAuthMsg(1, e.initiatorProfile, e.responderProfile, e.y, e.x, e.b, e.a)
	sigma, err := ringsig.Sign(pubs, 0, e.ourKeyPair.Private, t1)
	if err != nil {
		return nil, err
	}

	e.state = StateDone

	return &AuthI{
		Header: wire.Header{Type: configs.MsgTypeAuthI, Sender: e.ourTag, Receiver: msg.Header.Sender},
		Sigma:  sigma,
	}, nil
}

// ReceiveAuthI processes the final AUTH-I message (we must be the
// responder, in StateWaitingAuthI), completing the exchange and
// returning the mixed secret and peer identity to seed the ratchet.
func (e *Engine) ReceiveAuthI(msg *AuthI) (*Result, error) {
	if e.state != StateWaitingAuthI || e.weAreInitiator {
		return nil, otrerr.StateViolation
	}

	t1 := buildAuthMsg(1, e.initiatorProfile, e.responderProfile, e.y, e.x, e.b, e.a)
	pubs := [3]ed448.PublicKey{e.initiatorProfile.LongTermPublic, e.responderProfile.LongTermPublic, e.y}
	if err := ringsig.Verify(pubs, msg.Sigma, t1); err != nil {
		return nil, otrerr.CryptoFail
	}

	e.state = StateDone
	return e.deriveResult(e.initiatorProfile)
}

// FinalizeAsInitiator derives the mixed secret once the initiator has
// accepted AUTH-R and produced AUTH-I; the conversation driver calls
// this right after ReceiveAuthR succeeds.
func (e *Engine) FinalizeAsInitiator() (*Result, error) {
	if e.state != StateDone || !e.weAreInitiator {
		return nil, otrerr.StateViolation
	}
	return e.deriveResult(e.responderProfile)
}

func (e *Engine) deriveResult(peerProfile *profile.ClientProfile) (*Result, error) {
	theirECDH, err := ed448.PointFromPublic(peerTheirECDH(e))
	if err != nil {
		return nil, otrerr.CryptoFail
	}
	ecdhShared := ed448.ScalarMult(e.ecdhPriv, theirECDH).Bytes()

	theirDHBytes := peerTheirDH(e)
	theirDH, err := dh3072.FromBytes(theirDHBytes)
	if err != nil {
		return nil, otrerr.CryptoFail
	}
	dhShared, err := dh3072.SharedSecret(e.dhPriv, theirDH)
	if err != nil {
		return nil, otrerr.CryptoFail
	}

	mixed := append(append([]byte{}, ecdhShared...), dhShared...)
	k := shake.Derive(shake.UsageRootKDF, mixed, 64)

	return &Result{
		K:               k,
		PeerLongTerm:    peerProfile.LongTermPublic,
		PeerProfile:     peerProfile,
		PeerInstanceTag: peerProfile.OwnerInstanceTag,

		OurECDHPriv:  e.ecdhPriv,
		OurECDHPub:   e.ecdhPub,
		OurDHPriv:    e.dhPriv,
		OurDHPub:     e.dhPub,
		TheirECDHPub: peerTheirECDH(e),
		TheirDHBytes: peerTheirDH(e),
	}, nil
}

// peerTheirECDH returns the peer's ephemeral ECDH point from our
// perspective: X if we're the initiator (we hold Y), Y if we're the
// responder (we hold X).
func peerTheirECDH(e *Engine) ed448.PublicKey {
	if e.weAreInitiator {
		return e.x
	}
	return e.y
}

// peerTheirDH mirrors peerTheirECDH for the DH ephemeral.
func peerTheirDH(e *Engine) []byte {
	if e.weAreInitiator {
		return e.a
	}
	return e.b
}
