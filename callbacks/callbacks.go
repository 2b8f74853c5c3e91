// Package callbacks defines the host-collaborator surface of spec.md
// §6: the nine hooks the core library calls out to so the embedding
// application can prompt a user, persist a key, or render an event,
// without the core ever depending on a UI or storage layer. It plays
// the role the teacher's logrus-based ChatApp event handlers play,
// generalized into an interface the core can call without knowing
// whether the host is demo/tui, demo/relay, or something else.
package callbacks

import "otrng/wire"

// SMPEvent enumerates the possible outcomes reported through
// SMPUpdate, matching spec.md §6's closed event set.
type SMPEvent int

const (
	SMPNone SMPEvent = iota
	SMPAskForSecret
	SMPAskForAnswer
	SMPInProgress
	SMPSuccess
	SMPCheated
	SMPFailure
	SMPAbort
	SMPError
)

func (e SMPEvent) String() string {
	switch e {
	case SMPNone:
		return "NONE"
	case SMPAskForSecret:
		return "ASK_FOR_SECRET"
	case SMPAskForAnswer:
		return "ASK_FOR_ANSWER"
	case SMPInProgress:
		return "IN_PROGRESS"
	case SMPSuccess:
		return "SUCCESS"
	case SMPCheated:
		return "CHEATED"
	case SMPFailure:
		return "FAILURE"
	case SMPAbort:
		return "ABORT"
	case SMPError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ConversationContext identifies which conversation a callback fired
// for, since a host typically juggles many at once.
type ConversationContext struct {
	PeerInstanceTag wire.InstanceTag
	OurInstanceTag  wire.InstanceTag
}

// AccountContext identifies which local account a callback concerns.
type AccountContext struct {
	InstanceTag wire.InstanceTag
}

// Collaborator is the exact nine-method surface of spec.md §6. The
// core calls these synchronously from within Conversation.Receive /
// Conversation.Send; implementations must not block indefinitely.
type Collaborator interface {
	// CreatePrivkey is invoked when the core needs a long-term
	// identity keypair for account_ctx and none exists yet.
	CreatePrivkey(accountCtx AccountContext)

	// CreateSharedPrekey is invoked when the core needs a fresh
	// shared-prekey keypair to publish a PrekeyProfile for conv_ctx.
	CreateSharedPrekey(convCtx ConversationContext)

	// GoneSecure fires the moment a conversation transitions into
	// ENCRYPTED.
	GoneSecure(convCtx ConversationContext)

	// GoneInsecure fires when a conversation leaves ENCRYPTED for any
	// reason other than a clean shutdown handshake.
	GoneInsecure(convCtx ConversationContext)

	// FingerprintSeen reports the v4 fingerprint of a peer's long-term
	// public key, the first time it is observed in a conversation.
	FingerprintSeen(fp []byte, convCtx ConversationContext)

	// FingerprintSeenV3 is the legacy-protocol counterpart of
	// FingerprintSeen, kept distinct since v3 fingerprints are
	// computed over a different key encoding.
	FingerprintSeenV3(fp []byte, convCtx ConversationContext)

	// SMPAskForSecret prompts the host to ask the local user for an
	// SMP shared secret, having received a bare SMP request with no
	// question attached.
	SMPAskForSecret(convCtx ConversationContext)

	// SMPAskForAnswer prompts the host to ask the local user to
	// answer the peer's SMP question.
	SMPAskForAnswer(question string, convCtx ConversationContext)

	// SMPUpdate reports SMP state-machine progress; progressPercent
	// is in [0, 100].
	SMPUpdate(event SMPEvent, progressPercent int, convCtx ConversationContext)

	// ReceivedExtraSymmKey surfaces a usage-tagged symmetric key
	// derived from a received TLV 0x0007 (EXTRA_SYMMETRIC_KEY_REQUEST).
	ReceivedExtraSymmKey(convCtx ConversationContext, useTag uint32, useData []byte, key []byte)
}
