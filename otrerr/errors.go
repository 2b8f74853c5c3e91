// Package otrerr defines the error taxonomy shared by every otrng
// package and the propagation rules the conversation driver applies at
// its boundary.
package otrerr

import "errors"

var (
	// Malformed means wire byte soup failed to parse.
	Malformed = errors.New("otrng: malformed message")
	// CryptoFail means a signature, MAC, or point decode rejected.
	CryptoFail = errors.New("otrng: cryptographic verification failed")
	// StateViolation means a message was unexpected for the current state.
	StateViolation = errors.New("otrng: message unexpected in current state")
	// NotEncrypted means a send was attempted before the conversation reached ENCRYPTED.
	NotEncrypted = errors.New("otrng: conversation is not encrypted")
	// StateFinished means a send was attempted while the conversation is FINISHED.
	StateFinished = errors.New("otrng: conversation is finished")
	// SkipTooLarge means the skipped-key cache would overflow MAX_SKIP.
	SkipTooLarge = errors.New("otrng: too many skipped message keys")
	// Replay means the ratchet_id/message_id pair was already consumed.
	Replay = errors.New("otrng: message already processed")
	// VersionMismatch means the header version is not allowed by local policy.
	VersionMismatch = errors.New("otrng: protocol version not allowed")
	// ProfileExpired means a profile's expiry has passed.
	ProfileExpired = errors.New("otrng: profile has expired")
	// Fatal means an unreachable invariant was violated; the caller must
	// treat the conversation as wiped and restarted from START.
	Fatal = errors.New("otrng: fatal invariant violation")
)

// SilentDrop reports whether an error at the driver boundary must be
// dropped without a reply, per spec.md §7's propagation policy: the
// peer must not learn which rule fired.
func SilentDrop(err error) bool {
	return errors.Is(err, Malformed) || errors.Is(err, CryptoFail) || errors.Is(err, Replay)
}

// SilentIgnore reports whether a StateViolation on a DAKE message should
// be tolerated silently (peer retransmission).
func SilentIgnore(err error) bool {
	return errors.Is(err, StateViolation)
}
