// Package configs centralizes tunables and wire constants, the way
// the teacher's configs package keeps Redis keys and HKDF info strings
// in one place rather than scattered across call sites.
package configs

import "time"

var (
	// ShakeDomainOTR is the domain separator mixed into every SHAKE-256
	// invocation outside the prekey-server flows.
	ShakeDomainOTR = []byte("OTRv4")
	// ShakeDomainPrekey is the domain separator for prekey-server KDF calls.
	ShakeDomainPrekey = []byte("OTR-Prekey-Server")

	// DefaultTransportMTU bounds an outbound fragment piece, mirroring the
	// host-supplied mms the fragmenter consumes.
	DefaultTransportMTU = 16384

	// DefaultMaxSkip bounds the skipped-message-key cache (K_skip).
	DefaultMaxSkip = 100

	// DefaultHeartbeat is a host-policy hint, never scheduled by the core.
	DefaultHeartbeat = 300 * time.Second

	// ForwardDHRatchetChanceTotal throttles opportunistic DH-ratcheting in
	// demo code, matching the teacher's ForwardDHRatchetChanceTotal.
	ForwardDHRatchetChanceTotal = 20

	// RedisAddress is the demo/relay and prekeyclient/store default.
	RedisAddress = "localhost:6379"

	// Redis key templates used by prekeyclient/store and demo/relay,
	// adapted from the teacher's client:ratchet:%s:%s convention.
	PrekeySecretKey = "otrng:prekey:secret:%s:%d"
	RelayQueueKey   = "otrng:relay:queue:%s"
	RelayPublicKey  = "otrng:relay:pubkey:%s"
	RelaySessionKey = "otrng:relay:session:%s:%s"

	// EnsembleStoreKey is demo/relay's prekey-ensemble list per identity,
	// one serialized profile.Ensemble per list entry.
	EnsembleStoreKey = "otrng:prekey:ensembles:%s"
)

const (
	// WireVersion is the fixed OTRv4 version tag on every DAKE/data message.
	WireVersion uint16 = 0x0004

	// Message type bytes (spec.md §6).
	MsgTypeIdentity uint8 = 0x35
	MsgTypeAuthR    uint8 = 0x36
	MsgTypeAuthI    uint8 = 0x37
	MsgTypeData     uint8 = 0x03

	// Prekey-server message types (spec.md §6).
	PrekeyMsgDAKE1              uint8 = 0x08
	PrekeyMsgDAKE2              uint8 = 0x09
	PrekeyMsgDAKE3              uint8 = 0x0A
	PrekeyMsgStorageStatus      uint8 = 0x0B
	PrekeyMsgSuccess            uint8 = 0x0C
	PrekeyMsgFailure            uint8 = 0x0D
	PrekeyMsgNoPrekey           uint8 = 0x0E
	PrekeyMsgEnsembleRetrieval  uint8 = 0x0F
	PrekeyMsgEnsembleQuery      uint8 = 0x10
	PrekeyMsgPublication        uint8 = 0x11
	PrekeyMsgStorageInfoRequest uint8 = 0x13

	// ServerAddress and WebSocketPath are demo/relay-only defaults,
	// matching the teacher's configs.ServerAddress / configs.WebSocketPath.
	ServerAddress   = "localhost:8080"
	WebSocketPath   = "/ws"
	PublishKeysPath = "/prekeys"

	// DebugSecretDir is where cmd/client persists per-user account key
	// files and optional ".env.<userID>" overrides, matching the
	// teacher's configs.DebugSecretDir convention for local test runs.
	DebugSecretDir = "./debug-secrets"
)
