// Package shake implements the SHAKE-256 KDF family used throughout
// otrng, with the domain-separated usage-byte registry from spec.md
// §4.2 and §6. It replaces the teacher's crypto/hkdf package: OTRv4
// fixes SHAKE-256, not HKDF-SHA256, as its KDF primitive.
package shake

import (
	"golang.org/x/crypto/sha3"

	"otrng/configs"
)

// Usage is a single domain-separation byte. The registry is closed:
// an unrecognized value on a decode path is a library bug, never a
// receive-path error (spec.md §6).
type Usage byte

const (
	UsageSK                    Usage = 0x01
	UsageInitiatorClientProfile Usage = 0x02
	UsageInitiatorCompositeIdentity Usage = 0x03
	UsageInitiatorCompositePhi Usage = 0x04
	UsageReceiverClientProfile Usage = 0x05
	UsageReceiverCompositeIdentity Usage = 0x06
	UsageReceiverCompositePhi  Usage = 0x07
	UsagePreMACKey             Usage = 0x08
	UsagePreMACTag             Usage = 0x09
	UsageStorageInfoReqMAC     Usage = 0x0A
	UsageStorageStatusMAC      Usage = 0x0B
	UsageSuccessMAC            Usage = 0x0C
	UsageFailureMAC            Usage = 0x0D
	UsagePrekeyMessageHash     Usage = 0x0E
	UsageClientProfileHash     Usage = 0x0F
	UsagePrekeyProfileHash     Usage = 0x10
	UsageRingSigAuth           Usage = 0x11
	UsageProofContext          Usage = 0x12
	UsageProofMessageECDH      Usage = 0x13
	UsageProofMessageDH        Usage = 0x14
	UsageProofSharedECDH       Usage = 0x15
	UsageMACOfProofs           Usage = 0x16

	// usages local to this implementation's ratchet and message layers,
	// distinct from the prekey-server/DAKE registry above but drawn from
	// the same closed namespace so two calls with different usages never
	// collide.
	UsageRootKDF       Usage = 0x20
	UsageChainKDF      Usage = 0x21
	UsageMsgEncKey     Usage = 0x22
	UsageMsgMACKey     Usage = 0x23
	UsageSMPSecret     Usage = 0x24
	UsageFingerprint   Usage = 0x25
	UsageSMPChallenge1 Usage = 0x26
	UsageSMPChallenge2 Usage = 0x27
	UsageSMPChallenge3 Usage = 0x28
	UsageExtraSymmKey  Usage = 0x29
	UsageIdentitySig   Usage = 0x2A
	UsageMsgMACTag     Usage = 0x2B
)

// KDF computes SHAKE-256(domain || usage || input, outLen), the sole
// KDF invocation shape in otrng. Every call site names its domain and
// usage explicitly; there is no default.
func KDF(domain []byte, usage Usage, input []byte, outLen int) []byte {
	h := sha3.NewShake256()
	h.Write(domain)
	h.Write([]byte{byte(usage)})
	h.Write(input)
	out := make([]byte, outLen)
	_, _ = h.Read(out)
	return out
}

// Derive is KDF with the standard OTRv4 domain separator.
func Derive(usage Usage, input []byte, outLen int) []byte {
	return KDF(configs.ShakeDomainOTR, usage, input, outLen)
}

// DerivePrekey is KDF with the prekey-server domain separator.
func DerivePrekey(usage Usage, input []byte, outLen int) []byte {
	return KDF(configs.ShakeDomainPrekey, usage, input, outLen)
}
