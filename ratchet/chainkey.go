package ratchet

import "otrng/crypto/shake"

// messageKeys is the (mk_enc, mk_mac) pair a single chain key produces
// before advancing, spec.md §4.5's "chain evolution" step.
type messageKeys struct {
	enc []byte
	mac []byte
}

// deriveMessageKeys computes mk_enc = KDF_msg_enc(C), mk_mac =
// KDF_msg_mac(mk_enc), C' = KDF_next_chain(C), the sole way a chain
// key is ever consumed: generate exactly one message key pair, then
// advance.
func deriveMessageKeys(chain []byte) (keys messageKeys, nextChain []byte) {
	enc := shake.Derive(shake.UsageMsgEncKey, chain, 32)
	mac := shake.Derive(shake.UsageMsgMACKey, enc, 64)
	next := shake.Derive(shake.UsageChainKDF, chain, 64)
	return messageKeys{enc: enc, mac: mac}, next
}

// deriveRootStep computes K_root' = KDF_root(R ‖ ecdhSecret ‖
// dhSecret), splitting the output into a fresh root key and the chain
// key for the side that just ratcheted (spec.md §4.5 step 2). dhSecret
// is nil except on every third ratchet, per spec.md §4.5 step 3.
func deriveRootStep(root, ecdhSecret, dhSecret []byte) (newRoot, newChain []byte) {
	mixed := make([]byte, 0, len(root)+len(ecdhSecret)+len(dhSecret))
	mixed = append(mixed, root...)
	mixed = append(mixed, ecdhSecret...)
	mixed = append(mixed, dhSecret...)
	out := shake.Derive(shake.UsageRootKDF, mixed, 128)
	return out[:64], out[64:]
}
