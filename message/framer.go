package message

import (
	"crypto/subtle"

	"otrng/configs"
	"otrng/crypto/shake"
	"otrng/crypto/xsalsa20"
	"otrng/otrerr"
	"otrng/ratchet"
	"otrng/wire"
)

// Encrypt advances state's sending chain, encrypts plaintext under the
// resulting message key with XSalsa20, and authenticates the whole
// message with a SHAKE-256 MAC, attaching any keys state has queued
// for revelation (spec.md §4.5/§4.6).
func Encrypt(state *ratchet.State, sender, receiver wire.InstanceTag, flags byte, plaintext []byte) (*DataMessage, error) {
	rh, mkEnc, mkMac, revealed, err := state.NextSendKeys()
	if err != nil {
		return nil, err
	}

	var key [xsalsa20.KeySize]byte
	copy(key[:], mkEnc)
	nonce, err := xsalsa20.NewNonce()
	if err != nil {
		return nil, err
	}
	ciphertext := xsalsa20.XORKeyStream(key, nonce, plaintext)

	msg := &DataMessage{
		Header:          wire.Header{Type: configs.MsgTypeData, Sender: sender, Receiver: receiver},
		Flags:           flags,
		RatchetHeader:   rh,
		Nonce:           nonce,
		Ciphertext:      ciphertext,
		RevealedMACKeys: concatMACKeys(revealed),
	}

	tag := computeMAC(mkMac, msg.authenticatedData())
	copy(msg.MAC[:], tag)
	return msg, nil
}

// Decrypt authenticates and decrypts msg against state's receiving
// chain (ratcheting or consulting the skipped-key cache as needed),
// returning the plaintext. The consumed mk_mac is queued onto state's
// old_mac_keys for the next outbound message to reveal.
func Decrypt(state *ratchet.State, msg *DataMessage) ([]byte, error) {
	mkEnc, mkMac, err := state.ReceiveKeys(msg.RatchetHeader)
	if err != nil {
		return nil, err
	}

	tag := computeMAC(mkMac, msg.authenticatedData())
	if subtle.ConstantTimeCompare(tag, msg.MAC[:]) != 1 {
		return nil, otrerr.CryptoFail
	}

	var key [xsalsa20.KeySize]byte
	copy(key[:], mkEnc)
	plaintext := xsalsa20.XORKeyStream(key, msg.Nonce, msg.Ciphertext)

	state.RevealMACKey(mkMac)
	return plaintext, nil
}

func computeMAC(mkMac, authData []byte) []byte {
	input := make([]byte, 0, len(mkMac)+len(authData))
	input = append(input, mkMac...)
	input = append(input, authData...)
	return shake.Derive(shake.UsageMsgMACTag, input, MACSize)
}

func concatMACKeys(keys [][]byte) []byte {
	out := make([]byte, 0, len(keys)*MACSize)
	for _, k := range keys {
		out = append(out, k...)
	}
	return out
}
