package message

import (
	"testing"

	"github.com/stretchr/testify/require"

	"otrng/crypto/dh3072"
	"otrng/crypto/ed448"
	"otrng/ratchet"
	"otrng/wire"
)

func newRatchetPair(t *testing.T) (*ratchet.State, *ratchet.State) {
	t.Helper()
	aliceECDH, err := ed448.RandomScalar()
	require.NoError(t, err)
	alicePub := ed448.PublicFromPoint(ed448.ScalarBaseMult(aliceECDH))
	aliceDHPriv, aliceDHPub, err := dh3072.New()
	require.NoError(t, err)

	bobECDH, err := ed448.RandomScalar()
	require.NoError(t, err)
	bobPub := ed448.PublicFromPoint(ed448.ScalarBaseMult(bobECDH))
	bobDHPriv, bobDHPub, err := dh3072.New()
	require.NoError(t, err)

	root := make([]byte, 64)
	for i := range root {
		root[i] = byte(i + 1)
	}

	alice := ratchet.New(append([]byte{}, root...), aliceECDH, alicePub, aliceDHPriv, aliceDHPub, bobPub, bobDHPub.Bytes(), 100)
	bob := ratchet.New(append([]byte{}, root...), bobECDH, bobPub, bobDHPriv, bobDHPub, alicePub, aliceDHPub.Bytes(), 100)
	return alice, bob
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	alice, bob := newRatchetPair(t)
	aliceTag, bobTag := wire.InstanceTag(0x100), wire.InstanceTag(0x200)

	msg, err := Encrypt(alice, aliceTag, bobTag, 0, []byte("hello bob"))
	require.NoError(t, err)

	wireMsg, err := DecodeDataMessage(msg.Serialize())
	require.NoError(t, err)

	plaintext, err := Decrypt(bob, wireMsg)
	require.NoError(t, err)
	require.Equal(t, "hello bob", string(plaintext))
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	alice, bob := newRatchetPair(t)
	aliceTag, bobTag := wire.InstanceTag(0x100), wire.InstanceTag(0x200)

	msg, err := Encrypt(alice, aliceTag, bobTag, 0, []byte("hello bob"))
	require.NoError(t, err)
	msg.Ciphertext[0] ^= 0xFF

	_, err = Decrypt(bob, msg)
	require.Error(t, err)
}

func TestRevealedMACKeysCarriedOnNextMessage(t *testing.T) {
	alice, bob := newRatchetPair(t)
	aliceTag, bobTag := wire.InstanceTag(0x100), wire.InstanceTag(0x200)

	msg1, err := Encrypt(alice, aliceTag, bobTag, 0, []byte("one"))
	require.NoError(t, err)
	_, err = Decrypt(bob, msg1)
	require.NoError(t, err)

	msg2, err := Encrypt(bob, bobTag, aliceTag, 0, []byte("reply"))
	require.NoError(t, err)
	require.Len(t, msg2.RevealedMACKeys, MACSize)
}

func TestPayloadRoundTripWithTLVs(t *testing.T) {
	p := &Payload{
		Message: "hi",
		TLVs: []TLV{
			{Type: TLVPadding, Value: []byte{0, 0, 0}},
			{Type: TLVSMP1, Value: []byte("smp-data")},
		},
	}
	parsed, err := ParsePayload(p.Serialize())
	require.NoError(t, err)
	require.Equal(t, p.Message, parsed.Message)
	require.Equal(t, p.TLVs, parsed.TLVs)
}

func TestParsePayloadWithoutTLVs(t *testing.T) {
	p := &Payload{Message: "plain text only"}
	parsed, err := ParsePayload(p.Serialize())
	require.NoError(t, err)
	require.Equal(t, "plain text only", parsed.Message)
	require.Empty(t, parsed.TLVs)
}
