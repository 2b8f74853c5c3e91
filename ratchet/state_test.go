package ratchet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"otrng/crypto/dh3072"
	"otrng/crypto/ed448"
	"otrng/otrerr"
)

type party struct {
	ecdhPriv *ed448.Scalar
	ecdhPub  ed448.PublicKey
	dhPriv   *dh3072.PrivateKey
	dhPub    *dh3072.PublicKey
}

func newParty(t *testing.T) party {
	t.Helper()
	ecdhPriv, err := ed448.RandomScalar()
	require.NoError(t, err)
	ecdhPub := ed448.PublicFromPoint(ed448.ScalarBaseMult(ecdhPriv))
	dhPriv, dhPub, err := dh3072.New()
	require.NoError(t, err)
	return party{ecdhPriv: ecdhPriv, ecdhPub: ecdhPub, dhPriv: dhPriv, dhPub: dhPub}
}

// newPair seeds two ratchet states the way the DAKE engine would: a
// shared root secret and each side's view of the other's ephemeral
// DAKE keys.
func newPair(t *testing.T, maxSkip int) (*State, *State) {
	t.Helper()
	alice := newParty(t)
	bob := newParty(t)
	root := make([]byte, 64)
	for i := range root {
		root[i] = byte(i)
	}

	aliceState := New(append([]byte{}, root...), alice.ecdhPriv, alice.ecdhPub, alice.dhPriv, alice.dhPub, bob.ecdhPub, bob.dhPub.Bytes(), maxSkip)
	bobState := New(append([]byte{}, root...), bob.ecdhPriv, bob.ecdhPub, bob.dhPriv, bob.dhPub, alice.ecdhPub, alice.dhPub.Bytes(), maxSkip)
	return aliceState, bobState
}

func TestSingleMessageRoundTrip(t *testing.T) {
	alice, bob := newPair(t, 100)

	header, enc, mac, revealed, err := alice.NextSendKeys()
	require.NoError(t, err)
	require.Empty(t, revealed)

	gotEnc, gotMac, err := bob.ReceiveKeys(header)
	require.NoError(t, err)
	require.Equal(t, enc, gotEnc)
	require.Equal(t, mac, gotMac)
}

func TestInChainSequentialMessages(t *testing.T) {
	alice, bob := newPair(t, 100)

	for i := 0; i < 5; i++ {
		header, enc, mac, _, err := alice.NextSendKeys()
		require.NoError(t, err)
		gotEnc, gotMac, err := bob.ReceiveKeys(header)
		require.NoError(t, err)
		require.Equal(t, enc, gotEnc)
		require.Equal(t, mac, gotMac)
	}
}

func TestOutOfOrderDeliveryUsesSkipCache(t *testing.T) {
	alice, bob := newPair(t, 100)

	h1, enc1, mac1, _, err := alice.NextSendKeys()
	require.NoError(t, err)
	h2, enc2, mac2, _, err := alice.NextSendKeys()
	require.NoError(t, err)
	h3, enc3, mac3, _, err := alice.NextSendKeys()
	require.NoError(t, err)

	// message 2 is dropped in transit: deliver 1 and 3 first.
	gotEnc1, gotMac1, err := bob.ReceiveKeys(h1)
	require.NoError(t, err)
	require.Equal(t, enc1, gotEnc1)
	require.Equal(t, mac1, gotMac1)

	gotEnc3, gotMac3, err := bob.ReceiveKeys(h3)
	require.NoError(t, err)
	require.Equal(t, enc3, gotEnc3)
	require.Equal(t, mac3, gotMac3)
	require.Len(t, bob.skipped, 1)

	// the delayed message 2 arrives late and is served from the cache.
	gotEnc2, gotMac2, err := bob.ReceiveKeys(h2)
	require.NoError(t, err)
	require.Equal(t, enc2, gotEnc2)
	require.Equal(t, mac2, gotMac2)
	require.Empty(t, bob.skipped)

	// redelivering message 2 again now misses the cache and is a replay.
	_, _, err = bob.ReceiveKeys(h2)
	require.ErrorIs(t, err, otrerr.Replay)
}

func TestSkipTooLarge(t *testing.T) {
	alice, bob := newPair(t, 2)

	var last Header
	for i := 0; i < 4; i++ {
		h, _, _, _, err := alice.NextSendKeys()
		require.NoError(t, err)
		last = h
	}

	_, _, err := bob.ReceiveKeys(last)
	require.ErrorIs(t, err, otrerr.SkipTooLarge)
}

func TestBidirectionalRatchetStep(t *testing.T) {
	alice, bob := newPair(t, 100)

	h1, enc1, mac1, _, err := alice.NextSendKeys()
	require.NoError(t, err)
	gotEnc1, gotMac1, err := bob.ReceiveKeys(h1)
	require.NoError(t, err)
	require.Equal(t, enc1, gotEnc1)
	require.Equal(t, mac1, gotMac1)

	// bob replies: this forces bob to ratchet forward, rotating his
	// ECDH keypair since he has no live sending chain yet.
	h2, enc2, mac2, _, err := bob.NextSendKeys()
	require.NoError(t, err)
	require.NotEqual(t, h1.ECDHPublic, h2.ECDHPublic)

	gotEnc2, gotMac2, err := alice.ReceiveKeys(h2)
	require.NoError(t, err)
	require.Equal(t, enc2, gotEnc2)
	require.Equal(t, mac2, gotMac2)

	// alice now has no live sending chain either (bob's ratchet staled
	// it), so her next send ratchets forward again.
	h3, _, _, _, err := alice.NextSendKeys()
	require.NoError(t, err)
	require.NotEqual(t, h1.ECDHPublic, h3.ECDHPublic)
	require.Greater(t, h3.RatchetID, h1.RatchetID)
}

func TestMACKeyRevelationDrainsOnNextSend(t *testing.T) {
	alice, bob := newPair(t, 100)

	h1, _, mac1, _, err := alice.NextSendKeys()
	require.NoError(t, err)
	_, gotMac1, err := bob.ReceiveKeys(h1)
	require.NoError(t, err)
	require.Equal(t, mac1, gotMac1)

	bob.RevealMACKey(gotMac1)

	h2, _, _, _, err := bob.NextSendKeys()
	require.NoError(t, err)
	_ = h2

	// the next outbound send drained old_mac_keys; verify by invoking
	// NextSendKeys again and checking the revealed set from the first
	// call carried exactly the one revealed key.
	alice2, bob2 := newPair(t, 100)
	h, _, mac, _, err := alice2.NextSendKeys()
	require.NoError(t, err)
	_, gotMac, err := bob2.ReceiveKeys(h)
	require.NoError(t, err)
	require.Equal(t, mac, gotMac)
	bob2.RevealMACKey(gotMac)

	_, _, _, revealed, err := bob2.NextSendKeys()
	require.NoError(t, err)
	require.Equal(t, [][]byte{gotMac}, revealed)

	_, _, _, revealedAgain, err := bob2.NextSendKeys()
	require.NoError(t, err)
	require.Empty(t, revealedAgain)
}

func TestEveryThirdRatchetMixesDH(t *testing.T) {
	alice, bob := newPair(t, 100)
	_ = bob

	seenDH := map[uint32]bool{}
	for i := 0; i < 6; i++ {
		// force alice to ratchet forward each time by clearing her
		// sending chain, simulating six consecutive direction flips.
		alice.sendChain = nil
		h, _, _, _, err := alice.NextSendKeys()
		require.NoError(t, err)
		seenDH[h.RatchetID] = h.DHPublic != nil
	}
	require.True(t, seenDH[3])
	require.False(t, seenDH[1])
	require.False(t, seenDH[2])
}
