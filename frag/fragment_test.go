package frag

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"otrng/wire"
)

func TestFragmentDefragmentRoundTrip(t *testing.T) {
	sender, receiver := wire.InstanceTag(0x12345678), wire.InstanceTag(0x87654321)
	message := strings.Repeat("A", 100)

	pieces, err := Fragment(40, sender, receiver, []byte(message))
	require.NoError(t, err)
	require.True(t, len(pieces) > 1)

	pattern := regexp.MustCompile(`^\?OTR\|12345678\|87654321,[0-9a-f]{5},[0-9a-f]{5},[^,]*,$`)
	for _, p := range pieces {
		require.Regexp(t, pattern, p)
	}

	d := New(sender, receiver)
	var out []byte
	for _, p := range pieces[:len(pieces)-1] {
		got, done, err := d.Feed(p)
		require.NoError(t, err)
		require.False(t, done)
		require.Nil(t, got)
	}
	got, done, err := d.Feed(pieces[len(pieces)-1])
	require.NoError(t, err)
	require.True(t, done)
	out = got
	require.Equal(t, message, string(out))
}

func TestFeedPassthroughForUnfragmentedMessage(t *testing.T) {
	d := New(1, 2)
	got, done, err := d.Feed("plain text, not a fragment")
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, "plain text, not a fragment", string(got))
}

func TestFeedSinglePieceMessageDeliversDirectly(t *testing.T) {
	sender, receiver := wire.InstanceTag(1), wire.InstanceTag(2)
	pieces, err := Fragment(4096, sender, receiver, []byte("short"))
	require.NoError(t, err)
	require.Len(t, pieces, 1)

	d := New(sender, receiver)
	got, done, err := d.Feed(pieces[0])
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, "short", string(got))
}

func TestFeedRejectsMissingTrailingComma(t *testing.T) {
	d := New(1, 2)
	_, _, err := d.Feed("?OTR|00000001|00000002,00001,00001,payload")
	require.Error(t, err)
}

func TestFeedResetsOnOutOfOrderPiece(t *testing.T) {
	sender, receiver := wire.InstanceTag(1), wire.InstanceTag(2)
	pieces, err := Fragment(10, sender, receiver, []byte("abcdefghijklmnop"))
	require.NoError(t, err)
	require.True(t, len(pieces) >= 3)

	d := New(sender, receiver)
	_, done, err := d.Feed(pieces[0])
	require.NoError(t, err)
	require.False(t, done)

	// skip a piece: this is now out of order and must reset, not
	// silently desynchronize the accumulator.
	_, done, err = d.Feed(pieces[2])
	require.Error(t, err)
	require.False(t, done)
	require.Equal(t, StatusUnfragmented, d.Status())
}

func TestFeedIgnoresCrossTagPieces(t *testing.T) {
	d := New(wire.InstanceTag(1), wire.InstanceTag(2))
	_, _, err := d.Feed("?OTR|00000009|0000000a,00001,00002,part,")
	require.Error(t, err)
}
