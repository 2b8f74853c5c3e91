package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"otrng/crypto/ed448"
)

func TestDataRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{0x01},
		[]byte("hello world"),
		make([]byte, 4096),
	}
	for _, c := range cases {
		e := NewEncoder()
		e.Data(c)
		d := NewDecoder(e.Bytes())
		got, err := d.Data()
		require.NoError(t, err)
		require.True(t, d.Done())
		if len(c) == 0 {
			require.Empty(t, got)
		} else {
			require.Equal(t, c, got)
		}
	}
}

func TestMPITrimsLeadingZeros(t *testing.T) {
	e := NewEncoder()
	e.MPI([]byte{0x00, 0x00, 0x01, 0x02})
	d := NewDecoder(e.Bytes())
	got, err := d.MPI()
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, got)
}

func TestMPIRejectsNonCanonical(t *testing.T) {
	e := NewEncoder()
	e.Uint32(2)
	e.Raw([]byte{0x00, 0x01})
	d := NewDecoder(e.Bytes())
	_, err := d.MPI()
	require.Error(t, err)
}

func TestDataTruncatedFailsClosed(t *testing.T) {
	e := NewEncoder()
	e.Uint32(10)
	e.Raw([]byte{1, 2, 3})
	d := NewDecoder(e.Bytes())
	_, err := d.Data()
	require.Error(t, err)
}

func TestPubKeyRecordRoundTrip(t *testing.T) {
	kp, err := ed448.Generate()
	require.NoError(t, err)

	e := NewEncoder()
	e.PubKeyRecord(PubKeyTypeIdentity, kp.Public)
	d := NewDecoder(e.Bytes())
	typ, pub, err := d.PubKeyRecord()
	require.NoError(t, err)
	require.Equal(t, PubKeyTypeIdentity, typ)
	require.Equal(t, kp.Public, pub)
}

func TestPubKeyRecordRejectsUnknownType(t *testing.T) {
	kp, err := ed448.Generate()
	require.NoError(t, err)

	e := NewEncoder()
	e.Uint16(0x9999)
	e.Point(kp.Public)
	d := NewDecoder(e.Bytes())
	_, _, err = d.PubKeyRecord()
	require.Error(t, err)
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Type: 0x35, Sender: 0x100, Receiver: 0x101}
	e := NewEncoder()
	h.Encode(e)
	d := NewDecoder(e.Bytes())
	got, err := DecodeHeader(d)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestHeaderRejectsBadVersion(t *testing.T) {
	e := NewEncoder()
	e.Uint16(0x0003)
	e.Byte(0x35)
	e.Uint32(0x100)
	e.Uint32(0x101)
	d := NewDecoder(e.Bytes())
	_, err := DecodeHeader(d)
	require.Error(t, err)
}

func TestInstanceTagValid(t *testing.T) {
	require.False(t, InstanceTag(0).Valid())
	require.False(t, InstanceTag(0xFF).Valid())
	require.True(t, InstanceTag(0x100).Valid())
}
