package ed448

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	msg := []byte("otrng identity proof")
	sig := kp.Sign(msg)
	require.True(t, Verify(kp.Public, msg, sig))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	sig := kp.Sign([]byte("original"))
	require.False(t, Verify(kp.Public, []byte("tampered"), sig))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	other, err := Generate()
	require.NoError(t, err)

	sig := kp.Sign([]byte("msg"))
	require.False(t, Verify(other.Public, []byte("msg"), sig))
}

func TestVerifyRejectsTruncatedSignature(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	sig := kp.Sign([]byte("msg"))
	require.False(t, Verify(kp.Public, []byte("msg"), sig[:10]))
}

func TestSeedRoundTrip(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	seed := kp.Seed()

	restored, err := KeyPairFromSeed(seed)
	require.NoError(t, err)
	require.Equal(t, kp.Public, restored.Public)
}

func TestPointFromBytesRejectsWrongLength(t *testing.T) {
	_, err := PointFromBytes([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestScalarGroupArithmetic(t *testing.T) {
	a, err := RandomScalar()
	require.NoError(t, err)
	b, err := RandomScalar()
	require.NoError(t, err)

	sum := a.Add(b)
	back := sum.Sub(b)
	require.Equal(t, a.Bytes(), back.Bytes())
}
