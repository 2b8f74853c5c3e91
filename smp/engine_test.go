package smp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"otrng/otrerr"
)

func TestHappyPathMatchingSecrets(t *testing.T) {
	secret := DeriveSecret(4, []byte("alice-fp"), []byte("bob-fp"), []byte("ssid"), "correct horse battery staple")

	alice := NewEngine()
	bob := NewEngine()

	smp1, err := alice.StartSMP1(secret, "favorite battery phrase?")
	require.NoError(t, err)
	require.Equal(t, StateExpect2, alice.State())

	question, err := bob.ReceiveSMP1(smp1)
	require.NoError(t, err)
	require.Equal(t, "favorite battery phrase?", question)

	smp2, err := bob.AnswerSMP1(secret)
	require.NoError(t, err)
	require.Equal(t, StateExpect3, bob.State())

	smp3, err := alice.ReceiveSMP2(smp2)
	require.NoError(t, err)
	require.Equal(t, StateExpect4, alice.State())

	smp4, result, err := bob.ReceiveSMP3(smp3)
	require.NoError(t, err)
	require.Equal(t, ResultSucceeded, result)
	require.True(t, smp4.Success)
	require.Equal(t, StateExpect1, bob.State())

	result, err = alice.ReceiveSMP4(smp4)
	require.NoError(t, err)
	require.Equal(t, ResultSucceeded, result)
	require.Equal(t, StateExpect1, alice.State())
}

func TestMismatchedSecretsFail(t *testing.T) {
	aliceSecret := DeriveSecret(4, []byte("alice-fp"), []byte("bob-fp"), []byte("ssid"), "correct horse")
	bobSecret := DeriveSecret(4, []byte("alice-fp"), []byte("bob-fp"), []byte("ssid"), "wrong answer")

	alice := NewEngine()
	bob := NewEngine()

	smp1, err := alice.StartSMP1(aliceSecret, "")
	require.NoError(t, err)
	_, err = bob.ReceiveSMP1(smp1)
	require.NoError(t, err)
	smp2, err := bob.AnswerSMP1(bobSecret)
	require.NoError(t, err)
	smp3, err := alice.ReceiveSMP2(smp2)
	require.NoError(t, err)
	smp4, result, err := bob.ReceiveSMP3(smp3)
	require.NoError(t, err)
	require.Equal(t, ResultFailed, result)
	require.False(t, smp4.Success)

	result, err = alice.ReceiveSMP4(smp4)
	require.NoError(t, err)
	require.Equal(t, ResultFailed, result)
}

func TestAnsweringWithoutAQuestionIsRejected(t *testing.T) {
	secret := DeriveSecret(4, nil, nil, nil, "x")
	bob := NewEngine()
	_, err := bob.AnswerSMP1(secret)
	require.ErrorIs(t, err, otrerr.StateViolation)
}

func TestReceivingSMP2WhileIdleIsCheated(t *testing.T) {
	bob := NewEngine()
	_, err := bob.ReceiveSMP2(&SMP2{})
	require.ErrorIs(t, err, ErrCheated)
	require.Equal(t, StateExpect1, bob.State())
}

func TestAbortResetsToExpect1(t *testing.T) {
	secret := DeriveSecret(4, nil, nil, nil, "x")
	alice := NewEngine()
	_, err := alice.StartSMP1(secret, "")
	require.NoError(t, err)
	require.Equal(t, StateExpect2, alice.State())

	alice.ReceiveAbort()
	require.Equal(t, StateExpect1, alice.State())
}
