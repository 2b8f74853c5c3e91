package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"otrng/account"
	"otrng/callbacks"
	"otrng/crypto/ed448"
	"otrng/message"
	"otrng/profile"
	"otrng/wire"
)

// recordingCollaborator is a fake callbacks.Collaborator that records
// every call it receives, the way the teacher's tests stub out its
// logrus-based event handlers with a plain struct.
type recordingCollaborator struct {
	goneSecure     int
	goneInsecure   int
	fingerprints   [][]byte
	smpEvents      []callbacks.SMPEvent
	smpQuestions   []string
	extraSymmKeys  [][]byte
}

func (r *recordingCollaborator) CreatePrivkey(callbacks.AccountContext)      {}
func (r *recordingCollaborator) CreateSharedPrekey(callbacks.ConversationContext) {}
func (r *recordingCollaborator) GoneSecure(callbacks.ConversationContext)    { r.goneSecure++ }
func (r *recordingCollaborator) GoneInsecure(callbacks.ConversationContext)  { r.goneInsecure++ }
func (r *recordingCollaborator) FingerprintSeen(fp []byte, _ callbacks.ConversationContext) {
	r.fingerprints = append(r.fingerprints, fp)
}
func (r *recordingCollaborator) FingerprintSeenV3([]byte, callbacks.ConversationContext) {}
func (r *recordingCollaborator) SMPAskForSecret(callbacks.ConversationContext) {
	r.smpQuestions = append(r.smpQuestions, "")
}
func (r *recordingCollaborator) SMPAskForAnswer(question string, _ callbacks.ConversationContext) {
	r.smpQuestions = append(r.smpQuestions, question)
}
func (r *recordingCollaborator) SMPUpdate(event callbacks.SMPEvent, _ int, _ callbacks.ConversationContext) {
	r.smpEvents = append(r.smpEvents, event)
}
func (r *recordingCollaborator) ReceivedExtraSymmKey(_ callbacks.ConversationContext, _ uint32, _ []byte, key []byte) {
	r.extraSymmKeys = append(r.extraSymmKeys, key)
}

func newTestAccount(t *testing.T, tag wire.InstanceTag) *account.Account {
	t.Helper()
	longTerm, err := ed448.Generate()
	require.NoError(t, err)
	forging, err := ed448.Generate()
	require.NoError(t, err)
	return &account.Account{InstanceTag: tag, LongTerm: longTerm, Forging: forging}
}

func newTestProfile(acc *account.Account) *profile.ClientProfile {
	p := &profile.ClientProfile{
		OwnerInstanceTag: acc.InstanceTag,
		LongTermPublic:   acc.LongTerm.Public,
		ForgingPublic:    acc.Forging.Public,
		Versions:         "4",
		Expiry:           time.Now().Add(time.Hour).Unix(),
	}
	p.Sign(acc.LongTerm)
	return p
}

// party bundles one side's conversation plus its fake collaborator for
// convenient assertions.
type party struct {
	conv   *Conversation
	collab *recordingCollaborator
}

func newParties(t *testing.T) (alice, bob *party) {
	t.Helper()
	aliceAcc := newTestAccount(t, wire.InstanceTag(0x100))
	bobAcc := newTestAccount(t, wire.InstanceTag(0x200))
	aliceProfile := newTestProfile(aliceAcc)
	bobProfile := newTestProfile(bobAcc)

	policy := AllowV4 | WhitespaceStartAKE

	aliceCollab := &recordingCollaborator{}
	bobCollab := &recordingCollaborator{}

	alice = &party{
		conv:   New(aliceAcc, aliceProfile, bobAcc.InstanceTag, policy, aliceCollab),
		collab: aliceCollab,
	}
	bob = &party{
		conv:   New(bobAcc, bobProfile, aliceAcc.InstanceTag, policy, bobCollab),
		collab: bobCollab,
	}
	return alice, bob
}

// deliver feeds every fragment in msgs through dst's Receive, in order,
// collecting any reply fragments dst produces along the way.
func deliver(t *testing.T, dst *Conversation, msgs []string) []string {
	t.Helper()
	var replies []string
	for _, m := range msgs {
		_, out, err := dst.Receive(m)
		require.NoError(t, err)
		replies = append(replies, out...)
	}
	return replies
}

// runDAKE drives a full v4 handshake to ENCRYPTED on both sides,
// alice as initiator.
func runDAKE(t *testing.T, alice, bob *party) {
	t.Helper()
	identity, err := alice.conv.StartDAKE()
	require.NoError(t, err)
	require.Equal(t, PhaseDake4, alice.conv.Phase().Kind)

	authR := deliver(t, bob.conv, identity)
	require.Equal(t, PhaseDake4, bob.conv.Phase().Kind)

	authI := deliver(t, alice.conv, authR)
	require.Equal(t, PhaseEncrypted, alice.conv.Phase().Kind)

	noReply := deliver(t, bob.conv, authI)
	require.Empty(t, noReply)
	require.Equal(t, PhaseEncrypted, bob.conv.Phase().Kind)
}

func TestFullDAKEReachesEncryptedWithMatchingFingerprintsAndSSID(t *testing.T) {
	alice, bob := newParties(t)
	runDAKE(t, alice, bob)

	require.Equal(t, 1, alice.collab.goneSecure)
	require.Equal(t, 1, bob.collab.goneSecure)

	require.Len(t, alice.collab.fingerprints, 1)
	require.Len(t, bob.collab.fingerprints, 1)

	aliceSSID := alice.conv.ssid
	bobSSID := bob.conv.ssid
	require.NotEmpty(t, aliceSSID)
	require.Equal(t, aliceSSID, bobSSID)

	// Each side's view of the peer's fingerprint matches the other
	// side's view of its own.
	require.Equal(t, alice.conv.ourFP, bob.collab.fingerprints[0])
	require.Equal(t, bob.conv.ourFP, alice.collab.fingerprints[0])
}

func TestSendReceiveRoundTrip(t *testing.T) {
	alice, bob := newParties(t)
	runDAKE(t, alice, bob)

	out, err := alice.conv.Send("hello bob")
	require.NoError(t, err)
	require.NotEmpty(t, out)

	var received *Inbound
	for _, piece := range out {
		in, reply, err := bob.conv.Receive(piece)
		require.NoError(t, err)
		require.Empty(t, reply)
		if in != nil {
			received = in
		}
	}
	require.NotNil(t, received)
	require.Equal(t, "hello bob", received.Plaintext)
}

func TestWhitespaceTagTriggersDAKE(t *testing.T) {
	alice, bob := newParties(t)

	tagged := alice.conv.StartWhitespaceTag("hi there")
	in, authR, err := bob.conv.Receive(string(tagged))
	require.NoError(t, err)
	require.NotNil(t, in)
	require.Equal(t, "hi there", in.Plaintext)
	require.NotEmpty(t, authR)
	require.Equal(t, PhaseDake4, bob.conv.Phase().Kind)
}

func TestReplayOfDataMessageIsSilentlyDropped(t *testing.T) {
	alice, bob := newParties(t)
	runDAKE(t, alice, bob)

	out, err := alice.conv.Send("repeat me")
	require.NoError(t, err)

	var firstPlain *Inbound
	for _, piece := range out {
		in, _, err := bob.conv.Receive(piece)
		require.NoError(t, err)
		if in != nil {
			firstPlain = in
		}
	}
	require.NotNil(t, firstPlain)
	require.Equal(t, "repeat me", firstPlain.Plaintext)

	// Replaying the exact same wire fragments again must not surface
	// the plaintext a second time: the ratchet rejects the reused
	// message key/MAC as a replay, silently.
	for _, piece := range out {
		in, reply, err := bob.conv.Receive(piece)
		require.NoError(t, err)
		require.Nil(t, in)
		require.Empty(t, reply)
	}
}

func TestCloseSendsDisconnectedAndPeerGoesInsecure(t *testing.T) {
	alice, bob := newParties(t)
	runDAKE(t, alice, bob)

	out, err := alice.conv.Close()
	require.NoError(t, err)
	require.NotEmpty(t, out)
	require.Equal(t, PhaseStart, alice.conv.Phase().Kind)

	for _, piece := range out {
		_, _, err := bob.conv.Receive(piece)
		require.NoError(t, err)
	}
	require.Equal(t, PhaseFinished, bob.conv.Phase().Kind)
	require.Equal(t, 1, bob.collab.goneInsecure)
}

func TestSMPHappyPath(t *testing.T) {
	alice, bob := newParties(t)
	runDAKE(t, alice, bob)

	smp1, err := alice.conv.StartSMP("correct horse", "favorite color?")
	require.NoError(t, err)

	smp2 := deliver(t, bob.conv, smp1)
	require.Equal(t, []string{"favorite color?"}, bob.collab.smpQuestions)

	smp2Reply, err := bob.conv.AnswerSMP("correct horse")
	require.NoError(t, err)
	require.Empty(t, smp2)

	smp3 := deliver(t, alice.conv, smp2Reply)
	smp4 := deliver(t, bob.conv, smp3)
	require.NotEmpty(t, smp4)

	noReply := deliver(t, alice.conv, smp4)
	require.Empty(t, noReply)

	require.Contains(t, bob.collab.smpEvents, callbacks.SMPSuccess)
	require.Contains(t, alice.collab.smpEvents, callbacks.SMPSuccess)
}

func TestSMPMismatchedSecretFails(t *testing.T) {
	alice, bob := newParties(t)
	runDAKE(t, alice, bob)

	smp1, err := alice.conv.StartSMP("alice secret", "")
	require.NoError(t, err)

	smp2 := deliver(t, bob.conv, smp1)
	smp2Reply, err := bob.conv.AnswerSMP("bob secret")
	require.NoError(t, err)
	require.Empty(t, smp2)

	smp3 := deliver(t, alice.conv, smp2Reply)
	smp4 := deliver(t, bob.conv, smp3)

	_ = deliver(t, alice.conv, smp4)

	require.Contains(t, bob.collab.smpEvents, callbacks.SMPFailure)
	require.Contains(t, alice.collab.smpEvents, callbacks.SMPFailure)
}

func TestExtraSymmKeyRequestDerivesKeyForHost(t *testing.T) {
	alice, bob := newParties(t)
	runDAKE(t, alice, bob)

	out, err := alice.conv.sendPayload(&message.Payload{
		TLVs: []message.TLV{{Type: message.TLVExtraSymmKeyRequest, Value: append([]byte{0, 0, 0, 7}, []byte("file-transfer")...)}},
	})
	require.NoError(t, err)

	_ = deliver(t, bob.conv, out)
	require.Len(t, bob.collab.extraSymmKeys, 1)
	require.NotEmpty(t, bob.collab.extraSymmKeys[0])
}

func TestPlaintextOutsideStartRaisesWarning(t *testing.T) {
	alice, bob := newParties(t)
	runDAKE(t, alice, bob)

	in, out, err := bob.conv.Receive("a bare unencrypted message")
	require.NoError(t, err)
	require.Empty(t, out)
	require.NotNil(t, in)
	require.Equal(t, "a bare unencrypted message", in.Plaintext)
	require.ErrorIs(t, in.Warning, ErrReceivedUnencrypted)
}
