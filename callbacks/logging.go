package callbacks

import (
	"encoding/hex"

	"github.com/sirupsen/logrus"
)

// LoggingCollaborator is a Collaborator that logs every callback via
// logrus, the teacher's logging library, and otherwise does nothing.
// It's useful as a default for demo/tui and demo/relay, and as the
// null-object fallback in tests that don't exercise callback behavior
// directly.
type LoggingCollaborator struct {
	Log *logrus.Logger
}

// NewLoggingCollaborator returns a LoggingCollaborator writing to a
// fresh logrus.Logger with the teacher's default text formatter.
func NewLoggingCollaborator() *LoggingCollaborator {
	return &LoggingCollaborator{Log: logrus.New()}
}

func (c *LoggingCollaborator) CreatePrivkey(accountCtx AccountContext) {
	c.Log.Infof("create_privkey requested for account %x", uint32(accountCtx.InstanceTag))
}

func (c *LoggingCollaborator) CreateSharedPrekey(convCtx ConversationContext) {
	c.Log.Infof("create_shared_prekey requested for peer %x", uint32(convCtx.PeerInstanceTag))
}

func (c *LoggingCollaborator) GoneSecure(convCtx ConversationContext) {
	c.Log.Infof("conversation with %x is now encrypted", uint32(convCtx.PeerInstanceTag))
}

func (c *LoggingCollaborator) GoneInsecure(convCtx ConversationContext) {
	c.Log.Warnf("conversation with %x is no longer encrypted", uint32(convCtx.PeerInstanceTag))
}

func (c *LoggingCollaborator) FingerprintSeen(fp []byte, convCtx ConversationContext) {
	c.Log.Infof("fingerprint for %x: %s", uint32(convCtx.PeerInstanceTag), hex.EncodeToString(fp))
}

func (c *LoggingCollaborator) FingerprintSeenV3(fp []byte, convCtx ConversationContext) {
	c.Log.Infof("v3 fingerprint for %x: %s", uint32(convCtx.PeerInstanceTag), hex.EncodeToString(fp))
}

func (c *LoggingCollaborator) SMPAskForSecret(convCtx ConversationContext) {
	c.Log.Infof("smp_ask_for_secret for %x", uint32(convCtx.PeerInstanceTag))
}

func (c *LoggingCollaborator) SMPAskForAnswer(question string, convCtx ConversationContext) {
	c.Log.Infof("smp_ask_for_answer %q for %x", question, uint32(convCtx.PeerInstanceTag))
}

func (c *LoggingCollaborator) SMPUpdate(event SMPEvent, progressPercent int, convCtx ConversationContext) {
	c.Log.Infof("smp_update %s (%d%%) for %x", event, progressPercent, uint32(convCtx.PeerInstanceTag))
}

func (c *LoggingCollaborator) ReceivedExtraSymmKey(convCtx ConversationContext, useTag uint32, useData []byte, key []byte) {
	c.Log.Infof("received_extra_symm_key use=%d for %x", useTag, uint32(convCtx.PeerInstanceTag))
}
