package callbacks

import (
	"testing"

	"github.com/stretchr/testify/require"

	"otrng/wire"
)

// recordingCollaborator captures the last SMP event seen, used to
// confirm Collaborator is satisfied and wired end to end.
type recordingCollaborator struct {
	LoggingCollaborator
	lastEvent SMPEvent
}

func (r *recordingCollaborator) SMPUpdate(event SMPEvent, progressPercent int, convCtx ConversationContext) {
	r.lastEvent = event
}

func TestLoggingCollaboratorSatisfiesInterface(t *testing.T) {
	var _ Collaborator = NewLoggingCollaborator()
}

func TestRecordingCollaboratorCapturesEvent(t *testing.T) {
	r := &recordingCollaborator{LoggingCollaborator: LoggingCollaborator{}}
	r.Log = NewLoggingCollaborator().Log

	var c Collaborator = r
	c.SMPUpdate(SMPSuccess, 100, ConversationContext{PeerInstanceTag: wire.InstanceTag(0x100)})
	require.Equal(t, SMPSuccess, r.lastEvent)
}

func TestSMPEventString(t *testing.T) {
	require.Equal(t, "SUCCESS", SMPSuccess.String())
	require.Equal(t, "ASK_FOR_SECRET", SMPAskForSecret.String())
	require.Equal(t, "UNKNOWN", SMPEvent(999).String())
}
