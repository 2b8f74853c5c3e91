package conversation

import "otrng/dake"

// DakeSubstate nests the v4 DAKE engine's own position inside the
// conversation's Phase, so the pair (conversation state, DAKE state)
// the original tracks as two independent integers becomes one
// representable value (spec.md §9's re-architecture hint).
type DakeSubstate = dake.State

// LegacySubstate stands in for a v3 AKE's position. This library
// implements no v3 DAKE (Non-goals), so the only reachable value is
// LegacyUnsupported; the type exists so Phase's shape matches the
// hint's Dake3(LegacySubstate) variant rather than silently dropping
// it.
type LegacySubstate int

const LegacyUnsupported LegacySubstate = 0

// PhaseKind tags which variant of Phase is active.
type PhaseKind int

const (
	PhaseStart PhaseKind = iota
	PhaseDake4
	PhaseDake3
	PhaseEncrypted
	PhaseFinished
)

func (k PhaseKind) String() string {
	switch k {
	case PhaseStart:
		return "START"
	case PhaseDake4:
		return "DAKE4"
	case PhaseDake3:
		return "DAKE3"
	case PhaseEncrypted:
		return "ENCRYPTED"
	case PhaseFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Phase is the tagged sum spec.md §9 asks for in place of the
// original's two independently-mutated integers (conversation state
// and running version): exactly one of dake4/dake3 is meaningful, and
// only when Kind says so, so impossible combinations (e.g. ENCRYPTED
// while also mid-DAKE) are unrepresentable.
type Phase struct {
	Kind  PhaseKind
	dake4 DakeSubstate
	dake3 LegacySubstate
}

// Start returns the initial phase every conversation begins in.
func Start() Phase { return Phase{Kind: PhaseStart} }

// Dake4 returns a phase mid-v4-DAKE at substate s.
func Dake4(s DakeSubstate) Phase { return Phase{Kind: PhaseDake4, dake4: s} }

// Encrypted returns the phase reached once a DAKE completes.
func Encrypted() Phase { return Phase{Kind: PhaseEncrypted} }

// Finished returns the phase a closed-but-not-restarted conversation
// sits in.
func Finished() Phase { return Phase{Kind: PhaseFinished} }

// Dake4Substate reports the nested v4 DAKE substate; only meaningful
// when Kind == PhaseDake4.
func (p Phase) Dake4Substate() DakeSubstate { return p.dake4 }
