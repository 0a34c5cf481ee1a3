package tasks

import "quarrysim.ai/internal/sim/extraction"

type Phase string

const (
	PhaseTraveling       Phase = "TRAVELING"
	PhaseExtracting      Phase = "EXTRACTING"
	PhaseDeciding        Phase = "DECIDING"
	PhaseReservingOutput Phase = "RESERVING_OUTPUT"
	PhaseTransporting    Phase = "TRANSPORTING"
	PhaseDone            Phase = "DONE"
	PhaseFailed          Phase = "FAILED"
)

func (p Phase) Terminal() bool { return p == PhaseDone || p == PhaseFailed }

func ParsePhase(s string) (Phase, bool) {
	switch p := Phase(s); p {
	case PhaseTraveling, PhaseExtracting, PhaseDeciding, PhaseReservingOutput, PhaseTransporting, PhaseDone, PhaseFailed:
		return p, true
	}
	return "", false
}

// WorkCycle is one agent's pass at a quarry site: walk there, mine, take the
// outcome and optionally carry it to storage. The site is referenced by ID.
type WorkCycle struct {
	CycleID string
	AgentID string
	SiteID  string

	Phase       Phase
	StartedTick uint64
	PhaseTick   uint64

	// Extracting
	TicksRemaining int
	TicksToPickHit int

	// Set once Deciding ran.
	LastOutcome *extraction.Outcome
	ItemID      string

	// Haul destination, set when the outcome is carried to storage.
	StorageID string
	Slot      int
	Reserved  bool

	FailCode string
}
