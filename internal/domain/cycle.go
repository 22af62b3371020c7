package domain

// CyclePhase position of a reconciler within one polling cycle.
type CyclePhase int

const (
	PhaseIdle CyclePhase = iota
	PhaseSnapshotRequested
	PhaseSnapshotApplied
	PhaseLiveRequested
	PhaseLiveApplied
	PhaseLiveFailed
)

var cyclePhaseNames = map[CyclePhase]string{
	PhaseIdle:              "idle",
	PhaseSnapshotRequested: "snapshot_requested",
	PhaseSnapshotApplied:   "snapshot_applied",
	PhaseLiveRequested:     "live_requested",
	PhaseLiveApplied:       "live_applied",
	PhaseLiveFailed:        "live_failed",
}

func (p CyclePhase) String() string {
	if name, ok := cyclePhaseNames[p]; ok {
		return name
	}
	return "unknown"
}
