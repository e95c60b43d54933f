package engine

import "time"

type Phase int

const (
	PhaseInstructions Phase = iota
	PhaseWaitTrigger
	PhaseLeadFixation
	PhaseStim
	PhaseITI
	PhaseFinalize
)

func (p Phase) String() string {
	switch p {
	case PhaseInstructions:
		return "instructions"
	case PhaseWaitTrigger:
		return "wait-trigger"
	case PhaseLeadFixation:
		return "lead-fixation"
	case PhaseStim:
		return "stim"
	case PhaseITI:
		return "iti"
	case PhaseFinalize:
		return "finalize"
	}
	return "unknown"
}

// RunState is the mutable state of one run. Only the scheduler touches it.
type RunState struct {
	// Origin is the clock reading at lead-in start; elapsed time is
	// measured from it.
	Origin  time.Duration
	Started bool
	Phase   Phase
	Trial   int

	TrialStart time.Duration
	TrialEnd   time.Duration
	ITIEnd     time.Duration

	Aborted   bool
	AbortedAt time.Duration
}
