package pipeline

// State is a step of the extraction state machine
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateProbing    State = "probing"
	StateFiltered   State = "filtered"
	StateFetching   State = "fetching"
	StateExtracting State = "extracting"
	StateCleaningUp State = "cleaning_up"
	StateDone       State = "done"
	StateRejected   State = "rejected"
	StateFailed     State = "failed"
)

// transitions lists the legal successors of every non-terminal state.
// StateFailed is reachable from any of them and is added by CanTransition.
var transitions = map[State][]State{
	StateIdle:       {StateValidating},
	StateValidating: {StateProbing, StateRejected},
	StateProbing:    {StateFiltered, StateFetching},
	StateFetching:   {StateExtracting},
	StateExtracting: {StateCleaningUp},
	StateCleaningUp: {StateDone},
}

// Terminal returns true for states that end a run
func (s State) Terminal() bool {
	switch s {
	case StateFiltered, StateDone, StateRejected, StateFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is allowed
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
