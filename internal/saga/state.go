package saga

// State is a step of the saga state machine.
type State int

const (
	StateIdle State = iota
	StateStaging
	StateStaged
	StateStageFailed
	StateCommitting
	StateCommitted
	StateCommitFailed
	StateCompensating
	StateCompensated
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateStaging:      "staging",
	StateStaged:       "staged",
	StateStageFailed:  "stage_failed",
	StateCommitting:   "committing",
	StateCommitted:    "committed",
	StateCommitFailed: "commit_failed",
	StateCompensating: "compensating",
	StateCompensated:  "compensated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// allowed lists the legal transitions.
var allowed = map[State][]State{
	StateIdle:         {StateStaging, StateCommitting},
	StateStaging:      {StateStaged, StateStageFailed},
	StateStaged:       {StateCommitting, StateCommitFailed},
	StateCommitting:   {StateCommitted, StateCommitFailed},
	StateCommitFailed: {StateCompensating},
	StateCompensating: {StateCompensated},
}

func canTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
