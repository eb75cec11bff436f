package sim

// ActionKind discriminates the symbolic per-agent actions a strategy emits.
type ActionKind int

const (
	// ActionWait occupies the agent for one tick.
	ActionWait ActionKind = iota
	// ActionTreat sends the agent to the target patient's next pathway room.
	ActionTreat
)

// Action is one symbolic entry in an agent's generated queue. Strategies
// produce Actions; the simulator resolves them against the live roster at
// execution time (a treat aimed at an already-removed patient is a no-op).
type Action struct {
	Kind      ActionKind
	PatientID int
}

// Treat builds a treat action for the given patient id.
func Treat(patientID int) Action {
	return Action{Kind: ActionTreat, PatientID: patientID}
}

// Wait builds a wait action.
func Wait() Action {
	return Action{Kind: ActionWait}
}
