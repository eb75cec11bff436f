package sim

// AgentState tracks one agent's position and commitment inside a scenario.
// BusyUntil is the simulated timestamp before which the agent cannot accept
// a new action (travel plus treatment already committed).
type AgentState struct {
	Room      string
	BusyUntil float64
}

// GameState is the mutable scenario: the live roster, both agent records,
// the monotonic clock and the running totals. Exactly one GameState is live
// per Service; simulations run against clones only.
type GameState struct {
	Patients []*Patient
	Nurse    AgentState
	Doctor   AgentState

	Clock             float64
	TotalReward       float64
	TotalPenalty      float64
	CompletedPatients int
}

// NewGameState returns an empty scenario with both agents at the entrance.
func NewGameState() *GameState {
	return &GameState{
		Nurse:  AgentState{Room: RoomEntrance},
		Doctor: AgentState{Room: RoomEntrance},
	}
}

// Clone returns a deep, independent copy of the scenario. Patients are
// cloned individually so concurrent simulations never alias roster entries.
func (s *GameState) Clone() *GameState {
	cp := *s
	cp.Patients = make([]*Patient, len(s.Patients))
	for i, p := range s.Patients {
		cp.Patients[i] = p.Clone()
	}
	return &cp
}

// FindPatient returns the roster entry with the given id, or nil.
func (s *GameState) FindPatient(id int) *Patient {
	for _, p := range s.Patients {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// RemovePatient drops the patient with the given id from the roster.
// Unknown ids are a no-op returning false.
func (s *GameState) RemovePatient(id int) bool {
	for i, p := range s.Patients {
		if p.ID == id {
			s.Patients = append(s.Patients[:i], s.Patients[i+1:]...)
			return true
		}
	}
	return false
}

// agent returns a pointer to the named agent's record. Unknown names map to
// the nurse; the only callers pass the two fixed identifiers.
func (s *GameState) agent(name string) *AgentState {
	if name == AgentDoctor {
		return &s.Doctor
	}
	return &s.Nurse
}
