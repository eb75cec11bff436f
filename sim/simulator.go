package sim

import (
	"math"

	"github.com/sirupsen/logrus"
)

// Simulator replays a pair of per-agent action queues against a scenario.
// It is stateless apart from configuration; Run always clones the state it
// is given, so a Simulator may be shared across goroutines as long as each
// call gets its own input.
type Simulator struct {
	cfg  *Config
	topo *Topology
}

// NewSimulator builds a Simulator over the given configuration and topology.
func NewSimulator(cfg *Config, topo *Topology) *Simulator {
	return &Simulator{cfg: cfg, topo: topo}
}

// Run advances the cloned scenario in one-tick increments until the horizon
// is reached or the roster empties, executing each agent's next queued
// action whenever its busy-until has elapsed. It returns the final state
// and the aggregate metrics for the rollout. The caller's state is never
// mutated.
func (sim *Simulator) Run(initial *GameState, nurseActions, doctorActions []Action) (*GameState, RunMetrics) {
	state := initial.Clone()
	var metrics RunMetrics

	const tick = 1.0
	nurseIdx, doctorIdx := 0, 0

	for state.Clock < sim.cfg.Physics.Horizon && len(state.Patients) > 0 {
		// 1. Untreated patients decay.
		metrics.TotalPenalty += sim.applyWaitingPenalties(state, tick)

		// 2. Death is terminal: remove and penalize, never retry.
		sim.removeDead(state, &metrics)

		// 3. Free up agents whose treatment window ended.
		detachExpired(state)

		// 4. Agents dequeue their next action once idle.
		if state.Clock >= state.Nurse.BusyUntil && nurseIdx < len(nurseActions) {
			metrics.TotalHealing += sim.executeAction(state, AgentNurse, nurseActions[nurseIdx], &metrics)
			nurseIdx++
		}
		if state.Clock >= state.Doctor.BusyUntil && doctorIdx < len(doctorActions) {
			metrics.TotalHealing += sim.executeAction(state, AgentDoctor, doctorActions[doctorIdx], &metrics)
			doctorIdx++
		}

		// 5. Finished pathways leave the roster.
		sim.removeCompleted(state, &metrics)

		state.Clock += tick
	}

	logrus.Debugf("[tick %05.0f] rollout done: healed=%.1f penalty=%.1f completed=%d",
		state.Clock, metrics.TotalHealing, metrics.TotalPenalty, metrics.PatientsCompleted)
	return state, metrics
}

// applyWaitingPenalties drains health from every patient with no attached
// agent and returns the penalty magnitude accrued this tick.
func (sim *Simulator) applyWaitingPenalties(state *GameState, delta float64) float64 {
	penalty := 0.0
	for _, p := range state.Patients {
		if len(p.TreatedBy) > 0 {
			continue
		}
		rate := sim.cfg.Severity(p.Severity).PenaltyRate
		penalty += rate * delta
		p.WaitingTime += delta
		p.Health = math.Max(0, p.Health-rate*delta)
	}
	state.TotalPenalty += penalty
	return penalty
}

func (sim *Simulator) removeDead(state *GameState, metrics *RunMetrics) {
	alive := state.Patients[:0]
	for _, p := range state.Patients {
		if p.Health <= 0 {
			state.TotalPenalty += sim.cfg.Physics.DeathPenalty
			metrics.TotalPenalty += sim.cfg.Physics.DeathPenalty
			continue
		}
		alive = append(alive, p)
	}
	state.Patients = alive
}

func (sim *Simulator) removeCompleted(state *GameState, metrics *RunMetrics) {
	remaining := state.Patients[:0]
	for _, p := range state.Patients {
		if p.IsComplete() {
			metrics.PatientsCompleted++
			continue
		}
		remaining = append(remaining, p)
	}
	state.Patients = remaining
}

// detachExpired removes attachments whose treatment window has elapsed.
func detachExpired(state *GameState) {
	for _, p := range state.Patients {
		for agent, until := range p.TreatedBy {
			if until <= state.Clock {
				delete(p.TreatedBy, agent)
			}
		}
	}
}

// executeAction resolves one symbolic action for one agent and returns the
// reward (healing plus any completion bonus) it produced.
func (sim *Simulator) executeAction(state *GameState, agent string, action Action, metrics *RunMetrics) float64 {
	switch action.Kind {
	case ActionWait:
		metrics.IdleTime++
		state.agent(agent).BusyUntil = state.Clock + 1
		return 0

	case ActionTreat:
		patient := state.FindPatient(action.PatientID)
		if patient == nil {
			// Target already died or completed; the action is consumed.
			return 0
		}
		room, ok := patient.NextRoom()
		if !ok {
			return 0
		}

		ag := state.agent(agent)
		speed := sim.cfg.Physics.NurseSpeed
		if agent == AgentDoctor {
			speed = sim.cfg.Physics.DoctorSpeed
		}
		travel := sim.topo.Distance(ag.Room, room) / speed
		treatTime := sim.topo.TreatmentTimeOf(room)
		busyUntil := state.Clock + travel + treatTime
		ag.Room = room
		ag.BusyUntil = busyUntil

		// Cooperative if the other agent is still attached when we arrive.
		cooperative := false
		for other := range patient.TreatedBy {
			if other != agent {
				cooperative = true
			}
		}
		if cooperative {
			metrics.CooperationEvents++
		}
		if patient.TreatedBy == nil {
			patient.TreatedBy = make(map[string]float64, 2)
		}
		patient.TreatedBy[agent] = busyUntil

		return sim.treatPatient(state, patient, agent, room, treatTime, cooperative)
	}
	return 0
}

// treatPatient applies healing for one pathway step and advances it,
// awarding the completion reward when the pathway finishes.
func (sim *Simulator) treatPatient(state *GameState, patient *Patient, agent, room string, duration float64, cooperative bool) float64 {
	power := sim.cfg.Physics.NursePower
	if agent == AgentDoctor {
		power = sim.cfg.Physics.DoctorPower
	}
	if cooperative {
		power *= sim.cfg.Physics.CooperativeBonus
	}

	healing := power * sim.topo.EffectivenessOf(room) * (duration / sim.topo.TreatmentTimeOf(room))
	patient.Health = math.Min(100, patient.Health+healing)
	patient.CurrentStep++

	reward := healing
	if patient.IsComplete() {
		reward += sim.cfg.Severity(patient.Severity).CompletionReward
		state.CompletedPatients++
	}
	state.TotalReward += reward
	return reward
}
