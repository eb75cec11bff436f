package sim

import "github.com/sirupsen/logrus"

// CommandAction enumerates the literal agent commands the game client
// executes.
type CommandAction string

const (
	CommandEscort CommandAction = "ESCORT"
	CommandTreat  CommandAction = "TREAT"
	CommandLeave  CommandAction = "LEAVE_PATIENT"
	CommandMove   CommandAction = "MOVE"
)

// Command is one literal instruction for an agent. PatientID is -1 for
// commands not tied to a patient (the idle MOVE).
type Command struct {
	Action    CommandAction `json:"action"`
	Target    string        `json:"target"`
	PatientID int           `json:"patient_id"`
	Duration  float64       `json:"duration"`
	FromRoom  string        `json:"from_room,omitempty"`
}

// PlanCompiler turns a chosen strategy and the live roster into concrete
// per-agent command lists.
//
// Guarantees:
//   - coverage: every patient's entire pathway appears as TREAT commands
//     across the two lists, in pathway order
//   - non-emptiness: each agent gets at least one command (a MOVE to the
//     entrance when a strategy assigns it nothing)
//
// Coverage is enforced primarily by the per-strategy generation rules. A
// verification pass recomputes coverage afterwards and synthesizes
// nurse-only fallback commands for any patient missed; it must never fire
// under correct generation and logs a warning when it does. Tests disable
// the repair to assert the primary rules alone satisfy the invariant.
type PlanCompiler struct {
	topo *Topology

	// DisableRepair turns off the defensive coverage repair pass.
	DisableRepair bool
}

// NewPlanCompiler builds a compiler over the given topology.
func NewPlanCompiler(topo *Topology) *PlanCompiler {
	return &PlanCompiler{topo: topo}
}

// Compile maps the chosen strategy and roster to the two command lists.
// Compiling the same strategy against an unchanged scenario is idempotent.
func (c *PlanCompiler) Compile(state *GameState, strategy Strategy) (nurseCommands, doctorCommands []Command) {
	patients := append([]*Patient(nil), state.Patients...)
	if strategy.Spec().UrgencySorted {
		patients = sortedByUrgency(patients)
	}

	// Tracks each patient's simulated location so ESCORT commands carry
	// the room they depart from.
	location := make(map[int]string, len(patients))
	for _, p := range patients {
		location[p.ID] = "WAITING"
	}

	for _, p := range patients {
		critical := p.Severity == SeverityCritical
		hasDoctor := false

		for step, room := range p.Pathway {
			from := location[p.ID]

			switch strategy {
			case StrategyRoleSplit:
				if critical {
					doctorCommands = c.appendStep(doctorCommands, p.ID, room, from)
					hasDoctor = true
				} else {
					nurseCommands = c.appendStep(nurseCommands, p.ID, room, from)
				}

			case StrategyTriageSpecialist:
				// The split is the first pathway step, not the triage room:
				// a pathway revisiting TRIAGE later stays with the doctor.
				if step == 0 {
					nurseCommands = c.appendStep(nurseCommands, p.ID, room, from)
					nurseCommands = append(nurseCommands, Command{
						Action: CommandLeave, Target: room, PatientID: p.ID,
					})
				} else {
					doctorCommands = c.appendStep(doctorCommands, p.ID, room, from)
					hasDoctor = true
				}

			case StrategyCriticalFirst:
				nurseCommands = c.appendStep(nurseCommands, p.ID, room, from)
				if critical {
					doctorCommands = c.appendStep(doctorCommands, p.ID, room, from)
					hasDoctor = true
				}

			case StrategyCooperative:
				nurseCommands = c.appendStep(nurseCommands, p.ID, room, from)
				doctorCommands = c.appendStep(doctorCommands, p.ID, room, from)
				hasDoctor = true

			default:
				// severity-ordered and alternating: nurse carries the
				// pathway, with a doctor hand-off once a critical patient
				// reaches a therapy-class room.
				nurseCommands = c.appendStep(nurseCommands, p.ID, room, from)
				if critical && (room == RoomTreatmentBay || room == RoomICU) {
					doctorCommands = c.appendStep(doctorCommands, p.ID, room, from)
					hasDoctor = true
				}
			}

			location[p.ID] = room
		}

		// The doctor disengages once an ICU patient is stabilized.
		if len(p.Pathway) > 0 && p.Pathway[len(p.Pathway)-1] == RoomICU && hasDoctor {
			doctorCommands = append(doctorCommands, Command{
				Action: CommandLeave, Target: RoomICU, PatientID: p.ID,
			})
		}
	}

	if !c.DisableRepair {
		nurseCommands = c.repairCoverage(patients, nurseCommands, doctorCommands)
	}

	// Non-emptiness: an agent with nothing to do still gets a command.
	if len(nurseCommands) == 0 {
		nurseCommands = append(nurseCommands, Command{Action: CommandMove, Target: RoomEntrance, PatientID: -1})
	}
	if len(doctorCommands) == 0 {
		doctorCommands = append(doctorCommands, Command{Action: CommandMove, Target: RoomEntrance, PatientID: -1})
	}
	return nurseCommands, doctorCommands
}

// appendStep emits the ESCORT+TREAT pair for one pathway step.
func (c *PlanCompiler) appendStep(cmds []Command, patientID int, room, from string) []Command {
	cmds = append(cmds, Command{
		Action: CommandEscort, Target: room, PatientID: patientID, FromRoom: from,
	})
	cmds = append(cmds, Command{
		Action: CommandTreat, Target: room, PatientID: patientID,
		Duration: c.topo.TreatmentTimeOf(room),
	})
	return cmds
}

// CoverageGaps returns the ids of patients whose pathway is not fully
// covered, in order, by the union of TREAT commands across both lists.
func CoverageGaps(patients []*Patient, nurseCommands, doctorCommands []Command) []int {
	var gaps []int
	for _, p := range patients {
		if !pathwayCovered(p, treatTargets(nurseCommands, p.ID), treatTargets(doctorCommands, p.ID)) {
			gaps = append(gaps, p.ID)
		}
	}
	return gaps
}

// treatTargets extracts the ordered TREAT rooms for one patient.
func treatTargets(cmds []Command, patientID int) []string {
	var rooms []string
	for _, cmd := range cmds {
		if cmd.Action == CommandTreat && cmd.PatientID == patientID {
			rooms = append(rooms, cmd.Target)
		}
	}
	return rooms
}

// pathwayCovered walks the pathway, consuming matching treats from either
// agent's per-patient sequence. Every pathway room must be matched by at
// least one agent, in order.
func pathwayCovered(p *Patient, nurseRooms, doctorRooms []string) bool {
	ni, di := 0, 0
	for _, room := range p.Pathway {
		switch {
		case ni < len(nurseRooms) && nurseRooms[ni] == room:
			ni++
			// A cooperative strategy mirrors the step in both lists;
			// consume the doctor's copy too so pointers stay aligned.
			if di < len(doctorRooms) && doctorRooms[di] == room {
				di++
			}
		case di < len(doctorRooms) && doctorRooms[di] == room:
			di++
		default:
			return false
		}
	}
	return true
}

// repairCoverage synthesizes nurse-only fallback commands for any patient
// the primary rules missed. This path indicates a catalog or compiler bug;
// it exists purely as a defensive net.
func (c *PlanCompiler) repairCoverage(patients []*Patient, nurseCommands, doctorCommands []Command) []Command {
	gaps := CoverageGaps(patients, nurseCommands, doctorCommands)
	if len(gaps) == 0 {
		return nurseCommands
	}
	logrus.Warnf("plan compiler coverage gap for patients %v; generating nurse fallback", gaps)
	for _, id := range gaps {
		for _, p := range patients {
			if p.ID != id {
				continue
			}
			from := "WAITING"
			for _, room := range p.Pathway {
				nurseCommands = c.appendStep(nurseCommands, p.ID, room, from)
				from = room
			}
		}
	}
	return nurseCommands
}
