package sim

import "fmt"

// Agent identifiers. The unit has exactly two shared agents.
const (
	AgentNurse  = "nurse"
	AgentDoctor = "doctor"
)

// Severity classifies a patient into one of three ordered urgency tiers.
// The set is closed: every tier carries a fixed pathway, penalty rate,
// initial health and completion reward (see Config).
type Severity int

const (
	SeverityMinor Severity = iota
	SeverityModerate
	SeverityCritical
)

// severityNames are the wire names used by the transport layer and reports.
var severityNames = [...]string{"Minor", "Moderate", "Critical"}

func (s Severity) String() string {
	if s < SeverityMinor || s > SeverityCritical {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// Weight returns the tier weight used in the urgency heuristic.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityModerate:
		return 2
	default:
		return 1
	}
}

// ParseSeverity maps a wire name to a Severity. Unknown names return
// SeverityMinor and false — callers normalize rather than fail (the
// transport layer treats a malformed tier as InvalidInput, never fatal).
func ParseSeverity(name string) (Severity, bool) {
	switch name {
	case "Minor":
		return SeverityMinor, true
	case "Moderate":
		return SeverityModerate, true
	case "Critical":
		return SeverityCritical, true
	}
	return SeverityMinor, false
}

// Patient is one entry in the live roster.
//
// Invariants (enforced by the simulator and service operations):
//   - 0 <= Health <= 100; Health 0 means death and removal
//   - 0 <= CurrentStep <= len(Pathway); complete iff CurrentStep == len(Pathway)
//   - TreatedBy holds at most two agents; a second attachment is cooperative
type Patient struct {
	ID          int
	Severity    Severity
	Health      float64
	Pathway     []string
	CurrentStep int
	ArrivalTime float64
	WaitingTime float64

	// TreatedBy maps an attached agent to the simulated timestamp at which
	// its treatment window ends. The simulator detaches expired agents at
	// the start of each tick.
	TreatedBy map[string]float64

	Deadline       float64
	DoctorRequired bool
}

// IsComplete reports whether the patient has finished its full pathway.
func (p *Patient) IsComplete() bool {
	return p.CurrentStep >= len(p.Pathway)
}

// NextRoom returns the next required pathway location, or false when the
// pathway is complete.
func (p *Patient) NextRoom() (string, bool) {
	if p.IsComplete() {
		return "", false
	}
	return p.Pathway[p.CurrentStep], true
}

// Urgency is the tie-break heuristic used by priority-sensitive strategies:
// tier weight scaled by missing health. The learner itself never reads it.
func (p *Patient) Urgency() float64 {
	return p.Severity.Weight() * (100 - p.Health) / 100
}

// Clone returns a deep, independent copy.
func (p *Patient) Clone() *Patient {
	cp := *p
	cp.Pathway = append([]string(nil), p.Pathway...)
	cp.TreatedBy = make(map[string]float64, len(p.TreatedBy))
	for agent, until := range p.TreatedBy {
		cp.TreatedBy[agent] = until
	}
	return &cp
}
