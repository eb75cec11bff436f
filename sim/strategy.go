package sim

import "sort"

// Strategy is the closed catalog of dispatch policies. Each entry carries a
// deterministic generation rule mapping the roster to a pair of symbolic
// per-agent action queues. The catalog is fixed at six entries; it is
// configuration data, not a runtime-extensible registry.
type Strategy int

const (
	// StrategyCriticalFirst: both agents jointly work every critical
	// patient's full pathway; the nurse alone handles everyone else.
	StrategyCriticalFirst Strategy = iota
	// StrategySeverityOrdered: both agents jointly process every patient's
	// full pathway in descending urgency order, one patient at a time.
	StrategySeverityOrdered
	// StrategyRoleSplit: doctor exclusively handles critical patients,
	// nurse exclusively handles the rest.
	StrategyRoleSplit
	// StrategyCooperative: both agents jointly process every patient in
	// roster order.
	StrategyCooperative
	// StrategyAlternating: patients split by parity of roster position
	// into nurse-only and doctor-only lists.
	StrategyAlternating
	// StrategyTriageSpecialist: nurse performs only the first pathway step
	// for every patient; the doctor performs all remaining steps.
	StrategyTriageSpecialist
)

// Catalog lists every strategy in canonical order. Iteration over the
// catalog (never over maps) keeps sampling and tie-breaks deterministic.
var Catalog = [...]Strategy{
	StrategyCriticalFirst,
	StrategySeverityOrdered,
	StrategyRoleSplit,
	StrategyCooperative,
	StrategyAlternating,
	StrategyTriageSpecialist,
}

// StrategySpec is the immutable description of a catalog entry.
type StrategySpec struct {
	Name        string
	Description string
	Cooperative bool
	// UrgencySorted marks strategies whose assignment order is the
	// urgency-sorted roster rather than arrival order.
	UrgencySorted bool
}

var strategySpecs = [...]StrategySpec{
	StrategyCriticalFirst: {
		Name:          "critical-first-then-split",
		Description:   "Both agents work on critical patients first, then split",
		Cooperative:   true,
		UrgencySorted: true,
	},
	StrategySeverityOrdered: {
		Name:          "severity-ordered-sequential",
		Description:   "Handle patients in order of severity, one at a time",
		Cooperative:   false,
		UrgencySorted: true,
	},
	StrategyRoleSplit: {
		Name:        "role-split-by-severity",
		Description: "Doctor handles critical patients, nurse handles others",
		Cooperative: false,
	},
	StrategyCooperative: {
		Name:        "always-cooperative",
		Description: "Both agents work together on each patient in turn",
		Cooperative: true,
	},
	StrategyAlternating: {
		Name:        "alternating-assignment",
		Description: "Patients alternate between nurse and doctor by position",
		Cooperative: false,
	},
	StrategyTriageSpecialist: {
		Name:        "triage-then-specialist",
		Description: "Nurse does triage, doctor does the remaining treatment",
		Cooperative: false,
	},
}

// Spec returns the immutable record for the strategy.
func (s Strategy) Spec() StrategySpec {
	return strategySpecs[s]
}

func (s Strategy) String() string {
	return strategySpecs[s].Name
}

// StrategyByName resolves a wire name back to a catalog entry.
func StrategyByName(name string) (Strategy, bool) {
	for _, s := range Catalog {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// sortedByUrgency returns a copy of the roster in descending urgency order.
// The sort is stable so equal-urgency patients keep arrival order, which
// keeps generation deterministic for a given roster.
func sortedByUrgency(patients []*Patient) []*Patient {
	sorted := append([]*Patient(nil), patients...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Urgency() > sorted[j].Urgency()
	})
	return sorted
}

// GenerateSequences produces the symbolic nurse and doctor action queues
// for one strategy against the current roster. Pure and deterministic for
// a given roster ordering.
//
// Invariant: both returned sequences have equal length — the shorter one is
// padded with waits. The simulator consumes the two queues index-by-index
// under busy-until gating, so unequal lengths would desynchronize the
// agents' schedules.
func GenerateSequences(state *GameState, strategy Strategy) (nurse, doctor []Action) {
	switch strategy {
	case StrategyCriticalFirst:
		for _, p := range sortedByUrgency(state.Patients) {
			if p.Severity == SeverityCritical {
				for range p.Pathway {
					nurse = append(nurse, Treat(p.ID))
					doctor = append(doctor, Treat(p.ID))
				}
			} else {
				for range p.Pathway {
					nurse = append(nurse, Treat(p.ID))
					doctor = append(doctor, Wait())
				}
			}
		}

	case StrategySeverityOrdered:
		for _, p := range sortedByUrgency(state.Patients) {
			for range p.Pathway {
				nurse = append(nurse, Treat(p.ID))
				doctor = append(doctor, Treat(p.ID))
			}
		}

	case StrategyRoleSplit:
		for _, p := range state.Patients {
			if p.Severity == SeverityCritical {
				for range p.Pathway {
					doctor = append(doctor, Treat(p.ID))
				}
			} else {
				for range p.Pathway {
					nurse = append(nurse, Treat(p.ID))
				}
			}
		}

	case StrategyCooperative:
		for _, p := range state.Patients {
			for range p.Pathway {
				nurse = append(nurse, Treat(p.ID))
				doctor = append(doctor, Treat(p.ID))
			}
		}

	case StrategyAlternating:
		for i, p := range state.Patients {
			if i%2 == 0 {
				for range p.Pathway {
					nurse = append(nurse, Treat(p.ID))
				}
			} else {
				for range p.Pathway {
					doctor = append(doctor, Treat(p.ID))
				}
			}
		}

	case StrategyTriageSpecialist:
		for _, p := range state.Patients {
			nurse = append(nurse, Treat(p.ID))
			for i := 1; i < len(p.Pathway); i++ {
				doctor = append(doctor, Treat(p.ID))
			}
		}
	}

	return padSequences(nurse, doctor)
}

// padSequences extends the shorter queue with waits until both are equal
// length.
func padSequences(nurse, doctor []Action) ([]Action, []Action) {
	for len(nurse) < len(doctor) {
		nurse = append(nurse, Wait())
	}
	for len(doctor) < len(nurse) {
		doctor = append(doctor, Wait())
	}
	return nurse, doctor
}
