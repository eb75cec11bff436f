package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCompiler(repair bool) *PlanCompiler {
	c := NewPlanCompiler(NewTopology(DefaultConfig()))
	c.DisableRepair = !repair
	return c
}

func TestPlanCompiler_CoverageInvariant_AllStrategies(t *testing.T) {
	// GIVEN a mixed roster and the repair net switched off
	state := mixedRoster(DefaultConfig())
	compiler := newTestCompiler(false)

	// THEN the primary generation rules alone cover every pathway
	for _, strategy := range Catalog {
		nurse, doctor := compiler.Compile(state, strategy)
		gaps := CoverageGaps(state.Patients, nurse, doctor)
		assert.Empty(t, gaps, "strategy %s left uncovered patients", strategy)
	}
}

func TestPlanCompiler_NonEmptinessInvariant(t *testing.T) {
	// GIVEN a roster of one minor patient, which leaves the doctor with
	// nothing under the role-split rules
	cfg := DefaultConfig()
	state := NewGameState()
	state.Patients = append(state.Patients, testPatient(1, SeverityMinor, cfg))
	compiler := newTestCompiler(true)

	nurse, doctor := compiler.Compile(state, StrategyRoleSplit)

	require.NotEmpty(t, nurse)
	require.Len(t, doctor, 1)
	assert.Equal(t, CommandMove, doctor[0].Action)
	assert.Equal(t, RoomEntrance, doctor[0].Target)
	assert.Equal(t, -1, doctor[0].PatientID)
}

func TestPlanCompiler_Idempotent(t *testing.T) {
	state := mixedRoster(DefaultConfig())
	compiler := newTestCompiler(true)

	for _, strategy := range Catalog {
		n1, d1 := compiler.Compile(state, strategy)
		n2, d2 := compiler.Compile(state, strategy)
		assert.Equal(t, n1, n2, "strategy %s nurse plan not idempotent", strategy)
		assert.Equal(t, d1, d2, "strategy %s doctor plan not idempotent", strategy)
	}
}

func TestPlanCompiler_RoleSplit_DoctorTakesCritical(t *testing.T) {
	state := mixedRoster(DefaultConfig())
	compiler := newTestCompiler(true)

	nurse, doctor := compiler.Compile(state, StrategyRoleSplit)

	for _, cmd := range doctor {
		if cmd.Action == CommandTreat || cmd.Action == CommandEscort {
			assert.Equal(t, 1, cmd.PatientID, "doctor should only handle the critical patient")
		}
	}
	for _, cmd := range nurse {
		assert.NotEqual(t, 1, cmd.PatientID, "nurse must not handle the critical patient")
	}
}

func TestPlanCompiler_ICULeaveAfterStabilization(t *testing.T) {
	// GIVEN one critical patient whose pathway ends in the ICU
	cfg := DefaultConfig()
	state := NewGameState()
	state.Patients = append(state.Patients, testPatient(1, SeverityCritical, cfg))
	compiler := newTestCompiler(true)

	_, doctor := compiler.Compile(state, StrategyRoleSplit)

	require.NotEmpty(t, doctor)
	last := doctor[len(doctor)-1]
	assert.Equal(t, CommandLeave, last.Action)
	assert.Equal(t, RoomICU, last.Target)
	assert.Equal(t, 1, last.PatientID)
}

func TestPlanCompiler_TriageSpecialist_NurseLeavesAfterTriage(t *testing.T) {
	cfg := DefaultConfig()
	state := NewGameState()
	state.Patients = append(state.Patients, testPatient(1, SeverityModerate, cfg))
	compiler := newTestCompiler(true)

	nurse, doctor := compiler.Compile(state, StrategyTriageSpecialist)

	// Nurse: escort + treat at triage, then an immediate hand-off.
	require.Len(t, nurse, 3)
	assert.Equal(t, CommandEscort, nurse[0].Action)
	assert.Equal(t, CommandTreat, nurse[1].Action)
	assert.Equal(t, RoomTriage, nurse[1].Target)
	assert.Equal(t, CommandLeave, nurse[2].Action)

	// Doctor: the remaining three steps as escort/treat pairs.
	treats := treatTargets(doctor, 1)
	assert.Equal(t, []string{RoomTreatmentBay, RoomLab, RoomTreatmentBay}, treats)
}

func TestPlanCompiler_TriageSpecialist_SplitsOnFirstStep(t *testing.T) {
	// GIVEN a custom pathway that revisits TRIAGE mid-pathway
	cfg := DefaultConfig()
	state := NewGameState()
	p := testPatient(1, SeverityMinor, cfg)
	p.Pathway = []string{RoomTriage, RoomTreatmentBay, RoomTriage}
	state.Patients = append(state.Patients, p)
	compiler := newTestCompiler(false)

	nurse, doctor := compiler.Compile(state, StrategyTriageSpecialist)

	// THEN only the first step belongs to the nurse; the later TRIAGE
	// visit stays with the doctor, and coverage still holds
	assert.Equal(t, []string{RoomTriage}, treatTargets(nurse, 1))
	assert.Equal(t, []string{RoomTreatmentBay, RoomTriage}, treatTargets(doctor, 1))
	assert.Empty(t, CoverageGaps(state.Patients, nurse, doctor))
}

func TestPlanCompiler_EscortCarriesDepartureRoom(t *testing.T) {
	cfg := DefaultConfig()
	state := NewGameState()
	state.Patients = append(state.Patients, testPatient(1, SeverityModerate, cfg))
	compiler := newTestCompiler(true)

	nurse, _ := compiler.Compile(state, StrategySeverityOrdered)

	// First escort departs the waiting area; later escorts depart the
	// previous pathway room.
	var escorts []Command
	for _, cmd := range nurse {
		if cmd.Action == CommandEscort {
			escorts = append(escorts, cmd)
		}
	}
	require.Len(t, escorts, 4)
	assert.Equal(t, "WAITING", escorts[0].FromRoom)
	assert.Equal(t, RoomTriage, escorts[1].FromRoom)
	assert.Equal(t, RoomTreatmentBay, escorts[2].FromRoom)
	assert.Equal(t, RoomLab, escorts[3].FromRoom)
}

func TestPlanCompiler_TreatDurationFromTopology(t *testing.T) {
	cfg := DefaultConfig()
	state := NewGameState()
	state.Patients = append(state.Patients, testPatient(1, SeverityMinor, cfg))
	compiler := newTestCompiler(true)

	nurse, _ := compiler.Compile(state, StrategySeverityOrdered)

	topo := NewTopology(cfg)
	for _, cmd := range nurse {
		if cmd.Action == CommandTreat {
			assert.Equal(t, topo.TreatmentTimeOf(cmd.Target), cmd.Duration)
		}
	}
}

func TestPlanCompiler_UrgencySortedStrategiesVisitCriticalFirst(t *testing.T) {
	// GIVEN a roster spawned minor-first
	cfg := DefaultConfig()
	state := NewGameState()
	state.Patients = append(state.Patients,
		testPatient(1, SeverityMinor, cfg),
		testPatient(2, SeverityCritical, cfg),
	)
	compiler := newTestCompiler(true)

	nurse, _ := compiler.Compile(state, StrategyCriticalFirst)

	// THEN the compiled plan reorders by urgency: the critical patient's
	// commands come first.
	require.NotEmpty(t, nurse)
	assert.Equal(t, 2, nurse[0].PatientID)
}

func TestCoverageGaps_DetectsMissingStep(t *testing.T) {
	// GIVEN hand-built command lists that skip the patient's second step
	cfg := DefaultConfig()
	p := testPatient(1, SeverityMinor, cfg)

	nurse := []Command{
		{Action: CommandTreat, Target: RoomTriage, PatientID: 1},
	}

	gaps := CoverageGaps([]*Patient{p}, nurse, nil)
	assert.Equal(t, []int{1}, gaps)

	// Completing the pathway from the doctor's side closes the gap.
	doctor := []Command{
		{Action: CommandTreat, Target: RoomTreatmentBay, PatientID: 1},
	}
	assert.Empty(t, CoverageGaps([]*Patient{p}, nurse, doctor))
}

func TestPlanCompiler_RepairCoversMissedPatient(t *testing.T) {
	// GIVEN a compiler whose repair net is on, fed lists missing a patient
	cfg := DefaultConfig()
	p := testPatient(7, SeverityMinor, cfg)
	compiler := newTestCompiler(true)

	repaired := compiler.repairCoverage([]*Patient{p}, nil, nil)

	assert.Empty(t, CoverageGaps([]*Patient{p}, repaired, nil))
	treats := treatTargets(repaired, 7)
	assert.Equal(t, p.Pathway, treats)
}
