package sim

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

// PatientStatus is one roster entry of a queue snapshot.
type PatientStatus struct {
	ID             int     `json:"id"`
	Severity       string  `json:"type"`
	Health         float64 `json:"health"`
	NextRoom       string  `json:"next_room"`
	Urgency        float64 `json:"urgency"`
	CurrentStep    int     `json:"current_step"`
	PathwayLength  int     `json:"pathway_length"`
	StepsRemaining int     `json:"steps_remaining"`
}

// QueueStatus is the roster snapshot exposed to collaborators.
type QueueStatus struct {
	QueueSize int             `json:"queue_size"`
	Patients  []PatientStatus `json:"patients"`
}

// PatientSnapshot is the immutable copy returned by Spawn.
type PatientSnapshot struct {
	ID             int      `json:"id"`
	Severity       string   `json:"type"`
	Health         float64  `json:"health"`
	Pathway        []string `json:"pathway"`
	Deadline       float64  `json:"deadline"`
	DoctorRequired bool     `json:"doctor_required"`
}

// PlanResult is the bundle a planning call returns.
type PlanResult struct {
	Strategy       string             `json:"strategy"`
	Description    string             `json:"description"`
	ExpectedValue  float64            `json:"expected_value"`
	StrategyValues map[string]float64 `json:"all_strategy_values,omitempty"`
	NurseCommands  []Command          `json:"nurse_commands"`
	DoctorCommands []Command          `json:"doctor_commands"`
	Learning       LearningStats      `json:"learning_stats"`
	Idle           bool               `json:"idle"`
}

// StrategyIdle names the degenerate result for an empty roster.
const StrategyIdle = "IDLE"

// Service owns the live scenario and the process-wide learner, and drives
// the evaluation/learning rounds of each planning call.
//
// Concurrency: one logical scheduler per process. Every exported operation
// takes the service mutex, so planning calls — which mutate the learner —
// are serialized and run to completion before returning. The only
// intra-call parallelism is the per-strategy simulation fan-out, which
// touches nothing but private clones.
type Service struct {
	mu sync.Mutex

	cfg      *Config
	topo     *Topology
	sim      *Simulator
	learner  *RegretMinimizer
	compiler *PlanCompiler
	rng      *PartitionedRNG

	state          *GameState
	patientCounter int
}

// NewService constructs a scheduler with the given configuration and seed.
// The learner is created once here and lives until ResetLearning.
func NewService(cfg *Config, seed int64) *Service {
	topo := NewTopology(cfg)
	rng := NewPartitionedRNG(NewSimulationKey(seed))
	return &Service{
		cfg:      cfg,
		topo:     topo,
		sim:      NewSimulator(cfg, topo),
		learner:  NewRegretMinimizer(rng.ForSubsystem(SubsystemSelection)),
		compiler: NewPlanCompiler(topo),
		rng:      rng,
	}
}

// Spawn adds a patient of the given tier to the roster, creating the
// scenario lazily on first use, and returns an immutable snapshot.
func (s *Service) Spawn(severity Severity) PatientSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		s.state = NewGameState()
	}
	s.patientCounter++
	params := s.cfg.Severity(severity)
	p := &Patient{
		ID:             s.patientCounter,
		Severity:       severity,
		Health:         params.InitialHealth,
		Pathway:        append([]string(nil), params.Pathway...),
		TreatedBy:      make(map[string]float64, 2),
		Deadline:       params.Deadline,
		DoctorRequired: severity == SeverityCritical,
	}
	s.state.Patients = append(s.state.Patients, p)
	logrus.Infof("spawned patient %d (%s), roster size %d", p.ID, severity, len(s.state.Patients))

	return PatientSnapshot{
		ID:             p.ID,
		Severity:       severity.String(),
		Health:         p.Health,
		Pathway:        append([]string(nil), p.Pathway...),
		Deadline:       p.Deadline,
		DoctorRequired: p.DoctorRequired,
	}
}

// StepPatient marks one pathway step complete for the given patient and
// reports whether the pathway is now finished. Unknown ids return false.
func (s *Service) StepPatient(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return false
	}
	p := s.state.FindPatient(id)
	if p == nil {
		return false
	}
	if !p.IsComplete() {
		p.CurrentStep++
	}
	return p.IsComplete()
}

// RemovePatient drops a patient from the roster. Unknown ids are a no-op.
func (s *Service) RemovePatient(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return false
	}
	removed := s.state.RemovePatient(id)
	if removed {
		logrus.Infof("removed patient %d, %d remaining", id, len(s.state.Patients))
	}
	return removed
}

// QueueStatus snapshots the roster for display.
func (s *Service) QueueStatus() QueueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := QueueStatus{Patients: []PatientStatus{}}
	if s.state == nil {
		return status
	}
	status.QueueSize = len(s.state.Patients)
	for _, p := range s.state.Patients {
		next, _ := p.NextRoom()
		status.Patients = append(status.Patients, PatientStatus{
			ID:             p.ID,
			Severity:       p.Severity.String(),
			Health:         p.Health,
			NextRoom:       next,
			Urgency:        p.Urgency(),
			CurrentStep:    p.CurrentStep,
			PathwayLength:  len(p.Pathway),
			StepsRemaining: len(p.Pathway) - p.CurrentStep,
		})
	}
	return status
}

// Reset replaces the scenario wholesale. The learner is untouched; clearing
// it is a separate, explicit operation.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = nil
	s.patientCounter = 0
}

// ResetLearning clears the process-wide learner state.
func (s *Service) ResetLearning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.learner.Reset()
}

// SetRooms merges room coordinate updates from the game client.
func (s *Service) SetRooms(coords map[string]Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topo.SetRooms(coords)
}

// SetAgentPosition moves an agent to a named room between planning calls.
func (s *Service) SetAgentPosition(agent, room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		s.state = NewGameState()
	}
	s.state.agent(agent).Room = room
}

// LearningStats snapshots the learner.
func (s *Service) LearningStats() LearningStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.learner.Stats()
}

// LearningHistory returns copies of the learner's diagnostic series for
// report export.
func (s *Service) LearningHistory() (regret, distance []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.learner.RegretHistory()...),
		append([]float64(nil), s.learner.DistanceHistory()...)
}

// Config returns the service configuration (read-only by convention).
func (s *Service) Config() *Config {
	return s.cfg
}

// Plan runs the evaluation/learning rounds against the current roster and
// returns the compiled assignment. An empty roster yields the IDLE result
// without touching the learner. The call holds the service mutex end to
// end, so the learner sees rounds from exactly one call at a time.
func (s *Service) Plan() PlanResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil || len(s.state.Patients) == 0 {
		return PlanResult{
			Strategy:       StrategyIdle,
			Description:    "No patients",
			NurseCommands:  []Command{},
			DoctorCommands: []Command{},
			Learning:       s.learner.Stats(),
			Idle:           true,
		}
	}

	logrus.Infof("planning for %d patients over %d rounds", len(s.state.Patients), s.cfg.Learner.Rounds)

	var values map[Strategy]float64
	for round := 0; round < s.cfg.Learner.Rounds; round++ {
		values = s.evaluateStrategies()

		policy := s.learner.CurrentPolicy()
		selected := s.learner.Sample(policy)
		s.learner.Update(values)
		s.learner.RecordIteration(values, selected, policy, values[selected])

		logrus.Debugf("round %d/%d: selected %s (value %.2f)",
			round+1, s.cfg.Learner.Rounds, selected, values[selected])
	}

	best := s.selectStrategy(values)
	nurseCommands, doctorCommands := s.compiler.Compile(s.state, best)

	result := PlanResult{
		Strategy:       best.String(),
		Description:    best.Spec().Description,
		ExpectedValue:  values[best],
		StrategyValues: make(map[string]float64, len(values)),
		NurseCommands:  nurseCommands,
		DoctorCommands: doctorCommands,
		Learning:       s.learner.Stats(),
	}
	for strat, v := range values {
		result.StrategyValues[strat.String()] = v
	}
	logrus.Infof("selected strategy %s (expected value %.2f)", best, result.ExpectedValue)
	return result
}

// evaluateStrategies estimates every catalog strategy's utility by
// averaging several fresh rollouts per strategy, then perturbs the
// averages with zero-mean noise whose scale decays with the learner's
// lifetime iteration count. The rollouts are embarrassingly parallel —
// each runs against its own clone — so strategies fan out across
// goroutines; noise is applied afterwards in catalog order to keep the
// noise stream deterministic.
func (s *Service) evaluateStrategies() map[Strategy]float64 {
	averages := make([]float64, len(Catalog))
	var wg sync.WaitGroup
	for i, strategy := range Catalog {
		wg.Add(1)
		go func(i int, strategy Strategy) {
			defer wg.Done()
			total := 0.0
			for sample := 0; sample < s.cfg.Learner.Samples; sample++ {
				nurse, doctor := GenerateSequences(s.state, strategy)
				_, metrics := s.sim.Run(s.state, nurse, doctor)
				total += metrics.Value(s.cfg.Learner.Weights)
			}
			averages[i] = total / float64(s.cfg.Learner.Samples)
		}(i, strategy)
	}
	wg.Wait()

	noiseScale := math.Max(0.1, 10.0/float64(s.learner.Iterations()+1))
	noiseRNG := s.rng.ForSubsystem(SubsystemNoise)
	values := make(map[Strategy]float64, len(Catalog))
	for i, strategy := range Catalog {
		values[strategy] = averages[i] + noiseRNG.NormFloat64()*noiseScale
	}
	return values
}

// selectStrategy picks the catalog entry with the highest time-averaged
// probability, breaking ties (and the empty-average edge) by the latest
// round's value.
func (s *Service) selectStrategy(latest map[Strategy]float64) Strategy {
	avg := s.learner.AveragePolicy()

	best := Catalog[0]
	for _, strat := range Catalog[1:] {
		switch {
		case avg[strat] > avg[best]:
			best = strat
		case avg[strat] == avg[best] && latest[strat] > latest[best]:
			best = strat
		}
	}
	return best
}
