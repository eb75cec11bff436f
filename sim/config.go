package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PhysicsConfig groups the physical model constants.
type PhysicsConfig struct {
	NurseSpeed  float64 `yaml:"nurse_speed"` // distance units per minute
	DoctorSpeed float64 `yaml:"doctor_speed"`
	NursePower  float64 `yaml:"nurse_power"` // base healing power per treatment
	DoctorPower float64 `yaml:"doctor_power"`

	CooperativeBonus float64 `yaml:"cooperative_bonus"` // healing multiplier when both agents treat one patient
	DeathPenalty     float64 `yaml:"death_penalty"`     // fixed penalty when a patient's health reaches 0

	DefaultEffectiveness float64 `yaml:"default_effectiveness"` // fallback for unknown rooms
	DefaultTreatmentTime float64 `yaml:"default_treatment_time"`

	Horizon float64 `yaml:"horizon"` // simulation time budget per run, in ticks
}

// SeverityConfig holds the per-tier parameters.
type SeverityConfig struct {
	InitialHealth    float64  `yaml:"initial_health"`
	PenaltyRate      float64  `yaml:"penalty_rate"` // health drain per minute while waiting
	CompletionReward float64  `yaml:"completion_reward"`
	Deadline         float64  `yaml:"deadline"`
	Pathway          []string `yaml:"pathway"`
}

// SeveritiesConfig maps the three closed tiers to their parameters.
type SeveritiesConfig struct {
	Minor    SeverityConfig `yaml:"minor"`
	Moderate SeverityConfig `yaml:"moderate"`
	Critical SeverityConfig `yaml:"critical"`
}

// RoomConfig describes one room of the unit.
type RoomConfig struct {
	Name          string  `yaml:"name"`
	X             float64 `yaml:"x"`
	Y             float64 `yaml:"y"`
	Effectiveness float64 `yaml:"effectiveness"`
	TreatmentTime float64 `yaml:"treatment_time"`
}

// ValueWeights combines a simulation run's metrics into one scalar utility.
type ValueWeights struct {
	Healing     float64 `yaml:"healing"`
	Completion  float64 `yaml:"completion"` // per completed patient
	Cooperation float64 `yaml:"cooperation"`
	Penalty     float64 `yaml:"penalty"`
	Idle        float64 `yaml:"idle"`
}

// LearnerConfig groups the learning-loop parameters.
type LearnerConfig struct {
	Rounds  int          `yaml:"rounds"`  // regret iterations per planning call
	Samples int          `yaml:"samples"` // simulator runs averaged per strategy per round
	Weights ValueWeights `yaml:"weights"`
}

// Config is the full service configuration, loadable from a YAML file.
type Config struct {
	Physics    PhysicsConfig    `yaml:"physics"`
	Severities SeveritiesConfig `yaml:"severities"`
	Rooms      []RoomConfig     `yaml:"rooms"`
	Learner    LearnerConfig    `yaml:"learner"`
}

// Severity returns the parameters for one tier.
func (c *Config) Severity(s Severity) SeverityConfig {
	switch s {
	case SeverityCritical:
		return c.Severities.Critical
	case SeverityModerate:
		return c.Severities.Moderate
	default:
		return c.Severities.Minor
	}
}

// DefaultConfig returns the built-in game parameters. These match the
// shipped unit layout; a YAML file replaces them wholesale.
func DefaultConfig() *Config {
	return &Config{
		Physics: PhysicsConfig{
			NurseSpeed:           4.0,
			DoctorSpeed:          2.5,
			NursePower:           40,
			DoctorPower:          60,
			CooperativeBonus:     1.2,
			DeathPenalty:         50,
			DefaultEffectiveness: 0.2,
			DefaultTreatmentTime: 10,
			Horizon:              100,
		},
		Severities: SeveritiesConfig{
			Minor: SeverityConfig{
				InitialHealth:    70,
				PenaltyRate:      1,
				CompletionReward: 30,
				Deadline:         30,
				Pathway:          []string{RoomTriage, RoomTreatmentBay},
			},
			Moderate: SeverityConfig{
				InitialHealth:    50,
				PenaltyRate:      2,
				CompletionReward: 60,
				Deadline:         45,
				Pathway:          []string{RoomTriage, RoomTreatmentBay, RoomLab, RoomTreatmentBay},
			},
			Critical: SeverityConfig{
				InitialHealth:    30,
				PenaltyRate:      3,
				CompletionReward: 100,
				Deadline:         25,
				Pathway:          []string{RoomTriage, RoomTreatmentBay, RoomICU},
			},
		},
		Rooms: []RoomConfig{
			{Name: RoomEntrance, X: 0, Y: 0, Effectiveness: 0.2, TreatmentTime: 10},
			{Name: RoomTriage, X: 2, Y: 0, Effectiveness: 0.1, TreatmentTime: 5},
			{Name: RoomTreatmentBay, X: 5, Y: 3, Effectiveness: 0.30, TreatmentTime: 15},
			{Name: RoomLab, X: 8, Y: -2, Effectiveness: 0.15, TreatmentTime: 20},
			{Name: RoomICU, X: 10, Y: 5, Effectiveness: 0.50, TreatmentTime: 45},
		},
		Learner: LearnerConfig{
			Rounds:  20,
			Samples: 5,
			Weights: ValueWeights{
				Healing:     1.0,
				Completion:  50,
				Cooperation: 10,
				Penalty:     1.0,
				Idle:        2.0,
			},
		},
	}
}

// LoadConfig reads and parses a YAML configuration file with strict field
// checking, so typos in keys fail loudly instead of silently using defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Physics.NurseSpeed <= 0 || c.Physics.DoctorSpeed <= 0 {
		return fmt.Errorf("agent speeds must be positive")
	}
	if c.Physics.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive")
	}
	if c.Physics.DefaultTreatmentTime <= 0 {
		return fmt.Errorf("default treatment time must be positive")
	}
	if c.Learner.Rounds <= 0 || c.Learner.Samples <= 0 {
		return fmt.Errorf("learner rounds and samples must be positive")
	}
	for _, sev := range []Severity{SeverityMinor, SeverityModerate, SeverityCritical} {
		if len(c.Severity(sev).Pathway) == 0 {
			return fmt.Errorf("severity %s has an empty pathway", sev)
		}
	}
	return nil
}
