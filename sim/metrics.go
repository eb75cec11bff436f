package sim

// RunMetrics aggregates what happened during one simulated rollout.
// Penalties are recorded as positive magnitudes.
type RunMetrics struct {
	TotalHealing      float64 // healing applied, including completion rewards
	TotalPenalty      float64 // waiting drain plus death penalties
	PatientsCompleted int
	CooperationEvents int
	IdleTime          float64 // ticks agents spent on explicit waits
}

// Value collapses the metrics into the scalar utility the learner consumes.
func (m RunMetrics) Value(w ValueWeights) float64 {
	return m.TotalHealing*w.Healing +
		float64(m.PatientsCompleted)*w.Completion +
		float64(m.CooperationEvents)*w.Cooperation -
		m.TotalPenalty*w.Penalty -
		m.IdleTime*w.Idle
}
