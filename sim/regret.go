package sim

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// IterationRecord is one entry of the learner's diagnostic history.
type IterationRecord struct {
	Iteration int
	Values    map[Strategy]float64
	Selected  Strategy
	Policy    map[Strategy]float64
	Reward    float64
}

// LearningStats is the snapshot exposed to the transport layer and reports.
type LearningStats struct {
	TotalIterations   int                `json:"total_iterations"`
	CumulativeRegret  float64            `json:"cumulative_regret"`
	AveragePolicy     map[string]float64 `json:"average_strategy"`
	RegretByStrategy  map[string]float64 `json:"regret_by_strategy"`
	StrategyFrequency map[string]float64 `json:"strategy_frequency"`
	NashDistance      float64            `json:"nash_distance"`
}

// RegretMinimizer learns a mixed strategy over the fixed catalog by regret
// matching. Its state is process-wide: it survives across planning calls
// and across distinct patient scenarios, and is cleared only by an explicit
// Reset. The correctness-critical distinction is between the instantaneous
// policy (CurrentPolicy, used for per-round sampling) and the time-averaged
// policy (AveragePolicy, what the system ultimately trusts): only the
// average carries the convergence guarantee.
type RegretMinimizer struct {
	regret         map[Strategy]float64
	probabilitySum map[Strategy]float64

	iterations       int
	cumulativeRegret float64
	regretHistory    []float64
	distanceHistory  []float64
	history          []IterationRecord
	prevPolicy       map[Strategy]float64

	rng *rand.Rand
}

// NewRegretMinimizer creates a learner drawing strategy samples from the
// given source. The source must be the dedicated selection stream so that
// sampling stays reproducible under a fixed seed.
func NewRegretMinimizer(rng *rand.Rand) *RegretMinimizer {
	return &RegretMinimizer{
		regret:         make(map[Strategy]float64, len(Catalog)),
		probabilitySum: make(map[Strategy]float64, len(Catalog)),
		rng:            rng,
	}
}

// CurrentPolicy returns the instantaneous mixed strategy: positive regrets
// normalized over the catalog, or the uniform distribution when no regret
// is positive.
func (m *RegretMinimizer) CurrentPolicy() map[Strategy]float64 {
	positive := make([]float64, len(Catalog))
	for i, s := range Catalog {
		positive[i] = math.Max(0, m.regret[s])
	}
	total := floats.Sum(positive)

	policy := make(map[Strategy]float64, len(Catalog))
	if total > 0 {
		for i, s := range Catalog {
			policy[s] = positive[i] / total
		}
	} else {
		uniform := 1.0 / float64(len(Catalog))
		for _, s := range Catalog {
			policy[s] = uniform
		}
	}
	return policy
}

// Sample draws one strategy according to the given distribution.
func (m *RegretMinimizer) Sample(policy map[Strategy]float64) Strategy {
	r := m.rng.Float64()
	acc := 0.0
	for _, s := range Catalog {
		acc += policy[s]
		if r < acc {
			return s
		}
	}
	// Floating error can leave r marginally above the accumulated mass.
	return Catalog[len(Catalog)-1]
}

// Update folds one round of per-strategy utility estimates into the regret
// accumulators. The node value is the expectation of the values under the
// pre-update policy; each strategy's regret grows by its advantage over
// that expectation (one-shot counterfactual regret with reach probability
// 1). An empty value map is a no-op.
func (m *RegretMinimizer) Update(values map[Strategy]float64) {
	if len(values) == 0 {
		return
	}

	policy := m.CurrentPolicy()
	nodeValue := 0.0
	best := math.Inf(-1)
	for _, s := range Catalog {
		v := values[s]
		nodeValue += policy[s] * v
		if v > best {
			best = v
		}
	}

	for _, s := range Catalog {
		m.regret[s] += values[s] - nodeValue
	}

	m.cumulativeRegret += best - nodeValue
	m.regretHistory = append(m.regretHistory, m.cumulativeRegret)
	m.distanceHistory = append(m.distanceHistory, m.equilibriumDistance())
	m.iterations++
}

// equilibriumDistance estimates how far the post-update policy is from
// settling: the spread of its probability vector plus half the L2 drift
// from the previous iteration's policy. Both terms shrink as regret
// matching converges.
func (m *RegretMinimizer) equilibriumDistance() float64 {
	policy := m.CurrentPolicy()
	probs := make([]float64, len(Catalog))
	for i, s := range Catalog {
		probs[i] = policy[s]
	}

	distance := stat.PopStdDev(probs, nil)

	if m.prevPolicy != nil {
		prev := make([]float64, len(Catalog))
		for i, s := range Catalog {
			prev[i] = m.prevPolicy[s]
		}
		distance += 0.5 * floats.Distance(probs, prev, 2)
	}
	m.prevPolicy = policy
	return distance
}

// RecordIteration appends a diagnostic history entry and accumulates the
// round's policy into the probability-sum behind the time-averaged policy.
func (m *RegretMinimizer) RecordIteration(values map[Strategy]float64, selected Strategy, policy map[Strategy]float64, reward float64) {
	valuesCopy := make(map[Strategy]float64, len(values))
	for s, v := range values {
		valuesCopy[s] = v
	}
	policyCopy := make(map[Strategy]float64, len(policy))
	for s, p := range policy {
		policyCopy[s] = p
	}

	m.history = append(m.history, IterationRecord{
		Iteration: m.iterations,
		Values:    valuesCopy,
		Selected:  selected,
		Policy:    policyCopy,
		Reward:    reward,
	})
	for s, p := range policy {
		m.probabilitySum[s] += p
	}
}

// AveragePolicy returns the normalized probability-sum: the time-averaged
// mixed strategy over all iterations. Empty before the first recorded
// iteration.
func (m *RegretMinimizer) AveragePolicy() map[Strategy]float64 {
	total := 0.0
	for _, p := range m.probabilitySum {
		total += p
	}
	avg := make(map[Strategy]float64, len(m.probabilitySum))
	if total <= 0 {
		return avg
	}
	for s, p := range m.probabilitySum {
		avg[s] = p / total
	}
	return avg
}

// Iterations returns the lifetime iteration counter. The exploration-noise
// schedule decays against this counter, deliberately coupling exploration
// to the service's whole lifetime rather than to a single planning call.
func (m *RegretMinimizer) Iterations() int {
	return m.iterations
}

// History returns the per-iteration diagnostic records.
func (m *RegretMinimizer) History() []IterationRecord {
	return m.history
}

// RegretHistory returns the cumulative-regret series, one entry per
// iteration.
func (m *RegretMinimizer) RegretHistory() []float64 {
	return m.regretHistory
}

// DistanceHistory returns the equilibrium-distance series.
func (m *RegretMinimizer) DistanceHistory() []float64 {
	return m.distanceHistory
}

// Stats snapshots the learner for the transport layer and reports.
func (m *RegretMinimizer) Stats() LearningStats {
	stats := LearningStats{
		TotalIterations:   m.iterations,
		CumulativeRegret:  m.cumulativeRegret,
		AveragePolicy:     make(map[string]float64),
		RegretByStrategy:  make(map[string]float64),
		StrategyFrequency: make(map[string]float64),
		NashDistance:      1.0,
	}
	for s, p := range m.AveragePolicy() {
		stats.AveragePolicy[s.String()] = p
	}
	for _, s := range Catalog {
		if r, ok := m.regret[s]; ok {
			stats.RegretByStrategy[s.String()] = r
		}
		if f, ok := m.probabilitySum[s]; ok {
			stats.StrategyFrequency[s.String()] = f
		}
	}
	if len(m.distanceHistory) > 0 {
		stats.NashDistance = m.distanceHistory[len(m.distanceHistory)-1]
	}
	return stats
}

// Reset clears all learned state. Separate from scenario resets: clearing
// the roster must not forget what the learner knows.
func (m *RegretMinimizer) Reset() {
	m.regret = make(map[Strategy]float64, len(Catalog))
	m.probabilitySum = make(map[Strategy]float64, len(Catalog))
	m.iterations = 0
	m.cumulativeRegret = 0
	m.regretHistory = nil
	m.distanceHistory = nil
	m.history = nil
	m.prevPolicy = nil
}
