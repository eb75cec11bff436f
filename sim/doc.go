// Package sim provides the regret-based scheduling core for the emergency
// unit service.
//
// # Reading Guide
//
// Start with these three files to understand the engine:
//   - patient.go: Patient lifecycle, severity tiers, and pathway invariants
//   - simulator.go: The forward game simulator (tick loop, busy-until gating)
//   - regret.go: Regret matching and the time-averaged policy
//
// # Architecture
//
// A planning call flows through the components in order:
//
//	Service.Plan -> GenerateSequences (per strategy) -> Simulator.Run (sampled)
//	            -> RegretMinimizer (sample / update / record)
//	            -> PlanCompiler.Compile -> PlanResult
//
// The Service owns the only live GameState and the process-wide learner.
// Simulations always operate on deep clones; the simulator never touches
// the caller's state. The strategy catalog is a closed enum of six entries,
// each carrying its generation rule — it is configuration data, not a
// runtime-extensible registry.
//
// Determinism: all randomness (strategy sampling, exploration noise) comes
// from a PartitionedRNG seeded at service construction, so a given seed and
// call sequence reproduces the same plans.
package sim
