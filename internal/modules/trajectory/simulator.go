// Package trajectory implements Monte-Carlo wavefunction unraveling: the
// stochastic quantum-jump propagation of a batch of state vectors under a
// fixed Kraus map. Averaged over the trajectory batch this reproduces the
// Lindblad master equation the map discretizes, at per-trajectory cost
// far below density-matrix propagation.
package trajectory

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/gkpsim/pkg/cmatrix"
)

// Simulator applies a Kraus operator set for a fixed number of discrete
// time steps. It holds no mutable state: Run is a pure function of its
// inputs and the supplied random source.
type Simulator struct {
	kraus []*mat.CDense
	steps int
}

// NewSimulator builds a simulator for the given Kraus set and step count.
// The operators are shared across the batch (broadcast, not
// batch-varying) and must not be mutated afterwards.
func NewSimulator(kraus []*mat.CDense, steps int) *Simulator {
	return &Simulator{kraus: kraus, steps: steps}
}

// Steps returns the configured number of map applications.
func (s *Simulator) Steps() int { return s.steps }

// Run propagates each trajectory in psi through the configured number of
// steps. At every step, for every trajectory, each Kraus branch candidate
// K_k·ψ is computed; one branch is sampled with probability proportional
// to its squared norm and the trajectory continues from the renormalized
// candidate. Branch choices are independent across trajectories and
// across steps.
//
// The input batch is not mutated. Run fails if the total branch weight of
// some trajectory vanishes, which signals a degenerate state and a
// violated precondition rather than a recoverable condition.
func (s *Simulator) Run(psi [][]complex128, rng *rand.Rand) ([][]complex128, error) {
	out := cmatrix.CloneBatch(psi)
	if s.steps == 0 {
		return out, nil
	}

	nb := len(s.kraus)
	candidates := make([][]complex128, nb)
	weights := make([]float64, nb)

	for step := 0; step < s.steps; step++ {
		for t := range out {
			total := 0.0
			for k, op := range s.kraus {
				candidates[k] = cmatrix.MulVec(op, out[t])
				weights[k] = cmatrix.NormSq(candidates[k])
				total += weights[k]
			}
			if total < 1e-30 {
				return nil, fmt.Errorf("trajectory: branch probabilities vanished for trajectory %d at step %d", t, step)
			}
			branch := int(distuv.NewCategorical(weights, rng).Rand())
			out[t] = candidates[branch]
			if err := cmatrix.Normalize(out[t]); err != nil {
				return nil, fmt.Errorf("trajectory: %w", err)
			}
		}
	}
	return out, nil
}
