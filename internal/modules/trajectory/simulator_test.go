package trajectory

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/gkpsim/internal/modules/operators"
	"github.com/aristath/gkpsim/pkg/cmatrix"
)

func lossKraus(n int) []*mat.CDense {
	lib := operators.NewLibrary(n, 1.0, 245e-6)
	return operators.BuildKrausMap(lib.Hamiltonian, lib.CollapseOps, 100e-9)
}

func excitedBatch(batch, n, level int) [][]complex128 {
	psi := make([][]complex128, batch)
	for t := range psi {
		psi[t] = make([]complex128, n)
		psi[t][level] = 1
	}
	return psi
}

func TestRunPreservesNorm(t *testing.T) {
	sim := NewSimulator(lossKraus(12), 50)
	rng := rand.New(rand.NewPCG(3, 3))

	out, err := sim.Run(excitedBatch(4, 12, 5), rng)
	require.NoError(t, err)
	require.Len(t, out, 4)
	for trajectoryIdx, psi := range out {
		assert.InDelta(t, 1.0, cmatrix.Norm(psi), 1e-9, "trajectory %d", trajectoryIdx)
	}
}

func TestRunLeavesVacuumInvariant(t *testing.T) {
	// Vacuum is a fixed point of photon loss and the Kerr Hamiltonian.
	sim := NewSimulator(lossKraus(8), 200)
	rng := rand.New(rand.NewPCG(11, 11))

	out, err := sim.Run(excitedBatch(3, 8, 0), rng)
	require.NoError(t, err)
	for _, psi := range out {
		assert.InDelta(t, 1.0, real(psi[0]), 1e-9)
		for i := 1; i < len(psi); i++ {
			assert.InDelta(t, 0.0, real(psi[i]), 1e-9)
			assert.InDelta(t, 0.0, imag(psi[i]), 1e-9)
		}
	}
}

func TestRunDoesNotMutateInput(t *testing.T) {
	sim := NewSimulator(lossKraus(8), 10)
	rng := rand.New(rand.NewPCG(5, 5))

	in := excitedBatch(2, 8, 3)
	_, err := sim.Run(in, rng)
	require.NoError(t, err)
	assert.Equal(t, complex128(1), in[0][3])
	assert.Equal(t, complex128(1), in[1][3])
}

func TestRunIsDeterministicForSeed(t *testing.T) {
	sim := NewSimulator(lossKraus(10), 100)

	a, err := sim.Run(excitedBatch(3, 10, 6), rand.New(rand.NewPCG(42, 7)))
	require.NoError(t, err)
	b, err := sim.Run(excitedBatch(3, 10, 6), rand.New(rand.NewPCG(42, 7)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestZeroStepsReturnsCopy(t *testing.T) {
	sim := NewSimulator(lossKraus(6), 0)
	in := excitedBatch(1, 6, 2)
	out, err := sim.Run(in, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)
	assert.Equal(t, in, out)
	out[0][2] = 0
	assert.Equal(t, complex128(1), in[0][2])
}

func TestRunDegenerateStateFails(t *testing.T) {
	// A Kraus set that annihilates the state violates the simulator's
	// precondition and must surface an error.
	zero := []*mat.CDense{cmatrix.Zeros(4)}
	sim := NewSimulator(zero, 1)
	_, err := sim.Run(excitedBatch(1, 4, 0), rand.New(rand.NewPCG(1, 1)))
	assert.Error(t, err)
}
