package wigner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/gkpsim/internal/modules/gates"
	"github.com/aristath/gkpsim/internal/modules/operators"
)

func testAlgebra(t *testing.T, n int) *gates.Algebra {
	t.Helper()
	alg, err := gates.NewAlgebra(operators.NewLibrary(n, 1.0, 245e-6))
	require.NoError(t, err)
	return alg
}

func vacuum(n int) []complex128 {
	psi := make([]complex128, n)
	psi[0] = 1
	return psi
}

func TestGridRejectsBadArguments(t *testing.T) {
	alg := testAlgebra(t, 10)
	psi := vacuum(10)

	_, err := Grid(alg, psi, 2.0, 1)
	assert.Error(t, err)
	_, err = Grid(alg, psi, 0, 5)
	assert.Error(t, err)
	_, err = Grid(alg, psi, -1.5, 5)
	assert.Error(t, err)
}

func TestGridDimensions(t *testing.T) {
	alg := testAlgebra(t, 12)
	out, err := Grid(alg, vacuum(12), 1.5, 7)
	require.NoError(t, err)

	r, c := out.Dims()
	assert.Equal(t, 7, r)
	assert.Equal(t, 7, c)
}

func TestVacuumWignerIsGaussian(t *testing.T) {
	alg := testAlgebra(t, 30)
	const extent = 1.0
	const points = 5

	out, err := Grid(alg, vacuum(30), extent, points)
	require.NoError(t, err)

	// W(q,p) = e^{-(q²+p²)}/π for the vacuum.
	step := 2 * extent / float64(points-1)
	for i := 0; i < points; i++ {
		p := -extent + float64(i)*step
		for j := 0; j < points; j++ {
			q := -extent + float64(j)*step
			want := math.Exp(-(q*q + p*p)) / math.Pi
			assert.InDelta(t, want, out.At(i, j), 1e-6, "grid point (%d,%d)", i, j)
		}
	}
}

func TestFockOneWignerIsNegativeAtOrigin(t *testing.T) {
	alg := testAlgebra(t, 30)
	psi := make([]complex128, 30)
	psi[1] = 1

	out, err := Grid(alg, psi, 0.5, 3)
	require.NoError(t, err)

	// The single-photon state has W(0,0) = -1/π.
	assert.InDelta(t, -1/math.Pi, out.At(1, 1), 1e-9)
}
