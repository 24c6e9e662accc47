package operators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/gkpsim/pkg/cmatrix"
)

func TestLibraryOperatorAlgebra(t *testing.T) {
	lib := NewLibrary(10, 1.0, 245e-6)

	// a† is the adjoint of a.
	assert.True(t, cmatrix.EqualApprox(lib.ADag, cmatrix.Adjoint(lib.A), 1e-14))

	// q and p are Hermitian.
	assert.True(t, cmatrix.EqualApprox(lib.Q, cmatrix.Adjoint(lib.Q), 1e-14))
	assert.True(t, cmatrix.EqualApprox(lib.P, cmatrix.Adjoint(lib.P), 1e-14))

	// n = a†a.
	assert.True(t, cmatrix.EqualApprox(lib.Num, cmatrix.Mul(lib.ADag, lib.A), 1e-12))

	// [a, a†] = I away from the truncation corner.
	comm := cmatrix.Mul(lib.A, lib.ADag)
	cmatrix.AddScaled(comm, -1, cmatrix.Mul(lib.ADag, lib.A))
	for i := 0; i < 9; i++ {
		assert.InDelta(t, 1.0, real(comm.At(i, i)), 1e-12)
	}
}

func TestLibraryHamiltonianAndCollapse(t *testing.T) {
	kerr := 2.5
	t1 := 100e-6
	lib := NewLibrary(6, kerr, t1)

	for m := 0; m < 6; m++ {
		want := -0.5 * 2 * math.Pi * kerr * float64(m*m)
		assert.InDelta(t, want, real(lib.Hamiltonian.At(m, m)), 1e-9)
	}

	require.Len(t, lib.CollapseOps, 1)
	scaled := cmatrix.Scale(complex(math.Sqrt(1/t1), 0), lib.A)
	assert.True(t, cmatrix.EqualApprox(lib.CollapseOps[0], scaled, 1e-9))
}

func TestBuildKrausMapStructure(t *testing.T) {
	lib := NewLibrary(8, 1.0, 245e-6)
	dt := 100e-9
	kraus := BuildKrausMap(lib.Hamiltonian, lib.CollapseOps, dt)
	require.Len(t, kraus, 2)

	// K0 = I − iH·dt − ½c†c·dt, element by element.
	c := lib.CollapseOps[0]
	want := cmatrix.Eye(8)
	cmatrix.AddScaled(want, complex(0, -dt), lib.Hamiltonian)
	cmatrix.AddScaled(want, complex(-0.5*dt, 0), cmatrix.Mul(cmatrix.Adjoint(c), c))
	assert.True(t, cmatrix.EqualApprox(kraus[0], want, 1e-15))

	// K1 = √dt·c.
	assert.True(t, cmatrix.EqualApprox(kraus[1], cmatrix.Scale(complex(math.Sqrt(dt), 0), c), 1e-15))
}

func TestKrausCompletenessFirstOrder(t *testing.T) {
	lib := NewLibrary(10, 1.0, 245e-6)
	dt := 100e-9
	kraus := BuildKrausMap(lib.Hamiltonian, lib.CollapseOps, dt)

	sum := cmatrix.Zeros(10)
	for _, k := range kraus {
		cmatrix.AddScaled(sum, 1, cmatrix.Mul(cmatrix.Adjoint(k), k))
	}
	// First-order Euler map: completeness holds up to O(dt²) terms.
	assert.True(t, cmatrix.EqualApprox(sum, cmatrix.Eye(10), 1e-4))
}
