package gates

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/gkpsim/internal/modules/operators"
	"github.com/aristath/gkpsim/pkg/cmatrix"
)

func newTestAlgebra(t *testing.T, n int) *Algebra {
	t.Helper()
	lib := operators.NewLibrary(n, 1.0, 245e-6)
	alg, err := NewAlgebra(lib)
	require.NoError(t, err)
	return alg
}

func TestTranslateZeroIsIdentity(t *testing.T) {
	alg := newTestAlgebra(t, 20)
	assert.True(t, cmatrix.EqualApprox(alg.Translate(0), cmatrix.Eye(20), 1e-10))
}

func TestTranslateIsUnitary(t *testing.T) {
	alg := newTestAlgebra(t, 30)
	for _, amp := range []complex128{0.5, 1i, 1.2 - 0.7i, 3 + 2i} {
		d := alg.Translate(amp)
		prod := cmatrix.Mul(cmatrix.Adjoint(d), d)
		assert.True(t, cmatrix.EqualApprox(prod, cmatrix.Eye(30), 1e-10),
			"T†T should be identity for amplitude %v", amp)
	}
}

func TestTranslateMatchesGenerator(t *testing.T) {
	// For a small amplitude, T(β) ≈ I + (β·a† − β̄·a)/√2 to second order.
	n := 25
	lib := operators.NewLibrary(n, 1.0, 245e-6)
	alg, err := NewAlgebra(lib)
	require.NoError(t, err)

	beta := complex(1e-3, 5e-4)
	d := alg.Translate(beta)

	gen := cmatrix.Zeros(n)
	cmatrix.AddScaled(gen, beta/complex(math.Sqrt2, 0), lib.ADag)
	cmatrix.AddScaled(gen, -cmplx.Conj(beta)/complex(math.Sqrt2, 0), lib.A)
	want := cmatrix.Eye(n)
	cmatrix.AddScaled(want, 1, gen)

	// Compare on a low-lying state; second-order terms are ~1e-6.
	psi := make([]complex128, n)
	psi[0] = complex(1/math.Sqrt2, 0)
	psi[1] = complex(1/math.Sqrt2, 0)
	got := cmatrix.MulVec(d, psi)
	approx := cmatrix.MulVec(want, psi)
	for i := range got {
		assert.InDelta(t, real(approx[i]), real(got[i]), 1e-5)
		assert.InDelta(t, imag(approx[i]), imag(got[i]), 1e-5)
	}
}

func TestDisplacementCompositionLaw(t *testing.T) {
	// T(a)·T(b) = T(a+b)·exp(i·Im(a·conj(b))/2) with this 1/√2 scaling.
	alg := newTestAlgebra(t, 40)
	pairs := []struct{ a, b complex128 }{
		{0.7, 0.3i},
		{0.5 + 0.5i, -0.4 + 0.2i},
		{1i, 1},
		{-0.6 + 0.1i, 0.8 - 0.9i},
	}
	psi := make([]complex128, 40)
	psi[0] = complex(math.Sqrt(0.8), 0)
	psi[1] = complex(0, math.Sqrt(0.2))

	for _, pair := range pairs {
		left := cmatrix.MulVec(alg.Translate(pair.a), cmatrix.MulVec(alg.Translate(pair.b), psi))
		phase := cmplx.Rect(1, imag(pair.a*cmplx.Conj(pair.b))/2)
		right := cmatrix.MulVec(alg.Translate(pair.a+pair.b), psi)
		for i := range right {
			right[i] *= phase
		}
		for i := range left {
			assert.InDelta(t, real(right[i]), real(left[i]), 1e-6,
				"a=%v b=%v component %d", pair.a, pair.b, i)
			assert.InDelta(t, imag(right[i]), imag(left[i]), 1e-6,
				"a=%v b=%v component %d", pair.a, pair.b, i)
		}
	}
}

func TestTranslateVacuumPhotonNumber(t *testing.T) {
	// Translating vacuum by β produces a coherent state with mean photon
	// number |β|²/2.
	n := 40
	lib := operators.NewLibrary(n, 1.0, 245e-6)
	alg, err := NewAlgebra(lib)
	require.NoError(t, err)

	vac := make([]complex128, n)
	vac[0] = 1
	beta := complex(1.3, -0.4)
	psi := cmatrix.MulVec(alg.Translate(beta), vac)

	mean := real(cmatrix.VDot(psi, cmatrix.MulVec(lib.Num, psi)))
	want := (real(beta)*real(beta) + imag(beta)*imag(beta)) / 2
	assert.InDelta(t, want, mean, 1e-6)
}

func TestPhase(t *testing.T) {
	assert.InDelta(t, 1.0, real(Phase(0)), 1e-15)
	assert.InDelta(t, -1.0, real(Phase(math.Pi)), 1e-12)
	assert.InDelta(t, 1.0, imag(Phase(math.Pi/2)), 1e-12)
	assert.InDelta(t, 1.0, cmplx.Abs(Phase(0.73)), 1e-15)
}
