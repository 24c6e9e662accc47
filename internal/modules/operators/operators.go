// Package operators builds the fixed oscillator operator matrices and the
// discretized Kraus maps used by the trajectory simulator. Everything here
// is pure construction from configuration constants: no randomness, no
// failure modes beyond validated configuration.
package operators

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/gkpsim/pkg/cmatrix"
)

// Library holds the batch-independent operator matrices for a truncated
// oscillator mode. All matrices are N×N dense complex and immutable after
// construction.
type Library struct {
	N int

	I    *mat.CDense // identity
	A    *mat.CDense // annihilation
	ADag *mat.CDense // creation
	Q    *mat.CDense // position quadrature (a† + a)/√2
	P    *mat.CDense // momentum quadrature i(a† − a)/√2
	Num  *mat.CDense // photon number

	Hamiltonian *mat.CDense   // Kerr Hamiltonian −½·2π·K·n²
	CollapseOps []*mat.CDense // photon loss √(1/T1)·a
}

// NewLibrary constructs the operator set for Fock truncation n, Kerr rate
// kerr (Hz) and photon loss time t1 (seconds).
func NewLibrary(n int, kerr, t1 float64) *Library {
	lib := &Library{
		N:    n,
		I:    cmatrix.Eye(n),
		A:    mat.NewCDense(n, n, nil),
		ADag: mat.NewCDense(n, n, nil),
		Q:    mat.NewCDense(n, n, nil),
		P:    mat.NewCDense(n, n, nil),
		Num:  mat.NewCDense(n, n, nil),
	}

	for m := 0; m < n-1; m++ {
		s := math.Sqrt(float64(m + 1))
		lib.A.Set(m, m+1, complex(s, 0))
		lib.ADag.Set(m+1, m, complex(s, 0))
		// q = (a† + a)/√2, p = i(a† − a)/√2
		lib.Q.Set(m, m+1, complex(s/math.Sqrt2, 0))
		lib.Q.Set(m+1, m, complex(s/math.Sqrt2, 0))
		lib.P.Set(m, m+1, complex(0, -s/math.Sqrt2))
		lib.P.Set(m+1, m, complex(0, s/math.Sqrt2))
	}
	for m := 0; m < n; m++ {
		lib.Num.Set(m, m, complex(float64(m), 0))
	}

	// Kerr Hamiltonian: −½·2π·K·n²
	lib.Hamiltonian = mat.NewCDense(n, n, nil)
	for m := 0; m < n; m++ {
		nn := float64(m) * float64(m)
		lib.Hamiltonian.Set(m, m, complex(-0.5*2*math.Pi*kerr*nn, 0))
	}

	lib.CollapseOps = []*mat.CDense{
		cmatrix.Scale(complex(math.Sqrt(1/t1), 0), lib.A),
	}
	return lib
}

// BuildKrausMap discretizes one time slice dt of the Lindblad master
// equation into Kraus form:
//
//	K0     = I − i·H·dt − ½·Σ c†c·dt
//	K_{k+1} = √dt · c_k
//
// This is a first-order Euler discretization and is only approximately
// trace preserving. It is valid for dt small against every rate in H and
// c_ops; the configuration layer enforces a coarse bound and the
// trajectory loop's renormalization absorbs the residual. No higher-order
// correction is applied here on purpose: the simulated physics is defined
// by this discretization.
func BuildKrausMap(hamiltonian *mat.CDense, cOps []*mat.CDense, dt float64) []*mat.CDense {
	n, _ := hamiltonian.Dims()

	k0 := cmatrix.Eye(n)
	cmatrix.AddScaled(k0, complex(0, -dt), hamiltonian)

	kraus := make([]*mat.CDense, 0, len(cOps)+1)
	kraus = append(kraus, k0)
	for _, c := range cOps {
		cdc := cmatrix.Mul(cmatrix.Adjoint(c), c)
		cmatrix.AddScaled(k0, complex(-0.5*dt, 0), cdc)
		kraus = append(kraus, cmatrix.Scale(complex(math.Sqrt(dt), 0), c))
	}
	return kraus
}
