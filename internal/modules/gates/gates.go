// Package gates builds the parametrized phase-space operators assembled
// into measurement Kraus sets: oscillator translation operators and
// scalar phase factors.
//
// Translations are computed from a single eigendecomposition of the
// position quadrature done at construction, not from a truncated power
// series. Writing the amplitude as β = x + iy, the generator splits as
//
//	exp((β·a† − β̄·a)/√2) = e^{−i·x·y/2} · exp(i·y·q) · exp(−i·x·p)
//
// and both factors are functions of q in its eigenbasis (p = R·q·R† for
// the Fock-diagonal quarter rotation R = diag(i^m)). The result is a
// product of exact unitaries, so norm and the Kraus completeness relation
// hold to eigensolver precision at any amplitude.
package gates

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/gkpsim/internal/modules/operators"
)

// Algebra holds the cached eigenbasis of the position quadrature. It is
// stateless after construction and safe for concurrent readers.
type Algebra struct {
	n    int
	vecs *mat.Dense   // orthonormal eigenvectors of q, column k ↔ vals[k]
	vals []float64    // eigenvalues of q
	rot  []complex128 // i^m quarter rotation mapping q to p
}

// NewAlgebra eigendecomposes the library's position quadrature once.
func NewAlgebra(lib *operators.Library) (*Algebra, error) {
	n := lib.N
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, real(lib.Q.At(i, j)))
		}
	}

	var es mat.EigenSym
	if !es.Factorize(sym, true) {
		return nil, fmt.Errorf("gates: eigendecomposition of position quadrature failed")
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	// Exact powers of i, so the quarter rotation stays unitary.
	rot := make([]complex128, n)
	for m := 0; m < n; m++ {
		switch m % 4 {
		case 0:
			rot[m] = 1
		case 1:
			rot[m] = 1i
		case 2:
			rot[m] = -1
		case 3:
			rot[m] = -1i
		}
	}

	return &Algebra{
		n:    n,
		vecs: &vecs,
		vals: es.Values(nil),
		rot:  rot,
	}, nil
}

// expQ returns the operator function f(q) = U·diag(f(λ))·Uᵀ for a scalar
// function of the quadrature eigenvalues.
func (g *Algebra) expQ(f func(lam float64) complex128) *mat.CDense {
	n := g.n
	// scaled[k][j] = f(λk)·U[j][k]
	scaled := make([]complex128, n*n)
	for k := 0; k < n; k++ {
		fk := f(g.vals[k])
		for j := 0; j < n; j++ {
			scaled[k*n+j] = fk * complex(g.vecs.At(j, k), 0)
		}
	}
	out := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var acc complex128
			for k := 0; k < n; k++ {
				acc += complex(g.vecs.At(i, k), 0) * scaled[k*n+j]
			}
			out.Set(i, j, acc)
		}
	}
	return out
}

// Translate returns the phase-space translation operator
// exp((amp·a† − conj(amp)·a)/√2). Translate(0) is the identity.
func (g *Algebra) Translate(amp complex128) *mat.CDense {
	x, y := real(amp), imag(amp)

	eQ := g.expQ(func(lam float64) complex128 {
		return cmplx.Rect(1, y*lam)
	})
	pQ := g.expQ(func(lam float64) complex128 {
		return cmplx.Rect(1, -x*lam)
	})

	// exp(−i·x·p) = R·exp(−i·x·q)·R†, folded into the final product.
	n := g.n
	phase := cmplx.Rect(1, -x*y/2)
	out := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var acc complex128
			for k := 0; k < n; k++ {
				acc += eQ.At(i, k) * g.rot[k] * pQ.At(k, j)
			}
			out.Set(i, j, phase*acc*cmplx.Conj(g.rot[j]))
		}
	}
	return out
}

// TranslateBatch returns one translation operator per amplitude.
func (g *Algebra) TranslateBatch(amps []complex128) []*mat.CDense {
	out := make([]*mat.CDense, len(amps))
	for i, a := range amps {
		out[i] = g.Translate(a)
	}
	return out
}

// Phase returns the scalar phase factor e^{i·phi}, broadcast over the
// operator dimension by multiplication.
func Phase(phi float64) complex128 {
	return cmplx.Rect(1, phi)
}
