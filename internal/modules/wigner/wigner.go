// Package wigner computes Wigner quasi-probability grids from state
// vectors via the displaced-parity expectation
//
//	W(q,p) = (1/π)·⟨ψ|T(β)·Π·T(β)†|ψ⟩,  β = q + ip,  Π = (−1)^n
//
// in the same phase-space units as the gate algebra (T translates the
// point (q,p) by (Re β, Im β)). It is a pure read used for rendering;
// plotting itself lives outside this module.
package wigner

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/gkpsim/internal/modules/gates"
	"github.com/aristath/gkpsim/pkg/cmatrix"
)

// Grid evaluates the Wigner function of psi on a points×points grid over
// [-extent, extent]². Row i is momentum, column j is position, both
// ascending.
func Grid(g *gates.Algebra, psi []complex128, extent float64, points int) (*mat.Dense, error) {
	if points < 2 {
		return nil, fmt.Errorf("wigner: need at least a 2x2 grid, got %d", points)
	}
	if extent <= 0 {
		return nil, fmt.Errorf("wigner: extent must be positive, got %g", extent)
	}

	out := mat.NewDense(points, points, nil)
	step := 2 * extent / float64(points-1)
	for i := 0; i < points; i++ {
		p := -extent + float64(i)*step
		for j := 0; j < points; j++ {
			q := -extent + float64(j)*step
			displaced := cmatrix.MulVec(g.Translate(complex(-q, -p)), psi)
			out.Set(i, j, parityExpectation(displaced)/math.Pi)
		}
	}
	return out, nil
}

// parityExpectation returns Σ (−1)^n·|v_n|².
func parityExpectation(v []complex128) float64 {
	var acc float64
	sign := 1.0
	for _, x := range v {
		acc += sign * (real(x)*real(x) + imag(x)*imag(x))
		sign = -sign
	}
	return acc
}
