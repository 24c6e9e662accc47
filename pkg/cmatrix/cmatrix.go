// Package cmatrix provides small dense complex linear-algebra helpers on
// top of gonum's CDense type: the batched matrix-vector products, inner
// products and norm operations used by the quantum simulation modules.
package cmatrix

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Eye returns the n×n identity matrix.
func Eye(n int) *mat.CDense {
	m := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Zeros returns an n×n zero matrix.
func Zeros(n int) *mat.CDense {
	return mat.NewCDense(n, n, nil)
}

// Adjoint returns the conjugate transpose of m as a new matrix.
func Adjoint(m *mat.CDense) *mat.CDense {
	r, c := m.Dims()
	out := mat.NewCDense(c, r, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(j, i, cmplx.Conj(m.At(i, j)))
		}
	}
	return out
}

// Mul returns the matrix product a·b.
func Mul(a, b *mat.CDense) *mat.CDense {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ca != rb {
		panic(fmt.Sprintf("cmatrix: dimension mismatch %dx%d · %dx%d", ra, ca, rb, cb))
	}
	out := mat.NewCDense(ra, cb, nil)
	for i := 0; i < ra; i++ {
		for k := 0; k < ca; k++ {
			aik := a.At(i, k)
			if aik == 0 {
				continue
			}
			for j := 0; j < cb; j++ {
				out.Set(i, j, out.At(i, j)+aik*b.At(k, j))
			}
		}
	}
	return out
}

// Scale returns f·m as a new matrix.
func Scale(f complex128, m *mat.CDense) *mat.CDense {
	r, c := m.Dims()
	out := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, f*m.At(i, j))
		}
	}
	return out
}

// AddScaled accumulates f·src into dst in place. Panics on shape mismatch
// via the underlying At/Set calls.
func AddScaled(dst *mat.CDense, f complex128, src *mat.CDense) {
	r, c := dst.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, dst.At(i, j)+f*src.At(i, j))
		}
	}
}

// MulVec returns op·v for a square operator and a state vector.
func MulVec(op *mat.CDense, v []complex128) []complex128 {
	r, c := op.Dims()
	out := make([]complex128, r)
	for i := 0; i < r; i++ {
		var acc complex128
		for j := 0; j < c; j++ {
			acc += op.At(i, j) * v[j]
		}
		out[i] = acc
	}
	return out
}

// VDot returns the Hermitian inner product ⟨a|b⟩ = Σ conj(a_i)·b_i.
func VDot(a, b []complex128) complex128 {
	var acc complex128
	for i := range a {
		acc += cmplx.Conj(a[i]) * b[i]
	}
	return acc
}

// NormSq returns the squared Euclidean norm of v.
func NormSq(v []complex128) float64 {
	var acc float64
	for _, x := range v {
		acc += real(x)*real(x) + imag(x)*imag(x)
	}
	return acc
}

// Norm returns the Euclidean norm of v.
func Norm(v []complex128) float64 {
	return math.Sqrt(NormSq(v))
}

// Normalize rescales v to unit norm in place. It returns an error for a
// numerically dead vector, which indicates an upstream precondition
// violation (a physically valid Kraus set never annihilates a state).
func Normalize(v []complex128) error {
	n := Norm(v)
	if n < 1e-15 {
		return fmt.Errorf("cmatrix: cannot normalize near-zero vector (norm %g)", n)
	}
	inv := complex(1/n, 0)
	for i := range v {
		v[i] *= inv
	}
	return nil
}

// CloneBatch deep-copies a batch of state vectors.
func CloneBatch(psi [][]complex128) [][]complex128 {
	out := make([][]complex128, len(psi))
	for i, v := range psi {
		out[i] = append([]complex128(nil), v...)
	}
	return out
}

// EqualApprox reports whether every element of a and b agrees within tol.
func EqualApprox(a, b *mat.CDense, tol float64) bool {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra != rb || ca != cb {
		return false
	}
	for i := 0; i < ra; i++ {
		for j := 0; j < ca; j++ {
			if cmplx.Abs(a.At(i, j)-b.At(i, j)) > tol {
				return false
			}
		}
	}
	return true
}
