// Package code builds the stabilizer group data for a GKP code: the
// translation amplitudes of the stabilizers and logical Paulis, their
// operator matrices, and the canonical code states used for episode
// initialization and reward measurement. Everything is computed once at
// environment construction and is immutable afterwards.
package code

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/gkpsim/internal/modules/gates"
	"github.com/aristath/gkpsim/pkg/cmatrix"
)

// Map holds the phase-space translation amplitudes defining the code.
// Conventions: column 0 of the symplectic matrix gives the logical X
// direction, column 1 gives Z, Y = X + Z, and each stabilizer is twice
// the corresponding Pauli. For the identity matrix this is the square
// code: X = √π, Z = i√π, S_q = 2√π, S_p = 2i√π.
type Map struct {
	X, Y, Z complex128
	Sq, Sp  complex128
}

// Pauli returns the logical translation amplitude for label "X", "Y" or
// "Z".
func (m Map) Pauli(label string) (complex128, error) {
	switch label {
	case "X":
		return m.X, nil
	case "Y":
		return m.Y, nil
	case "Z":
		return m.Z, nil
	}
	return 0, fmt.Errorf("code: unknown Pauli label %q", label)
}

// Definition is the full stabilizer code table.
type Definition struct {
	Map         Map
	Stabilizers map[string]*mat.CDense   // "S_q", "S_p"
	Pauli       map[string]*mat.CDense   // "X", "Y", "Z"
	States      map[string][]complex128 // "X±","Y±","Z±","vac", unit norm
}

// New builds the code tables for the 2×2 symplectic matrix s in the
// n-dimensional truncated Fock space, using g for translation operators.
func New(s [2][2]float64, n int, g *gates.Algebra) (*Definition, error) {
	sqrtPi := math.Sqrt(math.Pi)
	cm := Map{
		X: complex(sqrtPi*s[0][0], sqrtPi*s[1][0]),
		Z: complex(sqrtPi*s[0][1], sqrtPi*s[1][1]),
	}
	cm.Y = cm.X + cm.Z
	cm.Sq = 2 * cm.X
	cm.Sp = 2 * cm.Z

	def := &Definition{
		Map: cm,
		Stabilizers: map[string]*mat.CDense{
			"S_q": g.Translate(cm.Sq),
			"S_p": g.Translate(cm.Sp),
		},
		Pauli: map[string]*mat.CDense{
			"X": g.Translate(cm.X),
			"Y": g.Translate(cm.Y),
			"Z": g.Translate(cm.Z),
		},
		States: make(map[string][]complex128),
	}

	// The finite-energy code space of the truncated Fock space is spanned
	// by the top two eigenvectors of the summed Hermitian parts of the
	// stabilizers.
	m := hermitianPart(def.Stabilizers["S_q"])
	cmatrix.AddScaled(m, 1, hermitianPart(def.Stabilizers["S_p"]))
	basis, err := topEigenvectors(m, 2)
	if err != nil {
		return nil, fmt.Errorf("code: code-space eigensolve: %w", err)
	}

	// Each logical Pauli is diagonalized inside the 2-dimensional code
	// space; its eigenvectors are the cardinal states.
	for _, label := range []string{"X", "Y", "Z"} {
		hp := hermitianPart(def.Pauli[label])
		plus, minus := diagonalizeInPlane(hp, basis)
		def.States[label+"+"] = plus
		def.States[label+"-"] = minus
	}

	vac := make([]complex128, n)
	vac[0] = 1
	def.States["vac"] = vac

	return def, nil
}

// hermitianPart returns (t + t†)/2.
func hermitianPart(t *mat.CDense) *mat.CDense {
	out := cmatrix.Scale(0.5, t)
	cmatrix.AddScaled(out, 0.5, cmatrix.Adjoint(t))
	return out
}

// topEigenvectors solves the complex Hermitian eigenproblem for m through
// the real-symmetric embedding [[A, −B], [B, A]] of m = A + iB and
// returns want orthonormal eigenvectors of the largest eigenvalues. Every
// complex eigenvector appears twice in the embedding (once multiplied by
// i), so candidates are deduplicated by Gram-Schmidt.
func topEigenvectors(m *mat.CDense, want int) ([][]complex128, error) {
	n, _ := m.Dims()
	embed := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a := real(m.At(i, j))
			b := imag(m.At(i, j))
			embed.SetSym(i, j, a)
			embed.SetSym(i, n+j, -b)
			embed.SetSym(n+i, n+j, a)
		}
	}

	var es mat.EigenSym
	if !es.Factorize(embed, true) {
		return nil, fmt.Errorf("symmetric eigendecomposition failed")
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	// Eigenvalues ascend; walk from the top, rebuild complex vectors and
	// keep the ones independent of those already accepted.
	accepted := make([][]complex128, 0, want)
	for col := 2*n - 1; col >= 0 && len(accepted) < want; col-- {
		v := make([]complex128, n)
		for i := 0; i < n; i++ {
			v[i] = complex(vecs.At(i, col), vecs.At(n+i, col))
		}
		for _, u := range accepted {
			overlap := cmatrix.VDot(u, v)
			for i := range v {
				v[i] -= overlap * u[i]
			}
		}
		if cmatrix.Norm(v) < 1e-6 {
			continue
		}
		if err := cmatrix.Normalize(v); err != nil {
			continue
		}
		accepted = append(accepted, v)
	}
	if len(accepted) < want {
		return nil, fmt.Errorf("found only %d independent eigenvectors, want %d", len(accepted), want)
	}
	return accepted, nil
}

// diagonalizeInPlane projects the Hermitian operator hp onto the
// 2-dimensional space spanned by basis and returns the eigenvectors for
// the larger and smaller eigenvalue, expressed in the full Fock space.
func diagonalizeInPlane(hp *mat.CDense, basis [][]complex128) (plus, minus []complex128) {
	h0 := cmatrix.MulVec(hp, basis[0])
	h1 := cmatrix.MulVec(hp, basis[1])
	a := real(cmatrix.VDot(basis[0], h0))
	b := real(cmatrix.VDot(basis[1], h1))
	c := cmatrix.VDot(basis[0], h1)

	// Closed-form 2×2 Hermitian eigenproblem [[a, c], [conj(c), b]].
	delta := math.Sqrt((a-b)*(a-b)/4 + real(c)*real(c) + imag(c)*imag(c))
	muPlus := (a+b)/2 + delta

	var w0, w1 complex128
	if cmplx.Abs(c) < 1e-14 {
		if a >= b {
			w0, w1 = 1, 0
		} else {
			w0, w1 = 0, 1
		}
	} else {
		w0 = c
		w1 = complex(muPlus-a, 0)
	}
	nw := math.Sqrt(real(w0)*real(w0) + imag(w0)*imag(w0) + real(w1)*real(w1) + imag(w1)*imag(w1))
	w0 /= complex(nw, 0)
	w1 /= complex(nw, 0)

	n := len(basis[0])
	plus = make([]complex128, n)
	minus = make([]complex128, n)
	for i := 0; i < n; i++ {
		plus[i] = w0*basis[0][i] + w1*basis[1][i]
		// The orthogonal combination in the plane is the other eigenvector.
		minus[i] = -cmplx.Conj(w1)*basis[0][i] + cmplx.Conj(w0)*basis[1][i]
	}
	return plus, minus
}
