// Package circuits implements the per-round measurement protocols: three
// alternative gate-sequence variants that interleave decoherence, a
// feedback translation and a two-outcome projective measurement whose
// Kraus pair depends on the variant's operator algebra.
package circuits

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/gkpsim/internal/config"
	"github.com/aristath/gkpsim/internal/modules/gates"
	"github.com/aristath/gkpsim/internal/modules/trajectory"
	"github.com/aristath/gkpsim/pkg/cmatrix"
)

// Action carries the decoded continuous parameters for one round, one
// entry per trajectory. Epsilon is only consulted by the v3 circuit.
type Action struct {
	Alpha   []complex128
	Beta    []complex128
	Epsilon []complex128
	Phi     []float64
}

// Result is the output of one circuit round.
type Result struct {
	// Final is the post-measurement state batch, unit norm.
	Final [][]complex128
	// Cached is the state right after the feedback translation, before
	// the noisy gate+readout round. Reward modes that score the state the
	// agent targeted measure this.
	Cached [][]complex128
	// Outcomes holds the qubit measurement outcomes in {+1, -1}.
	Outcomes []float64
}

// Circuit applies one protocol round to a state batch.
type Circuit interface {
	// Step runs the full round: delay noise, feedback, readout noise and
	// the projective measurement.
	Step(psi [][]complex128, act Action) (Result, error)
	// MeasurementKraus builds the variant's two-outcome Kraus pair for an
	// action, one operator pair per trajectory. The pairs satisfy
	// K0†K0 + K1†K1 = I to matrix-exponential precision.
	MeasurementKraus(act Action) (k0s, k1s []*mat.CDense)
}

// Deps bundles the shared simulation machinery a circuit needs. The Rng
// is owned by the environment instance and must not be shared across
// instances.
type Deps struct {
	Gates *gates.Algebra
	Eye   *mat.CDense
	Delay *trajectory.Simulator
	Round *trajectory.Simulator
	Rng   *rand.Rand
}

// New selects the circuit implementation for a configured variant.
func New(variant config.CircuitVariant, d Deps) (Circuit, error) {
	switch variant {
	case config.CircuitV1:
		return &circuitV1{d}, nil
	case config.CircuitV2:
		return &circuitV2{d}, nil
	case config.CircuitV3:
		return &circuitV3{d}, nil
	}
	return nil, fmt.Errorf("circuits: unknown variant %q", variant)
}

// circuitV1 uses the asymmetric conditional translation: the oscillator
// is translated by the full beta when the ancilla is excited.
//
//	K± = ½(I ± e^{iφ}·T(β))
type circuitV1 struct {
	deps Deps
}

func (c *circuitV1) Step(psi [][]complex128, act Action) (Result, error) {
	k0s, k1s := c.MeasurementKraus(act)
	return runRound(c.deps, psi, act.Alpha, k0s, k1s)
}

func (c *circuitV1) MeasurementKraus(act Action) ([]*mat.CDense, []*mat.CDense) {
	return ConditionalKraus(c.deps.Gates, c.deps.Eye, act.Beta, act.Phi)
}

// circuitV2 uses the symmetric conditional translation by ±β/2; the
// adjoint term cancels the global-phase asymmetry of v1.
//
//	K± = ½(T(β/2)† ± e^{iφ}·T(β/2))
type circuitV2 struct {
	deps Deps
}

func (c *circuitV2) Step(psi [][]complex128, act Action) (Result, error) {
	k0s, k1s := c.MeasurementKraus(act)
	return runRound(c.deps, psi, act.Alpha, k0s, k1s)
}

func (c *circuitV2) MeasurementKraus(act Action) ([]*mat.CDense, []*mat.CDense) {
	b := len(act.Beta)
	k0s := make([]*mat.CDense, b)
	k1s := make([]*mat.CDense, b)
	for t := 0; t < b; t++ {
		tb := c.deps.Gates.Translate(act.Beta[t] / 2)
		tbAdj := cmatrix.Adjoint(tb)
		ph := gates.Phase(act.Phi[t])

		k0 := cmatrix.Scale(0.5, tbAdj)
		cmatrix.AddScaled(k0, 0.5*ph, tb)
		k1 := cmatrix.Scale(0.5, tbAdj)
		cmatrix.AddScaled(k1, -0.5*ph, tb)
		k0s[t], k1s[t] = k0, k1
	}
	return k0s, k1s
}

// circuitV3 combines envelope trimming (epsilon) and sharpening (beta) in
// a single round. The Kraus pair is the phase-weighted sum and difference
// of two four-term products of translation operators.
type circuitV3 struct {
	deps Deps
}

func (c *circuitV3) Step(psi [][]complex128, act Action) (Result, error) {
	k0s, k1s := c.MeasurementKraus(act)
	return runRound(c.deps, psi, act.Alpha, k0s, k1s)
}

func (c *circuitV3) MeasurementKraus(act Action) ([]*mat.CDense, []*mat.CDense) {
	b := len(act.Beta)
	k0s := make([]*mat.CDense, b)
	k1s := make([]*mat.CDense, b)
	for t := 0; t < b; t++ {
		tbPlus := c.deps.Gates.Translate(act.Beta[t] / 2)
		tbMinus := cmatrix.Adjoint(tbPlus)
		tePlus := c.deps.Gates.Translate(act.Epsilon[t] / 2)
		teMinus := cmatrix.Adjoint(tePlus)

		chunk1 := cmatrix.Scale(1i, mul3(tbMinus, tePlus, tbPlus))
		cmatrix.AddScaled(chunk1, -1i, mul3(tbMinus, teMinus, tbPlus))
		cmatrix.AddScaled(chunk1, 1, mul3(tbMinus, teMinus, tbMinus))
		cmatrix.AddScaled(chunk1, 1, mul3(tbMinus, tePlus, tbMinus))

		chunk2 := cmatrix.Scale(1i, mul3(tbPlus, teMinus, tbMinus))
		cmatrix.AddScaled(chunk2, -1i, mul3(tbPlus, tePlus, tbMinus))
		cmatrix.AddScaled(chunk2, 1, mul3(tbPlus, teMinus, tbPlus))
		cmatrix.AddScaled(chunk2, 1, mul3(tbPlus, tePlus, tbPlus))

		ph := gates.Phase(act.Phi[t])
		k0 := cmatrix.Scale(0.25, chunk1)
		cmatrix.AddScaled(k0, 0.25*ph, chunk2)
		k1 := cmatrix.Scale(0.25, chunk1)
		cmatrix.AddScaled(k1, -0.25*ph, chunk2)
		k0s[t], k1s[t] = k0, k1
	}
	return k0s, k1s
}

func mul3(a, b, c *mat.CDense) *mat.CDense {
	return cmatrix.Mul(a, cmatrix.Mul(b, c))
}

// ConditionalKraus builds the phase-estimation Kraus pair
// K± = ½(I ± e^{iφ}·T(β)) per trajectory. This is the v1 algebra and the
// primitive used to measure stabilizer and Pauli eigenvalues.
func ConditionalKraus(g *gates.Algebra, eye *mat.CDense, beta []complex128, phi []float64) (k0s, k1s []*mat.CDense) {
	k0s = make([]*mat.CDense, len(beta))
	k1s = make([]*mat.CDense, len(beta))
	for t := range beta {
		tb := g.Translate(beta[t])
		ph := gates.Phase(phi[t])

		k0 := cmatrix.Scale(0.5, eye)
		cmatrix.AddScaled(k0, 0.5*ph, tb)
		k1 := cmatrix.Scale(0.5, eye)
		cmatrix.AddScaled(k1, -0.5*ph, tb)
		k0s[t], k1s[t] = k0, k1
	}
	return k0s, k1s
}

// runRound performs the variant-independent part of a protocol round:
// delay decoherence, feedback translation (cached), gate+readout
// decoherence, renormalization and the projective measurement.
func runRound(d Deps, psi [][]complex128, alpha []complex128, k0s, k1s []*mat.CDense) (Result, error) {
	psi, err := d.Delay.Run(psi, d.Rng)
	if err != nil {
		return Result{}, fmt.Errorf("circuits: delay evolution: %w", err)
	}

	feedback := d.Gates.TranslateBatch(alpha)
	cached := make([][]complex128, len(psi))
	for t := range psi {
		cached[t] = cmatrix.MulVec(feedback[t], psi[t])
	}

	psi, err = d.Round.Run(cached, d.Rng)
	if err != nil {
		return Result{}, fmt.Errorf("circuits: readout-round evolution: %w", err)
	}
	for t := range psi {
		if err := cmatrix.Normalize(psi[t]); err != nil {
			return Result{}, fmt.Errorf("circuits: trajectory %d: %w", t, err)
		}
	}

	final, outcomes, err := Measure(psi, k0s, k1s, d.Rng)
	if err != nil {
		return Result{}, err
	}
	return Result{Final: final, Cached: cached, Outcomes: outcomes}, nil
}

// Measure performs one projective two-outcome measurement per trajectory.
// Outcome 1 is drawn with probability p1/(p0+p1); the collapsed candidate
// is renormalized and the outcome reported as +1 for branch 0, −1 for
// branch 1.
func Measure(psi [][]complex128, k0s, k1s []*mat.CDense, rng *rand.Rand) ([][]complex128, []float64, error) {
	out := make([][]complex128, len(psi))
	outcomes := make([]float64, len(psi))
	for t := range psi {
		c0 := cmatrix.MulVec(k0s[t], psi[t])
		c1 := cmatrix.MulVec(k1s[t], psi[t])
		p0 := cmatrix.NormSq(c0)
		p1 := cmatrix.NormSq(c1)
		if p0+p1 < 1e-30 {
			return nil, nil, fmt.Errorf("circuits: measurement probabilities vanished for trajectory %d", t)
		}

		one := distuv.Bernoulli{P: p1 / (p0 + p1), Src: rng}.Rand()
		if one == 1 {
			out[t] = c1
			outcomes[t] = -1
		} else {
			out[t] = c0
			outcomes[t] = 1
		}
		if err := cmatrix.Normalize(out[t]); err != nil {
			return nil, nil, fmt.Errorf("circuits: trajectory %d: %w", t, err)
		}
	}
	return out, outcomes, nil
}

// PhaseEstimation runs one round of phase estimation of the translation
// operator T(beta) at qubit angle. With sample set it collapses the state
// and returns measurement outcomes in {+1, -1}; otherwise it leaves the
// state untouched and returns the ancilla σz expectation p0 − p1 per
// trajectory.
func PhaseEstimation(g *gates.Algebra, eye *mat.CDense, psi [][]complex128, beta []complex128, angle []float64, sample bool, rng *rand.Rand) ([][]complex128, []float64, error) {
	k0s, k1s := ConditionalKraus(g, eye, beta, angle)

	normed := cmatrix.CloneBatch(psi)
	for t := range normed {
		if err := cmatrix.Normalize(normed[t]); err != nil {
			return nil, nil, fmt.Errorf("circuits: trajectory %d: %w", t, err)
		}
	}

	if sample {
		return Measure(normed, k0s, k1s, rng)
	}

	z := make([]float64, len(normed))
	for t := range normed {
		p0 := cmatrix.NormSq(cmatrix.MulVec(k0s[t], normed[t]))
		p1 := cmatrix.NormSq(cmatrix.MulVec(k1s[t], normed[t]))
		z[t] = p0 - p1
	}
	return normed, z, nil
}
