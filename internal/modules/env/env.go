// Package env implements the GKP stabilization reinforcement-learning
// environment: it owns the trajectory batch, drives one circuit round per
// step, maintains the bounded action/measurement history returned as
// observations, and scores steps with the configured reward mode.
//
// An Environment instance is exclusively owned by one caller. Frameworks
// running environments in parallel must create one instance each; the
// operator tables built at construction are read-only and may be shared.
package env

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/gkpsim/internal/config"
	"github.com/aristath/gkpsim/internal/modules/circuits"
	"github.com/aristath/gkpsim/internal/modules/code"
	"github.com/aristath/gkpsim/internal/modules/gates"
	"github.com/aristath/gkpsim/internal/modules/operators"
	"github.com/aristath/gkpsim/internal/modules/trajectory"
	"github.com/aristath/gkpsim/pkg/cmatrix"
)

// ActionDict is the RL-facing action: component name to per-trajectory
// vectors. alpha/beta/epsilon are [batch][2] real encodings of complex
// amplitudes, phi is a [batch][1] angle.
type ActionDict map[string][][]float64

// Observation maps component name (alpha, beta, phi, msmt, and epsilon
// for the v3 circuit) to a [batch][H][dim] history window.
type Observation map[string][][][]float64

// Spec describes the per-trajectory shape of one named component.
type Spec struct {
	Shape []int
}

// Environment is the GKP stabilization environment.
type Environment struct {
	cfg config.Config
	log zerolog.Logger
	id  string

	lib     *operators.Library
	alg     *gates.Algebra
	codeDef *code.Definition
	circuit circuits.Circuit
	eye     *mat.CDense
	rng     *rand.Rand

	components map[string]int // action component name -> dim

	// Episode state, reset every episode.
	state      [][]complex128
	cached     [][]complex128 // post-feedback state from the latest step
	original   []string       // per-trajectory initialization label
	history    map[string][][][]float64
	elapsed    int
	episodeLen int
	done       bool
	ready      bool
	retEpisode []float64
}

// New constructs an environment from a validated configuration. Invalid
// configurations are rejected here; nothing is defaulted.
func New(cfg config.Config, log zerolog.Logger) (*Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lib := operators.NewLibrary(cfg.N, cfg.KerrRate, cfg.T1)
	alg, err := gates.NewAlgebra(lib)
	if err != nil {
		return nil, err
	}
	codeDef, err := code.New(cfg.Code, cfg.N, alg)
	if err != nil {
		return nil, err
	}

	kraus := operators.BuildKrausMap(lib.Hamiltonian, lib.CollapseOps, cfg.Dt)
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	deps := circuits.Deps{
		Gates: alg,
		Eye:   lib.I,
		Delay: trajectory.NewSimulator(kraus, cfg.DelaySteps()),
		Round: trajectory.NewSimulator(kraus, cfg.RoundSteps()),
		Rng:   rng,
	}
	circuit, err := circuits.New(cfg.Circuit, deps)
	if err != nil {
		return nil, err
	}

	components := map[string]int{"alpha": 2, "beta": 2, "phi": 1}
	if cfg.Circuit == config.CircuitV3 {
		components["epsilon"] = 2
	}

	e := &Environment{
		cfg:        cfg,
		id:         uuid.New().String(),
		lib:        lib,
		alg:        alg,
		codeDef:    codeDef,
		circuit:    circuit,
		eye:        lib.I,
		rng:        rng,
		components: components,
	}
	e.log = log.With().Str("module", "env").Str("env_id", e.id).Logger()
	e.log.Info().
		Int("N", cfg.N).
		Int("batch_size", cfg.BatchSize).
		Str("circuit", string(cfg.Circuit)).
		Str("reward_mode", string(cfg.RewardMode)).
		Str("init", string(cfg.Init)).
		Msg("Environment constructed")
	return e, nil
}

// Config returns the immutable configuration.
func (e *Environment) Config() config.Config { return e.cfg }

// Gates exposes the gate algebra for read-only consumers such as the
// Wigner renderer.
func (e *Environment) Gates() *gates.Algebra { return e.alg }

// ActionSpec describes the expected action components.
func (e *Environment) ActionSpec() map[string]Spec {
	spec := make(map[string]Spec, len(e.components))
	for name, dim := range e.components {
		spec[name] = Spec{Shape: []int{1, dim}}
	}
	return spec
}

// ObservationSpec describes the returned observation components.
func (e *Environment) ObservationSpec() map[string]Spec {
	spec := map[string]Spec{"msmt": {Shape: []int{e.cfg.Horizon, 1}}}
	for name, dim := range e.components {
		spec[name] = Spec{Shape: []int{e.cfg.Horizon, dim}}
	}
	return spec
}

// Reset starts a new episode: prepares the initial state batch, clears
// counters and pre-fills the observation history with zero actions and
// measurement value +1.
func (e *Environment) Reset() Observation {
	b := e.cfg.BatchSize
	e.state = make([][]complex128, b)
	e.original = make([]string, b)

	switch e.cfg.Init {
	case config.InitRandom:
		picks := []string{"X+", "Y+", "Z+"}
		for t := 0; t < b; t++ {
			label := picks[e.rng.IntN(len(picks))]
			e.original[t] = label
			e.state[t] = append([]complex128(nil), e.codeDef.States[label]...)
		}
	default:
		psi := e.codeDef.States[string(e.cfg.Init)]
		for t := 0; t < b; t++ {
			e.original[t] = string(e.cfg.Init)
			e.state[t] = append([]complex128(nil), psi...)
		}
	}

	e.episodeLen = e.cfg.EpisodeLength
	if e.cfg.MaxEpisodeLength > 0 {
		e.episodeLen = 1 + e.rng.IntN(e.cfg.MaxEpisodeLength-1)
	}
	e.elapsed = 0
	e.done = false
	e.ready = true
	e.cached = nil
	e.retEpisode = make([]float64, b)

	e.history = make(map[string][][][]float64)
	for name, dim := range e.components {
		e.history[name] = prefill(e.cfg.Horizon, b, dim, 0)
	}
	e.history["msmt"] = prefill(e.cfg.Horizon, b, 1, 1)

	e.log.Debug().Int("episode_length", e.episodeLen).Msg("Episode reset")
	return e.observation()
}

// Step runs one protocol round and returns the new observation, the
// per-trajectory reward, and whether the episode just terminated.
func (e *Environment) Step(act ActionDict) (Observation, []float64, bool, error) {
	if !e.ready {
		return nil, nil, false, fmt.Errorf("env: Step called before Reset")
	}
	if e.done {
		return nil, nil, false, fmt.Errorf("env: episode has ended; call Reset")
	}

	decoded, err := e.decode(act)
	if err != nil {
		return nil, nil, false, err
	}

	res, err := e.circuit.Step(e.state, decoded)
	if err != nil {
		return nil, nil, false, err
	}
	e.state = res.Final
	e.cached = res.Cached

	e.elapsed++
	e.done = e.elapsed == e.episodeLen

	for name := range e.components {
		e.history[name] = appendBounded(e.history[name], act[name], e.cfg.Horizon)
	}
	msmt := make([][]float64, len(res.Outcomes))
	for t, z := range res.Outcomes {
		msmt[t] = []float64{z}
	}
	e.history["msmt"] = appendBounded(e.history["msmt"], msmt, e.cfg.Horizon)

	reward, err := e.reward(res.Outcomes, decoded)
	if err != nil {
		return nil, nil, false, err
	}
	for t := range reward {
		e.retEpisode[t] += reward[t]
	}

	return e.observation(), reward, e.done, nil
}

// Elapsed returns the number of steps taken in the current episode.
func (e *Environment) Elapsed() int { return e.elapsed }

// Done reports whether the current episode has terminated.
func (e *Environment) Done() bool { return e.done }

// EpisodeReturn returns a copy of the cumulative per-trajectory return.
func (e *Environment) EpisodeReturn() []float64 {
	return append([]float64(nil), e.retEpisode...)
}

// StateCopy returns a deep copy of the current wavefunction batch. This
// is the rendering hook: a pure read for visualization.
func (e *Environment) StateCopy() [][]complex128 {
	return cmatrix.CloneBatch(e.state)
}

// decode converts the RL-facing action dict into complex amplitudes,
// validating every shape against the action spec.
func (e *Environment) decode(act ActionDict) (circuits.Action, error) {
	b := e.cfg.BatchSize
	for name, dim := range e.components {
		rows, ok := act[name]
		if !ok {
			return circuits.Action{}, fmt.Errorf("env: action missing component %q", name)
		}
		if len(rows) != b {
			return circuits.Action{}, fmt.Errorf("env: action %q has %d rows, want batch size %d", name, len(rows), b)
		}
		for t, row := range rows {
			if len(row) != dim {
				return circuits.Action{}, fmt.Errorf("env: action %q row %d has dim %d, want %d", name, t, len(row), dim)
			}
		}
	}

	decoded := circuits.Action{
		Alpha: toComplex(act["alpha"]),
		Beta:  toComplex(act["beta"]),
		Phi:   make([]float64, b),
	}
	for t := 0; t < b; t++ {
		decoded.Phi[t] = act["phi"][t][0]
	}
	if _, ok := e.components["epsilon"]; ok {
		decoded.Epsilon = toComplex(act["epsilon"])
	}
	return decoded, nil
}

func (e *Environment) reward(outcomes []float64, act circuits.Action) ([]float64, error) {
	b := e.cfg.BatchSize
	z := make([]float64, b)

	switch e.cfg.RewardMode {
	case config.RewardZero:
		return z, nil

	case config.RewardStabilizers:
		// Outcome counts only when phi == 0, i.e. the step measured the
		// real part of a stabilizer eigenvalue.
		for t := 0; t < b; t++ {
			if act.Phi[t] == 0 {
				z[t] = outcomes[t]
			}
		}
		return z, nil

	case config.RewardPauli:
		if e.elapsed < e.episodeLen {
			return z, nil
		}
		beta := make([]complex128, b)
		for t := 0; t < b; t++ {
			amp, err := e.codeDef.Map.Pauli(e.original[t][:1])
			if err != nil {
				return nil, err
			}
			beta[t] = amp
		}
		return e.sampleEstimate(beta)

	case config.RewardMixed:
		if e.elapsed < e.episodeLen {
			return z, nil
		}
		beta := make([]complex128, b)
		for t := 0; t < b; t++ {
			if (distuv.Bernoulli{P: 0.5, Src: e.rng}).Rand() == 1 {
				beta[t] = e.codeDef.Map.Sq
			} else {
				beta[t] = e.codeDef.Map.Sp
			}
		}
		return e.sampleEstimate(beta)
	}
	return nil, fmt.Errorf("env: reward mode %q not supported", e.cfg.RewardMode)
}

// sampleEstimate runs a sampled phase-estimation measurement of T(beta)
// on the cached post-feedback state.
func (e *Environment) sampleEstimate(beta []complex128) ([]float64, error) {
	angle := make([]float64, e.cfg.BatchSize)
	_, z, err := circuits.PhaseEstimation(e.alg, e.eye, e.cached, beta, angle, true, e.rng)
	return z, err
}

func (e *Environment) observation() Observation {
	obs := make(Observation, len(e.history))
	for name, entries := range e.history {
		b := e.cfg.BatchSize
		window := make([][][]float64, b)
		for t := 0; t < b; t++ {
			window[t] = make([][]float64, len(entries))
			for s, entry := range entries {
				window[t][s] = append([]float64(nil), entry[t]...)
			}
		}
		obs[name] = window
	}
	return obs
}

func toComplex(rows [][]float64) []complex128 {
	out := make([]complex128, len(rows))
	for t, row := range rows {
		out[t] = complex(row[0], row[1])
	}
	return out
}

// prefill builds an H-deep history of identical [batch][dim] entries
// filled with value.
func prefill(h, batch, dim int, value float64) [][][]float64 {
	entries := make([][][]float64, h)
	for s := 0; s < h; s++ {
		entry := make([][]float64, batch)
		for t := 0; t < batch; t++ {
			row := make([]float64, dim)
			for d := range row {
				row[d] = value
			}
			entry[t] = row
		}
		entries[s] = entry
	}
	return entries
}

// appendBounded appends an entry and drops the oldest beyond the horizon.
func appendBounded(entries [][][]float64, entry [][]float64, horizon int) [][][]float64 {
	copied := make([][]float64, len(entry))
	for t, row := range entry {
		copied[t] = append([]float64(nil), row...)
	}
	entries = append(entries, copied)
	if len(entries) > horizon {
		entries = entries[len(entries)-horizon:]
	}
	return entries
}
