// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// RewardMode selects the reward function used by the environment.
type RewardMode string

const (
	RewardZero        RewardMode = "zero"
	RewardStabilizers RewardMode = "stabilizers"
	RewardPauli       RewardMode = "pauli"
	RewardMixed       RewardMode = "mixed"
)

// CircuitVariant selects the measurement-round Kraus algebra.
type CircuitVariant string

const (
	CircuitV1 CircuitVariant = "v1"
	CircuitV2 CircuitVariant = "v2"
	CircuitV3 CircuitVariant = "v3"
)

// InitMode selects the initial state prepared at episode reset.
type InitMode string

const (
	InitVacuum InitMode = "vac"
	InitRandom InitMode = "random"
	InitXPlus  InitMode = "X+"
	InitXMinus InitMode = "X-"
	InitYPlus  InitMode = "Y+"
	InitYMinus InitMode = "Y-"
	InitZPlus  InitMode = "Z+"
	InitZMinus InitMode = "Z-"
)

var cardinalInits = map[InitMode]bool{
	InitXPlus: true, InitXMinus: true,
	InitYPlus: true, InitYMinus: true,
	InitZPlus: true, InitZMinus: true,
}

// Config holds the full environment configuration. All fields are fixed at
// construction; the environment never mutates its configuration.
type Config struct {
	// Hilbert space and episode shape
	N                int // oscillator Fock truncation
	BatchSize        int // number of independent trajectories
	Horizon          int // observation history length H
	EpisodeLength    int // steps per episode T
	MaxEpisodeLength int // if > 0, episode length is drawn from [1, max) at reset

	// Oscillator parameters
	KerrRate float64 // Kerr nonlinearity K, Hz
	T1       float64 // photon loss time, seconds

	// Circuit timing, seconds
	TGate  float64 // conditional-translation gate duration
	TRead  float64 // qubit readout duration
	TDelay float64 // idle delay before feedback
	Dt     float64 // Kraus map discretization step

	// Protocol selection
	RewardMode RewardMode
	Circuit    CircuitVariant
	Init       InitMode

	// Code defines the GKP lattice: a 2x2 symplectic matrix whose columns
	// are the X and Z translation directions in (q,p) phase space.
	// Identity gives the square code.
	Code [2][2]float64

	Seed uint64 // RNG seed for branch/measurement sampling

	// Operational
	LogLevel string
	Port     int // inspection API port, used by cmd/gkpsim when serving
}

// Default returns a configuration with the oscillator parameters used in
// the stabilization experiments and the square GKP code.
func Default() Config {
	return Config{
		N:             100,
		BatchSize:     50,
		Horizon:       4,
		EpisodeLength: 20,
		KerrRate:      1.0,
		T1:            245e-6,
		TGate:         1.2e-6,
		TRead:         0.4e-6,
		TDelay:        0,
		Dt:            100e-9,
		RewardMode:    RewardStabilizers,
		Circuit:       CircuitV1,
		Init:          InitVacuum,
		Code:          [2][2]float64{{1, 0}, {0, 1}},
		Seed:          1,
		LogLevel:      "info",
		Port:          8001,
	}
}

// Validate rejects invalid configurations. Every constraint is checked at
// construction time; nothing is silently defaulted.
func (c Config) Validate() error {
	if c.N < 2 {
		return fmt.Errorf("config: oscillator truncation N must be at least 2, got %d", c.N)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batch size must be positive, got %d", c.BatchSize)
	}
	if c.Horizon < 1 {
		return fmt.Errorf("config: horizon must be at least 1, got %d", c.Horizon)
	}
	if c.EpisodeLength < 1 {
		return fmt.Errorf("config: episode length must be at least 1, got %d", c.EpisodeLength)
	}
	if c.MaxEpisodeLength < 0 {
		return fmt.Errorf("config: max episode length cannot be negative, got %d", c.MaxEpisodeLength)
	}
	if c.MaxEpisodeLength > 0 && c.MaxEpisodeLength < 2 {
		return fmt.Errorf("config: max episode length must leave room for [1, max), got %d", c.MaxEpisodeLength)
	}
	if c.T1 <= 0 {
		return fmt.Errorf("config: T1 must be positive, got %g", c.T1)
	}
	if c.Dt <= 0 {
		return fmt.Errorf("config: discretization step must be positive, got %g", c.Dt)
	}
	// The first-order Kraus map is valid only for dt small against all
	// rates; this bound catches gross misconfiguration.
	if c.Dt > c.T1/10 {
		return fmt.Errorf("config: discretization step %g too coarse for T1 %g", c.Dt, c.T1)
	}
	if c.TGate < 0 || c.TRead < 0 || c.TDelay < 0 {
		return fmt.Errorf("config: circuit durations cannot be negative")
	}
	switch c.RewardMode {
	case RewardZero, RewardStabilizers, RewardPauli, RewardMixed:
	default:
		return fmt.Errorf("config: reward mode %q not supported", c.RewardMode)
	}
	switch c.Circuit {
	case CircuitV1, CircuitV2, CircuitV3:
	default:
		return fmt.Errorf("config: circuit variant %q not supported", c.Circuit)
	}
	if c.Init != InitVacuum && c.Init != InitRandom && !cardinalInits[c.Init] {
		return fmt.Errorf("config: initial state %q not supported", c.Init)
	}
	if c.RewardMode == RewardPauli && c.Init == InitVacuum {
		return fmt.Errorf("config: pauli reward requires a logical eigenstate initialization, not %q", c.Init)
	}
	if det := c.Code[0][0]*c.Code[1][1] - c.Code[0][1]*c.Code[1][0]; det == 0 {
		return fmt.Errorf("config: code matrix is singular")
	}
	return nil
}

// Load reads configuration from environment variables, starting from
// Default. A .env file is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	c := Default()
	c.N = getEnvAsInt("GKP_N", c.N)
	c.BatchSize = getEnvAsInt("GKP_BATCH_SIZE", c.BatchSize)
	c.Horizon = getEnvAsInt("GKP_HORIZON", c.Horizon)
	c.EpisodeLength = getEnvAsInt("GKP_EPISODE_LENGTH", c.EpisodeLength)
	c.MaxEpisodeLength = getEnvAsInt("GKP_MAX_EPISODE_LENGTH", c.MaxEpisodeLength)
	c.KerrRate = getEnvAsFloat("GKP_KERR_RATE", c.KerrRate)
	c.T1 = getEnvAsFloat("GKP_T1", c.T1)
	c.TGate = getEnvAsFloat("GKP_T_GATE", c.TGate)
	c.TRead = getEnvAsFloat("GKP_T_READ", c.TRead)
	c.TDelay = getEnvAsFloat("GKP_T_DELAY", c.TDelay)
	c.Dt = getEnvAsFloat("GKP_DT", c.Dt)
	c.RewardMode = RewardMode(getEnv("GKP_REWARD_MODE", string(c.RewardMode)))
	c.Circuit = CircuitVariant(getEnv("GKP_CIRCUIT", string(c.Circuit)))
	c.Init = InitMode(getEnv("GKP_INIT", string(c.Init)))
	c.Seed = uint64(getEnvAsInt("GKP_SEED", int(c.Seed)))
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Port = getEnvAsInt("GO_PORT", c.Port)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// DelaySteps returns the number of Kraus map applications covering the
// idle delay before feedback.
func (c Config) DelaySteps() int {
	return int(math.Round(c.TDelay / c.Dt))
}

// RoundSteps returns the number of Kraus map applications covering the
// gate plus readout duration.
func (c Config) RoundSteps() int {
	return int(math.Round((c.TGate + c.TRead) / c.Dt))
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
