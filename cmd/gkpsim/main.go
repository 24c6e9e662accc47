// Package main is the diagnostics runner for the GKP stabilization
// environment. It builds an environment from environment-variable
// configuration, rolls out scripted episodes with a zero or random
// policy, logs per-episode statistics, and can serve the read-only
// inspection API afterwards so the final state batch can be examined
// (Wigner grids, episode status).
//
// This binary is not the RL trainer; policy optimization consumes the
// env package directly.
package main

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/gkpsim/internal/config"
	"github.com/aristath/gkpsim/internal/modules/env"
	"github.com/aristath/gkpsim/internal/modules/render/handlers"
	"github.com/aristath/gkpsim/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	runID := uuid.New().String()
	log.Info().Str("run_id", runID).Msg("Starting gkpsim")

	environment, err := env.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to construct environment")
	}

	episodes := getEnvAsInt("GKP_EPISODES", 5)
	policy := os.Getenv("GKP_POLICY")
	if policy == "" {
		policy = "zero"
	}
	rng := rand.New(rand.NewPCG(cfg.Seed+1, cfg.Seed+2))

	for ep := 0; ep < episodes; ep++ {
		environment.Reset()
		steps := 0
		for {
			act, err := buildAction(environment, policy, rng)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to build action")
			}
			_, reward, done, err := environment.Step(act)
			if err != nil {
				log.Fatal().Err(err).Msg("Environment step failed")
			}
			steps++
			if done {
				log.Info().
					Int("episode", ep).
					Int("steps", steps).
					Float64("mean_return", mean(environment.EpisodeReturn())).
					Float64("mean_final_reward", mean(reward)).
					Msg("Episode finished")
				break
			}
		}
	}

	if os.Getenv("GKP_SERVE") == "true" {
		serve(environment, cfg.Port, log)
	}
}

// buildAction produces one batched action. The zero policy probes the
// degenerate measurement; the random policy draws small feedback and
// conditional-translation amplitudes with phi = 0 so the stabilizers
// reward mask stays active.
func buildAction(environment *env.Environment, policy string, rng *rand.Rand) (env.ActionDict, error) {
	b := environment.Config().BatchSize
	act := env.ActionDict{}
	for name, spec := range environment.ActionSpec() {
		dim := spec.Shape[len(spec.Shape)-1]
		rows := make([][]float64, b)
		for t := 0; t < b; t++ {
			row := make([]float64, dim)
			if policy == "random" && name != "phi" {
				for d := range row {
					row[d] = 0.2 * (2*rng.Float64() - 1)
				}
			}
			rows[t] = row
		}
		act[name] = rows
	}
	if policy != "zero" && policy != "random" {
		return nil, fmt.Errorf("unknown policy %q", policy)
	}
	return act, nil
}

func serve(environment *env.Environment, port int, log zerolog.Logger) {
	handler := handlers.NewHandler(environment, environment.Gates(), log)
	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	addr := fmt.Sprintf(":%d", port)
	log.Info().Str("addr", addr).Msg("Serving inspection API")
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatal().Err(err).Msg("Inspection API server failed")
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total / float64(len(xs))
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		var parsed int
		if _, err := fmt.Sscanf(value, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}
