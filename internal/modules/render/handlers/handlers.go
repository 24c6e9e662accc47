// Package handlers provides read-only HTTP handlers for inspecting a
// running environment: episode status and Wigner-function grids of the
// current wavefunction batch. These endpoints never mutate environment
// state; the serving goroutine must be the only caller driving the
// environment.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/gkpsim/internal/modules/env"
	"github.com/aristath/gkpsim/internal/modules/gates"
	"github.com/aristath/gkpsim/internal/modules/wigner"
)

// Handler serves environment inspection requests.
type Handler struct {
	environment *env.Environment
	alg         *gates.Algebra
	log         zerolog.Logger
}

// NewHandler creates a new inspection handler.
func NewHandler(environment *env.Environment, alg *gates.Algebra, log zerolog.Logger) *Handler {
	return &Handler{
		environment: environment,
		alg:         alg,
		log:         log.With().Str("handler", "render").Logger(),
	}
}

// HandleStatus handles GET /api/env/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := h.environment.Config()
	returns := h.environment.EpisodeReturn()
	mean := 0.0
	for _, v := range returns {
		mean += v
	}
	if len(returns) > 0 {
		mean /= float64(len(returns))
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"batch_size":          cfg.BatchSize,
			"circuit":             string(cfg.Circuit),
			"reward_mode":         string(cfg.RewardMode),
			"elapsed_steps":       h.environment.Elapsed(),
			"done":                h.environment.Done(),
			"mean_episode_return": mean,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	writeJSON(w, h.log, response)
}

// HandleWigner handles GET /api/env/wigner?trajectory=&points=&extent=
func (h *Handler) HandleWigner(w http.ResponseWriter, r *http.Request) {
	trajectory := queryInt(r, "trajectory", 0)
	points := queryInt(r, "points", 41)
	extent := queryFloat(r, "extent", 2*2.5066) // ~ 2·√(2π), covers one lattice cell

	state := h.environment.StateCopy()
	if trajectory < 0 || trajectory >= len(state) {
		http.Error(w, "trajectory index out of range", http.StatusBadRequest)
		return
	}

	grid, err := wigner.Grid(h.alg, state[trajectory], extent, points)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute Wigner grid")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, cols := grid.Dims()
	values := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		values[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			values[i][j] = grid.At(i, j)
		}
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"trajectory": trajectory,
			"extent":     extent,
			"points":     points,
			"wigner":     values,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	writeJSON(w, h.log, response)
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func queryFloat(r *http.Request, key string, fallback float64) float64 {
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
