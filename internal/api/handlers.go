package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/uav-cas/internal/scenario"
	"github.com/yegors/uav-cas/internal/sim"
	"github.com/yegors/uav-cas/pkg/logger"
)

// Simulation is the surface the running engine exposes to the API
type Simulation interface {
	State() *sim.State // nil before the first run has started
	Snapshots() []sim.VehicleSnapshot
	Scenarios() []scenario.Entry
	TogglePause()
	DemandReset()
}

// ResultStore reads persisted scenario results
type ResultStore interface {
	CountResults() (int, error)
}

// Handler contains the API handlers
type Handler struct {
	simulation Simulation
	results    ResultStore
	logger     *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(simulation Simulation, results ResultStore, log *logger.Logger) *Handler {
	return &Handler{
		simulation: simulation,
		results:    results,
		logger:     log.Named("api-handler"),
	}
}

// GetStatus returns the live run status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	state := h.simulation.State()
	if state == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"running": false})
		return
	}

	// Before the first distance sample the minimum is +Inf, which JSON
	// cannot encode; report it as null instead.
	var minDist any = state.MinimalRelativeDistance()
	if math.IsInf(state.MinimalRelativeDistance(), 1) {
		minDist = nil
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"running":                   state.IsRunning(),
		"paused":                    state.IsPaused(),
		"realtime":                  state.IsRealtime(),
		"avoid_collisions":          state.AvoidCollisions(),
		"physics_cycles":            state.PhysicsCycles(),
		"adsb_cycles":               state.ADSBCycles(),
		"skipped_ticks":             state.SkippedTicks(),
		"simulated_secs":            state.SimulatedTime().Seconds(),
		"collision":                 state.Collision(),
		"head_on_collision":         state.HeadOnCollision(),
		"minimal_relative_distance": minDist,
		"minimum_separation":        state.MinimumSeparation(),
	})
}

// GetAircraft returns the latest published vehicle snapshots
func (h *Handler) GetAircraft(w http.ResponseWriter, r *http.Request) {
	snaps := h.simulation.Snapshots()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"aircraft": snaps,
		"count":    len(snaps),
	})
}

// GetScenarios returns the loaded scenario entries
func (h *Handler) GetScenarios(w http.ResponseWriter, r *http.Request) {
	entries := h.simulation.Scenarios()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"scenarios": entries,
		"count":     len(entries),
	})
}

// GetScenario returns one loaded scenario entry by index
func (h *Handler) GetScenario(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid scenario index")
		return
	}
	entries := h.simulation.Scenarios()
	if idx < 0 || idx >= len(entries) {
		h.writeError(w, http.StatusNotFound, "scenario index out of range")
		return
	}
	h.writeJSON(w, http.StatusOK, entries[idx])
}

// PostPause toggles the pause flag of the active run
func (h *Handler) PostPause(w http.ResponseWriter, r *http.Request) {
	if h.simulation.State() == nil {
		h.writeError(w, http.StatusConflict, "no active run")
		return
	}
	h.simulation.TogglePause()
	h.writeJSON(w, http.StatusOK, map[string]any{"paused": h.simulation.State().IsPaused()})
}

// PostReset demands a reset of the active run to its initial state
func (h *Handler) PostReset(w http.ResponseWriter, r *http.Request) {
	if h.simulation.State() == nil {
		h.writeError(w, http.StatusConflict, "no active run")
		return
	}
	h.simulation.DemandReset()
	h.writeJSON(w, http.StatusAccepted, map[string]any{"reset": "demanded"})
}

// GetResultsSummary returns persisted-run counts
func (h *Handler) GetResultsSummary(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		h.writeError(w, http.StatusNotFound, "result storage not configured")
		return
	}
	count, err := h.results.CountResults()
	if err != nil {
		h.logger.Error("Failed to count results", logger.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to read results")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]any{"error": msg})
}
