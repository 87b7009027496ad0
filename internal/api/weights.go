package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kindred-app/kindred/internal/recommend"
	"github.com/kindred-app/kindred/internal/scoring"
)

type WeightsHandler struct {
	engine *recommend.Engine
}

func NewWeightsHandler(e *recommend.Engine) *WeightsHandler {
	return &WeightsHandler{engine: e}
}

// Get returns the caller's effective weight set, balanced defaults included.
// GET /api/v1/weights
func (h *WeightsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws, err := h.engine.LoadWeights(r.Context(), UserID(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.AsMap())
}

type UpdateWeightRequest struct {
	Weight  float64 `json:"weight"`
	Enabled bool    `json:"enabled"`
}

// Update upserts one factor weight for the caller.
// PUT /api/v1/weights/{factor}
func (h *WeightsHandler) Update(w http.ResponseWriter, r *http.Request) {
	factor := chi.URLParam(r, "factor")

	var req UpdateWeightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ws, err := h.engine.UpdateWeight(r.Context(), UserID(r), factor, req.Weight, req.Enabled)
	if err != nil {
		if errors.Is(err, scoring.ErrInvalidWeight) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ws.AsMap())
}

// ApplyPreset replaces all seven factor weights with a named preset.
// POST /api/v1/weights/presets/{name}
func (h *WeightsHandler) ApplyPreset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	ws, err := h.engine.ApplyPreset(r.Context(), UserID(r), name)
	if err != nil {
		if errors.Is(err, recommend.ErrUnknownPreset) {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":   err.Error(),
				"presets": scoring.PresetNames(),
			})
			return
		}
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ws.AsMap())
}
