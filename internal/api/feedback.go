package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kindred-app/kindred/internal/recommend"
	"github.com/kindred-app/kindred/internal/store"
)

type FeedbackHandler struct {
	engine *recommend.Engine
	store  store.Store
}

func NewFeedbackHandler(e *recommend.Engine, s store.Store) *FeedbackHandler {
	return &FeedbackHandler{engine: e, store: s}
}

type FeedbackRequest struct {
	KidID       string                 `json:"kid_id"`
	ActivityID  string                 `json:"activity_id"`
	Action      string                 `json:"action"`
	Score       float64                `json:"score"`
	Explanation map[string]interface{} `json:"explanation,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// Create appends one feedback row.
// POST /api/v1/feedback
func (h *FeedbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	kidID, err := uuid.Parse(req.KidID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid kid_id"})
		return
	}
	activityID, err := uuid.Parse(req.ActivityID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid activity_id"})
		return
	}

	fb := &store.RecommendationFeedback{
		KidID:               kidID,
		ActivityID:          activityID,
		Action:              store.FeedbackAction(req.Action),
		Score:               req.Score,
		ExplanationSnapshot: req.Explanation,
		ContextSnapshot:     req.Context,
	}

	if err := h.engine.RecordFeedback(r.Context(), fb); err != nil {
		switch {
		case errors.Is(err, recommend.ErrUnknownKid):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "kid not found"})
		case errors.Is(err, recommend.ErrUnknownActivity):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "activity not found"})
		case errors.Is(err, recommend.ErrInvalidAction):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			writeStoreError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, fb)
}

// Explain returns the scoring snapshot persisted with a feedback row.
// GET /api/v1/feedback/{id}/explain
func (h *FeedbackHandler) Explain(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid feedback id"})
		return
	}

	fb, err := h.store.GetFeedback(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if fb == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "feedback not found"})
		return
	}

	resp := map[string]interface{}{
		"feedback_id": fb.ID,
		"kid_id":      fb.KidID,
		"activity_id": fb.ActivityID,
		"action":      fb.Action,
		"score":       fb.Score,
		"recorded_at": fb.CreatedAt,
	}
	if fb.ExplanationSnapshot != nil {
		resp["explanation"] = fb.ExplanationSnapshot
	}
	if fb.ContextSnapshot != nil {
		resp["context"] = fb.ContextSnapshot
	}

	writeJSON(w, http.StatusOK, resp)
}
