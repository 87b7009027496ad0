package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/kindred-app/kindred/internal/recommend"
	"github.com/kindred-app/kindred/internal/roster"
	"github.com/kindred-app/kindred/internal/scoring"
)

type RecommendationsHandler struct {
	engine *recommend.Engine
}

func NewRecommendationsHandler(e *recommend.Engine) *RecommendationsHandler {
	return &RecommendationsHandler{engine: e}
}

type RecommendRequest struct {
	KidID   string                 `json:"kid_id"`
	Context *scoring.ContextFilter `json:"context,omitempty"`
	Limit   int                    `json:"limit,omitempty"`
}

// Create runs a scoring pass and returns the ranked recommendations.
// POST /api/v1/recommendations
func (h *RecommendationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	kidID, err := uuid.Parse(req.KidID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid kid_id"})
		return
	}

	engineReq := recommend.Request{
		KidID:      kidID,
		UserID:     UserID(r),
		CallerRole: callerRole(Roles(r)),
		Limit:      req.Limit,
	}
	if req.Context != nil {
		engineReq.Context = *req.Context
	}

	res, err := h.engine.Recommend(r.Context(), engineReq)
	if err != nil {
		if errors.Is(err, recommend.ErrUnknownKid) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "kid not found"})
			return
		}
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// callerRole picks the scoring-relevant role: a teacher caller sees all
// observations, everyone else only parent-visible rows.
func callerRole(roles roster.RoleSet) roster.Role {
	if roles.Has(roster.RoleTeacher) {
		return roster.RoleTeacher
	}
	return roster.RoleParent
}

// writeStoreError surfaces a preference-store failure as retryable: the whole
// request failed and the caller may retry.
func writeStoreError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
		"error":     err.Error(),
		"retryable": true,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
