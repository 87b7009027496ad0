package events

import "time"

// RecommendationServedEvent is published after a scoring run completes.
type RecommendationServedEvent struct {
	KidID           string    `json:"kid_id"`
	UserID          string    `json:"user_id"`
	Count           int       `json:"count"`
	TopScore        float64   `json:"top_score,omitempty"`
	DegradedFactors []string  `json:"degraded_factors,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// FeedbackRecordedEvent is published when a user acts on a recommendation.
type FeedbackRecordedEvent struct {
	FeedbackID string  `json:"feedback_id"`
	KidID      string  `json:"kid_id"`
	ActivityID string  `json:"activity_id"`
	Action     string  `json:"action"`
	Score      float64 `json:"score"`
}

// WeightsUpdatedEvent invalidates cached weight sets for a user.
type WeightsUpdatedEvent struct {
	UserID     string `json:"user_id"`
	FactorName string `json:"factor_name,omitempty"`
	Preset     string `json:"preset,omitempty"`
}
