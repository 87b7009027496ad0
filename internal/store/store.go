package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PreferenceLevel is a kid's explicit stance on an activity.
type PreferenceLevel string

const (
	LevelLoves    PreferenceLevel = "loves"
	LevelLikes    PreferenceLevel = "likes"
	LevelNeutral  PreferenceLevel = "neutral"
	LevelDislikes PreferenceLevel = "dislikes"
	LevelRefuses  PreferenceLevel = "refuses"
)

// CaregiverLevel is how willing a caregiver is to join an activity.
type CaregiverLevel string

const (
	CaregiverDropAnything CaregiverLevel = "drop_anything"
	CaregiverSometimes    CaregiverLevel = "sometimes"
	CaregiverOnYourOwn    CaregiverLevel = "on_your_own"
	CaregiverUnset        CaregiverLevel = "unset"
)

// FeedbackAction is what the user did with a recommendation.
type FeedbackAction string

const (
	ActionSelected  FeedbackAction = "selected"
	ActionSaved     FeedbackAction = "saved"
	ActionDismissed FeedbackAction = "dismissed"
)

type Kid struct {
	ID            uuid.UUID  `json:"kid_id"`
	HouseholdID   uuid.UUID  `json:"household_id"`
	Name          string     `json:"name"`
	BirthYear     int        `json:"birth_year,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

// Activity is a shared catalog entry, not owned by any one household.
type Activity struct {
	ID          uuid.UUID `json:"activity_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type KidPreference struct {
	KidID      uuid.UUID       `json:"kid_id"`
	ActivityID uuid.UUID       `json:"activity_id"`
	Level      PreferenceLevel `json:"level"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// CaregiverPreference sits on the household↔activity link, one row per link,
// with independent levels for each caregiver.
type CaregiverPreference struct {
	HouseholdID uuid.UUID      `json:"household_id"`
	ActivityID  uuid.UUID      `json:"activity_id"`
	Caregiver1  CaregiverLevel `json:"caregiver1"`
	Caregiver2  CaregiverLevel `json:"caregiver2"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ActivityContext is a situational tag on an activity, joined with the
// context's attributes. Early data was tagged by name only, so Location /
// Energy / TimeOfDay may be empty while Name carries the signal.
type ActivityContext struct {
	ActivityID uuid.UUID `json:"activity_id"`
	ContextID  uuid.UUID `json:"context_id"`
	Name       string    `json:"name"`
	Location   string    `json:"location,omitempty"`
	Energy     string    `json:"energy,omitempty"`
	TimeOfDay  string    `json:"time_of_day,omitempty"`
	FitScore   float64   `json:"fit_score"`
}

// TeacherObservation is append-only; only the visibility flag may change
// after creation.
type TeacherObservation struct {
	ID              uuid.UUID  `json:"id"`
	KidID           uuid.UUID  `json:"kid_id"`
	TeacherID       uuid.UUID  `json:"teacher_id"`
	ActivityID      *uuid.UUID `json:"activity_id,omitempty"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	ObservationType string     `json:"observation_type,omitempty"`
	ObservedAt      time.Time  `json:"observed_at"`
	VisibleToParent bool       `json:"visible_to_parent"`
	CreatedAt       time.Time  `json:"created_at"`
}

// RecommendationWeight is one user's weight for one scoring factor. Weights
// need not sum to 1; they feed a weighted sum, not a convex combination.
type RecommendationWeight struct {
	UserID     uuid.UUID `json:"user_id"`
	FactorName string    `json:"factor_name"`
	Weight     float64   `json:"weight"`
	Enabled    bool      `json:"enabled"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RecommendationFeedback is the append-only record of what a user did with a
// recommendation, snapshotting the score and explanation that produced it.
type RecommendationFeedback struct {
	ID                  uuid.UUID              `json:"id"`
	KidID               uuid.UUID              `json:"kid_id"`
	ActivityID          uuid.UUID              `json:"activity_id"`
	Action              FeedbackAction         `json:"action"`
	Score               float64                `json:"score"`
	ExplanationSnapshot map[string]interface{} `json:"explanation_snapshot,omitempty"`
	ContextSnapshot     map[string]interface{} `json:"context_snapshot,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
}

// FeedbackSignal is the per-activity rollup the novelty and recency scorers
// consume: whether any feedback exists, and the most recent dismissal.
type FeedbackSignal struct {
	ActivityID      uuid.UUID  `json:"activity_id"`
	HasFeedback     bool       `json:"has_feedback"`
	LastDismissedAt *time.Time `json:"last_dismissed_at,omitempty"`
}

type Stats struct {
	TotalKids       int     `json:"total_kids"`
	TotalActivities int     `json:"total_activities"`
	TotalFeedback   int     `json:"total_feedback"`
	SelectedCount   int     `json:"selected_count"`
	SavedCount      int     `json:"saved_count"`
	DismissedCount  int     `json:"dismissed_count"`
	AvgScore        float64 `json:"avg_score"`
}

type Store interface {
	GetKid(ctx context.Context, id uuid.UUID) (*Kid, error)
	GetActivity(ctx context.Context, id uuid.UUID) (*Activity, error)

	// ListHouseholdActivities returns the catalog activities linked to a
	// household, ordered by activity id for deterministic scoring runs.
	ListHouseholdActivities(ctx context.Context, householdID uuid.UUID) ([]*Activity, error)

	GetKidPreferences(ctx context.Context, kidID uuid.UUID) ([]*KidPreference, error)
	UpsertKidPreference(ctx context.Context, pref *KidPreference) error

	GetCaregiverPreferences(ctx context.Context, householdID uuid.UUID) ([]*CaregiverPreference, error)

	// GetActivityContexts returns context tags with joined attributes for a
	// set of activities.
	GetActivityContexts(ctx context.Context, activityIDs []uuid.UUID) ([]*ActivityContext, error)

	// CountObservationsByActivity returns, per activity, how many teacher
	// observations reference it for the given kid. When visibleOnly is set,
	// only rows flagged visible_to_parent are counted.
	CountObservationsByActivity(ctx context.Context, kidID uuid.UUID, visibleOnly bool) (map[uuid.UUID]int, error)

	// CountPeerPreferences counts other kids, any household, whose preference
	// for the activity is loves or likes. Only the requesting kid is excluded;
	// anonymized to a count only.
	CountPeerPreferences(ctx context.Context, activityID, excludeKidID uuid.UUID) (int, error)

	GetFeedbackSignals(ctx context.Context, kidID uuid.UUID) (map[uuid.UUID]*FeedbackSignal, error)
	CreateFeedback(ctx context.Context, fb *RecommendationFeedback) error
	GetFeedback(ctx context.Context, id uuid.UUID) (*RecommendationFeedback, error)

	GetWeights(ctx context.Context, userID uuid.UUID) ([]*RecommendationWeight, error)
	UpsertWeight(ctx context.Context, w *RecommendationWeight) error

	GetStats(ctx context.Context) (*Stats, error)

	Close() error
}
