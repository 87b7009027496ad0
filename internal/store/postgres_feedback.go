package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *PostgresStore) GetFeedbackSignals(ctx context.Context, kidID uuid.UUID) (map[uuid.UUID]*FeedbackSignal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT activity_id,
			MAX(CASE WHEN action = 'dismissed' THEN created_at END)
		FROM recommendation_feedback
		WHERE kid_id = $1
		GROUP BY activity_id`, kidID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	signals := make(map[uuid.UUID]*FeedbackSignal)
	for rows.Next() {
		sig := &FeedbackSignal{HasFeedback: true}
		if err := rows.Scan(&sig.ActivityID, &sig.LastDismissedAt); err != nil {
			return nil, err
		}
		signals[sig.ActivityID] = sig
	}
	return signals, rows.Err()
}

func (s *PostgresStore) CreateFeedback(ctx context.Context, fb *RecommendationFeedback) error {
	explanationJSON, _ := json.Marshal(fb.ExplanationSnapshot)
	contextJSON, _ := json.Marshal(fb.ContextSnapshot)

	return s.pool.QueryRow(ctx, `
		INSERT INTO recommendation_feedback (kid_id, activity_id, action, score,
			explanation_snapshot, context_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		fb.KidID, fb.ActivityID, fb.Action, fb.Score, explanationJSON, contextJSON,
	).Scan(&fb.ID, &fb.CreatedAt)
}

func (s *PostgresStore) GetFeedback(ctx context.Context, id uuid.UUID) (*RecommendationFeedback, error) {
	fb := &RecommendationFeedback{}
	var explanationJSON, contextJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, kid_id, activity_id, action, score,
			explanation_snapshot, context_snapshot, created_at
		FROM recommendation_feedback WHERE id = $1`, id,
	).Scan(&fb.ID, &fb.KidID, &fb.ActivityID, &fb.Action, &fb.Score,
		&explanationJSON, &contextJSON, &fb.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if explanationJSON != nil {
		_ = json.Unmarshal(explanationJSON, &fb.ExplanationSnapshot)
	}
	if contextJSON != nil {
		_ = json.Unmarshal(contextJSON, &fb.ContextSnapshot)
	}
	return fb, nil
}

func (s *PostgresStore) GetWeights(ctx context.Context, userID uuid.UUID) ([]*RecommendationWeight, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, factor_name, weight, enabled, updated_at
		FROM recommendation_weights WHERE user_id = $1
		ORDER BY factor_name ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RecommendationWeight
	for rows.Next() {
		w := &RecommendationWeight{}
		if err := rows.Scan(&w.UserID, &w.FactorName, &w.Weight, &w.Enabled, &w.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertWeight(ctx context.Context, w *RecommendationWeight) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO recommendation_weights (user_id, factor_name, weight, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, factor_name) DO UPDATE
		SET weight = EXCLUDED.weight, enabled = EXCLUDED.enabled, updated_at = now()
		RETURNING updated_at`,
		w.UserID, w.FactorName, w.Weight, w.Enabled,
	).Scan(&w.UpdatedAt)
}
