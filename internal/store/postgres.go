package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetKid(ctx context.Context, id uuid.UUID) (*Kid, error) {
	k := &Kid{}
	err := s.pool.QueryRow(ctx, `
		SELECT kid_id, household_id, name, birth_year, active, created_at, deactivated_at
		FROM kids WHERE kid_id = $1`, id,
	).Scan(&k.ID, &k.HouseholdID, &k.Name, &k.BirthYear, &k.Active, &k.CreatedAt, &k.DeactivatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return k, nil
}

func (s *PostgresStore) GetActivity(ctx context.Context, id uuid.UUID) (*Activity, error) {
	a := &Activity{}
	err := s.pool.QueryRow(ctx, `
		SELECT activity_id, name, category, description, created_at
		FROM activities WHERE activity_id = $1`, id,
	).Scan(&a.ID, &a.Name, &a.Category, &a.Description, &a.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *PostgresStore) ListHouseholdActivities(ctx context.Context, householdID uuid.UUID) ([]*Activity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.activity_id, a.name, a.category, a.description, a.created_at
		FROM activities a
		JOIN household_activities ha ON ha.activity_id = a.activity_id
		WHERE ha.household_id = $1
		ORDER BY a.activity_id ASC`, householdID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Activity
	for rows.Next() {
		a := &Activity{}
		if err := rows.Scan(&a.ID, &a.Name, &a.Category, &a.Description, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetKidPreferences(ctx context.Context, kidID uuid.UUID) ([]*KidPreference, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT kid_id, activity_id, level, updated_at
		FROM kid_preferences WHERE kid_id = $1`, kidID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*KidPreference
	for rows.Next() {
		p := &KidPreference{}
		if err := rows.Scan(&p.KidID, &p.ActivityID, &p.Level, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertKidPreference(ctx context.Context, pref *KidPreference) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO kid_preferences (kid_id, activity_id, level)
		VALUES ($1, $2, $3)
		ON CONFLICT (kid_id, activity_id) DO UPDATE
		SET level = EXCLUDED.level, updated_at = now()
		RETURNING updated_at`,
		pref.KidID, pref.ActivityID, pref.Level,
	).Scan(&pref.UpdatedAt)
}

func (s *PostgresStore) GetCaregiverPreferences(ctx context.Context, householdID uuid.UUID) ([]*CaregiverPreference, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT household_id, activity_id, caregiver1, caregiver2, updated_at
		FROM caregiver_preferences WHERE household_id = $1`, householdID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CaregiverPreference
	for rows.Next() {
		p := &CaregiverPreference{}
		if err := rows.Scan(&p.HouseholdID, &p.ActivityID, &p.Caregiver1, &p.Caregiver2, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetActivityContexts(ctx context.Context, activityIDs []uuid.UUID) ([]*ActivityContext, error) {
	if len(activityIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT ac.activity_id, c.context_id, c.name,
			COALESCE(c.location, ''), COALESCE(c.energy, ''), COALESCE(c.time_of_day, ''),
			ac.fit_score
		FROM activity_contexts ac
		JOIN contexts c ON c.context_id = ac.context_id
		WHERE ac.activity_id = ANY($1)`, activityIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ActivityContext
	for rows.Next() {
		t := &ActivityContext{}
		if err := rows.Scan(&t.ActivityID, &t.ContextID, &t.Name, &t.Location, &t.Energy, &t.TimeOfDay, &t.FitScore); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountObservationsByActivity(ctx context.Context, kidID uuid.UUID, visibleOnly bool) (map[uuid.UUID]int, error) {
	query := `
		SELECT activity_id, COUNT(*)
		FROM teacher_observations
		WHERE kid_id = $1 AND activity_id IS NOT NULL`
	if visibleOnly {
		query += ` AND visible_to_parent = true`
	}
	query += ` GROUP BY activity_id`

	rows, err := s.pool.Query(ctx, query, kidID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (s *PostgresStore) CountPeerPreferences(ctx context.Context, activityID, excludeKidID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM kid_preferences
		WHERE activity_id = $1
		  AND kid_id <> $2
		  AND level IN ('loves', 'likes')`,
		activityID, excludeKidID,
	).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PostgresStore) GetStats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM kids WHERE active),
			(SELECT COUNT(*) FROM activities),
			(SELECT COUNT(*) FROM recommendation_feedback),
			(SELECT COUNT(*) FROM recommendation_feedback WHERE action = 'selected'),
			(SELECT COUNT(*) FROM recommendation_feedback WHERE action = 'saved'),
			(SELECT COUNT(*) FROM recommendation_feedback WHERE action = 'dismissed'),
			COALESCE((SELECT AVG(score) FROM recommendation_feedback), 0)`,
	).Scan(&st.TotalKids, &st.TotalActivities, &st.TotalFeedback,
		&st.SelectedCount, &st.SavedCount, &st.DismissedCount, &st.AvgScore)
	if err != nil {
		return nil, err
	}
	return st, nil
}
