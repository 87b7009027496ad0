package recommend

import (
	"context"
	"errors"
	"fmt"

	"github.com/kindred-app/kindred/internal/events"
	"github.com/kindred-app/kindred/internal/store"
)

// ErrInvalidAction marks a feedback action outside {selected, saved, dismissed}.
var ErrInvalidAction = errors.New("invalid feedback action")

// RecordFeedback appends one feedback row: the user's action, the score and
// explanation that produced it, and the context it was shown under. This is
// the only write path feeding the novelty and recency scorers.
func (e *Engine) RecordFeedback(ctx context.Context, fb *store.RecommendationFeedback) error {
	switch fb.Action {
	case store.ActionSelected, store.ActionSaved, store.ActionDismissed:
	default:
		return fmt.Errorf("%w %q", ErrInvalidAction, fb.Action)
	}

	kid, err := e.store.GetKid(ctx, fb.KidID)
	if err != nil {
		return err
	}
	if kid == nil {
		return ErrUnknownKid
	}
	activity, err := e.store.GetActivity(ctx, fb.ActivityID)
	if err != nil {
		return err
	}
	if activity == nil {
		return ErrUnknownActivity
	}

	if err := e.store.CreateFeedback(ctx, fb); err != nil {
		return err
	}

	// Acceptance flow: selecting a recommendation seeds a "likes" preference
	// for kids with no recorded stance, so the next run scores on real data.
	// An existing preference is never overwritten from here.
	if fb.Action == store.ActionSelected {
		if err := e.seedPreference(ctx, fb); err != nil {
			e.logger.Warn("failed to seed preference from acceptance", "kid_id", fb.KidID, "activity_id", fb.ActivityID, "error", err)
		}
	}

	if e.events != nil {
		ev := events.FeedbackRecordedEvent{
			FeedbackID: fb.ID.String(),
			KidID:      fb.KidID.String(),
			ActivityID: fb.ActivityID.String(),
			Action:     string(fb.Action),
			Score:      fb.Score,
		}
		if err := e.events.Publish(events.SubjectFeedbackRecorded(ev.KidID), ev); err != nil {
			e.logger.Warn("failed to publish feedback event", "error", err)
		}
	}
	return nil
}

func (e *Engine) seedPreference(ctx context.Context, fb *store.RecommendationFeedback) error {
	prefs, err := e.store.GetKidPreferences(ctx, fb.KidID)
	if err != nil {
		return err
	}
	for _, p := range prefs {
		if p.ActivityID == fb.ActivityID {
			return nil
		}
	}
	return e.store.UpsertKidPreference(ctx, &store.KidPreference{
		KidID:      fb.KidID,
		ActivityID: fb.ActivityID,
		Level:      store.LevelLikes,
	})
}
