package scoring

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kindred-app/kindred/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Kid loves the activity, no other data, balanced weights, no filter:
//
//	0.40×1.0 + 0.20×0.3 + 0.20×0 + 0.10×0 + 0.10×0.5 + 0.05×1.0 − 0.15×0 = 0.565
func TestScoreCandidateLovesOnly(t *testing.T) {
	s := NewScorer(BalancedWeights(), discardLogger())
	cc := &CandidateContext{
		Activity:   &store.Activity{ID: uuid.New()},
		Preference: &store.KidPreference{Level: store.LevelLoves},
		Now:        time.Now(),
	}

	r := s.ScoreCandidate(cc)
	if math.Abs(r.TotalScore-0.565) > 0.0001 {
		t.Errorf("expected 0.565, got %f", r.TotalScore)
	}
	if len(r.Factors) != 7 {
		t.Errorf("expected 7 factors, got %d", len(r.Factors))
	}
}

// A dismissal three days ago kills the novelty boost and applies the full
// recency penalty; the score drops well below the no-history run.
func TestScoreCandidateRecentDismissal(t *testing.T) {
	s := NewScorer(BalancedWeights(), discardLogger())
	now := time.Now()
	dismissed := now.Add(-3 * 24 * time.Hour)
	id := uuid.New()

	fresh := s.ScoreCandidate(&CandidateContext{
		Activity:   &store.Activity{ID: id},
		Preference: &store.KidPreference{Level: store.LevelLoves},
		Now:        now,
	})
	penalized := s.ScoreCandidate(&CandidateContext{
		Activity:   &store.Activity{ID: id},
		Preference: &store.KidPreference{Level: store.LevelLoves},
		Feedback:   &store.FeedbackSignal{HasFeedback: true, LastDismissedAt: &dismissed},
		Now:        now,
	})

	if penalized.TotalScore >= fresh.TotalScore {
		t.Errorf("expected penalty: %f >= %f", penalized.TotalScore, fresh.TotalScore)
	}
	// novelty −0.05, recency penalty −0.15
	want := fresh.TotalScore - 0.05 - 0.15
	if math.Abs(penalized.TotalScore-want) > 0.0001 {
		t.Errorf("expected %f, got %f", want, penalized.TotalScore)
	}
}

// Disabling a factor must be indistinguishable from the factor not existing,
// whatever weight the row still carries.
func TestDisabledFactorContributesZero(t *testing.T) {
	cc := func() *CandidateContext {
		return &CandidateContext{
			Activity:   &store.Activity{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111")},
			Preference: &store.KidPreference{Level: store.LevelLikes},
			PeerCount:  4,
			Now:        time.Unix(1700000000, 0),
		}
	}

	disabled := BalancedWeights()
	disabled.SimilarKids = FactorWeight{Weight: 0.9, Enabled: false}

	absent := BalancedWeights()
	absent.SimilarKids = FactorWeight{Weight: 0, Enabled: true}

	a := NewScorer(disabled, discardLogger()).ScoreCandidate(cc())
	b := NewScorer(absent, discardLogger()).ScoreCandidate(cc())

	if a.TotalScore != b.TotalScore {
		t.Errorf("disabled factor leaked into score: %f != %f", a.TotalScore, b.TotalScore)
	}

	for _, f := range a.Factors {
		if f.Name == FactorSimilarKids && f.Weighted != 0 {
			t.Errorf("disabled factor weighted contribution must be 0, got %f", f.Weighted)
		}
	}
}

func TestDisabledRecencyRemovesPenalty(t *testing.T) {
	now := time.Now()
	dismissed := now.Add(-24 * time.Hour)
	cc := func() *CandidateContext {
		return &CandidateContext{
			Activity: &store.Activity{ID: uuid.New()},
			Feedback: &store.FeedbackSignal{HasFeedback: true, LastDismissedAt: &dismissed},
			Now:      now,
		}
	}

	on := BalancedWeights()
	off := BalancedWeights()
	off.RecencyPenalty = FactorWeight{Weight: 0.15, Enabled: false}

	withPenalty := NewScorer(on, discardLogger()).ScoreCandidate(cc())
	withoutPenalty := NewScorer(off, discardLogger()).ScoreCandidate(cc())

	if withoutPenalty.TotalScore-withPenalty.TotalScore != 0.15 {
		t.Errorf("expected exactly the 0.15 penalty back, got delta %f",
			withoutPenalty.TotalScore-withPenalty.TotalScore)
	}
}

func TestDisplayPercentClamped(t *testing.T) {
	now := time.Now()
	dismissed := now
	// refuses + fresh dismissal under balanced weights goes negative
	r := NewScorer(BalancedWeights(), discardLogger()).ScoreCandidate(&CandidateContext{
		Activity:   &store.Activity{ID: uuid.New()},
		Preference: &store.KidPreference{Level: store.LevelRefuses},
		Feedback:   &store.FeedbackSignal{HasFeedback: true, LastDismissedAt: &dismissed},
		Now:        now,
	})
	if r.TotalScore >= 0 {
		t.Fatalf("expected negative raw score, got %f", r.TotalScore)
	}
	if r.DisplayPercent != 0 {
		t.Errorf("expected clamped display 0, got %f", r.DisplayPercent)
	}
}
