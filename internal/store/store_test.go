package store

import (
	"testing"
)

func TestPreferenceLevelValues(t *testing.T) {
	levels := []PreferenceLevel{
		LevelLoves, LevelLikes, LevelNeutral, LevelDislikes, LevelRefuses,
	}
	expected := []string{"loves", "likes", "neutral", "dislikes", "refuses"}
	for i, l := range levels {
		if string(l) != expected[i] {
			t.Errorf("expected %s, got %s", expected[i], l)
		}
	}
}

func TestCaregiverLevelValues(t *testing.T) {
	levels := []CaregiverLevel{
		CaregiverDropAnything, CaregiverSometimes, CaregiverOnYourOwn, CaregiverUnset,
	}
	expected := []string{"drop_anything", "sometimes", "on_your_own", "unset"}
	for i, l := range levels {
		if string(l) != expected[i] {
			t.Errorf("expected %s, got %s", expected[i], l)
		}
	}
}

func TestFeedbackActionValues(t *testing.T) {
	actions := []FeedbackAction{ActionSelected, ActionSaved, ActionDismissed}
	expected := []string{"selected", "saved", "dismissed"}
	for i, a := range actions {
		if string(a) != expected[i] {
			t.Errorf("expected %s, got %s", expected[i], a)
		}
	}
}

func TestFeedbackSignalDefaults(t *testing.T) {
	sig := FeedbackSignal{}
	if sig.HasFeedback {
		t.Error("expected HasFeedback false by default")
	}
	if sig.LastDismissedAt != nil {
		t.Error("expected nil LastDismissedAt")
	}
}
