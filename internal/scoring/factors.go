package scoring

import (
	"math"
	"time"

	"github.com/kindred-app/kindred/internal/store"
)

// FactorResult captures one factor's contribution to the total score.
type FactorResult struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Weight    float64 `json:"weight"`
	Weighted  float64 `json:"weighted"`
	Available bool    `json:"available"`
	Reason    string  `json:"reason"`
}

// CandidateContext bundles all inputs needed to score one kid–activity pair.
// Nil fields mean no data recorded; each factor falls back to its documented
// neutral default so the weighted sum stays comparable across activities with
// sparse history.
type CandidateContext struct {
	Activity   *store.Activity
	Preference *store.KidPreference
	Caregiver  *store.CaregiverPreference

	PeerCount         int
	PeerCountDegraded bool

	ObservationCount int

	FilterActive   bool
	ContextMatched bool

	Feedback *store.FeedbackSignal
	Now      time.Time
}

// Explanation is the structured per-factor explanation trail attached to each
// recommendation. One optional fragment per factor name.
type Explanation struct {
	PreferenceMatch    *LevelFragment   `json:"preference_match,omitempty"`
	ParentInfluence    *LevelFragment   `json:"parent_influence,omitempty"`
	SimilarKids        *CountFragment   `json:"similar_kids,omitempty"`
	TeacherEndorsement *CountFragment   `json:"teacher_endorsement,omitempty"`
	ContextMatch       *MatchFragment   `json:"context_match,omitempty"`
	NoveltyBoost       *NoveltyFragment `json:"novelty_boost,omitempty"`
	RecencyPenalty     *RecencyFragment `json:"recency_penalty,omitempty"`
}

type LevelFragment struct {
	Level string `json:"level"`
}

type CountFragment struct {
	Count int `json:"count"`
}

type MatchFragment struct {
	Matched bool `json:"matched"`
}

type NoveltyFragment struct {
	IsNovel bool `json:"is_novel"`
}

type RecencyFragment struct {
	DaysSinceDismissal *float64 `json:"days_since_dismissal,omitempty"`
}

// --- Individual factor calculators ---

var preferenceScores = map[store.PreferenceLevel]float64{
	store.LevelLoves:    1.0,
	store.LevelLikes:    0.7,
	store.LevelNeutral:  0.4,
	store.LevelDislikes: 0.1,
	store.LevelRefuses:  0.0,
}

// PreferenceMatchFactor maps the kid's recorded preference level to a score.
// No recorded preference scores 0.5: unknown is a neutral prior, not zero.
func PreferenceMatchFactor(cc *CandidateContext) FactorResult {
	if cc.Preference == nil {
		return FactorResult{Name: FactorPreferenceMatch, Score: 0.5, Available: false, Reason: "no preference recorded"}
	}
	score, ok := preferenceScores[cc.Preference.Level]
	if !ok {
		return FactorResult{Name: FactorPreferenceMatch, Score: 0.5, Available: false, Reason: "unrecognized level " + string(cc.Preference.Level)}
	}
	return FactorResult{Name: FactorPreferenceMatch, Score: score, Available: true, Reason: string(cc.Preference.Level)}
}

// ParentInfluenceFactor scores the household caregiver levels for the
// activity. Both caregivers at drop_anything is the strongest signal.
func ParentInfluenceFactor(cc *CandidateContext) FactorResult {
	if cc.Caregiver == nil {
		return FactorResult{Name: FactorParentInfluence, Score: 0.3, Available: false, Reason: "no caregiver preference"}
	}
	c1, c2 := cc.Caregiver.Caregiver1, cc.Caregiver.Caregiver2
	switch {
	case c1 == store.CaregiverDropAnything && c2 == store.CaregiverDropAnything:
		return FactorResult{Name: FactorParentInfluence, Score: 1.0, Available: true, Reason: "both caregivers drop anything"}
	case c1 == store.CaregiverDropAnything || c2 == store.CaregiverDropAnything:
		return FactorResult{Name: FactorParentInfluence, Score: 0.7, Available: true, Reason: "one caregiver drops anything"}
	case c1 == store.CaregiverSometimes || c2 == store.CaregiverSometimes:
		return FactorResult{Name: FactorParentInfluence, Score: 0.4, Available: true, Reason: "sometimes"}
	case c1 == store.CaregiverOnYourOwn || c2 == store.CaregiverOnYourOwn:
		return FactorResult{Name: FactorParentInfluence, Score: 0.2, Available: true, Reason: "on your own only"}
	default:
		return FactorResult{Name: FactorParentInfluence, Score: 0.3, Available: false, Reason: "no levels set"}
	}
}

// SimilarKidsFactor saturates at five agreeing peers: min(1, count/5).
func SimilarKidsFactor(cc *CandidateContext) FactorResult {
	if cc.PeerCountDegraded {
		return FactorResult{Name: FactorSimilarKids, Score: 0, Available: false, Reason: "peer query degraded, counted 0"}
	}
	score := math.Min(1.0, float64(cc.PeerCount)/5.0)
	return FactorResult{Name: FactorSimilarKids, Score: score, Available: true, Reason: "peer count evaluated"}
}

// TeacherEndorsementFactor saturates at three observations: min(1, count/3).
func TeacherEndorsementFactor(cc *CandidateContext) FactorResult {
	score := math.Min(1.0, float64(cc.ObservationCount)/3.0)
	return FactorResult{Name: FactorTeacherEndorsement, Score: score, Available: true, Reason: "observation count evaluated"}
}

// ContextMatchFactor is 1.0 on a match, 0.0 when a filter is active and the
// activity missed it, and 0.5 (neutral) when no filter was requested.
func ContextMatchFactor(cc *CandidateContext) FactorResult {
	if !cc.FilterActive {
		return FactorResult{Name: FactorContextMatch, Score: 0.5, Available: false, Reason: "no context filter"}
	}
	if cc.ContextMatched {
		return FactorResult{Name: FactorContextMatch, Score: 1.0, Available: true, Reason: "context matched"}
	}
	return FactorResult{Name: FactorContextMatch, Score: 0.0, Available: true, Reason: "context not matched"}
}

// NoveltyBoostFactor rewards surfacing activities the kid has never been
// shown: any feedback history at all zeroes the boost.
func NoveltyBoostFactor(cc *CandidateContext) FactorResult {
	if cc.Feedback == nil || !cc.Feedback.HasFeedback {
		return FactorResult{Name: FactorNoveltyBoost, Score: 1.0, Available: true, Reason: "never recommended before"}
	}
	return FactorResult{Name: FactorNoveltyBoost, Score: 0.0, Available: true, Reason: "has feedback history"}
}

const (
	recencyFullPenaltyDays = 7.0
	recencyNoPenaltyDays   = 30.0
)

// RecencyPenaltyFactor returns the raw recency score: 0.0 within seven days
// of a dismissal (full penalty once inverted), climbing linearly to 1.0 at
// thirty days. Never dismissed scores 1.0, meaning no penalty.
func RecencyPenaltyFactor(cc *CandidateContext) FactorResult {
	if cc.Feedback == nil || cc.Feedback.LastDismissedAt == nil {
		return FactorResult{Name: FactorRecencyPenalty, Score: 1.0, Available: false, Reason: "never dismissed"}
	}
	days := cc.Now.Sub(*cc.Feedback.LastDismissedAt).Hours() / 24.0
	score := recencyScore(days)
	return FactorResult{Name: FactorRecencyPenalty, Score: score, Available: true, Reason: "dismissal recency evaluated"}
}

func recencyScore(days float64) float64 {
	switch {
	case days <= recencyFullPenaltyDays:
		return 0.0
	case days >= recencyNoPenaltyDays:
		return 1.0
	default:
		return (days - recencyFullPenaltyDays) / (recencyNoPenaltyDays - recencyFullPenaltyDays)
	}
}

// Explain builds the per-factor explanation fragments for a candidate,
// mirroring the inputs each factor consumed.
func Explain(cc *CandidateContext) Explanation {
	ex := Explanation{
		SimilarKids:        &CountFragment{Count: cc.PeerCount},
		TeacherEndorsement: &CountFragment{Count: cc.ObservationCount},
		NoveltyBoost:       &NoveltyFragment{IsNovel: cc.Feedback == nil || !cc.Feedback.HasFeedback},
	}

	if cc.Preference != nil {
		ex.PreferenceMatch = &LevelFragment{Level: string(cc.Preference.Level)}
	} else {
		ex.PreferenceMatch = &LevelFragment{Level: "none"}
	}

	ex.ParentInfluence = &LevelFragment{Level: parentInfluenceLevel(cc.Caregiver)}

	if cc.FilterActive {
		ex.ContextMatch = &MatchFragment{Matched: cc.ContextMatched}
	}

	frag := &RecencyFragment{}
	if cc.Feedback != nil && cc.Feedback.LastDismissedAt != nil {
		days := cc.Now.Sub(*cc.Feedback.LastDismissedAt).Hours() / 24.0
		frag.DaysSinceDismissal = &days
	}
	ex.RecencyPenalty = frag

	return ex
}

// parentInfluenceLevel names which caregivers are at drop_anything.
func parentInfluenceLevel(cp *store.CaregiverPreference) string {
	if cp == nil {
		return "none"
	}
	switch {
	case cp.Caregiver1 == store.CaregiverDropAnything && cp.Caregiver2 == store.CaregiverDropAnything:
		return "both"
	case cp.Caregiver1 == store.CaregiverDropAnything:
		return "caregiver1"
	case cp.Caregiver2 == store.CaregiverDropAnything:
		return "caregiver2"
	default:
		return "none"
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
