package scoring

import (
	"log/slog"

	"github.com/google/uuid"
)

// ScoringResult captures the complete scoring output for one kid–activity
// pair. TotalScore is a weighted sum minus the recency penalty and is not
// bounded to [0,1]; DisplayPercent is the clamped presentation value.
type ScoringResult struct {
	ActivityID     uuid.UUID      `json:"activity_id"`
	TotalScore     float64        `json:"total_score"`
	DisplayPercent float64        `json:"display_percent"`
	Factors        []FactorResult `json:"factors"`
	Explanation    Explanation    `json:"explanation"`
}

// Scorer orchestrates the seven-factor weighted additive scoring engine.
type Scorer struct {
	weights WeightSet
	logger  *slog.Logger
}

// NewScorer creates a Scorer with the given weights.
func NewScorer(weights WeightSet, logger *slog.Logger) *Scorer {
	return &Scorer{weights: weights, logger: logger}
}

// Weights returns the weight set the scorer was built with.
func (s *Scorer) Weights() WeightSet {
	return s.weights
}

// ScoreCandidate computes the full scoring result for one kid–activity pair.
//
// The first six factors add weight × score. Recency is a penalty: its raw
// score is inverted before subtraction, so a fresh dismissal (raw 0.0)
// subtracts the full recency weight. A disabled factor contributes exactly 0
// regardless of its stored weight.
func (s *Scorer) ScoreCandidate(cc *CandidateContext) ScoringResult {
	factors := []FactorResult{
		PreferenceMatchFactor(cc),
		ParentInfluenceFactor(cc),
		SimilarKidsFactor(cc),
		TeacherEndorsementFactor(cc),
		ContextMatchFactor(cc),
		NoveltyBoostFactor(cc),
		RecencyPenaltyFactor(cc),
	}

	var total float64
	for i := range factors {
		fw, ok := s.weights.Get(factors[i].Name)
		if !ok || !fw.Enabled {
			factors[i].Weight = 0
			factors[i].Weighted = 0
			continue
		}
		factors[i].Weight = fw.Weight
		if factors[i].Name == FactorRecencyPenalty {
			factors[i].Weighted = -fw.Weight * (1.0 - factors[i].Score)
		} else {
			factors[i].Weighted = fw.Weight * factors[i].Score
		}
		total += factors[i].Weighted
	}

	return ScoringResult{
		ActivityID:     cc.Activity.ID,
		TotalScore:     total,
		DisplayPercent: clamp(total, 0, 1) * 100,
		Factors:        factors,
		Explanation:    Explain(cc),
	}
}
