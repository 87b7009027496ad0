package scoring

import (
	"errors"
	"fmt"
)

// ErrInvalidWeight marks a weight update rejected at the configuration
// boundary: out-of-range value or unknown factor name.
var ErrInvalidWeight = errors.New("invalid weight")

// Factor names, fixed. Unknown names are rejected at the configuration
// boundary rather than silently ignored.
const (
	FactorPreferenceMatch    = "preference_match"
	FactorParentInfluence    = "parent_influence"
	FactorSimilarKids        = "similar_kids"
	FactorTeacherEndorsement = "teacher_endorsement"
	FactorContextMatch       = "context_match"
	FactorNoveltyBoost       = "novelty_boost"
	FactorRecencyPenalty     = "recency_penalty"
)

// FactorNames lists all seven factors in combination order.
var FactorNames = []string{
	FactorPreferenceMatch,
	FactorParentInfluence,
	FactorSimilarKids,
	FactorTeacherEndorsement,
	FactorContextMatch,
	FactorNoveltyBoost,
	FactorRecencyPenalty,
}

// FactorWeight is one factor's configured weight plus its enabled flag.
// A disabled factor contributes exactly 0 regardless of weight.
type FactorWeight struct {
	Weight  float64 `json:"weight"`
	Enabled bool    `json:"enabled"`
}

// WeightSet holds the per-user weights for all seven scoring factors.
// Weights do not need to sum to 1: they feed a weighted sum, not a convex
// combination. The UI normalizes for display only.
type WeightSet struct {
	PreferenceMatch    FactorWeight
	ParentInfluence    FactorWeight
	SimilarKids        FactorWeight
	TeacherEndorsement FactorWeight
	ContextMatch       FactorWeight
	NoveltyBoost       FactorWeight
	RecencyPenalty     FactorWeight
}

// Preset names.
const (
	PresetBalanced     = "balanced"
	PresetKidLed       = "kid-led"
	PresetParentGuided = "parent-guided"
	PresetDiscovery    = "discovery"
)

func enabled(w float64) FactorWeight { return FactorWeight{Weight: w, Enabled: true} }

// BalancedWeights is the default weight set applied when a user has no stored
// weight rows.
func BalancedWeights() WeightSet {
	return WeightSet{
		PreferenceMatch:    enabled(0.40),
		ParentInfluence:    enabled(0.20),
		SimilarKids:        enabled(0.20),
		TeacherEndorsement: enabled(0.10),
		ContextMatch:       enabled(0.10),
		NoveltyBoost:       enabled(0.05),
		RecencyPenalty:     enabled(0.15),
	}
}

func kidLedWeights() WeightSet {
	return WeightSet{
		PreferenceMatch:    enabled(0.60),
		ParentInfluence:    enabled(0.05),
		SimilarKids:        enabled(0.15),
		TeacherEndorsement: enabled(0.05),
		ContextMatch:       enabled(0.15),
		NoveltyBoost:       enabled(0.10),
		RecencyPenalty:     enabled(0.10),
	}
}

func parentGuidedWeights() WeightSet {
	return WeightSet{
		PreferenceMatch:    enabled(0.25),
		ParentInfluence:    enabled(0.45),
		SimilarKids:        enabled(0.10),
		TeacherEndorsement: enabled(0.15),
		ContextMatch:       enabled(0.10),
		NoveltyBoost:       enabled(0.05),
		RecencyPenalty:     enabled(0.15),
	}
}

func discoveryWeights() WeightSet {
	return WeightSet{
		PreferenceMatch:    enabled(0.20),
		ParentInfluence:    enabled(0.10),
		SimilarKids:        enabled(0.25),
		TeacherEndorsement: enabled(0.10),
		ContextMatch:       enabled(0.10),
		NoveltyBoost:       enabled(0.35),
		RecencyPenalty:     enabled(0.05),
	}
}

// Preset returns the named weight set, or false for an unknown name.
func Preset(name string) (WeightSet, bool) {
	switch name {
	case PresetBalanced:
		return BalancedWeights(), true
	case PresetKidLed:
		return kidLedWeights(), true
	case PresetParentGuided:
		return parentGuidedWeights(), true
	case PresetDiscovery:
		return discoveryWeights(), true
	}
	return WeightSet{}, false
}

// PresetNames lists the available presets.
func PresetNames() []string {
	return []string{PresetBalanced, PresetKidLed, PresetParentGuided, PresetDiscovery}
}

// ValidateWeight checks a single (factor, weight) pair at the configuration
// boundary. Out-of-range values are rejected, never clamped.
func ValidateWeight(factorName string, weight float64) error {
	if !knownFactor(factorName) {
		return fmt.Errorf("%w: unknown factor %q", ErrInvalidWeight, factorName)
	}
	if weight < 0 || weight > 1 {
		return fmt.Errorf("%w: %.4f for %s outside [0,1]", ErrInvalidWeight, weight, factorName)
	}
	return nil
}

func knownFactor(name string) bool {
	for _, f := range FactorNames {
		if f == name {
			return true
		}
	}
	return false
}

// Get returns the weight for a factor by name.
func (ws WeightSet) Get(factorName string) (FactorWeight, bool) {
	switch factorName {
	case FactorPreferenceMatch:
		return ws.PreferenceMatch, true
	case FactorParentInfluence:
		return ws.ParentInfluence, true
	case FactorSimilarKids:
		return ws.SimilarKids, true
	case FactorTeacherEndorsement:
		return ws.TeacherEndorsement, true
	case FactorContextMatch:
		return ws.ContextMatch, true
	case FactorNoveltyBoost:
		return ws.NoveltyBoost, true
	case FactorRecencyPenalty:
		return ws.RecencyPenalty, true
	}
	return FactorWeight{}, false
}

// Set replaces the weight for a factor by name.
func (ws *WeightSet) Set(factorName string, fw FactorWeight) error {
	switch factorName {
	case FactorPreferenceMatch:
		ws.PreferenceMatch = fw
	case FactorParentInfluence:
		ws.ParentInfluence = fw
	case FactorSimilarKids:
		ws.SimilarKids = fw
	case FactorTeacherEndorsement:
		ws.TeacherEndorsement = fw
	case FactorContextMatch:
		ws.ContextMatch = fw
	case FactorNoveltyBoost:
		ws.NoveltyBoost = fw
	case FactorRecencyPenalty:
		ws.RecencyPenalty = fw
	default:
		return fmt.Errorf("unknown factor %q", factorName)
	}
	return nil
}

// AsMap returns the weight set keyed by factor name, in a form suitable for
// API responses.
func (ws WeightSet) AsMap() map[string]FactorWeight {
	return map[string]FactorWeight{
		FactorPreferenceMatch:    ws.PreferenceMatch,
		FactorParentInfluence:    ws.ParentInfluence,
		FactorSimilarKids:        ws.SimilarKids,
		FactorTeacherEndorsement: ws.TeacherEndorsement,
		FactorContextMatch:       ws.ContextMatch,
		FactorNoveltyBoost:       ws.NoveltyBoost,
		FactorRecencyPenalty:     ws.RecencyPenalty,
	}
}
