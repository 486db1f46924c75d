package models

// ExplorationDimension names one axis of the bubble computation.
type ExplorationDimension string

const (
	DimensionDepartments    ExplorationDimension = "departments"
	DimensionCanteen        ExplorationDimension = "canteen"
	DimensionEventTypes     ExplorationDimension = "event_types"
	DimensionContentDomains ExplorationDimension = "content_domains"
)

// ExplorationDimensions is the fixed evaluation order of the bubble product.
var ExplorationDimensions = []ExplorationDimension{
	DimensionDepartments,
	DimensionCanteen,
	DimensionEventTypes,
	DimensionContentDomains,
}

// DefaultDimensionTotals is the size of each campus dimension.
var DefaultDimensionTotals = map[ExplorationDimension]int{
	DimensionDepartments:    14,
	DimensionCanteen:        8,
	DimensionEventTypes:     8,
	DimensionContentDomains: 22,
}

// DefaultDimensionWeights are the bubble exponents. They sum to 1.0.
var DefaultDimensionWeights = map[ExplorationDimension]float64{
	DimensionDepartments:    0.35, // Departments dominate campus life
	DimensionCanteen:        0.20,
	DimensionEventTypes:     0.30,
	DimensionContentDomains: 0.15,
}

// CollisionWeights combine the four collision sub-scores. They sum to 1.0.
type CollisionWeights struct {
	Skill        float64 `json:"skill"`
	HiddenThread float64 `json:"hidden_thread"`
	Timing       float64 `json:"timing"`
	GapMatch     float64 `json:"gap_match"`
}

// ScoringConfig contains all hand-tuned weights and parameters.
type ScoringConfig struct {
	// DimensionTotals are the fixed bubble denominators.
	DimensionTotals map[ExplorationDimension]int `json:"dimension_totals"`

	// DimensionWeights are the exponents of the weighted product-complement.
	DimensionWeights map[ExplorationDimension]float64 `json:"dimension_weights"`

	// Collision combines skill, hidden thread, timing and gap match.
	Collision CollisionWeights `json:"collision"`

	// LaplaceSmoothing is added to every fingerprint denominator.
	// Keeps sparse histories away from 0 and 100.
	LaplaceSmoothing float64 `json:"laplace_smoothing"`

	// Epsilon is the exploration probability of the nudge bandit.
	Epsilon float64 `json:"epsilon"`

	// AcceptReward is added to the drift score when a drift is accepted.
	AcceptReward int `json:"accept_reward"`

	// InterestingReward is added when a logged outcome was interesting.
	InterestingReward int `json:"interesting_reward"`
}

// DefaultScoringConfig returns the default scoring configuration.
func DefaultScoringConfig() *ScoringConfig {
	totals := make(map[ExplorationDimension]int, len(DefaultDimensionTotals))
	for k, v := range DefaultDimensionTotals {
		totals[k] = v
	}
	weights := make(map[ExplorationDimension]float64, len(DefaultDimensionWeights))
	for k, v := range DefaultDimensionWeights {
		weights[k] = v
	}

	return &ScoringConfig{
		DimensionTotals:  totals,
		DimensionWeights: weights,
		Collision: CollisionWeights{
			Skill:        0.35,
			HiddenThread: 0.30,
			Timing:       0.15,
			GapMatch:     0.20,
		},
		LaplaceSmoothing:  2,
		Epsilon:           0.2,  // 20% pure exploration
		AcceptReward:      10,
		InterestingReward: 25,
	}
}
