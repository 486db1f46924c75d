// Package scoring provides bubble, collision and fingerprint scoring for campus drifts.
package scoring

import (
	"math"

	"github.com/thebtf/campus-drift/pkg/models"
)

// MaxUnexploredAreas caps the unexplored area list.
const MaxUnexploredAreas = 5

// CampusDepartments is the display catalog used for unexplored areas, in
// presentation order.
var CampusDepartments = []string{
	"Design & Architecture", "Performing Arts", "Philosophy",
	"Literature", "Economics", "Psychology", "Sports Science",
	"Music", "Fine Arts", "Chemistry", "Physics", "Business",
	"Civil Engineering", "Biotech",
}

// UnexploredArea is a department the student has not visited yet.
type UnexploredArea struct {
	Name     string `json:"name"`
	DriftCTA string `json:"drift_cta"`
}

// BubbleMapper converts an exploration record into a bubble percentage.
type BubbleMapper struct {
	config *models.ScoringConfig
}

// NewBubbleMapper creates a new bubble mapper.
// If config is nil, uses the default configuration.
func NewBubbleMapper(config *models.ScoringConfig) *BubbleMapper {
	if config == nil {
		config = models.DefaultScoringConfig()
	}
	return &BubbleMapper{config: config}
}

// ComputeBubblePercentage returns how much of campus life the student has
// sampled, 0-100 rounded to one decimal.
//
// The formula is a weighted product-complement:
//
//	bubble = 1 - Π (1 - ratio_k)^weight_k
//
// Where ratio_k = distinct visited / total for departments (14), canteen
// counters (8), event types (8) and content domains (22). A zero ratio in any
// dimension holds the whole score down.
func (m *BubbleMapper) ComputeBubblePercentage(record *models.ExplorationRecord) float64 {
	return m.Components(record).BubblePercentage
}

// BubbleComponents is the breakdown of a bubble computation.
type BubbleComponents struct {
	Ratios           map[models.ExplorationDimension]float64 `json:"ratios"`
	Product          float64                                 `json:"product"`
	BubblePercentage float64                                 `json:"bubble_percentage"`
}

// Components returns the per-dimension ratios alongside the final score.
// Ratios are clamped to [0,1]: a record listing more distinct entries than a
// dimension holds counts as fully explored in that dimension.
func (m *BubbleMapper) Components(record *models.ExplorationRecord) BubbleComponents {
	ratios := make(map[models.ExplorationDimension]float64, len(models.ExplorationDimensions))
	product := 1.0
	for _, dim := range models.ExplorationDimensions {
		ratio := m.ratio(dim, dimensionEntries(record, dim))
		ratios[dim] = ratio
		product *= math.Pow(1-ratio, m.config.DimensionWeights[dim])
	}

	return BubbleComponents{
		Ratios:           ratios,
		Product:          product,
		BubblePercentage: Round((1-product)*100, 1),
	}
}

// UnexploredAreas lists catalog departments missing from the visited set,
// in catalog order, at most MaxUnexploredAreas.
func (m *BubbleMapper) UnexploredAreas(record *models.ExplorationRecord) []UnexploredArea {
	areas := make([]UnexploredArea, 0, MaxUnexploredAreas)
	for _, dept := range CampusDepartments {
		if record.HasVisited(dept) {
			continue
		}
		areas = append(areas, UnexploredArea{
			Name:     dept,
			DriftCTA: "Drift to " + dept + " →",
		})
		if len(areas) == MaxUnexploredAreas {
			break
		}
	}
	return areas
}

func (m *BubbleMapper) ratio(dim models.ExplorationDimension, entries []string) float64 {
	total := m.config.DimensionTotals[dim]
	if total <= 0 {
		return 0
	}
	ratio := float64(distinctCount(entries)) / float64(total)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

func dimensionEntries(record *models.ExplorationRecord, dim models.ExplorationDimension) []string {
	if record == nil {
		return nil
	}
	switch dim {
	case models.DimensionDepartments:
		return record.DepartmentsVisited
	case models.DimensionCanteen:
		return record.CanteenCountersUsed
	case models.DimensionEventTypes:
		return record.EventTypesAttended
	case models.DimensionContentDomains:
		return record.ContentDomainsExplored
	}
	return nil
}

func distinctCount(entries []string) int {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[e] = struct{}{}
	}
	return len(seen)
}
