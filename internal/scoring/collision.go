package scoring

import (
	"strings"

	"github.com/thebtf/campus-drift/pkg/models"
)

// DomainMap folds surface interests into coarser domain categories.
// Interests missing from the map are their own domain.
var DomainMap = map[string]string{
	"robotics":         "spatial-mechanical",
	"sculpture":        "spatial-mechanical",
	"architecture":     "spatial-mechanical",
	"3d modeling":      "spatial-mechanical",
	"hardware":         "spatial-mechanical",
	"writing":          "narrative-expression",
	"music":            "narrative-expression",
	"filmmaking":       "narrative-expression",
	"music production": "narrative-expression",
	"poetry":           "narrative-expression",
	"photography":      "narrative-expression",
	"video editing":    "narrative-expression",
	"data science":     "pattern-systems",
	"economics":        "pattern-systems",
	"biology":          "pattern-systems",
	"machine learning": "pattern-systems",
	"data analysis":    "pattern-systems",
	"statistics":       "pattern-systems",
	"ai":               "pattern-systems",
	"python":           "computational",
	"react":            "computational",
	"ui/ux":            "design-thinking",
	"graphic design":   "design-thinking",
	"marketing":        "persuasion-communication",
	"public speaking":  "persuasion-communication",
	"debate":           "persuasion-communication",
	"electronics":      "engineering-build",
	"research":         "analytical-inquiry",
	"philosophy":       "analytical-inquiry",
	"startups":         "entrepreneurial",
	"business":         "entrepreneurial",
}

// GapDepartments is the department set exploration gaps are measured
// against. It uses the short names exploration records carry.
var GapDepartments = []string{
	"CS", "Design", "Arts", "Architecture", "Business",
	"Physics", "Chemistry", "Philosophy", "Music",
	"Drama", "Economics", "Psychology", "Sports", "Literature",
}

// Stochastic placeholder ranges. Timing has no calendar data behind it yet
// and gap match falls back to a population prior when a record is missing.
const (
	timingMin         = 0.6
	timingMax         = 1.0
	gapFallbackMin    = 0.5
	gapFallbackMax    = 0.95
	neutralSkillScore = 0.5
	hiddenThreadScale = 3.0
)

// CollisionScorer scores complementarity between two students: a high score
// means each has what the other is missing. It is not a similarity score.
type CollisionScorer struct {
	config *models.ScoringConfig
	rng    Rand
}

// NewCollisionScorer creates a new collision scorer.
// If config is nil, uses the default configuration.
func NewCollisionScorer(config *models.ScoringConfig, rng Rand) *CollisionScorer {
	if config == nil {
		config = models.DefaultScoringConfig()
	}
	if rng == nil {
		rng = NewRand(0)
	}
	return &CollisionScorer{config: config, rng: rng}
}

// Score computes the collision score for a pair of students.
// Either record may be nil, in which case gap match uses its fallback draw.
//
// The scoring formula:
//
//	Overall = 100 × (0.35·Skill + 0.30·HiddenThread + 0.15·Timing + 0.20·GapMatch)
//
// Timing is always drawn at random in [0.6, 1.0). Gap match is drawn in
// [0.5, 0.95) when a record is absent. Both draws come from the injected Rand.
func (c *CollisionScorer) Score(a, b *models.StudentProfile, recA, recB *models.ExplorationRecord) models.CollisionScore {
	skill := SkillComplementarity(a.Skills, b.Skills)
	hidden := HiddenThread(a.Interests, b.Interests)
	timing := c.timingOverlap(a, b)

	var gap float64
	if recA != nil && recB != nil {
		gap = GapProfileMatch(recA, recB)
	} else {
		gap = Uniform(c.rng, gapFallbackMin, gapFallbackMax)
	}

	w := c.config.Collision
	overall := skill*w.Skill + hidden*w.HiddenThread + timing*w.Timing + gap*w.GapMatch

	return models.CollisionScore{
		Overall:               Round(overall*100, 1),
		SkillComplementarity:  Round(skill, 3),
		SharedHiddenInterests: Round(hidden, 3),
		TimingAlignment:       Round(timing, 3),
		GapProfileMatch:       Round(gap, 3),
	}
}

// timingOverlap is a stand-in until real calendar data exists.
func (c *CollisionScorer) timingOverlap(_, _ *models.StudentProfile) float64 {
	return Uniform(c.rng, timingMin, timingMax)
}

// SkillComplementarity rewards disjoint but present skill sets:
//
//	(|A △ B| / |A ∪ B|) × (1 - |A ∩ B| / |A ∪ B|)
//
// Skills compare case-insensitively. An empty union scores a neutral 0.5.
func SkillComplementarity(skillsA, skillsB []string) float64 {
	setA, setB := lowerSet(skillsA), lowerSet(skillsB)
	union := len(setA)
	intersection := 0
	for s := range setB {
		if _, ok := setA[s]; ok {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return neutralSkillScore
	}
	symmetricDiff := union - intersection
	ratio := float64(symmetricDiff) / float64(union)
	overlapPenalty := 1 - float64(intersection)/float64(union)
	return ratio * overlapPenalty
}

// HiddenThread rewards pairs who share a deep domain without sharing the
// literal interest words:
//
//	min(max(|domain overlap| - |surface overlap|, 0) / 3, 1)
func HiddenThread(interestsA, interestsB []string) float64 {
	surfaceA, surfaceB := lowerSet(interestsA), lowerSet(interestsB)
	domainsA, domainsB := domainSet(surfaceA), domainSet(surfaceB)

	hidden := countShared(domainsA, domainsB) - countShared(surfaceA, surfaceB)
	if hidden <= 0 {
		return 0
	}
	score := float64(hidden) / hiddenThreadScale
	if score > 1 {
		score = 1
	}
	return score
}

// GapProfileMatch measures how well each student fills the other's gap:
//
//	|gapA ∩ exploredB| / |gapA| × |gapB ∩ exploredA| / |gapB|
//
// Both fractions must be high for a high score. An empty gap counts against
// a denominator of one, so a student with nothing left to explore scores 0.
func GapProfileMatch(recA, recB *models.ExplorationRecord) float64 {
	exploredA, exploredB := stringSet(recA.DepartmentsVisited), stringSet(recB.DepartmentsVisited)
	fillA := fillRatio(exploredA, exploredB)
	fillB := fillRatio(exploredB, exploredA)
	return fillA * fillB
}

// fillRatio is the share of the first student's gap that the second has explored.
func fillRatio(explored, other map[string]struct{}) float64 {
	gap, filled := 0, 0
	for _, dept := range GapDepartments {
		if _, ok := explored[dept]; ok {
			continue
		}
		gap++
		if _, ok := other[dept]; ok {
			filled++
		}
	}
	if gap < 1 {
		gap = 1
	}
	return float64(filled) / float64(gap)
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	delete(set, "")
	return set
}

func stringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func domainSet(surface map[string]struct{}) map[string]struct{} {
	domains := make(map[string]struct{}, len(surface))
	for interest := range surface {
		if domain, ok := DomainMap[interest]; ok {
			domains[domain] = struct{}{}
		} else {
			domains[interest] = struct{}{}
		}
	}
	return domains
}

func countShared(a, b map[string]struct{}) int {
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
