// Package nudge selects the daily drift for a student.
package nudge

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/campus-drift/internal/scoring"
	"github.com/thebtf/campus-drift/pkg/models"
)

// unvisitedDaysSinceIntersection is reported when the student has never
// been to the drift's area.
const unvisitedDaysSinceIntersection = 47

// Reasoning plausibility ranges, in percent.
const (
	skillsMin, skillsMax       = 70, 98
	interestsMin, interestsMax = 60, 95
	timingMin, timingMax       = 70, 98
	gapMin, gapMax             = 60, 95
	potentialMin, potentialMax = 65, 98
)

var scenarioChips = []string{"Creative collaboration", "Skill exchange", "New perspective"}

// Candidates is the externally supplied pool a drift may be drawn from.
// TriedTypes lists the drift types the student has already accepted; the
// explore branch prefers the rest. GenerateDailyDrift fills EligibleEvents
// and EligibleSlots with what passes the student's constraints.
type Candidates struct {
	Events     []*models.CampusEvent
	Slots      []*models.DiscoverySlot
	TriedTypes []models.DriftType

	EligibleEvents []*models.CampusEvent
	EligibleSlots  []*models.DiscoverySlot
}

// Engine generates drift nudges with an epsilon-greedy bandit over the
// template catalog.
type Engine struct {
	config    *models.ScoringConfig
	templates []Template
	byType    map[models.DriftType][]Template
	scorer    *scoring.CollisionScorer
	rng       scoring.Rand
	now       func() time.Time
	newID     func() string
}

// NewEngine creates a new nudge engine.
// If config is nil, uses the default configuration. If templates is empty,
// uses the built-in catalog.
func NewEngine(config *models.ScoringConfig, templates []Template, rng scoring.Rand) *Engine {
	if config == nil {
		config = models.DefaultScoringConfig()
	}
	if len(templates) == 0 {
		templates = DefaultTemplates()
	}
	if rng == nil {
		rng = scoring.NewRand(0)
	}

	byType := make(map[models.DriftType][]Template)
	for _, t := range templates {
		byType[t.Type] = append(byType[t.Type], t)
	}

	return &Engine{
		config:    config,
		templates: templates,
		byType:    byType,
		scorer:    scoring.NewCollisionScorer(config, rng),
		rng:       rng,
		now:       time.Now,
		newID:     newDriftID,
	}
}

// SetClock overrides the creation timestamp source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Templates returns the catalog the engine draws from.
func (e *Engine) Templates() []Template {
	return e.templates
}

// GenerateDailyDrift picks one drift for the student.
//
// With probability ε the engine explores: it picks uniformly among the drift
// types the student has not tried yet (all four when every type is tried),
// then uniformly among that type's templates. Otherwise it exploits the
// fingerprint's best drift type, canteen when unknown. A type with no
// templates falls back to a uniform draw over the whole catalog.
//
// The returned drift is always pending.
func (e *Engine) GenerateDailyDrift(
	student *models.StudentProfile,
	record *models.ExplorationRecord,
	fp *models.SerendipityFingerprint,
	cands *Candidates,
) *models.DriftNudge {
	var tried []models.DriftType
	if cands != nil {
		// The template generator does not draw from the eligible pool yet.
		cands.EligibleEvents, cands.EligibleSlots = e.ApplyConstraints(student, cands.Events, cands.Slots)
		log.Debug().
			Int("events", len(cands.Events)).
			Int("eligible_events", len(cands.EligibleEvents)).
			Int("slots", len(cands.EligibleSlots)).
			Msg("Drift candidates filtered")
		tried = cands.TriedTypes
	}

	var driftType models.DriftType
	if e.rng.Float64() < e.config.Epsilon {
		types := untriedTypes(tried)
		driftType = types[e.rng.IntN(len(types))]
	} else {
		driftType = bestType(fp)
	}

	tmpl := e.pick(driftType)
	reasoning := e.reasoning(tmpl, record)
	potential := scoring.Round(scoring.Uniform(e.rng, potentialMin, potentialMax), 1)

	studentID := ""
	if student != nil {
		studentID = student.ID
	}

	return &models.DriftNudge{
		ID:                      e.newID(),
		StudentID:               studentID,
		Type:                    tmpl.Type,
		Title:                   tmpl.Title,
		Description:             tmpl.Description,
		Location:                tmpl.Location,
		Time:                    tmpl.Time,
		TimeRequiredMinutes:     tmpl.TimeRequiredMinutes,
		IsFree:                  tmpl.IsFree,
		Reasoning:               reasoning,
		CollisionPotentialScore: potential,
		CrossedDepartment:       crossesDepartment(tmpl, student, record),
		Status:                  models.DriftStatusPending,
		CreatedAt:               e.now(),
	}
}

// ApplyConstraints drops events a student cannot attend: paid events for a
// free-only student and events longer than the time budget. A non-positive
// budget means no limit. Slots pass through unchanged.
func (e *Engine) ApplyConstraints(
	student *models.StudentProfile,
	events []*models.CampusEvent,
	slots []*models.DiscoverySlot,
) ([]*models.CampusEvent, []*models.DiscoverySlot) {
	if student == nil {
		return events, slots
	}
	filtered := make([]*models.CampusEvent, 0, len(events))
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if student.FreeOnly && !ev.IsFree {
			continue
		}
		if student.TimeBudgetMinutes > 0 && ev.DurationMinutes > student.TimeBudgetMinutes {
			continue
		}
		filtered = append(filtered, ev)
	}
	return filtered, slots
}

// ScoreCollision scores two students with the engine's collision scorer.
func (e *Engine) ScoreCollision(a, b *models.StudentProfile, recA, recB *models.ExplorationRecord) models.CollisionScore {
	return e.scorer.Score(a, b, recA, recB)
}

func (e *Engine) pick(t models.DriftType) Template {
	if pool := e.byType[t]; len(pool) > 0 {
		return pool[e.rng.IntN(len(pool))]
	}
	return e.templates[e.rng.IntN(len(e.templates))]
}

// reasoning builds the explanation payload. The gap description follows from
// the template; the scores are plausibility draws, not measurements.
func (e *Engine) reasoning(tmpl Template, record *models.ExplorationRecord) models.DriftReasoning {
	area := tmpl.Area()

	days := unvisitedDaysSinceIntersection
	if record.HasVisited(area) {
		days = 3 + e.rng.IntN(13)
	}

	return models.DriftReasoning{
		GapDescription:        fmt.Sprintf("You haven't crossed paths with the %s crowd in %d days", area, days),
		ScenarioChips:         append([]string(nil), scenarioChips...),
		DaysSinceIntersection: days,
		SkillsComplementarity: scoring.Round(scoring.Uniform(e.rng, skillsMin, skillsMax), 0),
		SharedInterestsScore:  scoring.Round(scoring.Uniform(e.rng, interestsMin, interestsMax), 0),
		TimingAlignment:       scoring.Round(scoring.Uniform(e.rng, timingMin, timingMax), 0),
		GapProfileMatch:       scoring.Round(scoring.Uniform(e.rng, gapMin, gapMax), 0),
	}
}

func untriedTypes(tried []models.DriftType) []models.DriftType {
	seen := make(map[models.DriftType]struct{}, len(tried))
	for _, t := range tried {
		seen[t] = struct{}{}
	}
	out := make([]models.DriftType, 0, len(models.AllDriftTypes))
	for _, t := range models.AllDriftTypes {
		if _, ok := seen[t]; !ok {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return models.AllDriftTypes
	}
	return out
}

func bestType(fp *models.SerendipityFingerprint) models.DriftType {
	if fp == nil || !fp.BestDriftType.IsValid() {
		return models.DriftTypeCanteen
	}
	return fp.BestDriftType
}

// crossesDepartment reports whether the drift takes the student into a
// department that is neither theirs nor already visited.
func crossesDepartment(tmpl Template, student *models.StudentProfile, record *models.ExplorationRecord) bool {
	if tmpl.Department == "" {
		return false
	}
	if student != nil && student.Department == tmpl.Department {
		return false
	}
	return !record.HasVisited(tmpl.Department)
}

func newDriftID() string {
	return "drift-" + uuid.NewString()[:8]
}
