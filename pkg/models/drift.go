package models

import "time"

// DriftType is the category of a drift nudge.
type DriftType string

const (
	DriftTypeCanteen DriftType = "canteen"
	DriftTypeEvent   DriftType = "event"
	DriftTypeRoute   DriftType = "route"
	DriftTypeSpace   DriftType = "space"
)

// AllDriftTypes is the canonical drift type order.
var AllDriftTypes = []DriftType{
	DriftTypeCanteen,
	DriftTypeEvent,
	DriftTypeRoute,
	DriftTypeSpace,
}

// IsValid reports whether t is one of the four drift types.
func (t DriftType) IsValid() bool {
	for _, v := range AllDriftTypes {
		if v == t {
			return true
		}
	}
	return false
}

// DriftStatus is the lifecycle state of a drift nudge.
type DriftStatus string

const (
	DriftStatusPending  DriftStatus = "pending"
	DriftStatusAccepted DriftStatus = "accepted"
	DriftStatusSkipped  DriftStatus = "skipped"
)

// Fingerprint tags attached to drift outcomes.
const (
	TagCrossDepartmental = "cross-departmental"
	TagCrossDept         = "cross-dept"
	TagConnection        = "connection"
	TagCollaboration     = "collaboration"
	TagSocial            = "social"
	TagCreative          = "creative"
)

// DriftReasoning explains why a drift was suggested.
type DriftReasoning struct {
	GapDescription        string   `json:"gap_description"`
	ScenarioChips         []string `json:"scenario_chips"`
	DaysSinceIntersection int      `json:"days_since_intersection"`
	SkillsComplementarity float64  `json:"skills_complementarity"`
	SharedInterestsScore  float64  `json:"shared_interests_score"`
	TimingAlignment       float64  `json:"timing_alignment"`
	GapProfileMatch       float64  `json:"gap_profile_match"`
}

// DriftOutcome is what the student reported after completing a drift.
type DriftOutcome struct {
	LoggedAt        time.Time `json:"logged_at"`
	DriftID         string    `json:"drift_id"`
	Description     string    `json:"description,omitempty"`
	FingerprintTags []string  `json:"fingerprint_tags"`
	WasInteresting  bool      `json:"was_interesting"`
}

// HasTag reports whether the outcome carries any of the given tags.
func (o *DriftOutcome) HasTag(tags ...string) bool {
	if o == nil {
		return false
	}
	for _, have := range o.FingerprintTags {
		for _, want := range tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// DriftNudge is one recommendation instance.
type DriftNudge struct {
	CreatedAt               time.Time      `json:"created_at"`
	Outcome                 *DriftOutcome  `json:"outcome,omitempty"`
	ID                      string         `json:"id"`
	StudentID               string         `json:"student_id"`
	Type                    DriftType      `json:"type"`
	Title                   string         `json:"title"`
	Description             string         `json:"description"`
	Location                string         `json:"location"`
	Time                    string         `json:"time"`
	Status                  DriftStatus    `json:"status"`
	Reasoning               DriftReasoning `json:"reasoning"`
	CollisionPotentialScore float64        `json:"collision_potential_score"`
	TimeRequiredMinutes     int            `json:"time_required_minutes"`
	IsFree                  bool           `json:"is_free"`
	CrossedDepartment       bool           `json:"crossed_department"`
}

// IsMeaningful reports whether the drift has an outcome marked interesting.
func (d *DriftNudge) IsMeaningful() bool {
	return d.Outcome != nil && d.Outcome.WasInteresting
}

// CollisionScore is the complementarity between two students.
// Overall is in [0,100]; the sub-scores are in [0,1].
type CollisionScore struct {
	Overall               float64 `json:"overall"`
	SkillComplementarity  float64 `json:"skill_complementarity"`
	SharedHiddenInterests float64 `json:"shared_hidden_interests"`
	TimingAlignment       float64 `json:"timing_alignment"`
	GapProfileMatch       float64 `json:"gap_profile_match"`
}
