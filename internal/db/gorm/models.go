package gorm

import (
	"time"

	"github.com/thebtf/campus-drift/pkg/models"
)

// GORM Models
//
// Timestamps are stored as Unix milliseconds so SQLite and PostgreSQL
// round-trip them identically. JSONStringArray and DriftReasoning implement
// sql.Scanner and driver.Valuer.

// Student is a stored student profile.
type Student struct {
	ID                string                 `gorm:"primaryKey;type:varchar(64)"`
	Name              string                 `gorm:"not null"`
	Department        string                 `gorm:"index;not null"`
	Skills            models.JSONStringArray `gorm:"type:text"`
	Interests         models.JSONStringArray `gorm:"type:text"`
	Accessibility     models.JSONStringArray `gorm:"type:text"`
	CreatedAtEpoch    int64                  `gorm:"not null"`
	Year              int                    `gorm:"not null"`
	TimeBudgetMinutes int                    `gorm:"not null"`
	DriftScore        int                    `gorm:"not null;default:0"`
	DriftStreak       int                    `gorm:"not null;default:0"`
	FreeOnly          bool                   `gorm:"not null;default:false"`
}

func (Student) TableName() string { return "students" }

// ExplorationRecord is a student's stored exploration record.
type ExplorationRecord struct {
	StudentID              string                 `gorm:"primaryKey;type:varchar(64)"`
	DepartmentsVisited     models.JSONStringArray `gorm:"type:text"`
	CanteenCountersUsed    models.JSONStringArray `gorm:"type:text"`
	EventTypesAttended     models.JSONStringArray `gorm:"type:text"`
	ContentDomainsExplored models.JSONStringArray `gorm:"type:text"`
	LastUpdatedEpoch       int64                  `gorm:"not null"`
	NewConnectionsCount    int                    `gorm:"not null;default:0"`
}

func (ExplorationRecord) TableName() string { return "exploration_records" }

// Drift is a stored drift nudge. Seq orders a student's history.
type Drift struct {
	Reasoning               models.DriftReasoning `gorm:"type:text"`
	ID                      string                `gorm:"uniqueIndex;type:varchar(64);not null"`
	StudentID               string                `gorm:"index:idx_drifts_student_seq,priority:1;type:varchar(64);not null"`
	Type                    models.DriftType      `gorm:"type:varchar(16);index;not null"`
	Status                  models.DriftStatus    `gorm:"type:varchar(16);index;not null;default:'pending'"`
	Title                   string                `gorm:"not null"`
	Description             string                `gorm:"type:text"`
	Location                string
	Time                    string
	OutcomeDescription      string                 `gorm:"type:text"`
	OutcomeTags             models.JSONStringArray `gorm:"type:text"`
	Seq                     int64                  `gorm:"primaryKey;autoIncrement;index:idx_drifts_student_seq,priority:2"`
	CreatedAtEpoch          int64                  `gorm:"not null"`
	OutcomeLoggedAtEpoch    int64
	CollisionPotentialScore float64
	TimeRequiredMinutes     int
	IsFree                  bool
	CrossedDepartment       bool
	HasOutcome              bool `gorm:"not null;default:false"`
	OutcomeInteresting      bool
}

func (Drift) TableName() string { return "drifts" }

// Fingerprint is a student's stored serendipity fingerprint.
type Fingerprint struct {
	StudentID         string           `gorm:"primaryKey;type:varchar(64)"`
	BestDriftType     models.DriftType `gorm:"type:varchar(16)"`
	BestTimeOfDay     string
	LastUpdatedEpoch  int64 `gorm:"not null"`
	MeaningfulRate    float64
	CrossDepartmental int
	Spontaneous       int
	Social            int
	Creative          int
	Exploratory       int
	TimingFlexibility int
	TotalDrifts       int
	MeaningfulDrifts  int
}

func (Fingerprint) TableName() string { return "fingerprints" }

// CampusEvent is a stored campus event.
type CampusEvent struct {
	ID                string `gorm:"primaryKey;type:varchar(64)"`
	Title             string `gorm:"not null"`
	Department        string `gorm:"index"`
	Type              string `gorm:"type:varchar(32);index"`
	Location          string
	ExpectedAttendees models.JSONStringArray `gorm:"type:text"`
	StartTimeEpoch    int64                  `gorm:"index"`
	DurationMinutes   int
	IsFree            bool `gorm:"index"`
	DiscoverySlot     bool
}

func (CampusEvent) TableName() string { return "campus_events" }

// DiscoverySlot is a stored discovery slot. AvailableTimes holds RFC 3339
// timestamps.
type DiscoverySlot struct {
	ID             string               `gorm:"primaryKey;type:varchar(64)"`
	OrganizerID    string               `gorm:"index"`
	OrganizerType  models.OrganizerType `gorm:"type:varchar(16)"`
	Name           string               `gorm:"not null"`
	Location       string
	Description    string                 `gorm:"type:text"`
	AvailableTimes models.JSONStringArray `gorm:"type:text"`
	Tags           models.JSONStringArray `gorm:"type:text"`
}

func (DiscoverySlot) TableName() string { return "discovery_slots" }

// =============================================================================
// Conversion helpers
// =============================================================================

func toEpoch(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromEpoch(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func toStringArray(values []string) models.JSONStringArray {
	if values == nil {
		return models.JSONStringArray{}
	}
	return models.JSONStringArray(values)
}

func fromStringArray(values models.JSONStringArray) []string {
	if values == nil {
		return []string{}
	}
	return []string(values)
}

func fromModelStudent(p *models.StudentProfile) *Student {
	return &Student{
		ID:                p.ID,
		Name:              p.Name,
		Department:        p.Department,
		Year:              p.Year,
		Skills:            toStringArray(p.Skills),
		Interests:         toStringArray(p.Interests),
		Accessibility:     toStringArray(p.Accessibility),
		TimeBudgetMinutes: p.TimeBudgetMinutes,
		FreeOnly:          p.FreeOnly,
		DriftScore:        p.DriftScore,
		DriftStreak:       p.DriftStreak,
		CreatedAtEpoch:    toEpoch(p.CreatedAt),
	}
}

func toModelStudent(s *Student) *models.StudentProfile {
	return &models.StudentProfile{
		ID:                s.ID,
		Name:              s.Name,
		Department:        s.Department,
		Year:              s.Year,
		Skills:            fromStringArray(s.Skills),
		Interests:         fromStringArray(s.Interests),
		Accessibility:     fromStringArray(s.Accessibility),
		TimeBudgetMinutes: s.TimeBudgetMinutes,
		FreeOnly:          s.FreeOnly,
		DriftScore:        s.DriftScore,
		DriftStreak:       s.DriftStreak,
		CreatedAt:         fromEpoch(s.CreatedAtEpoch),
	}
}

func fromModelExploration(r *models.ExplorationRecord) *ExplorationRecord {
	return &ExplorationRecord{
		StudentID:              r.StudentID,
		DepartmentsVisited:     toStringArray(r.DepartmentsVisited),
		CanteenCountersUsed:    toStringArray(r.CanteenCountersUsed),
		EventTypesAttended:     toStringArray(r.EventTypesAttended),
		ContentDomainsExplored: toStringArray(r.ContentDomainsExplored),
		NewConnectionsCount:    r.NewConnectionsCount,
		LastUpdatedEpoch:       toEpoch(r.LastUpdated),
	}
}

func toModelExploration(r *ExplorationRecord) *models.ExplorationRecord {
	return &models.ExplorationRecord{
		StudentID:              r.StudentID,
		DepartmentsVisited:     fromStringArray(r.DepartmentsVisited),
		CanteenCountersUsed:    fromStringArray(r.CanteenCountersUsed),
		EventTypesAttended:     fromStringArray(r.EventTypesAttended),
		ContentDomainsExplored: fromStringArray(r.ContentDomainsExplored),
		NewConnectionsCount:    r.NewConnectionsCount,
		LastUpdated:            fromEpoch(r.LastUpdatedEpoch),
	}
}

func fromModelDrift(d *models.DriftNudge) *Drift {
	row := &Drift{
		ID:                      d.ID,
		StudentID:               d.StudentID,
		Type:                    d.Type,
		Title:                   d.Title,
		Description:             d.Description,
		Location:                d.Location,
		Time:                    d.Time,
		Status:                  d.Status,
		Reasoning:               d.Reasoning,
		CollisionPotentialScore: d.CollisionPotentialScore,
		TimeRequiredMinutes:     d.TimeRequiredMinutes,
		IsFree:                  d.IsFree,
		CrossedDepartment:       d.CrossedDepartment,
		CreatedAtEpoch:          toEpoch(d.CreatedAt),
		OutcomeTags:             models.JSONStringArray{},
	}
	if d.Outcome != nil {
		row.HasOutcome = true
		row.OutcomeInteresting = d.Outcome.WasInteresting
		row.OutcomeDescription = d.Outcome.Description
		row.OutcomeTags = toStringArray(d.Outcome.FingerprintTags)
		row.OutcomeLoggedAtEpoch = toEpoch(d.Outcome.LoggedAt)
	}
	return row
}

func toModelDrift(row *Drift) *models.DriftNudge {
	d := &models.DriftNudge{
		ID:                      row.ID,
		StudentID:               row.StudentID,
		Type:                    row.Type,
		Title:                   row.Title,
		Description:             row.Description,
		Location:                row.Location,
		Time:                    row.Time,
		Status:                  row.Status,
		Reasoning:               row.Reasoning,
		CollisionPotentialScore: row.CollisionPotentialScore,
		TimeRequiredMinutes:     row.TimeRequiredMinutes,
		IsFree:                  row.IsFree,
		CrossedDepartment:       row.CrossedDepartment,
		CreatedAt:               fromEpoch(row.CreatedAtEpoch),
	}
	if d.Reasoning.ScenarioChips == nil {
		d.Reasoning.ScenarioChips = []string{}
	}
	if row.HasOutcome {
		d.Outcome = &models.DriftOutcome{
			DriftID:         row.ID,
			WasInteresting:  row.OutcomeInteresting,
			Description:     row.OutcomeDescription,
			FingerprintTags: fromStringArray(row.OutcomeTags),
			LoggedAt:        fromEpoch(row.OutcomeLoggedAtEpoch),
		}
	}
	return d
}

func fromModelFingerprint(fp *models.SerendipityFingerprint) *Fingerprint {
	return &Fingerprint{
		StudentID:         fp.StudentID,
		CrossDepartmental: fp.Axes.CrossDepartmental,
		Spontaneous:       fp.Axes.Spontaneous,
		Social:            fp.Axes.Social,
		Creative:          fp.Axes.Creative,
		Exploratory:       fp.Axes.Exploratory,
		TimingFlexibility: fp.Axes.TimingFlexibility,
		TotalDrifts:       fp.TotalDrifts,
		MeaningfulDrifts:  fp.MeaningfulDrifts,
		MeaningfulRate:    fp.MeaningfulRate,
		BestDriftType:     fp.BestDriftType,
		BestTimeOfDay:     fp.BestTimeOfDay,
		LastUpdatedEpoch:  toEpoch(fp.LastUpdated),
	}
}

func toModelFingerprint(row *Fingerprint) *models.SerendipityFingerprint {
	return &models.SerendipityFingerprint{
		StudentID: row.StudentID,
		Axes: models.FingerprintAxes{
			CrossDepartmental: row.CrossDepartmental,
			Spontaneous:       row.Spontaneous,
			Social:            row.Social,
			Creative:          row.Creative,
			Exploratory:       row.Exploratory,
			TimingFlexibility: row.TimingFlexibility,
		},
		TotalDrifts:      row.TotalDrifts,
		MeaningfulDrifts: row.MeaningfulDrifts,
		MeaningfulRate:   row.MeaningfulRate,
		BestDriftType:    row.BestDriftType,
		BestTimeOfDay:    row.BestTimeOfDay,
		LastUpdated:      fromEpoch(row.LastUpdatedEpoch),
	}
}

func fromModelEvent(ev *models.CampusEvent) *CampusEvent {
	return &CampusEvent{
		ID:                ev.ID,
		Title:             ev.Title,
		Department:        ev.Department,
		Type:              ev.Type,
		Location:          ev.Location,
		ExpectedAttendees: toStringArray(ev.ExpectedAttendees),
		StartTimeEpoch:    toEpoch(ev.StartTime),
		DurationMinutes:   ev.DurationMinutes,
		IsFree:            ev.IsFree,
		DiscoverySlot:     ev.DiscoverySlot,
	}
}

func toModelEvent(row *CampusEvent) *models.CampusEvent {
	return &models.CampusEvent{
		ID:                row.ID,
		Title:             row.Title,
		Department:        row.Department,
		Type:              row.Type,
		Location:          row.Location,
		ExpectedAttendees: fromStringArray(row.ExpectedAttendees),
		StartTime:         fromEpoch(row.StartTimeEpoch),
		DurationMinutes:   row.DurationMinutes,
		IsFree:            row.IsFree,
		DiscoverySlot:     row.DiscoverySlot,
	}
}

func fromModelSlot(s *models.DiscoverySlot) *DiscoverySlot {
	times := make(models.JSONStringArray, 0, len(s.AvailableTimes))
	for _, t := range s.AvailableTimes {
		times = append(times, t.UTC().Format(time.RFC3339))
	}
	return &DiscoverySlot{
		ID:             s.ID,
		OrganizerID:    s.OrganizerID,
		OrganizerType:  s.OrganizerType,
		Name:           s.Name,
		Location:       s.Location,
		Description:    s.Description,
		AvailableTimes: times,
		Tags:           toStringArray(s.Tags),
	}
}

func toModelSlot(row *DiscoverySlot) *models.DiscoverySlot {
	times := make([]time.Time, 0, len(row.AvailableTimes))
	for _, raw := range row.AvailableTimes {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			continue
		}
		times = append(times, t.UTC())
	}
	return &models.DiscoverySlot{
		ID:             row.ID,
		OrganizerID:    row.OrganizerID,
		OrganizerType:  row.OrganizerType,
		Name:           row.Name,
		Location:       row.Location,
		Description:    row.Description,
		AvailableTimes: times,
		Tags:           fromStringArray(row.Tags),
	}
}
