package drift

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/campus-drift/internal/db"
	"github.com/thebtf/campus-drift/pkg/models"
)

// DemoStudentID is the student loaded by SeedDemo.
const DemoStudentID = "stu-001"

// SeedDemo loads the demo campus into an empty store: one student with an
// exploration record and fingerprint, three events and one discovery slot.
// Returns false without writing when the store already has students.
func (s *Service) SeedDemo(ctx context.Context) (bool, error) {
	count, err := s.repo.CountStudents(ctx)
	if err != nil {
		return false, fmt.Errorf("count students: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	now := s.now()
	err = s.repo.Transaction(ctx, func(tx db.Repository) error {
		if err := tx.CreateStudent(ctx, demoStudent(now)); err != nil {
			return fmt.Errorf("seed student: %w", err)
		}
		if err := tx.PutExploration(ctx, demoRecord(now)); err != nil {
			return fmt.Errorf("seed exploration record: %w", err)
		}
		if err := tx.PutFingerprint(ctx, demoFingerprint(now)); err != nil {
			return fmt.Errorf("seed fingerprint: %w", err)
		}
		for _, ev := range demoEvents() {
			if err := tx.PutEvent(ctx, ev); err != nil {
				return fmt.Errorf("seed event %s: %w", ev.ID, err)
			}
		}
		for _, slot := range demoSlots() {
			if err := tx.PutDiscoverySlot(ctx, slot); err != nil {
				return fmt.Errorf("seed discovery slot %s: %w", slot.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	log.Info().Str("student_id", DemoStudentID).Msg("Demo data seeded")
	return true, nil
}

func demoStudent(now time.Time) *models.StudentProfile {
	return &models.StudentProfile{
		ID:                DemoStudentID,
		Name:              "Aryan Sharma",
		Department:        "Computer Science",
		Year:              2,
		Skills:            []string{"Python", "React", "Machine Learning"},
		Interests:         []string{"AI", "Music", "Photography", "Startups"},
		Accessibility:     []string{},
		TimeBudgetMinutes: models.DefaultTimeBudgetMinutes,
		DriftScore:        247,
		DriftStreak:       4,
		CreatedAt:         now,
	}
}

func demoRecord(now time.Time) *models.ExplorationRecord {
	return &models.ExplorationRecord{
		StudentID:              DemoStudentID,
		DepartmentsVisited:     []string{"CS", "Mathematics"},
		CanteenCountersUsed:    []string{"Counter 2", "Counter 5"},
		EventTypesAttended:     []string{"Technical Talk"},
		ContentDomainsExplored: []string{"Programming", "AI/ML", "Web Dev"},
		LastUpdated:            now,
	}
}

func demoFingerprint(now time.Time) *models.SerendipityFingerprint {
	return &models.SerendipityFingerprint{
		StudentID: DemoStudentID,
		Axes: models.FingerprintAxes{
			CrossDepartmental: 35,
			Spontaneous:       45,
			Social:            20,
			Creative:          40,
			Exploratory:       30,
			TimingFlexibility: 60,
		},
		TotalDrifts:      12,
		MeaningfulDrifts: 3,
		MeaningfulRate:   0.25,
		BestDriftType:    models.DriftTypeCanteen,
		BestTimeOfDay:    models.DefaultBestTimeOfDay,
		LastUpdated:      now,
	}
}

func demoEvents() []*models.CampusEvent {
	at := func(month time.Month, day, hour, minute int) time.Time {
		return time.Date(2026, month, day, hour, minute, 0, 0, time.UTC)
	}
	return []*models.CampusEvent{
		{
			ID:                "evt-001",
			Title:             "Open Mic Night",
			Department:        "Music",
			Type:              "performance",
			Location:          "Music Department Hall",
			StartTime:         at(time.February, 28, 19, 30),
			DurationMinutes:   120,
			IsFree:            true,
			ExpectedAttendees: []string{"Music", "Arts", "Literature"},
			DiscoverySlot:     true,
		},
		{
			ID:                "evt-002",
			Title:             "Startup Pitch Practice",
			Department:        "Business",
			Type:              "social",
			Location:          "Entrepreneurship Cell",
			StartTime:         at(time.March, 1, 16, 0),
			DurationMinutes:   90,
			IsFree:            true,
			ExpectedAttendees: []string{"Business", "CS", "Design"},
			DiscoverySlot:     true,
		},
		{
			ID:                "evt-003",
			Title:             "Life Drawing Session",
			Department:        "Fine Arts",
			Type:              "workshop",
			Location:          "Fine Arts Studio 3",
			StartTime:         at(time.March, 1, 14, 0),
			DurationMinutes:   120,
			IsFree:            true,
			ExpectedAttendees: []string{"Fine Arts", "Design", "Architecture"},
		},
	}
}

func demoSlots() []*models.DiscoverySlot {
	return []*models.DiscoverySlot{
		{
			ID:             "ds-001",
			OrganizerID:    "club-photo",
			OrganizerType:  models.OrganizerClub,
			Name:           "Photography Club — Portfolio Reviews",
			Location:       "Building C, Room 204",
			AvailableTimes: []time.Time{time.Date(2026, time.March, 1, 15, 0, 0, 0, time.UTC)},
			Description:    "Get your portfolio reviewed.",
			Tags:           []string{"creative", "portfolio", "photography"},
		},
	}
}
