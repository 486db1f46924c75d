// Package drift implements the drift lifecycle service: student profiles,
// exploration tracking, daily drift generation and the accept, skip and
// outcome transitions that feed the serendipity fingerprint.
package drift

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/thebtf/campus-drift/internal/db"
	"github.com/thebtf/campus-drift/internal/nudge"
	"github.com/thebtf/campus-drift/internal/scoring"
	"github.com/thebtf/campus-drift/pkg/models"
)

// BroadcastFunc is a callback for broadcasting lifecycle events to SSE clients.
type BroadcastFunc func(event map[string]any)

// Service coordinates the repositories and scoring components.
// Mutations for one student are serialized and run in one transaction.
type Service struct {
	repo          db.Repository
	engine        *nudge.Engine
	bubble        *scoring.BubbleMapper
	builder       *scoring.FingerprintBuilder
	config        *models.ScoringConfig
	locks         *keyedMutex
	now           func() time.Time
	broadcastFunc BroadcastFunc
	fpGroup       singleflight.Group
}

// NewService creates a lifecycle service.
// If config is nil, uses the default configuration.
func NewService(repo db.Repository, engine *nudge.Engine, config *models.ScoringConfig) *Service {
	if config == nil {
		config = models.DefaultScoringConfig()
	}
	return &Service{
		repo:    repo,
		engine:  engine,
		bubble:  scoring.NewBubbleMapper(config),
		builder: scoring.NewFingerprintBuilder(config),
		config:  config,
		locks:   newKeyedMutex(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetBroadcastFunc sets the broadcast callback for SSE events.
func (s *Service) SetBroadcastFunc(fn BroadcastFunc) {
	s.broadcastFunc = fn
}

// SetClock replaces the service clock. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.engine.SetClock(now)
}

// Engine returns the nudge engine.
func (s *Service) Engine() *nudge.Engine {
	return s.engine
}

func (s *Service) broadcast(event map[string]any) {
	if s.broadcastFunc != nil {
		s.broadcastFunc(event)
	}
}

// shortID returns prefix followed by six hex characters.
func shortID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

// CreateStudent validates the signup payload and stores the profile with an
// exploration record seeded with the student's own department and a default
// fingerprint.
func (s *Service) CreateStudent(ctx context.Context, in models.StudentProfileCreate) (*models.StudentProfile, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Department = strings.TrimSpace(in.Department)
	if in.TimeBudgetMinutes == 0 {
		in.TimeBudgetMinutes = models.DefaultTimeBudgetMinutes
	}
	if err := validateProfile(in.Name, in.Department, in.Year, in.Skills, in.Interests, in.TimeBudgetMinutes); err != nil {
		return nil, err
	}

	now := s.now()
	student := &models.StudentProfile{
		ID:                shortID("stu-"),
		Name:              in.Name,
		Department:        in.Department,
		Year:              in.Year,
		Skills:            nonNil(in.Skills),
		Interests:         nonNil(in.Interests),
		Accessibility:     nonNil(in.Accessibility),
		TimeBudgetMinutes: in.TimeBudgetMinutes,
		FreeOnly:          in.FreeOnly,
		CreatedAt:         now,
	}
	record := &models.ExplorationRecord{
		StudentID:              student.ID,
		DepartmentsVisited:     []string{student.Department},
		CanteenCountersUsed:    []string{},
		EventTypesAttended:     []string{},
		ContentDomainsExplored: []string{},
		LastUpdated:            now,
	}
	fp := s.builder.BuildProfile(student.ID, nil, now)

	err := s.repo.Transaction(ctx, func(tx db.Repository) error {
		if err := tx.CreateStudent(ctx, student); err != nil {
			return fmt.Errorf("create student: %w", err)
		}
		if err := tx.PutExploration(ctx, record); err != nil {
			return fmt.Errorf("create exploration record: %w", err)
		}
		if err := tx.PutFingerprint(ctx, fp); err != nil {
			return fmt.Errorf("create fingerprint: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("student_id", student.ID).Str("department", student.Department).Msg("Student created")
	s.broadcast(map[string]any{
		"type":       "student_created",
		"student_id": student.ID,
	})
	return student, nil
}

// GetStudent returns a student profile.
func (s *Service) GetStudent(ctx context.Context, id string) (*models.StudentProfile, error) {
	student, err := s.repo.GetStudent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, notFound("student", id)
	}
	return student, nil
}

// UpdateStudent applies a partial profile update. Score and streak are not
// editable.
func (s *Service) UpdateStudent(ctx context.Context, id string, upd models.StudentProfileUpdate) (*models.StudentProfile, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var updated *models.StudentProfile
	err := s.repo.Transaction(ctx, func(tx db.Repository) error {
		student, err := tx.GetStudent(ctx, id)
		if err != nil {
			return fmt.Errorf("get student: %w", err)
		}
		if student == nil {
			return notFound("student", id)
		}

		if upd.Name != nil {
			student.Name = strings.TrimSpace(*upd.Name)
		}
		if upd.Department != nil {
			student.Department = strings.TrimSpace(*upd.Department)
		}
		if upd.Year != nil {
			student.Year = *upd.Year
		}
		if upd.Skills != nil {
			student.Skills = nonNil(*upd.Skills)
		}
		if upd.Interests != nil {
			student.Interests = nonNil(*upd.Interests)
		}
		if upd.TimeBudgetMinutes != nil {
			student.TimeBudgetMinutes = *upd.TimeBudgetMinutes
		}
		if upd.FreeOnly != nil {
			student.FreeOnly = *upd.FreeOnly
		}
		if upd.Accessibility != nil {
			student.Accessibility = nonNil(*upd.Accessibility)
		}

		if err := validateProfile(student.Name, student.Department, student.Year,
			student.Skills, student.Interests, student.TimeBudgetMinutes); err != nil {
			return err
		}
		if err := tx.UpdateStudent(ctx, student); err != nil {
			return fmt.Errorf("update student: %w", err)
		}
		updated = student
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RecordExploration merges new entries into the student's exploration
// record. Entries are additive: known entries are ignored and negative
// connection counts are dropped.
func (s *Service) RecordExploration(ctx context.Context, studentID string, upd models.ExplorationUpdate) (*models.ExplorationRecord, error) {
	unlock := s.locks.Lock(studentID)
	defer unlock()

	var record *models.ExplorationRecord
	err := s.repo.Transaction(ctx, func(tx db.Repository) error {
		student, err := tx.GetStudent(ctx, studentID)
		if err != nil {
			return fmt.Errorf("get student: %w", err)
		}
		if student == nil {
			return notFound("student", studentID)
		}

		record, err = tx.GetExploration(ctx, studentID)
		if err != nil {
			return fmt.Errorf("get exploration record: %w", err)
		}
		if record == nil {
			record = &models.ExplorationRecord{StudentID: studentID}
		}
		if !record.Merge(upd) {
			return nil
		}
		record.LastUpdated = s.now()
		if err := tx.PutExploration(ctx, record); err != nil {
			return fmt.Errorf("put exploration record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// BubbleReport is the bubble percentage with the sets it was computed from.
type BubbleReport struct {
	Ratios             map[models.ExplorationDimension]float64 `json:"ratios"`
	StudentID          string                                  `json:"student_id"`
	DepartmentsVisited []string                                `json:"departments_visited"`
	CountersUsed       []string                                `json:"counters_used"`
	EventTypes         []string                                `json:"event_types"`
	ContentDomains     []string                                `json:"content_domains"`
	BubblePercentage   float64                                 `json:"bubble_percentage"`
	NewConnections     int                                     `json:"new_connections"`
}

// Bubble computes the student's bubble percentage.
func (s *Service) Bubble(ctx context.Context, studentID string) (*BubbleReport, error) {
	record, err := s.Exploration(ctx, studentID)
	if err != nil {
		return nil, err
	}
	components := s.bubble.Components(record)
	return &BubbleReport{
		StudentID:          studentID,
		BubblePercentage:   components.BubblePercentage,
		Ratios:             components.Ratios,
		DepartmentsVisited: nonNil(record.DepartmentsVisited),
		CountersUsed:       nonNil(record.CanteenCountersUsed),
		EventTypes:         nonNil(record.EventTypesAttended),
		ContentDomains:     nonNil(record.ContentDomainsExplored),
		NewConnections:     record.NewConnectionsCount,
	}, nil
}

// UnexploredReport lists departments the student has not visited.
type UnexploredReport struct {
	StudentID       string                   `json:"student_id"`
	UnexploredAreas []scoring.UnexploredArea `json:"unexplored_areas"`
}

// Unexplored returns up to five unexplored departments.
func (s *Service) Unexplored(ctx context.Context, studentID string) (*UnexploredReport, error) {
	record, err := s.Exploration(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return &UnexploredReport{
		StudentID:       studentID,
		UnexploredAreas: s.bubble.UnexploredAreas(record),
	}, nil
}

// Collision scores two students. Missing exploration records fall back to
// the catalog-based gap estimate.
func (s *Service) Collision(ctx context.Context, studentA, studentB string) (*models.CollisionScore, error) {
	a, err := s.GetStudent(ctx, studentA)
	if err != nil {
		return nil, err
	}
	b, err := s.GetStudent(ctx, studentB)
	if err != nil {
		return nil, err
	}
	recA, err := s.repo.GetExploration(ctx, studentA)
	if err != nil {
		return nil, fmt.Errorf("get exploration record: %w", err)
	}
	recB, err := s.repo.GetExploration(ctx, studentB)
	if err != nil {
		return nil, fmt.Errorf("get exploration record: %w", err)
	}
	score := s.engine.ScoreCollision(a, b, recA, recB)
	return &score, nil
}

// Exploration returns the student's exploration record.
func (s *Service) Exploration(ctx context.Context, studentID string) (*models.ExplorationRecord, error) {
	record, err := s.repo.GetExploration(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get exploration record: %w", err)
	}
	if record == nil {
		return nil, notFound("exploration record", studentID)
	}
	return record, nil
}

func validateProfile(name, department string, year int, skills, interests []string, budget int) error {
	switch {
	case name == "":
		return violation("name is required")
	case department == "":
		return violation("department is required")
	case year < 1 || year > 4:
		return violation("year must be between 1 and 4, got %d", year)
	case len(skills) > models.MaxSkills:
		return violation("at most %d skills allowed, got %d", models.MaxSkills, len(skills))
	case len(interests) > models.MaxInterests:
		return violation("at most %d interests allowed, got %d", models.MaxInterests, len(interests))
	case budget < 0:
		return violation("time budget must not be negative")
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
