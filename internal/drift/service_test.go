package drift

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm/logger"

	gormstore "github.com/thebtf/campus-drift/internal/db/gorm"
	"github.com/thebtf/campus-drift/internal/nudge"
	"github.com/thebtf/campus-drift/internal/scoring"
	"github.com/thebtf/campus-drift/internal/scoring/scoringtest"
	"github.com/thebtf/campus-drift/pkg/models"
)

var fixedNow = time.Date(2026, time.March, 2, 12, 30, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	ctx    context.Context
	repo   *gormstore.Repository
	svc    *Service
	events []map[string]any
	mu     sync.Mutex
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()

	store, err := gormstore.NewStore(gormstore.Config{
		Driver:   gormstore.DriverSQLite,
		DSN:      filepath.Join(s.T().TempDir(), "drift.db"),
		LogLevel: logger.Silent,
	})
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = store.Close() })
	s.repo = store.Repository()

	// 0.5 never explores at ε=0.2 and every IntN draw is 0.
	engine := nudge.NewEngine(nil, nudge.DefaultTemplates(), scoringtest.Constant(0.5))
	s.svc = NewService(s.repo, engine, nil)
	s.svc.SetClock(func() time.Time { return fixedNow })

	s.events = nil
	s.svc.SetBroadcastFunc(func(event map[string]any) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.events = append(s.events, event)
	})
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) createStudent() *models.StudentProfile {
	student, err := s.svc.CreateStudent(s.ctx, models.StudentProfileCreate{
		Name:       "Meera Iyer",
		Department: "Computer Science",
		Year:       3,
		Skills:     []string{"Go", "SQL"},
		Interests:  []string{"Music", "Hiking"},
	})
	s.Require().NoError(err)
	return student
}

func (s *ServiceSuite) broadcastTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0, len(s.events))
	for _, e := range s.events {
		types = append(types, e["type"].(string))
	}
	return types
}

func (s *ServiceSuite) TestCreateStudent_GoodScenarios_SeedsRecordAndFingerprint() {
	student := s.createStudent()

	s.Regexp(`^stu-[0-9a-f]{6}$`, student.ID)
	s.Equal(models.DefaultTimeBudgetMinutes, student.TimeBudgetMinutes)
	s.Zero(student.DriftScore)
	s.Zero(student.DriftStreak)

	record, err := s.repo.GetExploration(s.ctx, student.ID)
	s.Require().NoError(err)
	s.Require().NotNil(record)
	s.Equal([]string{"Computer Science"}, record.DepartmentsVisited)

	fp, err := s.repo.GetFingerprint(s.ctx, student.ID)
	s.Require().NoError(err)
	s.Require().NotNil(fp)
	s.Zero(fp.TotalDrifts)
	s.Equal(models.DriftTypeCanteen, fp.BestDriftType)
	s.Equal(models.DefaultBestTimeOfDay, fp.BestTimeOfDay)

	s.Equal([]string{"student_created"}, s.broadcastTypes())
}

func (s *ServiceSuite) TestCreateStudent_EdgeCases_Validation() {
	valid := models.StudentProfileCreate{Name: "A", Department: "Physics", Year: 1}

	tests := []struct {
		name   string
		mutate func(in *models.StudentProfileCreate)
	}{
		{"empty name", func(in *models.StudentProfileCreate) { in.Name = "  " }},
		{"empty department", func(in *models.StudentProfileCreate) { in.Department = "" }},
		{"year zero", func(in *models.StudentProfileCreate) { in.Year = 0 }},
		{"year five", func(in *models.StudentProfileCreate) { in.Year = 5 }},
		{"six skills", func(in *models.StudentProfileCreate) { in.Skills = []string{"a", "b", "c", "d", "e", "f"} }},
		{"nine interests", func(in *models.StudentProfileCreate) {
			in.Interests = []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}
		}},
		{"negative budget", func(in *models.StudentProfileCreate) { in.TimeBudgetMinutes = -5 }},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			in := valid
			tt.mutate(&in)
			_, err := s.svc.CreateStudent(s.ctx, in)
			s.ErrorIs(err, ErrConstraintViolation)
		})
	}

	n, err := s.repo.CountStudents(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *ServiceSuite) TestUpdateStudent() {
	student := s.createStudent()

	name := "Meera I."
	budget := 90
	updated, err := s.svc.UpdateStudent(s.ctx, student.ID, models.StudentProfileUpdate{
		Name:              &name,
		TimeBudgetMinutes: &budget,
	})
	s.Require().NoError(err)
	s.Equal("Meera I.", updated.Name)
	s.Equal(90, updated.TimeBudgetMinutes)
	s.Equal(3, updated.Year)

	year := 7
	_, err = s.svc.UpdateStudent(s.ctx, student.ID, models.StudentProfileUpdate{Year: &year})
	s.ErrorIs(err, ErrConstraintViolation)

	_, err = s.svc.UpdateStudent(s.ctx, "stu-missing", models.StudentProfileUpdate{Name: &name})
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestRecordExploration_IsAdditive() {
	student := s.createStudent()

	record, err := s.svc.RecordExploration(s.ctx, student.ID, models.ExplorationUpdate{
		Departments:    []string{"Music", "Computer Science"},
		CanteenCounter: []string{"Counter 4"},
		NewConnections: 2,
	})
	s.Require().NoError(err)
	s.Equal([]string{"Computer Science", "Music"}, record.DepartmentsVisited)
	s.Equal([]string{"Counter 4"}, record.CanteenCountersUsed)
	s.Equal(2, record.NewConnectionsCount)

	record, err = s.svc.RecordExploration(s.ctx, student.ID, models.ExplorationUpdate{NewConnections: -3})
	s.Require().NoError(err)
	s.Equal(2, record.NewConnectionsCount)

	stored, err := s.repo.GetExploration(s.ctx, student.ID)
	s.Require().NoError(err)
	s.Equal([]string{"Computer Science", "Music"}, stored.DepartmentsVisited)

	_, err = s.svc.RecordExploration(s.ctx, "stu-missing", models.ExplorationUpdate{})
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestBubble_DemoStudent() {
	seeded, err := s.svc.SeedDemo(s.ctx)
	s.Require().NoError(err)
	s.Require().True(seeded)

	report, err := s.svc.Bubble(s.ctx, DemoStudentID)
	s.Require().NoError(err)
	s.InDelta(15.9, report.BubblePercentage, 1e-9)
	s.Equal([]string{"CS", "Mathematics"}, report.DepartmentsVisited)
	s.Equal([]string{"Counter 2", "Counter 5"}, report.CountersUsed)
	s.Equal([]string{"Technical Talk"}, report.EventTypes)

	unexplored, err := s.svc.Unexplored(s.ctx, DemoStudentID)
	s.Require().NoError(err)
	s.Require().Len(unexplored.UnexploredAreas, scoring.MaxUnexploredAreas)
	s.Equal("Design & Architecture", unexplored.UnexploredAreas[0].Name)

	_, err = s.svc.Bubble(s.ctx, "stu-missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestSeedDemo_OnlyOnEmptyStore() {
	seeded, err := s.svc.SeedDemo(s.ctx)
	s.Require().NoError(err)
	s.True(seeded)

	seeded, err = s.svc.SeedDemo(s.ctx)
	s.Require().NoError(err)
	s.False(seeded)

	student, err := s.svc.GetStudent(s.ctx, DemoStudentID)
	s.Require().NoError(err)
	s.Equal(247, student.DriftScore)
	s.Equal(4, student.DriftStreak)
}

func (s *ServiceSuite) TestSeedDemo_RecordUsesGapDepartmentNames() {
	_, err := s.svc.SeedDemo(s.ctx)
	s.Require().NoError(err)

	record, err := s.svc.Exploration(s.ctx, DemoStudentID)
	s.Require().NoError(err)
	s.Contains(scoring.GapDepartments, record.DepartmentsVisited[0])

	// Each side's 13-department gap is filled once by the other.
	music := &models.ExplorationRecord{DepartmentsVisited: []string{"Music"}}
	s.InDelta(1.0/169.0, scoring.GapProfileMatch(record, music), 1e-12)
}

func (s *ServiceSuite) TestCollision() {
	_, err := s.svc.SeedDemo(s.ctx)
	s.Require().NoError(err)
	other := s.createStudent()

	score, err := s.svc.Collision(s.ctx, DemoStudentID, other.ID)
	s.Require().NoError(err)
	s.GreaterOrEqual(score.Overall, 0.0)
	s.LessOrEqual(score.Overall, 100.0)

	_, err = s.svc.Collision(s.ctx, DemoStudentID, "stu-missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestGenerate_GoodScenarios_StoresPendingDrift() {
	student := s.createStudent()

	drift, err := s.svc.Generate(s.ctx, student.ID)
	s.Require().NoError(err)
	s.Equal(models.DriftStatusPending, drift.Status)
	s.Equal(models.DriftTypeCanteen, drift.Type)
	s.Equal(student.ID, drift.StudentID)
	s.False(drift.CrossedDepartment)

	stored, err := s.repo.GetDrift(s.ctx, drift.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored)
	s.Equal(drift.Title, stored.Title)

	s.Equal([]string{"student_created", "drift_generated"}, s.broadcastTypes())
}

func (s *ServiceSuite) TestGenerate_EdgeCases_UnknownStudent() {
	_, err := s.svc.Generate(s.ctx, "stu-missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestAcceptThenSkip_ScoreAndStreakAccounting() {
	student := s.createStudent()

	for i := 1; i <= 2; i++ {
		d, err := s.svc.Generate(s.ctx, student.ID)
		s.Require().NoError(err)
		res, err := s.svc.Accept(s.ctx, d.ID, student.ID)
		s.Require().NoError(err)
		s.Equal(models.DriftStatusAccepted, res.Status)
		s.Equal(10*i, res.NewScore)
		s.Equal(i, res.NewStreak)
	}

	d, err := s.svc.Generate(s.ctx, student.ID)
	s.Require().NoError(err)
	skip, err := s.svc.Skip(s.ctx, d.ID, "")
	s.Require().NoError(err)
	s.True(skip.StreakReset)
	s.Equal(models.DriftStatusSkipped, skip.Status)

	stored, err := s.svc.GetStudent(s.ctx, student.ID)
	s.Require().NoError(err)
	s.Equal(20, stored.DriftScore)
	s.Zero(stored.DriftStreak)
}

func (s *ServiceSuite) TestAccept_EdgeCases_Transitions() {
	student := s.createStudent()
	d, err := s.svc.Generate(s.ctx, student.ID)
	s.Require().NoError(err)

	_, err = s.svc.Accept(s.ctx, d.ID, "stu-other")
	s.ErrorIs(err, ErrConstraintViolation)
	s.False(errors.Is(err, ErrInvalidTransition))

	_, err = s.svc.Accept(s.ctx, d.ID, "")
	s.Require().NoError(err)

	_, err = s.svc.Accept(s.ctx, d.ID, "")
	s.ErrorIs(err, ErrInvalidTransition)
	s.ErrorIs(err, ErrConstraintViolation)

	_, err = s.svc.Skip(s.ctx, d.ID, "")
	s.ErrorIs(err, ErrInvalidTransition)

	_, err = s.svc.Accept(s.ctx, "drift-missing", "")
	s.ErrorIs(err, ErrNotFound)

	stored, err := s.svc.GetStudent(s.ctx, student.ID)
	s.Require().NoError(err)
	s.Equal(10, stored.DriftScore)
	s.Equal(1, stored.DriftStreak)
}

func (s *ServiceSuite) TestLogOutcome_GoodScenarios_RebuildsFingerprint() {
	student := s.createStudent()
	d, err := s.svc.Generate(s.ctx, student.ID)
	s.Require().NoError(err)
	_, err = s.svc.Accept(s.ctx, d.ID, "")
	s.Require().NoError(err)

	res, err := s.svc.LogOutcome(s.ctx, d.ID, OutcomeRequest{
		WasInteresting: true,
		Description:    "Met a friend from Music, we talked about a collab",
	})
	s.Require().NoError(err)
	s.Equal("completed", res.Status)
	s.Equal(35, res.NewScore)
	s.Equal([]string{
		models.TagCrossDepartmental,
		models.TagCollaboration,
		models.TagConnection,
		models.TagCreative,
	}, res.Tags)

	s.Require().NotNil(res.Fingerprint)
	s.Equal(1, res.Fingerprint.TotalDrifts)
	s.Equal(1, res.Fingerprint.MeaningfulDrifts)
	s.InDelta(1.0, res.Fingerprint.MeaningfulRate, 1e-9)
	s.Equal(models.DriftTypeCanteen, res.Fingerprint.BestDriftType)
	s.Equal("Lunch (12-2PM)", res.Fingerprint.BestTimeOfDay)

	stored, err := s.svc.Fingerprint(s.ctx, student.ID)
	s.Require().NoError(err)
	s.Equal(res.Fingerprint.Axes, stored.Axes)

	drift, err := s.repo.GetDrift(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Require().NotNil(drift.Outcome)
	s.True(drift.Outcome.WasInteresting)

	_, err = s.svc.LogOutcome(s.ctx, d.ID, OutcomeRequest{WasInteresting: true})
	s.ErrorIs(err, ErrInvalidTransition)
}

func (s *ServiceSuite) TestLogOutcome_EdgeCases_PendingAndSkipped() {
	student := s.createStudent()

	pending, err := s.svc.Generate(s.ctx, student.ID)
	s.Require().NoError(err)
	res, err := s.svc.LogOutcome(s.ctx, pending.ID, OutcomeRequest{WasInteresting: false, Description: "quiet lunch"})
	s.Require().NoError(err)
	s.Zero(res.NewScore)
	s.Empty(res.Tags)

	drift, err := s.repo.GetDrift(s.ctx, pending.ID)
	s.Require().NoError(err)
	s.Equal(models.DriftStatusAccepted, drift.Status)

	stored, err := s.svc.GetStudent(s.ctx, student.ID)
	s.Require().NoError(err)
	s.Zero(stored.DriftStreak)

	skipped, err := s.svc.Generate(s.ctx, student.ID)
	s.Require().NoError(err)
	_, err = s.svc.Skip(s.ctx, skipped.ID, student.ID)
	s.Require().NoError(err)
	_, err = s.svc.LogOutcome(s.ctx, skipped.ID, OutcomeRequest{WasInteresting: true})
	s.ErrorIs(err, ErrInvalidTransition)
}

func (s *ServiceSuite) TestHistory_OrderedWithTotal() {
	student := s.createStudent()
	var ids []string
	for i := 0; i < 3; i++ {
		d, err := s.svc.Generate(s.ctx, student.ID)
		s.Require().NoError(err)
		ids = append(ids, d.ID)
	}

	page, err := s.svc.History(s.ctx, student.ID, 0, 0)
	s.Require().NoError(err)
	s.Equal(int64(3), page.Total)
	s.Require().Len(page.Drifts, 3)
	for i, d := range page.Drifts {
		s.Equal(ids[i], d.ID)
	}

	page, err = s.svc.History(s.ctx, student.ID, 1, 1)
	s.Require().NoError(err)
	s.Equal(int64(3), page.Total)
	s.Require().Len(page.Drifts, 1)
	s.Equal(ids[1], page.Drifts[0].ID)

	_, err = s.svc.History(s.ctx, "stu-missing", 0, 0)
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestFingerprint_RebuiltWhenMissing() {
	s.Require().NoError(s.repo.CreateStudent(s.ctx, &models.StudentProfile{
		ID: "stu-bare", Name: "Bare", Department: "Physics", Year: 1,
	}))

	fp, err := s.svc.Fingerprint(s.ctx, "stu-bare")
	s.Require().NoError(err)
	s.Equal("stu-bare", fp.StudentID)
	s.Zero(fp.TotalDrifts)

	stored, err := s.repo.GetFingerprint(s.ctx, "stu-bare")
	s.Require().NoError(err)
	s.NotNil(stored)

	_, err = s.svc.Fingerprint(s.ctx, "stu-missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestFingerprint_SharedLoadIgnoresCallerCancellation() {
	s.Require().NoError(s.repo.CreateStudent(s.ctx, &models.StudentProfile{
		ID: "stu-cancel", Name: "Cancel", Department: "Physics", Year: 1,
	}))

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	fp, err := s.svc.Fingerprint(ctx, "stu-cancel")
	s.Require().NoError(err)
	s.Equal("stu-cancel", fp.StudentID)

	stored, err := s.repo.GetFingerprint(s.ctx, "stu-cancel")
	s.Require().NoError(err)
	s.NotNil(stored)
}

func (s *ServiceSuite) TestConcurrentAccept_OnlyOneWins() {
	student := s.createStudent()
	d, err := s.svc.Generate(s.ctx, student.ID)
	s.Require().NoError(err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.Accept(s.ctx, d.ID, "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, ErrInvalidTransition) {
				rejected++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, succeeded)
	s.Equal(workers-1, rejected)
	s.Zero(s.svc.locks.size())

	stored, err := s.svc.GetStudent(s.ctx, student.ID)
	s.Require().NoError(err)
	s.Equal(10, stored.DriftScore)
}

func (s *ServiceSuite) TestEventsAndDiscoverySlots() {
	_, err := s.svc.SeedDemo(s.ctx)
	s.Require().NoError(err)

	events, err := s.svc.Events(s.ctx, models.EventFilter{Department: "music"})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("evt-001", events[0].ID)

	events, err = s.svc.Events(s.ctx, models.EventFilter{Type: "workshop", FreeOnly: true})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("evt-003", events[0].ID)

	slot, err := s.svc.CreateDiscoverySlot(s.ctx, DiscoverySlotCreate{
		OrganizerID:   "vendor-chai",
		OrganizerType: models.OrganizerVendor,
		Name:          "Chai tasting",
		Location:      "Main Canteen",
	})
	s.Require().NoError(err)
	s.Regexp(`^ds-[0-9a-f]{6}$`, slot.ID)

	slots, err := s.svc.DiscoverySlots(s.ctx)
	s.Require().NoError(err)
	s.Len(slots, 2)

	_, err = s.svc.CreateDiscoverySlot(s.ctx, DiscoverySlotCreate{OrganizerID: "x", OrganizerType: "band", Name: "Gig"})
	s.ErrorIs(err, ErrConstraintViolation)
}

func TestAcceptedTypes(t *testing.T) {
	history := []*models.DriftNudge{
		{Type: models.DriftTypeSpace, Status: models.DriftStatusAccepted},
		{Type: models.DriftTypeEvent, Status: models.DriftStatusSkipped},
		{Type: models.DriftTypeCanteen, Status: models.DriftStatusAccepted},
		nil,
		{Type: models.DriftTypeSpace, Status: models.DriftStatusAccepted},
	}
	assert.Equal(t, []models.DriftType{models.DriftTypeCanteen, models.DriftTypeSpace}, acceptedTypes(history))
	assert.Empty(t, acceptedTypes(nil))
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	require.Equal(t, 2, k.size())
	unlockA()
	unlockB()
	assert.Zero(t, k.size())
}
