package gorm

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/thebtf/campus-drift/internal/db"
	"github.com/thebtf/campus-drift/pkg/models"
)

// testRepository creates a Repository over a temporary SQLite database.
func testRepository(t *testing.T) (*Repository, *Store) {
	t.Helper()

	store, err := NewStore(Config{
		Driver:   DriverSQLite,
		DSN:      filepath.Join(t.TempDir(), "drift.db"),
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store.Repository(), store
}

func ts(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func TestNewStore_UnsupportedDriver(t *testing.T) {
	_, err := NewStore(Config{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestNewStore_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drift.db")

	first, err := NewStore(Config{DSN: path, LogLevel: logger.Silent})
	require.NoError(t, err)
	require.NoError(t, first.Repository().CreateStudent(context.Background(), &models.StudentProfile{ID: "stu-1", Name: "A", Department: "CS"}))
	require.NoError(t, first.Close())

	second, err := NewStore(Config{DSN: path, LogLevel: logger.Silent})
	require.NoError(t, err)
	defer second.Close()

	n, err := second.Repository().CountStudents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, DriverSQLite, second.Driver())
}

func TestStore_HealthCheck(t *testing.T) {
	_, store := testRepository(t)

	info := store.HealthCheck(context.Background())
	require.NotNil(t, info)
	assert.NotEqual(t, "unhealthy", info.Status)
	assert.Equal(t, DriverSQLite, info.Driver)
	assert.Same(t, info, store.HealthCheck(context.Background()), "second call within TTL is cached")
	assert.NoError(t, store.Ping())
}

// =============================================================================
// Students and exploration
// =============================================================================

func TestRepository_Student_CRUD(t *testing.T) {
	repo, _ := testRepository(t)
	ctx := context.Background()

	missing, err := repo.GetStudent(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	student := &models.StudentProfile{
		ID:                "stu-1",
		Name:              "Asha",
		Department:        "CS",
		Year:              2,
		Skills:            []string{"Python", "React"},
		Interests:         []string{"music"},
		TimeBudgetMinutes: 45,
		FreeOnly:          true,
		CreatedAt:         ts(9, 0),
	}
	require.NoError(t, repo.CreateStudent(ctx, student))

	got, err := repo.GetStudent(ctx, "stu-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Asha", got.Name)
	assert.Equal(t, []string{"Python", "React"}, got.Skills)
	assert.Equal(t, []string{}, got.Accessibility)
	assert.True(t, got.FreeOnly)
	assert.True(t, ts(9, 0).Equal(got.CreatedAt))

	got.DriftScore = 35
	got.DriftStreak = 2
	got.Skills = []string{"Go"}
	require.NoError(t, repo.UpdateStudent(ctx, got))

	updated, err := repo.GetStudent(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 35, updated.DriftScore)
	assert.Equal(t, 2, updated.DriftStreak)
	assert.Equal(t, []string{"Go"}, updated.Skills)

	n, err := repo.CountStudents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRepository_UpdateStudent_NotFound(t *testing.T) {
	repo, _ := testRepository(t)

	err := repo.UpdateStudent(context.Background(), &models.StudentProfile{ID: "ghost"})
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestRepository_Exploration_Upsert(t *testing.T) {
	repo, _ := testRepository(t)
	ctx := context.Background()

	rec, err := repo.GetExploration(ctx, "stu-1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	record := &models.ExplorationRecord{
		StudentID:          "stu-1",
		DepartmentsVisited: []string{"CS"},
		LastUpdated:        ts(10, 0),
	}
	require.NoError(t, repo.PutExploration(ctx, record))

	record.DepartmentsVisited = append(record.DepartmentsVisited, "Music")
	record.NewConnectionsCount = 3
	require.NoError(t, repo.PutExploration(ctx, record))

	got, err := repo.GetExploration(ctx, "stu-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"CS", "Music"}, got.DepartmentsVisited)
	assert.Equal(t, []string{}, got.CanteenCountersUsed)
	assert.Equal(t, 3, got.NewConnectionsCount)
}

// =============================================================================
// Drifts and fingerprints
// =============================================================================

func newDrift(id, studentID string, created time.Time) *models.DriftNudge {
	return &models.DriftNudge{
		ID:        id,
		StudentID: studentID,
		Type:      models.DriftTypeEvent,
		Title:     "Open Mic Night",
		Status:    models.DriftStatusPending,
		Reasoning: models.DriftReasoning{
			GapDescription:        "You haven't crossed paths with the Music crowd in 47 days",
			ScenarioChips:         []string{"Skill exchange"},
			DaysSinceIntersection: 47,
			SkillsComplementarity: 84,
		},
		CollisionPotentialScore: 81.5,
		TimeRequiredMinutes:     90,
		IsFree:                  true,
		CrossedDepartment:       true,
		CreatedAt:               created,
	}
}

func TestRepository_Drift_AppendAndList(t *testing.T) {
	repo, _ := testRepository(t)
	ctx := context.Background()

	// Appended out of timestamp order: history follows append order.
	require.NoError(t, repo.AppendDrift(ctx, newDrift("drift-b", "stu-1", ts(12, 0))))
	require.NoError(t, repo.AppendDrift(ctx, newDrift("drift-a", "stu-1", ts(9, 0))))
	require.NoError(t, repo.AppendDrift(ctx, newDrift("drift-c", "stu-1", ts(15, 0))))
	require.NoError(t, repo.AppendDrift(ctx, newDrift("drift-x", "stu-2", ts(15, 0))))

	all, err := repo.ListDrifts(ctx, "stu-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "drift-b", all[0].ID)
	assert.Equal(t, "drift-a", all[1].ID)
	assert.Equal(t, "drift-c", all[2].ID)

	page, err := repo.ListDrifts(ctx, "stu-1", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "drift-a", page[0].ID)

	n, err := repo.CountDrifts(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := repo.GetDrift(ctx, "drift-b")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 47, got.Reasoning.DaysSinceIntersection)
	assert.Equal(t, []string{"Skill exchange"}, got.Reasoning.ScenarioChips)
	assert.Equal(t, 81.5, got.CollisionPotentialScore)
	assert.True(t, got.CrossedDepartment)
	assert.Nil(t, got.Outcome)
}

func TestRepository_Drift_DuplicateIDRejected(t *testing.T) {
	repo, _ := testRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.AppendDrift(ctx, newDrift("drift-a", "stu-1", ts(9, 0))))
	assert.Error(t, repo.AppendDrift(ctx, newDrift("drift-a", "stu-1", ts(10, 0))))
}

func TestRepository_Drift_UpdateOutcome(t *testing.T) {
	repo, _ := testRepository(t)
	ctx := context.Background()

	d := newDrift("drift-a", "stu-1", ts(9, 0))
	require.NoError(t, repo.AppendDrift(ctx, d))

	d.Status = models.DriftStatusAccepted
	d.Outcome = &models.DriftOutcome{
		DriftID:         d.ID,
		WasInteresting:  true,
		Description:     "Met a music producer",
		FingerprintTags: []string{models.TagConnection, models.TagCreative},
		LoggedAt:        ts(21, 0),
	}
	require.NoError(t, repo.UpdateDrift(ctx, d))

	got, err := repo.GetDrift(ctx, "drift-a")
	require.NoError(t, err)
	assert.Equal(t, models.DriftStatusAccepted, got.Status)
	require.NotNil(t, got.Outcome)
	assert.True(t, got.Outcome.WasInteresting)
	assert.Equal(t, "drift-a", got.Outcome.DriftID)
	assert.Equal(t, []string{models.TagConnection, models.TagCreative}, got.Outcome.FingerprintTags)
	assert.True(t, ts(21, 0).Equal(got.Outcome.LoggedAt))
}

func TestRepository_Drift_UpdateMissing(t *testing.T) {
	repo, _ := testRepository(t)

	err := repo.UpdateDrift(context.Background(), newDrift("ghost", "stu-1", ts(9, 0)))
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestRepository_Fingerprint_Replace(t *testing.T) {
	repo, _ := testRepository(t)
	ctx := context.Background()

	fp := &models.SerendipityFingerprint{
		StudentID:     "stu-1",
		Axes:          models.FingerprintAxes{CrossDepartmental: 20, Spontaneous: 30, Social: 25, Creative: 15, Exploratory: 20, TimingFlexibility: 40},
		BestDriftType: models.DriftTypeCanteen,
		BestTimeOfDay: models.DefaultBestTimeOfDay,
		LastUpdated:   ts(9, 0),
	}
	require.NoError(t, repo.PutFingerprint(ctx, fp))

	fp.Axes.Social = 60
	fp.TotalDrifts = 4
	fp.MeaningfulDrifts = 3
	fp.MeaningfulRate = 0.75
	fp.BestDriftType = models.DriftTypeEvent
	require.NoError(t, repo.PutFingerprint(ctx, fp))

	got, err := repo.GetFingerprint(ctx, "stu-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 60, got.Axes.Social)
	assert.Equal(t, 0.75, got.MeaningfulRate)
	assert.Equal(t, models.DriftTypeEvent, got.BestDriftType)

	none, err := repo.GetFingerprint(ctx, "stu-2")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRepository_Transaction_RollsBack(t *testing.T) {
	repo, _ := testRepository(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.Transaction(ctx, func(tx db.Repository) error {
		if err := tx.CreateStudent(ctx, &models.StudentProfile{ID: "stu-1", Name: "A", Department: "CS"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.GetStudent(ctx, "stu-1")
	require.NoError(t, err)
	assert.Nil(t, got, "rolled back insert must not be visible")

	err = repo.Transaction(ctx, func(tx db.Repository) error {
		return tx.CreateStudent(ctx, &models.StudentProfile{ID: "stu-2", Name: "B", Department: "Music"})
	})
	require.NoError(t, err)
	got, err = repo.GetStudent(ctx, "stu-2")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

// =============================================================================
// Catalog
// =============================================================================

func TestRepository_ListEvents_Filters(t *testing.T) {
	repo, _ := testRepository(t)
	ctx := context.Background()

	events := []*models.CampusEvent{
		{ID: "evt-3", Title: "Quantum Computing Intro", Department: "Physics", Type: "talk", IsFree: true, StartTime: ts(16, 0)},
		{ID: "evt-1", Title: "Open Mic Night", Department: "Music", Type: "performance", IsFree: true, StartTime: ts(19, 30)},
		{ID: "evt-2", Title: "Startup Pitch Practice", Department: "Business", Type: "workshop", IsFree: false, StartTime: ts(14, 0)},
	}
	for _, ev := range events {
		require.NoError(t, repo.PutEvent(ctx, ev))
	}

	tests := []struct {
		name     string
		filter   models.EventFilter
		expected []string
	}{
		{"no filter, earliest first", models.EventFilter{}, []string{"evt-2", "evt-3", "evt-1"}},
		{"by type", models.EventFilter{Type: "talk"}, []string{"evt-3"}},
		{"department is case-insensitive", models.EventFilter{Department: "music"}, []string{"evt-1"}},
		{"free only", models.EventFilter{FreeOnly: true}, []string{"evt-3", "evt-1"}},
		{"no match", models.EventFilter{Type: "sports"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListEvents(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, ev := range got {
				ids = append(ids, ev.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestRepository_DiscoverySlots(t *testing.T) {
	repo, _ := testRepository(t)
	ctx := context.Background()

	slot := &models.DiscoverySlot{
		ID:             "slot-1",
		OrganizerID:    "club-photo",
		OrganizerType:  models.OrganizerClub,
		Name:           "Photo Walk",
		Location:       "Main Gate",
		AvailableTimes: []time.Time{ts(16, 0), ts(17, 30)},
		Tags:           []string{"photography", "outdoors"},
	}
	require.NoError(t, repo.PutDiscoverySlot(ctx, slot))

	slots, err := repo.ListDiscoverySlots(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, models.OrganizerClub, slots[0].OrganizerType)
	require.Len(t, slots[0].AvailableTimes, 2)
	assert.True(t, ts(17, 30).Equal(slots[0].AvailableTimes[1]))
	assert.Equal(t, []string{"photography", "outdoors"}, slots[0].Tags)
}

func TestParsePaginationParams(t *testing.T) {
	tests := []struct {
		query          string
		expectedLimit  int
		expectedOffset int
	}{
		{"", 50, 0},
		{"?limit=10&offset=20", 10, 20},
		{"?limit=-1&offset=-5", 50, 0},
		{"?limit=5000", MaxPaginationLimit, 0},
		{"?limit=abc", 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/students/stu-1/drifts"+tt.query, nil)
			p := ParsePaginationParams(r, 50)
			assert.Equal(t, tt.expectedLimit, p.Limit)
			assert.Equal(t, tt.expectedOffset, p.Offset)
		})
	}
}
