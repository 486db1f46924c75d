package drift

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/campus-drift/internal/db"
	"github.com/thebtf/campus-drift/internal/metrics"
	"github.com/thebtf/campus-drift/internal/nudge"
	"github.com/thebtf/campus-drift/pkg/models"
)

// AcceptResult is returned when a drift is accepted.
type AcceptResult struct {
	Status    models.DriftStatus `json:"status"`
	DriftID   string             `json:"drift_id"`
	NewScore  int                `json:"new_score"`
	NewStreak int                `json:"new_streak"`
}

// SkipResult is returned when a drift is skipped.
type SkipResult struct {
	Status      models.DriftStatus `json:"status"`
	DriftID     string             `json:"drift_id"`
	StreakReset bool               `json:"streak_reset"`
}

// OutcomeRequest is the payload for logging a drift outcome.
type OutcomeRequest struct {
	StudentID      string `json:"student_id,omitempty"`
	Description    string `json:"description"`
	WasInteresting bool   `json:"was_interesting"`
}

// OutcomeResult is returned when an outcome is logged.
type OutcomeResult struct {
	Fingerprint    *models.SerendipityFingerprint `json:"fingerprint"`
	Status         string                         `json:"status"`
	DriftID        string                         `json:"drift_id"`
	Tags           []string                       `json:"fingerprint_tags"`
	NewScore       int                            `json:"new_score"`
	WasInteresting bool                           `json:"was_interesting"`
}

// HistoryPage is one page of a student's drift history, oldest first.
type HistoryPage struct {
	StudentID string               `json:"student_id"`
	Drifts    []*models.DriftNudge `json:"drifts"`
	Total     int64                `json:"total"`
}

// Generate creates and stores the student's daily drift.
func (s *Service) Generate(ctx context.Context, studentID string) (*models.DriftNudge, error) {
	ctx, span := startSpan(ctx, "drift.Generate", attribute.String("student.id", studentID))
	defer span.End()

	unlock := s.locks.Lock(studentID)
	defer unlock()

	var (
		student *models.StudentProfile
		record  *models.ExplorationRecord
		fp      *models.SerendipityFingerprint
		events  []*models.CampusEvent
		slots   []*models.DiscoverySlot
		history []*models.DriftNudge
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		student, err = s.repo.GetStudent(gctx, studentID)
		return err
	})
	g.Go(func() error {
		var err error
		record, err = s.repo.GetExploration(gctx, studentID)
		return err
	})
	g.Go(func() error {
		var err error
		fp, err = s.repo.GetFingerprint(gctx, studentID)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = s.repo.ListEvents(gctx, models.EventFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		slots, err = s.repo.ListDiscoverySlots(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = s.repo.ListDrifts(gctx, studentID, 0, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, spanError(span, fmt.Errorf("load drift inputs: %w", err))
	}

	if student == nil {
		return nil, notFound("student", studentID)
	}
	if record == nil {
		return nil, notFound("exploration record", studentID)
	}
	if fp == nil {
		log.Warn().Str("student_id", studentID).Msg("No fingerprint stored, using defaults")
		fp = s.builder.BuildProfile(studentID, nil, s.now())
	}

	drift := s.engine.GenerateDailyDrift(student, record, fp, &nudge.Candidates{
		Events:     events,
		Slots:      slots,
		TriedTypes: acceptedTypes(history),
	})
	if err := s.repo.AppendDrift(ctx, drift); err != nil {
		return nil, spanError(span, fmt.Errorf("store drift: %w", err))
	}
	span.SetAttributes(attribute.String("drift.id", drift.ID), attribute.String("drift.type", string(drift.Type)))

	log.Info().
		Str("student_id", studentID).
		Str("drift_id", drift.ID).
		Str("type", string(drift.Type)).
		Float64("potential", drift.CollisionPotentialScore).
		Msg("Drift generated")
	metrics.RecordDriftGenerated(string(drift.Type))
	s.broadcast(map[string]any{
		"type":       "drift_generated",
		"student_id": studentID,
		"drift_id":   drift.ID,
		"drift_type": drift.Type,
	})
	return drift, nil
}

// Accept marks a pending drift accepted, extends the streak and adds the
// accept reward to the drift score. studentID is optional; when set it must
// own the drift.
func (s *Service) Accept(ctx context.Context, driftID, studentID string) (*AcceptResult, error) {
	ctx, span := startSpan(ctx, "drift.Accept", attribute.String("drift.id", driftID))
	defer span.End()

	owner, err := s.driftOwner(ctx, driftID, studentID)
	if err != nil {
		return nil, spanError(span, err)
	}
	unlock := s.locks.Lock(owner)
	defer unlock()

	var result *AcceptResult
	err = s.repo.Transaction(ctx, func(tx db.Repository) error {
		drift, student, err := loadDriftAndStudent(ctx, tx, driftID)
		if err != nil {
			return err
		}
		if drift.Status != models.DriftStatusPending {
			return fmt.Errorf("accept drift %q in status %s: %w", driftID, drift.Status, ErrInvalidTransition)
		}

		drift.Status = models.DriftStatusAccepted
		student.DriftStreak++
		student.DriftScore += s.config.AcceptReward

		if err := tx.UpdateDrift(ctx, drift); err != nil {
			return fmt.Errorf("update drift: %w", err)
		}
		if err := tx.UpdateStudent(ctx, student); err != nil {
			return fmt.Errorf("update student: %w", err)
		}
		result = &AcceptResult{
			Status:    drift.Status,
			DriftID:   drift.ID,
			NewScore:  student.DriftScore,
			NewStreak: student.DriftStreak,
		}
		return nil
	})
	if err != nil {
		return nil, spanError(span, err)
	}

	log.Info().Str("drift_id", driftID).Str("student_id", owner).Int("streak", result.NewStreak).Msg("Drift accepted")
	metrics.RecordDriftTransition("accepted")
	s.broadcast(map[string]any{
		"type":       "drift_accepted",
		"student_id": owner,
		"drift_id":   driftID,
		"score":      result.NewScore,
		"streak":     result.NewStreak,
	})
	return result, nil
}

// Skip marks a pending drift skipped and resets the streak. The score is
// left unchanged.
func (s *Service) Skip(ctx context.Context, driftID, studentID string) (*SkipResult, error) {
	ctx, span := startSpan(ctx, "drift.Skip", attribute.String("drift.id", driftID))
	defer span.End()

	owner, err := s.driftOwner(ctx, driftID, studentID)
	if err != nil {
		return nil, spanError(span, err)
	}
	unlock := s.locks.Lock(owner)
	defer unlock()

	err = s.repo.Transaction(ctx, func(tx db.Repository) error {
		drift, student, err := loadDriftAndStudent(ctx, tx, driftID)
		if err != nil {
			return err
		}
		if drift.Status != models.DriftStatusPending {
			return fmt.Errorf("skip drift %q in status %s: %w", driftID, drift.Status, ErrInvalidTransition)
		}

		drift.Status = models.DriftStatusSkipped
		student.DriftStreak = 0

		if err := tx.UpdateDrift(ctx, drift); err != nil {
			return fmt.Errorf("update drift: %w", err)
		}
		if err := tx.UpdateStudent(ctx, student); err != nil {
			return fmt.Errorf("update student: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, spanError(span, err)
	}

	log.Info().Str("drift_id", driftID).Str("student_id", owner).Msg("Drift skipped")
	metrics.RecordDriftTransition("skipped")
	s.broadcast(map[string]any{
		"type":       "drift_skipped",
		"student_id": owner,
		"drift_id":   driftID,
	})
	return &SkipResult{
		Status:      models.DriftStatusSkipped,
		DriftID:     driftID,
		StreakReset: true,
	}, nil
}

// LogOutcome records what happened on a drift and rebuilds the student's
// fingerprint from the full history. A pending drift is marked accepted
// without the accept reward. Skipped drifts and drifts that already carry an
// outcome are rejected.
func (s *Service) LogOutcome(ctx context.Context, driftID string, req OutcomeRequest) (*OutcomeResult, error) {
	ctx, span := startSpan(ctx, "drift.LogOutcome",
		attribute.String("drift.id", driftID),
		attribute.Bool("outcome.interesting", req.WasInteresting),
	)
	defer span.End()

	owner, err := s.driftOwner(ctx, driftID, req.StudentID)
	if err != nil {
		return nil, spanError(span, err)
	}
	unlock := s.locks.Lock(owner)
	defer unlock()

	var result *OutcomeResult
	err = s.repo.Transaction(ctx, func(tx db.Repository) error {
		drift, student, err := loadDriftAndStudent(ctx, tx, driftID)
		if err != nil {
			return err
		}
		if drift.Status == models.DriftStatusSkipped || drift.Outcome != nil {
			return fmt.Errorf("log outcome for drift %q: %w", driftID, ErrInvalidTransition)
		}

		now := s.now()
		drift.Status = models.DriftStatusAccepted
		drift.Outcome = &models.DriftOutcome{
			DriftID:         drift.ID,
			WasInteresting:  req.WasInteresting,
			Description:     req.Description,
			FingerprintTags: DeriveTags(req.Description, student.Department, drift.CrossedDepartment),
			LoggedAt:        now,
		}
		if req.WasInteresting {
			student.DriftScore += s.config.InterestingReward
		}

		if err := tx.UpdateDrift(ctx, drift); err != nil {
			return fmt.Errorf("update drift: %w", err)
		}
		if err := tx.UpdateStudent(ctx, student); err != nil {
			return fmt.Errorf("update student: %w", err)
		}

		history, err := tx.ListDrifts(ctx, student.ID, 0, 0)
		if err != nil {
			return fmt.Errorf("list drifts: %w", err)
		}
		fp := s.builder.BuildProfile(student.ID, history, now)
		if err := tx.PutFingerprint(ctx, fp); err != nil {
			return fmt.Errorf("put fingerprint: %w", err)
		}

		result = &OutcomeResult{
			Status:         "completed",
			DriftID:        drift.ID,
			WasInteresting: req.WasInteresting,
			NewScore:       student.DriftScore,
			Tags:           drift.Outcome.FingerprintTags,
			Fingerprint:    fp,
		}
		return nil
	})
	if err != nil {
		return nil, spanError(span, err)
	}

	log.Info().
		Str("drift_id", driftID).
		Str("student_id", owner).
		Bool("interesting", result.WasInteresting).
		Strs("tags", result.Tags).
		Msg("Drift outcome logged")
	metrics.RecordDriftTransition("completed")
	s.broadcast(map[string]any{
		"type":        "drift_completed",
		"student_id":  owner,
		"drift_id":    driftID,
		"interesting": result.WasInteresting,
		"score":       result.NewScore,
	})
	return result, nil
}

// History returns a page of the student's drifts, oldest first.
// A non-positive limit returns the full history.
func (s *Service) History(ctx context.Context, studentID string, limit, offset int) (*HistoryPage, error) {
	if _, err := s.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	drifts, err := s.repo.ListDrifts(ctx, studentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list drifts: %w", err)
	}
	total, err := s.repo.CountDrifts(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("count drifts: %w", err)
	}
	if drifts == nil {
		drifts = []*models.DriftNudge{}
	}
	return &HistoryPage{StudentID: studentID, Drifts: drifts, Total: total}, nil
}

// Fingerprint returns the stored fingerprint. A student without one gets a
// fingerprint rebuilt from history, which is then stored. Concurrent calls
// for the same student share one load.
func (s *Service) Fingerprint(ctx context.Context, studentID string) (*models.SerendipityFingerprint, error) {
	v, err, _ := s.fpGroup.Do(studentID, func() (any, error) {
		// The call is shared by every coalesced caller; one caller
		// cancelling must not fail the others.
		ctx := context.WithoutCancel(ctx)

		fp, err := s.repo.GetFingerprint(ctx, studentID)
		if err != nil {
			return nil, fmt.Errorf("get fingerprint: %w", err)
		}
		if fp != nil {
			return fp, nil
		}

		unlock := s.locks.Lock(studentID)
		defer unlock()

		if _, err := s.GetStudent(ctx, studentID); err != nil {
			return nil, err
		}
		history, err := s.repo.ListDrifts(ctx, studentID, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("list drifts: %w", err)
		}
		fp = s.builder.BuildProfile(studentID, history, s.now())
		if err := s.repo.PutFingerprint(ctx, fp); err != nil {
			return nil, fmt.Errorf("put fingerprint: %w", err)
		}
		log.Debug().Str("student_id", studentID).Msg("Fingerprint rebuilt")
		return fp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.SerendipityFingerprint), nil
}

// driftOwner resolves the student that owns a drift. A non-empty studentID
// must match the owner.
func (s *Service) driftOwner(ctx context.Context, driftID, studentID string) (string, error) {
	drift, err := s.repo.GetDrift(ctx, driftID)
	if err != nil {
		return "", fmt.Errorf("get drift: %w", err)
	}
	if drift == nil {
		return "", notFound("drift", driftID)
	}
	if studentID != "" && studentID != drift.StudentID {
		return "", violation("drift %q does not belong to student %q", driftID, studentID)
	}
	return drift.StudentID, nil
}

func loadDriftAndStudent(ctx context.Context, tx db.Repository, driftID string) (*models.DriftNudge, *models.StudentProfile, error) {
	drift, err := tx.GetDrift(ctx, driftID)
	if err != nil {
		return nil, nil, fmt.Errorf("get drift: %w", err)
	}
	if drift == nil {
		return nil, nil, notFound("drift", driftID)
	}
	student, err := tx.GetStudent(ctx, drift.StudentID)
	if err != nil {
		return nil, nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, nil, notFound("student", drift.StudentID)
	}
	return drift, student, nil
}

// acceptedTypes lists the drift types the student has accepted, in
// canonical order.
func acceptedTypes(history []*models.DriftNudge) []models.DriftType {
	seen := make(map[models.DriftType]bool, len(models.AllDriftTypes))
	for _, d := range history {
		if d != nil && d.Status == models.DriftStatusAccepted {
			seen[d.Type] = true
		}
	}
	tried := make([]models.DriftType, 0, len(seen))
	for _, t := range models.AllDriftTypes {
		if seen[t] {
			tried = append(tried, t)
		}
	}
	return tried
}
