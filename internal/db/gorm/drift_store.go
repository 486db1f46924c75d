package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/thebtf/campus-drift/internal/db"
	"github.com/thebtf/campus-drift/pkg/models"
)

// GetDrift retrieves a drift by ID. Returns nil if not found.
func (r *Repository) GetDrift(ctx context.Context, id string) (*models.DriftNudge, error) {
	var row Drift
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get drift %s: %w", id, err)
	}
	return toModelDrift(&row), nil
}

// ListDrifts returns a student's drifts in the order they were appended.
func (r *Repository) ListDrifts(ctx context.Context, studentID string, limit, offset int) ([]*models.DriftNudge, error) {
	q := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit).Offset(max(offset, 0))
	}

	var rows []Drift
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list drifts for %s: %w", studentID, err)
	}

	drifts := make([]*models.DriftNudge, 0, len(rows))
	for i := range rows {
		drifts = append(drifts, toModelDrift(&rows[i]))
	}
	return drifts, nil
}

// CountDrifts returns the length of a student's drift history.
func (r *Repository) CountDrifts(ctx context.Context, studentID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&Drift{}).
		Where("student_id = ?", studentID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count drifts for %s: %w", studentID, err)
	}
	return n, nil
}

// AppendDrift inserts a drift at the end of its student's history.
func (r *Repository) AppendDrift(ctx context.Context, drift *models.DriftNudge) error {
	row := fromModelDrift(drift)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("append drift %s: %w", drift.ID, err)
	}
	return nil
}

// UpdateDrift stores the lifecycle status and outcome of an existing drift.
func (r *Repository) UpdateDrift(ctx context.Context, drift *models.DriftNudge) error {
	row := fromModelDrift(drift)
	result := r.db.WithContext(ctx).
		Model(&Drift{}).
		Where("id = ?", row.ID).
		Updates(map[string]interface{}{
			"status":                  row.Status,
			"has_outcome":             row.HasOutcome,
			"outcome_interesting":     row.OutcomeInteresting,
			"outcome_description":     row.OutcomeDescription,
			"outcome_tags":            row.OutcomeTags,
			"outcome_logged_at_epoch": row.OutcomeLoggedAtEpoch,
		})
	if result.Error != nil {
		return fmt.Errorf("update drift %s: %w", row.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update drift %s: %w", row.ID, db.ErrNotFound)
	}
	return nil
}
