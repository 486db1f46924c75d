package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/campus-drift/pkg/models"
)

// GetFingerprint retrieves a student's fingerprint. Returns nil if not found.
func (r *Repository) GetFingerprint(ctx context.Context, studentID string) (*models.SerendipityFingerprint, error) {
	var row Fingerprint
	err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fingerprint %s: %w", studentID, err)
	}
	return toModelFingerprint(&row), nil
}

// PutFingerprint replaces a student's fingerprint.
func (r *Repository) PutFingerprint(ctx context.Context, fp *models.SerendipityFingerprint) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "student_id"}}, UpdateAll: true}).
		Create(fromModelFingerprint(fp)).Error
	if err != nil {
		return fmt.Errorf("put fingerprint %s: %w", fp.StudentID, err)
	}
	return nil
}
