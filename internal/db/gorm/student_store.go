package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/campus-drift/internal/db"
	"github.com/thebtf/campus-drift/pkg/models"
)

// GetStudent retrieves a student profile. Returns nil if not found.
func (r *Repository) GetStudent(ctx context.Context, id string) (*models.StudentProfile, error) {
	var row Student
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student %s: %w", id, err)
	}
	return toModelStudent(&row), nil
}

// CreateStudent inserts a new student profile.
func (r *Repository) CreateStudent(ctx context.Context, student *models.StudentProfile) error {
	if err := r.db.WithContext(ctx).Create(fromModelStudent(student)).Error; err != nil {
		return fmt.Errorf("create student %s: %w", student.ID, err)
	}
	return nil
}

// UpdateStudent overwrites every mutable field of an existing profile.
func (r *Repository) UpdateStudent(ctx context.Context, student *models.StudentProfile) error {
	row := fromModelStudent(student)
	result := r.db.WithContext(ctx).
		Model(&Student{}).
		Where("id = ?", row.ID).
		Updates(map[string]interface{}{
			"name":                row.Name,
			"department":          row.Department,
			"year":                row.Year,
			"skills":              row.Skills,
			"interests":           row.Interests,
			"accessibility":       row.Accessibility,
			"time_budget_minutes": row.TimeBudgetMinutes,
			"free_only":           row.FreeOnly,
			"drift_score":         row.DriftScore,
			"drift_streak":        row.DriftStreak,
		})
	if result.Error != nil {
		return fmt.Errorf("update student %s: %w", row.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update student %s: %w", row.ID, db.ErrNotFound)
	}
	return nil
}

// CountStudents returns the number of stored profiles.
func (r *Repository) CountStudents(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Student{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return n, nil
}

// GetExploration retrieves a student's exploration record. Returns nil if not found.
func (r *Repository) GetExploration(ctx context.Context, studentID string) (*models.ExplorationRecord, error) {
	var row ExplorationRecord
	err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get exploration %s: %w", studentID, err)
	}
	return toModelExploration(&row), nil
}

// PutExploration inserts or replaces a student's exploration record.
func (r *Repository) PutExploration(ctx context.Context, record *models.ExplorationRecord) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}},
			UpdateAll: true,
		}).
		Create(fromModelExploration(record)).Error
	if err != nil {
		return fmt.Errorf("put exploration %s: %w", record.StudentID, err)
	}
	return nil
}
