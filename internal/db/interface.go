// Package db defines repository interfaces for the campus drift stores.
package db

import (
	"context"
	"errors"

	"github.com/thebtf/campus-drift/pkg/models"
)

// ErrNotFound is returned by update operations whose target row is absent.
// Lookups return (nil, nil) instead.
var ErrNotFound = errors.New("record not found")

// StudentStore persists student profiles keyed by student ID.
type StudentStore interface {
	GetStudent(ctx context.Context, id string) (*models.StudentProfile, error)
	CreateStudent(ctx context.Context, student *models.StudentProfile) error
	UpdateStudent(ctx context.Context, student *models.StudentProfile) error
	CountStudents(ctx context.Context) (int64, error)
}

// ExplorationStore persists one exploration record per student.
type ExplorationStore interface {
	GetExploration(ctx context.Context, studentID string) (*models.ExplorationRecord, error)
	PutExploration(ctx context.Context, record *models.ExplorationRecord) error
}

// DriftReader defines read operations for drifts.
type DriftReader interface {
	GetDrift(ctx context.Context, id string) (*models.DriftNudge, error)
	// ListDrifts returns a student's drifts oldest first. A non-positive
	// limit returns all of them.
	ListDrifts(ctx context.Context, studentID string, limit, offset int) ([]*models.DriftNudge, error)
	CountDrifts(ctx context.Context, studentID string) (int64, error)
}

// DriftWriter defines write operations for drifts.
type DriftWriter interface {
	// AppendDrift adds a drift to the end of its student's history.
	AppendDrift(ctx context.Context, drift *models.DriftNudge) error
	// UpdateDrift stores the drift's status and outcome.
	UpdateDrift(ctx context.Context, drift *models.DriftNudge) error
}

// DriftStore combines read and write operations for drifts.
type DriftStore interface {
	DriftReader
	DriftWriter
}

// FingerprintStore persists fingerprints keyed by student ID. Fingerprints
// are replaced wholesale.
type FingerprintStore interface {
	GetFingerprint(ctx context.Context, studentID string) (*models.SerendipityFingerprint, error)
	PutFingerprint(ctx context.Context, fp *models.SerendipityFingerprint) error
}

// CatalogStore persists campus events and discovery slots.
type CatalogStore interface {
	ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.CampusEvent, error)
	PutEvent(ctx context.Context, event *models.CampusEvent) error
	ListDiscoverySlots(ctx context.Context) ([]*models.DiscoverySlot, error)
	PutDiscoverySlot(ctx context.Context, slot *models.DiscoverySlot) error
}

// Repository is the full set of stores the drift service works against.
type Repository interface {
	StudentStore
	ExplorationStore
	DriftStore
	FingerprintStore
	CatalogStore

	// Transaction runs fn against a repository bound to one transaction.
	// The transaction commits when fn returns nil.
	Transaction(ctx context.Context, fn func(tx Repository) error) error
}
