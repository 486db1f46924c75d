package gorm

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm/clause"

	"github.com/thebtf/campus-drift/pkg/models"
)

// ListEvents returns campus events matching the filter, earliest first.
// Department matches case-insensitively.
func (r *Repository) ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.CampusEvent, error) {
	q := r.db.WithContext(ctx).Model(&CampusEvent{})
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Department != "" {
		q = q.Where("LOWER(department) = ?", strings.ToLower(filter.Department))
	}
	if filter.FreeOnly {
		q = q.Where("is_free = ?", true)
	}

	var rows []CampusEvent
	if err := q.Order("start_time_epoch ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]*models.CampusEvent, 0, len(rows))
	for i := range rows {
		events = append(events, toModelEvent(&rows[i]))
	}
	return events, nil
}

// PutEvent inserts or replaces a campus event.
func (r *Repository) PutEvent(ctx context.Context, event *models.CampusEvent) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(fromModelEvent(event)).Error
	if err != nil {
		return fmt.Errorf("put event %s: %w", event.ID, err)
	}
	return nil
}

// ListDiscoverySlots returns every published discovery slot.
func (r *Repository) ListDiscoverySlots(ctx context.Context) ([]*models.DiscoverySlot, error) {
	var rows []DiscoverySlot
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list discovery slots: %w", err)
	}

	slots := make([]*models.DiscoverySlot, 0, len(rows))
	for i := range rows {
		slots = append(slots, toModelSlot(&rows[i]))
	}
	return slots, nil
}

// PutDiscoverySlot inserts or replaces a discovery slot.
func (r *Repository) PutDiscoverySlot(ctx context.Context, slot *models.DiscoverySlot) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(fromModelSlot(slot)).Error
	if err != nil {
		return fmt.Errorf("put discovery slot %s: %w", slot.ID, err)
	}
	return nil
}
