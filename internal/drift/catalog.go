package drift

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/campus-drift/pkg/models"
)

// DiscoverySlotCreate is the payload for publishing a discovery slot.
type DiscoverySlotCreate struct {
	OrganizerID    string               `json:"organizer_id"`
	OrganizerType  models.OrganizerType `json:"organizer_type"`
	Name           string               `json:"name"`
	Location       string               `json:"location"`
	Description    string               `json:"description"`
	AvailableTimes []time.Time          `json:"available_times"`
	Tags           []string             `json:"tags"`
}

// Events lists campus events matching the filter.
func (s *Service) Events(ctx context.Context, filter models.EventFilter) ([]*models.CampusEvent, error) {
	filter.Type = strings.TrimSpace(filter.Type)
	filter.Department = strings.TrimSpace(filter.Department)
	events, err := s.repo.ListEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if events == nil {
		events = []*models.CampusEvent{}
	}
	return events, nil
}

// DiscoverySlots lists all published discovery slots.
func (s *Service) DiscoverySlots(ctx context.Context) ([]*models.DiscoverySlot, error) {
	slots, err := s.repo.ListDiscoverySlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list discovery slots: %w", err)
	}
	if slots == nil {
		slots = []*models.DiscoverySlot{}
	}
	return slots, nil
}

// CreateDiscoverySlot validates and stores a new discovery slot.
func (s *Service) CreateDiscoverySlot(ctx context.Context, in DiscoverySlotCreate) (*models.DiscoverySlot, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.OrganizerID = strings.TrimSpace(in.OrganizerID)
	switch {
	case in.Name == "":
		return nil, violation("slot name is required")
	case in.OrganizerID == "":
		return nil, violation("organizer id is required")
	case !in.OrganizerType.IsValid():
		return nil, violation("unknown organizer type %q", in.OrganizerType)
	}

	slot := &models.DiscoverySlot{
		ID:             shortID("ds-"),
		OrganizerID:    in.OrganizerID,
		OrganizerType:  in.OrganizerType,
		Name:           in.Name,
		Location:       in.Location,
		Description:    in.Description,
		AvailableTimes: in.AvailableTimes,
		Tags:           nonNil(in.Tags),
	}
	if slot.AvailableTimes == nil {
		slot.AvailableTimes = []time.Time{}
	}
	if err := s.repo.PutDiscoverySlot(ctx, slot); err != nil {
		return nil, fmt.Errorf("put discovery slot: %w", err)
	}

	log.Info().Str("slot_id", slot.ID).Str("organizer", slot.OrganizerID).Msg("Discovery slot created")
	return slot, nil
}
