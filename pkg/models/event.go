package models

import "time"

// CampusEvent is a scheduled event on campus.
type CampusEvent struct {
	StartTime         time.Time `json:"start_time"`
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Department        string    `json:"department"`
	Type              string    `json:"type"` // talk, workshop, performance, social, sports
	Location          string    `json:"location"`
	ExpectedAttendees []string  `json:"expected_attendees"`
	DurationMinutes   int       `json:"duration_minutes"`
	IsFree            bool      `json:"is_free"`
	DiscoverySlot     bool      `json:"discovery_slot"`
}

// OrganizerType identifies who publishes a discovery slot.
type OrganizerType string

const (
	OrganizerClub   OrganizerType = "club"
	OrganizerVendor OrganizerType = "vendor"
	OrganizerEvent  OrganizerType = "event"
)

// IsValid reports whether t is a known organizer type.
func (t OrganizerType) IsValid() bool {
	return t == OrganizerClub || t == OrganizerVendor || t == OrganizerEvent
}

// DiscoverySlot is an open window a club or vendor publishes for drifting students.
type DiscoverySlot struct {
	ID             string        `json:"id"`
	OrganizerID    string        `json:"organizer_id"`
	OrganizerType  OrganizerType `json:"organizer_type"`
	Name           string        `json:"name"`
	Location       string        `json:"location"`
	Description    string        `json:"description"`
	AvailableTimes []time.Time   `json:"available_times"`
	Tags           []string      `json:"tags"`
}

// EventFilter narrows an event listing. Zero values mean no filter.
type EventFilter struct {
	Type       string
	Department string
	FreeOnly   bool
}
