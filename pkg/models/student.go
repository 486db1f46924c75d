package models

import (
	"strings"
	"time"
)

const (
	// MaxSkills is the maximum number of skills a student may declare.
	MaxSkills = 5
	// MaxInterests is the maximum number of interests a student may declare.
	MaxInterests = 8
	// DefaultTimeBudgetMinutes is used when a profile omits its time budget.
	DefaultTimeBudgetMinutes = 45
)

// StudentProfile is created once at signup. Score and streak are mutated by
// drift lifecycle events.
type StudentProfile struct {
	CreatedAt         time.Time `json:"created_at"`
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Department        string    `json:"department"`
	Skills            []string  `json:"skills"`
	Interests         []string  `json:"interests"`
	Accessibility     []string  `json:"accessibility"`
	Year              int       `json:"year"`
	TimeBudgetMinutes int       `json:"time_budget_minutes"`
	DriftScore        int       `json:"drift_score"`
	DriftStreak       int       `json:"drift_streak"`
	FreeOnly          bool      `json:"free_only"`
}

// StudentProfileCreate is the signup payload.
type StudentProfileCreate struct {
	Name              string   `json:"name"`
	Department        string   `json:"department"`
	Skills            []string `json:"skills"`
	Interests         []string `json:"interests"`
	Accessibility     []string `json:"accessibility"`
	Year              int      `json:"year"`
	TimeBudgetMinutes int      `json:"time_budget_minutes"`
	FreeOnly          bool     `json:"free_only"`
}

// StudentProfileUpdate carries optional fields for a partial update.
// Nil pointers leave the stored value untouched.
type StudentProfileUpdate struct {
	Name              *string   `json:"name,omitempty"`
	Department        *string   `json:"department,omitempty"`
	Year              *int      `json:"year,omitempty"`
	Skills            *[]string `json:"skills,omitempty"`
	Interests         *[]string `json:"interests,omitempty"`
	TimeBudgetMinutes *int      `json:"time_budget_minutes,omitempty"`
	FreeOnly          *bool     `json:"free_only,omitempty"`
	Accessibility     *[]string `json:"accessibility,omitempty"`
}

// ExplorationRecord is the set of campus areas and activities a student has
// engaged with. Entries are additive only.
type ExplorationRecord struct {
	LastUpdated            time.Time `json:"last_updated"`
	StudentID              string    `json:"student_id"`
	DepartmentsVisited     []string  `json:"departments_visited"`
	CanteenCountersUsed    []string  `json:"canteen_counters_used"`
	EventTypesAttended     []string  `json:"event_types_attended"`
	ContentDomainsExplored []string  `json:"content_domains_explored"`
	NewConnectionsCount    int       `json:"new_connections_count"`
}

// ExplorationUpdate lists entries to merge into an ExplorationRecord.
type ExplorationUpdate struct {
	Departments    []string `json:"departments"`
	CanteenCounter []string `json:"canteen_counters"`
	EventTypes     []string `json:"event_types"`
	ContentDomains []string `json:"content_domains"`
	NewConnections int      `json:"new_connections"`
}

// Merge adds the update's entries to the record. Existing entries are kept,
// duplicates are ignored and negative connection deltas are dropped.
// Returns true if anything changed.
func (r *ExplorationRecord) Merge(u ExplorationUpdate) bool {
	changed := false
	var added bool
	r.DepartmentsVisited, added = appendUnique(r.DepartmentsVisited, u.Departments)
	changed = changed || added
	r.CanteenCountersUsed, added = appendUnique(r.CanteenCountersUsed, u.CanteenCounter)
	changed = changed || added
	r.EventTypesAttended, added = appendUnique(r.EventTypesAttended, u.EventTypes)
	changed = changed || added
	r.ContentDomainsExplored, added = appendUnique(r.ContentDomainsExplored, u.ContentDomains)
	changed = changed || added
	if u.NewConnections > 0 {
		r.NewConnectionsCount += u.NewConnections
		changed = true
	}
	return changed
}

// HasVisited reports whether the department is in the visited set.
func (r *ExplorationRecord) HasVisited(department string) bool {
	if r == nil {
		return false
	}
	for _, d := range r.DepartmentsVisited {
		if d == department {
			return true
		}
	}
	return false
}

func appendUnique(dst, src []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(dst)+len(src))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	added := false
	for _, v := range src {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
		added = true
	}
	return dst, added
}
