package worker

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/campus-drift/internal/assistant"
	"github.com/thebtf/campus-drift/internal/drift"
	"github.com/thebtf/campus-drift/pkg/models"
)

// handleListEvents lists campus events. Query filters: type, department,
// free_only.
func (s *Service) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.EventFilter{
		Type:       q.Get("type"),
		Department: q.Get("department"),
	}
	if v := q.Get("free_only"); v != "" {
		freeOnly, err := strconv.ParseBool(v)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "free_only must be a boolean")
			return
		}
		filter.FreeOnly = freeOnly
	}

	events, err := s.drift.Events(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, events)
}

func (s *Service) handleListDiscoverySlots(w http.ResponseWriter, r *http.Request) {
	slots, err := s.drift.DiscoverySlots(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, slots)
}

func (s *Service) handleCreateDiscoverySlot(w http.ResponseWriter, r *http.Request) {
	var in drift.DiscoverySlotCreate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	slot, err := s.drift.CreateDiscoverySlot(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, slot)
}

// handleChatAsk answers a campus question. The assistant always answers,
// falling back to canned replies when the model backend is unavailable.
func (s *Service) handleChatAsk(w http.ResponseWriter, r *http.Request) {
	var req assistant.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Query == "" {
		writeErrorMessage(w, http.StatusBadRequest, "query is required")
		return
	}

	writeJSON(w, s.assistant.Ask(r.Context(), req, s.studentContext(r, req.StudentID)))
}

// studentContext loads what the assistant may know about the student.
// Missing data is left nil.
func (s *Service) studentContext(r *http.Request, studentID string) assistant.StudentContext {
	var sc assistant.StudentContext
	if studentID == "" || ValidateID("student", studentID) != nil {
		return sc
	}

	ctx := r.Context()
	student, err := s.drift.GetStudent(ctx, studentID)
	if err != nil {
		if !errors.Is(err, drift.ErrNotFound) {
			log.Warn().Err(err).Str("student", studentID).Msg("Failed to load student for assistant")
		}
		return sc
	}
	sc.Student = student

	record, err := s.drift.Exploration(ctx, studentID)
	if err != nil {
		return sc
	}
	sc.Record = record

	if report, err := s.drift.Bubble(ctx, studentID); err == nil {
		bubble := report.BubblePercentage
		sc.Bubble = &bubble
	}
	return sc
}
