package worker

import (
	"fmt"
	"net/http"

	gormstore "github.com/thebtf/campus-drift/internal/db/gorm"
	"github.com/thebtf/campus-drift/internal/drift"
)

// DefaultHistoryLimit is the default page size for drift history.
const DefaultHistoryLimit = 50

// generateRequest asks for a student's daily drift.
type generateRequest struct {
	StudentID string `json:"student_id"`
}

// handleGenerateDrift generates and stores the student's daily drift.
func (s *Service) handleGenerateDrift(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := ValidateID("student", req.StudentID); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	nudge, err := s.drift.Generate(r.Context(), req.StudentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, nudge)
}

// ownerParam reads the optional student_id query parameter used to check
// drift ownership.
func ownerParam(r *http.Request) (string, error) {
	studentID := r.URL.Query().Get("student_id")
	if studentID == "" {
		return "", nil
	}
	if err := ValidateID("student", studentID); err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return studentID, nil
}

func (s *Service) handleAcceptDrift(w http.ResponseWriter, r *http.Request) {
	driftID, err := pathID(r, "driftID", "drift")
	if err != nil {
		writeError(w, r, err)
		return
	}
	studentID, err := ownerParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.drift.Accept(r.Context(), driftID, studentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (s *Service) handleSkipDrift(w http.ResponseWriter, r *http.Request) {
	driftID, err := pathID(r, "driftID", "drift")
	if err != nil {
		writeError(w, r, err)
		return
	}
	studentID, err := ownerParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.drift.Skip(r.Context(), driftID, studentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// handleDriftOutcome logs how a drift went and rebuilds the fingerprint.
func (s *Service) handleDriftOutcome(w http.ResponseWriter, r *http.Request) {
	driftID, err := pathID(r, "driftID", "drift")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req drift.OutcomeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.StudentID == "" {
		req.StudentID = r.URL.Query().Get("student_id")
	}
	if req.StudentID != "" {
		if err := ValidateID("student", req.StudentID); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
	}

	result, err := s.drift.LogOutcome(r.Context(), driftID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// handleDriftHistory returns a page of the student's drifts, oldest first.
func (s *Service) handleDriftHistory(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "studentID", "student")
	if err != nil {
		writeError(w, r, err)
		return
	}
	page := gormstore.ParsePaginationParams(r, DefaultHistoryLimit)

	history, err := s.drift.History(r.Context(), studentID, page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, history)
}

func (s *Service) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "studentID", "student")
	if err != nil {
		writeError(w, r, err)
		return
	}

	fp, err := s.drift.Fingerprint(r.Context(), studentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, fp)
}
