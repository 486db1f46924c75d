package worker

import (
	"fmt"
	"net/http"

	"github.com/thebtf/campus-drift/pkg/models"
)

// collisionRequest names the two students to score.
type collisionRequest struct {
	StudentA string `json:"student_a"`
	StudentB string `json:"student_b"`
}

// handleCreateProfile creates a student with a seeded exploration record
// and a default fingerprint.
func (s *Service) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var in models.StudentProfileCreate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	student, err := s.drift.CreateStudent(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, student)
}

func (s *Service) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "studentID", "student")
	if err != nil {
		writeError(w, r, err)
		return
	}

	student, err := s.drift.GetStudent(r.Context(), studentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, student)
}

// handleUpdateProfile applies a partial update. Omitted fields are unchanged.
func (s *Service) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "studentID", "student")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var upd models.StudentProfileUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, r, err)
		return
	}

	student, err := s.drift.UpdateStudent(r.Context(), studentID, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, student)
}

func (s *Service) handleGetExploration(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "studentID", "student")
	if err != nil {
		writeError(w, r, err)
		return
	}

	record, err := s.drift.Exploration(r.Context(), studentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, record)
}

// handleRecordExploration merges new exploration entries into the record.
func (s *Service) handleRecordExploration(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "studentID", "student")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var upd models.ExplorationUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, r, err)
		return
	}

	record, err := s.drift.RecordExploration(r.Context(), studentID, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, record)
}

func (s *Service) handleBubble(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "studentID", "student")
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.drift.Bubble(r.Context(), studentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, report)
}

func (s *Service) handleUnexplored(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "studentID", "student")
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.drift.Unexplored(r.Context(), studentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// handleCollision scores how much two students could learn from each other.
func (s *Service) handleCollision(w http.ResponseWriter, r *http.Request) {
	var req collisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	for _, id := range []string{req.StudentA, req.StudentB} {
		if err := ValidateID("student", id); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
	}

	score, err := s.drift.Collision(r.Context(), req.StudentA, req.StudentB)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, score)
}
