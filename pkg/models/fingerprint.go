package models

import "time"

// DefaultBestTimeOfDay is reported until a student has meaningful drifts.
const DefaultBestTimeOfDay = "Lunch (12-2PM)"

// FingerprintAxes are the six behavioral axis scores, each 0-100.
type FingerprintAxes struct {
	CrossDepartmental int `json:"cross_departmental"`
	Spontaneous       int `json:"spontaneous"`
	Social            int `json:"social"`
	Creative          int `json:"creative"`
	Exploratory       int `json:"exploratory"`
	TimingFlexibility int `json:"timing_flexibility"`
}

// SerendipityFingerprint is a student's smoothed behavioral profile.
// It is rebuilt from the full drift history on every logged outcome.
type SerendipityFingerprint struct {
	LastUpdated      time.Time       `json:"last_updated"`
	StudentID        string          `json:"student_id"`
	BestDriftType    DriftType       `json:"best_drift_type"`
	BestTimeOfDay    string          `json:"best_time_of_day"`
	Axes             FingerprintAxes `json:"axes"`
	MeaningfulRate   float64         `json:"meaningful_rate"`
	TotalDrifts      int             `json:"total_drifts"`
	MeaningfulDrifts int             `json:"meaningful_drifts"`
}
