package worker

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/campus-drift/internal/db"
	"github.com/thebtf/campus-drift/internal/drift"
)

// errBadRequest marks request decoding and parameter errors.
var errBadRequest = errors.New("bad request")

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes a 200 JSON response.
func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

// writeJSONStatus writes a JSON response with the given status.
func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorMessage writes a JSON error body.
func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(w, status, errorResponse{Detail: msg})
}

// writeError maps a service error to its HTTP status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Str("request_id", GetRequestID(r.Context())).Msg("Request failed")
		msg = "internal server error"
	}
	writeJSONStatus(w, status, errorResponse{Detail: msg, RequestID: GetRequestID(r.Context())})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, drift.ErrNotFound), errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, drift.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, drift.ErrConstraintViolation), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, drift.ErrExternalServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes the request body into v. An empty body leaves v unchanged.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: request body too large", errBadRequest)
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

// pathID reads and validates a URL parameter.
func pathID(r *http.Request, param, kind string) (string, error) {
	id := chi.URLParam(r, param)
	if err := ValidateID(kind, id); err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return id, nil
}

// handleHealth handles health check requests.
// Returns 200 OK immediately (even during init). Use /api/ready for full
// readiness.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	} else if err := s.GetInitError(); err != nil {
		status = "error"
	}
	writeJSON(w, map[string]any{
		"status":  status,
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleVersion returns the service version.
func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"version": s.version})
}

// handleReady handles readiness check requests.
// Returns 200 only when initialized and the database answers.
func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		if err := s.GetInitError(); err != nil {
			writeErrorMessage(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeErrorMessage(w, http.StatusServiceUnavailable, "service initializing")
		return
	}

	health := s.store.HealthCheck(r.Context())
	if health.Status == "unhealthy" {
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "unavailable",
			"database": health,
		})
		return
	}
	writeJSON(w, map[string]any{
		"status":      "ready",
		"database":    health,
		"sse_clients": s.sseBroadcaster.ClientCount(),
		"rate_limit":  s.limiter.Stats(),
	})
}

// requireReady is middleware that returns 503 if service isn't ready.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			if err := s.GetInitError(); err != nil {
				writeErrorMessage(w, http.StatusInternalServerError, "service initialization failed: "+err.Error())
				return
			}
			writeErrorMessage(w, http.StatusServiceUnavailable, "service initializing")
			return
		}
		next.ServeHTTP(w, r)
	})
}
