package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/voxrelay/voxrelay/internal/artifact"
	"github.com/voxrelay/voxrelay/internal/dispatch"
	"github.com/voxrelay/voxrelay/internal/job"
)

// TTSRequest represents the request body for POST /api/tts.
type TTSRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// TTSResponse represents the acceptance payload for POST /api/tts.
type TTSResponse struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	EstimatedTime int    `json:"estimated_time"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// EngineHealth reports one engine's readiness in the health payload.
type EngineHealth struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

// HealthResponse represents the response body for GET /health.
type HealthResponse struct {
	Status        string         `json:"status"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Engines       []EngineHealth `json:"engines"`
	ArtifactDir   string         `json:"artifact_dir"`
	Jobs          int            `json:"jobs"`
}

// handleTTS handles POST /api/tts requests.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("failed to decode tts request", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "invalid JSON body"})
		return
	}

	j, err := s.dispatcher.Submit(req.Text, req.Voice)
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrEmptyText):
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "text is required"})
		case errors.Is(err, dispatch.ErrTextTooLong):
			s.logger.Warn("text exceeds max length", "length", len(req.Text), "max", s.cfg.MaxTextLength)
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "text exceeds maximum length"})
		default:
			s.logger.Error("failed to submit job", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "failed to submit job"})
		}
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(TTSResponse{
		JobID:         j.ID,
		Status:        string(j.Status),
		EstimatedTime: estimateSeconds(len(req.Text)),
	})
}

// handleJob handles GET /api/job/{id} requests.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	j, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "job not found"})
		return
	}

	json.NewEncoder(w).Encode(j)
}

// handleDownload handles GET /api/download/{id} requests, streaming the
// artifact of a completed job.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	j, err := s.store.Get(r.PathValue("id"))
	if err != nil || j.Status != job.StatusCompleted {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "job not found"})
		return
	}

	f, err := s.artifacts.Open(j.ArtifactPath)
	if err != nil {
		s.logger.Warn("artifact missing for completed job", "job_id", j.ID, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "artifact expired"})
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", artifact.ContentTypeFor(j.ArtifactPath))
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Warn("failed to stream artifact", "job_id", j.ID, "error", err)
	}
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	engines := make([]EngineHealth, 0, s.chain.Len())
	for _, e := range s.chain.Engines() {
		engines = append(engines, EngineHealth{Name: e.Name(), Ready: e.Ready()})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Engines:       engines,
		ArtifactDir:   s.artifacts.Dir(),
		Jobs:          s.store.Len(),
	})
}

// estimateSeconds is a coarse UX hint for how long synthesis may take.
func estimateSeconds(textLength int) int {
	est := 2 + textLength/100
	if est > 30 {
		est = 30
	}
	return est
}
