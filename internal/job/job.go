// Package job defines the synthesis job model, its state machine, and the
// in-memory store shared between the dispatcher, the HTTP API and the janitor.
package job

import (
	"time"

	"github.com/google/uuid"
)

// Status identifies where a job is in its lifecycle.
type Status string

const (
	// StatusQueued is the initial state, set at creation.
	StatusQueued Status = "queued"
	// StatusProcessing means an engine has been selected and work started.
	StatusProcessing Status = "processing"
	// StatusLoadingModel means the engine is preparing its model.
	StatusLoadingModel Status = "loading_model"
	// StatusGeneratingAudio means synthesis is in flight.
	StatusGeneratingAudio Status = "generating_audio"
	// StatusFinalizing means audio was produced and is being persisted.
	StatusFinalizing Status = "finalizing"
	// StatusCompleted is terminal: the artifact is stored and linked.
	StatusCompleted Status = "completed"
	// StatusFailed is terminal: all engines were exhausted.
	StatusFailed Status = "failed"
)

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ValidNext reports whether the transition from one status to another is
// allowed by the state machine. Failure is reachable from any non-terminal
// state; re-entering processing covers the fallback restart.
func ValidNext(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}

	switch from {
	case StatusQueued:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusLoadingModel || to == StatusGeneratingAudio
	case StatusLoadingModel:
		return to == StatusGeneratingAudio
	case StatusGeneratingAudio:
		return to == StatusFinalizing || to == StatusProcessing
	case StatusFinalizing:
		return to == StatusCompleted || to == StatusProcessing
	default:
		return false
	}
}

// Job represents a single tracked text-to-speech request.
type Job struct {
	ID          string     `json:"job_id"`
	Text        string     `json:"text"`
	Voice       string     `json:"voice"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	Provider    string     `json:"provider,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ArtifactRef string     `json:"audio_url,omitempty"`
	Error       string     `json:"error,omitempty"`

	// ArtifactPath is the local filesystem location of the audio, kept out
	// of API responses.
	ArtifactPath string `json:"-"`
}

// New creates a queued job with a fresh id.
func New(text, voice string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Text:      text,
		Voice:     voice,
		Status:    StatusQueued,
		Progress:  0,
		CreatedAt: time.Now(),
	}
}

// Advance moves the job to a new status with a progress hint. Progress never
// moves backward; a stale lower hint is clamped to the current value. Calls on
// a terminal job or with an invalid transition are ignored.
func (j *Job) Advance(status Status, progress int) {
	if j.Status.Terminal() {
		return
	}
	// Same-status calls are progress-only updates.
	if status != j.Status && !ValidNext(j.Status, status) {
		return
	}

	j.Status = status
	if progress > j.Progress {
		j.Progress = progress
	}
}

// Restart re-enters the processing state for a fresh attempt on another
// provider. This is the one sanctioned backward move of progress: the
// fallback is a new attempt, not a continuation of the failed one.
func (j *Job) Restart(provider string, progress int) {
	if j.Status.Terminal() {
		return
	}

	j.Status = StatusProcessing
	j.Provider = provider
	j.Progress = progress
}

// Complete marks the job terminally successful.
func (j *Job) Complete(provider, artifactRef, artifactPath string) {
	if j.Status.Terminal() {
		return
	}

	now := time.Now()
	j.Status = StatusCompleted
	j.Progress = 100
	j.Provider = provider
	j.ArtifactRef = artifactRef
	j.ArtifactPath = artifactPath
	j.Error = ""
	j.CompletedAt = &now
}

// Fail marks the job terminally failed with a human-readable reason.
func (j *Job) Fail(reason string) {
	if j.Status.Terminal() {
		return
	}

	now := time.Now()
	j.Status = StatusFailed
	j.Error = reason
	j.ArtifactRef = ""
	j.CompletedAt = &now
}
