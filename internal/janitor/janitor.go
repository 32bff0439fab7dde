// Package janitor expires finished jobs and reclaims their audio artifacts.
//
// Two mechanisms coexist: a per-job deferred delete armed the moment a job
// turns terminal, and a periodic staleness sweep that catches anything the
// timers missed (e.g. jobs that never progressed). Cleanup is best-effort;
// failures are logged, never propagated.
package janitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voxrelay/voxrelay/internal/artifact"
	"github.com/voxrelay/voxrelay/internal/job"
)

// Janitor deletes expired jobs and their artifacts.
type Janitor struct {
	store     *job.Store
	artifacts *artifact.Store
	logger    *slog.Logger

	// retention is how long a terminal job and its artifact are kept.
	retention time.Duration
	// staleAfter is the age at which any job, terminal or not, is swept.
	staleAfter time.Duration
	// interval is how often the sweep runs.
	interval time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a janitor.
func New(store *job.Store, artifacts *artifact.Store, retention, staleAfter, interval time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		store:      store,
		artifacts:  artifacts,
		logger:     logger,
		retention:  retention,
		staleAfter: staleAfter,
		interval:   interval,
		timers:     make(map[string]*time.Timer),
	}
}

// ScheduleDelete arms the deferred delete for a terminal job. The job record
// and its artifact are removed after the retention window whether or not the
// client ever retrieved the result. Re-arming an already armed job is a no-op.
func (jn *Janitor) ScheduleDelete(jobID string) {
	jn.mu.Lock()
	defer jn.mu.Unlock()

	if _, armed := jn.timers[jobID]; armed {
		return
	}

	jn.timers[jobID] = time.AfterFunc(jn.retention, func() {
		jn.expire(jobID)

		jn.mu.Lock()
		delete(jn.timers, jobID)
		jn.mu.Unlock()
	})
}

// Run executes the staleness sweep on a fixed interval until ctx is
// cancelled. Outstanding per-job timers are stopped on exit.
func (jn *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(jn.interval)
	defer ticker.Stop()

	jn.logger.Info("janitor started",
		"retention", jn.retention,
		"stale_after", jn.staleAfter,
		"sweep_interval", jn.interval,
	)

	for {
		select {
		case <-ctx.Done():
			jn.stopTimers()
			jn.logger.Info("janitor stopped")
			return
		case <-ticker.C:
			jn.Sweep()
		}
	}
}

// Sweep removes every job older than the staleness threshold. This is the
// safety net for jobs whose deferred timer never armed, e.g. after a restart.
func (jn *Janitor) Sweep() {
	cutoff := time.Now().Add(-jn.staleAfter)
	removed := 0

	jn.store.ForEach(func(j job.Job) {
		if j.CreatedAt.After(cutoff) {
			return
		}
		jn.expire(j.ID)
		removed++
	})

	if removed > 0 {
		jn.logger.Info("sweep removed stale jobs", "count", removed)
	}
}

// expire deletes a job's artifact and record. Idempotent: the deferred timer
// and the sweep can both fire for the same job.
func (jn *Janitor) expire(jobID string) {
	j, err := jn.store.Get(jobID)
	if err != nil {
		// Already gone.
		return
	}

	if j.ArtifactPath != "" {
		if err := jn.artifacts.Delete(j.ArtifactPath); err != nil {
			jn.logger.Warn("failed to delete artifact", "job_id", jobID, "error", err)
		}
	}

	jn.store.Delete(jobID)
	jn.logger.Debug("job expired", "job_id", jobID, "status", j.Status)
}

func (jn *Janitor) stopTimers() {
	jn.mu.Lock()
	defer jn.mu.Unlock()

	for id, timer := range jn.timers {
		timer.Stop()
		delete(jn.timers, id)
	}
}
