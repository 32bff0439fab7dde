package janitor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/voxrelay/voxrelay/internal/artifact"
	"github.com/voxrelay/voxrelay/internal/job"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestJanitor(t *testing.T, retention, staleAfter time.Duration) (*Janitor, *job.Store, *artifact.Store) {
	t.Helper()

	store := job.NewStore()
	artifacts, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jn := New(store, artifacts, retention, staleAfter, time.Hour, testLogger())
	return jn, store, artifacts
}

func TestScheduleDeleteRemovesJobAndArtifact(t *testing.T) {
	jn, store, artifacts := newTestJanitor(t, 20*time.Millisecond, time.Hour)

	created := store.Create("hello", "default")
	ref, err := artifacts.Save(created.ID, []byte("RIFF audio"), "wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.Update(created.ID, func(j *job.Job) {
		j.Complete("piper", ref.URL, ref.Path)
	})

	jn.ScheduleDelete(created.ID)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := store.Get(created.ID); errors.Is(err, job.ErrNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := os.Stat(ref.Path); !os.IsNotExist(err) {
		t.Error("artifact still exists after expiry")
	}
}

func TestScheduleDeleteRearmNoOp(t *testing.T) {
	jn, store, _ := newTestJanitor(t, 50*time.Millisecond, time.Hour)

	created := store.Create("hello", "default")
	jn.ScheduleDelete(created.ID)
	jn.ScheduleDelete(created.ID) // second arm is ignored

	jn.mu.Lock()
	armed := len(jn.timers)
	jn.mu.Unlock()

	if armed != 1 {
		t.Errorf("expected 1 armed timer, got %d", armed)
	}
}

func TestSweepRemovesStaleJobs(t *testing.T) {
	jn, store, _ := newTestJanitor(t, time.Hour, 30*time.Minute)

	stale := store.Create("old", "default")
	store.Update(stale.ID, func(j *job.Job) {
		j.CreatedAt = time.Now().Add(-time.Hour)
	})

	fresh := store.Create("new", "default")

	jn.Sweep()

	if _, err := store.Get(stale.ID); !errors.Is(err, job.ErrNotFound) {
		t.Error("stale job survived the sweep")
	}
	if _, err := store.Get(fresh.ID); err != nil {
		t.Errorf("fresh job was swept: %v", err)
	}
}

func TestSweepRemovesStaleNonTerminalJobs(t *testing.T) {
	jn, store, _ := newTestJanitor(t, time.Hour, 30*time.Minute)

	// A job stuck mid-processing is still swept once stale.
	stuck := store.Create("stuck", "default")
	store.Update(stuck.ID, func(j *job.Job) {
		j.Advance(job.StatusProcessing, 10)
		j.CreatedAt = time.Now().Add(-time.Hour)
	})

	jn.Sweep()

	if _, err := store.Get(stuck.ID); !errors.Is(err, job.ErrNotFound) {
		t.Error("stale non-terminal job survived the sweep")
	}
}

func TestExpireMissingArtifactIsSwallowed(t *testing.T) {
	jn, store, _ := newTestJanitor(t, time.Hour, 30*time.Minute)

	created := store.Create("hello", "default")
	store.Update(created.ID, func(j *job.Job) {
		j.Complete("piper", "/audio/gone.wav", "/nonexistent/gone.wav")
		j.CreatedAt = time.Now().Add(-time.Hour)
	})

	// Must not panic or error even though the artifact is already gone.
	jn.Sweep()

	if _, err := store.Get(created.ID); !errors.Is(err, job.ErrNotFound) {
		t.Error("job survived sweep despite missing artifact")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	jn, store, _ := newTestJanitor(t, time.Hour, time.Hour)

	created := store.Create("pending", "default")
	jn.ScheduleDelete(created.ID)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		jn.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop on context cancel")
	}

	jn.mu.Lock()
	armed := len(jn.timers)
	jn.mu.Unlock()
	if armed != 0 {
		t.Errorf("expected timers to be stopped, %d still armed", armed)
	}
}
