// Package dispatch owns the end-to-end processing of a synthesis job: engine
// selection, the fallback protocol, progress bookkeeping, and artifact
// persistence. One goroutine per job carries it from queued to terminal.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxrelay/voxrelay/internal/artifact"
	"github.com/voxrelay/voxrelay/internal/job"
	"github.com/voxrelay/voxrelay/internal/synth"
	"github.com/voxrelay/voxrelay/internal/wav"
)

var (
	// ErrEmptyText is returned when a submission has no text.
	ErrEmptyText = errors.New("text is required")
	// ErrTextTooLong is returned when a submission exceeds the maximum length.
	ErrTextTooLong = errors.New("text exceeds maximum length")
	// ErrNoEngines is returned when the chain has no registered engines.
	ErrNoEngines = errors.New("no synthesis engines configured")
)

// fallbackProgress is where progress restarts when an attempt moves to the
// next engine. The fallback is a fresh attempt, not a continuation, so the
// one sanctioned backward move lands here.
const fallbackProgress = 60

// Options configures a Dispatcher.
type Options struct {
	// MaxTextLength bounds accepted input; longer submissions are rejected
	// before a job is created.
	MaxTextLength int
	// DefaultVoice is applied when a submission has no voice.
	DefaultVoice string
	// AttemptTimeout is the wall-clock budget for a single engine attempt.
	// A hanging engine is treated the same as a failing one.
	AttemptTimeout time.Duration
}

// Dispatcher creates jobs and drives each one to a terminal state.
type Dispatcher struct {
	store     *job.Store
	chain     *synth.Chain
	artifacts *artifact.Store
	logger    *slog.Logger
	opts      Options

	// onTerminal is invoked once a job reaches completed or failed; the
	// janitor uses it to arm the deferred delete.
	onTerminal func(jobID string)
}

// New creates a dispatcher.
func New(store *job.Store, chain *synth.Chain, artifacts *artifact.Store, opts Options, logger *slog.Logger) *Dispatcher {
	if opts.MaxTextLength <= 0 {
		opts.MaxTextLength = 1000
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 60 * time.Second
	}

	return &Dispatcher{
		store:     store,
		chain:     chain,
		artifacts: artifacts,
		logger:    logger,
		opts:      opts,
	}
}

// SetTerminalCallback registers the hook called when a job reaches a terminal
// state. Must be set before the first Submit.
func (d *Dispatcher) SetTerminalCallback(fn func(jobID string)) {
	d.onTerminal = fn
}

// Submit validates the request, creates a queued job and starts processing it
// in the background. The caller gets the queued snapshot immediately;
// validation failures never create a job.
func (d *Dispatcher) Submit(text, voice string) (job.Job, error) {
	if text == "" {
		return job.Job{}, ErrEmptyText
	}
	if len(text) > d.opts.MaxTextLength {
		return job.Job{}, ErrTextTooLong
	}
	if d.chain.Len() == 0 {
		return job.Job{}, ErrNoEngines
	}

	if voice == "" {
		voice = d.opts.DefaultVoice
	}

	j := d.store.Create(text, voice)

	d.logger.Info("job accepted",
		"job_id", j.ID,
		"text_length", len(text),
		"voice", voice,
	)

	go d.process(j.ID)

	return j, nil
}

// process walks the fallback chain for one job. Every exit path resolves into
// a terminal job state; errors never escape the goroutine.
func (d *Dispatcher) process(id string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("job processing panicked", "job_id", id, "panic", r)
			d.store.Update(id, func(j *job.Job) {
				j.Fail(fmt.Sprintf("internal error: %v", r))
			})
			d.notifyTerminal(id)
		}
	}()

	snapshot, err := d.store.Get(id)
	if err != nil {
		// Swept before processing started; nothing to do.
		return
	}

	var lastErr error
	attempted := false

	for _, engine := range d.chain.Engines() {
		if !engine.Ready() {
			d.logger.Info("engine not ready, skipping",
				"job_id", id,
				"engine", engine.Name(),
			)
			lastErr = fmt.Errorf("%s: %w", engine.Name(), synth.ErrEngineNotReady)
			continue
		}

		if !attempted {
			d.store.Update(id, func(j *job.Job) {
				j.Provider = engine.Name()
				j.Advance(job.StatusProcessing, 10)
			})
		} else {
			d.logger.Info("falling back to next engine",
				"job_id", id,
				"engine", engine.Name(),
				"previous_error", lastErr,
			)
			d.store.Update(id, func(j *job.Job) {
				j.Restart(engine.Name(), fallbackProgress)
			})
		}
		attempted = true

		if err := d.attempt(id, engine, snapshot.Text, snapshot.Voice); err != nil {
			lastErr = fmt.Errorf("%s: %w", engine.Name(), err)
			continue
		}

		d.logger.Info("job completed", "job_id", id, "provider", engine.Name())
		d.notifyTerminal(id)
		return
	}

	if lastErr == nil {
		lastErr = ErrNoEngines
	}

	d.logger.Warn("job failed, all engines exhausted", "job_id", id, "error", lastErr)
	d.store.Update(id, func(j *job.Job) {
		j.Fail(fmt.Sprintf("all synthesis providers failed: %v", lastErr))
	})
	d.notifyTerminal(id)
}

// attempt runs a single engine under the per-attempt deadline and, on
// success, persists the artifact and completes the job. Any error returned
// here sends the job to the next engine in the chain.
func (d *Dispatcher) attempt(id string, engine synth.Engine, text, voice string) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.AttemptTimeout)
	defer cancel()

	d.store.Update(id, func(j *job.Job) {
		j.Advance(job.StatusLoadingModel, 20)
	})

	onProgress := func(pct int) {
		d.store.Update(id, func(j *job.Job) {
			j.Advance(job.StatusGeneratingAudio, pct)
		})
	}

	d.store.Update(id, func(j *job.Job) {
		j.Advance(job.StatusGeneratingAudio, 40)
	})

	result, err := engine.Synthesize(ctx, synth.Request{Text: text, Voice: voice}, onProgress)
	if err != nil {
		return err
	}
	if result == nil || len(result.Data) == 0 {
		return fmt.Errorf("%w: empty output", synth.ErrSynthesisFailed)
	}

	d.store.Update(id, func(j *job.Job) {
		j.Advance(job.StatusFinalizing, 90)
	})

	ref, err := d.artifacts.Save(id, result.Data, result.Format)
	if err != nil {
		// Storage failure is treated identically to an engine failure.
		return fmt.Errorf("artifact store: %w", err)
	}

	d.store.Update(id, func(j *job.Job) {
		j.Complete(engine.Name(), ref.URL, ref.Path)
	})

	d.logger.Debug("artifact saved",
		"job_id", id,
		"bytes", len(result.Data),
		"format", result.Format,
		"audio_duration", wav.Duration(result.Data),
	)

	return nil
}

func (d *Dispatcher) notifyTerminal(id string) {
	if d.onTerminal != nil {
		d.onTerminal(id)
	}
}
