package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/voxrelay/voxrelay/internal/wav"
)

var (
	// ErrSynthesisFailed is returned when TTS synthesis fails.
	ErrSynthesisFailed = errors.New("TTS synthesis failed")
	// ErrEngineNotReady is returned when synthesis is attempted on an
	// engine whose readiness probe fails.
	ErrEngineNotReady = errors.New("engine not ready")
)

// PiperConfig holds configuration for the Piper TTS engine.
type PiperConfig struct {
	// BinaryPath is the path to the piper executable.
	BinaryPath string
	// ModelPath is the path to the ONNX model file.
	ModelPath string
	// DefaultVoice is the default voice/speaker to use.
	DefaultVoice string
}

// PiperEngine is the local synthesis engine wrapping the piper binary.
// Readiness is cached and refreshed by a filesystem watch on the model
// directory, so Ready stays a cheap in-memory read on the hot path.
type PiperEngine struct {
	config  PiperConfig
	logger  *slog.Logger
	ready   atomic.Bool
	watcher *fsnotify.Watcher
}

// NewPiperEngine creates a new Piper TTS engine. Construction succeeds even
// when the binary or model is missing; Ready reports the current state so an
// engine that becomes usable later (model downloaded, binary installed) is
// picked up without a restart.
func NewPiperEngine(cfg PiperConfig, logger *slog.Logger) *PiperEngine {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "piper"
	}

	e := &PiperEngine{
		config: cfg,
		logger: logger,
	}
	e.ready.Store(e.probe())
	e.startModelWatch()

	return e
}

// Name returns the engine identifier.
func (p *PiperEngine) Name() string {
	return "piper"
}

// Ready reports whether the piper binary and model file are present.
func (p *PiperEngine) Ready() bool {
	return p.ready.Load()
}

// Close stops the model directory watch.
func (p *PiperEngine) Close() error {
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

// probe performs the actual capability check: binary resolvable and model
// file present on disk. No network I/O.
func (p *PiperEngine) probe() bool {
	if _, err := exec.LookPath(p.config.BinaryPath); err != nil {
		return false
	}
	if p.config.ModelPath == "" {
		return false
	}
	if _, err := os.Stat(p.config.ModelPath); err != nil {
		return false
	}
	return true
}

// startModelWatch keeps the cached readiness current as model files appear
// or disappear. Watch failures degrade to the initial probe result.
func (p *PiperEngine) startModelWatch() {
	if p.config.ModelPath == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Warn("failed to create model watcher", "error", err)
		return
	}

	dir := filepath.Dir(p.config.ModelPath)
	if err := watcher.Add(dir); err != nil {
		p.logger.Warn("failed to watch model directory", "dir", dir, "error", err)
		watcher.Close()
		return
	}

	p.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != p.config.ModelPath {
					continue
				}
				was := p.ready.Load()
				now := p.probe()
				p.ready.Store(now)
				if was != now {
					p.logger.Info("piper readiness changed", "ready", now, "model", p.config.ModelPath)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.Warn("model watcher error", "error", err)
			}
		}
	}()
}

// Synthesize converts text to audio using Piper.
func (p *PiperEngine) Synthesize(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error) {
	if req.Text == "" {
		return nil, errors.New("empty text")
	}
	if !p.Ready() {
		return nil, ErrEngineNotReady
	}

	report := func(pct int) {
		if onProgress != nil {
			onProgress(pct)
		}
	}

	// Build piper command arguments
	args := []string{
		"--model", p.config.ModelPath,
		"--output-raw",
	}

	// Add voice/speaker if specified
	voice := req.Voice
	if voice == "" || voice == "default" {
		voice = p.config.DefaultVoice
	}
	if voice != "" && voice != "default" {
		args = append(args, "--speaker", voice)
	}

	p.logger.Debug("running piper",
		"binary", p.config.BinaryPath,
		"model", p.config.ModelPath,
		"voice", voice,
		"text_length", len(req.Text),
	)

	report(40)

	// Create command with context for cancellation
	cmd := exec.CommandContext(ctx, p.config.BinaryPath, args...)
	cmd.Stdin = bytes.NewReader([]byte(req.Text))

	// Capture stdout (raw audio) and stderr (logs/errors)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Error("piper failed",
			"error", err,
			"stderr", stderr.String(),
		)
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	rawAudio := stdout.Bytes()
	if len(rawAudio) == 0 {
		return nil, fmt.Errorf("%w: no audio output", ErrSynthesisFailed)
	}

	report(80)

	p.logger.Debug("piper synthesis complete",
		"output_bytes", len(rawAudio),
	)

	// Piper outputs raw 16-bit PCM at 22050 Hz mono by default.
	wavData := wav.WrapRawPCM(rawAudio, wav.PiperSampleRate, wav.PiperChannels, wav.PiperBitsPerSample)

	return &Result{
		Data:       wavData,
		Format:     "wav",
		SampleRate: wav.PiperSampleRate,
		Channels:   wav.PiperChannels,
	}, nil
}
