package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ErrRemoteNotConfigured is returned when the remote provider has no URL.
var ErrRemoteNotConfigured = errors.New("remote TTS provider not configured")

// RemoteConfig holds configuration for the remote TTS provider.
type RemoteConfig struct {
	// URL is the synthesis endpoint, e.g. https://tts.example.com/v1/speak.
	URL string
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
	// Voice overrides the requested voice for the remote provider when the
	// request asks for the local default.
	Voice string
}

// remoteRequest is the JSON body sent to the provider.
type remoteRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// RemoteEngine is the fallback synthesis engine: a plain JSON-over-HTTP TTS
// provider returning audio bytes in the response body.
type RemoteEngine struct {
	config RemoteConfig
	client *http.Client
	logger *slog.Logger
}

// NewRemoteEngine creates a remote TTS engine. The client carries no timeout
// of its own; every call is bounded by the caller's context.
func NewRemoteEngine(cfg RemoteConfig, logger *slog.Logger) *RemoteEngine {
	return &RemoteEngine{
		config: cfg,
		client: &http.Client{},
		logger: logger,
	}
}

// NewRemoteEngineWithClient creates a remote engine with a custom HTTP
// client, primarily for tests.
func NewRemoteEngineWithClient(cfg RemoteConfig, client *http.Client, logger *slog.Logger) *RemoteEngine {
	return &RemoteEngine{
		config: cfg,
		client: client,
		logger: logger,
	}
}

// Name returns the engine identifier.
func (r *RemoteEngine) Name() string {
	return "remote"
}

// Ready reports whether a provider URL is configured. Reachability is not
// probed here; a dead endpoint surfaces as a synthesis failure instead.
func (r *RemoteEngine) Ready() bool {
	return r.config.URL != ""
}

// Synthesize requests audio from the remote provider.
func (r *RemoteEngine) Synthesize(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error) {
	if !r.Ready() {
		return nil, ErrRemoteNotConfigured
	}
	if req.Text == "" {
		return nil, errors.New("empty text")
	}

	report := func(pct int) {
		if onProgress != nil {
			onProgress(pct)
		}
	}

	voice := req.Voice
	if voice == "" || voice == "default" {
		voice = r.config.Voice
	}

	body, err := json.Marshal(remoteRequest{Text: req.Text, Voice: voice})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	}

	r.logger.Debug("calling remote TTS provider",
		"url", r.config.URL,
		"voice", voice,
		"text_length", len(req.Text),
	)

	report(70)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrSynthesisFailed, resp.StatusCode, string(msg))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrSynthesisFailed, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: no audio output", ErrSynthesisFailed)
	}

	report(85)

	format := "wav"
	if ct := resp.Header.Get("Content-Type"); ct == "audio/mpeg" {
		format = "mp3"
	}

	r.logger.Debug("remote synthesis complete",
		"output_bytes", len(audio),
		"format", format,
	)

	return &Result{
		Data:   audio,
		Format: format,
	}, nil
}
