package relay

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// ntfyMessage is a single event from an ntfy JSON stream.
type ntfyMessage struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Topic   string `json:"topic"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// submitRequest is the body sent to the voxrelay speech endpoint.
type submitRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// submitResponse is the accepted-job reply from the voxrelay speech endpoint.
type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// jobResponse is the subset of the job status payload the relay cares about.
type jobResponse struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Provider string `json:"provider,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Client subscribes to ntfy topics and relays notifications to a voxrelay
// server as speech jobs.
type Client struct {
	cfg    *Config
	logger *slog.Logger
	client *http.Client

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewClient creates a relay client.
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{},
		seen:   make(map[string]time.Time),
	}
}

// Run subscribes to all configured topics and blocks until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for _, topic := range c.cfg.NtfyTopics {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			c.subscribeLoop(ctx, topic)
		}(topic)
	}

	if c.cfg.DedupeWindow > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.cleanupLoop(ctx)
		}()
	}

	wg.Wait()
}

// subscribeLoop maintains a streaming subscription to one topic, reconnecting
// with exponential backoff on failure.
func (c *Client) subscribeLoop(ctx context.Context, topic string) {
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		c.logger.Info("subscribing to topic", "topic", topic, "server", c.cfg.NtfyServer)

		err := c.subscribe(ctx, topic)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			c.logger.Warn("subscription dropped", "topic", topic, "error", err, "retry_in", backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// subscribe opens the ntfy JSON stream for one topic and processes messages
// until the stream ends or ctx is cancelled.
func (c *Client) subscribe(ctx context.Context, topic string) error {
	url := fmt.Sprintf("%s/%s/json", strings.TrimRight(c.cfg.NtfyServer, "/"), topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating subscribe request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to ntfy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg ntfyMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			c.logger.Debug("skipping unparseable line", "topic", topic, "error", err)
			continue
		}

		if msg.Event != "message" {
			continue
		}

		c.handleMessage(ctx, msg)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}

	return nil
}

// handleMessage formats a notification and submits it for synthesis.
func (c *Client) handleMessage(ctx context.Context, msg ntfyMessage) {
	text := FormatText(c.cfg.Prefix, msg.Title, msg.Message)
	if text == "" {
		return
	}

	if len(text) > c.cfg.MaxTextLength {
		text = text[:c.cfg.MaxTextLength]
	}

	if c.isDuplicate(text) {
		c.logger.Debug("skipping duplicate message", "topic", msg.Topic)
		return
	}

	c.logger.Info("relaying message", "topic", msg.Topic, "length", len(text))

	jobID, err := c.submit(ctx, text)
	if err != nil {
		c.logger.Error("failed to submit speech job", "topic", msg.Topic, "error", err)
		return
	}

	c.awaitOutcome(ctx, jobID)
}

// submit posts the text to the voxrelay speech endpoint and returns the job ID.
func (c *Client) submit(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(submitRequest{Text: text, Voice: c.cfg.Voice})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	url := strings.TrimRight(c.cfg.APIURL, "/") + "/api/tts"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("posting to voxrelay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("voxrelay returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var accepted submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if accepted.JobID == "" {
		return "", fmt.Errorf("voxrelay response missing job_id")
	}

	return accepted.JobID, nil
}

// awaitOutcome polls the job until it reaches a terminal status and logs the
// result. Polling errors are logged and abandoned, not retried forever.
func (c *Client) awaitOutcome(ctx context.Context, jobID string) {
	pollCtx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pollCtx.Done():
			c.logger.Warn("gave up waiting for job", "job_id", jobID)
			return
		case <-ticker.C:
		}

		j, err := c.pollJob(pollCtx, jobID)
		if err != nil {
			c.logger.Warn("failed to poll job", "job_id", jobID, "error", err)
			return
		}

		switch j.Status {
		case "completed":
			c.logger.Info("speech job completed", "job_id", jobID, "provider", j.Provider)
			return
		case "failed":
			c.logger.Error("speech job failed", "job_id", jobID, "error", j.Error)
			return
		}
	}
}

// pollJob fetches the current status of one job.
func (c *Client) pollJob(ctx context.Context, jobID string) (*jobResponse, error) {
	url := strings.TrimRight(c.cfg.APIURL, "/") + "/api/job/" + jobID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voxrelay returned status %d", resp.StatusCode)
	}

	var j jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&j); err != nil {
		return nil, fmt.Errorf("decoding job: %w", err)
	}

	return &j, nil
}

// isDuplicate records the message hash and reports whether an identical
// message was already relayed inside the dedupe window.
func (c *Client) isDuplicate(text string) bool {
	if c.cfg.DedupeWindow <= 0 {
		return false
	}

	sum := sha256.Sum256([]byte(text))
	key := hex.EncodeToString(sum[:])

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if last, ok := c.seen[key]; ok && now.Sub(last) < c.cfg.DedupeWindow {
		return true
	}

	c.seen[key] = now
	return false
}

// cleanupLoop periodically drops expired entries from the dedupe map.
func (c *Client) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.DedupeWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cutoff := time.Now().Add(-c.cfg.DedupeWindow)
			for key, last := range c.seen {
				if last.Before(cutoff) {
					delete(c.seen, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// FormatText combines an optional prefix, title, and message into the text
// that gets spoken. Returns "" when there is nothing to say.
func FormatText(prefix, title, message string) string {
	var parts []string

	if prefix != "" {
		parts = append(parts, prefix)
	}
	if title != "" {
		parts = append(parts, title)
	}
	if message != "" {
		parts = append(parts, message)
	}

	if prefix != "" && len(parts) == 1 {
		return ""
	}

	return strings.Join(parts, ". ")
}
