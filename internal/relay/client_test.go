package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClientConfig(apiURL string) *Config {
	return &Config{
		NtfyServer:    "https://ntfy.sh",
		NtfyTopics:    []string{"alerts"},
		APIURL:        apiURL,
		MaxTextLength: 1000,
		PollTimeout:   2 * time.Second,
		PollInterval:  10 * time.Millisecond,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

func TestFormatText(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		title   string
		message string
		want    string
	}{
		{"message only", "", "", "deploy finished", "deploy finished"},
		{"title and message", "", "CI", "build passed", "CI. build passed"},
		{"prefix title message", "Alert", "CI", "build failed", "Alert. CI. build failed"},
		{"prefix alone says nothing", "Alert", "", "", ""},
		{"all empty", "", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatText(tt.prefix, tt.title, tt.message)
			if got != tt.want {
				t.Errorf("FormatText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubmitPostsJobAndReturnsID(t *testing.T) {
	var gotAuth string
	var gotBody submitRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/tts" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(submitResponse{JobID: "job-123", Status: "queued"})
	}))
	defer srv.Close()

	cfg := testClientConfig(srv.URL)
	cfg.BearerToken = "secret"
	cfg.Voice = "amy"
	c := NewClient(cfg, testLogger())

	jobID, err := c.submit(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("submit() error: %v", err)
	}

	if jobID != "job-123" {
		t.Errorf("jobID = %q, want job-123", jobID)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.Text != "hello world" {
		t.Errorf("submitted text = %q", gotBody.Text)
	}
	if gotBody.Voice != "amy" {
		t.Errorf("submitted voice = %q", gotBody.Voice)
	}
}

func TestSubmitRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"text is required"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(testClientConfig(srv.URL), testLogger())

	_, err := c.submit(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error on 400 response")
	}
}

func TestAwaitOutcomePollsToCompletion(t *testing.T) {
	var mu sync.Mutex
	polls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/job/job-123" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		mu.Lock()
		polls++
		n := polls
		mu.Unlock()

		j := jobResponse{JobID: "job-123", Status: "processing", Progress: 40}
		if n >= 3 {
			j.Status = "completed"
			j.Progress = 100
			j.Provider = "piper"
		}
		json.NewEncoder(w).Encode(j)
	}))
	defer srv.Close()

	c := NewClient(testClientConfig(srv.URL), testLogger())
	c.awaitOutcome(context.Background(), "job-123")

	mu.Lock()
	defer mu.Unlock()
	if polls < 3 {
		t.Errorf("polled %d times, want at least 3", polls)
	}
}

func TestAwaitOutcomeGivesUpAfterTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jobResponse{JobID: "job-123", Status: "processing", Progress: 10})
	}))
	defer srv.Close()

	cfg := testClientConfig(srv.URL)
	cfg.PollTimeout = 50 * time.Millisecond
	c := NewClient(cfg, testLogger())

	start := time.Now()
	c.awaitOutcome(context.Background(), "job-123")

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("awaitOutcome took %v, should give up near the poll timeout", elapsed)
	}
}

func TestIsDuplicateWithinWindow(t *testing.T) {
	cfg := testClientConfig("http://voxrelay:8080")
	cfg.DedupeWindow = time.Minute
	c := NewClient(cfg, testLogger())

	if c.isDuplicate("server down") {
		t.Error("first occurrence should not be a duplicate")
	}
	if !c.isDuplicate("server down") {
		t.Error("second occurrence should be a duplicate")
	}
	if c.isDuplicate("server up") {
		t.Error("different text should not be a duplicate")
	}
}

func TestIsDuplicateDisabledWithoutWindow(t *testing.T) {
	c := NewClient(testClientConfig("http://voxrelay:8080"), testLogger())

	if c.isDuplicate("hello") || c.isDuplicate("hello") {
		t.Error("dedupe should be disabled when the window is zero")
	}
}

func TestHandleMessageTruncatesLongText(t *testing.T) {
	var gotBody submitRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(submitResponse{JobID: "job-1", Status: "queued"})
		default:
			json.NewEncoder(w).Encode(jobResponse{JobID: "job-1", Status: "completed", Progress: 100})
		}
	}))
	defer srv.Close()

	cfg := testClientConfig(srv.URL)
	cfg.MaxTextLength = 10
	c := NewClient(cfg, testLogger())

	long := "this message is longer than ten characters"
	c.handleMessage(context.Background(), ntfyMessage{Event: "message", Message: long})

	if len(gotBody.Text) != 10 {
		t.Errorf("submitted text length = %d, want 10", len(gotBody.Text))
	}
}
