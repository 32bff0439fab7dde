package synth

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPiperEngineName(t *testing.T) {
	engine := &PiperEngine{
		config: PiperConfig{
			BinaryPath: "piper",
			ModelPath:  "/fake/model.onnx",
		},
	}

	if engine.Name() != "piper" {
		t.Errorf("expected name 'piper', got '%s'", engine.Name())
	}
}

func TestPiperEngineNotReadyWithoutModel(t *testing.T) {
	engine := NewPiperEngine(PiperConfig{
		BinaryPath: "echo", // stand-in binary that exists everywhere
		ModelPath:  "",
	}, testLogger())
	defer engine.Close()

	if engine.Ready() {
		t.Error("expected not ready without a model")
	}
}

func TestPiperEngineNotReadyWithoutBinary(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "voice.onnx")
	if err := os.WriteFile(model, []byte("model"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	engine := NewPiperEngine(PiperConfig{
		BinaryPath: "/nonexistent/path/to/piper",
		ModelPath:  model,
	}, testLogger())
	defer engine.Close()

	if engine.Ready() {
		t.Error("expected not ready without the binary")
	}
}

func TestPiperEngineReadyWhenModelAppears(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "voice.onnx")

	engine := NewPiperEngine(PiperConfig{
		BinaryPath: "echo",
		ModelPath:  model,
	}, testLogger())
	defer engine.Close()

	if engine.Ready() {
		t.Fatal("expected not ready before the model exists")
	}

	if err := os.WriteFile(model, []byte("model"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The fsnotify event is asynchronous; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for !engine.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("engine never became ready after model appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPiperEngineSynthesizeEmptyText(t *testing.T) {
	engine := NewPiperEngine(PiperConfig{
		BinaryPath: "echo",
		ModelPath:  "",
	}, testLogger())
	defer engine.Close()

	_, err := engine.Synthesize(context.Background(), Request{Text: ""}, nil)
	if err == nil {
		t.Error("expected error for empty text")
	}
}

func TestPiperEngineSynthesizeNotReady(t *testing.T) {
	engine := NewPiperEngine(PiperConfig{
		BinaryPath: "/nonexistent/path/to/piper",
		ModelPath:  "/fake/model.onnx",
	}, testLogger())
	defer engine.Close()

	_, err := engine.Synthesize(context.Background(), Request{Text: "hello"}, nil)
	if err != ErrEngineNotReady {
		t.Errorf("expected ErrEngineNotReady, got %v", err)
	}
}
