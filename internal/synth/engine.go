// Package synth defines the synthesis engine contract and its concrete
// implementations: a local Piper engine and a remote HTTP provider.
package synth

import (
	"context"
)

// Request contains parameters for one synthesis attempt.
type Request struct {
	Text  string
	Voice string
}

// Result represents synthesized audio output.
type Result struct {
	// Data contains the raw audio bytes (WAV format).
	Data []byte
	// Format describes the audio format (e.g., "wav").
	Format string
	// SampleRate is the audio sample rate in Hz.
	SampleRate int
	// Channels is the number of audio channels.
	Channels int
}

// ContentType returns the MIME type for the result's format.
func (r *Result) ContentType() string {
	switch r.Format {
	case "mp3":
		return "audio/mpeg"
	default:
		return "audio/wav"
	}
}

// ProgressFunc receives progress hints in [0,100] as synthesis advances.
// Engines call it at most a handful of times; it must not block.
type ProgressFunc func(percent int)

// Engine is the interface for text-to-speech synthesis backends.
type Engine interface {
	// Name returns the engine identifier.
	Name() string

	// Ready reports whether the engine can currently synthesize. It is a
	// fast local check (binary present, model on disk, URL configured) and
	// never performs network I/O.
	Ready() bool

	// Synthesize converts text to audio. Implementations honor ctx
	// cancellation and report coarse progress through onProgress when
	// it is non-nil.
	Synthesize(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error)
}
