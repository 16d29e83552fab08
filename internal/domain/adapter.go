package domain

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by a Generator whose backend credentials are
// missing. The orchestrator converts it into a stable user-facing message.
var ErrNotConfigured = errors.New("generator backend not configured")

// Transcriber converts a local audio file into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Generator produces a natural-language reply for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Synthesizer converts reply text into a compact, voice-message-ready
// audio blob (Ogg/Opus).
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
