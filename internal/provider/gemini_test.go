package provider

import (
	"context"
	"errors"
	"testing"

	"voicebot/internal/domain"
)

func TestGeminiGenerate_EmptyPromptSkipsEngine(t *testing.T) {
	// No API key: any engine call would fail, so a reply proves the
	// short-circuit.
	p, err := NewGemini(context.Background(), GeminiConfig{Logger: testLogger()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	for _, prompt := range []string{"", "   ", "\n\t"} {
		reply, err := p.Generate(context.Background(), prompt)
		if err != nil {
			t.Fatalf("prompt %q: %v", prompt, err)
		}
		if reply != "I didn't receive any text." {
			t.Fatalf("prompt %q: unexpected reply %q", prompt, reply)
		}
	}
}

func TestGeminiGenerate_MissingKeyIsNotConfigured(t *testing.T) {
	p, err := NewGemini(context.Background(), GeminiConfig{Logger: testLogger()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if p.Configured() {
		t.Fatal("provider without key must not report configured")
	}

	// Stable across calls.
	for i := 0; i < 2; i++ {
		_, err := p.Generate(context.Background(), "hello")
		if !errors.Is(err, domain.ErrNotConfigured) {
			t.Fatalf("call %d: expected ErrNotConfigured, got %v", i, err)
		}
	}
}
