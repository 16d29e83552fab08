package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voicebot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeGenerator struct {
	err   error
	calls int
	last  string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.last = prompt
	if f.err != nil {
		return "", f.err
	}
	return "re: " + prompt, nil
}

type fakeSynthesizer struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

type fixture struct {
	transcriber *fakeTranscriber
	generator   *fakeGenerator
	synthesizer *fakeSynthesizer
	modes       *ModeStore
	orch        *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		transcriber: &fakeTranscriber{text: "spoken words"},
		generator:   &fakeGenerator{},
		synthesizer: &fakeSynthesizer{data: []byte("OggS")},
		modes:       NewModeStore(),
	}
	f.orch = NewOrchestrator(OrchestratorConfig{
		Transcriber: f.transcriber,
		Generator:   f.generator,
		Synthesizer: f.synthesizer,
		Modes:       f.modes,
		Logger:      testLogger(),
	})
	return f
}

func audioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voice.ogg")
	if err := os.WriteFile(path, []byte("OggS"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHandle_TextOnly(t *testing.T) {
	f := newFixture()

	res := f.orch.Handle(context.Background(), domain.InboundRequest{UserID: "u1", Text: "hello"})

	if res.ReplyText != "re: hello" {
		t.Fatalf("reply = %q", res.ReplyText)
	}
	if res.VoiceNote != nil {
		t.Fatal("text-only request must never produce a voice note")
	}
	if f.transcriber.calls != 0 || f.synthesizer.calls != 0 {
		t.Fatal("text-only request must not touch transcriber or synthesizer")
	}
}

func TestHandle_TextOnly_IgnoresVoiceMode(t *testing.T) {
	f := newFixture()
	f.modes.Set("u1", "voice")

	res := f.orch.Handle(context.Background(), domain.InboundRequest{UserID: "u1", Text: "hello"})

	if res.VoiceNote != nil {
		t.Fatal("stored voice mode must not add audio to a text reply")
	}
}

func TestHandle_EmptyText(t *testing.T) {
	f := newFixture()

	res := f.orch.Handle(context.Background(), domain.InboundRequest{UserID: "u1", Text: "   "})

	if res.ReplyText != "Could not transcribe audio." {
		t.Fatalf("reply = %q", res.ReplyText)
	}
	if f.generator.calls != 0 {
		t.Fatal("empty prompt must not reach the generator")
	}
}

func TestHandle_MissingAudioFile(t *testing.T) {
	f := newFixture()

	res := f.orch.Handle(context.Background(), domain.InboundRequest{
		UserID:    "u1",
		AudioPath: "/does/not/exist.ogg",
	})

	if res.ReplyText != "Audio file not found." {
		t.Fatalf("reply = %q", res.ReplyText)
	}
	if res.VoiceNote != nil {
		t.Fatal("missing audio must not produce a voice note")
	}
	if f.transcriber.calls != 0 {
		t.Fatal("pipeline must short-circuit before the transcriber")
	}
}

func TestHandle_VoiceOnly_RepliesWithVoiceRegardlessOfMode(t *testing.T) {
	for _, mode := range []string{"", "text", "voice"} {
		f := newFixture()
		if mode != "" {
			f.modes.Set("u1", mode)
		}

		res := f.orch.Handle(context.Background(), domain.InboundRequest{
			UserID:    "u1",
			AudioPath: audioFile(t),
		})

		if res.ReplyText != "re: spoken words" {
			t.Fatalf("mode %q: reply = %q", mode, res.ReplyText)
		}
		if string(res.VoiceNote) != "OggS" {
			t.Fatalf("mode %q: voice-only inbound must get a voice reply", mode)
		}
	}
}

func TestHandle_VoiceWithCaption_VoiceMode(t *testing.T) {
	f := newFixture()
	f.modes.Set("u1", "voice")

	res := f.orch.Handle(context.Background(), domain.InboundRequest{
		UserID:    "u1",
		AudioPath: audioFile(t),
		Caption:   "translate this",
	})

	if res.ReplyText != "re: translate this spoken words" {
		t.Fatalf("reply = %q", res.ReplyText)
	}
	if string(res.VoiceNote) != "OggS" {
		t.Fatal("voice mode must include the voice note")
	}
}

func TestHandle_VoiceWithCaption_TextModeDefault(t *testing.T) {
	f := newFixture()
	// Mode intentionally unset: default is text.

	res := f.orch.Handle(context.Background(), domain.InboundRequest{
		UserID:    "u1",
		AudioPath: audioFile(t),
		Caption:   "translate this",
	})

	if res.ReplyText != "re: translate this spoken words" {
		t.Fatalf("reply = %q", res.ReplyText)
	}
	if res.VoiceNote != nil {
		t.Fatal("text mode must suppress the voice note")
	}
	// Synthesis ran; only delivery was suppressed.
	if f.synthesizer.calls != 1 {
		t.Fatalf("synthesizer calls = %d, want 1", f.synthesizer.calls)
	}
}

func TestHandle_TranscriptionFailure(t *testing.T) {
	f := newFixture()
	f.transcriber.err = errors.New("engine crashed")

	res := f.orch.Handle(context.Background(), domain.InboundRequest{
		UserID:    "u1",
		AudioPath: audioFile(t),
	})

	if res.ReplyText != "Could not transcribe audio." {
		t.Fatalf("reply = %q", res.ReplyText)
	}
	if f.generator.calls != 0 {
		t.Fatal("a failed transcription must not reach the generator")
	}
}

func TestHandle_EmptyTranscript(t *testing.T) {
	f := newFixture()
	f.transcriber.text = "   "

	res := f.orch.Handle(context.Background(), domain.InboundRequest{
		UserID:    "u1",
		AudioPath: audioFile(t),
	})

	if res.ReplyText != "Could not transcribe audio." {
		t.Fatalf("reply = %q", res.ReplyText)
	}
}

func TestHandle_GeneratorNotConfigured(t *testing.T) {
	f := newFixture()
	f.generator.err = domain.ErrNotConfigured

	res := f.orch.Handle(context.Background(), domain.InboundRequest{UserID: "u1", Text: "hello"})

	if res.ReplyText != "Error: Google API key not configured." {
		t.Fatalf("reply = %q", res.ReplyText)
	}
}

func TestHandle_GeneratorFailureEmbedsCause(t *testing.T) {
	f := newFixture()
	f.generator.err = errors.New("503 overloaded")

	res := f.orch.Handle(context.Background(), domain.InboundRequest{UserID: "u1", Text: "hello"})

	if !strings.HasPrefix(res.ReplyText, "Error calling Gemini:") {
		t.Fatalf("reply = %q", res.ReplyText)
	}
	if !strings.Contains(res.ReplyText, "503 overloaded") {
		t.Fatalf("cause missing from reply: %q", res.ReplyText)
	}
}

func TestHandle_SynthesisFailureDegradesToText(t *testing.T) {
	f := newFixture()
	f.synthesizer.err = errors.New("ffmpeg not found")

	res := f.orch.Handle(context.Background(), domain.InboundRequest{
		UserID:    "u1",
		AudioPath: audioFile(t),
	})

	if res.ReplyText != "re: spoken words" {
		t.Fatalf("reply = %q", res.ReplyText)
	}
	if res.VoiceNote != nil {
		t.Fatal("failed synthesis must degrade to text only")
	}
}

func TestHandle_CaptionOnlyWhitespace_TreatedAsVoiceOnly(t *testing.T) {
	f := newFixture()
	// Whitespace caption: the request follows the voice-only rule, not the
	// stored mode.

	res := f.orch.Handle(context.Background(), domain.InboundRequest{
		UserID:    "u1",
		AudioPath: audioFile(t),
		Caption:   "   ",
	})

	if string(res.VoiceNote) != "OggS" {
		t.Fatal("whitespace-only caption must behave like no caption")
	}
}
