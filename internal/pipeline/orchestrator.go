// Package pipeline contains the message-to-reply orchestration core:
// request composition, per-user mode state, and the state machine that
// drives transcription, generation, and synthesis.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"voicebot/internal/domain"
	"voicebot/internal/metrics"
)

// User-facing terminal messages. Input errors get fixed strings; backend
// errors embed the cause.
const (
	msgAudioNotFound = "Audio file not found."
	msgNoTranscript  = "Could not transcribe audio."
	msgNotConfigured = "Error: Google API key not configured."
)

// Orchestrator drives one inbound request through transcription,
// composition, generation, and synthesis, and selects the output modality.
// No error escapes Handle: every failure degrades to a text reply.
type Orchestrator struct {
	transcriber domain.Transcriber
	generator   domain.Generator
	synthesizer domain.Synthesizer
	modes       *ModeStore
	logger      *slog.Logger
}

// OrchestratorConfig holds the orchestrator's collaborators.
type OrchestratorConfig struct {
	Transcriber domain.Transcriber
	Generator   domain.Generator
	Synthesizer domain.Synthesizer
	Modes       *ModeStore
	Logger      *slog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Modes == nil {
		cfg.Modes = NewModeStore()
	}
	return &Orchestrator{
		transcriber: cfg.Transcriber,
		generator:   cfg.Generator,
		synthesizer: cfg.Synthesizer,
		modes:       cfg.Modes,
		logger:      cfg.Logger,
	}
}

// Handle runs the pipeline for one request. The returned result always has
// non-empty ReplyText; VoiceNote is set only when the request carried audio,
// synthesis succeeded, and the effective mode calls for voice.
func (o *Orchestrator) Handle(ctx context.Context, req domain.InboundRequest) domain.PipelineResult {
	var transcript, caption string

	if req.HasAudio() {
		metrics.VoiceRequestsTotal.Inc()

		// The transport guarantees the file was downloaded; a missing
		// path is an input error, not a transcriber concern.
		if _, err := os.Stat(req.AudioPath); err != nil {
			o.logger.Warn("audio file missing", "path", req.AudioPath, "err", err)
			return domain.PipelineResult{ReplyText: msgAudioNotFound}
		}

		var err error
		transcript, err = o.transcriber.Transcribe(ctx, req.AudioPath)
		if err != nil {
			metrics.TranscribeFailures.Inc()
			o.logger.Error("transcription failed", "err", err)
			return domain.PipelineResult{ReplyText: msgNoTranscript}
		}
		caption = req.Caption
	} else {
		transcript = req.Text
	}

	prompt := Compose(caption, transcript)
	if prompt == "" {
		return domain.PipelineResult{ReplyText: msgNoTranscript}
	}

	reply := o.generate(ctx, prompt)

	if !req.HasAudio() {
		return domain.PipelineResult{ReplyText: reply}
	}

	voiceNote := o.synthesize(ctx, reply)

	// Voice-only inbound always carries the voice note; combined
	// caption+voice requests follow the user's stored mode.
	if strings.TrimSpace(req.Caption) != "" && o.modes.Get(req.UserID) == domain.ModeText {
		voiceNote = nil
	}
	if len(voiceNote) > 0 {
		metrics.VoiceRepliesTotal.Inc()
	}

	return domain.PipelineResult{ReplyText: reply, VoiceNote: voiceNote}
}

// generate calls the reply generator and converts failures into user-facing
// text. Single attempt: backend errors are never retried.
func (o *Orchestrator) generate(ctx context.Context, prompt string) string {
	reply, err := o.generator.Generate(ctx, prompt)
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		return msgNotConfigured
	case err != nil:
		metrics.GenerateFailures.Inc()
		o.logger.Error("reply generation failed", "err", err)
		return fmt.Sprintf("Error calling Gemini: %v", err)
	}
	return reply
}

// synthesize returns a voice note for the reply, or nil when synthesis
// fails. Failure only costs the voice attachment, never the text reply.
func (o *Orchestrator) synthesize(ctx context.Context, reply string) []byte {
	voiceNote, err := o.synthesizer.Synthesize(ctx, reply)
	if err != nil {
		metrics.SynthesizeFailures.Inc()
		o.logger.Warn("speech synthesis failed, sending text only", "err", err)
		return nil
	}
	return voiceNote
}
