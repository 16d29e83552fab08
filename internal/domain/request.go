package domain

import "fmt"

// Mode is a per-user preference for how combined (caption+voice) requests
// are answered. Voice-only requests always get a voice reply; text-only
// requests never do.
type Mode string

const (
	ModeText  Mode = "text"
	ModeVoice Mode = "voice"
)

// ParseMode validates a raw mode value. It is strict about casing: callers
// that accept user input (the /mode command) lowercase it first.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeText:
		return ModeText, nil
	case ModeVoice:
		return ModeVoice, nil
	default:
		return "", fmt.Errorf("invalid mode %q", raw)
	}
}

// InboundRequest describes one message entering the pipeline. Exactly one of
// Text or AudioPath is set; Caption is only meaningful alongside AudioPath.
// The transport layer guarantees AudioPath references an already-downloaded
// local file.
type InboundRequest struct {
	UserID    string
	Text      string
	AudioPath string
	Caption   string
}

// HasAudio reports whether the request carries a voice recording.
func (r InboundRequest) HasAudio() bool { return r.AudioPath != "" }

// PipelineResult is the outcome of one pipeline execution. ReplyText is
// never empty: internal failures are replaced with user-facing diagnostics.
// VoiceNote is set only when the inbound request carried audio, synthesis
// succeeded, and the effective output mode calls for voice.
type PipelineResult struct {
	ReplyText string
	VoiceNote []byte
}
