// Package voice turns reply text into Telegram-ready voice notes: a TTS
// engine produces MP3, then ffmpeg transcodes it to Ogg/Opus at a fixed
// bitrate. All intermediate files live in an ephemeral work directory that
// is removed on every exit path.
package voice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// TTSEngine produces a compressed speech stream for the given text.
// Implemented by provider.TTSProvider.
type TTSEngine interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}

// Config configures the Synthesizer.
type Config struct {
	Engine     TTSEngine
	FFmpegPath string // default "ffmpeg" (resolved via PATH)
	Bitrate    string // Opus target bitrate, default "64k"
	Logger     *slog.Logger
}

// Synthesizer implements domain.Synthesizer. Any stage failure (engine
// error, missing ffmpeg binary, nonzero exit) is returned as an error; the
// pipeline treats it as "no audio available" and still delivers text.
type Synthesizer struct {
	engine     TTSEngine
	ffmpegPath string
	bitrate    string
	logger     *slog.Logger
}

// New creates a Synthesizer.
func New(cfg Config) *Synthesizer {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.Bitrate == "" {
		cfg.Bitrate = "64k"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Synthesizer{
		engine:     cfg.Engine,
		ffmpegPath: cfg.FFmpegPath,
		bitrate:    cfg.Bitrate,
		logger:     cfg.Logger,
	}
}

// Synthesize converts text to an Ogg/Opus voice note.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	stream, err := s.engine.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("tts: %w", err)
	}
	defer stream.Close()

	workDir, err := os.MkdirTemp("", "voicebot-tts-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	mp3Path := filepath.Join(workDir, "reply.mp3")
	oggPath := filepath.Join(workDir, "reply.ogg")

	mp3, err := os.Create(mp3Path)
	if err != nil {
		return nil, fmt.Errorf("create intermediate file: %w", err)
	}
	if _, err := io.Copy(mp3, stream); err != nil {
		mp3.Close()
		return nil, fmt.Errorf("write intermediate file: %w", err)
	}
	if err := mp3.Close(); err != nil {
		return nil, fmt.Errorf("close intermediate file: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-y", "-i", mp3Path, "-c:a", "libopus", "-b:a", s.bitrate, oggPath)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		s.logger.Error("ffmpeg transcode failed", "err", err, "stderr", stderr.String())
		return nil, fmt.Errorf("ffmpeg transcode: %w", err)
	}

	data, err := os.ReadFile(oggPath)
	if err != nil {
		return nil, fmt.Errorf("read voice note: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("ffmpeg produced empty output")
	}

	s.logger.Info("voice note synthesized", "text_len", len(text), "ogg_bytes", len(data))
	return data, nil
}
