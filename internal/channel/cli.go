package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"voicebot/internal/domain"
	"voicebot/internal/pipeline"
)

// CLI implements domain.Channel for interactive terminal chat. Besides plain
// text it accepts /voice <path> [caption] to push a local audio file through
// the pipeline, which makes the full transcribe-generate-synthesize path
// testable without a Telegram account.
type CLI struct {
	bus       domain.MessageBus
	modes     *pipeline.ModeStore
	logger    *slog.Logger
	in        io.Reader
	out       io.Writer
	thinking  bool
	thinkMu   sync.Mutex
	thinkStop chan struct{}
}

type CLIConfig struct {
	Modes  *pipeline.ModeStore
	Logger *slog.Logger
	In     io.Reader
	Out    io.Writer
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CLI{
		modes:  cfg.Modes,
		logger: cfg.Logger,
		in:     cfg.In,
		out:    cfg.Out,
	}
}

func (c *CLI) Name() string { return "cli" }

// Start runs the interactive REPL and blocks until context is cancelled.
func (c *CLI) Start(ctx context.Context, bus domain.MessageBus) error {
	c.bus = bus

	bus.OnOutbound("cli", func(msg domain.OutboundMessage) {
		c.stopThinking()
		_, _ = fmt.Fprintln(c.out, "\r\033[K") // Clear spinner line
		_, _ = fmt.Fprintln(c.out, "--- Bot ---")
		_, _ = fmt.Fprintln(c.out, msg.Content)
		if len(msg.VoiceNote) > 0 {
			if path, err := c.saveVoiceNote(msg.VoiceNote); err != nil {
				c.logger.Error("failed to save voice note", "err", err)
			} else {
				_, _ = fmt.Fprintf(c.out, "(voice note saved to %s)\n", path)
			}
		}
		_, _ = fmt.Fprintln(c.out, "-----------")
		_, _ = fmt.Fprint(c.out, "You> ")
	})

	_, _ = fmt.Fprintln(c.out, "Interactive chat. Type a message, /voice <path> [caption], /mode text|voice, or /quit.")
	_, _ = fmt.Fprint(c.out, "You> ")

	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return nil // EOF
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			_, _ = fmt.Fprint(c.out, "You> ")
			continue
		}
		if line == "/quit" || line == "/exit" || line == "/q" {
			c.logger.Info("user requested quit")
			return nil
		}

		if strings.HasPrefix(line, "/mode") {
			reply := ModeCommandReply(c.modes, "user", strings.TrimPrefix(line, "/mode"))
			_, _ = fmt.Fprintln(c.out, reply)
			_, _ = fmt.Fprint(c.out, "You> ")
			continue
		}

		msg := domain.InboundMessage{
			Channel:   "cli",
			ChatID:    "direct",
			SenderID:  "user",
			Timestamp: time.Now(),
		}
		if rest, ok := strings.CutPrefix(line, "/voice "); ok {
			path, caption, _ := strings.Cut(strings.TrimSpace(rest), " ")
			msg.AudioPath = path
			msg.Caption = caption
		} else {
			msg.Text = line
		}

		c.startThinking()
		c.bus.Publish(msg)
	}
}

// saveVoiceNote writes a synthesized reply to a temp file so the user can
// play it with a local player.
func (c *CLI) saveVoiceNote(note []byte) (string, error) {
	f, err := os.CreateTemp("", "voicebot-reply-*.ogg")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(note); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return f.Name(), nil
}

func (c *CLI) startThinking() {
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if c.thinking {
		return
	}
	c.thinking = true
	c.thinkStop = make(chan struct{})
	go func() {
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		i := 0
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-c.thinkStop:
				return
			case <-ticker.C:
				fmt.Fprintf(c.out, "\r%s Thinking...", frames[i%len(frames)])
				i++
			}
		}
	}()
}

func (c *CLI) stopThinking() {
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if !c.thinking {
		return
	}
	c.thinking = false
	close(c.thinkStop)
}

// Stop is a no-op for CLI (we exit when Start returns).
func (c *CLI) Stop() error { return nil }
