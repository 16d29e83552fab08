package pipeline

import (
	"context"
	"log/slog"
	"os"
	"time"

	"voicebot/internal/domain"
	"voicebot/internal/metrics"
)

const defaultConcurrency = 5

// Loop consumes inbound messages from the bus and runs the orchestrator for
// each one with bounded concurrency. Pipeline executions are independent:
// a slow transcription or generation call never blocks unrelated requests.
type Loop struct {
	orchestrator *Orchestrator
	bus          domain.MessageBus
	logger       *slog.Logger
	concurrency  int
}

// LoopConfig holds the loop's dependencies and tuning parameters.
type LoopConfig struct {
	Orchestrator *Orchestrator
	Bus          domain.MessageBus
	Logger       *slog.Logger
	Concurrency  int // max parallel pipeline executions (default 5)
}

// NewLoop creates a new pipeline loop.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		orchestrator: cfg.Orchestrator,
		bus:          cfg.Bus,
		logger:       cfg.Logger,
		concurrency:  cfg.Concurrency,
	}
}

// Run consumes inbound messages until the context is cancelled or the bus
// closes.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("pipeline loop started", "concurrency", l.concurrency)

	sem := make(chan struct{}, l.concurrency)
	inbound := l.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("pipeline loop stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				l.logger.Info("inbound channel closed, pipeline loop stopping")
				return
			}
			sem <- struct{}{}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				l.process(ctx, m)
			}(msg)
		}
	}
}

// process runs one pipeline execution and routes the result back to the
// originating channel. Channel-downloaded voice files are removed here: the
// publishing channel cannot know when the pipeline is done with them.
func (l *Loop) process(ctx context.Context, msg domain.InboundMessage) {
	l.logger.Info("processing message",
		"channel", msg.Channel,
		"sender", msg.SenderID,
		"has_audio", msg.AudioPath != "",
	)

	metrics.RequestsTotal.Inc()
	metrics.InFlight.Inc()
	start := time.Now()
	defer func() {
		metrics.InFlight.Dec()
		metrics.PipelineLatency.Observe(time.Since(start).Seconds())
		if msg.RemoveAudio && msg.AudioPath != "" {
			if err := os.Remove(msg.AudioPath); err != nil && !os.IsNotExist(err) {
				l.logger.Warn("failed to remove voice file", "path", msg.AudioPath, "err", err)
			}
		}
	}()

	result := l.orchestrator.Handle(ctx, domain.InboundRequest{
		UserID:    msg.SenderID,
		Text:      msg.Text,
		AudioPath: msg.AudioPath,
		Caption:   msg.Caption,
	})

	l.bus.SendOutbound(domain.OutboundMessage{
		Channel:   msg.Channel,
		ChatID:    msg.ChatID,
		Content:   result.ReplyText,
		VoiceNote: result.VoiceNote,
	})
}
