package pipeline

import (
	"context"
	"os"
	"testing"
	"time"

	"voicebot/internal/bus"
	"voicebot/internal/domain"
)

func TestLoop_RoutesReplyToOriginChannel(t *testing.T) {
	f := newFixture()
	b := bus.New(10, testLogger())
	defer b.Close()

	got := make(chan domain.OutboundMessage, 1)
	b.OnOutbound("telegram", func(msg domain.OutboundMessage) {
		got <- msg
	})

	loop := NewLoop(LoopConfig{Orchestrator: f.orch, Bus: b, Logger: testLogger()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	b.Publish(domain.InboundMessage{
		Channel:  "telegram",
		ChatID:   "42",
		SenderID: "u1",
		Text:     "hello",
	})

	select {
	case msg := <-got:
		if msg.ChatID != "42" {
			t.Fatalf("chat ID = %q", msg.ChatID)
		}
		if msg.Content != "re: hello" {
			t.Fatalf("content = %q", msg.Content)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no outbound message")
	}
}

func TestLoop_RemovesDownloadedVoiceFile(t *testing.T) {
	f := newFixture()
	b := bus.New(10, testLogger())
	defer b.Close()

	done := make(chan struct{}, 1)
	b.OnOutbound("telegram", func(domain.OutboundMessage) {
		done <- struct{}{}
	})

	loop := NewLoop(LoopConfig{Orchestrator: f.orch, Bus: b, Logger: testLogger()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	path := audioFile(t)
	b.Publish(domain.InboundMessage{
		Channel:     "telegram",
		ChatID:      "42",
		SenderID:    "u1",
		AudioPath:   path,
		RemoveAudio: true,
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not complete")
	}

	// Cleanup runs after SendOutbound, give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("voice file not removed: %s", path)
}
