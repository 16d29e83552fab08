package pipeline

import (
	"sync"
	"testing"

	"voicebot/internal/domain"
)

func TestModeStore_DefaultIsText(t *testing.T) {
	s := NewModeStore()
	if got := s.Get("u1"); got != domain.ModeText {
		t.Fatalf("default mode = %q, want text", got)
	}
}

func TestModeStore_SetAndGet(t *testing.T) {
	s := NewModeStore()
	mode, err := s.Set("u1", "voice")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if mode != domain.ModeVoice {
		t.Fatalf("set returned %q, want voice", mode)
	}
	if got := s.Get("u1"); got != domain.ModeVoice {
		t.Fatalf("get = %q, want voice", got)
	}
	// Other users are unaffected.
	if got := s.Get("u2"); got != domain.ModeText {
		t.Fatalf("unrelated user mode = %q, want text", got)
	}
}

func TestModeStore_RejectsInvalidWithoutMutating(t *testing.T) {
	s := NewModeStore()
	if _, err := s.Set("u1", "voice"); err != nil {
		t.Fatal(err)
	}

	for _, raw := range []string{"TEXT", "Voice", "audio", "", "text "} {
		if _, err := s.Set("u1", raw); err == nil {
			t.Fatalf("Set(%q) should be rejected", raw)
		}
	}

	if got := s.Get("u1"); got != domain.ModeVoice {
		t.Fatalf("rejected set mutated state: %q", got)
	}
}

func TestModeStore_SetIsIdempotent(t *testing.T) {
	s := NewModeStore()
	s.Set("u1", "voice")
	s.Set("u1", "voice")
	if got := s.Get("u1"); got != domain.ModeVoice {
		t.Fatalf("mode after repeated set = %q, want voice", got)
	}
}

func TestModeStore_ConcurrentAccess(t *testing.T) {
	s := NewModeStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Set("u1", "voice")
		}()
		go func() {
			defer wg.Done()
			_ = s.Get("u1")
		}()
	}
	wg.Wait()

	if got := s.Get("u1"); got != domain.ModeVoice {
		t.Fatalf("mode after concurrent writes = %q, want voice", got)
	}
}
