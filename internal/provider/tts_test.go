package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTTSSynthesize_OpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header: %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["input"] != `line "one"` {
			t.Errorf("input not preserved: %q", body["input"])
		}
		if body["voice"] != "alloy" {
			t.Errorf("unexpected voice: %q", body["voice"])
		}
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	p := NewTTS(TTSConfig{APIBase: srv.URL, APIKey: "sk-test", Logger: testLogger()})

	rc, err := p.Synthesize(context.Background(), `line "one"`)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "mp3-bytes" {
		t.Fatalf("unexpected audio payload: %q", data)
	}
}

func TestTTSSynthesize_ElevenLabs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text-to-speech/voice-42" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "el-test" {
			t.Errorf("unexpected api key header: %q", got)
		}
		w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	p := NewTTS(TTSConfig{
		Provider: "elevenlabs",
		APIBase:  srv.URL,
		APIKey:   "el-test",
		Voice:    "voice-42",
		Logger:   testLogger(),
	})

	rc, err := p.Synthesize(context.Background(), "hi")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	rc.Close()
}

func TestTTSSynthesize_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewTTS(TTSConfig{APIBase: srv.URL, Logger: testLogger()})

	if _, err := p.Synthesize(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestTTSSynthesize_UnknownProvider(t *testing.T) {
	p := NewTTS(TTSConfig{Provider: "espeak", Logger: testLogger()})
	if _, err := p.Synthesize(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
