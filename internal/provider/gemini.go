package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"voicebot/internal/domain"
)

// systemInstruction caps the backend to brief answers and fixes the refusal
// phrase, mirroring the prompt the bot has always used.
const systemInstruction = `You are a helpful assistant.
Answer briefly. If you cannot answer, say:
"I'm sorry, I cannot answer that. Please try asking in another way."`

// GeminiConfig configures the Gemini reply generator.
type GeminiConfig struct {
	APIKey string
	Model  string // e.g., "gemini-2.5-pro"
	Logger *slog.Logger
}

// GeminiProvider generates replies via the Google Gemini API. It implements
// domain.Generator. A provider built without an API key is valid but returns
// domain.ErrNotConfigured from every Generate call.
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGemini creates a Gemini reply generator. A missing API key is not an
// error here: the pipeline surfaces it per request as a stable
// configuration-error reply.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-pro"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := &GeminiProvider{model: cfg.Model, logger: cfg.Logger}
	if cfg.APIKey == "" {
		cfg.Logger.Warn("GOOGLE_API_KEY not set, reply generation disabled")
		return p, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	p.client = client
	return p, nil
}

// Configured reports whether the backend credential is present.
func (g *GeminiProvider) Configured() bool { return g.client != nil }

// Generate produces a reply for the prompt. An empty prompt short-circuits
// with a fixed message instead of an engine call. Single attempt, no retry.
func (g *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "I didn't receive any text.", nil
	}
	if g.client == nil {
		return "", domain.ErrNotConfigured
	}

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(prompt)}},
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(systemInstruction)}},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}

	g.logger.Info("reply generated",
		"model", g.model,
		"prompt_len", len(prompt),
		"reply_len", len(text),
	)
	return text, nil
}
