package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for voicebot.
type Config struct {
	General  GeneralConfig  `json:"general" yaml:"general"`
	Gemini   GeminiConfig   `json:"gemini" yaml:"gemini"`
	Whisper  WhisperConfig  `json:"whisper" yaml:"whisper"`
	TTS      TTSConfig      `json:"tts" yaml:"tts"`
	Voice    VoiceConfig    `json:"voice" yaml:"voice"`
	Channels ChannelsConfig `json:"channels" yaml:"channels"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
}

type GeneralConfig struct {
	LogLevel              string `json:"logLevel" yaml:"logLevel"`
	MaxConcurrentRequests int    `json:"maxConcurrentRequests" yaml:"maxConcurrentRequests"`
}

// GeminiConfig configures the generative-text backend.
type GeminiConfig struct {
	APIKey string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	Model  string `json:"model" yaml:"model"`
}

// WhisperConfig configures the speech-to-text engine. Device is a compute
// hint forwarded to self-hosted Whisper servers ("cpu" | "cuda").
type WhisperConfig struct {
	APIBase  string `json:"apiBase" yaml:"apiBase"`
	APIKey   string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	Model    string `json:"model" yaml:"model"`
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
	Device   string `json:"device,omitempty" yaml:"device,omitempty"`
}

type TTSConfig struct {
	Provider string `json:"provider" yaml:"provider"` // "openai" | "elevenlabs"
	APIBase  string `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	APIKey   string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	Voice    string `json:"voice,omitempty" yaml:"voice,omitempty"`
}

// VoiceConfig configures the audio transcode stage of speech synthesis.
type VoiceConfig struct {
	FFmpegPath string `json:"ffmpegPath" yaml:"ffmpegPath"`
	Bitrate    string `json:"bitrate" yaml:"bitrate"` // e.g. "64k"
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	CLI      CLIConfig      `json:"cli" yaml:"cli"`
}

type TelegramConfig struct {
	Enabled   bool           `json:"enabled" yaml:"enabled"`
	Token     string         `json:"token" yaml:"token"`
	AllowFrom FlexStringList `json:"allowFrom" yaml:"allowFrom"`
	ParseMode string         `json:"parseMode" yaml:"parseMode"`
}

type CLIConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.voicebot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".voicebot"
	}
	return filepath.Join(home, ".voicebot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads a config file (JSON, or YAML when the extension is .yaml/.yml),
// expands ${VAR} environment references, and validates the result.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	cfg.Voice.FFmpegPath = ExpandPath(cfg.Voice.FFmpegPath)
	cfg.FillFromEnv()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// FillFromEnv backfills credentials from the environment so that a config
// file is optional: GOOGLE_API_KEY, TELEGRAM_TOKEN, WHISPER_API_KEY,
// TTS_API_KEY. Values already present in the config win.
func (c *Config) FillFromEnv() {
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if c.Channels.Telegram.Token == "" {
		c.Channels.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
	}
	if c.Whisper.APIKey == "" {
		c.Whisper.APIKey = os.Getenv("WHISPER_API_KEY")
	}
	if c.TTS.APIKey == "" {
		c.TTS.APIKey = os.Getenv("TTS_API_KEY")
	}
	if c.Whisper.Device == "" {
		c.Whisper.Device = os.Getenv("WHISPER_DEVICE")
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// bitratePattern matches ffmpeg audio bitrate specs like "64k" or "96000".
var bitratePattern = regexp.MustCompile(`^[0-9]+[kKmM]?$`)

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.MaxConcurrentRequests < 1 || cfg.General.MaxConcurrentRequests > 100 {
		errs = append(errs, "general.maxConcurrentRequests must be between 1 and 100")
	}
	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Gemini.Model == "" {
		errs = append(errs, "gemini.model must not be empty")
	}
	if cfg.Whisper.APIBase == "" {
		errs = append(errs, "whisper.apiBase must not be empty")
	}
	switch cfg.Whisper.Device {
	case "", "cpu", "cuda":
		// valid
	default:
		errs = append(errs, "whisper.device must be one of: cpu, cuda")
	}

	switch cfg.TTS.Provider {
	case "openai", "elevenlabs":
		// valid
	default:
		errs = append(errs, "tts.provider must be one of: openai, elevenlabs")
	}

	if !bitratePattern.MatchString(cfg.Voice.Bitrate) {
		errs = append(errs, "voice.bitrate must be an ffmpeg bitrate spec like 64k")
	}

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		errs = append(errs, "channels.telegram.token is required when the telegram channel is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
