package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:              "info",
			MaxConcurrentRequests: 5,
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-pro",
		},
		Whisper: WhisperConfig{
			APIBase: "https://api.groq.com/openai/v1",
			Model:   "whisper-large-v3",
		},
		TTS: TTSConfig{
			Provider: "openai",
			APIBase:  "https://api.openai.com/v1",
			Model:    "tts-1",
			Voice:    "alloy",
		},
		Voice: VoiceConfig{
			FFmpegPath: "ffmpeg",
			Bitrate:    "64k",
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				ParseMode: "Markdown",
			},
			CLI: CLIConfig{
				Enabled: true,
			},
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Addr:     "127.0.0.1:9090",
			Endpoint: "/metrics",
		},
	}
}
