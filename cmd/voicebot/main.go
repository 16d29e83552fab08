package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"voicebot/internal/bus"
	"voicebot/internal/channel"
	"voicebot/internal/config"
	"voicebot/internal/metrics"
	"voicebot/internal/pipeline"
	"voicebot/internal/provider"
	"voicebot/internal/voice"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	// Secrets may live in a local .env file; absence is not an error.
	_ = godotenv.Load()

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "voicebot",
		Short: "voicebot: a text and voice conversational bot",
		Long:  "voicebot answers Telegram text and voice messages with Gemini, transcribing incoming voice notes and optionally replying with synthesized speech.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ~/.voicebot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfigOrDefaults() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
		cfg.FillFromEnv()
	}
	return cfg
}

// buildPipeline wires providers, the synthesizer, the orchestrator, and the
// processing loop onto the given bus.
func buildPipeline(ctx context.Context, cfg *config.Config, messageBus *bus.InMemoryBus) (*pipeline.Loop, *pipeline.ModeStore, error) {
	gemini, err := provider.NewGemini(ctx, provider.GeminiConfig{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.Model,
		Logger: logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("gemini provider: %w", err)
	}

	whisper := provider.NewWhisper(provider.WhisperConfig{
		APIBase:  cfg.Whisper.APIBase,
		APIKey:   cfg.Whisper.APIKey,
		Model:    cfg.Whisper.Model,
		Language: cfg.Whisper.Language,
		Device:   cfg.Whisper.Device,
		Logger:   logger,
	})

	tts := provider.NewTTS(provider.TTSConfig{
		Provider: cfg.TTS.Provider,
		APIBase:  cfg.TTS.APIBase,
		APIKey:   cfg.TTS.APIKey,
		Model:    cfg.TTS.Model,
		Voice:    cfg.TTS.Voice,
		Logger:   logger,
	})

	synth := voice.New(voice.Config{
		Engine:     tts,
		FFmpegPath: cfg.Voice.FFmpegPath,
		Bitrate:    cfg.Voice.Bitrate,
		Logger:     logger,
	})

	modes := pipeline.NewModeStore()

	orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		Transcriber: whisper,
		Generator:   gemini,
		Synthesizer: synth,
		Modes:       modes,
		Logger:      logger,
	})

	loop := pipeline.NewLoop(pipeline.LoopConfig{
		Orchestrator: orch,
		Bus:          messageBus,
		Logger:       logger,
		Concurrency:  cfg.General.MaxConcurrentRequests,
	})

	return loop, modes, nil
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start interactive chat (CLI)",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfigOrDefaults()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(100, logger)
	defer messageBus.Close()

	loop, modes, err := buildPipeline(ctx, cfg, messageBus)
	if err != nil {
		return err
	}
	go loop.Run(ctx)

	cliCh := channel.NewCLI(channel.CLIConfig{Modes: modes, Logger: logger})
	return cliCh.Start(ctx, messageBus)
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Start gateway (Telegram + pipeline loop)",
		Long:  "Starts the Telegram channel and the message pipeline. Press Ctrl+C to stop.",
		RunE:  runGateway,
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Message bus (closed during graceful shutdown below)
	messageBus := bus.New(100, logger)

	loop, modes, err := buildPipeline(ctx, cfg, messageBus)
	if err != nil {
		return err
	}
	go loop.Run(ctx)

	var telegramCh *channel.Telegram
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		telegramCh = channel.NewTelegram(channel.TelegramConfig{
			Token:     cfg.Channels.Telegram.Token,
			AllowFrom: cfg.Channels.Telegram.AllowFrom,
			ParseMode: cfg.Channels.Telegram.ParseMode,
			Modes:     modes,
			Logger:    logger,
		})
		go func() {
			if err := telegramCh.Start(ctx, messageBus); err != nil {
				logger.Error("telegram channel error", "err", err)
			}
		}()
		logger.Info("telegram channel enabled")
	} else {
		logger.Info("telegram channel disabled")
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc(cfg.Metrics.Endpoint, metrics.Collector.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logger.Info("metrics server listening", "addr", cfg.Metrics.Addr, "endpoint", cfg.Metrics.Endpoint)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "err", err)
			}
		}()
	}

	logger.Info("gateway started. Press Ctrl+C to stop.")

	// Block until shutdown signal
	<-ctx.Done()
	logger.Info("shutting down gateway...")

	// Graceful shutdown with timeout
	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		if telegramCh != nil {
			telegramCh.Stop()
		}
		if metricsSrv != nil {
			metricsSrv.Shutdown(shutdownCtx)
		}
		messageBus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		shutdownErr = fmt.Errorf("shutdown timed out")
	}

	return shutdownErr
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
				cfg.FillFromEnv()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			logger.Info("version", "voicebot", version)

			gemini, err := provider.NewGemini(context.Background(), provider.GeminiConfig{
				APIKey: cfg.Gemini.APIKey,
				Model:  cfg.Gemini.Model,
				Logger: logger,
			})
			if err != nil {
				logger.Warn("gemini", "configured", false, "err", err)
			} else {
				logger.Info("gemini", "configured", gemini.Configured(), "model", cfg.Gemini.Model)
			}

			ffmpeg := cfg.Voice.FFmpegPath
			if ffmpeg == "" {
				ffmpeg = "ffmpeg"
			}
			if path, err := exec.LookPath(ffmpeg); err != nil {
				logger.Warn("ffmpeg", "found", false, "err", err)
			} else {
				logger.Info("ffmpeg", "found", true, "path", path)
			}

			logger.Info("whisper", "apiBase", cfg.Whisper.APIBase, "model", cfg.Whisper.Model, "hasKey", cfg.Whisper.APIKey != "")
			logger.Info("tts", "provider", cfg.TTS.Provider, "hasKey", cfg.TTS.APIKey != "")
			logger.Info("telegram", "enabled", cfg.Channels.Telegram.Enabled, "hasToken", cfg.Channels.Telegram.Token != "")
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. gemini.model)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. voice.bitrate 48k)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
