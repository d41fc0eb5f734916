// Package main is the entry point for the Pravy voice bot.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/dilumka1020/pravy-voice-bot-v2/internal/claude"
	"github.com/dilumka1020/pravy-voice-bot-v2/internal/config"
	"github.com/dilumka1020/pravy-voice-bot-v2/internal/slack"
	"github.com/dilumka1020/pravy-voice-bot-v2/internal/storage"
	"github.com/dilumka1020/pravy-voice-bot-v2/internal/voice"
)

const shutdownTimeout = 15 * time.Second

// transcriptNotifier is the notifier surface main needs for shutdown.
type transcriptNotifier interface {
	voice.CallEndNotifier
	Close()
}

func main() {
	// Setup logger
	logLevel := slog.LevelInfo
	if strings.EqualFold(os.Getenv("VOICEBOT_LOG_LEVEL"), "debug") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting voice bot...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	retention, err := cfg.Retention()
	if err != nil {
		logger.Error("Invalid retention policy", "error", err)
		os.Exit(1)
	}
	logger.Info("Configuration loaded",
		"listen_addr", cfg.ListenAddr,
		"model", cfg.Model,
		"retention", retention.Kind(),
		"max_turns", retention.MaxTurns(),
		"log_level", cfg.LogLevel,
	)

	// Create conversation store
	store := storage.NewMemoryStore(storage.WithRetention(retention))

	// Load system prompt
	prompt := claude.NewPromptSource("")
	if cfg.SystemPromptFile != "" {
		text, err := claude.LoadSystemPrompt(cfg.SystemPromptFile)
		if err != nil {
			logger.Error("Failed to load system prompt", "error", err)
			os.Exit(1)
		}
		_ = prompt.Set(text)
	}

	claudeClient := claude.NewClient(cfg.AnthropicAPIKey, cfg.Model, cfg.MaxTokens)
	conversation := claude.NewConversationManager(claudeClient, store, prompt, logger)

	var notifier transcriptNotifier = slack.NopNotifier{}
	if cfg.SlackEnabled() {
		notifier = slack.NewNotifier(cfg.SlackBotToken, cfg.SlackChannel, logger)
		logger.Info("Posting call transcripts to Slack", "channel", cfg.SlackChannel)
	}

	handler, err := voice.NewHandler(cfg, conversation, store, notifier, logger)
	if err != nil {
		logger.Error("Failed to create voice handler", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg conc.WaitGroup

	wg.Go(func() {
		logger.Info("Voice bot is listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	})

	wg.Go(func() {
		sweepSessions(ctx, store, cfg.SweepInterval, cfg.SessionIdleTimeout, logger)
	})

	if cfg.SystemPromptFile != "" {
		wg.Go(func() {
			if err := prompt.Watch(ctx, cfg.SystemPromptFile, logger); err != nil {
				logger.Warn("System prompt watcher stopped", "error", err)
			}
		})
	}

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}

	wg.Wait()
	notifier.Close()

	logger.Info("Voice bot stopped.", "sessions", store.Len())
}

// sweepSessions drops conversations whose call-ended callback never arrived.
func sweepSessions(ctx context.Context, store storage.ConversationStore, every, idle time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Cleanup(idle); n > 0 {
				logger.Info("Removed idle conversations", "count", n, "remaining", store.Len())
			}
		}
	}
}
