// Package config provides configuration loading for the voice bot.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dilumka1020/pravy-voice-bot-v2/internal/storage"
)

// Config holds all configuration for the bot.
type Config struct {
	// HTTP settings
	ListenAddr string
	// PublicURL is the externally visible base URL Twilio calls; used for signature checks.
	PublicURL string

	// Claude settings
	AnthropicAPIKey string
	Model           string
	MaxTokens       int64
	// SystemPromptFile, when set, replaces the built-in prompt and is watched for changes.
	SystemPromptFile string
	// ReplyTimeout bounds one model call so the webhook answers before Twilio gives up.
	ReplyTimeout time.Duration

	// Conversation history settings
	HistoryMaxTurns    int
	RetentionPolicy    string
	SessionIdleTimeout time.Duration
	SweepInterval      time.Duration

	// Twilio settings
	TwilioAuthToken string
	Voice           string
	Language        string
	Greeting        string
	SpeechTimeout   string
	GoodbyePhrases  []string
	AllowedCallers  []string

	// Slack transcript settings (optional)
	SlackBotToken string
	SlackChannel  string

	LogLevel string
}

// Load loads configuration from environment variables and, when
// VOICEBOT_CONFIG_FILE is set, from that file.
func Load() (*Config, error) {
	v := viper.New()

	// Set prefix for environment variables
	v.SetEnvPrefix("VOICEBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", file, err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LISTEN_ADDR", ":3000")
	v.SetDefault("MODEL", "claude-3-7-sonnet-20250219")
	v.SetDefault("MAX_TOKENS", 1000)
	v.SetDefault("REPLY_TIMEOUT", 10*time.Second)
	v.SetDefault("HISTORY_MAX_TURNS", storage.DefaultMaxTurns)
	v.SetDefault("RETENTION_POLICY", string(storage.DefaultPolicy))
	v.SetDefault("SESSION_IDLE_TIMEOUT", 30*time.Minute)
	v.SetDefault("SWEEP_INTERVAL", time.Minute)
	v.SetDefault("VOICE", "Polly.Joanna")
	v.SetDefault("LANGUAGE", "en-US")
	v.SetDefault("GREETING", "Hello, thanks for calling Pravy Consulting. How can I help you today?")
	v.SetDefault("SPEECH_TIMEOUT", "auto")
	v.SetDefault("GOODBYE_PHRASES", []string{"goodbye", "bye", "that's all", "hang up"})
	v.SetDefault("LOG_LEVEL", "info")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		ListenAddr:         v.GetString("LISTEN_ADDR"),
		PublicURL:          strings.TrimRight(v.GetString("PUBLIC_URL"), "/"),
		AnthropicAPIKey:    v.GetString("ANTHROPIC_API_KEY"),
		Model:              v.GetString("MODEL"),
		MaxTokens:          v.GetInt64("MAX_TOKENS"),
		SystemPromptFile:   v.GetString("SYSTEM_PROMPT_FILE"),
		ReplyTimeout:       v.GetDuration("REPLY_TIMEOUT"),
		HistoryMaxTurns:    v.GetInt("HISTORY_MAX_TURNS"),
		RetentionPolicy:    v.GetString("RETENTION_POLICY"),
		SessionIdleTimeout: v.GetDuration("SESSION_IDLE_TIMEOUT"),
		SweepInterval:      v.GetDuration("SWEEP_INTERVAL"),
		TwilioAuthToken:    v.GetString("TWILIO_AUTH_TOKEN"),
		Voice:              v.GetString("VOICE"),
		Language:           v.GetString("LANGUAGE"),
		Greeting:           v.GetString("GREETING"),
		SpeechTimeout:      v.GetString("SPEECH_TIMEOUT"),
		GoodbyePhrases:     getList(v, "GOODBYE_PHRASES"),
		AllowedCallers:     getList(v, "ALLOWED_CALLERS"),
		SlackBotToken:      v.GetString("SLACK_BOT_TOKEN"),
		SlackChannel:       v.GetString("SLACK_CHANNEL"),
		LogLevel:           v.GetString("LOG_LEVEL"),
	}
}

// Retention builds the retention policy described by the configuration.
func (c *Config) Retention() (storage.RetentionPolicy, error) {
	return storage.NewRetentionPolicy(storage.PolicyKind(c.RetentionPolicy), c.HistoryMaxTurns)
}

// SlackEnabled reports whether call transcripts should be posted to Slack.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackChannel != ""
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.AnthropicAPIKey == "" {
		errs = append(errs, "VOICEBOT_ANTHROPIC_API_KEY is required")
	}
	if c.ListenAddr == "" {
		errs = append(errs, "VOICEBOT_LISTEN_ADDR must not be empty")
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Sprintf("VOICEBOT_MAX_TOKENS must be positive, got %d", c.MaxTokens))
	}
	if _, err := c.Retention(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.ReplyTimeout <= 0 {
		errs = append(errs, "VOICEBOT_REPLY_TIMEOUT must be positive")
	}
	if c.SessionIdleTimeout <= 0 {
		errs = append(errs, "VOICEBOT_SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, "VOICEBOT_SWEEP_INTERVAL must be positive")
	}
	if c.TwilioAuthToken != "" && c.PublicURL == "" {
		errs = append(errs, "VOICEBOT_PUBLIC_URL is required when VOICEBOT_TWILIO_AUTH_TOKEN is set")
	}
	if (c.SlackBotToken == "") != (c.SlackChannel == "") {
		errs = append(errs, "VOICEBOT_SLACK_BOT_TOKEN and VOICEBOT_SLACK_CHANNEL must be set together")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}

	return nil
}

// getList reads a list setting. Environment values are single strings
// separated by commas; entries may contain spaces. Lists from a config
// file are kept as they are.
func getList(v *viper.Viper, key string) []string {
	if raw, ok := v.Get(key).(string); ok {
		return splitList(raw)
	}
	return trimList(v.GetStringSlice(key))
}

// splitList splits a comma separated value into trimmed, non-empty entries.
func splitList(value string) []string {
	return trimList(strings.Split(value, ","))
}

func trimList(values []string) []string {
	var out []string
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}
