package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dilumka1020/pravy-voice-bot-v2/internal/storage"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) SetupTest() {
	s.T().Setenv("VOICEBOT_ANTHROPIC_API_KEY", "sk-test")
}

func (s *ConfigTestSuite) TestLoadDefaults() {
	cfg, err := Load()
	require.NoError(s.T(), err)

	assert.Equal(s.T(), ":3000", cfg.ListenAddr)
	assert.Equal(s.T(), "claude-3-7-sonnet-20250219", cfg.Model)
	assert.EqualValues(s.T(), 1000, cfg.MaxTokens)
	assert.Equal(s.T(), storage.DefaultMaxTurns, cfg.HistoryMaxTurns)
	assert.Equal(s.T(), "anchored", cfg.RetentionPolicy)
	assert.Equal(s.T(), 30*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(s.T(), 10*time.Second, cfg.ReplyTimeout)
	assert.Equal(s.T(), time.Minute, cfg.SweepInterval)
	assert.Contains(s.T(), cfg.GoodbyePhrases, "goodbye")
	assert.Empty(s.T(), cfg.AllowedCallers)
	assert.False(s.T(), cfg.SlackEnabled())

	policy, err := cfg.Retention()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), storage.PolicyAnchored, policy.Kind())
}

func (s *ConfigTestSuite) TestLoadFromEnvironment() {
	s.T().Setenv("VOICEBOT_RETENTION_POLICY", "tail")
	s.T().Setenv("VOICEBOT_HISTORY_MAX_TURNS", "10")
	s.T().Setenv("VOICEBOT_ALLOWED_CALLERS", "+1415*, +4420*")
	s.T().Setenv("VOICEBOT_SESSION_IDLE_TIMEOUT", "5m")
	s.T().Setenv("VOICEBOT_PUBLIC_URL", "https://voice.example.com/")

	cfg, err := Load()
	require.NoError(s.T(), err)

	policy, err := cfg.Retention()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), storage.PolicyTail, policy.Kind())
	assert.Equal(s.T(), 10, policy.MaxTurns())
	assert.Equal(s.T(), []string{"+1415*", "+4420*"}, cfg.AllowedCallers)
	assert.Equal(s.T(), 5*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(s.T(), "https://voice.example.com", cfg.PublicURL)
}

func (s *ConfigTestSuite) TestLoadFromFile() {
	path := filepath.Join(s.T().TempDir(), "voicebot.yaml")
	content := "MODEL: claude-test\nHISTORY_MAX_TURNS: 6\nSLACK_BOT_TOKEN: xoxb-1\nSLACK_CHANNEL: C123\n"
	require.NoError(s.T(), os.WriteFile(path, []byte(content), 0o600))
	s.T().Setenv("VOICEBOT_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(s.T(), err)

	assert.Equal(s.T(), "claude-test", cfg.Model)
	assert.Equal(s.T(), 6, cfg.HistoryMaxTurns)
	assert.True(s.T(), cfg.SlackEnabled())
}

func (s *ConfigTestSuite) TestLoadMissingFile() {
	s.T().Setenv("VOICEBOT_CONFIG_FILE", filepath.Join(s.T().TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(s.T(), err)
}

func (s *ConfigTestSuite) TestValidateCollectsErrors() {
	s.T().Setenv("VOICEBOT_ANTHROPIC_API_KEY", "")
	s.T().Setenv("VOICEBOT_RETENTION_POLICY", "anchored")
	s.T().Setenv("VOICEBOT_HISTORY_MAX_TURNS", "1")
	s.T().Setenv("VOICEBOT_TWILIO_AUTH_TOKEN", "secret")
	s.T().Setenv("VOICEBOT_SLACK_CHANNEL", "C123")

	_, err := Load()
	require.Error(s.T(), err)

	msg := err.Error()
	assert.Contains(s.T(), msg, "VOICEBOT_ANTHROPIC_API_KEY is required")
	assert.Contains(s.T(), msg, "anchored retention needs at least 2 turns")
	assert.Contains(s.T(), msg, "VOICEBOT_PUBLIC_URL is required")
	assert.Contains(s.T(), msg, "must be set together")
}

func (s *ConfigTestSuite) TestLoadMultiWordPhrasesFromEnvironment() {
	s.T().Setenv("VOICEBOT_GOODBYE_PHRASES", "goodbye,that's all, hang up ")

	cfg, err := Load()
	require.NoError(s.T(), err)

	assert.Equal(s.T(), []string{"goodbye", "that's all", "hang up"}, cfg.GoodbyePhrases)
}

func (s *ConfigTestSuite) TestLoadListsFromFile() {
	path := filepath.Join(s.T().TempDir(), "voicebot.yaml")
	content := "GOODBYE_PHRASES:\n  - see you later\n  - bye\nALLOWED_CALLERS: \"+1415*, +4420*\"\n"
	require.NoError(s.T(), os.WriteFile(path, []byte(content), 0o600))
	s.T().Setenv("VOICEBOT_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(s.T(), err)

	assert.Equal(s.T(), []string{"see you later", "bye"}, cfg.GoodbyePhrases)
	assert.Equal(s.T(), []string{"+1415*", "+4420*"}, cfg.AllowedCallers)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "d"}, splitList("a, b c,  ,d"))
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" , "))
}
