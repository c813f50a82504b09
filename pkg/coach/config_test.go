package coach

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCoachEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"COACH_API_KEY", "GEMINI_API_KEY", "COACH_QUESTION_BUDGET", "COACH_MAX_DELAY", "COACH_STORE_BACKEND"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Layers(t *testing.T) {
	clearCoachEnv(t)

	path := filepath.Join(t.TempDir(), "coach.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
question_budget: 3
store_backend: sqlite
store_path: reports.db
session_ttl: 30m
log_level: debug
`), 0o644))

	t.Setenv("COACH_QUESTION_BUDGET", "7")
	t.Setenv("COACH_MAX_DELAY", "10s")
	t.Setenv("GEMINI_API_KEY", "AIzaSyExampleKey123")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.QuestionBudget, "environment wins over the file")
	assert.Equal(t, StoreBackendSQLite, cfg.StoreBackend)
	assert.Equal(t, "reports.db", cfg.StorePath)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 10*time.Second, cfg.MaxDelay)
	assert.Equal(t, "AIzaSyExampleKey123", cfg.APIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.ChatModel, "defaults fill the rest")
	assert.Equal(t, -1, cfg.InputDeviceID)
	assert.Empty(t, cfg.Validate())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.True(t, IsErrorCode(err, ErrCodeConfigInvalid))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"missing key", func(c *Config) { c.APIKey = "" }, "GEMINI_API_KEY"},
		{"zero budget", func(c *Config) { c.QuestionBudget = 0 }, "question budget"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "max retries"},
		{"delays inverted", func(c *Config) { c.InitialDelay = time.Minute }, "initial delay"},
		{"bad backend", func(c *Config) { c.StoreBackend = "redis" }, "store backend"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"no ttl", func(c *Config) { c.SessionTTL = 0 }, "session ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.APIKey = "key"
			require.Empty(t, cfg.Validate())

			tt.modify(cfg)
			issues := cfg.Validate()
			require.Len(t, issues, 1)
			assert.Contains(t, issues[0], tt.want)
		})
	}
}

func TestConfig_Derived(t *testing.T) {
	cfg := NewConfig()
	cfg.MaxRetries = 5
	cfg.InitialDelay = 0

	rc := cfg.RetryConfig()
	assert.Equal(t, 5, rc.MaxRetries)
	assert.Equal(t, DefaultRetryConfig().InitialDelay, rc.InitialDelay)

	var buf bytes.Buffer
	cfg.LogLevel = "warn"
	lc := cfg.LogConfig(&buf)
	assert.Equal(t, "warn", lc.Level.String())
	assert.Same(t, &buf, lc.Output)
}

func TestConfig_PrintConfigMasksSecrets(t *testing.T) {
	cfg := NewConfig()
	cfg.APIKey = "AIzaSyExampleKey123"
	cfg.SessionSecret = "short"

	var buf bytes.Buffer
	cfg.PrintConfig(&buf)
	out := buf.String()

	assert.NotContains(t, out, "AIzaSyExampleKey123")
	assert.Contains(t, out, "AIzaSy*************")
	assert.Contains(t, out, "Session Secret: *****")
	assert.Contains(t, out, "Input Device: Default")
	assert.Equal(t, "NOT SET", MaskSecret(""))
}
