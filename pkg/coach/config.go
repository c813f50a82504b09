package coach

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreBackendFile   = "file"
	StoreBackendSQLite = "sqlite"
)

// Config holds every runtime setting of the coach
type Config struct {
	APIKey        string `mapstructure:"api_key" json:"-"`
	ChatModel     string `mapstructure:"chat_model" json:"chat_model"`
	TTSModel      string `mapstructure:"tts_model" json:"tts_model"`
	FeedbackModel string `mapstructure:"feedback_model" json:"feedback_model"`
	Voice         string `mapstructure:"voice" json:"voice"`

	QuestionBudget  int `mapstructure:"question_budget" json:"question_budget"`
	MaxAnswerLength int `mapstructure:"max_answer_length" json:"max_answer_length"`

	MaxRetries        int           `mapstructure:"max_retries" json:"max_retries"`
	InitialDelay      time.Duration `mapstructure:"initial_delay" json:"initial_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay" json:"max_delay"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" json:"requests_per_minute"`

	StoreBackend string `mapstructure:"store_backend" json:"store_backend"`
	StorePath    string `mapstructure:"store_path" json:"store_path"`
	CatalogPath  string `mapstructure:"catalog_path" json:"catalog_path"`

	ListenAddr    string        `mapstructure:"listen_addr" json:"listen_addr"`
	SessionSecret string        `mapstructure:"session_secret" json:"-"`
	SessionTTL    time.Duration `mapstructure:"session_ttl" json:"session_ttl"`

	LogLevel  string `mapstructure:"log_level" json:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty" json:"log_pretty"`

	InputSampleRate  int `mapstructure:"input_sample_rate" json:"input_sample_rate"`
	OutputSampleRate int `mapstructure:"output_sample_rate" json:"output_sample_rate"`
	InputDeviceID    int `mapstructure:"input_device_id" json:"input_device_id"`
	OutputDeviceID   int `mapstructure:"output_device_id" json:"output_device_id"`
}

// NewConfig returns the defaults without reading the environment
func NewConfig() *Config {
	return &Config{
		ChatModel:         "gemini-2.5-flash",
		TTSModel:          "gemini-2.5-flash-preview-tts",
		FeedbackModel:     "gemini-2.5-flash",
		Voice:             "Kore",
		QuestionBudget:    5,
		MaxAnswerLength:   4000,
		MaxRetries:        3,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		RequestsPerMinute: 30,
		StoreBackend:      StoreBackendFile,
		StorePath:         "interview_reports.json",
		ListenAddr:        ":8080",
		SessionTTL:        2 * time.Hour,
		LogLevel:          "info",
		LogPretty:         true,
		InputSampleRate:   16000,
		OutputSampleRate:  24000,
		InputDeviceID:     -1,
		OutputDeviceID:    -1,
	}
}

// LoadConfig layers defaults, an optional config file, .env and COACH_* variables.
// An empty path searches for coach.yaml in the working directory.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, NewConfig())

	v.SetEnvPrefix("COACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api_key", "COACH_API_KEY", "GEMINI_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("coach")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, Wrapf(err, ErrCodeConfigInvalid, "failed to read config file")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, Wrapf(err, ErrCodeConfigInvalid, "failed to decode config")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("api_key", d.APIKey)
	v.SetDefault("chat_model", d.ChatModel)
	v.SetDefault("tts_model", d.TTSModel)
	v.SetDefault("feedback_model", d.FeedbackModel)
	v.SetDefault("voice", d.Voice)
	v.SetDefault("question_budget", d.QuestionBudget)
	v.SetDefault("max_answer_length", d.MaxAnswerLength)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("initial_delay", d.InitialDelay)
	v.SetDefault("max_delay", d.MaxDelay)
	v.SetDefault("requests_per_minute", d.RequestsPerMinute)
	v.SetDefault("store_backend", d.StoreBackend)
	v.SetDefault("store_path", d.StorePath)
	v.SetDefault("catalog_path", d.CatalogPath)
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("session_secret", d.SessionSecret)
	v.SetDefault("session_ttl", d.SessionTTL)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_pretty", d.LogPretty)
	v.SetDefault("input_sample_rate", d.InputSampleRate)
	v.SetDefault("output_sample_rate", d.OutputSampleRate)
	v.SetDefault("input_device_id", d.InputDeviceID)
	v.SetDefault("output_device_id", d.OutputDeviceID)
}

// RetryConfig derives the retry policy
func (c *Config) RetryConfig() RetryConfig {
	rc := DefaultRetryConfig()
	rc.MaxRetries = c.MaxRetries
	if c.InitialDelay > 0 {
		rc.InitialDelay = c.InitialDelay
	}
	if c.MaxDelay > 0 {
		rc.MaxDelay = c.MaxDelay
	}
	return rc
}

// LogConfig derives the logger settings
func (c *Config) LogConfig(out io.Writer) *LogConfig {
	lc := DefaultLogConfig()
	lc.Level = ParseLogLevel(c.LogLevel)
	lc.Pretty = c.LogPretty
	if out != nil {
		lc.Output = out
	}
	return lc
}

// Validate returns list of issues
func (c *Config) Validate() []string {
	issues := []string{}

	if c.APIKey == "" {
		issues = append(issues, "GEMINI_API_KEY (or COACH_API_KEY) not set")
	}
	if c.ChatModel == "" || c.TTSModel == "" || c.FeedbackModel == "" {
		issues = append(issues, "chat, tts and feedback models must be set")
	}
	if c.QuestionBudget < 1 {
		issues = append(issues, fmt.Sprintf("question budget must be at least 1, got %d", c.QuestionBudget))
	}
	if c.MaxRetries < 0 {
		issues = append(issues, fmt.Sprintf("max retries cannot be negative, got %d", c.MaxRetries))
	}
	if c.InitialDelay > c.MaxDelay && c.MaxDelay > 0 {
		issues = append(issues, "initial delay exceeds max delay")
	}
	if c.RequestsPerMinute < 0 {
		issues = append(issues, "requests per minute cannot be negative")
	}
	switch c.StoreBackend {
	case StoreBackendFile, StoreBackendSQLite:
	default:
		issues = append(issues, fmt.Sprintf("invalid store backend: %s", c.StoreBackend))
	}
	if c.StorePath == "" {
		issues = append(issues, "store path must be set")
	}
	if c.SessionTTL <= 0 {
		issues = append(issues, "session ttl must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("invalid log level: %s", c.LogLevel))
	}
	if c.InputSampleRate <= 0 || c.OutputSampleRate <= 0 {
		issues = append(issues, "sample rates must be positive")
	}

	return issues
}

// PrintConfig writes the effective configuration with secrets masked
func (c *Config) PrintConfig(w io.Writer) {
	fmt.Fprintln(w, "🎤 Interview Coach Configuration")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "API Key: %s\n", MaskSecret(c.APIKey))
	fmt.Fprintf(w, "Chat Model: %s\n", c.ChatModel)
	fmt.Fprintf(w, "TTS Model: %s (voice %s)\n", c.TTSModel, c.Voice)
	fmt.Fprintf(w, "Feedback Model: %s\n", c.FeedbackModel)
	fmt.Fprintf(w, "Question Budget: %d\n", c.QuestionBudget)
	fmt.Fprintf(w, "Retries: %d (initial %s, max %s)\n", c.MaxRetries, c.InitialDelay, c.MaxDelay)
	fmt.Fprintf(w, "Requests Per Minute: %d\n", c.RequestsPerMinute)
	fmt.Fprintf(w, "Store: %s at %s\n", c.StoreBackend, c.StorePath)
	if c.CatalogPath != "" {
		fmt.Fprintf(w, "Catalog: %s\n", c.CatalogPath)
	} else {
		fmt.Fprintln(w, "Catalog: built-in")
	}
	fmt.Fprintf(w, "Listen Address: %s\n", c.ListenAddr)
	fmt.Fprintf(w, "Session Secret: %s\n", MaskSecret(c.SessionSecret))
	fmt.Fprintf(w, "Session TTL: %s\n", c.SessionTTL)
	fmt.Fprintf(w, "Log Level: %s\n", c.LogLevel)
	fmt.Fprintf(w, "Sample Rates: in %d Hz, out %d Hz\n", c.InputSampleRate, c.OutputSampleRate)
	if c.InputDeviceID >= 0 {
		fmt.Fprintf(w, "Input Device ID: %d\n", c.InputDeviceID)
	} else {
		fmt.Fprintln(w, "Input Device: Default")
	}
	if c.OutputDeviceID >= 0 {
		fmt.Fprintf(w, "Output Device ID: %d\n", c.OutputDeviceID)
	} else {
		fmt.Fprintln(w, "Output Device: Default")
	}
}

// MaskSecret keeps the first few characters of a secret
func MaskSecret(s string) string {
	if s == "" {
		return "NOT SET"
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:6] + strings.Repeat("*", len(s)-6)
}
