package coach

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CoachLogger wraps zerolog for structured logging
type CoachLogger struct {
	logger zerolog.Logger
}

// LogConfig represents the configuration for logging
type LogConfig struct {
	Level     zerolog.Level
	Pretty    bool
	Output    io.Writer
	AddSource bool
	Fields    map[string]interface{}
}

// DefaultLogConfig returns a default logging configuration
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:  zerolog.InfoLevel,
		Pretty: true,
		Output: os.Stderr,
		Fields: make(map[string]interface{}),
	}
}

// ParseLogLevel maps a level name to a zerolog level, defaulting to info
func ParseLogLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewCoachLogger creates a new structured logger
func NewCoachLogger(config *LogConfig) *CoachLogger {
	if config == nil {
		config = DefaultLogConfig()
	}
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339

	var logger zerolog.Logger
	if config.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(out)
	}

	ctx := logger.Level(config.Level).With().Timestamp()
	if config.AddSource {
		ctx = ctx.Caller()
	}
	if len(config.Fields) > 0 {
		ctx = ctx.Fields(config.Fields)
	}

	return &CoachLogger{logger: ctx.Logger()}
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *CoachLogger {
	return &CoachLogger{logger: zerolog.Nop()}
}

// WithComponent adds a component field to the logger
func (l *CoachLogger) WithComponent(component string) *CoachLogger {
	return &CoachLogger{logger: l.logger.With().Str("component", component).Logger()}
}

// WithField adds a field to the logger
func (l *CoachLogger) WithField(key string, value interface{}) *CoachLogger {
	return &CoachLogger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithFields adds multiple fields to the logger
func (l *CoachLogger) WithFields(fields map[string]interface{}) *CoachLogger {
	return &CoachLogger{logger: l.logger.With().Fields(fields).Logger()}
}

// WithError adds an error field to the logger
func (l *CoachLogger) WithError(err error) *CoachLogger {
	return &CoachLogger{logger: l.logger.With().Err(err).Logger()}
}

// Zerolog exposes the underlying logger
func (l *CoachLogger) Zerolog() zerolog.Logger {
	return l.logger
}

func (l *CoachLogger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

func (l *CoachLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *CoachLogger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

func (l *CoachLogger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

func (l *CoachLogger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

func (l *CoachLogger) Warnf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *CoachLogger) Error(msg string) {
	l.logger.Error().Msg(msg)
}

func (l *CoachLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

// LogStateEvent logs an interview state transition
func (l *CoachLogger) LogStateEvent(from, to State, fields map[string]interface{}) {
	l.logger.Info().
		Str("event_type", "state").
		Str("from", from.String()).
		Str("to", to.String()).
		Fields(fields).
		Msg("State transition")
}

// LogAIEvent logs an outbound AI call and its outcome
func (l *CoachLogger) LogAIEvent(op string, took time.Duration, err error) {
	event := l.logger.Debug()
	if err != nil {
		event = l.logger.Warn().Err(err)
	}
	event.
		Str("event_type", "ai").
		Str("op", op).
		Dur("took", took).
		Msg("AI call")
}

// LogRetry logs a scheduled retry after a rate-limit response
func (l *CoachLogger) LogRetry(op string, attempt int, delay time.Duration, err error) {
	l.logger.Warn().
		Str("event_type", "retry").
		Str("op", op).
		Int("attempt", attempt).
		Dur("delay", delay).
		Err(err).
		Msg("Rate limited, retrying")
}

// LogError logs a CoachError with structured fields
func (l *CoachLogger) LogError(err *CoachError) {
	l.logger.Error().
		Str("error_code", err.Code).
		Time("at", err.Timestamp).
		Fields(err.Details).
		Msg(err.Error())
}

var (
	globalMu     sync.RWMutex
	globalLogger = NewCoachLogger(DefaultLogConfig())
)

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *CoachLogger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger *CoachLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

func Debugf(format string, args ...interface{}) {
	GetGlobalLogger().Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	GetGlobalLogger().Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	GetGlobalLogger().Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	GetGlobalLogger().Errorf(format, args...)
}
