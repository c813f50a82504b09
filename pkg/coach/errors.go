package coach

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"google.golang.org/genai"
)

// Error codes as constants
const (
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeAIRequestFailed     = "AI_REQUEST_FAILED"
	ErrCodeTTSFailed           = "TTS_FAILED"
	ErrCodeTranscriptionFailed = "TRANSCRIPTION_FAILED"
	ErrCodeFeedbackInvalid     = "FEEDBACK_INVALID"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeEmptyAnswer         = "EMPTY_ANSWER"
	ErrCodeConfigInvalid       = "CONFIG_INVALID"
	ErrCodeStorage             = "STORAGE_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeAudioDecode         = "AUDIO_DECODE_ERROR"
	ErrCodeAudioDevice         = "AUDIO_DEVICE_ERROR"
	ErrCodePlayback            = "PLAYBACK_ERROR"
	ErrCodeAuthFailed          = "AUTH_FAILED"
	ErrCodeTimeout             = "TIMEOUT_ERROR"
	ErrCodeJSONParse           = "JSON_PARSE_ERROR"
	ErrCodeUnknown             = "UNKNOWN_ERROR"
)

// CoachError carries a machine readable code alongside the message
type CoachError struct {
	Message   string
	Code      string
	Timestamp time.Time
	Details   map[string]interface{}
	err       error
}

func NewCoachError(message, code string) *CoachError {
	return &CoachError{
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func (e *CoachError) Error() string {
	if e.err != nil && e.err.Error() != e.Message {
		return fmt.Sprintf("%s (%s): %v", e.Message, e.Code, e.err)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *CoachError) Unwrap() error {
	return e.err
}

// AddDetail attaches a key/value to the error
func (e *CoachError) AddDetail(key string, value interface{}) *CoachError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// GetDetail returns a previously attached detail
func (e *CoachError) GetDetail(key string) (interface{}, bool) {
	if e.Details == nil {
		return nil, false
	}
	value, exists := e.Details[key]
	return value, exists
}

func NewRateLimitError(message string, attempts int) *CoachError {
	return NewCoachError(message, ErrCodeRateLimited).AddDetail("attempts", attempts)
}

func NewAIError(message string) *CoachError {
	return NewCoachError(message, ErrCodeAIRequestFailed)
}

func NewTTSError(message string) *CoachError {
	return NewCoachError(message, ErrCodeTTSFailed)
}

func NewTranscriptionError(message string) *CoachError {
	return NewCoachError(message, ErrCodeTranscriptionFailed)
}

func NewFeedbackError(message string) *CoachError {
	return NewCoachError(message, ErrCodeFeedbackInvalid)
}

func NewTransitionError(from, to State) *CoachError {
	return NewCoachError(fmt.Sprintf("cannot move from %s to %s", from, to), ErrCodeInvalidTransition).
		AddDetail("from", string(from)).
		AddDetail("to", string(to))
}

func NewConfigError(message string) *CoachError {
	return NewCoachError(message, ErrCodeConfigInvalid)
}

func NewStorageError(message string) *CoachError {
	return NewCoachError(message, ErrCodeStorage)
}

func NewAudioError(message string) *CoachError {
	return NewCoachError(message, ErrCodeAudioDecode)
}

func NewAuthError(message string) *CoachError {
	return NewCoachError(message, ErrCodeAuthFailed)
}

// WrapError wraps any error as a CoachError, keeping the original for errors.Is/As.
// An error that already is a CoachError is returned unchanged.
func WrapError(err error, code string) *CoachError {
	if err == nil {
		return nil
	}
	var cErr *CoachError
	if errors.As(err, &cErr) {
		return cErr
	}
	return &CoachError{
		Message:   err.Error(),
		Code:      code,
		Timestamp: time.Now(),
		err:       err,
	}
}

// Wrapf wraps err under a new message and code
func Wrapf(err error, code, format string, args ...interface{}) *CoachError {
	e := NewCoachError(fmt.Sprintf(format, args...), code)
	e.err = err
	return e
}

// ErrorCode extracts the code of a CoachError anywhere in the chain
func ErrorCode(err error) string {
	var cErr *CoachError
	if errors.As(err, &cErr) {
		return cErr.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code
func IsErrorCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// matches a standalone 429 status, not digits inside ids or traces
var rateLimitPattern = regexp.MustCompile(`\b429\b|\bRESOURCE_EXHAUSTED\b`)

// IsRateLimitError reports whether err signals a rate limit from the AI service
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if IsErrorCode(err, ErrCodeRateLimited) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED"
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code == 429 || apiErrPtr.Status == "RESOURCE_EXHAUSTED"
	}

	return rateLimitPattern.MatchString(err.Error())
}

// IsRetryableError reports whether the retry wrapper would retry err
func IsRetryableError(err error) bool {
	return IsRateLimitError(err)
}

// IsCriticalError reports errors that end the session
func IsCriticalError(err error) bool {
	switch ErrorCode(err) {
	case ErrCodeAuthFailed, ErrCodeConfigInvalid, ErrCodeRateLimited:
		return true
	}
	return false
}
