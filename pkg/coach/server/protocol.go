package server

import (
	"encoding/json"

	"github.com/rojolang/interview-coach-go/pkg/coach"
)

// Client to server message types
const (
	MsgStart            = "start"
	MsgRecordingStarted = "recording_started"
	MsgTranscript       = "transcript"
	MsgRecordingStopped = "recording_stopped"
	MsgAnswer           = "answer"
	MsgPlaybackDone     = "playback_done"
	MsgEnd              = "end"
	MsgFeedback         = "feedback"
	MsgSaveReport       = "save_report"
)

// Server to client message types
const (
	MsgState       = "state"
	MsgSpeech      = "speech"
	MsgReportSaved = "report_saved"
	MsgError       = "error"
	// MsgTranscript and MsgFeedback are shared by both directions
)

// InboundMessage is a frame read from the browser
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// OutboundMessage is a frame written to the browser
type OutboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type TranscriptData struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

type AnswerData struct {
	Text string `json:"text"`
}

type StateData struct {
	From coach.State `json:"from"`
	To   coach.State `json:"to"`
}

type SpeechData struct {
	Text       string `json:"text"`
	Audio      string `json:"audio,omitempty"`
	SampleRate int    `json:"sample_rate"`
	MIMEType   string `json:"mime_type"`
	DurationMS int64  `json:"duration_ms"`
}

type ReportSavedData struct {
	ID string `json:"id"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newSpeechData(s *coach.Speech) SpeechData {
	return SpeechData{
		Text:       s.Text,
		Audio:      coach.EncodePCMBase64(s.PCM),
		SampleRate: s.SampleRate,
		MIMEType:   s.MIMEType,
		DurationMS: s.Duration().Milliseconds(),
	}
}

func newErrorData(err error) ErrorData {
	cErr := coach.WrapError(err, coach.ErrCodeUnknown)
	return ErrorData{Code: cErr.Code, Message: cErr.Message}
}
