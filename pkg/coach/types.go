package coach

import (
	"encoding/json"
	"time"
)

// Result types for lookups that report a CoachError
type Result[T any] struct {
	Data    T
	Error   *CoachError
	Success bool
}

func Ok[T any](data T) Result[T] {
	return Result[T]{Data: data, Success: true}
}

func Err[T any](err *CoachError) Result[T] {
	return Result[T]{Error: err, Success: false}
}

// State is the interview conversation state
type State string

const (
	StateStarting         State = "starting"
	StateAISpeaking       State = "ai_speaking"
	StateWaitingForUser   State = "waiting_for_user"
	StateRecording        State = "recording"
	StateProcessingAnswer State = "processing_answer"
	StateFinished         State = "finished"
	StateError            State = "error"
)

func (s State) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are possible
func (s State) IsTerminal() bool {
	return s == StateFinished || s == StateError
}

// Step is the screen currently shown to the user
type Step string

const (
	StepWelcome   Step = "welcome"
	StepLanguage  Step = "language"
	StepRole      Step = "role"
	StepLevel     Step = "level"
	StepInterview Step = "interview"
	StepFeedback  Step = "feedback"
)

var stepOrder = []Step{StepWelcome, StepLanguage, StepRole, StepLevel, StepInterview, StepFeedback}

// Next returns the following screen; the last screen returns itself.
func (s Step) Next() Step {
	for i, step := range stepOrder {
		if step == s && i+1 < len(stepOrder) {
			return stepOrder[i+1]
		}
	}
	return s
}

// Prev returns the previous screen; the first screen returns itself.
func (s Step) Prev() Step {
	for i, step := range stepOrder {
		if step == s && i > 0 {
			return stepOrder[i-1]
		}
	}
	return s
}

// Speaker identifies who produced a transcript entry
type Speaker string

const (
	SpeakerInterviewer Speaker = "interviewer"
	SpeakerCandidate   Speaker = "candidate"
)

// Selection is the language/role/level chosen before the interview
type Selection struct {
	Language string `json:"language"`
	Role     string `json:"role"`
	Level    string `json:"level"`
}

// Turn is one question/answer/feedback unit
type Turn struct {
	Number     int       `json:"number"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer,omitempty"`
	Feedback   string    `json:"feedback,omitempty"`
	AskedAt    time.Time `json:"asked_at"`
	AnsweredAt time.Time `json:"answered_at,omitempty"`
}

// Answered reports whether the candidate has replied to this turn
func (t Turn) Answered() bool {
	return t.Answer != ""
}

// TranscriptEntry is a single line of the rendered dialogue
type TranscriptEntry struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is one chat history item sent to the AI model
type Message struct {
	Role    Speaker
	Content string
}

// Speech is synthesized audio for one interviewer utterance
type Speech struct {
	Text       string `json:"text"`
	PCM        []byte `json:"-"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	MIMEType   string `json:"mime_type"`
}

// Duration of the PCM16 payload
func (s *Speech) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return PCMDuration(s.PCM, s.SampleRate, s.Channels)
}

// QuestionFeedback is the per-question part of a feedback report
type QuestionFeedback struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Assessment string `json:"assessment"`
	Score      int    `json:"score"`
}

// FeedbackReport is the structured report produced after the interview
type FeedbackReport struct {
	ID               string             `json:"id"`
	CreatedAt        time.Time          `json:"created_at"`
	Selection        Selection          `json:"selection"`
	OverallScore     int                `json:"overall_score"`
	Summary          string             `json:"summary"`
	Strengths        []string           `json:"strengths"`
	Improvements     []string           `json:"improvements"`
	QuestionFeedback []QuestionFeedback `json:"question_feedback"`
}

// MarshalIndent renders the report for export
func (r *FeedbackReport) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Handler types
type StateHandler func(from, to State)
type TranscriptHandler func(TranscriptEntry)
type SpeechHandler func(*Speech)
type ErrorHandler func(*CoachError)
type LevelHandler func(rms float32, bars []float32)
