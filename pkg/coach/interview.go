package coach

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// allowed lists the legal targets of each state
var allowed = map[State][]State{
	StateStarting:         {StateAISpeaking, StateError},
	StateAISpeaking:       {StateWaitingForUser, StateFinished, StateError},
	StateWaitingForUser:   {StateRecording, StateProcessingAnswer, StateFinished, StateError},
	StateRecording:        {StateProcessingAnswer, StateWaitingForUser, StateError},
	StateProcessingAnswer: {StateAISpeaking, StateError},
}

// CanTransition reports whether from -> to is a legal move
func CanTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// InterviewConfig tunes one interview session
type InterviewConfig struct {
	ID              string
	QuestionBudget  int
	MaxAnswerLength int
	Voice           string
	Logger          *CoachLogger
	Metrics         *Metrics
}

// InterviewConfigFrom copies the relevant settings from Config
func InterviewConfigFrom(c *Config) InterviewConfig {
	return InterviewConfig{
		QuestionBudget:  c.QuestionBudget,
		MaxAnswerLength: c.MaxAnswerLength,
		Voice:           c.Voice,
	}
}

type handlerEntry[T any] struct {
	id int
	fn T
}

// Interview is the turn-state machine of one mock interview. Blocking
// operations take a context; handlers run synchronously on the calling
// goroutine, in registration order.
type Interview struct {
	id       string
	sel      Selection
	profile  *Profile
	config   InterviewConfig
	services Services
	logger   *CoachLogger
	metrics  *Metrics

	mu          sync.RWMutex
	state       State
	started     bool
	closed      bool
	transcript  *Transcript
	buffer      *TranscriptBuffer
	meter       *LevelMeter
	history     []Message
	report      *FeedbackReport
	lastErr     *CoachError
	startedAt   time.Time
	finishedAt  time.Time
	feedbackMu  sync.Mutex
	handlersMu  sync.RWMutex
	nextHandler int

	stateHandlers      []handlerEntry[StateHandler]
	transcriptHandlers []handlerEntry[TranscriptHandler]
	speechHandlers     []handlerEntry[SpeechHandler]
	errorHandlers      []handlerEntry[ErrorHandler]
	levelHandlers      []handlerEntry[LevelHandler]
}

// NewInterview validates the selection against the catalog and prepares a session
func NewInterview(sel Selection, catalog *Catalog, services Services, config InterviewConfig) (*Interview, error) {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	profile, err := catalog.Resolve(sel)
	if err != nil {
		return nil, err
	}

	if config.QuestionBudget <= 0 {
		config.QuestionBudget = NewConfig().QuestionBudget
	}
	if config.MaxAnswerLength <= 0 {
		config.MaxAnswerLength = DefaultMaxAnswerLength
	}
	if config.ID == "" {
		config.ID = uuid.NewString()
	}
	if services.Chat == nil && services.ChatFactory != nil {
		services.Chat = services.ChatFactory.NewChat(profile, config.QuestionBudget)
	}
	if services.Chat == nil {
		return nil, NewConfigError("interview needs a chat model")
	}
	logger := config.Logger
	if logger == nil {
		logger = GetGlobalLogger()
	}

	return &Interview{
		id:         config.ID,
		sel:        sel,
		profile:    profile,
		config:     config,
		services:   services,
		logger:     logger.WithComponent("interview").WithField("session", config.ID),
		metrics:    config.Metrics,
		state:      StateStarting,
		transcript: NewTranscript(),
		buffer:     NewTranscriptBuffer(config.MaxAnswerLength),
		meter:      NewLevelMeter(32),
	}, nil
}

func (iv *Interview) ID() string           { return iv.id }
func (iv *Interview) Selection() Selection { return iv.sel }
func (iv *Interview) Profile() *Profile    { return iv.profile }
func (iv *Interview) QuestionBudget() int  { return iv.config.QuestionBudget }

func (iv *Interview) State() State {
	iv.mu.RLock()
	defer iv.mu.RUnlock()
	return iv.state
}

// Entries returns the rendered dialogue so far
func (iv *Interview) Entries() []TranscriptEntry {
	return iv.transcript.Entries()
}

func (iv *Interview) Turns() []Turn {
	return iv.transcript.Turns()
}

// AnsweredCount is the number of answered questions
func (iv *Interview) AnsweredCount() int {
	return iv.transcript.AnsweredCount()
}

// LiveAnswer is the answer assembled so far while recording
func (iv *Interview) LiveAnswer() string {
	return iv.buffer.Text()
}

// Levels returns the recent microphone levels
func (iv *Interview) Levels() []float32 {
	return iv.meter.Levels()
}

// Report returns the cached feedback report, if any
func (iv *Interview) Report() *FeedbackReport {
	iv.mu.RLock()
	defer iv.mu.RUnlock()
	return iv.report
}

func (iv *Interview) LastError() *CoachError {
	iv.mu.RLock()
	defer iv.mu.RUnlock()
	return iv.lastErr
}

// Duration of the interview so far, or in total once finished
func (iv *Interview) Duration() time.Duration {
	iv.mu.RLock()
	defer iv.mu.RUnlock()
	if iv.startedAt.IsZero() {
		return 0
	}
	if iv.finishedAt.IsZero() {
		return time.Since(iv.startedAt)
	}
	return iv.finishedAt.Sub(iv.startedAt)
}

// ExportTranscript writes the dialogue as JSON
func (iv *Interview) ExportTranscript(path string) error {
	return iv.transcript.Export(path)
}

func (iv *Interview) transition(to State) error {
	iv.mu.Lock()
	from := iv.state
	if !CanTransition(from, to) {
		iv.mu.Unlock()
		return NewTransitionError(from, to)
	}
	iv.state = to
	if to.IsTerminal() {
		iv.finishedAt = time.Now()
	}
	iv.mu.Unlock()

	iv.logger.LogStateEvent(from, to, nil)
	iv.metrics.ObserveTransition(from, to)
	iv.emitState(from, to)
	return nil
}

// transitionFrom moves from -> to only if the machine is still in from.
// Public commands use it so they cannot cut into an in-flight turn.
func (iv *Interview) transitionFrom(from, to State) error {
	iv.mu.Lock()
	if iv.state != from || !CanTransition(from, to) {
		cur := iv.state
		iv.mu.Unlock()
		return NewTransitionError(cur, to)
	}
	iv.state = to
	if to.IsTerminal() {
		iv.finishedAt = time.Now()
	}
	iv.mu.Unlock()

	iv.logger.LogStateEvent(from, to, nil)
	iv.metrics.ObserveTransition(from, to)
	iv.emitState(from, to)
	return nil
}

// fail moves any non-terminal state to error and reports err
func (iv *Interview) fail(err error) error {
	cErr := WrapError(err, ErrCodeUnknown)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		cErr = Wrapf(err, ErrCodeTimeout, "interview interrupted")
	}

	iv.mu.Lock()
	from := iv.state
	iv.lastErr = cErr
	terminal := from.IsTerminal()
	if !terminal {
		iv.state = StateError
		iv.finishedAt = time.Now()
	}
	iv.mu.Unlock()

	iv.logger.WithError(err).Error("interview failed")
	iv.emitError(cErr)
	if !terminal {
		iv.metrics.ObserveTransition(from, StateError)
		iv.emitState(from, StateError)
	}
	return cErr
}

// warn surfaces a non-fatal error without changing state
func (iv *Interview) warn(err error, code string) {
	cErr := WrapError(err, code)
	iv.mu.Lock()
	iv.lastErr = cErr
	iv.mu.Unlock()
	iv.logger.WithError(err).Warn("non-fatal interview error")
	iv.emitError(cErr)
}

func (iv *Interview) chat(ctx context.Context, prompt string) (string, error) {
	iv.mu.RLock()
	history := make([]Message, len(iv.history))
	copy(history, iv.history)
	iv.mu.RUnlock()

	reply, err := iv.services.Chat.Reply(ctx, history, prompt)
	if err != nil {
		return "", err
	}

	iv.mu.Lock()
	iv.history = append(iv.history,
		Message{Role: SpeakerCandidate, Content: prompt},
		Message{Role: SpeakerInterviewer, Content: reply},
	)
	iv.mu.Unlock()
	return reply, nil
}

func (iv *Interview) voice() string {
	if iv.profile.Language.Voice != "" {
		return iv.profile.Language.Voice
	}
	return iv.config.Voice
}

// speak synthesizes and plays text. Failures are reported but never fatal
// unless ctx itself is done.
func (iv *Interview) speak(ctx context.Context, text string) error {
	if iv.services.Synthesizer == nil {
		return nil
	}
	speech, err := iv.services.Synthesizer.Synthesize(ctx, text, iv.voice())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		iv.warn(err, ErrCodeTTSFailed)
		return nil
	}

	iv.emitSpeech(speech)
	if iv.services.Player == nil {
		return nil
	}
	if err := iv.services.Player.Play(ctx, speech); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		iv.warn(err, ErrCodePlayback)
	}
	return nil
}

// say records an interviewer line, speaks it and settles in the next state
func (iv *Interview) say(ctx context.Context, text string, done bool) error {
	entry := iv.transcript.AddEntry(SpeakerInterviewer, text)
	iv.emitTranscript(entry)

	if err := iv.transition(StateAISpeaking); err != nil {
		return err
	}
	if err := iv.speak(ctx, text); err != nil {
		return iv.fail(err)
	}
	if done {
		return iv.transition(StateFinished)
	}
	return iv.transition(StateWaitingForUser)
}

// Start asks for the opening question and speaks it
func (iv *Interview) Start(ctx context.Context) error {
	iv.mu.Lock()
	if iv.started || iv.state != StateStarting {
		state := iv.state
		iv.mu.Unlock()
		return NewTransitionError(state, StateAISpeaking)
	}
	iv.started = true
	iv.startedAt = time.Now()
	iv.mu.Unlock()

	iv.metrics.SessionStarted()
	iv.logger.Infof("interview started: %s %s in %s", iv.profile.Level.Name, iv.profile.Role.Name, iv.profile.Language.Name)

	reply, err := iv.chat(ctx, OpeningMessage(iv.profile))
	if err != nil {
		return iv.fail(err)
	}

	text := StripEndMarker(reply)
	iv.transcript.OpenTurn(text)
	return iv.say(ctx, text, HasEndMarker(reply))
}

// BeginRecording starts capturing an answer
func (iv *Interview) BeginRecording() error {
	if err := iv.transition(StateRecording); err != nil {
		return err
	}
	iv.buffer.Reset()
	iv.meter.Reset()
	return nil
}

// AddRecognized feeds a recognized fragment; only valid while recording
func (iv *Interview) AddRecognized(text string, final bool) error {
	iv.mu.RLock()
	state := iv.state
	iv.mu.RUnlock()
	if state != StateRecording {
		return NewCoachError("speech fragments are only accepted while recording", ErrCodeInvalidTransition).
			AddDetail("state", string(state))
	}
	iv.buffer.Add(text, final)
	return nil
}

// PushAudio feeds microphone samples to the level meter while recording
func (iv *Interview) PushAudio(samples []float32) {
	if iv.State() != StateRecording {
		return
	}
	rms := iv.meter.Push(samples)
	iv.emitLevel(rms, LevelBars(samples, 16))
}

// CancelRecording discards the current recording
func (iv *Interview) CancelRecording() error {
	if err := iv.transitionFrom(StateRecording, StateWaitingForUser); err != nil {
		return err
	}
	iv.buffer.Reset()
	return nil
}

func (iv *Interview) emptyAnswer() error {
	err := NewCoachError("no answer was recognized", ErrCodeEmptyAnswer)
	if iv.State() == StateRecording {
		if tErr := iv.transitionFrom(StateRecording, StateWaitingForUser); tErr != nil {
			return tErr
		}
	}
	iv.warn(err, ErrCodeEmptyAnswer)
	return err
}

// StopRecording submits the assembled answer; an empty one returns to
// waiting_for_user with EMPTY_ANSWER.
func (iv *Interview) StopRecording(ctx context.Context) error {
	if state := iv.State(); state != StateRecording {
		return NewTransitionError(state, StateProcessingAnswer)
	}
	return iv.SubmitAnswer(ctx, iv.buffer.Text())
}

// SubmitRecording transcribes captured PCM16 audio and submits it
func (iv *Interview) SubmitRecording(ctx context.Context, pcm []byte, sampleRate int) error {
	if state := iv.State(); state != StateRecording {
		return NewTransitionError(state, StateProcessingAnswer)
	}
	if iv.services.Transcriber == nil {
		return NewTranscriptionError("no transcriber configured")
	}

	text, err := iv.services.Transcriber.Transcribe(ctx, pcm, sampleRate, iv.profile.Language.Locale)
	if err != nil {
		if ctx.Err() != nil {
			return iv.fail(err)
		}
		if tErr := iv.transition(StateWaitingForUser); tErr != nil {
			return tErr
		}
		iv.warn(err, ErrCodeTranscriptionFailed)
		return WrapError(err, ErrCodeTranscriptionFailed)
	}

	iv.buffer.Add(text, true)
	return iv.StopRecording(ctx)
}

// SubmitAnswer records the answer on the current turn, asks the model for
// its reaction and speaks it. The budget-th answer closes the interview.
func (iv *Interview) SubmitAnswer(ctx context.Context, text string) error {
	if state := iv.State(); state != StateWaitingForUser && state != StateRecording {
		return NewTransitionError(state, StateProcessingAnswer)
	}
	text = truncateRunes(text, iv.config.MaxAnswerLength)
	if text == "" {
		return iv.emptyAnswer()
	}
	if err := iv.transition(StateProcessingAnswer); err != nil {
		return err
	}

	entry := iv.transcript.AddEntry(SpeakerCandidate, text)
	iv.emitTranscript(entry)
	iv.transcript.AnswerCurrent(text)
	iv.buffer.Reset()

	answered := iv.transcript.AnsweredCount()
	budget := iv.config.QuestionBudget
	final := answered >= budget

	prompt := AnswerMessage(text, answered, budget)
	if final {
		prompt = ClosingMessage(text, budget)
	}

	reply, err := iv.chat(ctx, prompt)
	if err != nil {
		return iv.fail(err)
	}

	done := final || HasEndMarker(reply)
	spoken := StripEndMarker(reply)
	iv.transcript.AttachFeedback(spoken)
	if !done {
		iv.transcript.OpenTurn(spoken)
	}
	return iv.say(ctx, spoken, done)
}

// End finishes the interview early; only valid while waiting for the user
func (iv *Interview) End(ctx context.Context) error {
	if err := iv.transitionFrom(StateWaitingForUser, StateFinished); err != nil {
		return err
	}
	iv.logger.Infof("interview ended early after %d answers", iv.AnsweredCount())
	return nil
}

// RequestFeedback generates the report once the interview has finished.
// The report is cached; later calls return it without another request.
func (iv *Interview) RequestFeedback(ctx context.Context) (*FeedbackReport, error) {
	iv.feedbackMu.Lock()
	defer iv.feedbackMu.Unlock()

	iv.mu.RLock()
	state, cached := iv.state, iv.report
	iv.mu.RUnlock()

	if state != StateFinished {
		return nil, NewCoachError("feedback is available once the interview has finished", ErrCodeInvalidTransition).
			AddDetail("state", string(state))
	}
	if cached != nil {
		return cached, nil
	}
	if iv.services.Feedback == nil {
		return nil, NewFeedbackError("no feedback generator configured")
	}

	turns := iv.transcript.Turns()
	answered := turns[:0:0]
	for _, t := range turns {
		if t.Answered() {
			answered = append(answered, t)
		}
	}
	if len(answered) == 0 {
		return nil, NewFeedbackError("no answers to evaluate")
	}

	report, err := iv.services.Feedback.Feedback(ctx, iv.sel, answered)
	if err != nil {
		iv.warn(err, ErrCodeFeedbackInvalid)
		return nil, WrapError(err, ErrCodeFeedbackInvalid)
	}
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	report.Selection = iv.sel

	iv.mu.Lock()
	iv.report = report
	iv.mu.Unlock()
	return report, nil
}

// Close records the end of the session for metrics
func (iv *Interview) Close() {
	iv.mu.Lock()
	started, state, closed := iv.started, iv.state, iv.closed
	iv.closed = true
	iv.mu.Unlock()
	if started && !closed {
		iv.metrics.SessionEnded(state)
	}
}
