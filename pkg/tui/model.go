// Package tui renders the interview screens in the terminal. It holds no
// interview logic of its own; every action is a call into coach.Interview.
package tui

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rojolang/interview-coach-go/pkg/coach"
)

// Microphone captures an answer. voice.Recorder implements it.
type Microphone interface {
	Start(ctx context.Context, onSamples func([]float32)) error
	Stop() ([]byte, error)
	SampleRate() int
}

// Deps are the collaborators of the screens
type Deps struct {
	Catalog      *coach.Catalog
	NewInterview func(sel coach.Selection) (*coach.Interview, error)
	Microphone   Microphone
	Store        coach.ReportStore
}

type stateMsg struct{ from, to coach.State }
type entryMsg coach.TranscriptEntry
type errorMsg struct{ err *coach.CoachError }
type levelMsg []float32

type actionDoneMsg struct {
	action string
	err    error
}

type reportMsg struct {
	report *coach.FeedbackReport
	err    error
}

type savedMsg struct {
	id  string
	err error
}

// bus forwards interview events into the program once it is running
type bus struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

func (b *bus) set(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

func (b *bus) publish(msg tea.Msg) {
	b.mu.RLock()
	send := b.send
	b.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

// Model is the bubbletea model for every screen
type Model struct {
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc
	bus    *bus

	step   coach.Step
	cursor int
	sel    coach.Selection

	iv       *coach.Interview
	state    coach.State
	entries  []coach.TranscriptEntry
	levels   []float32
	busy     bool
	typing   bool
	errText  string
	report   *coach.FeedbackReport
	savedID  string
	quitting bool
	// finished without any answers, so no report is requested
	unanswered bool

	input    textinput.Model
	spinner  spinner.Model
	progress progress.Model
	width    int
}

// New builds the model on the welcome screen
func New(ctx context.Context, deps Deps) Model {
	if deps.Catalog == nil {
		deps.Catalog = coach.DefaultCatalog()
	}
	ctx, cancel := context.WithCancel(ctx)

	input := textinput.New()
	input.Placeholder = "Type your answer and press enter"
	input.CharLimit = coach.DefaultMaxAnswerLength
	input.Width = 60

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return Model{
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
		bus:      &bus{},
		step:     coach.StepWelcome,
		state:    coach.StateStarting,
		input:    input,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Step is the screen currently shown
func (m Model) Step() coach.Step { return m.step }

// Selection is what has been picked so far
func (m Model) Selection() coach.Selection { return m.sel }

// Interview is the running interview, nil before the level is picked
func (m Model) Interview() *coach.Interview { return m.iv }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if msg.Width > 20 {
			m.progress.Width = min(msg.Width-10, 60)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stateMsg:
		m.state = msg.to
		if msg.to != coach.StateRecording {
			m.levels = nil
		}
		if msg.to == coach.StateFinished && m.report == nil {
			if m.iv != nil && m.iv.AnsweredCount() == 0 {
				m.unanswered = true
				m.step = coach.StepFeedback
				return m, nil
			}
			m.busy = true
			return m, m.requestFeedback()
		}
		return m, nil

	case entryMsg:
		m.entries = append(m.entries, coach.TranscriptEntry(msg))
		return m, nil

	case errorMsg:
		m.errText = fmt.Sprintf("%s [%s]", msg.err.Message, msg.err.Code)
		return m, nil

	case levelMsg:
		m.levels = msg
		return m, nil

	case actionDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.setError(msg.err)
		}
		return m, nil

	case reportMsg:
		m.busy = false
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.report = msg.report
		m.step = coach.StepFeedback
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.savedID = msg.id
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) setError(err error) {
	cErr := coach.WrapError(err, coach.ErrCodeUnknown)
	m.errText = fmt.Sprintf("%s [%s]", cErr.Message, cErr.Code)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.deps.Microphone != nil {
		m.deps.Microphone.Stop()
	}
	m.cancel()
	if m.iv != nil {
		m.iv.Close()
	}
	return m, tea.Quit
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m.quit()
	}
	if m.typing {
		return m.handleTyping(msg)
	}

	switch m.step {
	case coach.StepWelcome:
		switch msg.String() {
		case "enter":
			m.step = m.step.Next()
			m.cursor = 0
		case "q":
			return m.quit()
		}

	case coach.StepLanguage, coach.StepRole, coach.StepLevel:
		return m.handlePicker(msg)

	case coach.StepInterview:
		return m.handleInterview(msg)

	case coach.StepFeedback:
		switch msg.String() {
		case "s":
			return m, m.saveReport()
		case "q":
			return m.quit()
		}
	}
	return m, nil
}

type option struct {
	id, name, detail string
}

func (m Model) options() []option {
	var out []option
	switch m.step {
	case coach.StepLanguage:
		for _, l := range m.deps.Catalog.Languages {
			out = append(out, option{l.ID, l.Name, l.Locale})
		}
	case coach.StepRole:
		for _, r := range m.deps.Catalog.Roles {
			out = append(out, option{r.ID, r.Name, ""})
		}
	case coach.StepLevel:
		for _, l := range m.deps.Catalog.Levels {
			out = append(out, option{l.ID, l.Name, l.Description})
		}
	}
	return out
}

func (m Model) handlePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	opts := m.options()
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(opts)-1 {
			m.cursor++
		}
	case "esc", "backspace":
		m.step = m.step.Prev()
		m.cursor = 0
	case "q":
		return m.quit()
	case "enter":
		if len(opts) == 0 {
			return m, nil
		}
		picked := opts[m.cursor].id
		switch m.step {
		case coach.StepLanguage:
			m.sel.Language = picked
		case coach.StepRole:
			m.sel.Role = picked
		case coach.StepLevel:
			m.sel.Level = picked
			return m.startInterview()
		}
		m.step = m.step.Next()
		m.cursor = 0
	}
	return m, nil
}

func (m Model) startInterview() (tea.Model, tea.Cmd) {
	iv, err := m.deps.NewInterview(m.sel)
	if err != nil {
		m.setError(err)
		return m, nil
	}

	b := m.bus
	iv.AddStateHandler(func(from, to coach.State) { b.publish(stateMsg{from, to}) })
	iv.AddTranscriptHandler(func(e coach.TranscriptEntry) { b.publish(entryMsg(e)) })
	iv.AddErrorHandler(func(err *coach.CoachError) { b.publish(errorMsg{err}) })
	iv.AddLevelHandler(func(rms float32, bars []float32) { b.publish(levelMsg(bars)) })

	m.iv = iv
	m.step = coach.StepInterview
	m.errText = ""
	m.busy = true

	ctx := m.ctx
	return m, func() tea.Msg {
		return actionDoneMsg{"start", iv.Start(ctx)}
	}
}

func (m Model) handleInterview(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m.quit()
	case " ", "space":
		return m.toggleRecording()
	case "t":
		if m.iv.State() == coach.StateWaitingForUser {
			m.typing = true
			m.input.Reset()
			m.input.Focus()
			m.errText = ""
		}
	case "e":
		if m.iv.State() != coach.StateWaitingForUser {
			return m, nil
		}
		m.busy = true
		iv, ctx := m.iv, m.ctx
		return m, func() tea.Msg {
			return actionDoneMsg{"end", iv.End(ctx)}
		}
	}
	return m, nil
}

// toggleRecording starts or stops the microphone. Interview calls happen
// inside commands since their handlers publish back into the program.
func (m Model) toggleRecording() (tea.Model, tea.Cmd) {
	mic := m.deps.Microphone
	iv, ctx := m.iv, m.ctx

	switch iv.State() {
	case coach.StateWaitingForUser:
		if mic == nil {
			m.typing = true
			m.input.Reset()
			m.input.Focus()
			return m, nil
		}
		m.errText = ""
		return m, func() tea.Msg {
			if err := iv.BeginRecording(); err != nil {
				return actionDoneMsg{"record", err}
			}
			if err := mic.Start(ctx, iv.PushAudio); err != nil {
				iv.CancelRecording()
				return actionDoneMsg{"record", coach.WrapError(err, coach.ErrCodeAudioDevice)}
			}
			return actionDoneMsg{"record", nil}
		}

	case coach.StateRecording:
		m.busy = true
		if mic == nil {
			return m, func() tea.Msg { return actionDoneMsg{"answer", iv.StopRecording(ctx)} }
		}
		return m, func() tea.Msg {
			pcm, err := mic.Stop()
			if err != nil {
				iv.CancelRecording()
				return actionDoneMsg{"answer", err}
			}
			return actionDoneMsg{"answer", iv.SubmitRecording(ctx, pcm, mic.SampleRate())}
		}
	}
	return m, nil
}

func (m Model) handleTyping(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.typing = false
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		text := m.input.Value()
		m.typing = false
		m.input.Blur()
		m.input.Reset()
		m.busy = true
		iv, ctx := m.iv, m.ctx
		return m, func() tea.Msg {
			return actionDoneMsg{"answer", iv.SubmitAnswer(ctx, text)}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) requestFeedback() tea.Cmd {
	iv, ctx := m.iv, m.ctx
	return func() tea.Msg {
		report, err := iv.RequestFeedback(ctx)
		return reportMsg{report, err}
	}
}

func (m Model) saveReport() tea.Cmd {
	if m.report == nil || m.savedID != "" {
		return nil
	}
	if m.deps.Store == nil {
		return func() tea.Msg { return savedMsg{err: coach.NewStorageError("no report store configured")} }
	}
	store, report, ctx := m.deps.Store, m.report, m.ctx
	return func() tea.Msg {
		if err := store.Save(ctx, report); err != nil {
			return savedMsg{err: err}
		}
		return savedMsg{id: report.ID}
	}
}

// Run shows the screens until the user quits
func Run(ctx context.Context, deps Deps) error {
	m := New(ctx, deps)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.bus.set(p.Send)
	_, err := p.Run()
	m.cancel()
	return err
}
