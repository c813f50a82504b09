package tui

import (
	"fmt"
	"strings"

	"github.com/rojolang/interview-coach-go/pkg/coach"
)

const transcriptLines = 12

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Interview Coach"))
	b.WriteString("\n")

	switch m.step {
	case coach.StepWelcome:
		b.WriteString(m.welcomeView())
	case coach.StepLanguage:
		b.WriteString(m.pickerView("Choose the interview language"))
	case coach.StepRole:
		b.WriteString(m.pickerView("Choose the role"))
	case coach.StepLevel:
		b.WriteString(m.pickerView("Choose your level"))
	case coach.StepInterview:
		b.WriteString(m.interviewView())
	case coach.StepFeedback:
		b.WriteString(m.feedbackView())
	}

	if m.errText != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Error: " + m.errText))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) welcomeView() string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render("Practice a technical interview out loud and get scored feedback."))
	b.WriteString("\n")
	b.WriteString("Pick a language, a role and your level. The interviewer asks one\n")
	b.WriteString("question at a time; answer by voice or by typing.\n\n")
	b.WriteString(helpStyle.Render("enter: begin  q: quit"))
	return b.String()
}

func (m Model) pickerView(title string) string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render(title))
	b.WriteString("\n")
	for i, opt := range m.options() {
		line := opt.name
		if opt.detail != "" {
			line += statusStyle.Render("  " + opt.detail)
		}
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + opt.name))
			if opt.detail != "" {
				b.WriteString(statusStyle.Render("  " + opt.detail))
			}
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓: move  enter: select  esc: back  q: quit"))
	return b.String()
}

func (m Model) stateLabel() string {
	switch m.state {
	case coach.StateStarting:
		return "Preparing the interview..."
	case coach.StateAISpeaking:
		return "Interviewer is speaking..."
	case coach.StateWaitingForUser:
		return activeStyle.Render("Your turn")
	case coach.StateRecording:
		return activeStyle.Render("● Recording")
	case coach.StateProcessingAnswer:
		return "Thinking about your answer..."
	case coach.StateFinished:
		return "Interview finished, preparing feedback..."
	case coach.StateError:
		return errorStyle.Render("Interview stopped")
	}
	return string(m.state)
}

func (m Model) interviewView() string {
	var b strings.Builder

	header := m.sel.Language + " · " + m.sel.Role + " · " + m.sel.Level
	if m.iv != nil {
		if p := m.iv.Profile(); p != nil {
			header = p.Language.Name + " · " + p.Role.Name + " · " + p.Level.Name
		}
	}
	b.WriteString(subtitleStyle.Render(header))
	b.WriteString("\n")

	if m.iv != nil && m.iv.QuestionBudget() > 0 {
		answered := m.iv.AnsweredCount()
		budget := m.iv.QuestionBudget()
		b.WriteString(m.progress.ViewAs(float64(answered) / float64(budget)))
		b.WriteString(statusStyle.Render(fmt.Sprintf("  %d/%d answered", answered, budget)))
		b.WriteString("\n\n")
	}

	b.WriteString(boxStyle.Render(m.transcriptView()))
	b.WriteString("\n")

	status := m.stateLabel()
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(status)
	b.WriteString("\n")

	if m.state == coach.StateRecording {
		if len(m.levels) > 0 {
			b.WriteString(levelStyle.Render(coach.RenderBars(m.levels)))
			b.WriteString("\n")
		}
		if live := m.iv.LiveAnswer(); live != "" {
			b.WriteString(liveStyle.Render(live))
			b.WriteString("\n")
		}
	}

	if m.typing {
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter: submit  esc: cancel"))
		return b.String()
	}

	b.WriteString("\n")
	switch m.state {
	case coach.StateWaitingForUser:
		if m.deps.Microphone != nil {
			b.WriteString(helpStyle.Render("space: record  t: type  e: end interview  q: quit"))
		} else {
			b.WriteString(helpStyle.Render("space/t: type answer  e: end interview  q: quit"))
		}
	case coach.StateRecording:
		b.WriteString(helpStyle.Render("space: stop and submit  q: quit"))
	default:
		b.WriteString(helpStyle.Render("q: quit"))
	}
	return b.String()
}

func (m Model) transcriptView() string {
	entries := m.entries
	if len(entries) > transcriptLines {
		entries = entries[len(entries)-transcriptLines:]
	}
	if len(entries) == 0 {
		return statusStyle.Render("The interviewer will start shortly.")
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		var who string
		if e.Speaker == coach.SpeakerInterviewer {
			who = interviewerStyle.Render("Interviewer:")
		} else {
			who = candidateStyle.Render("You:")
		}
		lines = append(lines, who+" "+e.Text)
	}
	return strings.Join(lines, "\n")
}

func (m Model) feedbackView() string {
	var b strings.Builder
	r := m.report
	if m.unanswered {
		return "No answers were given, so there is nothing to evaluate.\n\n" + helpStyle.Render("q: quit")
	}
	if r == nil {
		return m.spinner.View() + " Preparing feedback..."
	}

	b.WriteString(scoreStyle.Render(fmt.Sprintf("Overall score: %d/100", r.OverallScore)))
	b.WriteString("\n\n")
	if r.Summary != "" {
		b.WriteString(r.Summary)
		b.WriteString("\n\n")
	}

	writeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString(selectedStyle.Render(title))
		b.WriteString("\n")
		for _, it := range items {
			b.WriteString("  • " + it + "\n")
		}
		b.WriteString("\n")
	}
	writeList("Strengths", r.Strengths)
	writeList("To improve", r.Improvements)

	for i, q := range r.QuestionFeedback {
		b.WriteString(fmt.Sprintf("%s %s\n", selectedStyle.Render(fmt.Sprintf("Q%d (%d/10)", i+1, q.Score)), q.Question))
		b.WriteString(statusStyle.Render("  "+q.Assessment) + "\n")
	}
	b.WriteString("\n")

	if m.savedID != "" {
		b.WriteString(activeStyle.Render("Saved as " + m.savedID))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("q: quit"))
	} else {
		b.WriteString(helpStyle.Render("s: save report  q: quit"))
	}
	return b.String()
}
