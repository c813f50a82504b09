package coach

import (
	"fmt"
	"strings"
)

// EndMarker is appended by the interviewer after its closing remarks
const EndMarker = "[INTERVIEW_COMPLETE]"

// SystemInstruction is the interviewer persona for one session
func SystemInstruction(p *Profile, questionBudget int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an experienced interviewer conducting a mock job interview for a %s %s position.\n",
		p.Level.Name, p.Role.Name)
	fmt.Fprintf(&sb, "Conduct the entire interview in %s.\n", p.Language.Name)
	if p.Level.Description != "" {
		fmt.Fprintf(&sb, "Candidate level: %s\n", p.Level.Description)
	}
	if len(p.Role.Focus) > 0 {
		fmt.Fprintf(&sb, "Cover these areas: %s.\n", strings.Join(p.Role.Focus, ", "))
	}
	fmt.Fprintf(&sb, "\nRules:\n")
	fmt.Fprintf(&sb, "1. Ask exactly %d questions in total, one question at a time.\n", questionBudget)
	sb.WriteString("2. After each answer give one or two sentences of honest feedback, then ask the next question.\n")
	sb.WriteString("3. Keep every reply short enough to be read aloud. No markdown, lists or emojis.\n")
	sb.WriteString("4. Adapt follow-up difficulty to the quality of the previous answers.\n")
	fmt.Fprintf(&sb, "5. When the final answer has been discussed, close the interview politely and end your message with %s.\n", EndMarker)
	return sb.String()
}

// OpeningMessage starts the interview
func OpeningMessage(p *Profile) string {
	return fmt.Sprintf("Please greet me briefly and ask your first interview question for the %s %s role.",
		p.Level.Name, p.Role.Name)
}

// AnswerMessage wraps a candidate answer that is followed by another question
func AnswerMessage(answer string, answered, budget int) string {
	return fmt.Sprintf("My answer (question %d of %d): %s\n\nGive brief feedback and ask question %d.",
		answered, budget, answer, answered+1)
}

// ClosingMessage wraps the final answer
func ClosingMessage(answer string, budget int) string {
	return fmt.Sprintf("My answer to the final question (%d of %d): %s\n\nGive brief feedback on it, thank me, close the interview and end with %s.",
		budget, budget, answer, EndMarker)
}

// EarlyEndMessage is sent when the candidate stops before the budget is reached
func EarlyEndMessage() string {
	return fmt.Sprintf("I need to stop the interview here. Please close it politely in one or two sentences and end with %s.", EndMarker)
}

// HasEndMarker reports whether text contains the end marker
func HasEndMarker(text string) bool {
	return strings.Contains(text, EndMarker)
}

// StripEndMarker removes the end marker so it is neither shown nor spoken
func StripEndMarker(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, EndMarker, ""))
}

// FeedbackPrompt renders the finished interview for the report generator
func FeedbackPrompt(sel Selection, turns []Turn) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Evaluate this mock interview for a %s %s position, conducted in language %q.\n\n",
		sel.Level, sel.Role, sel.Language)
	sb.WriteString("Transcript:\n")
	for _, t := range turns {
		fmt.Fprintf(&sb, "Q%d: %s\n", t.Number, t.Question)
		if t.Answered() {
			fmt.Fprintf(&sb, "A%d: %s\n", t.Number, t.Answer)
		} else {
			fmt.Fprintf(&sb, "A%d: (no answer)\n", t.Number)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Return an overall_score from 0 to 100, a short summary, strengths and improvements as lists, ")
	sb.WriteString("and for every question an assessment with a score from 0 to 10. ")
	sb.WriteString("Write the summary, strengths, improvements and assessments in the interview language.")
	return sb.String()
}
