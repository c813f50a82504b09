package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rojolang/interview-coach-go/pkg/coach"
)

const endCommand = "/end"

// runAsk drives iv from line-oriented input. It returns the feedback report,
// or nil when the interview ended without any answers.
func runAsk(ctx context.Context, iv *coach.Interview, in io.Reader, out io.Writer) (*coach.FeedbackReport, error) {
	iv.AddTranscriptHandler(func(e coach.TranscriptEntry) {
		if e.Speaker == coach.SpeakerInterviewer {
			fmt.Fprintf(out, "\nInterviewer: %s\n", e.Text)
		}
	})
	iv.AddErrorHandler(func(err *coach.CoachError) {
		fmt.Fprintf(out, "! %s\n", err.Message)
	})

	if err := iv.Start(ctx); err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for iv.State() == coach.StateWaitingForUser {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := iv.End(ctx); err != nil {
				return nil, err
			}
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == endCommand {
			if err := iv.End(ctx); err != nil {
				return nil, err
			}
			break
		}

		err := iv.SubmitAnswer(ctx, line)
		if err != nil && !coach.IsErrorCode(err, coach.ErrCodeEmptyAnswer) && iv.State() == coach.StateError {
			return nil, err
		}
	}

	if iv.State() != coach.StateFinished {
		if last := iv.LastError(); last != nil {
			return nil, last
		}
		return nil, coach.NewCoachError("interview stopped in state "+iv.State().String(), coach.ErrCodeUnknown)
	}

	if iv.AnsweredCount() == 0 {
		fmt.Fprintln(out, "\nNo answers were given, so there is no feedback.")
		return nil, nil
	}

	fmt.Fprintln(out, "\nPreparing feedback...")
	report, err := iv.RequestFeedback(ctx)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(out)
	printReport(out, report)
	return report, nil
}

func printReport(out io.Writer, r *coach.FeedbackReport) {
	fmt.Fprintf(out, "=== Feedback %s ===\n", r.ID)
	fmt.Fprintf(out, "Date: %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "Interview: %s / %s / %s\n", r.Selection.Language, r.Selection.Role, r.Selection.Level)
	fmt.Fprintf(out, "Overall Score: %d/100\n", r.OverallScore)
	if r.Summary != "" {
		fmt.Fprintf(out, "\n%s\n", r.Summary)
	}

	printList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(out, "\n%s:\n", title)
		for _, it := range items {
			fmt.Fprintf(out, "  • %s\n", it)
		}
	}
	printList("Strengths", r.Strengths)
	printList("To Improve", r.Improvements)

	for i, q := range r.QuestionFeedback {
		fmt.Fprintf(out, "\nQ%d (%d/10): %s\n", i+1, q.Score, q.Question)
		if q.Answer != "" {
			fmt.Fprintf(out, "  Answer: %s\n", q.Answer)
		}
		fmt.Fprintf(out, "  %s\n", q.Assessment)
	}
}

func printReportList(out io.Writer, reports []*coach.FeedbackReport) {
	if len(reports) == 0 {
		fmt.Fprintln(out, "No saved reports")
		return
	}
	for _, r := range reports {
		fmt.Fprintf(out, "%s  %s  %3d/100  %s / %s / %s\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.OverallScore,
			r.Selection.Language, r.Selection.Role, r.Selection.Level)
	}
}

func printCatalog(out io.Writer, c *coach.Catalog) {
	fmt.Fprintln(out, "Languages:")
	for _, l := range c.Languages {
		fmt.Fprintf(out, "  %-10s %s (%s)\n", l.ID, l.Name, l.Locale)
	}
	fmt.Fprintln(out, "\nRoles:")
	for _, r := range c.Roles {
		fmt.Fprintf(out, "  %-10s %s\n", r.ID, r.Name)
	}
	fmt.Fprintln(out, "\nLevels:")
	for _, l := range c.Levels {
		fmt.Fprintf(out, "  %-10s %s\n", l.ID, l.Name)
	}
}
