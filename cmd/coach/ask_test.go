package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rojolang/interview-coach-go/pkg/coach"
	"github.com/rojolang/interview-coach-go/pkg/coach/coachtest"
)

var askSelection = coach.Selection{Language: "en", Role: "backend", Level: "mid"}

func newAskInterview(t *testing.T, budget int) (*coach.Interview, *coachtest.Chat) {
	t.Helper()
	services, chat, _, _, _ := coachtest.Services()
	iv, err := coach.NewInterview(askSelection, nil, services, coach.InterviewConfig{
		QuestionBudget: budget,
		Logger:         coach.NewNopLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(iv.Close)
	return iv, chat
}

func TestRunAsk(t *testing.T) {
	tests := []struct {
		name        string
		budget      int
		input       string
		wantAnswers int
		wantReport  bool
		wantOut     []string
	}{
		{
			name:        "budget reached",
			budget:      2,
			input:       "Use channels.\nProfile first.\n",
			wantAnswers: 2,
			wantReport:  true,
			wantOut:     []string{"Interviewer:", "Overall Score: 70/100", "Strengths:", "Q2 (7/10)"},
		},
		{
			name:        "empty line is skipped",
			budget:      1,
			input:       "\nUse channels.\n",
			wantAnswers: 1,
			wantReport:  true,
			wantOut:     []string{"! no answer was recognized", "Answer: Use channels."},
		},
		{
			name:        "end command",
			budget:      5,
			input:       "Use channels.\n/end\nignored\n",
			wantAnswers: 1,
			wantReport:  true,
			wantOut:     []string{"Q1 (7/10)"},
		},
		{
			name:        "eof without answers",
			budget:      3,
			input:       "",
			wantAnswers: 0,
			wantOut:     []string{"No answers were given"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv, _ := newAskInterview(t, tt.budget)
			var out bytes.Buffer

			report, err := runAsk(context.Background(), iv, strings.NewReader(tt.input), &out)
			require.NoError(t, err)

			assert.Equal(t, coach.StateFinished, iv.State())
			assert.Equal(t, tt.wantAnswers, iv.AnsweredCount())
			if tt.wantReport {
				require.NotNil(t, report)
				assert.Len(t, report.QuestionFeedback, tt.wantAnswers)
			} else {
				assert.Nil(t, report)
			}
			for _, want := range tt.wantOut {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestRunAsk_AIFailure(t *testing.T) {
	iv, chat := newAskInterview(t, 3)
	chat.Err = errors.New("model unavailable")

	var out bytes.Buffer
	report, err := runAsk(context.Background(), iv, strings.NewReader("anything\n"), &out)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Equal(t, coach.StateError, iv.State())
}

func TestPrintHelpers(t *testing.T) {
	var out bytes.Buffer
	printReportList(&out, nil)
	assert.Equal(t, "No saved reports\n", out.String())

	out.Reset()
	printReportList(&out, []*coach.FeedbackReport{{
		ID: "r-1", CreatedAt: time.Now(), OverallScore: 82, Selection: askSelection,
	}})
	assert.Contains(t, out.String(), "r-1")
	assert.Contains(t, out.String(), " 82/100  en / backend / mid")

	out.Reset()
	printCatalog(&out, coach.DefaultCatalog())
	assert.Contains(t, out.String(), "Languages:")
	assert.Contains(t, out.String(), "backend")
	assert.Contains(t, out.String(), "senior")
}
