package coach

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validFeedback = `{
  "overall_score": 72,
  "summary": "Solid fundamentals.",
  "strengths": ["clear communication"],
  "improvements": ["more concrete examples"],
  "question_feedback": [
    {"question": "", "assessment": "Good", "score": 7},
    {"question": "Explain channels", "answer": "pipes", "assessment": "Shallow", "score": 4}
  ]
}`

func TestParseFeedback(t *testing.T) {
	sel := Selection{Language: "en", Role: "backend", Level: "mid"}
	turns := []Turn{
		{Number: 1, Question: "Tell me about yourself", Answer: "I write Go"},
		{Number: 2, Question: "Explain channels", Answer: "pipes between goroutines"},
	}

	report, err := ParseFeedback([]byte(validFeedback), sel, turns)
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.False(t, report.CreatedAt.IsZero())
	assert.Equal(t, sel, report.Selection)
	assert.Equal(t, 72, report.OverallScore)
	require.Len(t, report.QuestionFeedback, 2)
	assert.Equal(t, "Tell me about yourself", report.QuestionFeedback[0].Question)
	assert.Equal(t, "I write Go", report.QuestionFeedback[0].Answer)
	assert.Equal(t, "pipes", report.QuestionFeedback[1].Answer, "model output wins when present")
}

func TestParseFeedback_CodeFence(t *testing.T) {
	report, err := ParseFeedback([]byte("```json\n"+validFeedback+"\n```"), Selection{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 72, report.OverallScore)
}

func TestParseFeedback_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "this is prose"},
		{"missing fields", `{"overall_score": 50}`},
		{"score out of range", `{"overall_score": 150, "summary": "x", "strengths": [], "improvements": [], "question_feedback": []}`},
		{"question score out of range", `{"overall_score": 50, "summary": "x", "strengths": [], "improvements": [],
			"question_feedback": [{"question": "q", "assessment": "a", "score": 11}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFeedback([]byte(tt.raw), Selection{}, nil)
			require.Error(t, err)
			assert.True(t, IsErrorCode(err, ErrCodeFeedbackInvalid))
		})
	}
}
