package coach

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// feedbackJSONSchema mirrors the response schema requested from the model
const feedbackJSONSchema = `{
  "type": "object",
  "required": ["overall_score", "summary", "strengths", "improvements", "question_feedback"],
  "properties": {
    "overall_score": {"type": "integer", "minimum": 0, "maximum": 100},
    "summary": {"type": "string", "minLength": 1},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "improvements": {"type": "array", "items": {"type": "string"}},
    "question_feedback": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["question", "assessment", "score"],
        "properties": {
          "question": {"type": "string"},
          "answer": {"type": "string"},
          "assessment": {"type": "string"},
          "score": {"type": "integer", "minimum": 0, "maximum": 10}
        }
      }
    }
  }
}`

var (
	feedbackSchemaOnce sync.Once
	feedbackSchema     *gojsonschema.Schema
	feedbackSchemaErr  error
)

func compiledFeedbackSchema() (*gojsonschema.Schema, error) {
	feedbackSchemaOnce.Do(func() {
		feedbackSchema, feedbackSchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(feedbackJSONSchema))
	})
	return feedbackSchema, feedbackSchemaErr
}

// ValidateFeedbackJSON checks raw model output against the report schema
func ValidateFeedbackJSON(raw []byte) error {
	schema, err := compiledFeedbackSchema()
	if err != nil {
		return Wrapf(err, ErrCodeFeedbackInvalid, "feedback schema does not compile")
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return Wrapf(err, ErrCodeFeedbackInvalid, "feedback is not valid JSON")
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return NewFeedbackError("feedback does not match schema").AddDetail("problems", problems)
}

// ParseFeedback validates and decodes model output into a report for sel.
// Questions and answers missing from the output are filled from turns.
func ParseFeedback(raw []byte, sel Selection, turns []Turn) (*FeedbackReport, error) {
	raw = []byte(stripCodeFence(string(raw)))
	if err := ValidateFeedbackJSON(raw); err != nil {
		return nil, err
	}

	report := &FeedbackReport{}
	if err := json.Unmarshal(raw, report); err != nil {
		return nil, Wrapf(err, ErrCodeFeedbackInvalid, "failed to decode feedback")
	}

	report.ID = uuid.NewString()
	report.CreatedAt = time.Now().UTC()
	report.Selection = sel
	if report.Strengths == nil {
		report.Strengths = []string{}
	}
	if report.Improvements == nil {
		report.Improvements = []string{}
	}
	for i := range report.QuestionFeedback {
		if i >= len(turns) {
			break
		}
		qf := &report.QuestionFeedback[i]
		if qf.Question == "" {
			qf.Question = turns[i].Question
		}
		if qf.Answer == "" {
			qf.Answer = turns[i].Answer
		}
	}
	return report, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
