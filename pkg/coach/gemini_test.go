package coach

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestSampleRateFromMIME(t *testing.T) {
	assert.Equal(t, 24000, sampleRateFromMIME("audio/L16;codec=pcm;rate=24000", 16000))
	assert.Equal(t, 16000, sampleRateFromMIME("audio/L16; rate=16000", 24000))
	assert.Equal(t, 24000, sampleRateFromMIME("audio/pcm", 24000))
	assert.Equal(t, 24000, sampleRateFromMIME("audio/L16;rate=abc", 24000))
}

func TestToContents(t *testing.T) {
	contents := toContents([]Message{
		{Role: SpeakerCandidate, Content: "start"},
		{Role: SpeakerInterviewer, Content: "first question"},
	})
	require.Len(t, contents, 2)
	assert.Equal(t, genai.Role(genai.RoleUser), genai.Role(contents[0].Role))
	assert.Equal(t, genai.Role(genai.RoleModel), genai.Role(contents[1].Role))
	assert.Equal(t, "first question", contents[1].Parts[0].Text)
}

func TestFirstInlineData(t *testing.T) {
	assert.Nil(t, firstInlineData(nil))

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{
			{Text: "ignored"},
			{InlineData: &genai.Blob{Data: []byte{1, 0}, MIMEType: "audio/L16;rate=24000"}},
		}},
	}}}
	blob := firstInlineData(resp)
	require.NotNil(t, blob)
	assert.Equal(t, []byte{1, 0}, blob.Data)
}

func TestWrapAIError(t *testing.T) {
	assert.NoError(t, wrapAIError(nil, ErrCodeTTSFailed, "tts"))
	assert.ErrorIs(t, wrapAIError(context.Canceled, ErrCodeTTSFailed, "tts"), context.Canceled)

	limited := NewRateLimitError("limited", 4)
	assert.Same(t, limited, wrapAIError(fmt.Errorf("x: %w", limited), ErrCodeTTSFailed, "tts"))

	raw := errors.New("boom")
	err := wrapAIError(raw, ErrCodeTTSFailed, "tts")
	assert.True(t, IsErrorCode(err, ErrCodeTTSFailed))
	assert.ErrorIs(t, err, raw)
}

func TestFeedbackResponseSchema_MatchesJSONSchema(t *testing.T) {
	s := FeedbackResponseSchema()
	assert.ElementsMatch(t, []string{"overall_score", "summary", "strengths", "improvements", "question_feedback"}, s.Required)
	qf := s.Properties["question_feedback"]
	require.NotNil(t, qf)
	require.NotNil(t, qf.Items)
	assert.Contains(t, qf.Items.Properties, "score")
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), NewConfig(), nil, NewNopLogger())
	assert.True(t, IsErrorCode(err, ErrCodeConfigInvalid))
}

func TestNewRequestLimiter(t *testing.T) {
	unlimited := newRequestLimiter(0)
	for i := 0; i < 100; i++ {
		assert.True(t, unlimited.Allow())
	}

	paced := newRequestLimiter(1)
	assert.True(t, paced.Allow())
	assert.True(t, paced.Allow())
	assert.False(t, paced.Allow(), "burst of two per minute")
}
