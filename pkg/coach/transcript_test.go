package coach

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptBuffer(t *testing.T) {
	b := NewTranscriptBuffer(0)

	b.Add("I have", false)
	b.Add("I have worked", false)
	assert.Equal(t, "I have worked", b.Text(), "interim replaces interim")

	b.Add("I have worked with Go", true)
	assert.Equal(t, "", b.Interim())
	b.Add("for five", false)
	assert.Equal(t, "I have worked with Go for five", b.Text())

	b.Add("for five years.", true)
	b.Add("  ", true)
	assert.Equal(t, "I have worked with Go for five years.", b.Text())

	b.Reset()
	assert.Equal(t, "", b.Text())
}

func TestTranscriptBuffer_Cap(t *testing.T) {
	b := NewTranscriptBuffer(5)
	b.Add("héllo wörld", true)
	assert.Equal(t, "héllo", b.Text())
}

func TestTranscript_Turns(t *testing.T) {
	tr := NewTranscript()

	_, ok := tr.AnswerCurrent("too early")
	assert.False(t, ok)

	tr.AddEntry(SpeakerInterviewer, "Tell me about yourself.")
	first := tr.OpenTurn("Tell me about yourself.")
	assert.Equal(t, 1, first.Number)

	tr.AddEntry(SpeakerCandidate, "I build services.")
	answered, ok := tr.AnswerCurrent("I build services.")
	require.True(t, ok)
	assert.True(t, answered.Answered())

	tr.AttachFeedback("Good start.")
	tr.AttachFeedback("ignored, already set")
	tr.OpenTurn("What is a goroutine?")

	turns := tr.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "Good start.", turns[0].Feedback)
	assert.False(t, turns[1].Answered())
	assert.Equal(t, 1, tr.AnsweredCount())

	history := tr.History()
	require.Len(t, history, 2)
	assert.Equal(t, SpeakerCandidate, history[1].Role)
}

func TestTranscript_Export(t *testing.T) {
	tr := NewTranscript()
	tr.AddEntry(SpeakerInterviewer, "Hi")
	tr.OpenTurn("Hi")

	path := filepath.Join(t.TempDir(), "transcript.json")
	require.NoError(t, tr.Export(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "entries")
	assert.True(t, strings.Contains(string(decoded["turns"]), `"question": "Hi"`))
}
