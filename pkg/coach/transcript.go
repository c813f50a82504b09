package coach

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// DefaultMaxAnswerLength caps an assembled answer, in runes
const DefaultMaxAnswerLength = 4000

// TranscriptBuffer assembles recognized speech fragments while recording.
// Final fragments accumulate; an interim fragment replaces the previous one.
type TranscriptBuffer struct {
	mu      sync.Mutex
	finals  []string
	interim string
	maxLen  int
}

func NewTranscriptBuffer(maxLen int) *TranscriptBuffer {
	if maxLen <= 0 {
		maxLen = DefaultMaxAnswerLength
	}
	return &TranscriptBuffer{maxLen: maxLen}
}

// Add records a recognized fragment
func (b *TranscriptBuffer) Add(text string, final bool) {
	text = strings.TrimSpace(text)

	b.mu.Lock()
	defer b.mu.Unlock()
	if final {
		if text != "" {
			b.finals = append(b.finals, text)
		}
		b.interim = ""
		return
	}
	b.interim = text
}

// Text returns finals plus the current interim fragment
func (b *TranscriptBuffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	parts := make([]string, 0, len(b.finals)+1)
	parts = append(parts, b.finals...)
	if b.interim != "" {
		parts = append(parts, b.interim)
	}
	return truncateRunes(strings.Join(parts, " "), b.maxLen)
}

// Interim is the pending, not yet final fragment
func (b *TranscriptBuffer) Interim() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interim
}

func (b *TranscriptBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finals = nil
	b.interim = ""
}

func truncateRunes(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}

// Transcript is the ordered dialogue of one interview plus its turns
type Transcript struct {
	mu      sync.RWMutex
	entries []TranscriptEntry
	turns   []Turn
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

// AddEntry appends a dialogue line and returns it
func (t *Transcript) AddEntry(speaker Speaker, text string) TranscriptEntry {
	entry := TranscriptEntry{Speaker: speaker, Text: text, Timestamp: time.Now()}
	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()
	return entry
}

// OpenTurn starts a new turn with the given question
func (t *Transcript) OpenTurn(question string) Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	turn := Turn{Number: len(t.turns) + 1, Question: question, AskedAt: time.Now()}
	t.turns = append(t.turns, turn)
	return turn
}

// AnswerCurrent stores the answer on the latest turn
func (t *Transcript) AnswerCurrent(answer string) (Turn, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	last := &t.turns[len(t.turns)-1]
	last.Answer = answer
	last.AnsweredAt = time.Now()
	return *last, true
}

// AttachFeedback sets the interviewer's reaction on the latest answered turn
func (t *Transcript) AttachFeedback(feedback string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.turns) - 1; i >= 0; i-- {
		if t.turns[i].Answered() {
			if t.turns[i].Feedback == "" {
				t.turns[i].Feedback = feedback
			}
			return
		}
	}
}

func (t *Transcript) Entries() []TranscriptEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]TranscriptEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Transcript) Turns() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// AnsweredCount is the number of turns with an answer
func (t *Transcript) AnsweredCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, turn := range t.turns {
		if turn.Answered() {
			n++
		}
	}
	return n
}

// History converts the dialogue into chat messages
func (t *Transcript) History() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, Message{Role: e.Speaker, Content: e.Text})
	}
	return out
}

// Export writes the transcript and turns as indented JSON
func (t *Transcript) Export(path string) error {
	t.mu.RLock()
	data, err := json.MarshalIndent(struct {
		Entries []TranscriptEntry `json:"entries"`
		Turns   []Turn            `json:"turns"`
	}{t.entries, t.turns}, "", "  ")
	t.mu.RUnlock()
	if err != nil {
		return Wrapf(err, ErrCodeJSONParse, "failed to encode transcript")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Wrapf(err, ErrCodeStorage, "failed to write transcript")
	}
	return nil
}
