// Package coachtest provides scripted stand-ins for the AI collaborators.
package coachtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rojolang/interview-coach-go/pkg/coach"
)

// Chat replies with a numbered question until the closing prompt, then
// returns a goodbye carrying the end marker.
type Chat struct {
	mu      sync.Mutex
	Calls   []string
	Err     error
	Replies []string
}

func (c *Chat) Reply(ctx context.Context, history []coach.Message, userText string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.Calls = append(c.Calls, userText)
	if c.Err != nil {
		return "", c.Err
	}
	if len(c.Replies) > 0 {
		reply := c.Replies[0]
		c.Replies = c.Replies[1:]
		return reply, nil
	}
	n := len(c.Calls)
	return fmt.Sprintf("Thanks. Question %d: what did you learn from project %d?", n, n), nil
}

// CallCount is the number of Reply calls so far
func (c *Chat) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}

// ChatFactory hands out the same Chat for every profile
type ChatFactory struct {
	Chat *Chat
}

func (f ChatFactory) NewChat(*coach.Profile, int) coach.ChatModel {
	return f.Chat
}

// Synthesizer returns 100ms of silence per utterance
type Synthesizer struct {
	mu     sync.Mutex
	Texts  []string
	Voices []string
	Err    error
}

func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string) (*coach.Speech, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Texts = append(s.Texts, text)
	s.Voices = append(s.Voices, voice)
	if s.Err != nil {
		return nil, s.Err
	}
	return &coach.Speech{
		Text:       text,
		PCM:        make([]byte, coach.TTSSampleRate/10*2),
		SampleRate: coach.TTSSampleRate,
		Channels:   1,
		MIMEType:   coach.MIMETypePCM,
	}, nil
}

// Transcriber returns Text for any audio
type Transcriber struct {
	Text string
	Err  error
}

func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte, sampleRate int, locale string) (string, error) {
	return t.Text, t.Err
}

// Feedback builds a report with one entry per turn
type Feedback struct {
	mu    sync.Mutex
	Calls int
	Err   error
}

func (f *Feedback) Feedback(ctx context.Context, sel coach.Selection, turns []coach.Turn) (*coach.FeedbackReport, error) {
	f.mu.Lock()
	f.Calls++
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	report := &coach.FeedbackReport{
		OverallScore: 70,
		Summary:      "Good overall.",
		Strengths:    []string{"clarity"},
		Improvements: []string{"depth"},
		CreatedAt:    time.Now().UTC(),
	}
	for _, t := range turns {
		report.QuestionFeedback = append(report.QuestionFeedback, coach.QuestionFeedback{
			Question: t.Question, Answer: t.Answer, Assessment: "fine", Score: 7,
		})
	}
	return report, nil
}

// CallCount is the number of Feedback calls so far
func (f *Feedback) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls
}

// Player records what it was asked to play
type Player struct {
	mu     sync.Mutex
	Played []string
	Err    error
}

func (p *Player) Play(ctx context.Context, speech *coach.Speech) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Played = append(p.Played, speech.Text)
	return p.Err
}

// Services wires fresh fakes together
func Services() (coach.Services, *Chat, *Synthesizer, *Feedback, *Player) {
	chat := &Chat{}
	synth := &Synthesizer{}
	fb := &Feedback{}
	player := &Player{}
	return coach.Services{
		Chat:        chat,
		Synthesizer: synth,
		Transcriber: &Transcriber{Text: "I would use a worker pool."},
		Feedback:    fb,
		Player:      player,
	}, chat, synth, fb, player
}
