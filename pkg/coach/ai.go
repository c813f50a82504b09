package coach

import "context"

// ChatModel produces the interviewer's next utterance given the dialogue so far.
// The system instruction is part of the implementation, derived from the session profile.
type ChatModel interface {
	Reply(ctx context.Context, history []Message, userText string) (string, error)
}

// Synthesizer converts text to speech
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*Speech, error)
}

// Transcriber converts a recorded PCM16 answer to text
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, locale string) (string, error)
}

// FeedbackGenerator produces the final structured report
type FeedbackGenerator interface {
	Feedback(ctx context.Context, sel Selection, turns []Turn) (*FeedbackReport, error)
}

// Player plays speech and blocks until playback is over or ctx is done
type Player interface {
	Play(ctx context.Context, speech *Speech) error
}

// ChatModelFactory builds a chat model bound to one interview profile
type ChatModelFactory interface {
	NewChat(profile *Profile, questionBudget int) ChatModel
}

// Services bundles the external collaborators an interview needs
type Services struct {
	Chat        ChatModel
	ChatFactory ChatModelFactory
	Synthesizer Synthesizer
	Transcriber Transcriber
	Feedback    FeedbackGenerator
	Player      Player
}

// NopPlayer returns immediately; used for text-only sessions
type NopPlayer struct{}

func (NopPlayer) Play(ctx context.Context, speech *Speech) error {
	return ctx.Err()
}
