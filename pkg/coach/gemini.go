package coach

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiClient implements the AI collaborators on top of the Gemini API.
// Every call is paced by a client-side limiter and retried on rate limits.
type GeminiClient struct {
	client  *genai.Client
	models  *genai.Models
	config  *Config
	retrier *Retrier
	limiter *rate.Limiter
	metrics *Metrics
	logger  *CoachLogger
}

// NewGeminiClient creates the client from config
func NewGeminiClient(ctx context.Context, config *Config, retrier *Retrier, logger *CoachLogger) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, NewConfigError("Gemini API key is required")
	}
	if logger == nil {
		logger = GetGlobalLogger()
	}
	if retrier == nil {
		retrier = NewRetrier(config.RetryConfig(), logger)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, Wrapf(err, ErrCodeAuthFailed, "failed to create Gemini client")
	}

	return &GeminiClient{
		client:  client,
		models:  client.Models,
		config:  config,
		retrier: retrier,
		limiter: newRequestLimiter(config.RequestsPerMinute),
		logger:  logger.WithComponent("gemini"),
	}, nil
}

func newRequestLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 2)
}

// SetMetrics attaches metrics collection to every call
func (g *GeminiClient) SetMetrics(m *Metrics) {
	g.metrics = m
	if m != nil {
		g.retrier.OnRetry(m.ObserveRetry)
	}
}

func (g *GeminiClient) generate(ctx context.Context, op, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	start := time.Now()
	resp, err := Retry(ctx, g.retrier, op, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return g.models.GenerateContent(ctx, model, contents, cfg)
	})
	g.logger.LogAIEvent(op, time.Since(start), err)
	g.metrics.ObserveAICall(op, time.Since(start), err)
	return resp, err
}

func wrapAIError(err error, code, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var cErr *CoachError
	if errors.As(err, &cErr) {
		return cErr
	}
	return Wrapf(err, code, "%s request failed", op)
}

// NewChat binds a chat model to an interview profile
func (g *GeminiClient) NewChat(profile *Profile, questionBudget int) ChatModel {
	return &geminiChat{
		gemini: g,
		system: SystemInstruction(profile, questionBudget),
	}
}

type geminiChat struct {
	gemini *GeminiClient
	system string
}

func toContents(history []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Role == SpeakerInterviewer {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

func (c *geminiChat) Reply(ctx context.Context, history []Message, userText string) (string, error) {
	contents := toContents(history)
	contents = append(contents, genai.NewContentFromText(userText, genai.RoleUser))

	resp, err := c.gemini.generate(ctx, "chat", c.gemini.config.ChatModel, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(c.system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.7),
	})
	if err != nil {
		return "", wrapAIError(err, ErrCodeAIRequestFailed, "chat")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", NewAIError("chat model returned no text")
	}
	return text, nil
}

// Synthesize renders text as PCM16 speech with a prebuilt voice
func (g *GeminiClient) Synthesize(ctx context.Context, text, voice string) (*Speech, error) {
	if voice == "" {
		voice = g.config.Voice
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	resp, err := g.generate(ctx, "tts", g.config.TTSModel, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	})
	if err != nil {
		return nil, wrapAIError(err, ErrCodeTTSFailed, "tts")
	}

	blob := firstInlineData(resp)
	if blob == nil || len(blob.Data) == 0 {
		return nil, NewTTSError("speech response carried no audio")
	}
	if len(blob.Data)%2 != 0 {
		return nil, NewAudioError("speech payload is not PCM16")
	}

	return &Speech{
		Text:       text,
		PCM:        blob.Data,
		SampleRate: sampleRateFromMIME(blob.MIMEType, TTSSampleRate),
		Channels:   1,
		MIMEType:   MIMETypePCM,
	}, nil
}

func firstInlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil {
				return part.InlineData
			}
		}
	}
	return nil
}

// sampleRateFromMIME reads "rate=" from types like audio/L16;codec=pcm;rate=24000
func sampleRateFromMIME(mime string, fallback int) int {
	for _, param := range strings.Split(mime, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if ok && strings.EqualFold(k, "rate") {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				return n
			}
		}
	}
	return fallback
}

// Transcribe sends a recorded answer as inline WAV and returns the transcript
func (g *GeminiClient) Transcribe(ctx context.Context, pcm []byte, sampleRate int, locale string) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}
	instruction := "Transcribe this spoken interview answer verbatim"
	if locale != "" {
		instruction += " (language " + locale + ")"
	}
	instruction += ". Return only the transcript text. If nothing intelligible was said, return an empty response."

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(instruction),
		genai.NewPartFromBytes(EncodeWAV(pcm, sampleRate, 1), MIMETypeWAV),
	}, genai.RoleUser)}

	resp, err := g.generate(ctx, "transcribe", g.config.ChatModel, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return "", wrapAIError(err, ErrCodeTranscriptionFailed, "transcribe")
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Feedback requests the schema-constrained report
func (g *GeminiClient) Feedback(ctx context.Context, sel Selection, turns []Turn) (*FeedbackReport, error) {
	contents := []*genai.Content{genai.NewContentFromText(FeedbackPrompt(sel, turns), genai.RoleUser)}

	resp, err := g.generate(ctx, "feedback", g.config.FeedbackModel, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   FeedbackResponseSchema(),
		Temperature:      genai.Ptr[float32](0.2),
	})
	if err != nil {
		return nil, wrapAIError(err, ErrCodeAIRequestFailed, "feedback")
	}
	return ParseFeedback([]byte(resp.Text()), sel, turns)
}

// FeedbackResponseSchema is the Gemini form of the report schema
func FeedbackResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"overall_score", "summary", "strengths", "improvements", "question_feedback"},
		Properties: map[string]*genai.Schema{
			"overall_score": {Type: genai.TypeInteger, Minimum: genai.Ptr[float64](0), Maximum: genai.Ptr[float64](100)},
			"summary":       {Type: genai.TypeString},
			"strengths":     {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"improvements":  {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"question_feedback": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type:     genai.TypeObject,
					Required: []string{"question", "assessment", "score"},
					Properties: map[string]*genai.Schema{
						"question":   {Type: genai.TypeString},
						"answer":     {Type: genai.TypeString},
						"assessment": {Type: genai.TypeString},
						"score":      {Type: genai.TypeInteger, Minimum: genai.Ptr[float64](0), Maximum: genai.Ptr[float64](10)},
					},
				},
			},
		},
	}
}

// Services bundles the client as every AI collaborator of an interview
func (g *GeminiClient) Services(player Player) Services {
	if player == nil {
		player = NopPlayer{}
	}
	return Services{
		ChatFactory: g,
		Synthesizer: g,
		Transcriber: g,
		Feedback:    g,
		Player:      player,
	}
}
