// Package coach runs voice-driven mock job interviews against Gemini.
//
// # Overview
//
// A candidate picks a language, a role and a seniority level from the
// Catalog. An Interview then drives the conversation:
//   - the chat model asks one question at a time
//   - questions are synthesized to speech and played through a Player
//   - the candidate's spoken (or typed) answer is recognized and submitted
//   - after the question budget, the model closes the interview
//   - a structured FeedbackReport is generated and can be saved to a ReportStore
//
// # Quick Start
//
//	cfg, err := coach.LoadConfig("")
//	if err != nil {
//		log.Fatal(err)
//	}
//	logger := coach.NewCoachLogger(cfg.LogConfig(os.Stderr))
//	gemini, err := coach.NewGeminiClient(ctx, cfg, coach.NewRetrier(cfg.RetryConfig(), logger), logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	iv, err := coach.NewInterview(
//		coach.Selection{Language: "en", Role: "backend", Level: "mid"},
//		coach.DefaultCatalog(),
//		gemini.Services(coach.NopPlayer{}),
//		coach.InterviewConfigFrom(cfg),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer iv.Close()
//
//	iv.AddTranscriptHandler(func(e coach.TranscriptEntry) {
//		fmt.Printf("%s: %s\n", e.Speaker, e.Text)
//	})
//	if err := iv.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # States
//
// The conversation moves through
//
//	starting -> ai_speaking -> waiting_for_user -> recording -> processing_answer -> ai_speaking ... -> finished
//
// Any other move is rejected with INVALID_TRANSITION. A failed AI call moves
// the interview to error. Speech failures are reported to error handlers but
// do not stop the interview.
//
// # Errors
//
// Every error returned by the package is a *CoachError carrying one of the
// ErrCode constants. Rate limited Gemini calls are retried with exponential
// backoff before RATE_LIMITED is reported.
package coach
