package coach

import (
	"sync"
	"time"
)

func addHandler[T any](iv *Interview, list *[]handlerEntry[T], fn T) func() {
	iv.handlersMu.Lock()
	iv.nextHandler++
	id := iv.nextHandler
	*list = append(*list, handlerEntry[T]{id: id, fn: fn})
	iv.handlersMu.Unlock()

	return func() {
		iv.handlersMu.Lock()
		defer iv.handlersMu.Unlock()
		for i, h := range *list {
			if h.id == id {
				*list = append((*list)[:i:i], (*list)[i+1:]...)
				return
			}
		}
	}
}

func snapshot[T any](iv *Interview, list *[]handlerEntry[T]) []T {
	iv.handlersMu.RLock()
	defer iv.handlersMu.RUnlock()
	out := make([]T, len(*list))
	for i, h := range *list {
		out[i] = h.fn
	}
	return out
}

// AddStateHandler observes state transitions; the returned func unsubscribes
func (iv *Interview) AddStateHandler(h StateHandler) func() {
	return addHandler(iv, &iv.stateHandlers, h)
}

// AddTranscriptHandler observes new dialogue lines
func (iv *Interview) AddTranscriptHandler(h TranscriptHandler) func() {
	return addHandler(iv, &iv.transcriptHandlers, h)
}

// AddSpeechHandler receives synthesized speech before it is played
func (iv *Interview) AddSpeechHandler(h SpeechHandler) func() {
	return addHandler(iv, &iv.speechHandlers, h)
}

func (iv *Interview) AddErrorHandler(h ErrorHandler) func() {
	return addHandler(iv, &iv.errorHandlers, h)
}

// AddLevelHandler receives microphone levels while recording
func (iv *Interview) AddLevelHandler(h LevelHandler) func() {
	return addHandler(iv, &iv.levelHandlers, h)
}

func (iv *Interview) emitState(from, to State) {
	for _, h := range snapshot(iv, &iv.stateHandlers) {
		h(from, to)
	}
}

func (iv *Interview) emitTranscript(e TranscriptEntry) {
	for _, h := range snapshot(iv, &iv.transcriptHandlers) {
		h(e)
	}
}

func (iv *Interview) emitSpeech(s *Speech) {
	for _, h := range snapshot(iv, &iv.speechHandlers) {
		h(s)
	}
}

func (iv *Interview) emitError(err *CoachError) {
	for _, h := range snapshot(iv, &iv.errorHandlers) {
		h(err)
	}
}

func (iv *Interview) emitLevel(rms float32, bars []float32) {
	for _, h := range snapshot(iv, &iv.levelHandlers) {
		h(rms, bars)
	}
}

// CreateLoggingStateHandler logs every transition through logger
func CreateLoggingStateHandler(logger *CoachLogger) StateHandler {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	return func(from, to State) {
		logger.Debugf("state %s -> %s", from, to)
	}
}

func CreateErrorLoggingHandler(logger *CoachLogger) ErrorHandler {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	return func(err *CoachError) {
		logger.LogError(err)
	}
}

// CreateStateFilter only forwards transitions into one of the given states
func CreateStateFilter(handler StateHandler, states ...State) StateHandler {
	return func(from, to State) {
		for _, s := range states {
			if s == to {
				handler(from, to)
				return
			}
		}
	}
}

func ChainStateHandlers(handlers ...StateHandler) StateHandler {
	return func(from, to State) {
		for _, h := range handlers {
			h(from, to)
		}
	}
}

func ChainErrorHandlers(handlers ...ErrorHandler) ErrorHandler {
	return func(err *CoachError) {
		for _, h := range handlers {
			h(err)
		}
	}
}

// CreateSilenceDetector calls callback once the level stays below threshold
// for silenceDuration after speech has been heard. It re-arms on the next speech.
func CreateSilenceDetector(threshold float32, silenceDuration time.Duration, callback func()) LevelHandler {
	var mu sync.Mutex
	var heardSpeech bool
	var silenceStart time.Time

	return func(rms float32, _ []float32) {
		mu.Lock()
		defer mu.Unlock()

		if rms >= threshold {
			heardSpeech = true
			silenceStart = time.Time{}
			return
		}
		if !heardSpeech {
			return
		}
		if silenceStart.IsZero() {
			silenceStart = time.Now()
			return
		}
		if time.Since(silenceStart) >= silenceDuration {
			heardSpeech = false
			silenceStart = time.Time{}
			go callback()
		}
	}
}
