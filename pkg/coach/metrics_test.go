package coach

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAICall("chat", time.Second, nil)
		m.ObserveRetry("chat", 1, time.Second, nil)
		m.ObserveTransition(StateStarting, StateAISpeaking)
		m.SessionStarted()
		m.SessionEnded(StateFinished)
		m.ReportSaved()
	})
}

func TestMetrics_Counts(t *testing.T) {
	m := NewMetrics("test")

	m.ObserveAICall("chat", 10*time.Millisecond, nil)
	m.ObserveAICall("chat", 10*time.Millisecond, NewRateLimitError("slow", 4))
	m.ObserveAICall("tts", 10*time.Millisecond, errors.New("boom"))
	m.ObserveRetry("chat", 1, time.Second, nil)
	m.ObserveTransition(StateStarting, StateAISpeaking)
	m.SessionStarted()
	m.SessionStarted()
	m.SessionEnded(StateFinished)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AICallsTotal.WithLabelValues("chat", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AICallsTotal.WithLabelValues("chat", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AICallsTotal.WithLabelValues("tts", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AIRetriesTotal.WithLabelValues("chat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("starting", "ai_speaking")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "test_ai_calls_total")
}
