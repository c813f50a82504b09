package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rojolang/interview-coach-go/pkg/coach"
	"github.com/rojolang/interview-coach-go/pkg/coach/coachtest"
)

type fixture struct {
	server *Server
	http   *httptest.Server
	store  coach.ReportStore
	chat   *coachtest.Chat
}

func newFixture(t *testing.T, budget int) *fixture {
	t.Helper()

	cfg := coach.NewConfig()
	cfg.QuestionBudget = budget
	cfg.SessionSecret = "server-test-secret-0123456789"

	store, err := coach.NewFileStore(filepath.Join(t.TempDir(), "reports.json"))
	require.NoError(t, err)

	services, chat, _, _, _ := coachtest.Services()
	srv, err := New(Options{
		Config:        cfg,
		Services:      services,
		Store:         store,
		Logger:        coach.NewNopLogger(),
		PlaybackSlack: 2 * time.Second,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{server: srv, http: ts, store: store, chat: chat}
}

func (f *fixture) createSession(t *testing.T, sel coach.Selection) (*http.Response, map[string]any) {
	t.Helper()
	body, _ := json.Marshal(sel)
	resp, err := http.Post(f.http.URL+"/api/sessions", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func (f *fixture) dial(t *testing.T, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

// readUntil reads frames, acknowledging speech, until match returns true
func readUntil(t *testing.T, conn *websocket.Conn, match func(OutboundFrame) bool) []OutboundFrame {
	t.Helper()
	var seen []OutboundFrame
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var frame OutboundFrame
		require.NoError(t, conn.ReadJSON(&frame), "seen so far: %v", seen)
		seen = append(seen, frame)
		if frame.Type == MsgSpeech {
			require.NoError(t, conn.WriteJSON(OutboundMessage{Type: MsgPlaybackDone}))
		}
		if match(frame) {
			return seen
		}
	}
}

// OutboundFrame is an OutboundMessage as the browser decodes it
type OutboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func stateIs(to coach.State) func(OutboundFrame) bool {
	return func(f OutboundFrame) bool {
		if f.Type != MsgState {
			return false
		}
		var s StateData
		json.Unmarshal(f.Data, &s)
		return s.To == to
	}
}

func typeIs(msgType string) func(OutboundFrame) bool {
	return func(f OutboundFrame) bool { return f.Type == msgType }
}

func TestHTTPEndpoints(t *testing.T) {
	f := newFixture(t, 2)

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(f.http.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("catalog", func(t *testing.T) {
		resp, err := http.Get(f.http.URL + "/api/catalog")
		require.NoError(t, err)
		defer resp.Body.Close()
		var c coach.Catalog
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&c))
		assert.NotEmpty(t, c.Languages)
		assert.NotEmpty(t, c.Roles)
		assert.NotEmpty(t, c.Levels)
	})

	t.Run("index", func(t *testing.T) {
		resp, err := http.Get(f.http.URL + "/")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "Interview Coach")
	})

	t.Run("create session", func(t *testing.T) {
		resp, out := f.createSession(t, coach.Selection{Language: "en", Role: "backend", Level: "mid"})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.NotEmpty(t, out["token"])
		assert.NotEmpty(t, out["session_id"])
		assert.EqualValues(t, 2, out["question_budget"])
	})

	t.Run("unknown selection", func(t *testing.T) {
		resp, out := f.createSession(t, coach.Selection{Language: "xx", Role: "backend", Level: "mid"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, coach.ErrCodeConfigInvalid, out["code"])
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, err := http.Post(f.http.URL+"/api/sessions", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("reports", func(t *testing.T) {
		resp, err := http.Get(f.http.URL + "/api/reports")
		require.NoError(t, err)
		defer resp.Body.Close()
		var list []coach.FeedbackReport
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
		assert.Empty(t, list)

		missing, err := http.Get(f.http.URL + "/api/reports/nope")
		require.NoError(t, err)
		missing.Body.Close()
		assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(f.http.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestWebSocket_RejectsBadToken(t *testing.T) {
	f := newFixture(t, 2)

	_, resp, err := f.dial(t, "bogus")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_FullInterview(t *testing.T) {
	f := newFixture(t, 1)

	_, out := f.createSession(t, coach.Selection{Language: "en", Role: "backend", Level: "mid"})
	token := out["token"].(string)

	conn, _, err := f.dial(t, token)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.server.ActiveSessions() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, resp, err := f.dial(t, token)
	require.Error(t, err, "a session accepts one connection at a time")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	require.NoError(t, conn.WriteJSON(OutboundMessage{Type: MsgAnswer, Data: AnswerData{Text: "too early"}}))
	frames := readUntil(t, conn, typeIs(MsgError))
	var errData ErrorData
	require.NoError(t, json.Unmarshal(frames[len(frames)-1].Data, &errData))
	assert.Equal(t, coach.ErrCodeInvalidTransition, errData.Code)

	require.NoError(t, conn.WriteJSON(OutboundMessage{Type: MsgStart}))
	frames = readUntil(t, conn, stateIs(coach.StateWaitingForUser))

	var sawSpeech, sawQuestion bool
	for _, fr := range frames {
		switch fr.Type {
		case MsgSpeech:
			var sp SpeechData
			require.NoError(t, json.Unmarshal(fr.Data, &sp))
			assert.NotEmpty(t, sp.Audio)
			assert.Equal(t, coach.TTSSampleRate, sp.SampleRate)
			sawSpeech = true
		case MsgTranscript:
			var e coach.TranscriptEntry
			require.NoError(t, json.Unmarshal(fr.Data, &e))
			assert.Equal(t, coach.SpeakerInterviewer, e.Speaker)
			sawQuestion = true
		}
	}
	assert.True(t, sawSpeech)
	assert.True(t, sawQuestion)

	require.NoError(t, conn.WriteJSON(OutboundMessage{Type: MsgRecordingStarted}))
	readUntil(t, conn, stateIs(coach.StateRecording))
	require.NoError(t, conn.WriteJSON(OutboundMessage{Type: MsgTranscript, Data: TranscriptData{Text: "I would shard", IsFinal: true}}))
	require.NoError(t, conn.WriteJSON(OutboundMessage{Type: MsgTranscript, Data: TranscriptData{Text: "by tenant", IsFinal: false}}))
	require.NoError(t, conn.WriteJSON(OutboundMessage{Type: MsgRecordingStopped}))
	readUntil(t, conn, stateIs(coach.StateFinished))

	require.NoError(t, conn.WriteJSON(OutboundMessage{Type: MsgFeedback}))
	frames = readUntil(t, conn, typeIs(MsgFeedback))
	var report coach.FeedbackReport
	require.NoError(t, json.Unmarshal(frames[len(frames)-1].Data, &report))
	require.Len(t, report.QuestionFeedback, 1)
	assert.Equal(t, "I would shard by tenant", report.QuestionFeedback[0].Answer)

	require.NoError(t, conn.WriteJSON(OutboundMessage{Type: MsgSaveReport}))
	frames = readUntil(t, conn, typeIs(MsgReportSaved))
	var saved ReportSavedData
	require.NoError(t, json.Unmarshal(frames[len(frames)-1].Data, &saved))
	assert.Equal(t, report.ID, saved.ID)

	stored, err := f.store.Get(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, "backend", stored.Selection.Role)

	resp2, err := http.Get(f.http.URL + "/api/reports/" + report.ID)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	conn.Close()
	assert.Eventually(t, func() bool { return f.server.ActiveSessions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_UnknownMessage(t *testing.T) {
	f := newFixture(t, 1)
	_, out := f.createSession(t, coach.Selection{Language: "es", Role: "frontend", Level: "junior"})

	conn, _, err := f.dial(t, out["token"].(string))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(OutboundMessage{Type: "dance"}))
	frames := readUntil(t, conn, typeIs(MsgError))
	var errData ErrorData
	require.NoError(t, json.Unmarshal(frames[0].Data, &errData))
	assert.Equal(t, coach.ErrCodeUnknown, errData.Code)
}

func TestRemotePlayer(t *testing.T) {
	speech := &coach.Speech{Text: "hi", PCM: make([]byte, 3200), SampleRate: 16000, Channels: 1}

	t.Run("released by playback_done", func(t *testing.T) {
		var sent []string
		p := newRemotePlayer(func(msgType string, data any) error {
			sent = append(sent, msgType)
			return nil
		}, time.Minute, coach.NewNopLogger())

		done := make(chan error, 1)
		go func() { done <- p.Play(context.Background(), speech) }()

		time.Sleep(20 * time.Millisecond)
		p.PlaybackDone()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Play did not return after playback_done")
		}
		assert.Equal(t, []string{MsgSpeech}, sent)
	})

	t.Run("times out after duration plus slack", func(t *testing.T) {
		p := newRemotePlayer(func(string, any) error { return nil }, 50*time.Millisecond, coach.NewNopLogger())
		start := time.Now()
		require.NoError(t, p.Play(context.Background(), speech))
		assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	})

	t.Run("stale done is ignored", func(t *testing.T) {
		p := newRemotePlayer(func(string, any) error { return nil }, 50*time.Millisecond, coach.NewNopLogger())
		p.PlaybackDone()
		start := time.Now()
		require.NoError(t, p.Play(context.Background(), speech))
		assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	})

	t.Run("cancelled", func(t *testing.T) {
		p := newRemotePlayer(func(string, any) error { return nil }, time.Minute, coach.NewNopLogger())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, p.Play(ctx, speech), context.Canceled)
	})
}
