package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rojolang/interview-coach-go/pkg/coach"
)

const (
	writeWait       = 10 * time.Second
	maxMessageSize  = 1 << 20
	commandQueueLen = 32
)

// remotePlayer ships speech to the browser and blocks until the browser
// reports playback_done, or the audio duration plus slack has passed.
type remotePlayer struct {
	send  func(msgType string, data any) error
	done  chan struct{}
	slack time.Duration
	log   *coach.CoachLogger
}

func newRemotePlayer(send func(string, any) error, slack time.Duration, log *coach.CoachLogger) *remotePlayer {
	return &remotePlayer{send: send, done: make(chan struct{}, 1), slack: slack, log: log}
}

func (p *remotePlayer) Play(ctx context.Context, speech *coach.Speech) error {
	select {
	case <-p.done:
	default:
	}

	if err := p.send(MsgSpeech, newSpeechData(speech)); err != nil {
		return coach.Wrapf(err, coach.ErrCodePlayback, "failed to send speech")
	}

	timer := time.NewTimer(speech.Duration() + p.slack)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
		p.log.Debug("playback_done not received, continuing")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PlaybackDone releases a pending Play
func (p *remotePlayer) PlaybackDone() {
	select {
	case p.done <- struct{}{}:
	default:
	}
}

// session binds one websocket connection to one Interview
type session struct {
	id       string
	conn     *websocket.Conn
	iv       *coach.Interview
	player   *remotePlayer
	store    coach.ReportStore
	metrics  *coach.Metrics
	logger   *coach.CoachLogger
	commands chan InboundMessage

	writeMu sync.Mutex
	emitted atomic.Bool
}

func (s *session) send(msgType string, data any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(OutboundMessage{Type: msgType, Data: data})
}

func (s *session) sendError(err error) {
	if sendErr := s.send(MsgError, newErrorData(err)); sendErr != nil {
		s.logger.WithError(sendErr).Debug("failed to send error")
	}
}

func (s *session) attach() {
	s.iv.AddStateHandler(func(from, to coach.State) {
		s.send(MsgState, StateData{From: from, To: to})
	})
	s.iv.AddTranscriptHandler(func(e coach.TranscriptEntry) {
		s.send(MsgTranscript, e)
	})
	s.iv.AddErrorHandler(func(err *coach.CoachError) {
		s.emitted.Store(true)
		s.sendError(err)
	})
}

// run serves the connection until the browser goes away or ctx is done
func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.attach()
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.worker(ctx)
	}()

	s.readLoop(ctx)
	cancel()
	wg.Wait()

	s.iv.Close()
	s.conn.Close()
	s.logger.Infof("session closed in state %s", s.iv.State())
}

// readLoop answers playback_done directly so a blocked Play can finish while
// the worker is busy; everything else is queued for the worker.
func (s *session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	for {
		var msg InboundMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.WithError(err).Warn("websocket read failed")
			}
			return
		}
		if msg.Type == MsgPlaybackDone {
			s.player.PlaybackDone()
			continue
		}
		select {
		case s.commands <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (s *session) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.commands:
			s.emitted.Store(false)
			if err := s.handle(ctx, msg); err != nil && !s.emitted.Load() {
				s.sendError(err)
			}
		}
	}
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, coach.Wrapf(err, coach.ErrCodeJSONParse, "invalid message data")
	}
	return v, nil
}

func (s *session) handle(ctx context.Context, msg InboundMessage) error {
	s.logger.Debugf("received %s", msg.Type)

	switch msg.Type {
	case MsgStart:
		return s.iv.Start(ctx)

	case MsgRecordingStarted:
		return s.iv.BeginRecording()

	case MsgTranscript:
		data, err := decode[TranscriptData](msg.Data)
		if err != nil {
			return err
		}
		return s.iv.AddRecognized(data.Text, data.IsFinal)

	case MsgRecordingStopped:
		return s.iv.StopRecording(ctx)

	case MsgAnswer:
		data, err := decode[AnswerData](msg.Data)
		if err != nil {
			return err
		}
		return s.iv.SubmitAnswer(ctx, data.Text)

	case MsgEnd:
		return s.iv.End(ctx)

	case MsgFeedback:
		report, err := s.iv.RequestFeedback(ctx)
		if err != nil {
			return err
		}
		return s.send(MsgFeedback, report)

	case MsgSaveReport:
		return s.saveReport(ctx)

	default:
		return coach.NewCoachError(fmt.Sprintf("unknown message type %q", msg.Type), coach.ErrCodeUnknown)
	}
}

func (s *session) saveReport(ctx context.Context) error {
	report := s.iv.Report()
	if report == nil {
		return coach.NewFeedbackError("request feedback before saving")
	}
	if s.store == nil {
		return coach.NewStorageError("no report store configured")
	}
	if err := s.store.Save(ctx, report); err != nil {
		return err
	}
	s.metrics.ReportSaved()
	s.logger.Infof("report %s saved", report.ID)
	return s.send(MsgReportSaved, ReportSavedData{ID: report.ID})
}
