// Package server is the browser front end: a small HTTP API plus a
// websocket that drives one Interview per connection.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rojolang/interview-coach-go/pkg/coach"
)

//go:embed static
var staticFiles embed.FS

const defaultPlaybackSlack = 3 * time.Second

// Options configures a Server. Services.Player is replaced per session.
type Options struct {
	Config        *coach.Config
	Catalog       *coach.Catalog
	Services      coach.Services
	Store         coach.ReportStore
	Issuer        *coach.TokenIssuer
	Metrics       *coach.Metrics
	Logger        *coach.CoachLogger
	PlaybackSlack time.Duration
}

type Server struct {
	config   *coach.Config
	catalog  *coach.Catalog
	services coach.Services
	store    coach.ReportStore
	issuer   *coach.TokenIssuer
	metrics  *coach.Metrics
	logger   *coach.CoachLogger
	slack    time.Duration
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

// New builds a server, filling unset options from defaults
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		opts.Config = coach.NewConfig()
	}
	if opts.Catalog == nil {
		opts.Catalog = coach.DefaultCatalog()
	}
	if opts.Logger == nil {
		opts.Logger = coach.GetGlobalLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = coach.NewMetrics("coach")
	}
	if opts.PlaybackSlack <= 0 {
		opts.PlaybackSlack = defaultPlaybackSlack
	}
	if opts.Issuer == nil {
		issuer, err := coach.NewTokenIssuer(opts.Config.SessionSecret, opts.Config.SessionTTL)
		if err != nil {
			return nil, err
		}
		opts.Issuer = issuer
	}
	if opts.Services.Chat == nil && opts.Services.ChatFactory == nil {
		return nil, coach.NewConfigError("server needs a chat model")
	}

	return &Server{
		config:   opts.Config,
		catalog:  opts.Catalog,
		services: opts.Services,
		store:    opts.Store,
		issuer:   opts.Issuer,
		metrics:  opts.Metrics,
		logger:   opts.Logger.WithComponent("server"),
		slack:    opts.PlaybackSlack,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*session),
	}, nil
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("GET /", http.FileServer(http.FS(static)))

	mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/reports", s.handleListReports)
	mux.HandleFunc("GET /api/reports/{id}", s.handleGetReport)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return mux
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("listening on %s", s.config.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.wg.Wait()
	return err
}

// ActiveSessions is the number of open websocket interviews
func (s *Server) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusFor(code string) int {
	switch code {
	case coach.ErrCodeConfigInvalid, coach.ErrCodeJSONParse:
		return http.StatusBadRequest
	case coach.ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case coach.ErrCodeNotFound:
		return http.StatusNotFound
	case coach.ErrCodeInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	data := newErrorData(err)
	status := statusFor(data.Code)
	if status >= 500 {
		s.logger.WithError(err).Error("request failed")
	}
	writeJSON(w, status, data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.ActiveSessions(),
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog)
}

type createSessionResponse struct {
	*coach.SessionToken
	Selection coach.Selection `json:"selection"`
	Budget    int             `json:"question_budget"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var sel coach.Selection
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&sel); err != nil {
		s.writeError(w, coach.Wrapf(err, coach.ErrCodeJSONParse, "invalid selection"))
		return
	}
	if err := s.catalog.Validate(sel); err != nil {
		s.writeError(w, err)
		return
	}

	issued := s.issuer.Issue(sel)
	if !issued.Success {
		s.writeError(w, issued.Error)
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionToken: issued.Data,
		Selection:    sel,
		Budget:       s.config.QuestionBudget,
	})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []*coach.FeedbackReport{})
		return
	}
	reports, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.store == nil {
		s.writeError(w, coach.NewCoachError("report "+id+" not found", coach.ErrCodeNotFound))
		return
	}
	report, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	verified := s.issuer.Verify(r.URL.Query().Get("token"))
	if !verified.Success {
		s.writeError(w, verified.Error)
		return
	}
	claims := verified.Data

	s.mu.RLock()
	_, busy := s.sessions[claims.ID]
	s.mu.RUnlock()
	if busy {
		writeJSON(w, http.StatusConflict, ErrorData{Code: coach.ErrCodeInvalidTransition, Message: "session already connected"})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	logger := s.logger.WithField("session", claims.ID)
	sess := &session{
		id:       claims.ID,
		conn:     conn,
		store:    s.store,
		metrics:  s.metrics,
		logger:   logger,
		commands: make(chan InboundMessage, commandQueueLen),
	}
	sess.player = newRemotePlayer(sess.send, s.slack, logger)

	services := s.services
	services.Player = sess.player

	ivConfig := coach.InterviewConfigFrom(s.config)
	ivConfig.ID = claims.ID
	ivConfig.Logger = s.logger
	ivConfig.Metrics = s.metrics

	iv, err := coach.NewInterview(claims.Selection(), s.catalog, services, ivConfig)
	if err != nil {
		sess.sendError(err)
		conn.Close()
		return
	}
	sess.iv = iv

	s.mu.Lock()
	if _, busy := s.sessions[claims.ID]; busy {
		s.mu.Unlock()
		sess.sendError(coach.NewCoachError("session already connected", coach.ErrCodeInvalidTransition))
		conn.Close()
		return
	}
	s.sessions[claims.ID] = sess
	s.wg.Add(1)
	s.mu.Unlock()

	logger.Infof("session connected: %s/%s/%s", claims.Language, claims.Role, claims.Level)

	defer func() {
		s.mu.Lock()
		delete(s.sessions, claims.ID)
		s.mu.Unlock()
		s.wg.Done()
	}()
	sess.run(r.Context())
}
