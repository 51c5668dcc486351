// Package httpapi exposes the conversation over a small JSON API for kiosk
// and browser front-ends.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"salon-assistant/internal/application"
	"salon-assistant/internal/domain"
)

const maxTextBytes = 4096

// Conversation is the subset of the orchestrator the API drives.
type Conversation interface {
	// Submit sends text and returns the log index of the user message.
	Submit(ctx context.Context, text string) (int, error)
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	State() domain.ActivityState
	Ready() bool
	Log() application.MessageReader
	AssistantName() string
}

// Observer receives per-request measurements.
type Observer interface {
	ObserveHTTP(route string, code int, d time.Duration)
	ObserveRateLimited()
}

type Options struct {
	Addr          string
	RatePerMinute int
	Burst         int
	// AuthToken, when set, is required in X-Auth-Token on mutating routes.
	AuthToken string
	// Metrics is served on GET /metrics when non-nil.
	Metrics  http.Handler
	Observer Observer
}

type Server struct {
	conv     Conversation
	notices  *NoticeBoard
	opts     Options
	logger   *slog.Logger
	mux      *http.ServeMux
	limiter  *RateLimiter
	mu       sync.Mutex
	server   *http.Server
	running  bool
	serveErr chan error
}

func NewServer(conv Conversation, notices *NoticeBoard, opts Options, logger *slog.Logger) *Server {
	if notices == nil {
		notices = NewNoticeBoard()
	}
	s := &Server{
		conv:    conv,
		notices: notices,
		opts:    opts,
		logger:  logger,
		mux:     http.NewServeMux(),
		limiter: NewRateLimiter(opts.RatePerMinute, opts.Burst),
	}
	if opts.Observer != nil {
		s.limiter.onReject = opts.Observer.ObserveRateLimited
	}

	// Mutating routes are rate limited; reads and health are not.
	s.handle("POST /messages", s.limited(s.authorized(s.handleSubmit)))
	s.handle("POST /voice/start", s.limited(s.authorized(s.handleStartRecording)))
	s.handle("POST /voice/stop", s.limited(s.authorized(s.handleStopRecording)))
	s.handle("GET /messages", s.handleMessages)
	s.handle("GET /state", s.handleState)
	s.handle("GET /notices", s.handleNotices)
	s.handle("GET /health", s.handleHealth)
	if opts.Metrics != nil {
		s.mux.Handle("GET /metrics", opts.Metrics)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Notices() *NoticeBoard {
	return s.notices
}

// Start listens in the background. Errors other than a clean shutdown are
// delivered on Err.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.server = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Long enough for transcription plus a full chat exchange.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.serveErr = make(chan error, 1)

	go func(srv *http.Server, errc chan<- error) {
		s.logger.Info("HTTP API starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
			errc <- err
		}
		close(errc)
	}(s.server, s.serveErr)

	s.running = true
	return nil
}

func (s *Server) Err() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serveErr
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}
	return nil
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, s.instrumented(pattern, h))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrumented(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		took := time.Since(start)

		if s.opts.Observer != nil {
			s.opts.Observer.ObserveHTTP(route, rec.status, took)
		}
		s.logger.Debug("http request", "route", route, "status", rec.status, "took", took)
	}
}

func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	return s.limiter.Middleware(next)
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	if s.opts.AuthToken == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AuthToken)) != 1 {
			s.logger.Warn("unauthorized request", "remote_addr", r.RemoteAddr, "route", r.Pattern)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	text, err := readText(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	first, err := s.conv.Submit(r.Context(), text)
	if err != nil {
		s.reject(w, err)
		return
	}

	// The exchange appended the user message and exactly one reply; later
	// entries belong to whoever submitted next.
	v := s.exchange(first, -1)
	if len(v.Messages) > 2 {
		v.Messages = v.Messages[:2]
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	lastNotice := s.notices.Last()
	if err := s.conv.StartRecording(r.Context()); err != nil {
		s.reject(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.exchange(s.conv.Log().Len(), lastNotice))
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	before := s.conv.Log().Len()
	lastNotice := s.notices.Last()
	if err := s.conv.StopRecording(r.Context()); err != nil {
		s.reject(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.exchange(before, lastNotice))
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	since, err := queryInt(r, "since")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toMessageViews(s.conv.Log().Since(int(since))))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	since, err := queryInt(r, "since")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toNoticeViews(s.notices.Since(since)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ready := s.conv.Ready()

	status, code := "ok", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":   status,
		"ready":    ready,
		"state":    s.conv.State().String(),
		"messages": s.conv.Log().Len(),
	})
}

func (s *Server) state() stateView {
	st := s.conv.State()
	return stateView{
		State: st.String(),
		Label: st.Label(s.conv.AssistantName()),
		Ready: s.conv.Ready(),
	}
}

// exchange reports the state plus messages appended after index before and,
// when noticeSeq is not negative, notices posted after it.
func (s *Server) exchange(before int, noticeSeq int64) exchangeView {
	v := exchangeView{
		State:    s.state(),
		Messages: toMessageViews(s.conv.Log().Since(before)),
	}
	if noticeSeq >= 0 {
		v.Notices = toNoticeViews(s.notices.Since(noticeSeq))
	}
	return v
}

func (s *Server) reject(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "empty text")
	case errors.Is(err, domain.ErrSessionNotReady):
		writeError(w, http.StatusServiceUnavailable, "assistant is starting, try again shortly")
	case errors.Is(err, domain.ErrBusy):
		writeError(w, http.StatusConflict, "busy: "+s.conv.State().String())
	case errors.Is(err, domain.ErrNotRecording):
		writeError(w, http.StatusConflict, "not recording")
	default:
		s.logger.Error("handling request", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// readText accepts either a plain text body or JSON {"text": "..."}.
func readText(r *http.Request) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxTextBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read body")
	}
	if len(data) > maxTextBytes {
		return "", fmt.Errorf("text too long")
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return "", fmt.Errorf("invalid JSON body")
		}
		return body.Text, nil
	}
	return strings.TrimSpace(string(data)), nil
}

func queryInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}
