// Package server wires the gateway: stores, collaborators, the interview
// engine, and the HTTP surface.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hireloop/interview-gateway/pkg/core/llm"
	"github.com/hireloop/interview-gateway/pkg/core/voice/stt"
	"github.com/hireloop/interview-gateway/pkg/core/voice/tts"
	"github.com/hireloop/interview-gateway/pkg/gateway/config"
	"github.com/hireloop/interview-gateway/pkg/gateway/handlers"
	"github.com/hireloop/interview-gateway/pkg/gateway/interview"
	"github.com/hireloop/interview-gateway/pkg/gateway/lifecycle"
	"github.com/hireloop/interview-gateway/pkg/gateway/live/sessions"
	"github.com/hireloop/interview-gateway/pkg/gateway/metrics"
	"github.com/hireloop/interview-gateway/pkg/gateway/mw"
	sessionstore "github.com/hireloop/interview-gateway/pkg/gateway/session"
	"github.com/hireloop/interview-gateway/pkg/gateway/store"
)

// Deps are the collaborators the server is built around. Store and Sessions
// are required; Generator, STT and TTS may be nil when unconfigured, which
// disables the features that need them.
type Deps struct {
	Store     store.Store
	Sessions  sessionstore.Store
	Generator llm.Generator
	STT       stt.Provider
	TTS       tts.Provider
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	deps      Deps
	flow      *interview.Flow
	intake    *interview.Intake
	sessions  *interview.Lifecycle
	state     *lifecycle.State
	tracker   *sessions.Tracker
	collected *metrics.Metrics
}

func New(cfg config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	thresholds := cfg.StatusThresholds()
	collected := metrics.New("")

	// Every external call flows through the metered wrappers.
	deps.Generator = meterGenerator(deps.Generator, collected)
	deps.STT = meterSTT(deps.STT, collected)
	deps.TTS = meterTTS(deps.TTS, collected)
	transcriber := interview.NewTranscriber(deps.Sessions, deps.STT, logger)

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		deps:      deps,
		flow:      interview.NewFlow(deps.Store, deps.Generator, deps.TTS, logger),
		intake:    interview.NewIntake(deps.Store, deps.Generator, thresholds, logger),
		sessions:  interview.NewLifecycle(deps.Store, deps.Sessions, transcriber, logger),
		state:     &lifecycle.State{},
		tracker:   sessions.NewTracker(),
		collected: collected,
	}

	s.routes()
	return s
}

// SetDraining flips readiness so load balancers stop routing new work here.
func (s *Server) SetDraining() {
	s.state.BeginDrain()
}

// NotifyLiveSessionsDraining tells open live connections the gateway is
// shutting down.
func (s *Server) NotifyLiveSessionsDraining() {
	s.tracker.NotifyAll("draining", "gateway is shutting down")
}

// WaitLiveSessions blocks until open live connections finish or ctx expires.
func (s *Server) WaitLiveSessions(ctx context.Context) bool {
	return s.tracker.Wait(ctx)
}

// CancelLiveSessions force-closes any live connections still open.
func (s *Server) CancelLiveSessions() {
	s.tracker.CancelAll()
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Config:   s.cfg,
		State:    s.state,
		Store:    s.deps.Store,
		Sessions: sessionPinger(s.deps.Sessions),
	})
	s.mux.Handle("/metrics", s.collected.Handler())

	s.mux.Handle("/v1/interviews", handlers.InterviewsHandler{
		Config: s.cfg,
		Store:  s.deps.Store,
		Flow:   s.flow,
		Logger: s.logger,
	})
	s.mux.Handle("/v1/interviews/{id}", handlers.InterviewHandler{
		Store:  s.deps.Store,
		Logger: s.logger,
	})
	s.mux.Handle("/v1/interviews/{id}/responses", handlers.InterviewResponsesHandler{
		Store:  s.deps.Store,
		Logger: s.logger,
	})
	s.mux.Handle("/v1/interviews/{id}/start", handlers.StartHandler{
		Config:    s.cfg,
		Lifecycle: s.sessions,
		Logger:    s.logger,
	})

	s.mux.Handle("/v1/responses/{id}", handlers.ResponseHandler{
		Store:  s.deps.Store,
		Logger: s.logger,
	})
	s.mux.Handle("/v1/responses/{id}/question", handlers.QuestionHandler{
		Config:  s.cfg,
		Flow:    s.flow,
		Store:   s.deps.Store,
		Metrics: s.collected,
		Logger:  s.logger,
	})
	s.mux.Handle("/v1/responses/{id}/answer", handlers.AnswerHandler{
		Config:  s.cfg,
		Intake:  s.intake,
		Metrics: s.collected,
		Logger:  s.logger,
	})
	s.mux.Handle("/v1/responses/{id}/end", handlers.EndHandler{
		Config:    s.cfg,
		Intake:    s.intake,
		Lifecycle: s.sessions,
		Store:     s.deps.Store,
		Metrics:   s.collected,
		Logger:    s.logger,
	})
	s.mux.Handle("/v1/responses/{id}/status", handlers.StatusHandler{
		Config: s.cfg,
		Intake: s.intake,
		Logger: s.logger,
	})

	s.mux.Handle("/v1/live", handlers.LiveHandler{
		Config:       s.cfg,
		State:        s.state,
		Control:      s.sessions,
		Chunks:       s.deps.Sessions,
		TTS:          s.deps.TTS,
		LiveSessions: s.tracker,
		Metrics:      s.collected,
		Logger:       s.logger,
	})

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = withRequestTimeout(s.cfg.HandlerTimeout, h)
	h = s.recordRequests(h)
	h = mw.Auth(s.cfg, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, s.cfg.TrustProxyHeaders, h)
	h = mw.RequestID(h)
	return h
}

// withRequestTimeout bounds each request's context. The live endpoint is
// exempt, a WebSocket stays open as long as the candidate talks.
func withRequestTimeout(d time.Duration, next http.Handler) http.Handler {
	if d <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/live" {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type metricsWriter struct {
	http.ResponseWriter
	status int
}

func (w *metricsWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// recordRequests observes request counts and latency per endpoint pattern.
// The live endpoint is skipped so a long WebSocket does not distort the
// latency histogram.
func (s *Server) recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/live" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		mwr := &metricsWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(mwr, r)

		endpoint := r.URL.Path
		if _, pattern := s.mux.Handler(r); pattern != "" {
			endpoint = pattern
		}
		s.collected.RecordRequest(endpoint, strconv.Itoa(mwr.status), time.Since(start))
	})
}

type sessionPingAdapter struct {
	store sessionstore.Store
}

func (a sessionPingAdapter) Ping(ctx context.Context) error {
	type pinger interface {
		Ping(ctx context.Context) error
	}
	if p, ok := a.store.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func sessionPinger(st sessionstore.Store) handlers.Pinger {
	if st == nil {
		return nil
	}
	return sessionPingAdapter{store: st}
}
