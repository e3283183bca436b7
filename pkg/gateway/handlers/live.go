package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/hireloop/interview-gateway/pkg/core"
	"github.com/hireloop/interview-gateway/pkg/core/voice/tts"
	"github.com/hireloop/interview-gateway/pkg/gateway/config"
	"github.com/hireloop/interview-gateway/pkg/gateway/lifecycle"
	livesession "github.com/hireloop/interview-gateway/pkg/gateway/live/session"
	"github.com/hireloop/interview-gateway/pkg/gateway/live/sessions"
	"github.com/hireloop/interview-gateway/pkg/gateway/metrics"
	"github.com/hireloop/interview-gateway/pkg/gateway/mw"
	sessionstore "github.com/hireloop/interview-gateway/pkg/gateway/session"
)

// LiveHandler upgrades /v1/live connections and runs their session loop.
// The channel authenticates with its attach frame, not a bearer token.
type LiveHandler struct {
	Config       config.Config
	State        *lifecycle.State
	Control      livesession.Control
	Chunks       sessionstore.Store
	TTS          tts.Provider
	LiveSessions *sessions.Tracker
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		methodNotAllowed(w, reqID)
		return
	}
	if h.State.Draining() {
		writeCoreErrorJSON(w, reqID, &core.Error{
			Type:      core.ErrStateConflict,
			Message:   "gateway is draining",
			Code:      "draining",
			RequestID: reqID,
		}, http.StatusServiceUnavailable)
		return
	}
	if !h.originAllowed(r) {
		writeCoreErrorJSON(w, reqID, &core.Error{
			Type:      core.ErrAuthentication,
			Message:   "origin is not allowed",
			Param:     "Origin",
			RequestID: reqID,
		}, http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		HandshakeTimeout: h.Config.LiveHandshakeTimeout,
		CheckOrigin:      func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sess := livesession.New(conn, h.Control, h.Chunks, h.TTS, h.Metrics, h.Logger, livesession.Config{
		ConnID:              reqID,
		MaxAudioFrameBytes:  h.Config.LiveMaxAudioFrameBytes,
		MaxJSONMessageBytes: h.Config.LiveMaxJSONMessageBytes,
		PingInterval:        h.Config.LiveWSPingInterval,
		WriteTimeout:        h.Config.LiveWSWriteTimeout,
		Language:            h.Config.STTLanguage,
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	unregister := h.LiveSessions.Register(reqID, sessions.Handle{
		Cancel: cancel,
		Notify: sess.Notify,
	})
	defer unregister()

	if err := sess.Run(ctx); err != nil {
		h.Logger.Info("live session closed",
			"request_id", reqID,
			"session_id", sess.SessionID(),
			"error", err,
		)
	}
}

func (h LiveHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		// Non-browser clients send no Origin header.
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}
