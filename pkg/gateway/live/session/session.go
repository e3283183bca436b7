// Package session runs a single live WebSocket connection: it attaches the
// channel to a capture session, buffers inbound audio, serves speak requests,
// and finalizes the session with a transcript when the channel ends.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hireloop/interview-gateway/pkg/core"
	"github.com/hireloop/interview-gateway/pkg/core/voice/tts"
	"github.com/hireloop/interview-gateway/pkg/gateway/live/protocol"
	"github.com/hireloop/interview-gateway/pkg/gateway/metrics"
	sessionstore "github.com/hireloop/interview-gateway/pkg/gateway/session"
)

// Control is the slice of the session lifecycle the live channel drives.
type Control interface {
	Attach(ctx context.Context, sessionID, responseID, token, connID string) error
	Transcript(ctx context.Context, sessionID, language string) (string, error)
	End(ctx context.Context, sessionID, language string) (string, error)
}

// Config bounds a live connection. ConnID identifies this connection; it is
// bound into the session metadata on a successful attach.
type Config struct {
	ConnID              string
	MaxAudioFrameBytes  int
	MaxJSONMessageBytes int64
	PingInterval        time.Duration
	WriteTimeout        time.Duration
	Language            string
}

type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Session is one live connection. Create with New, then call Run once.
type Session struct {
	conn    wsConn
	control Control
	chunks  sessionstore.Store
	tts     tts.Provider
	metrics *metrics.Metrics
	logger  *slog.Logger
	cfg     Config

	writeMu sync.Mutex

	attached    bool
	sessionID   string
	responseID  string
	chunkCount  int
	byteCount   int
	ended       bool
	endRecorded bool
	startedAt   time.Time
}

func New(conn wsConn, control Control, chunks sessionstore.Store, ttsProvider tts.Provider, m *metrics.Metrics, logger *slog.Logger, cfg Config) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.MaxAudioFrameBytes <= 0 {
		cfg.MaxAudioFrameBytes = 64 * 1024
	}
	if cfg.MaxJSONMessageBytes <= 0 {
		cfg.MaxJSONMessageBytes = 256 * 1024
	}
	return &Session{
		conn:    conn,
		control: control,
		chunks:  chunks,
		tts:     ttsProvider,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
	}
}

// SessionID returns the attached session id, or "" before attach.
func (s *Session) SessionID() string {
	return s.sessionID
}

// Notify sends a warning-style error frame without closing the connection.
func (s *Session) Notify(code, message string) error {
	return s.writeJSON(protocol.ServerError{
		Type:    "error",
		Code:    code,
		Message: message,
	})
}

// Run drives the connection until the client ends the session, disconnects,
// or the context is canceled. A disconnect after attach still finalizes the
// session so buffered audio is not stranded.
func (s *Session) Run(ctx context.Context) error {
	defer s.conn.Close()

	s.startedAt = time.Now()
	if s.metrics != nil {
		s.metrics.RecordLiveSessionStart()
	}
	defer s.recordEnd("closed")

	s.conn.SetReadLimit(s.cfg.MaxJSONMessageBytes)
	readWindow := 3 * s.cfg.PingInterval
	_ = s.conn.SetReadDeadline(time.Now().Add(readWindow))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(readWindow))
	})

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go s.pingLoop(pingCtx)

	for {
		if err := ctx.Err(); err != nil {
			s.finishDisconnected(ctx)
			s.closeConn(websocket.CloseGoingAway, "server shutting down")
			return nil
		}

		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.ended {
				s.finishDisconnected(ctx)
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := s.handleAudio(ctx, data); err != nil {
				return err
			}
		case websocket.TextMessage:
			done, err := s.handleText(ctx, data)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		default:
		}
	}
}

func (s *Session) handleText(ctx context.Context, data []byte) (done bool, err error) {
	msg, decErr := protocol.DecodeClientMessage(data)
	if decErr != nil {
		var de *protocol.DecodeError
		if errors.As(decErr, &de) {
			return false, s.writeJSON(protocol.ServerError{
				Type:    "error",
				Code:    de.Code,
				Message: de.Message,
				Param:   de.Param,
			})
		}
		return false, decErr
	}

	switch m := msg.(type) {
	case protocol.ClientAttach:
		return false, s.handleAttach(ctx, m)
	case protocol.ClientAudioChunk:
		raw, err := base64.StdEncoding.DecodeString(m.DataB64)
		if err != nil {
			return false, s.writeJSON(protocol.ServerError{
				Type:    "error",
				Code:    "bad_request",
				Message: "audio_chunk.data_b64 is not valid base64",
				Param:   "data_b64",
			})
		}
		return false, s.handleAudio(ctx, raw)
	case protocol.ClientSpeak:
		return false, s.handleSpeak(ctx, m)
	case protocol.ClientTranscript:
		return false, s.handleTranscript(ctx)
	case protocol.ClientEnd:
		return true, s.handleEnd(ctx)
	default:
		return false, nil
	}
}

func (s *Session) handleAttach(ctx context.Context, m protocol.ClientAttach) error {
	if s.attached {
		return s.writeJSON(protocol.ServerError{
			Type:    "error",
			Code:    "state_conflict",
			Message: "already attached",
		})
	}

	if err := s.control.Attach(ctx, m.SessionID, m.ResponseID, m.Token, s.cfg.ConnID); err != nil {
		s.logger.Warn("live attach rejected", "session_id", m.SessionID, "error", err)
		ferr := s.writeJSON(protocol.ServerError{
			Type:    "error",
			Code:    "authentication_error",
			Message: "attach rejected",
			Close:   true,
		})
		s.closeConn(websocket.ClosePolicyViolation, "attach rejected")
		if ferr != nil {
			return ferr
		}
		return err
	}

	s.attached = true
	s.sessionID = m.SessionID
	s.responseID = m.ResponseID
	s.logger.Info("live session attached", "session_id", s.sessionID, "response_id", s.responseID)

	return s.writeJSON(protocol.ServerAttached{
		Type:            "attached",
		ProtocolVersion: protocol.ProtocolVersion1,
		SessionID:       s.sessionID,
		ResponseID:      s.responseID,
	})
}

func (s *Session) handleAudio(ctx context.Context, chunk []byte) error {
	if !s.attached {
		return s.writeJSON(protocol.ServerError{
			Type:    "error",
			Code:    "state_conflict",
			Message: "audio before attach",
		})
	}
	if len(chunk) == 0 {
		return nil
	}
	if len(chunk) > s.cfg.MaxAudioFrameBytes {
		return s.writeJSON(protocol.ServerError{
			Type:    "error",
			Code:    "bad_request",
			Message: fmt.Sprintf("audio frame exceeds %d bytes", s.cfg.MaxAudioFrameBytes),
		})
	}

	if err := s.chunks.AppendChunk(ctx, s.sessionID, chunk); err != nil {
		s.logger.Error("audio buffer append failed", "session_id", s.sessionID, "error", err)
		return s.writeJSON(protocol.ServerError{
			Type:      "error",
			Code:      "collaborator_unavailable",
			Message:   "audio buffer unavailable",
			Retryable: true,
		})
	}

	s.chunkCount++
	s.byteCount += len(chunk)
	if s.metrics != nil {
		s.metrics.RecordLiveAudio(len(chunk))
	}

	return s.writeJSON(protocol.ServerAudioAck{
		Type:   "audio_ack",
		Bytes:  s.byteCount,
		Chunks: s.chunkCount,
	})
}

func (s *Session) handleSpeak(ctx context.Context, m protocol.ClientSpeak) error {
	if !s.attached {
		return s.writeJSON(protocol.ServerError{
			Type:    "error",
			Code:    "state_conflict",
			Message: "speak before attach",
		})
	}
	if s.tts == nil {
		return s.writeJSON(protocol.ServerError{
			Type:    "error",
			Code:    "unsupported",
			Message: "speech synthesis is not configured",
		})
	}

	format := m.Format
	if format == "" {
		format = "mp3"
	}
	syn, err := s.tts.Synthesize(ctx, m.Text, tts.SynthesizeOptions{Format: format})
	if err != nil {
		s.logger.Warn("speak synthesis failed", "session_id", s.sessionID, "error", err)
		return s.writeJSON(protocol.ServerError{
			Type:      "error",
			Code:      "collaborator_unavailable",
			Message:   "speech synthesis failed",
			Retryable: core.IsRetryable(err),
		})
	}

	return s.writeJSON(protocol.ServerSpeech{
		Type:     "speech",
		Format:   syn.Format,
		AudioB64: base64.StdEncoding.EncodeToString(syn.Audio),
	})
}

// handleTranscript serves an interim transcript of the buffer without
// touching session state.
func (s *Session) handleTranscript(ctx context.Context) error {
	if !s.attached {
		return s.writeJSON(protocol.ServerError{
			Type:    "error",
			Code:    "state_conflict",
			Message: "transcript before attach",
		})
	}

	text, err := s.control.Transcript(ctx, s.sessionID, s.cfg.Language)
	if err != nil {
		s.logger.Warn("interim transcription failed", "session_id", s.sessionID, "error", err)
		return s.writeJSON(protocol.ServerError{
			Type:      "error",
			Code:      "collaborator_unavailable",
			Message:   "transcription failed",
			Retryable: core.IsRetryable(err),
		})
	}

	return s.writeJSON(protocol.ServerTranscript{
		Type:       "transcript",
		ResponseID: s.responseID,
		Text:       text,
	})
}

func (s *Session) handleEnd(ctx context.Context) error {
	if !s.attached {
		s.ended = true
		s.closeConn(websocket.CloseNormalClosure, "")
		return nil
	}

	transcript, err := s.control.End(ctx, s.sessionID, s.cfg.Language)
	s.ended = true
	if err != nil {
		s.logger.Warn("live session end with transcription failure", "session_id", s.sessionID, "error", err)
	}
	s.recordEnd("ended")

	werr := s.writeJSON(protocol.ServerTranscript{
		Type:       "transcript",
		ResponseID: s.responseID,
		Text:       transcript,
	})
	s.closeConn(websocket.CloseNormalClosure, "")
	return werr
}

// finishDisconnected finalizes the session after an abrupt disconnect so the
// buffered audio still becomes a transcript.
func (s *Session) finishDisconnected(ctx context.Context) {
	if s.ended || !s.attached {
		s.ended = true
		return
	}
	s.ended = true

	// The connection context is likely gone; give finalization its own window.
	endCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if _, err := s.control.End(endCtx, s.sessionID, s.cfg.Language); err != nil {
		s.logger.Warn("finalize after disconnect failed", "session_id", s.sessionID, "error", err)
	}
	s.recordEnd("disconnected")
}

func (s *Session) recordEnd(status string) {
	if s.metrics == nil || s.endRecorded {
		return
	}
	s.endRecorded = true
	s.metrics.RecordLiveSessionEnd(status, time.Since(s.startedAt))
}

func (s *Session) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return
			}
		}
	}
}

func (s *Session) writeJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Session) closeConn(code int, reason string) {
	deadline := time.Now().Add(s.cfg.WriteTimeout)
	msg := websocket.FormatCloseMessage(code, strings.TrimSpace(reason))
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
}
