package interview

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hireloop/interview-gateway/pkg/core"
	"github.com/hireloop/interview-gateway/pkg/core/types"
	"github.com/hireloop/interview-gateway/pkg/gateway/session"
	"github.com/hireloop/interview-gateway/pkg/gateway/store"
)

// Lifecycle manages the live capture session attached to a response: issue
// at start, validate at attach, tear down at end.
type Lifecycle struct {
	store       store.Store
	sessions    session.Store
	transcriber *Transcriber
	logger      *slog.Logger
	now         func() time.Time
}

func NewLifecycle(st store.Store, sessions session.Store, transcriber *Transcriber, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		store:       st,
		sessions:    sessions,
		transcriber: transcriber,
		logger:      logger,
		now:         time.Now,
	}
}

// StartResult carries what a candidate needs to begin answering.
type StartResult struct {
	ResponseID   string     `json:"response_id"`
	SessionID    string     `json:"session_id"`
	SessionToken string     `json:"session_token"`
	Mode         types.Mode `json:"mode"`
}

// SessionID derives the capture session id for a response.
func SessionID(interviewID, responseID string) string {
	return fmt.Sprintf("ws_%s_%s", interviewID, responseID)
}

// newSessionToken returns a URL-safe one-time token.
func newSessionToken() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Start creates a response for the interview and issues its capture session.
// A session store outage degrades: the response still starts, only the audio
// path is unavailable.
func (l *Lifecycle) Start(ctx context.Context, interviewID, candidateName, candidateEmail string) (*StartResult, error) {
	iv, err := l.store.Interview(ctx, interviewID)
	if err != nil {
		return nil, wrapStoreErr(err, "interview", interviewID)
	}
	if !iv.IsOpen {
		return nil, core.NewStateConflictError("interview is closed")
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, core.NewAPIError("generate session token: " + err.Error())
	}

	now := l.now().UTC()
	responseID := uuid.NewString()
	sessionID := SessionID(interviewID, responseID)

	rsp := &types.Response{
		ID:             responseID,
		InterviewID:    interviewID,
		CandidateName:  candidateName,
		CandidateEmail: candidateEmail,
		SessionID:      sessionID,
		StartTime:      now,
		Status:         types.StatusNone,
		StatusSource:   types.StatusSourceAuto,
		CreatedAt:      now,
	}
	if err := l.store.CreateResponse(ctx, rsp); err != nil {
		return nil, wrapStoreErr(err, "response", responseID)
	}

	if err := l.sessions.Create(ctx, sessionID); err != nil {
		l.logger.Warn("session buffer create failed", "session_id", sessionID, "error", err)
	}
	meta := session.Meta{
		InterviewID: interviewID,
		ResponseID:  responseID,
		Token:       token,
		CreatedAt:   now,
	}
	if err := l.sessions.SetMeta(ctx, sessionID, meta); err != nil {
		l.logger.Warn("session meta write failed", "session_id", sessionID, "error", err)
	}

	l.logger.Info("response started",
		"interview_id", interviewID, "response_id", responseID, "mode", iv.Mode)

	return &StartResult{
		ResponseID:   responseID,
		SessionID:    sessionID,
		SessionToken: token,
		Mode:         iv.Mode,
	}, nil
}

// Attach validates a live channel against its session and, on success, binds
// the channel's connection identifier into the session metadata. The session
// must exist, belong to the claimed response, and present the issued token.
// A rejected attach leaves the metadata untouched.
func (l *Lifecycle) Attach(ctx context.Context, sessionID, responseID, token, connID string) error {
	meta, ok, err := l.sessions.Meta(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return core.NewAuthenticationError("unknown or expired session")
	}
	if meta.ResponseID != responseID {
		return core.NewAuthenticationError("session does not belong to this response")
	}
	if meta.Token != token {
		return core.NewAuthenticationError("invalid session token")
	}

	meta.ConnID = connID
	if err := l.sessions.SetMeta(ctx, sessionID, meta); err != nil {
		return err
	}
	l.logger.Info("live channel bound",
		"session_id", sessionID, "response_id", responseID, "conn_id", connID)
	return nil
}

// Transcript transcribes the audio buffered so far without ending the
// session.
func (l *Lifecycle) Transcript(ctx context.Context, sessionID, language string) (string, error) {
	return l.transcriber.TranscribeSession(ctx, sessionID, language)
}

// End transcribes whatever audio the session buffered and then destroys the
// session state. Destruction happens even when transcription fails; ephemeral
// state never outlives its session.
func (l *Lifecycle) End(ctx context.Context, sessionID, language string) (string, error) {
	transcript, err := l.transcriber.TranscribeSession(ctx, sessionID, language)
	if err != nil {
		l.logger.Warn("final transcription failed", "session_id", sessionID, "error", err)
	}
	if derr := l.sessions.Destroy(ctx, sessionID); derr != nil {
		l.logger.Warn("session destroy failed", "session_id", sessionID, "error", derr)
	}
	return transcript, err
}
