package interview

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hireloop/interview-gateway/pkg/core"
	"github.com/hireloop/interview-gateway/pkg/core/audio"
	"github.com/hireloop/interview-gateway/pkg/core/voice/stt"
	"github.com/hireloop/interview-gateway/pkg/gateway/session"
)

// Transcriber turns a session's buffered audio into text.
type Transcriber struct {
	sessions session.Store
	stt      stt.Provider
	logger   *slog.Logger
}

func NewTranscriber(sessions session.Store, sttProvider stt.Provider, logger *slog.Logger) *Transcriber {
	return &Transcriber{sessions: sessions, stt: sttProvider, logger: logger}
}

// TranscribeSession merges all buffered chunks, normalizes the payload, and
// transcribes it. An empty buffer yields "" without a provider call. A
// payload that fails to decode fails the attempt; the buffer is untouched
// either way.
func (t *Transcriber) TranscribeSession(ctx context.Context, sessionID, language string) (string, error) {
	chunks, err := t.sessions.Chunks(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", nil
	}
	if t.stt == nil {
		return "", core.NewCollaboratorError("stt", errors.New("transcription is not configured"))
	}

	merged := audio.MergeChunks(chunks)
	normalized, err := audio.Normalize(merged)
	if err != nil {
		t.logger.Warn("audio normalization failed",
			"session_id", sessionID, "bytes", len(merged), "error", err)
		return "", err
	}

	transcript, err := t.stt.Transcribe(ctx, normalized, stt.TranscribeOptions{
		Language: language,
		Format:   "wav",
	})
	if err != nil {
		return "", err
	}
	return transcript.Text, nil
}
