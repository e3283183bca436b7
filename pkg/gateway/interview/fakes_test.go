package interview

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/hireloop/interview-gateway/pkg/core"
	"github.com/hireloop/interview-gateway/pkg/core/llm"
	"github.com/hireloop/interview-gateway/pkg/core/types"
	"github.com/hireloop/interview-gateway/pkg/core/voice/stt"
	"github.com/hireloop/interview-gateway/pkg/core/voice/tts"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGenerator counts calls and can be made to fail per method.
type fakeGenerator struct {
	predefined      *llm.PredefinedResult
	predefinedErr   error
	openingCalls    atomic.Int64
	followupCalls   atomic.Int64
	generateErr     error
	scoreAnswerErr  error
	scoreSessionErr error
	sessionScore    int
}

func (f *fakeGenerator) GeneratePredefined(context.Context, llm.PredefinedRequest) (*llm.PredefinedResult, error) {
	if f.predefinedErr != nil {
		return nil, f.predefinedErr
	}
	return f.predefined, nil
}

func (f *fakeGenerator) GenerateOpening(context.Context, string) (types.QuestionResult, error) {
	n := f.openingCalls.Add(1)
	if f.generateErr != nil {
		return types.QuestionResult{}, f.generateErr
	}
	return types.QuestionResult{
		Kind:      types.QuestionResultSingle,
		Questions: []types.Question{{ID: fmt.Sprintf("open-%d", n), Text: "Tell me about yourself."}},
	}, nil
}

func (f *fakeGenerator) GenerateFollowup(_ context.Context, _ string, history []types.QAPair) (types.QuestionResult, error) {
	n := f.followupCalls.Add(1)
	if f.generateErr != nil {
		return types.QuestionResult{}, f.generateErr
	}
	return types.QuestionResult{
		Kind:      types.QuestionResultSingle,
		Questions: []types.Question{{ID: fmt.Sprintf("follow-%d", n), Text: fmt.Sprintf("Follow-up %d (history %d)", n, len(history))}},
	}, nil
}

func (f *fakeGenerator) ScoreAnswer(context.Context, string, string) (*types.AnswerAnalysis, error) {
	if f.scoreAnswerErr != nil {
		return nil, f.scoreAnswerErr
	}
	return &types.AnswerAnalysis{RelevanceScore: 7, OverallScore: 7}, nil
}

func (f *fakeGenerator) ScoreSession(context.Context, llm.SessionScoreRequest) (*types.AggregateAnalysis, error) {
	if f.scoreSessionErr != nil {
		return nil, f.scoreSessionErr
	}
	return &types.AggregateAnalysis{OverallScore: f.sessionScore, OverallFeedback: "ok"}, nil
}

// fakeSTT returns a fixed transcript.
type fakeSTT struct {
	text  string
	err   error
	calls atomic.Int64
}

func (f *fakeSTT) Name() string { return "fake" }

func (f *fakeSTT) Transcribe(context.Context, []byte, stt.TranscribeOptions) (*stt.Transcript, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &stt.Transcript{Text: f.text}, nil
}

// fakeTTS echoes the text as audio bytes.
type fakeTTS struct {
	err error
}

func (f *fakeTTS) Name() string { return "fake" }

func (f *fakeTTS) Synthesize(_ context.Context, text string, _ tts.SynthesizeOptions) (*tts.Synthesis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &tts.Synthesis{Audio: []byte(text), Format: "mp3"}, nil
}

var errDown = core.NewCollaboratorError("fake", fmt.Errorf("down"))

// wavPayload builds a minimal valid 16 kHz mono PCM WAV for tests.
func wavPayload() []byte {
	const frames = 16
	dataLen := frames * 2
	buf := make([]byte, 44+dataLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], 16000)
	binary.LittleEndian.PutUint32(buf[28:32], 32000)
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	return buf
}
