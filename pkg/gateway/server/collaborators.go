package server

import (
	"context"
	"errors"
	"time"

	"github.com/hireloop/interview-gateway/pkg/core"
	"github.com/hireloop/interview-gateway/pkg/core/llm"
	"github.com/hireloop/interview-gateway/pkg/core/types"
	"github.com/hireloop/interview-gateway/pkg/core/voice/stt"
	"github.com/hireloop/interview-gateway/pkg/core/voice/tts"
	"github.com/hireloop/interview-gateway/pkg/gateway/metrics"
)

// recordErrorType counts an error under its canonical type.
func recordErrorType(m *metrics.Metrics, err error) {
	if err == nil {
		return
	}
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		m.RecordError(string(coreErr.Type))
		return
	}
	m.RecordError(string(core.ErrAPI))
}

// meteredGenerator records call counts, latency and error types for every
// model call.
type meteredGenerator struct {
	next llm.Generator
	m    *metrics.Metrics
}

func meterGenerator(next llm.Generator, m *metrics.Metrics) llm.Generator {
	if next == nil {
		return nil
	}
	return meteredGenerator{next: next, m: m}
}

func (g meteredGenerator) record(err error, start time.Time) {
	g.m.RecordCollaboratorCall("llm", err, time.Since(start))
	recordErrorType(g.m, err)
}

func (g meteredGenerator) GeneratePredefined(ctx context.Context, req llm.PredefinedRequest) (*llm.PredefinedResult, error) {
	start := time.Now()
	res, err := g.next.GeneratePredefined(ctx, req)
	g.record(err, start)
	return res, err
}

func (g meteredGenerator) GenerateOpening(ctx context.Context, contextSummary string) (types.QuestionResult, error) {
	start := time.Now()
	res, err := g.next.GenerateOpening(ctx, contextSummary)
	g.record(err, start)
	return res, err
}

func (g meteredGenerator) GenerateFollowup(ctx context.Context, contextSummary string, history []types.QAPair) (types.QuestionResult, error) {
	start := time.Now()
	res, err := g.next.GenerateFollowup(ctx, contextSummary, history)
	g.record(err, start)
	return res, err
}

func (g meteredGenerator) ScoreAnswer(ctx context.Context, question, answer string) (*types.AnswerAnalysis, error) {
	start := time.Now()
	res, err := g.next.ScoreAnswer(ctx, question, answer)
	g.record(err, start)
	return res, err
}

func (g meteredGenerator) ScoreSession(ctx context.Context, req llm.SessionScoreRequest) (*types.AggregateAnalysis, error) {
	start := time.Now()
	res, err := g.next.ScoreSession(ctx, req)
	g.record(err, start)
	return res, err
}

type meteredSTT struct {
	next stt.Provider
	m    *metrics.Metrics
}

func meterSTT(next stt.Provider, m *metrics.Metrics) stt.Provider {
	if next == nil {
		return nil
	}
	return meteredSTT{next: next, m: m}
}

func (p meteredSTT) Name() string { return p.next.Name() }

func (p meteredSTT) Transcribe(ctx context.Context, audio []byte, opts stt.TranscribeOptions) (*stt.Transcript, error) {
	start := time.Now()
	res, err := p.next.Transcribe(ctx, audio, opts)
	p.m.RecordCollaboratorCall("stt", err, time.Since(start))
	recordErrorType(p.m, err)
	return res, err
}

type meteredTTS struct {
	next tts.Provider
	m    *metrics.Metrics
}

func meterTTS(next tts.Provider, m *metrics.Metrics) tts.Provider {
	if next == nil {
		return nil
	}
	return meteredTTS{next: next, m: m}
}

func (p meteredTTS) Name() string { return p.next.Name() }

func (p meteredTTS) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOptions) (*tts.Synthesis, error) {
	start := time.Now()
	res, err := p.next.Synthesize(ctx, text, opts)
	p.m.RecordCollaboratorCall("tts", err, time.Since(start))
	recordErrorType(p.m, err)
	return res, err
}
