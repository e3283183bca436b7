// Package interview implements the question flow, answer intake, and live
// session lifecycle of an interview.
package interview

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hireloop/interview-gateway/pkg/core"
	"github.com/hireloop/interview-gateway/pkg/core/llm"
	"github.com/hireloop/interview-gateway/pkg/core/types"
	"github.com/hireloop/interview-gateway/pkg/core/voice/tts"
	"github.com/hireloop/interview-gateway/pkg/gateway/store"
)

// Flow drives question delivery for both interview modes.
type Flow struct {
	store  store.Store
	gen    llm.Generator
	tts    tts.Provider // nil disables voice delivery
	logger *slog.Logger
}

func NewFlow(st store.Store, gen llm.Generator, ttsProvider tts.Provider, logger *slog.Logger) *Flow {
	return &Flow{store: st, gen: gen, tts: ttsProvider, logger: logger}
}

// NextQuestion is the result of one question fetch.
type NextQuestion struct {
	Question    *types.Question // nil when Completed
	Index       int             // zero-based position of the returned question
	Total       int             // 0 when unknown (misconfigured dynamic)
	Completed   bool
	Audio       []byte // synthesized question audio when voice was requested
	AudioFormat string
}

// Materialize ensures a predefined interview has its question set. Called at
// creation for auto-generate interviews and lazily on first fetch otherwise.
// Dynamic interviews are left alone. A generation failure leaves the stored
// set unchanged.
func (f *Flow) Materialize(ctx context.Context, iv *types.Interview) error {
	if iv.Mode != types.ModePredefined || len(iv.Questions()) > 0 || !iv.AutoGenerate {
		return nil
	}
	if f.gen == nil {
		return core.NewCollaboratorError("generator", errors.New("question generation is not configured"))
	}
	res, err := f.gen.GeneratePredefined(ctx, llm.PredefinedRequest{
		Title:          iv.Name,
		Objective:      iv.Objective,
		ContextSummary: iv.ContextSummary,
		QuestionCount:  iv.QuestionCount,
		Difficulty:     iv.Difficulty,
	})
	if err != nil {
		return err
	}
	iv.GeneratedQuestions = res.Questions
	if iv.Description == "" {
		iv.Description = res.Description
	}
	if err := f.store.UpdateInterview(ctx, iv); err != nil {
		return err
	}
	f.logger.Info("materialized question set",
		"interview_id", iv.ID, "count", len(res.Questions))
	return nil
}

// Next returns the question at the response's current position, or a
// completion marker when the position is past the end. Re-fetching without
// an intervening answer returns the same question.
func (f *Flow) Next(ctx context.Context, responseID string, withAudio bool) (*NextQuestion, error) {
	rsp, err := f.store.Response(ctx, responseID)
	if err != nil {
		return nil, wrapStoreErr(err, "response", responseID)
	}
	iv, err := f.store.Interview(ctx, rsp.InterviewID)
	if err != nil {
		return nil, wrapStoreErr(err, "interview", rsp.InterviewID)
	}

	var out *NextQuestion
	switch iv.Mode {
	case types.ModeDynamic:
		out, err = f.nextDynamic(ctx, iv, rsp)
	default:
		out, err = f.nextPredefined(ctx, iv, rsp)
	}
	if err != nil {
		return nil, err
	}

	if withAudio && !out.Completed && f.tts != nil {
		// Voice delivery is best-effort: a synthesis failure still
		// delivers the question text.
		syn, err := f.tts.Synthesize(ctx, out.Question.Text, tts.SynthesizeOptions{})
		if err != nil {
			f.logger.Warn("question synthesis failed",
				"response_id", responseID, "error", err)
		} else {
			out.Audio = syn.Audio
			out.AudioFormat = syn.Format
		}
	}
	return out, nil
}

func (f *Flow) nextPredefined(ctx context.Context, iv *types.Interview, rsp *types.Response) (*NextQuestion, error) {
	if len(iv.Questions()) == 0 && iv.AutoGenerate {
		if err := f.Materialize(ctx, iv); err != nil {
			return nil, err
		}
	}
	questions := iv.Questions()
	idx := rsp.CurrentQuestionIndex
	if idx >= len(questions) {
		return &NextQuestion{Index: idx, Total: len(questions), Completed: true}, nil
	}
	q := questions[idx]
	return &NextQuestion{Question: &q, Index: idx, Total: len(questions)}, nil
}

func (f *Flow) nextDynamic(ctx context.Context, iv *types.Interview, rsp *types.Response) (*NextQuestion, error) {
	max := iv.QuestionCount
	idx := rsp.CurrentQuestionIndex
	if max > 0 && idx >= max {
		return &NextQuestion{Index: idx, Total: max, Completed: true}, nil
	}

	// Idempotent re-fetch: a question already generated for this position
	// is served again rather than regenerated.
	if idx < len(iv.GeneratedQuestions) {
		q := iv.GeneratedQuestions[idx]
		return &NextQuestion{Question: &q, Index: idx, Total: max}, nil
	}

	if f.gen == nil {
		return nil, core.NewCollaboratorError("generator", errors.New("question generation is not configured"))
	}

	var result types.QuestionResult
	var err error
	if idx == 0 && len(rsp.QAHistory) == 0 {
		result, err = f.gen.GenerateOpening(ctx, iv.ContextSummary)
	} else {
		result, err = f.gen.GenerateFollowup(ctx, iv.ContextSummary, rsp.QAHistory)
	}
	if err != nil {
		return nil, err
	}
	q, ok := result.First()
	if !ok {
		return nil, core.NewMalformedOutputError("gemini", "generated question had no usable text")
	}

	iv.GeneratedQuestions = append(iv.GeneratedQuestions, q)
	if err := f.store.UpdateInterview(ctx, iv); err != nil {
		return nil, err
	}
	return &NextQuestion{Question: &q, Index: idx, Total: max}, nil
}

func wrapStoreErr(err error, kind, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return core.NewNotFoundError(kind + " " + id + " not found")
	}
	return core.NewCollaboratorError("store", err)
}
