package interview

import (
	"context"
	"log/slog"
	"time"

	"github.com/hireloop/interview-gateway/pkg/core"
	"github.com/hireloop/interview-gateway/pkg/core/llm"
	"github.com/hireloop/interview-gateway/pkg/core/types"
	"github.com/hireloop/interview-gateway/pkg/gateway/store"
)

// Intake accepts answers, advances progress, and runs completion. All
// mutation of a response goes through a per-response lock so concurrent
// submissions serialize instead of interleaving.
type Intake struct {
	store      store.Store
	gen        llm.Generator
	thresholds types.StatusThresholds
	locks      *keyedLocks
	logger     *slog.Logger
	now        func() time.Time
}

func NewIntake(st store.Store, gen llm.Generator, thresholds types.StatusThresholds, logger *slog.Logger) *Intake {
	return &Intake{
		store:      st,
		gen:        gen,
		thresholds: thresholds,
		locks:      newKeyedLocks(),
		logger:     logger,
		now:        time.Now,
	}
}

// SubmitResult reports the outcome of one answer submission.
type SubmitResult struct {
	Index     int // position after the append
	Total     int // 0 when unknown
	Completed bool
	Analysis  *types.AnswerAnalysis    // per-answer scoring, nil when it failed
	Overall   *types.AggregateAnalysis // set on completion when scoring succeeded
	Status    types.Status
}

// Submit records one answer against the response's current question. The
// append and index advance are a single logical step; scoring is best-effort
// and never blocks the advance.
func (in *Intake) Submit(ctx context.Context, responseID, answer string) (*SubmitResult, error) {
	release := in.locks.acquire(responseID)
	defer release()

	rsp, err := in.store.Response(ctx, responseID)
	if err != nil {
		return nil, wrapStoreErr(err, "response", responseID)
	}
	if rsp.Completed {
		return nil, core.NewStateConflictError("response already completed")
	}
	iv, err := in.store.Interview(ctx, rsp.InterviewID)
	if err != nil {
		return nil, wrapStoreErr(err, "interview", rsp.InterviewID)
	}

	questions := iv.Questions()
	questionText := ""
	if rsp.CurrentQuestionIndex < len(questions) {
		questionText = questions[rsp.CurrentQuestionIndex].Text
	}

	pair := types.QAPair{
		Question:  questionText,
		Answer:    answer,
		Timestamp: in.now().UTC(),
	}

	// Best-effort per-answer scoring. Failure is logged and the answer is
	// recorded without an analysis.
	if in.gen != nil {
		if analysis, err := in.gen.ScoreAnswer(ctx, questionText, answer); err != nil {
			in.logger.Warn("answer scoring failed", "response_id", responseID, "error", err)
		} else {
			pair.Analysis = analysis
		}
	}

	rsp.QAHistory = append(rsp.QAHistory, pair)
	rsp.CurrentQuestionIndex++

	total := iv.TotalExpected()
	if total > 0 && rsp.CurrentQuestionIndex >= total {
		in.finalize(ctx, iv, rsp)
	}

	if err := in.store.UpdateResponse(ctx, rsp); err != nil {
		return nil, wrapStoreErr(err, "response", responseID)
	}

	return &SubmitResult{
		Index:     rsp.CurrentQuestionIndex,
		Total:     total,
		Completed: rsp.Completed,
		Analysis:  pair.Analysis,
		Overall:   rsp.Overall,
		Status:    rsp.Status,
	}, nil
}

// Finish completes a response regardless of position, used for explicit
// early termination. Idempotent: finishing a completed response returns its
// current state.
func (in *Intake) Finish(ctx context.Context, responseID string) (*types.Response, error) {
	release := in.locks.acquire(responseID)
	defer release()

	rsp, err := in.store.Response(ctx, responseID)
	if err != nil {
		return nil, wrapStoreErr(err, "response", responseID)
	}
	if rsp.Completed {
		return rsp, nil
	}
	iv, err := in.store.Interview(ctx, rsp.InterviewID)
	if err != nil {
		return nil, wrapStoreErr(err, "interview", rsp.InterviewID)
	}

	in.finalize(ctx, iv, rsp)
	if err := in.store.UpdateResponse(ctx, rsp); err != nil {
		return nil, wrapStoreErr(err, "response", responseID)
	}
	return rsp, nil
}

// SetStatus applies a manual status decision, which sticks: automatic
// scoring never overwrites it afterwards.
func (in *Intake) SetStatus(ctx context.Context, responseID string, status types.Status) (*types.Response, error) {
	release := in.locks.acquire(responseID)
	defer release()

	rsp, err := in.store.Response(ctx, responseID)
	if err != nil {
		return nil, wrapStoreErr(err, "response", responseID)
	}
	rsp.Status = status
	rsp.StatusSource = types.StatusSourceManual
	if err := in.store.UpdateResponse(ctx, rsp); err != nil {
		return nil, wrapStoreErr(err, "response", responseID)
	}
	return rsp, nil
}

// finalize stamps completion and runs aggregate scoring. Scoring failure
// leaves the response completed without an overall analysis; status is only
// derived when scoring succeeded and no manual decision exists.
func (in *Intake) finalize(ctx context.Context, iv *types.Interview, rsp *types.Response) {
	now := in.now().UTC()
	rsp.Completed = true
	rsp.EndTime = &now
	if !rsp.StartTime.IsZero() {
		rsp.DurationSeconds = int(now.Sub(rsp.StartTime).Seconds())
	}

	if in.gen == nil {
		return
	}
	overall, err := in.gen.ScoreSession(ctx, llm.SessionScoreRequest{
		MainQuestions: iv.Questions(),
		History:       rsp.QAHistory,
	})
	if err != nil {
		in.logger.Warn("aggregate scoring failed", "response_id", rsp.ID, "error", err)
		return
	}
	rsp.Overall = overall

	if rsp.StatusSource != types.StatusSourceManual {
		rsp.Status = in.thresholds.StatusFor(overall.OverallScore)
		rsp.StatusSource = types.StatusSourceAuto
	}
}
