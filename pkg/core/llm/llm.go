// Package llm generates interview questions and scores answers through a
// language-model collaborator.
package llm

import (
	"context"

	"github.com/hireloop/interview-gateway/pkg/core/types"
)

// PredefinedRequest asks for a full question set up front.
type PredefinedRequest struct {
	Title          string
	Objective      string
	ContextSummary string
	QuestionCount  int
	Difficulty     types.Difficulty
}

// PredefinedResult carries the generated set plus a candidate-facing
// description of the interview.
type PredefinedResult struct {
	Questions   []types.Question
	Description string
}

// SessionScoreRequest asks for an aggregate analysis over the whole history.
type SessionScoreRequest struct {
	MainQuestions []types.Question
	History       []types.QAPair
}

// Generator is the question-generation and scoring surface. Implementations
// must coerce collaborator output into the declared result types; callers
// never see raw model text.
type Generator interface {
	// GeneratePredefined produces the complete question set for predefined
	// mode. A short list is returned as-is; callers decide whether to
	// tolerate it.
	GeneratePredefined(ctx context.Context, req PredefinedRequest) (*PredefinedResult, error)

	// GenerateOpening produces the first question of a dynamic interview.
	GenerateOpening(ctx context.Context, contextSummary string) (types.QuestionResult, error)

	// GenerateFollowup produces the next dynamic question conditioned on
	// recent answers.
	GenerateFollowup(ctx context.Context, contextSummary string, history []types.QAPair) (types.QuestionResult, error)

	// ScoreAnswer evaluates a single question/answer pair.
	ScoreAnswer(ctx context.Context, question, answer string) (*types.AnswerAnalysis, error)

	// ScoreSession evaluates the full interview transcript.
	ScoreSession(ctx context.Context, req SessionScoreRequest) (*types.AggregateAnalysis, error)
}
