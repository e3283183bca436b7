package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/hireloop/interview-gateway/pkg/core"
	"github.com/hireloop/interview-gateway/pkg/core/types"
)

// Gemini generates questions and scores answers through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// GeminiConfig holds the settings needed to construct a Gemini generator.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// NewGemini builds a Generator backed by the Gemini API.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, core.NewCollaboratorError("gemini", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Gemini{client: client, model: model, logger: logger}, nil
}

// generate runs one content call and returns the raw model text.
func (g *Gemini) generate(ctx context.Context, system, user string, temperature float32, maxTokens int32) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: maxTokens,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	contents := []*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}

	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", core.NewCollaboratorError("gemini", err)
	}
	text := res.Text()
	if text == "" {
		return "", core.NewMalformedOutputError("gemini", "model returned empty text")
	}
	return text, nil
}

// rawQuestion is the loose shape models return for a single question.
type rawQuestion struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	Text       string `json:"text"`
	Difficulty string `json:"difficulty"`
}

func (r rawQuestion) normalize() types.Question {
	text := r.Text
	if text == "" {
		text = r.Question
	}
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	return types.Question{ID: id, Text: strings.TrimSpace(text), Difficulty: r.Difficulty}
}

// GeneratePredefined implements Generator.
func (g *Gemini) GeneratePredefined(ctx context.Context, req PredefinedRequest) (*PredefinedResult, error) {
	text, err := g.generate(ctx, predefinedSystemPrompt, predefinedPrompt(req), 0.4, 1000)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Questions   []rawQuestion `json:"questions"`
		Description string        `json:"description"`
	}
	if !extractJSON(text, &parsed) {
		return nil, core.NewMalformedOutputError("gemini", "question set response was not valid JSON")
	}

	questions := make([]types.Question, 0, len(parsed.Questions))
	for _, rq := range parsed.Questions {
		if len(questions) == req.QuestionCount {
			break
		}
		q := rq.normalize()
		if q.Text == "" {
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, core.NewMalformedOutputError("gemini", "question set response contained no questions")
	}
	if len(questions) < req.QuestionCount {
		g.logger.Warn("generated fewer questions than requested",
			"requested", req.QuestionCount, "generated", len(questions))
	}
	return &PredefinedResult{
		Questions:   questions,
		Description: strings.TrimSpace(parsed.Description),
	}, nil
}

// GenerateOpening implements Generator.
func (g *Gemini) GenerateOpening(ctx context.Context, contextSummary string) (types.QuestionResult, error) {
	return g.generateOne(ctx, openingPrompt(contextSummary), 0.4)
}

// GenerateFollowup implements Generator.
func (g *Gemini) GenerateFollowup(ctx context.Context, contextSummary string, history []types.QAPair) (types.QuestionResult, error) {
	return g.generateOne(ctx, followupPrompt(contextSummary, history), 0.5)
}

// generateOne runs a single-question generation call and normalizes the
// result into the tagged form. Models sometimes return a one-element array
// instead of an object; both shapes are accepted.
func (g *Gemini) generateOne(ctx context.Context, prompt string, temperature float32) (types.QuestionResult, error) {
	text, err := g.generate(ctx, "", prompt, temperature, 200)
	if err != nil {
		return types.QuestionResult{}, err
	}
	return coerceQuestionResult(text)
}

func coerceQuestionResult(text string) (types.QuestionResult, error) {
	var single rawQuestion
	if extractJSON(text, &single) {
		q := single.normalize()
		if q.Text != "" {
			return types.QuestionResult{
				Kind:      types.QuestionResultSingle,
				Questions: []types.Question{q},
			}, nil
		}
	}

	var list []rawQuestion
	if extractJSON(text, &list) {
		questions := make([]types.Question, 0, len(list))
		for _, rq := range list {
			if q := rq.normalize(); q.Text != "" {
				questions = append(questions, q)
			}
		}
		if len(questions) > 0 {
			return types.QuestionResult{
				Kind:      types.QuestionResultList,
				Questions: questions,
			}, nil
		}
	}
	return types.QuestionResult{}, core.NewMalformedOutputError("gemini", "question response was not a usable question")
}

// ScoreAnswer implements Generator.
func (g *Gemini) ScoreAnswer(ctx context.Context, question, answer string) (*types.AnswerAnalysis, error) {
	text, err := g.generate(ctx, answerSystemPrompt, answerPrompt(question, answer), 0.3, 300)
	if err != nil {
		return nil, err
	}
	var analysis types.AnswerAnalysis
	if !extractJSON(text, &analysis) {
		return nil, core.NewMalformedOutputError("gemini", "answer analysis response was not valid JSON")
	}
	return &analysis, nil
}

// ScoreSession implements Generator.
func (g *Gemini) ScoreSession(ctx context.Context, req SessionScoreRequest) (*types.AggregateAnalysis, error) {
	text, err := g.generate(ctx, sessionSystemPrompt, sessionPrompt(req), 0.3, 1500)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		OverallScore    int    `json:"overallScore"`
		OverallFeedback string `json:"overallFeedback"`
		Communication   struct {
			Score    int    `json:"score"`
			Feedback string `json:"feedback"`
		} `json:"communication"`
		QuestionSummaries []types.QuestionSummary `json:"questionSummaries"`
		SoftSkillSummary  string                  `json:"softSkillSummary"`
	}
	if !extractJSON(text, &parsed) {
		return nil, core.NewMalformedOutputError("gemini", "session analysis response was not valid JSON")
	}
	return &types.AggregateAnalysis{
		OverallScore:          parsed.OverallScore,
		OverallFeedback:       truncateWords(parsed.OverallFeedback, 60),
		CommunicationScore:    parsed.Communication.Score,
		CommunicationFeedback: truncateWords(parsed.Communication.Feedback, 60),
		QuestionSummaries:     parsed.QuestionSummaries,
		SoftSkillSummary:      truncateWords(parsed.SoftSkillSummary, 15),
	}, nil
}

// truncateWords caps s at n whitespace-separated words.
func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ")
}
