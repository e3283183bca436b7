// Package types defines the domain model shared by the interview engine,
// persistence, and the gateway surface.
package types

import (
	"strings"
	"time"
)

// Mode selects how an interview's question sequence is produced.
type Mode string

const (
	// ModePredefined serves a question list fully known before any question
	// is delivered.
	ModePredefined Mode = "predefined"

	// ModeDynamic grows the question list one entry at a time, each
	// conditioned on prior answers.
	ModeDynamic Mode = "dynamic"
)

// ParseMode validates a wire-level mode string.
func ParseMode(raw string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModePredefined:
		return ModePredefined, true
	case ModeDynamic:
		return ModeDynamic, true
	default:
		return "", false
	}
}

// Difficulty is the requested difficulty mix for generated questions.
type Difficulty string

const (
	DifficultyLow    Difficulty = "low"
	DifficultyMedium Difficulty = "medium"
	DifficultyHigh   Difficulty = "high"
)

// ParseDifficulty returns the difficulty for raw, defaulting to medium.
func ParseDifficulty(raw string) Difficulty {
	switch Difficulty(strings.ToLower(strings.TrimSpace(raw))) {
	case DifficultyLow:
		return DifficultyLow
	case DifficultyHigh:
		return DifficultyHigh
	default:
		return DifficultyMedium
	}
}

// Question is one entry in an interview's question set. Once generated at a
// given index it never changes.
type Question struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Difficulty string `json:"difficulty,omitempty"`
}

// QuestionResultKind tags the shape a generation collaborator returned.
type QuestionResultKind string

const (
	QuestionResultSingle QuestionResultKind = "single"
	QuestionResultList   QuestionResultKind = "list"
)

// QuestionResult is the normalized output of a generation call. Collaborator
// responses are coerced into this tagged form exactly once, at the provider
// boundary.
type QuestionResult struct {
	Kind      QuestionResultKind
	Questions []Question
}

// First returns the first usable question, if any. When the collaborator
// returned a collection, the first element wins.
func (r QuestionResult) First() (Question, bool) {
	for _, q := range r.Questions {
		if strings.TrimSpace(q.Text) != "" {
			return q, true
		}
	}
	return Question{}, false
}

// AnswerAnalysis scores a single question/answer pair on a 1-10 scale.
type AnswerAnalysis struct {
	RelevanceScore    int      `json:"relevance_score"`
	CompletenessScore int      `json:"completeness_score"`
	ClarityScore      int      `json:"clarity_score"`
	OverallScore      int      `json:"overall_score"`
	Strengths         []string `json:"strengths,omitempty"`
	Weaknesses        []string `json:"weaknesses,omitempty"`
	Suggestions       []string `json:"suggestions,omitempty"`
}

// QuestionSummary is a per-question digest inside an aggregate analysis.
type QuestionSummary struct {
	Question string `json:"question"`
	Summary  string `json:"summary"`
}

// AggregateAnalysis is the end-of-interview scoring computed over the full
// question/answer history.
type AggregateAnalysis struct {
	OverallScore          int               `json:"overall_score"`
	OverallFeedback       string            `json:"overall_feedback"`
	CommunicationScore    int               `json:"communication_score"`
	CommunicationFeedback string            `json:"communication_feedback"`
	QuestionSummaries     []QuestionSummary `json:"question_summaries,omitempty"`
	SoftSkillSummary      string            `json:"soft_skill_summary,omitempty"`
}

// QAPair records one answered question. Appended exactly once per answer
// submission; the analysis is attached after the append when scoring
// succeeds (two-phase write).
type QAPair struct {
	Question  string          `json:"question"`
	Answer    string          `json:"answer"`
	Timestamp time.Time       `json:"timestamp"`
	Analysis  *AnswerAnalysis `json:"analysis,omitempty"`
}

// Status is the categorical outcome of a completed response.
type Status string

const (
	StatusNone        Status = "no_status"
	StatusSelected    Status = "selected"
	StatusPotential   Status = "potential"
	StatusNotSelected Status = "not_selected"
)

// ValidStatus reports whether raw names a settable status.
func ValidStatus(raw string) bool {
	switch Status(raw) {
	case StatusNone, StatusSelected, StatusPotential, StatusNotSelected:
		return true
	default:
		return false
	}
}

// StatusSource records who decided a response's status.
type StatusSource string

const (
	StatusSourceAuto   StatusSource = "auto"
	StatusSourceManual StatusSource = "manual"
)

// StatusThresholds maps an aggregate overall score to a status tier. The
// middle band (NotSelectedBelow..PotentialMin) resolves to potential.
type StatusThresholds struct {
	SelectedMin      int
	PotentialMin     int
	NotSelectedBelow int
}

// DefaultStatusThresholds mirrors the historical 80/60/40 policy.
func DefaultStatusThresholds() StatusThresholds {
	return StatusThresholds{SelectedMin: 80, PotentialMin: 60, NotSelectedBelow: 40}
}

// StatusFor derives the tier for an aggregate score.
func (t StatusThresholds) StatusFor(score int) Status {
	switch {
	case score >= t.SelectedMin:
		return StatusSelected
	case score >= t.PotentialMin:
		return StatusPotential
	case score < t.NotSelectedBelow:
		return StatusNotSelected
	default:
		return StatusPotential
	}
}

// Interview is the configured definition of one interview.
type Interview struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Objective          string     `json:"objective"`
	Description        string     `json:"description,omitempty"`
	Mode               Mode       `json:"mode"`
	QuestionCount      int        `json:"question_count"`
	AutoGenerate       bool       `json:"auto_generate"`
	Difficulty         Difficulty `json:"difficulty"`
	ContextSummary     string     `json:"context_summary,omitempty"`
	ManualQuestions    []Question `json:"manual_questions,omitempty"`
	GeneratedQuestions []Question `json:"generated_questions,omitempty"`
	IsOpen             bool       `json:"is_open"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Questions returns the materialized question set: generated questions when
// present, otherwise the manual list.
func (iv *Interview) Questions() []Question {
	if len(iv.GeneratedQuestions) > 0 {
		return iv.GeneratedQuestions
	}
	return iv.ManualQuestions
}

// TotalExpected is the number of answers that completes this interview.
// Dynamic mode is capped by the configured question count; predefined mode
// by the materialized list length. Zero means completion can never trigger.
func (iv *Interview) TotalExpected() int {
	if iv.Mode == ModeDynamic {
		if iv.QuestionCount > 0 {
			return iv.QuestionCount
		}
		return 0
	}
	return len(iv.Questions())
}

// Response tracks one candidate's progress through an interview.
type Response struct {
	ID                   string             `json:"id"`
	InterviewID          string             `json:"interview_id"`
	CandidateName        string             `json:"candidate_name,omitempty"`
	CandidateEmail       string             `json:"candidate_email,omitempty"`
	SessionID            string             `json:"session_id,omitempty"`
	StartTime            time.Time          `json:"start_time"`
	EndTime              *time.Time         `json:"end_time,omitempty"`
	CurrentQuestionIndex int                `json:"current_question_index"`
	QAHistory            []QAPair           `json:"qa_history"`
	Completed            bool               `json:"completed"`
	DurationSeconds      int                `json:"duration_seconds,omitempty"`
	Overall              *AggregateAnalysis `json:"overall_analysis,omitempty"`
	Status               Status             `json:"status"`
	StatusSource         StatusSource       `json:"status_source"`
	CreatedAt            time.Time          `json:"created_at"`
}
