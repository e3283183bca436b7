package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hireloop/interview-gateway/pkg/core"
	"github.com/hireloop/interview-gateway/pkg/core/types"
	"github.com/hireloop/interview-gateway/pkg/gateway/config"
	"github.com/hireloop/interview-gateway/pkg/gateway/interview"
	"github.com/hireloop/interview-gateway/pkg/gateway/mw"
	"github.com/hireloop/interview-gateway/pkg/gateway/store"
)

type createInterviewRequest struct {
	Name            string           `json:"name"`
	Objective       string           `json:"objective"`
	Description     string           `json:"description,omitempty"`
	Mode            string           `json:"mode"`
	QuestionCount   int              `json:"question_count"`
	AutoGenerate    bool             `json:"auto_generate"`
	Difficulty      string           `json:"difficulty,omitempty"`
	ContextSummary  string           `json:"context_summary,omitempty"`
	ManualQuestions []types.Question `json:"manual_questions,omitempty"`
	IsOpen          *bool            `json:"is_open,omitempty"`
}

// InterviewsHandler serves POST (create) and GET (list) on /v1/interviews.
type InterviewsHandler struct {
	Config config.Config
	Store  store.Store
	Flow   *interview.Flow
	Logger *slog.Logger
}

func (h InterviewsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	switch r.Method {
	case http.MethodPost:
		h.create(w, r, reqID)
	case http.MethodGet:
		h.list(w, r, reqID)
	default:
		methodNotAllowed(w, reqID)
	}
}

func (h InterviewsHandler) create(w http.ResponseWriter, r *http.Request, reqID string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeErr(w, reqID, core.NewInvalidRequestError("failed to read request body"))
		return
	}

	var req createInterviewRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeErr(w, reqID, core.NewInvalidRequestError("invalid json body"))
		return
	}

	iv, err := interviewFromRequest(req)
	if err != nil {
		writeErr(w, reqID, err)
		return
	}

	// Auto-generate interviews materialize their question set up front so a
	// broken generator surfaces at creation, not mid-interview.
	if err := h.Flow.Materialize(r.Context(), iv); err != nil {
		writeErr(w, reqID, err)
		return
	}

	if err := h.Store.CreateInterview(r.Context(), iv); err != nil {
		writeErr(w, reqID, core.NewCollaboratorError("store", err))
		return
	}

	h.Logger.Info("interview created",
		"request_id", reqID,
		"interview_id", iv.ID,
		"mode", iv.Mode,
		"questions", len(iv.Questions()),
	)
	writeJSON(w, http.StatusCreated, iv)
}

func (h InterviewsHandler) list(w http.ResponseWriter, r *http.Request, reqID string) {
	items, err := h.Store.ListInterviews(r.Context())
	if err != nil {
		writeErr(w, reqID, core.NewCollaboratorError("store", err))
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Interviews []*types.Interview `json:"interviews"`
	}{Interviews: items})
}

func interviewFromRequest(req createInterviewRequest) (*types.Interview, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, core.NewInvalidRequestErrorWithParam("name is required", "name")
	}
	objective := strings.TrimSpace(req.Objective)
	if objective == "" {
		return nil, core.NewInvalidRequestErrorWithParam("objective is required", "objective")
	}

	mode := types.Mode(strings.TrimSpace(req.Mode))
	switch mode {
	case types.ModePredefined, types.ModeDynamic:
	case "":
		mode = types.ModePredefined
	default:
		return nil, core.NewInvalidRequestErrorWithParam("mode must be predefined or dynamic", "mode")
	}

	difficulty := types.Difficulty(strings.TrimSpace(req.Difficulty))
	switch difficulty {
	case types.DifficultyLow, types.DifficultyMedium, types.DifficultyHigh:
	case "":
		difficulty = types.DifficultyMedium
	default:
		return nil, core.NewInvalidRequestErrorWithParam("difficulty must be low, medium, or high", "difficulty")
	}

	if req.QuestionCount < 0 {
		return nil, core.NewInvalidRequestErrorWithParam("question_count must be >= 0", "question_count")
	}

	switch mode {
	case types.ModeDynamic:
		if req.QuestionCount == 0 {
			return nil, core.NewInvalidRequestErrorWithParam("dynamic interviews require question_count > 0", "question_count")
		}
	case types.ModePredefined:
		if !req.AutoGenerate && len(req.ManualQuestions) == 0 {
			return nil, core.NewInvalidRequestErrorWithParam("predefined interviews need manual_questions or auto_generate", "manual_questions")
		}
		if req.AutoGenerate && req.QuestionCount == 0 {
			return nil, core.NewInvalidRequestErrorWithParam("auto_generate requires question_count > 0", "question_count")
		}
	}

	manual := make([]types.Question, 0, len(req.ManualQuestions))
	for _, q := range req.ManualQuestions {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			continue
		}
		id := strings.TrimSpace(q.ID)
		if id == "" {
			id = uuid.NewString()
		}
		d := q.Difficulty
		if d == "" {
			d = string(difficulty)
		}
		manual = append(manual, types.Question{ID: id, Text: text, Difficulty: d})
	}
	if mode == types.ModePredefined && !req.AutoGenerate && len(manual) == 0 {
		return nil, core.NewInvalidRequestErrorWithParam("manual_questions must contain at least one non-empty question", "manual_questions")
	}

	isOpen := true
	if req.IsOpen != nil {
		isOpen = *req.IsOpen
	}

	return &types.Interview{
		ID:              uuid.NewString(),
		Name:            name,
		Objective:       objective,
		Description:     strings.TrimSpace(req.Description),
		Mode:            mode,
		QuestionCount:   req.QuestionCount,
		AutoGenerate:    req.AutoGenerate,
		Difficulty:      difficulty,
		ContextSummary:  strings.TrimSpace(req.ContextSummary),
		ManualQuestions: manual,
		IsOpen:          isOpen,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// InterviewHandler serves GET /v1/interviews/{id}.
type InterviewHandler struct {
	Store  store.Store
	Logger *slog.Logger
}

func (h InterviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		methodNotAllowed(w, reqID)
		return
	}

	id := r.PathValue("id")
	iv, err := h.Store.Interview(r.Context(), id)
	if err != nil {
		writeErr(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

// InterviewResponsesHandler serves GET /v1/interviews/{id}/responses.
type InterviewResponsesHandler struct {
	Store  store.Store
	Logger *slog.Logger
}

func (h InterviewResponsesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		methodNotAllowed(w, reqID)
		return
	}

	id := r.PathValue("id")
	if _, err := h.Store.Interview(r.Context(), id); err != nil {
		writeErr(w, reqID, err)
		return
	}
	responses, err := h.Store.ResponsesForInterview(r.Context(), id)
	if err != nil {
		writeErr(w, reqID, core.NewCollaboratorError("store", err))
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Responses []*types.Response `json:"responses"`
	}{Responses: responses})
}
