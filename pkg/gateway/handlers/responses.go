package handlers

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hireloop/interview-gateway/pkg/core"
	"github.com/hireloop/interview-gateway/pkg/core/types"
	"github.com/hireloop/interview-gateway/pkg/gateway/config"
	"github.com/hireloop/interview-gateway/pkg/gateway/interview"
	"github.com/hireloop/interview-gateway/pkg/gateway/metrics"
	"github.com/hireloop/interview-gateway/pkg/gateway/mw"
	"github.com/hireloop/interview-gateway/pkg/gateway/store"
)

// StartHandler serves POST /v1/interviews/{id}/start: it opens a response
// and issues the capture session credentials.
type StartHandler struct {
	Config    config.Config
	Lifecycle *interview.Lifecycle
	Logger    *slog.Logger
}

func (h StartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodPost {
		methodNotAllowed(w, reqID)
		return
	}

	var req struct {
		CandidateName  string `json:"candidate_name"`
		CandidateEmail string `json:"candidate_email"`
	}
	if err := decodeBody(w, r, h.Config.MaxBodyBytes, &req, true); err != nil {
		writeErr(w, reqID, err)
		return
	}

	res, err := h.Lifecycle.Start(r.Context(), r.PathValue("id"), strings.TrimSpace(req.CandidateName), strings.TrimSpace(req.CandidateEmail))
	if err != nil {
		writeErr(w, reqID, err)
		return
	}

	h.Logger.Info("response started",
		"request_id", reqID,
		"interview_id", r.PathValue("id"),
		"response_id", res.ResponseID,
	)
	writeJSON(w, http.StatusCreated, res)
}

// QuestionHandler serves POST /v1/responses/{id}/question: it returns the
// current question, generating it first in dynamic mode.
type QuestionHandler struct {
	Config  config.Config
	Flow    *interview.Flow
	Store   store.Store
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func (h QuestionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodPost {
		methodNotAllowed(w, reqID)
		return
	}

	var req struct {
		WithAudio bool `json:"with_audio"`
	}
	if err := decodeBody(w, r, h.Config.MaxBodyBytes, &req, true); err != nil {
		writeErr(w, reqID, err)
		return
	}

	responseID := r.PathValue("id")
	next, err := h.Flow.Next(r.Context(), responseID, req.WithAudio)
	if err != nil {
		writeErr(w, reqID, err)
		return
	}

	if h.Metrics != nil && !next.Completed {
		mode := "predefined"
		if rsp, rerr := h.Store.Response(r.Context(), responseID); rerr == nil {
			if iv, ierr := h.Store.Interview(r.Context(), rsp.InterviewID); ierr == nil {
				mode = string(iv.Mode)
			}
		}
		h.Metrics.RecordQuestionServed(mode)
	}

	type questionResp struct {
		Question    *types.Question `json:"question,omitempty"`
		Index       int             `json:"index"`
		Total       int             `json:"total"`
		Completed   bool            `json:"completed"`
		AudioB64    string          `json:"audio_b64,omitempty"`
		AudioFormat string          `json:"audio_format,omitempty"`
	}
	resp := questionResp{
		Question:    next.Question,
		Index:       next.Index,
		Total:       next.Total,
		Completed:   next.Completed,
		AudioFormat: next.AudioFormat,
	}
	if len(next.Audio) > 0 {
		resp.AudioB64 = base64.StdEncoding.EncodeToString(next.Audio)
	}
	writeJSON(w, http.StatusOK, resp)
}

// AnswerHandler serves POST /v1/responses/{id}/answer.
type AnswerHandler struct {
	Config  config.Config
	Intake  *interview.Intake
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func (h AnswerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodPost {
		methodNotAllowed(w, reqID)
		return
	}

	var req struct {
		Answer string `json:"answer"`
	}
	if err := decodeBody(w, r, h.Config.MaxBodyBytes, &req, false); err != nil {
		writeErr(w, reqID, err)
		return
	}
	if strings.TrimSpace(req.Answer) == "" {
		writeErr(w, reqID, core.NewInvalidRequestErrorWithParam("answer is required", "answer"))
		return
	}

	res, err := h.Intake.Submit(r.Context(), r.PathValue("id"), req.Answer)
	if err != nil {
		writeErr(w, reqID, err)
		return
	}

	if h.Metrics != nil {
		h.Metrics.RecordAnswerSubmitted()
		if res.Completed {
			h.Metrics.RecordResponseScored(string(res.Status))
		}
	}

	type answerResp struct {
		Index     int                      `json:"index"`
		Total     int                      `json:"total"`
		Completed bool                     `json:"completed"`
		Analysis  *types.AnswerAnalysis    `json:"analysis,omitempty"`
		Overall   *types.AggregateAnalysis `json:"overall_analysis,omitempty"`
		Status    types.Status             `json:"status"`
	}
	writeJSON(w, http.StatusOK, answerResp{
		Index:     res.Index,
		Total:     res.Total,
		Completed: res.Completed,
		Analysis:  res.Analysis,
		Overall:   res.Overall,
		Status:    res.Status,
	})
}

// EndHandler serves POST /v1/responses/{id}/end: it finalizes the response
// early and tears down its capture session. The buffered audio transcript,
// when one exists, is returned so callers can record it.
type EndHandler struct {
	Config    config.Config
	Intake    *interview.Intake
	Lifecycle *interview.Lifecycle
	Store     store.Store
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

func (h EndHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodPost {
		methodNotAllowed(w, reqID)
		return
	}

	responseID := r.PathValue("id")
	rsp, err := h.Intake.Finish(r.Context(), responseID)
	if err != nil {
		writeErr(w, reqID, err)
		return
	}

	var transcript string
	if rsp.SessionID != "" {
		transcript, err = h.Lifecycle.End(r.Context(), rsp.SessionID, h.Config.STTLanguage)
		if err != nil {
			// The response is already finalized; a transcription failure
			// only loses the audio transcript.
			h.Logger.Warn("session end transcription failed",
				"request_id", reqID,
				"response_id", responseID,
				"error", err,
			)
		}
	}

	if h.Metrics != nil {
		h.Metrics.RecordResponseScored(string(rsp.Status))
	}

	type endResp struct {
		Response   *types.Response `json:"response"`
		Transcript string          `json:"transcript,omitempty"`
	}
	writeJSON(w, http.StatusOK, endResp{Response: rsp, Transcript: transcript})
}

// ResponseHandler serves GET /v1/responses/{id}.
type ResponseHandler struct {
	Store  store.Store
	Logger *slog.Logger
}

func (h ResponseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		methodNotAllowed(w, reqID)
		return
	}

	rsp, err := h.Store.Response(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, rsp)
}

// StatusHandler serves POST /v1/responses/{id}/status: a manual status set
// by a reviewer, which pins the status against later automatic scoring.
type StatusHandler struct {
	Config config.Config
	Intake *interview.Intake
	Logger *slog.Logger
}

func (h StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodPost {
		methodNotAllowed(w, reqID)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeBody(w, r, h.Config.MaxBodyBytes, &req, false); err != nil {
		writeErr(w, reqID, err)
		return
	}
	if !types.ValidStatus(req.Status) {
		writeErr(w, reqID, core.NewInvalidRequestErrorWithParam("status must be selected, potential, or not_selected", "status"))
		return
	}

	rsp, err := h.Intake.SetStatus(r.Context(), r.PathValue("id"), types.Status(req.Status))
	if err != nil {
		writeErr(w, reqID, err)
		return
	}

	h.Logger.Info("response status set",
		"request_id", reqID,
		"response_id", rsp.ID,
		"status", rsp.Status,
	)
	writeJSON(w, http.StatusOK, rsp)
}

// decodeBody reads and unmarshals a JSON body. When optional is true an
// empty body decodes to the zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, v any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return core.NewInvalidRequestError("failed to read request body")
	}
	if len(body) == 0 {
		if optional {
			return nil
		}
		return core.NewInvalidRequestError("request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return core.NewInvalidRequestError("invalid json body")
	}
	return nil
}
