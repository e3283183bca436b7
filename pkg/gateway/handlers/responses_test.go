package handlers

import (
	"context"
	"net/http"
	"testing"
)

func TestStart_IssuesSessionCredentials(t *testing.T) {
	env := newTestEnv(t)
	iv := env.createInterview(t, manualInterviewBody)
	got := env.startResponse(t, iv["id"].(string))

	for _, key := range []string{"response_id", "session_id", "session_token"} {
		if s, _ := got[key].(string); s == "" {
			t.Fatalf("%s is empty: %v", key, got)
		}
	}
	if got["mode"] != "predefined" {
		t.Fatalf("mode=%v, want predefined", got["mode"])
	}
}

func TestStart_ClosedInterviewIs409(t *testing.T) {
	env := newTestEnv(t)
	iv := env.createInterview(t, `{
		"name": "Closed",
		"objective": "o",
		"is_open": false,
		"manual_questions": [{"text": "q"}]
	}`)

	h := StartHandler{Config: env.cfg, Lifecycle: env.lifecycle, Logger: testLogger()}
	rr := doJSON(t, h, http.MethodPost, "/v1/interviews/x/start", "{}", iv["id"].(string))
	if rr.Code != http.StatusConflict {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestStart_UnknownInterviewIs404(t *testing.T) {
	env := newTestEnv(t)
	h := StartHandler{Config: env.cfg, Lifecycle: env.lifecycle, Logger: testLogger()}

	rr := doJSON(t, h, http.MethodPost, "/v1/interviews/missing/start", "{}", "missing")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestQuestionAnswer_PredefinedWalk(t *testing.T) {
	env := newTestEnv(t)
	iv := env.createInterview(t, manualInterviewBody)
	start := env.startResponse(t, iv["id"].(string))
	respID := start["response_id"].(string)

	qh := QuestionHandler{Config: env.cfg, Flow: env.flow, Store: env.store, Logger: testLogger()}
	ah := AnswerHandler{Config: env.cfg, Intake: env.intake, Logger: testLogger()}

	// First question at index 0.
	rr := doJSON(t, qh, http.MethodPost, "/v1/responses/x/question", "", respID)
	if rr.Code != http.StatusOK {
		t.Fatalf("question: status=%d body=%q", rr.Code, rr.Body.String())
	}
	q1 := decodeMap(t, rr)
	if q1["index"].(float64) != 0 || q1["completed"].(bool) {
		t.Fatalf("first fetch: %v", q1)
	}

	// Re-fetch without answering returns the same question.
	rr = doJSON(t, qh, http.MethodPost, "/v1/responses/x/question", "", respID)
	again := decodeMap(t, rr)
	if again["index"].(float64) != 0 {
		t.Fatalf("re-fetch advanced the index: %v", again)
	}

	// Answer advances to index 1.
	rr = doJSON(t, ah, http.MethodPost, "/v1/responses/x/answer", `{"answer":"lightweight thread"}`, respID)
	if rr.Code != http.StatusOK {
		t.Fatalf("answer: status=%d body=%q", rr.Code, rr.Body.String())
	}
	a1 := decodeMap(t, rr)
	if a1["index"].(float64) != 1 || a1["completed"].(bool) {
		t.Fatalf("first answer: %v", a1)
	}

	// Final answer completes and carries the aggregate status.
	rr = doJSON(t, ah, http.MethodPost, "/v1/responses/x/answer", `{"answer":"send vs receive"}`, respID)
	a2 := decodeMap(t, rr)
	if !a2["completed"].(bool) {
		t.Fatalf("second answer should complete: %v", a2)
	}
	if a2["status"] != "selected" {
		t.Fatalf("status=%v, want selected for score 85", a2["status"])
	}
	if a2["overall_analysis"] == nil {
		t.Fatalf("missing overall analysis: %v", a2)
	}

	// The walk is over: the next fetch reports completion.
	rr = doJSON(t, qh, http.MethodPost, "/v1/responses/x/question", "", respID)
	done := decodeMap(t, rr)
	if !done["completed"].(bool) {
		t.Fatalf("expected completion marker: %v", done)
	}
}

func TestAnswer_EmptyRejected(t *testing.T) {
	env := newTestEnv(t)
	iv := env.createInterview(t, manualInterviewBody)
	start := env.startResponse(t, iv["id"].(string))

	h := AnswerHandler{Config: env.cfg, Intake: env.intake, Logger: testLogger()}
	rr := doJSON(t, h, http.MethodPost, "/v1/responses/x/answer", `{"answer":"   "}`, start["response_id"].(string))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if p := errorField(t, rr, "param"); p != "answer" {
		t.Fatalf("param=%q, want answer", p)
	}
}

func TestAnswer_AfterCompletionIs409(t *testing.T) {
	env := newTestEnv(t)
	iv := env.createInterview(t, `{"name":"n","objective":"o","manual_questions":[{"text":"only"}]}`)
	start := env.startResponse(t, iv["id"].(string))
	respID := start["response_id"].(string)

	h := AnswerHandler{Config: env.cfg, Intake: env.intake, Logger: testLogger()}
	rr := doJSON(t, h, http.MethodPost, "/v1/responses/x/answer", `{"answer":"done"}`, respID)
	if rr.Code != http.StatusOK {
		t.Fatalf("first answer: status=%d body=%q", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodPost, "/v1/responses/x/answer", `{"answer":"extra"}`, respID)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestEnd_FinalizesAndReturnsTranscript(t *testing.T) {
	env := newTestEnv(t)
	iv := env.createInterview(t, manualInterviewBody)
	start := env.startResponse(t, iv["id"].(string))
	respID := start["response_id"].(string)
	sessionID := start["session_id"].(string)

	if err := env.sessions.AppendChunk(context.Background(), sessionID, wavPayload()); err != nil {
		t.Fatalf("append chunk: %v", err)
	}

	h := EndHandler{Config: env.cfg, Intake: env.intake, Lifecycle: env.lifecycle, Store: env.store, Logger: testLogger()}
	rr := doJSON(t, h, http.MethodPost, "/v1/responses/x/end", "", respID)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	m := decodeMap(t, rr)
	rsp, _ := m["response"].(map[string]any)
	if done, _ := rsp["completed"].(bool); !done {
		t.Fatalf("response not completed: %v", rsp)
	}
	if m["transcript"] != "hello" {
		t.Fatalf("transcript=%v, want hello", m["transcript"])
	}

	// The capture session is gone.
	if _, ok, _ := env.sessions.Meta(context.Background(), sessionID); ok {
		t.Fatalf("session meta survived end")
	}
}

func TestEnd_TranscriptionFailureStillFinalizes(t *testing.T) {
	env := newTestEnv(t)
	iv := env.createInterview(t, manualInterviewBody)
	start := env.startResponse(t, iv["id"].(string))
	respID := start["response_id"].(string)
	sessionID := start["session_id"].(string)

	if err := env.sessions.AppendChunk(context.Background(), sessionID, wavPayload()); err != nil {
		t.Fatalf("append chunk: %v", err)
	}
	logger := testLogger()
	// Rebuild the lifecycle around a failing transcriber.
	env.lifecycle = newLifecycleWithSTT(env, &fakeSTT{err: errDown}, logger)

	h := EndHandler{Config: env.cfg, Intake: env.intake, Lifecycle: env.lifecycle, Store: env.store, Logger: logger}
	rr := doJSON(t, h, http.MethodPost, "/v1/responses/x/end", "", respID)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	m := decodeMap(t, rr)
	if tr, _ := m["transcript"].(string); tr != "" {
		t.Fatalf("transcript=%q, want empty on failure", tr)
	}
	if _, ok, _ := env.sessions.Meta(context.Background(), sessionID); ok {
		t.Fatalf("session state must be destroyed even when transcription fails")
	}
}

func TestStatus_ManualDecisionSticks(t *testing.T) {
	env := newTestEnv(t)
	iv := env.createInterview(t, `{"name":"n","objective":"o","manual_questions":[{"text":"only"}]}`)
	start := env.startResponse(t, iv["id"].(string))
	respID := start["response_id"].(string)

	sh := StatusHandler{Config: env.cfg, Intake: env.intake, Logger: testLogger()}
	rr := doJSON(t, sh, http.MethodPost, "/v1/responses/x/status", `{"status":"not_selected"}`, respID)
	if rr.Code != http.StatusOK {
		t.Fatalf("status set: status=%d body=%q", rr.Code, rr.Body.String())
	}

	// Completing with a high aggregate score must not override the manual
	// decision.
	ah := AnswerHandler{Config: env.cfg, Intake: env.intake, Logger: testLogger()}
	rr = doJSON(t, ah, http.MethodPost, "/v1/responses/x/answer", `{"answer":"done"}`, respID)
	a := decodeMap(t, rr)
	if a["status"] != "not_selected" {
		t.Fatalf("status=%v, want manual not_selected to stick", a["status"])
	}
}

func TestStatus_RejectsUnknownValue(t *testing.T) {
	env := newTestEnv(t)
	h := StatusHandler{Config: env.cfg, Intake: env.intake, Logger: testLogger()}

	rr := doJSON(t, h, http.MethodPost, "/v1/responses/x/status", `{"status":"maybe"}`, "whatever")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestResponse_GetNotFound(t *testing.T) {
	env := newTestEnv(t)
	h := ResponseHandler{Store: env.store, Logger: testLogger()}

	rr := doJSON(t, h, http.MethodGet, "/v1/responses/missing", "", "missing")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}
