package handlers

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hireloop/interview-gateway/pkg/core"
	"github.com/hireloop/interview-gateway/pkg/core/llm"
	"github.com/hireloop/interview-gateway/pkg/core/types"
	"github.com/hireloop/interview-gateway/pkg/core/voice/stt"
	"github.com/hireloop/interview-gateway/pkg/gateway/config"
	"github.com/hireloop/interview-gateway/pkg/gateway/interview"
	sessionstore "github.com/hireloop/interview-gateway/pkg/gateway/session"
	"github.com/hireloop/interview-gateway/pkg/gateway/store"
)

var errDown = core.NewCollaboratorError("fake", fmt.Errorf("down"))

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	return config.Config{
		AuthMode:     config.AuthModeDisabled,
		MaxBodyBytes: 1 << 20,
	}
}

// fakeGenerator serves canned questions and scores.
type fakeGenerator struct {
	predefined    *llm.PredefinedResult
	predefinedErr error
	generateErr   error
	sessionScore  int
}

func (f *fakeGenerator) GeneratePredefined(context.Context, llm.PredefinedRequest) (*llm.PredefinedResult, error) {
	if f.predefinedErr != nil {
		return nil, f.predefinedErr
	}
	return f.predefined, nil
}

func (f *fakeGenerator) GenerateOpening(context.Context, string) (types.QuestionResult, error) {
	if f.generateErr != nil {
		return types.QuestionResult{}, f.generateErr
	}
	return types.QuestionResult{
		Kind:      types.QuestionResultSingle,
		Questions: []types.Question{{ID: "open-1", Text: "Tell me about yourself."}},
	}, nil
}

func (f *fakeGenerator) GenerateFollowup(_ context.Context, _ string, history []types.QAPair) (types.QuestionResult, error) {
	if f.generateErr != nil {
		return types.QuestionResult{}, f.generateErr
	}
	return types.QuestionResult{
		Kind:      types.QuestionResultSingle,
		Questions: []types.Question{{ID: fmt.Sprintf("follow-%d", len(history)), Text: "And then?"}},
	}, nil
}

func (f *fakeGenerator) ScoreAnswer(context.Context, string, string) (*types.AnswerAnalysis, error) {
	return &types.AnswerAnalysis{RelevanceScore: 7, OverallScore: 7}, nil
}

func (f *fakeGenerator) ScoreSession(context.Context, llm.SessionScoreRequest) (*types.AggregateAnalysis, error) {
	return &types.AggregateAnalysis{OverallScore: f.sessionScore, OverallFeedback: "ok"}, nil
}

// fakeSTT returns a fixed transcript.
type fakeSTT struct {
	text string
	err  error
}

func (f *fakeSTT) Name() string { return "fake" }

func (f *fakeSTT) Transcribe(context.Context, []byte, stt.TranscribeOptions) (*stt.Transcript, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stt.Transcript{Text: f.text}, nil
}

// testEnv wires the in-memory stores and interview services the handlers
// depend on.
type testEnv struct {
	cfg       config.Config
	store     *store.MemoryStore
	sessions  *sessionstore.MemoryStore
	gen       *fakeGenerator
	flow      *interview.Flow
	intake    *interview.Intake
	lifecycle *interview.Lifecycle
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testLogger()
	cfg := testConfig()
	st := store.NewMemory()
	sessions := sessionstore.NewMemory(time.Hour, 2*time.Hour)
	gen := &fakeGenerator{sessionScore: 85}
	transcriber := interview.NewTranscriber(sessions, &fakeSTT{text: "hello"}, logger)
	return &testEnv{
		cfg:       cfg,
		store:     st,
		sessions:  sessions,
		gen:       gen,
		flow:      interview.NewFlow(st, gen, nil, logger),
		intake:    interview.NewIntake(st, gen, types.DefaultStatusThresholds(), logger),
		lifecycle: interview.NewLifecycle(st, sessions, transcriber, logger),
	}
}

func newLifecycleWithSTT(env *testEnv, provider stt.Provider, logger *slog.Logger) *interview.Lifecycle {
	transcriber := interview.NewTranscriber(env.sessions, provider, logger)
	return interview.NewLifecycle(env.store, env.sessions, transcriber, logger)
}

func (env *testEnv) createInterview(t *testing.T, body string) map[string]any {
	t.Helper()
	h := InterviewsHandler{Config: env.cfg, Store: env.store, Flow: env.flow, Logger: testLogger()}
	rr := doJSON(t, h, http.MethodPost, "/v1/interviews", body, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create interview: status=%d body=%q", rr.Code, rr.Body.String())
	}
	return decodeMap(t, rr)
}

func (env *testEnv) startResponse(t *testing.T, interviewID string) map[string]any {
	t.Helper()
	h := StartHandler{Config: env.cfg, Lifecycle: env.lifecycle, Logger: testLogger()}
	rr := doJSON(t, h, http.MethodPost, "/v1/interviews/"+interviewID+"/start", "{}", interviewID)
	if rr.Code != http.StatusCreated {
		t.Fatalf("start response: status=%d body=%q", rr.Code, rr.Body.String())
	}
	return decodeMap(t, rr)
}

// doJSON invokes a handler directly, filling the {id} path value when set.
func doJSON(t *testing.T, h http.Handler, method, target, body, pathID string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if pathID != "" {
		req.SetPathValue("id", pathID)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

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

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal response: %v (body=%q)", err, rr.Body.String())
	}
	return m
}

func errorField(t *testing.T, rr *httptest.ResponseRecorder, key string) string {
	t.Helper()
	m := decodeMap(t, rr)
	env, ok := m["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error envelope in body %q", rr.Body.String())
	}
	s, _ := env[key].(string)
	return s
}
