package interview

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hireloop/interview-gateway/pkg/core"
	"github.com/hireloop/interview-gateway/pkg/core/types"
	"github.com/hireloop/interview-gateway/pkg/gateway/session"
	"github.com/hireloop/interview-gateway/pkg/gateway/store"
)

func newLifecycle(st store.Store, sessions session.Store, sttFake *fakeSTT) *Lifecycle {
	tr := NewTranscriber(sessions, sttFake, testLogger())
	return NewLifecycle(st, sessions, tr, testLogger())
}

func seedOpenInterview(t *testing.T, st store.Store) {
	t.Helper()
	iv := &types.Interview{ID: "iv-1", Mode: types.ModeDynamic, QuestionCount: 3, IsOpen: true, CreatedAt: time.Now()}
	if err := st.CreateInterview(context.Background(), iv); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestStartIssuesSession(t *testing.T) {
	st := store.NewMemory()
	sessions := session.NewMemory(0, 0)
	seedOpenInterview(t, st)
	lc := newLifecycle(st, sessions, &fakeSTT{})

	res, err := lc.Start(context.Background(), "iv-1", "Ada", "ada@example.com")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !strings.HasPrefix(res.SessionID, "ws_iv-1_") {
		t.Fatalf("session id = %q", res.SessionID)
	}
	if res.SessionToken == "" || res.Mode != types.ModeDynamic {
		t.Fatalf("res = %+v", res)
	}

	meta, ok, _ := sessions.Meta(context.Background(), res.SessionID)
	if !ok || meta.ResponseID != res.ResponseID || meta.Token != res.SessionToken {
		t.Fatalf("meta = %+v ok=%v", meta, ok)
	}

	rsp, err := st.Response(context.Background(), res.ResponseID)
	if err != nil {
		t.Fatalf("response not persisted: %v", err)
	}
	if rsp.CandidateName != "Ada" || rsp.SessionID != res.SessionID {
		t.Fatalf("rsp = %+v", rsp)
	}
}

func TestStartTokensAreUnique(t *testing.T) {
	st := store.NewMemory()
	sessions := session.NewMemory(0, 0)
	seedOpenInterview(t, st)
	lc := newLifecycle(st, sessions, &fakeSTT{})

	a, _ := lc.Start(context.Background(), "iv-1", "", "")
	b, _ := lc.Start(context.Background(), "iv-1", "", "")
	if a.SessionToken == b.SessionToken {
		t.Fatal("tokens must be unique per session")
	}
}

func TestStartClosedInterview(t *testing.T) {
	st := store.NewMemory()
	st.CreateInterview(context.Background(), &types.Interview{ID: "iv-1", IsOpen: false})
	lc := newLifecycle(st, session.NewMemory(0, 0), &fakeSTT{})

	_, err := lc.Start(context.Background(), "iv-1", "", "")
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrStateConflict {
		t.Fatalf("err = %v, want state_conflict", err)
	}
}

func TestAttachValidation(t *testing.T) {
	st := store.NewMemory()
	sessions := session.NewMemory(0, 0)
	seedOpenInterview(t, st)
	lc := newLifecycle(st, sessions, &fakeSTT{})
	ctx := context.Background()

	res, _ := lc.Start(ctx, "iv-1", "", "")

	if err := lc.Attach(ctx, res.SessionID, res.ResponseID, res.SessionToken, "conn-1"); err != nil {
		t.Fatalf("valid attach: %v", err)
	}
	if err := lc.Attach(ctx, "ws_nope_nope", res.ResponseID, res.SessionToken, "conn-1"); err == nil {
		t.Fatal("unknown session must be rejected")
	}
	if err := lc.Attach(ctx, res.SessionID, "other-response", res.SessionToken, "conn-1"); err == nil {
		t.Fatal("mismatched response must be rejected")
	}
	if err := lc.Attach(ctx, res.SessionID, res.ResponseID, "wrong-token", "conn-1"); err == nil {
		t.Fatal("wrong token must be rejected")
	}
}

func TestAttachBindsConnectionID(t *testing.T) {
	st := store.NewMemory()
	sessions := session.NewMemory(0, 0)
	seedOpenInterview(t, st)
	lc := newLifecycle(st, sessions, &fakeSTT{})
	ctx := context.Background()

	res, _ := lc.Start(ctx, "iv-1", "", "")

	meta, _, _ := sessions.Meta(ctx, res.SessionID)
	if meta.ConnID != "" {
		t.Fatalf("conn id before attach = %q, want empty", meta.ConnID)
	}

	if err := lc.Attach(ctx, res.SessionID, res.ResponseID, "wrong-token", "req_rejected"); err == nil {
		t.Fatal("wrong token must be rejected")
	}
	meta, _, _ = sessions.Meta(ctx, res.SessionID)
	if meta.ConnID != "" {
		t.Fatalf("rejected attach must not bind, conn id = %q", meta.ConnID)
	}

	if err := lc.Attach(ctx, res.SessionID, res.ResponseID, res.SessionToken, "req_abc123"); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	meta, ok, _ := sessions.Meta(ctx, res.SessionID)
	if !ok || meta.ConnID != "req_abc123" {
		t.Fatalf("meta = %+v ok=%v, want conn id bound", meta, ok)
	}
	if meta.Token != res.SessionToken || meta.ResponseID != res.ResponseID {
		t.Fatalf("binding must preserve the rest of the metadata, meta = %+v", meta)
	}
}

func TestEndTranscribesAndDestroys(t *testing.T) {
	st := store.NewMemory()
	sessions := session.NewMemory(0, 0)
	seedOpenInterview(t, st)
	sttFake := &fakeSTT{text: "hello"}
	lc := newLifecycle(st, sessions, sttFake)
	ctx := context.Background()

	res, _ := lc.Start(ctx, "iv-1", "", "")
	sessions.AppendChunk(ctx, res.SessionID, wavPayload())

	got, err := lc.End(ctx, res.SessionID, "")
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if got != "hello" {
		t.Fatalf("transcript = %q", got)
	}
	if _, ok, _ := sessions.Meta(ctx, res.SessionID); ok {
		t.Fatal("session state must be destroyed on end")
	}
}

func TestEndDestroysEvenWhenTranscriptionFails(t *testing.T) {
	st := store.NewMemory()
	sessions := session.NewMemory(0, 0)
	seedOpenInterview(t, st)
	lc := newLifecycle(st, sessions, &fakeSTT{err: errDown})
	ctx := context.Background()

	res, _ := lc.Start(ctx, "iv-1", "", "")
	sessions.AppendChunk(ctx, res.SessionID, wavPayload())

	if _, err := lc.End(ctx, res.SessionID, ""); err == nil {
		t.Fatal("expected transcription error")
	}
	if _, ok, _ := sessions.Meta(ctx, res.SessionID); ok {
		t.Fatal("session state must be destroyed despite the failure")
	}
}

func TestTranscribeEmptyBuffer(t *testing.T) {
	sessions := session.NewMemory(0, 0)
	sttFake := &fakeSTT{text: "never"}
	tr := NewTranscriber(sessions, sttFake, testLogger())

	got, err := tr.TranscribeSession(context.Background(), "empty", "")
	if err != nil {
		t.Fatalf("TranscribeSession: %v", err)
	}
	if got != "" {
		t.Fatalf("transcript = %q, want empty", got)
	}
	if sttFake.calls.Load() != 0 {
		t.Fatal("empty buffer must not hit the provider")
	}
}

func TestTranscribeUndecodableAudio(t *testing.T) {
	sessions := session.NewMemory(0, 0)
	tr := NewTranscriber(sessions, &fakeSTT{}, testLogger())
	ctx := context.Background()

	sessions.AppendChunk(ctx, "sid", []byte("not audio at all"))
	if _, err := tr.TranscribeSession(ctx, "sid", ""); err == nil {
		t.Fatal("undecodable audio must fail the attempt")
	}
	// The buffer is untouched, a later retry is possible.
	chunks, _ := sessions.Chunks(ctx, "sid")
	if len(chunks) != 1 {
		t.Fatal("failed attempt must not consume the buffer")
	}
}
