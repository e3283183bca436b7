package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestElevenLabsSynthesize(t *testing.T) {
	var gotKey, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("xi-api-key")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	p := NewElevenLabsWithClient("test-key", "voice-1", srv.Client()).WithBaseURL(srv.URL)
	syn, err := p.Synthesize(context.Background(), "hello", SynthesizeOptions{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(syn.Audio, []byte("mp3-bytes")) {
		t.Fatalf("audio = %q", syn.Audio)
	}
	if syn.Format != "mp3" {
		t.Fatalf("format = %q", syn.Format)
	}
	if gotKey != "test-key" {
		t.Fatalf("api key header = %q", gotKey)
	}
	if !strings.Contains(gotPath, "/text-to-speech/voice-1/stream") {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["text"] != "hello" {
		t.Fatalf("body text = %v", gotBody["text"])
	}
}

func TestElevenLabsEmptyText(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	p := NewElevenLabsWithClient("k", "", srv.Client()).WithBaseURL(srv.URL)
	syn, err := p.Synthesize(context.Background(), "   ", SynthesizeOptions{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(syn.Audio) != 0 {
		t.Fatalf("audio = %q, want empty", syn.Audio)
	}
	if called {
		t.Fatal("empty text must not hit the provider")
	}
}

func TestElevenLabsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewElevenLabsWithClient("k", "", srv.Client()).WithBaseURL(srv.URL)
	if _, err := p.Synthesize(context.Background(), "hi", SynthesizeOptions{}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestElevenLabsDefaultVoice(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	p := NewElevenLabsWithClient("k", "", srv.Client()).WithBaseURL(srv.URL)
	if _, err := p.Synthesize(context.Background(), "hi", SynthesizeOptions{}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.Contains(gotPath, elevenLabsDefaultVoice) {
		t.Fatalf("path = %q, want default voice", gotPath)
	}
}
