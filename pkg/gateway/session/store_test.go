package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryChunkOrder(t *testing.T) {
	s := NewMemory(0, 0)
	ctx := context.Background()

	if err := s.Create(ctx, "ws_1_2"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, c := range []string{"a", "b", "c"} {
		if err := s.AppendChunk(ctx, "ws_1_2", []byte(c)); err != nil {
			t.Fatalf("AppendChunk: %v", err)
		}
	}
	chunks, err := s.Chunks(ctx, "ws_1_2")
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(chunks) != 3 || string(chunks[0]) != "a" || string(chunks[2]) != "c" {
		t.Fatalf("chunks = %v", chunks)
	}
}

func TestMemoryCreateResets(t *testing.T) {
	s := NewMemory(0, 0)
	ctx := context.Background()

	s.AppendChunk(ctx, "sid", []byte("stale"))
	s.Create(ctx, "sid")
	chunks, _ := s.Chunks(ctx, "sid")
	if len(chunks) != 0 {
		t.Fatalf("chunks after reset = %v", chunks)
	}
}

func TestMemoryUnknownSessionEmpty(t *testing.T) {
	s := NewMemory(0, 0)
	chunks, err := s.Chunks(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("chunks = %v, want empty", chunks)
	}
}

func TestMemoryMetaRoundTrip(t *testing.T) {
	s := NewMemory(0, 0)
	ctx := context.Background()

	want := Meta{
		InterviewID: "iv-1",
		ResponseID:  "rsp-1",
		Token:       "tok",
		ConnID:      "req_1",
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.SetMeta(ctx, "sid", want); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	got, ok, err := s.Meta(ctx, "sid")
	if err != nil || !ok {
		t.Fatalf("Meta: ok=%v err=%v", ok, err)
	}
	if got.ResponseID != "rsp-1" || got.Token != "tok" || got.ConnID != "req_1" {
		t.Fatalf("meta = %+v", got)
	}

	_, ok, _ = s.Meta(ctx, "other")
	if ok {
		t.Fatal("unknown session should not have meta")
	}
}

func TestMemoryExpiry(t *testing.T) {
	s := NewMemory(time.Minute, time.Hour)
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	s.AppendChunk(ctx, "sid", []byte("x"))
	s.SetMeta(ctx, "sid", Meta{Token: "t"})

	now = now.Add(2 * time.Minute)
	chunks, _ := s.Chunks(ctx, "sid")
	if len(chunks) != 0 {
		t.Fatal("chunks should expire after the chunk TTL")
	}
	if _, ok, _ := s.Meta(ctx, "sid"); !ok {
		t.Fatal("meta should outlive the chunk buffer")
	}

	now = now.Add(2 * time.Hour)
	if _, ok, _ := s.Meta(ctx, "sid"); ok {
		t.Fatal("meta should expire after the meta TTL")
	}
}

func TestMemorySlidingChunkTTL(t *testing.T) {
	s := NewMemory(time.Minute, time.Hour)
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	s.AppendChunk(ctx, "sid", []byte("a"))
	now = now.Add(45 * time.Second)
	s.AppendChunk(ctx, "sid", []byte("b"))
	now = now.Add(45 * time.Second)

	chunks, _ := s.Chunks(ctx, "sid")
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2 (TTL slides on append)", len(chunks))
	}
}

func TestMemoryDestroy(t *testing.T) {
	s := NewMemory(0, 0)
	ctx := context.Background()

	s.AppendChunk(ctx, "sid", []byte("x"))
	s.SetMeta(ctx, "sid", Meta{Token: "t"})
	s.Destroy(ctx, "sid")

	chunks, _ := s.Chunks(ctx, "sid")
	if len(chunks) != 0 {
		t.Fatal("chunks survived Destroy")
	}
	if _, ok, _ := s.Meta(ctx, "sid"); ok {
		t.Fatal("meta survived Destroy")
	}
}

func TestMemoryConcurrentAppends(t *testing.T) {
	s := NewMemory(0, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AppendChunk(ctx, "sid", []byte("c"))
		}()
	}
	wg.Wait()

	chunks, _ := s.Chunks(ctx, "sid")
	if len(chunks) != 20 {
		t.Fatalf("chunks = %d, want 20", len(chunks))
	}
}
