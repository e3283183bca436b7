package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node development.
// Expiry matches the Redis semantics closely enough for the callers: the
// chunk TTL slides on every append, the meta TTL is fixed at write time.
type MemoryStore struct {
	mu       sync.Mutex
	chunks   map[string]*chunkEntry
	meta     map[string]*metaEntry
	chunkTTL time.Duration
	metaTTL  time.Duration
	now      func() time.Time
}

type chunkEntry struct {
	data     [][]byte
	expireAt time.Time
}

type metaEntry struct {
	meta     Meta
	expireAt time.Time
}

func NewMemory(chunkTTL, metaTTL time.Duration) *MemoryStore {
	if chunkTTL <= 0 {
		chunkTTL = DefaultChunkTTL
	}
	if metaTTL <= 0 {
		metaTTL = DefaultMetaTTL
	}
	return &MemoryStore{
		chunks:   make(map[string]*chunkEntry),
		meta:     make(map[string]*metaEntry),
		chunkTTL: chunkTTL,
		metaTTL:  metaTTL,
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, sessionID)
	return nil
}

func (s *MemoryStore) AppendChunk(_ context.Context, sessionID string, chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.chunks[sessionID]
	if e == nil || s.now().After(e.expireAt) {
		e = &chunkEntry{}
		s.chunks[sessionID] = e
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	e.data = append(e.data, buf)
	e.expireAt = s.now().Add(s.chunkTTL)
	return nil
}

func (s *MemoryStore) Chunks(_ context.Context, sessionID string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.chunks[sessionID]
	if e == nil || s.now().After(e.expireAt) {
		return nil, nil
	}
	out := make([][]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

func (s *MemoryStore) SetMeta(_ context.Context, sessionID string, meta Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[sessionID] = &metaEntry{meta: meta, expireAt: s.now().Add(s.metaTTL)}
	return nil
}

func (s *MemoryStore) Meta(_ context.Context, sessionID string) (Meta, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.meta[sessionID]
	if e == nil || s.now().After(e.expireAt) {
		return Meta{}, false, nil
	}
	return e.meta, true, nil
}

func (s *MemoryStore) Destroy(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, sessionID)
	delete(s.meta, sessionID)
	return nil
}
