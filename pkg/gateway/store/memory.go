package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/hireloop/interview-gateway/pkg/core/types"
)

// MemoryStore is an in-process Store for tests and single-node development.
// Records are deep-copied on the way in and out so callers cannot mutate
// stored state through shared slices.
type MemoryStore struct {
	mu         sync.RWMutex
	interviews map[string]*types.Interview
	responses  map[string]*types.Response
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		interviews: make(map[string]*types.Interview),
		responses:  make(map[string]*types.Response),
	}
}

func copyInterview(iv *types.Interview) *types.Interview {
	raw, _ := json.Marshal(iv)
	var out types.Interview
	_ = json.Unmarshal(raw, &out)
	return &out
}

func copyResponse(rsp *types.Response) *types.Response {
	raw, _ := json.Marshal(rsp)
	var out types.Response
	_ = json.Unmarshal(raw, &out)
	return &out
}

func (s *MemoryStore) CreateInterview(_ context.Context, iv *types.Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interviews[iv.ID] = copyInterview(iv)
	return nil
}

func (s *MemoryStore) Interview(_ context.Context, id string) (*types.Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	iv, ok := s.interviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyInterview(iv), nil
}

func (s *MemoryStore) UpdateInterview(_ context.Context, iv *types.Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.interviews[iv.ID]; !ok {
		return ErrNotFound
	}
	s.interviews[iv.ID] = copyInterview(iv)
	return nil
}

func (s *MemoryStore) ListInterviews(_ context.Context) ([]*types.Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Interview, 0, len(s.interviews))
	for _, iv := range s.interviews {
		out = append(out, copyInterview(iv))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) CreateResponse(_ context.Context, rsp *types.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[rsp.ID] = copyResponse(rsp)
	return nil
}

func (s *MemoryStore) Response(_ context.Context, id string) (*types.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rsp, ok := s.responses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyResponse(rsp), nil
}

func (s *MemoryStore) UpdateResponse(_ context.Context, rsp *types.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.responses[rsp.ID]; !ok {
		return ErrNotFound
	}
	s.responses[rsp.ID] = copyResponse(rsp)
	return nil
}

func (s *MemoryStore) ResponsesForInterview(_ context.Context, interviewID string) ([]*types.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Response
	for _, rsp := range s.responses {
		if rsp.InterviewID == interviewID {
			out = append(out, copyResponse(rsp))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Close() {}
