package store

import (
	"context"
	"slices"
	"sync"

	"github.com/lukemcguire/portalaudit/result"
)

// MemoryStore keeps results in process memory. Nothing survives Close.
type MemoryStore struct {
	mu      sync.Mutex
	results []result.AnalysisResult
	nextID  int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]result.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.results), nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (result.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return result.AnalysisResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return result.AnalysisResult{}, ErrNotFound
	}
	return s.results[i], nil
}

func (s *MemoryStore) InsertMany(ctx context.Context, results []result.AnalysisResult) ([]result.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := make([]result.AnalysisResult, 0, len(results))
	for _, r := range results {
		r.ID = s.nextID
		s.nextID++
		s.results = append(s.results, r)
		inserted = append(inserted, r)
	}
	return inserted, nil
}

func (s *MemoryStore) Update(ctx context.Context, r result.AnalysisResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(r.ID)
	if i < 0 {
		return ErrNotFound
	}
	s.results[i] = r
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	s.results = slices.Delete(s.results, i, i+1)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) indexOf(id int64) int {
	return slices.IndexFunc(s.results, func(r result.AnalysisResult) bool { return r.ID == id })
}
