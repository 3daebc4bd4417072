package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nvandessel/sdrsweep/internal/models"
)

// InMemoryResultStore implements ResultStore for testing and development.
type InMemoryResultStore struct {
	mu      sync.RWMutex
	results map[string]models.Result
}

// NewInMemoryResultStore creates an empty store.
func NewInMemoryResultStore() *InMemoryResultStore {
	return &InMemoryResultStore{results: make(map[string]models.Result)}
}

// Save inserts res.
func (s *InMemoryResultStore) Save(ctx context.Context, res *models.Result) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assignKeys(res)
	if _, exists := s.results[res.RowKey]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicate, res.RowKey)
	}
	s.results[res.RowKey] = *res
	return res.RowKey, nil
}

// Get returns the result stored under rowKey.
func (s *InMemoryResultStore) Get(ctx context.Context, rowKey string) (*models.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.results[rowKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rowKey)
	}
	return &res, nil
}

// List returns up to limit results, newest first.
func (s *InMemoryResultStore) List(ctx context.Context, limit int) ([]models.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Result, 0, len(s.results))
	for _, res := range s.results {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].RowKey < out[j].RowKey
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of stored results.
func (s *InMemoryResultStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results), nil
}

// Close is a no-op.
func (s *InMemoryResultStore) Close() error { return nil }

var _ ResultStore = (*InMemoryResultStore)(nil)
