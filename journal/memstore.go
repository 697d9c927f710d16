package journal

import (
	"context"
	"sync"
)

// MemStore is a thread-safe in-memory journal store.
type MemStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemStore creates a new in-memory journal store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *MemStore) List(_ context.Context, afterSeq uint64, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Record
	for _, rec := range s.records {
		if afterSeq > 0 && rec.Seq <= afterSeq {
			continue
		}
		result = append(result, rec)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *MemStore) LatestSeq(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var maxSeq uint64
	for _, rec := range s.records {
		if rec.Seq > maxSeq {
			maxSeq = rec.Seq
		}
	}
	return maxSeq, nil
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)
