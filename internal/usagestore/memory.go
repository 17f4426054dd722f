package usagestore

import (
	"context"
	"sync"

	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Records are copied on the way in and
// out so callers never share state with the map.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*domain.UsageRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]*domain.UsageRecord),
	}
}

func (s *MemoryStore) Get(ctx context.Context, userID uuid.UUID) (*domain.UsageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Insert(ctx context.Context, rec *domain.UsageRecord) (*domain.UsageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.UserID]; ok {
		return nil, ErrAlreadyExists
	}

	stored := rec.Clone()
	stored.Version = 1
	stampInsert(stored)
	s.records[rec.UserID] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, userID uuid.UUID, expectedVersion int64, patch domain.UsagePatch) (*domain.UsageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	applyPatch(rec, patch)
	return rec.Clone(), nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
