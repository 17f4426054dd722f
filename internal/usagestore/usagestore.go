// Package usagestore persists usage records.
//
// A Store keeps exactly one record per user and supports three operations:
// read, insert-if-absent, and a versioned partial update. The engine relies
// on the version check to serialize concurrent read-modify-write cycles on
// the same user; stores never decide quota policy themselves.
package usagestore

import (
	"context"
	"errors"
	"time"

	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/google/uuid"
)

// Backend names accepted by USAGE_STORE.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

var (
	// ErrNotFound is returned when no record exists for the user.
	ErrNotFound = errors.New("usage record not found")

	// ErrAlreadyExists is returned by Insert when the user already has a record.
	ErrAlreadyExists = errors.New("usage record already exists")

	// ErrVersionConflict is returned by Update when the stored version does
	// not match the expected version.
	ErrVersionConflict = errors.New("usage record version conflict")
)

// Store is the usage record persistence contract.
type Store interface {
	// Get returns the record for userID or ErrNotFound.
	Get(ctx context.Context, userID uuid.UUID) (*domain.UsageRecord, error)

	// Insert stores a new record with version 1 and returns it as stored.
	// It returns ErrAlreadyExists if a record for the user is present.
	Insert(ctx context.Context, rec *domain.UsageRecord) (*domain.UsageRecord, error)

	// Update applies patch if the stored version equals expectedVersion,
	// bumps the version, and returns the updated record. It returns
	// ErrNotFound or ErrVersionConflict otherwise.
	Update(ctx context.Context, userID uuid.UUID, expectedVersion int64, patch domain.UsagePatch) (*domain.UsageRecord, error)
}

// stampInsert fills the timestamps a new record left zero from the wall
// clock.
func stampInsert(rec *domain.UsageRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
}

// applyPatch applies p to rec and bumps its version. UpdatedAt comes from
// the patch, or from the wall clock when the patch carries no write time.
func applyPatch(rec *domain.UsageRecord, p domain.UsagePatch) {
	rec.Apply(p)
	rec.Version++
	if p.UpdatedAt == nil {
		rec.UpdatedAt = time.Now().UTC()
	}
}

// =============================================================================
// Timeout decorator
// =============================================================================

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

// WithTimeout bounds every call on next by d. A non-positive d returns next
// unchanged.
func WithTimeout(next Store, d time.Duration) Store {
	if d <= 0 {
		return next
	}
	return &timeoutStore{next: next, timeout: d}
}

func (s *timeoutStore) Get(ctx context.Context, userID uuid.UUID) (*domain.UsageRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Get(ctx, userID)
}

func (s *timeoutStore) Insert(ctx context.Context, rec *domain.UsageRecord) (*domain.UsageRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Insert(ctx, rec)
}

func (s *timeoutStore) Update(ctx context.Context, userID uuid.UUID, expectedVersion int64, patch domain.UsagePatch) (*domain.UsageRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Update(ctx, userID, expectedVersion, patch)
}
