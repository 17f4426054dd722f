package usagestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/aiwriterpros/aiwriter/internal/repository"
	"github.com/google/uuid"
)

// PostgresStore keeps usage records in the usage_records table.
type PostgresStore struct {
	queries *repository.Queries
}

// NewPostgresStore creates a PostgresStore over sqlc-generated queries.
func NewPostgresStore(queries *repository.Queries) *PostgresStore {
	return &PostgresStore{queries: queries}
}

func (s *PostgresStore) Get(ctx context.Context, userID uuid.UUID) (*domain.UsageRecord, error) {
	row, err := s.queries.GetUsageRecord(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get usage record: %w", err)
	}
	return repoUsageToDomain(row), nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec *domain.UsageRecord) (*domain.UsageRecord, error) {
	row, err := s.queries.InsertUsageRecord(ctx, repository.InsertUsageRecordParams{
		UserID:             rec.UserID,
		Plan:               rec.Plan.String(),
		IsTrialActive:      rec.IsTrialActive,
		TrialStartedAt:     domain.ToNullTime(rec.TrialStartedAt),
		TrialEndsAt:        domain.ToNullTime(rec.TrialEndsAt),
		WordsUsedThisMonth: rec.WordsUsedThisMonth,
		WordLimit:          domain.ToNullInt64(rec.WordLimit.Ptr()),
		GenerationsToday:   rec.GenerationsToday,
		GenerationLimit:    domain.ToNullInt64(rec.GenerationLimit.Ptr()),
		LastGenerationDate: domain.DateOf(rec.LastGenerationDate),
		LastWordReset:      domain.DateOf(rec.LastWordReset),
		CreatedAt:          nullTimeUnlessZero(rec.CreatedAt),
		UpdatedAt:          nullTimeUnlessZero(rec.UpdatedAt),
	})
	if err != nil {
		// ON CONFLICT DO NOTHING returns no row.
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert usage record: %w", err)
	}
	return repoUsageToDomain(row), nil
}

func (s *PostgresStore) Update(ctx context.Context, userID uuid.UUID, expectedVersion int64, patch domain.UsagePatch) (*domain.UsageRecord, error) {
	row, err := s.queries.UpdateUsageRecord(ctx, patchToParams(userID, expectedVersion, patch))
	if err == nil {
		return repoUsageToDomain(row), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update usage record: %w", err)
	}

	// No row matched: either the record is gone or the version moved on.
	if _, getErr := s.Get(ctx, userID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrVersionConflict
}

func patchToParams(userID uuid.UUID, version int64, p domain.UsagePatch) repository.UpdateUsageRecordParams {
	params := repository.UpdateUsageRecordParams{
		TrialStartedAt:     domain.ToNullTime(p.TrialStartedAt),
		TrialEndsAt:        domain.ToNullTime(p.TrialEndsAt),
		WordsUsedThisMonth: domain.ToNullInt64(p.WordsUsedThisMonth),
		GenerationsToday:   domain.ToNullInt64(p.GenerationsToday),
		UpdatedAt:          domain.ToNullTime(p.UpdatedAt),
		UserID:             userID,
		Version:            version,
	}
	if p.Plan != nil {
		params.Plan = sql.NullString{String: p.Plan.String(), Valid: true}
	}
	if p.IsTrialActive != nil {
		params.IsTrialActive = sql.NullBool{Bool: *p.IsTrialActive, Valid: true}
	}
	if p.WordLimit != nil {
		params.SetWordLimit = true
		params.WordLimit = domain.ToNullInt64(p.WordLimit.Ptr())
	}
	if p.GenerationLimit != nil {
		params.SetGenerationLimit = true
		params.GenerationLimit = domain.ToNullInt64(p.GenerationLimit.Ptr())
	}
	if p.LastGenerationDate != nil {
		params.LastGenerationDate = sql.NullTime{Time: domain.DateOf(*p.LastGenerationDate), Valid: true}
	}
	if p.LastWordReset != nil {
		params.LastWordReset = sql.NullTime{Time: domain.DateOf(*p.LastWordReset), Valid: true}
	}
	return params
}

// nullTimeUnlessZero lets the database default fill an unset timestamp.
func nullTimeUnlessZero(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// repoUsageToDomain converts a repository.UsageRecord to domain.UsageRecord.
func repoUsageToDomain(r repository.UsageRecord) *domain.UsageRecord {
	return &domain.UsageRecord{
		UserID:             r.UserID,
		Plan:               domain.PlanTier(r.Plan),
		IsTrialActive:      r.IsTrialActive,
		TrialStartedAt:     domain.NullTimeValue(r.TrialStartedAt),
		TrialEndsAt:        domain.NullTimeValue(r.TrialEndsAt),
		WordsUsedThisMonth: r.WordsUsedThisMonth,
		WordLimit:          domain.LimitFromPtr(domain.NullInt64Value(r.WordLimit)),
		GenerationsToday:   r.GenerationsToday,
		GenerationLimit:    domain.LimitFromPtr(domain.NullInt64Value(r.GenerationLimit)),
		LastGenerationDate: domain.DateOf(r.LastGenerationDate),
		LastWordReset:      domain.DateOf(r.LastWordReset),
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}
