// Package service contains the business logic layer.
//
// This file implements the quota engine: it provisions usage records on
// first access, applies the lazy monthly/daily resets and trial expiry on
// every load, and enforces the plan limits when usage is charged.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/aiwriterpros/aiwriter/internal/metrics"
	"github.com/aiwriterpros/aiwriter/internal/usagestore"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// maxUpdateAttempts bounds the read-modify-write loop when the usage record
// keeps changing underneath it.
const maxUpdateAttempts = 3

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaService defines the quota engine operations. Every operation takes
// the user explicitly; there is no ambient current user.
type QuotaService interface {
	// Load returns the user's normalized usage record, provisioning a Free
	// record on first access.
	Load(ctx context.Context, userID uuid.UUID) (*domain.UsageRecord, error)

	// Status returns the normalized record with its derived values.
	Status(ctx context.Context, userID uuid.UUID) (*domain.UsageStatus, error)

	// CanGenerate reports whether the user may start a generation.
	CanGenerate(ctx context.Context, userID uuid.UUID) (bool, error)

	// CanAccessTool reports whether the user's plan unlocks the tool.
	CanAccessTool(ctx context.Context, userID uuid.UUID, tool domain.ToolID) (bool, error)

	// CanUseFeature reports whether the user's plan unlocks the feature.
	CanUseFeature(ctx context.Context, userID uuid.UUID, feature domain.FeatureID) (bool, error)

	// TrackWordUsage charges words to the current month. It returns false,
	// without changing the record, if the plan's word limit would be
	// exceeded.
	TrackWordUsage(ctx context.Context, userID uuid.UUID, words int64) (bool, error)

	// TrackGeneration records one generation today. It returns false if a
	// Free user has used the daily allowance.
	TrackGeneration(ctx context.Context, userID uuid.UUID) (bool, error)

	// StartTrial begins a 7-day trial of a paid plan. It returns false if the
	// target is not a paid plan or the user is not on Free.
	StartTrial(ctx context.Context, userID uuid.UUID, plan domain.PlanTier) (bool, error)

	// ChangePlan applies an externally driven plan change, such as a billing
	// event. Any active trial ends and the plan's catalog limits apply.
	ChangePlan(ctx context.Context, userID uuid.UUID, plan domain.PlanTier) (*domain.UsageRecord, error)
}

// =============================================================================
// Implementation
// =============================================================================

type quotaService struct {
	store  usagestore.Store
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewQuotaService creates a new QuotaService.
//
// Dependencies:
// - store: usage record persistence
// - clock: time source for resets and trial expiry
// - logger: structured logger for operation logging
func NewQuotaService(store usagestore.Store, clock clockwork.Clock, logger *slog.Logger) QuotaService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &quotaService{
		store:  store,
		clock:  clock,
		logger: logger,
	}
}

// decision computes the patch an operation wants to write on top of the
// normalized view of the record. ok=false rejects the operation; the
// normalization is still persisted.
type decision func(view *domain.UsageRecord, now time.Time) (patch domain.UsagePatch, ok bool, err error)

// mutate runs load, normalize, decide and a version-checked write as one
// unit, retrying from a fresh read on version conflicts.
func (s *quotaService) mutate(ctx context.Context, op string, userID uuid.UUID, decide decision) (*domain.UsageRecord, bool, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		now := s.clock.Now().UTC()

		stored, err := s.getOrProvision(ctx, op, userID, now)
		if err != nil {
			return nil, false, err
		}

		norm := stored.Normalize(now)
		view := stored.Clone()
		view.Apply(norm.Patch)

		patch, ok, err := decide(view, now)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			patch = domain.UsagePatch{}
		}

		write := norm.Patch.Merge(patch)
		if write.IsEmpty() {
			return view, ok, nil
		}

		updated, err := s.store.Update(ctx, userID, stored.Version, write.At(now))
		switch {
		case err == nil:
			s.recordNormalization(userID, stored.Plan, norm)
			return updated, ok, nil

		case errors.Is(err, usagestore.ErrVersionConflict):
			metrics.StoreConflict()
			s.logger.Debug("usage record version conflict",
				"op", op,
				"user_id", userID,
				"attempt", attempt,
			)
			continue

		case patch.IsEmpty():
			// Only the normalization failed to persist. The view is still
			// correct for this request; the next load recomputes it.
			s.logger.Warn("failed to persist usage normalization",
				"op", op,
				"user_id", userID,
				"error", err,
			)
			return view, ok, nil

		default:
			return nil, false, domain.Unavailable(err, op, "Usage data is temporarily unavailable")
		}
	}

	return nil, false, domain.Conflict(op, "Usage record is busy. Please try again.")
}

// getOrProvision reads the record, inserting the Free default on first
// access. A concurrent first insert is resolved by re-reading.
func (s *quotaService) getOrProvision(ctx context.Context, op string, userID uuid.UUID, now time.Time) (*domain.UsageRecord, error) {
	rec, err := s.store.Get(ctx, userID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, usagestore.ErrNotFound) {
		return nil, domain.Unavailable(err, op, "Usage data is temporarily unavailable")
	}

	rec, err = s.store.Insert(ctx, domain.NewUsageRecord(userID, now))
	if err == nil {
		s.logger.Info("usage record provisioned", "user_id", userID)
		return rec, nil
	}
	if errors.Is(err, usagestore.ErrAlreadyExists) {
		rec, err = s.store.Get(ctx, userID)
		if err == nil {
			return rec, nil
		}
	}
	return nil, domain.Unavailable(err, op, "Usage data is temporarily unavailable")
}

func (s *quotaService) recordNormalization(userID uuid.UUID, previousPlan domain.PlanTier, n domain.Normalization) {
	if !n.Changed() {
		return
	}
	metrics.UsageNormalized(n.MonthlyReset, n.DailyReset, n.TrialExpired)
	if n.TrialExpired {
		s.logger.Info("trial expired",
			"user_id", userID,
			"plan", previousPlan,
		)
	}
}

// =============================================================================
// Reads
// =============================================================================

// Load returns the user's normalized usage record.
func (s *quotaService) Load(ctx context.Context, userID uuid.UUID) (*domain.UsageRecord, error) {
	const op = "quota.load"

	rec, _, err := s.mutate(ctx, op, userID, noChange)
	return rec, err
}

// Status returns a display snapshot of the user's quota.
func (s *quotaService) Status(ctx context.Context, userID uuid.UUID) (*domain.UsageStatus, error) {
	const op = "quota.status"

	rec, _, err := s.mutate(ctx, op, userID, noChange)
	if err != nil {
		return nil, err
	}
	return rec.Status(s.clock.Now().UTC()), nil
}

// CanGenerate reports whether the user may start a generation.
func (s *quotaService) CanGenerate(ctx context.Context, userID uuid.UUID) (bool, error) {
	const op = "quota.can_generate"

	rec, _, err := s.mutate(ctx, op, userID, noChange)
	if err != nil {
		return false, err
	}

	allowed := rec.CanGenerate()
	metrics.QuotaChecked(allowed)
	return allowed, nil
}

// CanAccessTool reports whether the user's plan unlocks the tool.
func (s *quotaService) CanAccessTool(ctx context.Context, userID uuid.UUID, tool domain.ToolID) (bool, error) {
	const op = "quota.can_access_tool"

	rec, _, err := s.mutate(ctx, op, userID, noChange)
	if err != nil {
		return false, err
	}
	return rec.CanAccessTool(tool), nil
}

// CanUseFeature reports whether the user's plan unlocks the feature.
func (s *quotaService) CanUseFeature(ctx context.Context, userID uuid.UUID, feature domain.FeatureID) (bool, error) {
	const op = "quota.can_use_feature"

	rec, _, err := s.mutate(ctx, op, userID, noChange)
	if err != nil {
		return false, err
	}
	return rec.CanUseFeature(feature), nil
}

func noChange(*domain.UsageRecord, time.Time) (domain.UsagePatch, bool, error) {
	return domain.UsagePatch{}, true, nil
}

// =============================================================================
// Writes
// =============================================================================

// TrackWordUsage charges words to the current month.
func (s *quotaService) TrackWordUsage(ctx context.Context, userID uuid.UUID, words int64) (bool, error) {
	const op = "quota.track_words"

	if words < 0 {
		return false, domain.Invalid(op, "Word count cannot be negative")
	}

	var (
		plan  domain.PlanTier
		used  int64
		limit domain.Limit
	)
	_, ok, err := s.mutate(ctx, op, userID, func(view *domain.UsageRecord, _ time.Time) (domain.UsagePatch, bool, error) {
		plan, used, limit = view.Plan, view.WordsUsedThisMonth, view.WordLimit
		patch, ok := view.ConsumeWords(words)
		return patch, ok, nil
	})
	if err != nil {
		return false, err
	}

	if !ok {
		metrics.QuotaRejected(string(domain.QuotaKindWords))
		s.logger.Info("Word quota exceeded",
			"user_id", userID,
			"plan", plan,
			"used", used,
			"requested", words,
			"limit", limit.String(),
		)
		return false, nil
	}

	metrics.WordsTracked(plan.String(), words)
	return true, nil
}

// TrackGeneration records one generation today.
func (s *quotaService) TrackGeneration(ctx context.Context, userID uuid.UUID) (bool, error) {
	const op = "quota.track_generation"

	var (
		plan  domain.PlanTier
		used  int64
		limit domain.Limit
	)
	_, ok, err := s.mutate(ctx, op, userID, func(view *domain.UsageRecord, now time.Time) (domain.UsagePatch, bool, error) {
		plan, used, limit = view.Plan, view.GenerationsToday, view.GenerationLimit
		patch, ok := view.ConsumeGeneration(now)
		return patch, ok, nil
	})
	if err != nil {
		return false, err
	}

	if !ok {
		metrics.QuotaRejected(string(domain.QuotaKindGenerations))
		s.logger.Info("Generation quota exceeded",
			"user_id", userID,
			"plan", plan,
			"used", used,
			"limit", limit.String(),
		)
		return false, nil
	}

	metrics.GenerationTracked(plan.String())
	return true, nil
}

// StartTrial begins a trial of a paid plan.
func (s *quotaService) StartTrial(ctx context.Context, userID uuid.UUID, plan domain.PlanTier) (bool, error) {
	const op = "quota.start_trial"

	var state domain.UsageState
	rec, ok, err := s.mutate(ctx, op, userID, func(view *domain.UsageRecord, now time.Time) (domain.UsagePatch, bool, error) {
		state = view.State()
		patch, ok := view.BeginTrial(plan, now)
		return patch, ok, nil
	})
	if err != nil {
		return false, err
	}

	if !ok {
		s.logger.Info("trial start rejected",
			"user_id", userID,
			"target", plan,
			"state", state,
		)
		return false, nil
	}

	metrics.TrialStarted(plan.String())
	s.logger.Info("trial started",
		"user_id", userID,
		"plan", plan,
		"ends_at", rec.TrialEndsAt,
	)
	return true, nil
}

// ChangePlan applies an externally driven plan change.
func (s *quotaService) ChangePlan(ctx context.Context, userID uuid.UUID, plan domain.PlanTier) (*domain.UsageRecord, error) {
	const op = "quota.change_plan"

	if !plan.IsValid() {
		return nil, domain.Invalid(op, "Unknown plan")
	}

	var from domain.UsageState
	rec, _, err := s.mutate(ctx, op, userID, func(view *domain.UsageRecord, _ time.Time) (domain.UsagePatch, bool, error) {
		from = view.State()
		return domain.ChangePlan(plan), true, nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PlanChanged(plan.String())
	s.logger.Info("plan changed",
		"user_id", userID,
		"from", from,
		"to", rec.State(),
	)
	return rec, nil
}
