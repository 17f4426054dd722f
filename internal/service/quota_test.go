package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/aiwriterpros/aiwriter/internal/usagestore"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is the subset of the clockwork fake used by these tests.
type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

var quotaStart = time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestQuotaService(t *testing.T) (QuotaService, *usagestore.MemoryStore, fakeClock) {
	t.Helper()
	store := usagestore.NewMemoryStore()
	clock := clockwork.NewFakeClockAt(quotaStart)
	return NewQuotaService(store, clock, discardLogger()), store, clock
}

func TestQuota_FirstTouchProvisionsFree(t *testing.T) {
	svc, store, _ := newTestQuotaService(t)
	userID := uuid.New()

	rec, err := svc.Load(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, domain.PlanFree, rec.Plan)
	assert.Equal(t, domain.Limited(5000), rec.WordLimit)
	assert.Equal(t, domain.Limited(3), rec.GenerationLimit)
	assert.Zero(t, rec.WordsUsedThisMonth)
	assert.Zero(t, rec.GenerationsToday)
	assert.Equal(t, domain.DateOf(quotaStart), rec.LastWordReset)
	assert.Equal(t, domain.DateOf(quotaStart), rec.LastGenerationDate)
	assert.Equal(t, 1, store.Len())

	// A second load does not insert again.
	_, err = svc.Load(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestQuota_TimestampsFollowClock(t *testing.T) {
	svc, _, clock := newTestQuotaService(t)
	ctx := context.Background()
	userID := uuid.New()

	rec, err := svc.Load(ctx, userID)
	require.NoError(t, err)
	assert.True(t, rec.CreatedAt.Equal(quotaStart))
	assert.True(t, rec.UpdatedAt.Equal(quotaStart))

	clock.Advance(3 * time.Hour)
	ok, err := svc.TrackWordUsage(ctx, userID, 100)
	require.NoError(t, err)
	require.True(t, ok)

	rec, err = svc.Load(ctx, userID)
	require.NoError(t, err)
	assert.True(t, rec.CreatedAt.Equal(quotaStart))
	assert.True(t, rec.UpdatedAt.Equal(quotaStart.Add(3*time.Hour)))
}

func TestQuota_MonthlyResetIsIdempotent(t *testing.T) {
	svc, store, clock := newTestQuotaService(t)
	ctx := context.Background()
	userID := uuid.New()

	ok, err := svc.TrackWordUsage(ctx, userID, 1200)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(30 * 24 * time.Hour) // into February

	rec, err := svc.Load(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, rec.WordsUsedThisMonth)
	assert.Equal(t, time.February, rec.LastWordReset.Month())
	version := rec.Version

	ok, err = svc.TrackWordUsage(ctx, userID, 10)
	require.NoError(t, err)
	require.True(t, ok)

	// A later load in the same month must not zero the counter again.
	clock.Advance(2 * time.Hour)
	rec, err = svc.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.WordsUsedThisMonth)

	stored, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, version+1, stored.Version)
}

func TestQuota_DailyGenerationLimitAndReset(t *testing.T) {
	svc, _, clock := newTestQuotaService(t)
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		ok, err := svc.TrackGeneration(ctx, userID)
		require.NoError(t, err)
		require.True(t, ok, "generation %d", i+1)
	}

	ok, err := svc.TrackGeneration(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	can, err := svc.CanGenerate(ctx, userID)
	require.NoError(t, err)
	assert.False(t, can)

	clock.Advance(24 * time.Hour)

	can, err = svc.CanGenerate(ctx, userID)
	require.NoError(t, err)
	assert.True(t, can)

	rec, err := svc.Load(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, rec.GenerationsToday)
}

func TestQuota_TrackWordUsage_ProBoundary(t *testing.T) {
	svc, _, _ := newTestQuotaService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.ChangePlan(ctx, userID, domain.PlanPro)
	require.NoError(t, err)

	ok, err := svc.TrackWordUsage(ctx, userID, 49999)
	require.NoError(t, err)
	require.True(t, ok)

	// 49999 + 2 > 50000: rejected without mutation.
	ok, err = svc.TrackWordUsage(ctx, userID, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	rec, err := svc.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(49999), rec.WordsUsedThisMonth)

	ok, err = svc.TrackWordUsage(ctx, userID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	can, err := svc.CanGenerate(ctx, userID)
	require.NoError(t, err)
	assert.False(t, can)
}

func TestQuota_TrackWordUsage_BusinessUnbounded(t *testing.T) {
	svc, _, _ := newTestQuotaService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.ChangePlan(ctx, userID, domain.PlanBusiness)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ok, err := svc.TrackWordUsage(ctx, userID, 1_000_000)
		require.NoError(t, err)
		require.True(t, ok)
	}

	rec, err := svc.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), rec.WordsUsedThisMonth)
	assert.True(t, rec.CanGenerate())
}

func TestQuota_TrackWordUsage_OverflowRejected(t *testing.T) {
	for _, plan := range []domain.PlanTier{domain.PlanPro, domain.PlanBusiness} {
		t.Run(plan.String(), func(t *testing.T) {
			svc, _, _ := newTestQuotaService(t)
			ctx := context.Background()
			userID := uuid.New()

			_, err := svc.ChangePlan(ctx, userID, plan)
			require.NoError(t, err)

			ok, err := svc.TrackWordUsage(ctx, userID, 10)
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = svc.TrackWordUsage(ctx, userID, math.MaxInt64)
			require.NoError(t, err)
			assert.False(t, ok)

			rec, err := svc.Load(ctx, userID)
			require.NoError(t, err)
			assert.Equal(t, int64(10), rec.WordsUsedThisMonth)
		})
	}
}

func TestQuota_TrackWordUsage_Negative(t *testing.T) {
	svc, _, _ := newTestQuotaService(t)

	_, err := svc.TrackWordUsage(context.Background(), uuid.New(), -5)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestQuota_PaidPlansCountGenerationsWithoutLimit(t *testing.T) {
	svc, _, _ := newTestQuotaService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.ChangePlan(ctx, userID, domain.PlanPro)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		ok, err := svc.TrackGeneration(ctx, userID)
		require.NoError(t, err)
		require.True(t, ok)
	}

	rec, err := svc.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.GenerationsToday)
}

func TestQuota_TrialLifecycle(t *testing.T) {
	svc, _, clock := newTestQuotaService(t)
	ctx := context.Background()
	userID := uuid.New()

	ok, err := svc.StartTrial(ctx, userID, domain.PlanPro)
	require.NoError(t, err)
	require.True(t, ok)

	status, err := svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.UsageStateTrialPro, status.State)
	assert.Equal(t, 7, status.TrialDaysLeft)
	assert.Equal(t, domain.Limited(50000), status.WordLimit)
	assert.True(t, status.GenerationLimit.IsUnlimited())

	allowed, err := svc.CanAccessTool(ctx, userID, domain.ToolSEOOptimizer)
	require.NoError(t, err)
	assert.True(t, allowed)

	// A second trial while one is active is rejected.
	ok, err = svc.StartTrial(ctx, userID, domain.PlanBusiness)
	require.NoError(t, err)
	assert.False(t, ok)

	// Just before the end the trial is still active.
	clock.Advance(domain.TrialDuration - time.Minute)
	rec, err := svc.Load(ctx, userID)
	require.NoError(t, err)
	assert.True(t, rec.IsTrialActive)
	assert.Equal(t, domain.PlanPro, rec.Plan)

	// After the end the next load reverts to Free.
	clock.Advance(2 * time.Minute)
	rec, err = svc.Load(ctx, userID)
	require.NoError(t, err)
	assert.False(t, rec.IsTrialActive)
	assert.Equal(t, domain.PlanFree, rec.Plan)
	assert.Equal(t, domain.Limited(5000), rec.WordLimit)
	assert.Equal(t, domain.Limited(3), rec.GenerationLimit)

	allowed, err = svc.CanAccessTool(ctx, userID, domain.ToolSEOOptimizer)
	require.NoError(t, err)
	assert.False(t, allowed)

	// A user back on Free may start another trial.
	ok, err = svc.StartTrial(ctx, userID, domain.PlanBusiness)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQuota_StartTrialRejections(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, svc QuotaService, userID uuid.UUID)
		target domain.PlanTier
	}{
		{
			name:   "free target",
			target: domain.PlanFree,
		},
		{
			name:   "unknown target",
			target: domain.PlanTier("enterprise"),
		},
		{
			name: "already paid",
			setup: func(t *testing.T, svc QuotaService, userID uuid.UUID) {
				_, err := svc.ChangePlan(context.Background(), userID, domain.PlanPro)
				require.NoError(t, err)
			},
			target: domain.PlanBusiness,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestQuotaService(t)
			userID := uuid.New()
			if tt.setup != nil {
				tt.setup(t, svc, userID)
			}

			before, err := svc.Load(context.Background(), userID)
			require.NoError(t, err)

			ok, err := svc.StartTrial(context.Background(), userID, tt.target)
			require.NoError(t, err)
			assert.False(t, ok)

			after, err := svc.Load(context.Background(), userID)
			require.NoError(t, err)
			assert.Equal(t, before.Version, after.Version)
			assert.Equal(t, before.Plan, after.Plan)
		})
	}
}

func TestQuota_ChangePlanEndsTrial(t *testing.T) {
	svc, _, _ := newTestQuotaService(t)
	ctx := context.Background()
	userID := uuid.New()

	ok, err := svc.StartTrial(ctx, userID, domain.PlanPro)
	require.NoError(t, err)
	require.True(t, ok)

	rec, err := svc.ChangePlan(ctx, userID, domain.PlanBusiness)
	require.NoError(t, err)
	assert.Equal(t, domain.UsageStateBusiness, rec.State())
	assert.True(t, rec.WordLimit.IsUnlimited())

	_, err = svc.ChangePlan(ctx, userID, domain.PlanTier("gold"))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestQuota_FeatureGating(t *testing.T) {
	svc, _, _ := newTestQuotaService(t)
	ctx := context.Background()
	userID := uuid.New()

	ok, err := svc.CanUseFeature(ctx, userID, domain.FeatureWordCounter)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CanUseFeature(ctx, userID, domain.FeatureExportPDF)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.ChangePlan(ctx, userID, domain.PlanBusiness)
	require.NoError(t, err)

	ok, err = svc.CanUseFeature(ctx, userID, domain.FeatureSSO)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQuota_ConcurrentTrackingLosesNoUpdates(t *testing.T) {
	svc, _, _ := newTestQuotaService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.ChangePlan(ctx, userID, domain.PlanBusiness)
	require.NoError(t, err)

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := svc.TrackWordUsage(ctx, userID, 1)
			if err != nil {
				// Exhausted retries surface as a conflict, never silently.
				assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
				return
			}
			if ok {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	rec, err := svc.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, succeeded, rec.WordsUsedThisMonth)
	assert.Positive(t, succeeded)
}

// =============================================================================
// Store failure behavior
// =============================================================================

// scriptedStore wraps a MemoryStore and lets tests inject failures.
type scriptedStore struct {
	*usagestore.MemoryStore
	getErr       error
	updateErr    error
	updateCalls  int
	insertRace   bool
	insertCalled bool
}

func (s *scriptedStore) Get(ctx context.Context, userID uuid.UUID) (*domain.UsageRecord, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.Get(ctx, userID)
}

func (s *scriptedStore) Insert(ctx context.Context, rec *domain.UsageRecord) (*domain.UsageRecord, error) {
	s.insertCalled = true
	if s.insertRace {
		// Another request provisions first.
		if _, err := s.MemoryStore.Insert(ctx, rec); err != nil {
			return nil, err
		}
		return nil, usagestore.ErrAlreadyExists
	}
	return s.MemoryStore.Insert(ctx, rec)
}

func (s *scriptedStore) Update(ctx context.Context, userID uuid.UUID, version int64, patch domain.UsagePatch) (*domain.UsageRecord, error) {
	s.updateCalls++
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return s.MemoryStore.Update(ctx, userID, version, patch)
}

func TestQuota_StoreUnavailable(t *testing.T) {
	store := &scriptedStore{MemoryStore: usagestore.NewMemoryStore(), getErr: errors.New("connection refused")}
	svc := NewQuotaService(store, clockwork.NewFakeClockAt(quotaStart), discardLogger())

	_, err := svc.CanGenerate(context.Background(), uuid.New())
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestQuota_ConcurrentFirstInsertRereads(t *testing.T) {
	store := &scriptedStore{MemoryStore: usagestore.NewMemoryStore(), insertRace: true}
	svc := NewQuotaService(store, clockwork.NewFakeClockAt(quotaStart), discardLogger())

	rec, err := svc.Load(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, store.insertCalled)
	assert.Equal(t, domain.PlanFree, rec.Plan)
	assert.Equal(t, int64(1), rec.Version)
}

func TestQuota_NormalizationWriteFailureReturnsView(t *testing.T) {
	store := &scriptedStore{MemoryStore: usagestore.NewMemoryStore()}
	clock := clockwork.NewFakeClockAt(quotaStart)
	svc := NewQuotaService(store, clock, discardLogger())
	ctx := context.Background()
	userID := uuid.New()

	ok, err := svc.TrackWordUsage(ctx, userID, 4000)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(40 * 24 * time.Hour)
	store.updateErr = errors.New("write timeout")

	rec, err := svc.Load(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, rec.WordsUsedThisMonth)

	// A write that carries a charge is not swallowed.
	_, err = svc.TrackWordUsage(ctx, userID, 1)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestQuota_PersistentConflictGivesUp(t *testing.T) {
	store := &scriptedStore{MemoryStore: usagestore.NewMemoryStore()}
	svc := NewQuotaService(store, clockwork.NewFakeClockAt(quotaStart), discardLogger())
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Load(ctx, userID)
	require.NoError(t, err)

	store.updateErr = usagestore.ErrVersionConflict
	store.updateCalls = 0

	_, err = svc.TrackGeneration(ctx, userID)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	assert.Equal(t, maxUpdateAttempts, store.updateCalls)
}
