// Package domain contains core business types and interfaces.
//
// This file defines the per-user usage record and the rules that keep it
// current: lazy monthly/daily resets, trial expiry, and the consumption and
// trial transitions. Everything here is a pure function of the record and a
// point in time; persistence lives in the usagestore package.
package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Usage State
// =============================================================================

// UsageState is the lifecycle state of a usage record, derived from its plan
// and trial flag.
type UsageState string

const (
	UsageStateFree          UsageState = "free"
	UsageStateTrialPro      UsageState = "trial_pro"
	UsageStateTrialBusiness UsageState = "trial_business"
	UsageStatePro           UsageState = "pro"
	UsageStateBusiness      UsageState = "business"
)

// =============================================================================
// Usage Record
// =============================================================================

// UsageRecord is the single mutable quota record kept for each user.
//
// Dates (LastGenerationDate, LastWordReset) are calendar days expressed as
// UTC midnight. Version is bumped by the store on every successful update
// and is used for optimistic concurrency.
type UsageRecord struct {
	UserID             uuid.UUID
	Plan               PlanTier
	IsTrialActive      bool
	TrialStartedAt     *time.Time
	TrialEndsAt        *time.Time
	WordsUsedThisMonth int64
	WordLimit          Limit
	GenerationsToday   int64
	GenerationLimit    Limit
	LastGenerationDate time.Time
	LastWordReset      time.Time
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewUsageRecord returns the default Free-tier record provisioned on first
// access.
func NewUsageRecord(userID uuid.UUID, now time.Time) *UsageRecord {
	free := Entitlements(PlanFree)
	today := DateOf(now)
	return &UsageRecord{
		UserID:             userID,
		Plan:               PlanFree,
		WordLimit:          free.WordLimit,
		GenerationLimit:    free.GenerationLimit,
		LastGenerationDate: today,
		LastWordReset:      today,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Clone returns a deep copy of the record.
func (r *UsageRecord) Clone() *UsageRecord {
	c := *r
	c.TrialStartedAt = cloneTime(r.TrialStartedAt)
	c.TrialEndsAt = cloneTime(r.TrialEndsAt)
	return &c
}

// State returns the lifecycle state of the record.
func (r *UsageRecord) State() UsageState {
	switch r.Plan {
	case PlanPro:
		if r.IsTrialActive {
			return UsageStateTrialPro
		}
		return UsageStatePro
	case PlanBusiness:
		if r.IsTrialActive {
			return UsageStateTrialBusiness
		}
		return UsageStateBusiness
	default:
		return UsageStateFree
	}
}

// =============================================================================
// Derived Queries
// =============================================================================

// WordsRemaining returns max(0, WordLimit - WordsUsedThisMonth).
func (r *UsageRecord) WordsRemaining() Limit {
	return r.WordLimit.Remaining(r.WordsUsedThisMonth)
}

// TrialDaysLeft returns the whole days left in an active trial, rounded up.
func (r *UsageRecord) TrialDaysLeft(now time.Time) int {
	if !r.IsTrialActive || r.TrialEndsAt == nil {
		return 0
	}
	left := r.TrialEndsAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// CanGenerate reports whether the user may start a generation right now.
func (r *UsageRecord) CanGenerate() bool {
	switch r.Plan {
	case PlanBusiness:
		return true
	case PlanPro:
		return r.WordsRemaining().Positive()
	default:
		return !r.GenerationLimit.Exceeded(r.GenerationsToday) && r.WordsRemaining().Positive()
	}
}

// CanAccessTool reports whether the record's plan unlocks the tool.
func (r *UsageRecord) CanAccessTool(tool ToolID) bool {
	return Entitlements(r.Plan).HasTool(tool)
}

// CanUseFeature reports whether the record's plan unlocks the feature.
func (r *UsageRecord) CanUseFeature(feature FeatureID) bool {
	return Entitlements(r.Plan).HasFeature(feature)
}

// =============================================================================
// Normalization
// =============================================================================

// Normalization describes the time-driven transitions due on a record.
type Normalization struct {
	Patch        UsagePatch
	MonthlyReset bool
	DailyReset   bool
	TrialExpired bool
}

// Changed reports whether any transition fired.
func (n Normalization) Changed() bool {
	return n.MonthlyReset || n.DailyReset || n.TrialExpired
}

// Normalize computes the resets and trial expiry due at now. The record is
// not modified; apply the returned patch to obtain the normalized view.
//
// The monthly and daily resets are evaluated independently: a load that
// rolls the month over also clears a stale daily counter.
func (r *UsageRecord) Normalize(now time.Time) Normalization {
	var n Normalization
	today := DateOf(now)

	if !sameMonth(r.LastWordReset, today) {
		n.MonthlyReset = true
		n.Patch.WordsUsedThisMonth = int64Ptr(0)
		n.Patch.LastWordReset = timePtr(today)
	}

	if !DateOf(r.LastGenerationDate).Equal(today) && r.GenerationsToday > 0 {
		n.DailyReset = true
		n.Patch.GenerationsToday = int64Ptr(0)
		n.Patch.LastGenerationDate = timePtr(today)
	}

	if r.IsTrialActive && r.TrialEndsAt != nil && r.TrialEndsAt.Before(now) {
		free := Entitlements(PlanFree)
		n.TrialExpired = true
		n.Patch.Plan = planPtr(PlanFree)
		n.Patch.IsTrialActive = boolPtr(false)
		n.Patch.WordLimit = limitPtr(free.WordLimit)
		n.Patch.GenerationLimit = limitPtr(free.GenerationLimit)
	}

	return n
}

// =============================================================================
// Transitions
// =============================================================================

// ConsumeWords returns the patch adding words to this month's tally, or
// false if the plan's word limit would be exceeded. Business is tallied
// without a ceiling check, but no plan may push the tally past MaxInt64.
func (r *UsageRecord) ConsumeWords(words int64) (UsagePatch, bool) {
	if words < 0 || words > math.MaxInt64-r.WordsUsedThisMonth {
		return UsagePatch{}, false
	}
	total := r.WordsUsedThisMonth + words
	if r.Plan != PlanBusiness && !r.WordLimit.Allows(total) {
		return UsagePatch{}, false
	}
	return UsagePatch{WordsUsedThisMonth: int64Ptr(total)}, true
}

// ConsumeGeneration returns the patch recording one more generation today,
// or false if a Free record has used its daily allowance. Paid plans are
// counted for reporting only.
func (r *UsageRecord) ConsumeGeneration(now time.Time) (UsagePatch, bool) {
	if r.Plan == PlanFree && r.GenerationLimit.Exceeded(r.GenerationsToday) {
		return UsagePatch{}, false
	}
	return UsagePatch{
		GenerationsToday:   int64Ptr(r.GenerationsToday + 1),
		LastGenerationDate: timePtr(DateOf(now)),
	}, true
}

// BeginTrial returns the patch starting a trial of a paid plan. Trials can
// only start from the Free state.
func (r *UsageRecord) BeginTrial(plan PlanTier, now time.Time) (UsagePatch, bool) {
	if !plan.IsPaid() || r.State() != UsageStateFree {
		return UsagePatch{}, false
	}
	words, generations := TrialLimits(plan)
	ends := now.Add(TrialDuration)
	return UsagePatch{
		Plan:            planPtr(plan),
		IsTrialActive:   boolPtr(true),
		TrialStartedAt:  timePtr(now),
		TrialEndsAt:     timePtr(ends),
		WordLimit:       limitPtr(words),
		GenerationLimit: limitPtr(generations),
	}, true
}

// ChangePlan returns the patch for an external plan change such as a
// billing event. Any active trial ends and catalog limits apply.
func ChangePlan(plan PlanTier) UsagePatch {
	e := Entitlements(plan)
	return UsagePatch{
		Plan:            planPtr(plan),
		IsTrialActive:   boolPtr(false),
		WordLimit:       limitPtr(e.WordLimit),
		GenerationLimit: limitPtr(e.GenerationLimit),
	}
}

// =============================================================================
// Patch
// =============================================================================

// UsagePatch is a partial update to a usage record. Nil fields are left
// unchanged.
type UsagePatch struct {
	Plan               *PlanTier
	IsTrialActive      *bool
	TrialStartedAt     *time.Time
	TrialEndsAt        *time.Time
	WordsUsedThisMonth *int64
	WordLimit          *Limit
	GenerationsToday   *int64
	GenerationLimit    *Limit
	LastGenerationDate *time.Time
	LastWordReset      *time.Time

	// UpdatedAt is the write time. Stores use their own clock when nil.
	UpdatedAt *time.Time
}

// IsEmpty reports whether the patch changes nothing.
func (p UsagePatch) IsEmpty() bool {
	return p == UsagePatch{}
}

// Merge returns p overlaid with the non-nil fields of o.
func (p UsagePatch) Merge(o UsagePatch) UsagePatch {
	if o.Plan != nil {
		p.Plan = o.Plan
	}
	if o.IsTrialActive != nil {
		p.IsTrialActive = o.IsTrialActive
	}
	if o.TrialStartedAt != nil {
		p.TrialStartedAt = o.TrialStartedAt
	}
	if o.TrialEndsAt != nil {
		p.TrialEndsAt = o.TrialEndsAt
	}
	if o.WordsUsedThisMonth != nil {
		p.WordsUsedThisMonth = o.WordsUsedThisMonth
	}
	if o.WordLimit != nil {
		p.WordLimit = o.WordLimit
	}
	if o.GenerationsToday != nil {
		p.GenerationsToday = o.GenerationsToday
	}
	if o.GenerationLimit != nil {
		p.GenerationLimit = o.GenerationLimit
	}
	if o.LastGenerationDate != nil {
		p.LastGenerationDate = o.LastGenerationDate
	}
	if o.LastWordReset != nil {
		p.LastWordReset = o.LastWordReset
	}
	if o.UpdatedAt != nil {
		p.UpdatedAt = o.UpdatedAt
	}
	return p
}

// At returns p stamped with the write time now.
func (p UsagePatch) At(now time.Time) UsagePatch {
	p.UpdatedAt = timePtr(now)
	return p
}

// Apply writes the non-nil fields of p into r.
func (r *UsageRecord) Apply(p UsagePatch) {
	if p.Plan != nil {
		r.Plan = *p.Plan
	}
	if p.IsTrialActive != nil {
		r.IsTrialActive = *p.IsTrialActive
	}
	if p.TrialStartedAt != nil {
		r.TrialStartedAt = cloneTime(p.TrialStartedAt)
	}
	if p.TrialEndsAt != nil {
		r.TrialEndsAt = cloneTime(p.TrialEndsAt)
	}
	if p.WordsUsedThisMonth != nil {
		r.WordsUsedThisMonth = *p.WordsUsedThisMonth
	}
	if p.WordLimit != nil {
		r.WordLimit = *p.WordLimit
	}
	if p.GenerationsToday != nil {
		r.GenerationsToday = *p.GenerationsToday
	}
	if p.GenerationLimit != nil {
		r.GenerationLimit = *p.GenerationLimit
	}
	if p.LastGenerationDate != nil {
		r.LastGenerationDate = *p.LastGenerationDate
	}
	if p.LastWordReset != nil {
		r.LastWordReset = *p.LastWordReset
	}
	if p.UpdatedAt != nil {
		r.UpdatedAt = *p.UpdatedAt
	}
}

// =============================================================================
// Usage Status
// =============================================================================

// UsageStatus is a read-only snapshot of a normalized record plus its
// derived values, for quota displays.
type UsageStatus struct {
	UserID             uuid.UUID   `json:"user_id"`
	Plan               PlanTier    `json:"plan"`
	PlanName           string      `json:"plan_name"`
	State              UsageState  `json:"state"`
	IsTrialActive      bool        `json:"is_trial_active"`
	TrialEndsAt        *time.Time  `json:"trial_ends_at,omitempty"`
	TrialDaysLeft      int         `json:"trial_days_left"`
	WordsUsedThisMonth int64       `json:"words_used_this_month"`
	WordLimit          Limit       `json:"word_limit"`
	WordsRemaining     Limit       `json:"words_remaining"`
	GenerationsToday   int64       `json:"generations_today"`
	GenerationLimit    Limit       `json:"generation_limit"`
	CanGenerate        bool        `json:"can_generate"`
	Tools              []ToolID    `json:"tools"`
	Features           []FeatureID `json:"features"`
}

// Status builds the snapshot for r at now.
func (r *UsageRecord) Status(now time.Time) *UsageStatus {
	e := Entitlements(r.Plan)
	s := &UsageStatus{
		UserID:             r.UserID,
		Plan:               r.Plan,
		PlanName:           r.Plan.DisplayName(),
		State:              r.State(),
		IsTrialActive:      r.IsTrialActive,
		TrialDaysLeft:      r.TrialDaysLeft(now),
		WordsUsedThisMonth: r.WordsUsedThisMonth,
		WordLimit:          r.WordLimit,
		WordsRemaining:     r.WordsRemaining(),
		GenerationsToday:   r.GenerationsToday,
		GenerationLimit:    r.GenerationLimit,
		CanGenerate:        r.CanGenerate(),
		Tools:              append([]ToolID(nil), e.Tools...),
		Features:           append([]FeatureID(nil), e.Features...),
	}
	if r.IsTrialActive {
		s.TrialEndsAt = cloneTime(r.TrialEndsAt)
	}
	return s
}

// =============================================================================
// Helpers
// =============================================================================

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameMonth(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func timePtr(t time.Time) *time.Time { return &t }
func int64Ptr(n int64) *int64 { return &n }
func boolPtr(b bool) *bool { return &b }
func planPtr(p PlanTier) *PlanTier { return &p }
func limitPtr(l Limit) *Limit { return &l }
