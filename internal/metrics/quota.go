package metrics

// QuotaChecked records the outcome of a generation permission check.
func QuotaChecked(allowed bool) {
	if allowed {
		QuotaChecksTotal.WithLabelValues("allowed").Inc()
		return
	}
	QuotaChecksTotal.WithLabelValues("denied").Inc()
}

// WordsTracked records words charged on a plan.
func WordsTracked(plan string, words int64) {
	if words <= 0 {
		return
	}
	WordsTrackedTotal.WithLabelValues(plan).Add(float64(words))
}

// GenerationTracked records one generation on a plan.
func GenerationTracked(plan string) {
	GenerationsTrackedTotal.WithLabelValues(plan).Inc()
}

// QuotaRejected records a usage write refused by a limit.
func QuotaRejected(kind string) {
	QuotaRejectionsTotal.WithLabelValues(kind).Inc()
}

// TrialStarted records a trial start.
func TrialStarted(plan string) {
	TrialsStartedTotal.WithLabelValues(plan).Inc()
}

// UsageNormalized records the transitions fired by a load.
func UsageNormalized(monthly, daily, trialExpired bool) {
	if monthly {
		UsageResetsTotal.WithLabelValues("monthly").Inc()
	}
	if daily {
		UsageResetsTotal.WithLabelValues("daily").Inc()
	}
	if trialExpired {
		TrialExpirationsTotal.Inc()
	}
}

// StoreConflict records a version conflict on a usage record write.
func StoreConflict() {
	StoreConflictsTotal.Inc()
}

// PlanChanged records an externally driven plan change.
func PlanChanged(plan string) {
	PlanChangesTotal.WithLabelValues(plan).Inc()
}
