package dashboard

import (
	"slices"
	"sort"
)

// HealthStatus labels a single workflow's day-over-day trend.
type HealthStatus string

const (
	HealthConsistent   HealthStatus = "consistent"
	HealthImproved     HealthStatus = "improved"
	HealthRegressed    HealthStatus = "regressed"
	HealthStillFailing HealthStatus = "still_failing"
	HealthNoRunsToday  HealthStatus = "no_runs_today"
)

// ClassifyHealth labels one workflow's trend by comparing today's runs
// against yesterday's, using historical runs as fallback when the
// prior day is empty. The label is recomputed fresh on every call and
// never persisted.
//
// A queued or in-progress run today always yields "consistent": a
// running workflow never inherits a failing or regressed label.
func ClassifyHealth(
	today, yesterday, historical []WorkflowRun,
) HealthStatus {
	for _, run := range today {
		if run.Running() {
			return HealthConsistent
		}
	}

	passed, failed := 0, 0

	for _, run := range today {
		switch run.Conclusion {
		case ConclusionSuccess:
			passed++
		case ConclusionFailure:
			failed++
		}
	}

	if passed+failed == 0 {
		// Nothing conclusive today, either no runs at all or only
		// neutral conclusions such as cancelled or skipped. The most
		// recent prior result decides; yesterday's runs are simply the
		// newest slice of history. Concat copies so the callers'
		// slices stay untouched.
		prior := latestCompleted(slices.Concat(yesterday, historical))
		if prior == nil {
			return HealthNoRunsToday
		}

		if prior.Conclusion == ConclusionFailure {
			return HealthStillFailing
		}

		return HealthConsistent
	}

	prior := latestCompleted(yesterday)
	if prior == nil {
		prior = latestCompleted(historical)
	}

	switch {
	case failed == 0:
		// Everything succeeded today.
		if prior != nil && prior.Conclusion == ConclusionFailure {
			return HealthImproved
		}

		return HealthConsistent
	case passed == 0:
		// Everything failed today.
		if prior != nil && prior.Conclusion == ConclusionSuccess {
			return HealthRegressed
		}

		return HealthStillFailing
	}

	// Mixed results today: compare the prior day's latest conclusion
	// against today's latest.
	if prior == nil {
		// No prior data at all: majority vote across today's runs.
		if passed >= failed {
			return HealthImproved
		}

		return HealthRegressed
	}

	latest := latestCompleted(today)

	switch {
	case prior.Conclusion == ConclusionSuccess &&
		latest.Conclusion == ConclusionSuccess:
		return HealthConsistent
	case prior.Conclusion == ConclusionSuccess &&
		latest.Conclusion == ConclusionFailure:
		return HealthRegressed
	case prior.Conclusion == ConclusionFailure &&
		latest.Conclusion == ConclusionFailure:
		return HealthStillFailing
	default:
		return HealthImproved
	}
}

// latestCompleted returns the most recent completed run with a
// success or failure conclusion, or nil when there is none. Runs are
// ordered by start time descending with run id descending as the
// tie-break, so equal timestamps resolve deterministically.
func latestCompleted(runs []WorkflowRun) *WorkflowRun {
	candidates := make([]WorkflowRun, 0, len(runs))

	for _, run := range runs {
		if !run.Completed() {
			continue
		}

		if run.Conclusion != ConclusionSuccess &&
			run.Conclusion != ConclusionFailure {
			continue
		}

		candidates = append(candidates, run)
	}

	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RunStartedAt.Equal(candidates[j].RunStartedAt) {
			return candidates[i].ID > candidates[j].ID
		}

		return candidates[i].RunStartedAt.After(candidates[j].RunStartedAt)
	})

	return &candidates[0]
}
