package dashboard

import "math"

// hoursPerDay is the fixed size of an hourly breakdown.
const hoursPerDay = 24

// Overview summarizes a collection of runs for one repository and one
// period. TotalRuntimeSeconds is the floored wall-clock span between a
// run's start and its last update, summed over completed runs only; it
// approximates job runtime and is not billing-accurate.
type Overview struct {
	TotalRuns           int     `json:"total_runs"`
	CompletedRuns       int     `json:"completed_runs"`
	InProgressRuns      int     `json:"in_progress_runs"`
	PassedRuns          int     `json:"passed_runs"`
	FailedRuns          int     `json:"failed_runs"`
	TotalRuntimeSeconds int64   `json:"total_runtime_seconds"`
	CompletionRate      float64 `json:"completion_rate"`
}

// CalculateOverview reduces runs into summary counters. Queued runs
// count as in-progress. An empty collection yields all-zero counters.
func CalculateOverview(runs []WorkflowRun) Overview {
	var o Overview

	o.TotalRuns = len(runs)

	for _, run := range runs {
		switch {
		case run.Completed():
			o.CompletedRuns++

			switch run.Conclusion {
			case ConclusionSuccess:
				o.PassedRuns++
			case ConclusionFailure:
				o.FailedRuns++
			}

			if run.UpdatedAt.After(run.RunStartedAt) {
				o.TotalRuntimeSeconds += int64(
					run.UpdatedAt.Sub(run.RunStartedAt).Seconds(),
				)
			}
		case run.Running():
			o.InProgressRuns++
		}
	}

	o.CompletionRate = percentage(o.CompletedRuns, o.TotalRuns)

	return o
}

// HourlyBucket is one hour of a 24-entry breakdown. Total counts only
// completed runs with a success or failure conclusion.
type HourlyBucket struct {
	Hour   int `json:"hour"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// CalculateHourlyBreakdown buckets completed runs by the UTC hour of
// their start timestamp. The result always has exactly 24 entries,
// hour 0 through 23, including zero hours; callers decide whether to
// render empty hours.
func CalculateHourlyBreakdown(runs []WorkflowRun) []HourlyBucket {
	buckets := make([]HourlyBucket, hoursPerDay)
	for h := range buckets {
		buckets[h].Hour = h
	}

	for _, run := range runs {
		if !run.Completed() {
			continue
		}

		hour := run.RunStartedAt.UTC().Hour()

		switch run.Conclusion {
		case ConclusionSuccess:
			buckets[hour].Passed++
		case ConclusionFailure:
			buckets[hour].Failed++
		default:
			continue
		}

		buckets[hour].Total++
	}

	return buckets
}

// HourlyStatistics summarizes a 24-entry hourly breakdown.
type HourlyStatistics struct {
	AvgRunsPerHour float64 `json:"avg_runs_per_hour"`
	MinRunsPerHour int     `json:"min_runs_per_hour"`
	MaxRunsPerHour int     `json:"max_runs_per_hour"`
	TotalRuns      int     `json:"total_runs"`
}

// CalculateHourlyStatistics derives per-hour statistics from a
// breakdown. The average divides by all 24 hours, not only non-zero
// hours, rounded to one decimal.
func CalculateHourlyStatistics(hourly []HourlyBucket) HourlyStatistics {
	var stats HourlyStatistics

	if len(hourly) == 0 {
		return stats
	}

	stats.MinRunsPerHour = hourly[0].Total

	for _, b := range hourly {
		stats.TotalRuns += b.Total

		if b.Total < stats.MinRunsPerHour {
			stats.MinRunsPerHour = b.Total
		}

		if b.Total > stats.MaxRunsPerHour {
			stats.MaxRunsPerHour = b.Total
		}
	}

	stats.AvgRunsPerHour = roundTo1(
		float64(stats.TotalRuns) / float64(hoursPerDay),
	)

	return stats
}

// CalculateMissingWorkflows returns the names of active workflows
// whose id does not appear in any run's workflow id for the period,
// preserving the input workflow order. Deleted workflows are never
// reported.
func CalculateMissingWorkflows(
	active []Workflow, runs []WorkflowRun,
) []string {
	seen := make(map[int64]struct{}, len(runs))
	for _, run := range runs {
		seen[run.WorkflowID] = struct{}{}
	}

	missing := make([]string, 0, len(active))

	for _, wf := range active {
		if wf.State != WorkflowActive {
			continue
		}

		if _, ok := seen[wf.ID]; !ok {
			missing = append(missing, wf.Name)
		}
	}

	return missing
}

// percentage returns part/whole as a percent rounded to one decimal,
// short-circuiting a zero denominator to 0 so callers never render
// NaN or Inf.
func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}

	return roundTo1(float64(part) / float64(whole) * 100)
}

func roundTo1(v float64) float64 {
	return math.Round(v*10) / 10
}
