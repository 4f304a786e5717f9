package dashboard

import (
	"math"
	"sort"
)

// UsageSummary totals job-run usage over a date range for one
// repository. Minutes are rounded from the summed wall-clock
// durations; this tracks billable-adjacent usage, not actual billing.
type UsageSummary struct {
	TotalMinutes           int    `json:"total_minutes"`
	TotalHostedJobRuns     int    `json:"total_hosted_job_runs"`
	TotalSelfHostedJobRuns int    `json:"total_self_hosted_job_runs"`
	MajorityRuntimeOS      string `json:"majority_runtime_os"`
}

// WorkflowUsage is one row of the per-workflow usage breakdown.
type WorkflowUsage struct {
	WorkflowPath       string     `json:"workflow_path"`
	WorkflowName       string     `json:"workflow_name"`
	Minutes            int        `json:"minutes"`
	RunCount           int        `json:"run_count"`
	JobCount           int        `json:"job_count"`
	DominantRunnerType RunnerType `json:"dominant_runner_type"`
	DominantRuntimeOS  string     `json:"dominant_runtime_os"`
}

// UsageReport is the aggregated usage view served by the usage
// endpoint. Callers own any caching wrapped around it.
type UsageReport struct {
	Summary    UsageSummary    `json:"summary"`
	ByWorkflow []WorkflowUsage `json:"by_workflow"`
}

// counter tracks occurrences of a value with first-seen tie-breaking.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int, 4)}
}

func (c *counter) add(value string) {
	if _, ok := c.counts[value]; !ok {
		c.order = append(c.order, value)
	}

	c.counts[value]++
}

// top returns the value with the highest count; ties resolve to the
// value seen first.
func (c *counter) top() string {
	best := ""
	bestCount := 0

	for _, v := range c.order {
		if c.counts[v] > bestCount {
			best = v
			bestCount = c.counts[v]
		}
	}

	return best
}

type workflowUsageAccum struct {
	name     string
	duration float64 // seconds
	jobs     int
	runIDs   map[int64]struct{}
	runner   *counter
	os       *counter
}

// AggregateUsage buckets job-run durations by workflow and by
// hosted-vs-self-hosted runner and runtime OS. Jobs whose start time
// falls outside r are ignored. The per-workflow rows are sorted by
// workflow path for stable output.
func AggregateUsage(jobs []JobRecord, r DateRange) UsageReport {
	var (
		totalSeconds float64
		hosted       int
		selfHosted   int
	)

	osCounts := newCounter()
	byPath := make(map[string]*workflowUsageAccum, 8)

	var pathOrder []string

	for _, job := range jobs {
		if !r.Contains(job.StartedAt) {
			continue
		}

		totalSeconds += job.Duration.Seconds()

		if job.RunnerType == RunnerSelfHosted {
			selfHosted++
		} else {
			hosted++
		}

		if job.RuntimeOS != "" {
			osCounts.add(job.RuntimeOS)
		}

		accum, ok := byPath[job.WorkflowPath]
		if !ok {
			accum = &workflowUsageAccum{
				name:   job.WorkflowName,
				runIDs: make(map[int64]struct{}, 4),
				runner: newCounter(),
				os:     newCounter(),
			}
			byPath[job.WorkflowPath] = accum
			pathOrder = append(pathOrder, job.WorkflowPath)
		}

		accum.duration += job.Duration.Seconds()
		accum.jobs++
		accum.runIDs[job.RunID] = struct{}{}
		accum.runner.add(string(job.RunnerType))

		if job.RuntimeOS != "" {
			accum.os.add(job.RuntimeOS)
		}
	}

	report := UsageReport{
		Summary: UsageSummary{
			TotalMinutes:           roundMinutes(totalSeconds),
			TotalHostedJobRuns:     hosted,
			TotalSelfHostedJobRuns: selfHosted,
			MajorityRuntimeOS:      osCounts.top(),
		},
		ByWorkflow: make([]WorkflowUsage, 0, len(byPath)),
	}

	sort.Strings(pathOrder)

	for _, path := range pathOrder {
		accum := byPath[path]

		row := WorkflowUsage{
			WorkflowPath:      path,
			WorkflowName:      accum.name,
			Minutes:           roundMinutes(accum.duration),
			RunCount:          len(accum.runIDs),
			JobCount:          accum.jobs,
			DominantRuntimeOS: accum.os.top(),
		}

		if top := accum.runner.top(); top != "" {
			row.DominantRunnerType = RunnerType(top)
		}

		report.ByWorkflow = append(report.ByWorkflow, row)
	}

	return report
}

func roundMinutes(seconds float64) int {
	return int(math.Round(seconds / 60))
}
