package dashboard_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmniLens/OmniLens-sub000/pkg/dashboard"
)

func makeJob(
	path string, runID int64,
	runner dashboard.RunnerType, os string,
	start time.Time, duration time.Duration,
) dashboard.JobRecord {
	return dashboard.JobRecord{
		WorkflowName: path,
		WorkflowPath: ".github/workflows/" + path + ".yml",
		RunID:        runID,
		RunnerType:   runner,
		RuntimeOS:    os,
		StartedAt:    start,
		Duration:     duration,
	}
}

func TestAggregateUsage(t *testing.T) {
	day := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	week := dashboard.DateRange{
		Start: day.AddDate(0, 0, -6),
		End:   day.Add(24*time.Hour - time.Second),
	}

	t.Run("empty input", func(t *testing.T) {
		report := dashboard.AggregateUsage(nil, week)
		assert.Equal(t, dashboard.UsageSummary{}, report.Summary)
		assert.Empty(t, report.ByWorkflow)
	})

	t.Run("hosted and self-hosted split", func(t *testing.T) {
		jobs := []dashboard.JobRecord{
			makeJob("ci", 1, dashboard.RunnerHosted, "linux",
				day, 60*time.Second),
			makeJob("ci", 2, dashboard.RunnerSelfHosted, "linux",
				day, 60*time.Second),
		}

		report := dashboard.AggregateUsage(jobs, week)

		assert.Equal(t, 2, report.Summary.TotalMinutes)
		assert.Equal(t, 1, report.Summary.TotalHostedJobRuns)
		assert.Equal(t, 1, report.Summary.TotalSelfHostedJobRuns)
		assert.Equal(t, "linux", report.Summary.MajorityRuntimeOS)
	})

	t.Run("per-workflow breakdown", func(t *testing.T) {
		jobs := []dashboard.JobRecord{
			// Two jobs of the same run for the ci workflow.
			makeJob("ci", 1, dashboard.RunnerHosted, "linux",
				day, 3*time.Minute),
			makeJob("ci", 1, dashboard.RunnerHosted, "macos",
				day, 2*time.Minute),
			// A second ci run.
			makeJob("ci", 2, dashboard.RunnerHosted, "linux",
				day.Add(time.Hour), time.Minute),
			// One deploy run on a self-hosted box.
			makeJob("deploy", 3, dashboard.RunnerSelfHosted, "linux",
				day.Add(2*time.Hour), 4*time.Minute),
		}

		report := dashboard.AggregateUsage(jobs, week)

		require.Len(t, report.ByWorkflow, 2)

		// Rows are sorted by workflow path.
		ci := report.ByWorkflow[0]
		assert.Equal(t, ".github/workflows/ci.yml", ci.WorkflowPath)
		assert.Equal(t, 6, ci.Minutes)
		assert.Equal(t, 2, ci.RunCount)
		assert.Equal(t, 3, ci.JobCount)
		assert.Equal(t, dashboard.RunnerHosted, ci.DominantRunnerType)
		assert.Equal(t, "linux", ci.DominantRuntimeOS)

		deploy := report.ByWorkflow[1]
		assert.Equal(t, 1, deploy.RunCount)
		assert.Equal(t, 1, deploy.JobCount)
		assert.Equal(t, dashboard.RunnerSelfHosted,
			deploy.DominantRunnerType)

		assert.Equal(t, 10, report.Summary.TotalMinutes)
	})

	t.Run("majority OS ties break by first seen", func(t *testing.T) {
		jobs := []dashboard.JobRecord{
			makeJob("ci", 1, dashboard.RunnerHosted, "windows",
				day, time.Minute),
			makeJob("ci", 2, dashboard.RunnerHosted, "linux",
				day, time.Minute),
		}

		report := dashboard.AggregateUsage(jobs, week)
		assert.Equal(t, "windows", report.Summary.MajorityRuntimeOS)
	})

	t.Run("jobs outside the range are ignored", func(t *testing.T) {
		jobs := []dashboard.JobRecord{
			makeJob("ci", 1, dashboard.RunnerHosted, "linux",
				day, time.Minute),
			makeJob("ci", 2, dashboard.RunnerHosted, "linux",
				day.AddDate(0, 0, -30), time.Minute),
		}

		report := dashboard.AggregateUsage(jobs, week)
		assert.Equal(t, 1, report.Summary.TotalHostedJobRuns)
		assert.Equal(t, 1, report.Summary.TotalMinutes)
	})

	t.Run("sub-minute totals round", func(t *testing.T) {
		jobs := []dashboard.JobRecord{
			makeJob("ci", 1, dashboard.RunnerHosted, "linux",
				day, 40*time.Second),
			makeJob("ci", 2, dashboard.RunnerHosted, "linux",
				day, 50*time.Second),
		}

		report := dashboard.AggregateUsage(jobs, week)
		// 90 seconds rounds to 2 minutes.
		assert.Equal(t, 2, report.Summary.TotalMinutes)
	})
}
