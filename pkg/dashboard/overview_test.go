package dashboard_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmniLens/OmniLens-sub000/pkg/dashboard"
)

func makeRun(
	id, workflowID int64,
	status dashboard.RunStatus,
	conclusion dashboard.RunConclusion,
	start time.Time,
	duration time.Duration,
) dashboard.WorkflowRun {
	return dashboard.WorkflowRun{
		ID:           id,
		WorkflowID:   workflowID,
		Status:       status,
		Conclusion:   conclusion,
		RunStartedAt: start,
		UpdatedAt:    start.Add(duration),
		HTMLURL:      "https://github.com/acme/widget/actions/runs/1",
	}
}

func TestCalculateOverview(t *testing.T) {
	day := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		runs []dashboard.WorkflowRun
		want dashboard.Overview
	}{
		{
			name: "empty input yields all zeros",
			runs: nil,
			want: dashboard.Overview{},
		},
		{
			name: "mixed statuses and conclusions",
			runs: []dashboard.WorkflowRun{
				makeRun(1, 10, dashboard.StatusCompleted,
					dashboard.ConclusionSuccess, day, 90*time.Second),
				makeRun(2, 10, dashboard.StatusCompleted,
					dashboard.ConclusionFailure, day, 30*time.Second),
				makeRun(3, 11, dashboard.StatusInProgress,
					dashboard.ConclusionNone, day, 0),
				makeRun(4, 11, dashboard.StatusQueued,
					dashboard.ConclusionNone, day, 0),
			},
			want: dashboard.Overview{
				TotalRuns:           4,
				CompletedRuns:       2,
				InProgressRuns:      2,
				PassedRuns:          1,
				FailedRuns:          1,
				TotalRuntimeSeconds: 120,
				CompletionRate:      50,
			},
		},
		{
			name: "runtime is floored to whole seconds",
			runs: []dashboard.WorkflowRun{
				makeRun(1, 10, dashboard.StatusCompleted,
					dashboard.ConclusionSuccess, day,
					90*time.Second+700*time.Millisecond),
			},
			want: dashboard.Overview{
				TotalRuns:           1,
				CompletedRuns:       1,
				PassedRuns:          1,
				TotalRuntimeSeconds: 90,
				CompletionRate:      100,
			},
		},
		{
			name: "cancelled conclusions count as completed but not passed or failed",
			runs: []dashboard.WorkflowRun{
				makeRun(1, 10, dashboard.StatusCompleted,
					dashboard.RunConclusion("cancelled"), day, time.Minute),
			},
			want: dashboard.Overview{
				TotalRuns:           1,
				CompletedRuns:       1,
				TotalRuntimeSeconds: 60,
				CompletionRate:      100,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dashboard.CalculateOverview(tt.runs)
			assert.Equal(t, tt.want, got)

			// Reconciliation invariants hold for any input.
			assert.LessOrEqual(t, got.PassedRuns+got.FailedRuns,
				got.CompletedRuns)
			assert.LessOrEqual(t,
				got.CompletedRuns+got.InProgressRuns, len(tt.runs))
		})
	}
}

func TestCalculateHourlyBreakdown(t *testing.T) {
	t.Run("empty input yields 24 zero buckets", func(t *testing.T) {
		buckets := dashboard.CalculateHourlyBreakdown(nil)
		require.Len(t, buckets, 24)

		for h, b := range buckets {
			assert.Equal(t, h, b.Hour)
			assert.Zero(t, b.Total)
		}
	})

	t.Run("buckets by UTC start hour", func(t *testing.T) {
		runs := []dashboard.WorkflowRun{
			makeRun(1, 10, dashboard.StatusCompleted,
				dashboard.ConclusionSuccess,
				time.Date(2026, 3, 14, 8, 15, 0, 0, time.UTC), time.Minute),
			makeRun(2, 10, dashboard.StatusCompleted,
				dashboard.ConclusionFailure,
				time.Date(2026, 3, 14, 8, 45, 0, 0, time.UTC), time.Minute),
			makeRun(3, 10, dashboard.StatusCompleted,
				dashboard.ConclusionSuccess,
				time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC), time.Minute),
			// In-progress runs do not count toward any bucket.
			makeRun(4, 10, dashboard.StatusInProgress,
				dashboard.ConclusionNone,
				time.Date(2026, 3, 14, 8, 50, 0, 0, time.UTC), 0),
		}

		buckets := dashboard.CalculateHourlyBreakdown(runs)
		require.Len(t, buckets, 24)

		assert.Equal(t, 1, buckets[8].Passed)
		assert.Equal(t, 1, buckets[8].Failed)
		assert.Equal(t, 2, buckets[8].Total)
		assert.Equal(t, 1, buckets[23].Passed)

		sum := 0
		for _, b := range buckets {
			sum += b.Total
		}

		// The bucket totals reconcile with the passed+failed count.
		assert.Equal(t, 3, sum)
	})
}

func TestCalculateHourlyStatistics(t *testing.T) {
	t.Run("all-zero hours", func(t *testing.T) {
		stats := dashboard.CalculateHourlyStatistics(
			dashboard.CalculateHourlyBreakdown(nil),
		)

		assert.Equal(t, dashboard.HourlyStatistics{}, stats)
	})

	t.Run("average divides by all 24 hours", func(t *testing.T) {
		runs := make([]dashboard.WorkflowRun, 0, 12)
		start := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)

		for i := range 12 {
			runs = append(runs, makeRun(int64(i+1), 10,
				dashboard.StatusCompleted, dashboard.ConclusionSuccess,
				start, time.Minute))
		}

		stats := dashboard.CalculateHourlyStatistics(
			dashboard.CalculateHourlyBreakdown(runs),
		)

		assert.Equal(t, 12, stats.TotalRuns)
		// 12 / 24 = 0.5, not 12 / 1 over the single non-zero hour.
		assert.Equal(t, 0.5, stats.AvgRunsPerHour)
		assert.Equal(t, 0, stats.MinRunsPerHour)
		assert.Equal(t, 12, stats.MaxRunsPerHour)
	})
}

func TestCalculateMissingWorkflows(t *testing.T) {
	workflows := []dashboard.Workflow{
		{ID: 1, Name: "CI", Path: ".github/workflows/ci.yml",
			State: dashboard.WorkflowActive},
		{ID: 2, Name: "CD", Path: ".github/workflows/cd.yml",
			State: dashboard.WorkflowActive},
		{ID: 3, Name: "Old", Path: ".github/workflows/old.yml",
			State: dashboard.WorkflowDeleted},
	}

	runs := []dashboard.WorkflowRun{
		makeRun(100, 1, dashboard.StatusCompleted,
			dashboard.ConclusionSuccess,
			time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC), time.Minute),
	}

	missing := dashboard.CalculateMissingWorkflows(workflows, runs)

	// CD never ran; the deleted workflow is never reported.
	assert.Equal(t, []string{"CD"}, missing)

	t.Run("no runs reports every active workflow", func(t *testing.T) {
		missing := dashboard.CalculateMissingWorkflows(workflows, nil)
		assert.Equal(t, []string{"CI", "CD"}, missing)
	})

	t.Run("empty workflow list", func(t *testing.T) {
		assert.Empty(t, dashboard.CalculateMissingWorkflows(nil, runs))
	})
}
