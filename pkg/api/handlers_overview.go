package api

import (
	"net/http"
	"time"

	"github.com/OmniLens/OmniLens-sub000/pkg/dashboard"
)

type overviewResponse struct {
	Date             string                     `json:"date"`
	Overview         dashboard.Overview         `json:"overview"`
	Hourly           []dashboard.HourlyBucket   `json:"hourly"`
	HourlyStatistics dashboard.HourlyStatistics `json:"hourly_statistics"`
	MissingWorkflows []string                   `json:"missing_workflows"`
	Runs             []dashboard.WorkflowRun    `json:"runs"`
}

// handleOverview returns the aggregated run metrics for one UTC day.
// The date query parameter (YYYY-MM-DD) defaults to today.
func (s *server) handleOverview(w http.ResponseWriter, r *http.Request) {
	user, repo, ok := s.repoFromRequest(w, r)
	if !ok {
		return
	}

	day, ok := dayFromRequest(w, r)
	if !ok {
		return
	}

	owner, name, err := splitRepoPath(repo.Path)
	if err != nil {
		s.log.WithError(err).Error("Stored repository path is malformed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"internal error"})

		return
	}

	client := s.clientForUser(user)

	runs, err := client.ListWorkflowRuns(
		r.Context(), owner, name, dashboard.DayBounds(day),
	)
	if err != nil {
		s.writeGitHubError(w, err, "listing workflow runs")

		return
	}

	workflows, err := s.workflowsForRepo(r, user.ID, repo, client, false)
	if err != nil {
		s.log.WithError(err).
			WithField("repo", repo.Path).
			Warn("Failed to load workflow cache, omitting reconciliation")

		workflows = nil
	}

	hourly := dashboard.CalculateHourlyBreakdown(runs)

	writeJSON(w, http.StatusOK, overviewResponse{
		Date:             dashboard.DayKey(day),
		Overview:         dashboard.CalculateOverview(runs),
		Hourly:           hourly,
		HourlyStatistics: dashboard.CalculateHourlyStatistics(hourly),
		MissingWorkflows: dashboard.CalculateMissingWorkflows(workflows, runs),
		Runs:             runs,
	})
}

// dayFromRequest parses the optional date query parameter, defaulting
// to the current UTC day.
func dayFromRequest(
	w http.ResponseWriter, r *http.Request,
) (time.Time, bool) {
	param := r.URL.Query().Get("date")
	if param == "" {
		return time.Now().UTC(), true
	}

	day, err := dashboard.ParseDayKey(param)
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid date, expected YYYY-MM-DD"})

		return time.Time{}, false
	}

	return day, true
}
