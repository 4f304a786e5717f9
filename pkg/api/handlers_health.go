package api

import (
	"net/http"

	"github.com/OmniLens/OmniLens-sub000/pkg/dashboard"
)

// healthLookbackDays is how far back runs are fetched to supply the
// historical fallback when a workflow had no runs yesterday.
const healthLookbackDays = 14

type workflowHealth struct {
	WorkflowID int64                  `json:"workflow_id"`
	Name       string                 `json:"name"`
	Path       string                 `json:"path"`
	Status     dashboard.HealthStatus `json:"status"`
}

type healthResponse struct {
	Date      string           `json:"date"`
	Workflows []workflowHealth `json:"workflows"`
}

// handleRepoHealth classifies each cached workflow's day-over-day trend
// for the requested UTC day (default today).
func (s *server) handleRepoHealth(w http.ResponseWriter, r *http.Request) {
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

	// One window fetch covers today, yesterday, and the historical
	// fallback; runs are partitioned locally per workflow.
	today := dashboard.DayBounds(day)
	window := dashboard.DateRange{
		Start: today.Start.AddDate(0, 0, -healthLookbackDays),
		End:   today.End,
	}

	runs, err := client.ListWorkflowRuns(r.Context(), owner, name, window)
	if err != nil {
		s.writeGitHubError(w, err, "listing workflow runs")

		return
	}

	workflows, err := s.workflowsForRepo(r, user.ID, repo, client, false)
	if err != nil {
		s.log.WithError(err).Error("Failed to load workflow cache")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"internal error"})

		return
	}

	yesterday := dashboard.DayBounds(today.Start.AddDate(0, 0, -1))

	// Partition the window per workflow into today / yesterday /
	// earlier history.
	type partition struct {
		today      []dashboard.WorkflowRun
		yesterday  []dashboard.WorkflowRun
		historical []dashboard.WorkflowRun
	}

	byWorkflow := make(map[int64]*partition, len(workflows))

	for _, run := range runs {
		p := byWorkflow[run.WorkflowID]
		if p == nil {
			p = &partition{}
			byWorkflow[run.WorkflowID] = p
		}

		switch {
		case today.Contains(run.RunStartedAt):
			p.today = append(p.today, run)
		case yesterday.Contains(run.RunStartedAt):
			p.yesterday = append(p.yesterday, run)
		case run.RunStartedAt.Before(yesterday.Start):
			p.historical = append(p.historical, run)
		}
	}

	resp := healthResponse{
		Date:      dashboard.DayKey(day),
		Workflows: make([]workflowHealth, 0, len(workflows)),
	}

	for _, wf := range workflows {
		if wf.State != dashboard.WorkflowActive {
			continue
		}

		p := byWorkflow[wf.ID]
		if p == nil {
			p = &partition{}
		}

		resp.Workflows = append(resp.Workflows, workflowHealth{
			WorkflowID: wf.ID,
			Name:       wf.Name,
			Path:       wf.Path,
			Status: dashboard.ClassifyHealth(
				p.today, p.yesterday, p.historical,
			),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
