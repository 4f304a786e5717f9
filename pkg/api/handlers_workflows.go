package api

import (
	"net/http"

	"github.com/OmniLens/OmniLens-sub000/pkg/api/store"
	"github.com/OmniLens/OmniLens-sub000/pkg/dashboard"
	"github.com/OmniLens/OmniLens-sub000/pkg/ghclient"
)

type workflowsResponse struct {
	Workflows []dashboard.Workflow `json:"workflows"`
}

// handleWorkflows returns the cached workflow definitions for a
// repository. Passing refresh=true re-fetches from GitHub and replaces
// the cache before responding. Workflows GitHub reports as deleted or
// disabled stay in the cache but are not returned.
func (s *server) handleWorkflows(w http.ResponseWriter, r *http.Request) {
	user, repo, ok := s.repoFromRequest(w, r)
	if !ok {
		return
	}

	refresh := r.URL.Query().Get("refresh") == "true"

	workflows, err := s.workflowsForRepo(
		r, user.ID, repo, s.clientForUser(user), refresh,
	)
	if err != nil {
		s.writeGitHubError(w, err, "listing workflows")

		return
	}

	writeJSON(w, http.StatusOK, workflowsResponse{
		Workflows: activeWorkflows(workflows),
	})
}

// activeWorkflows filters the cached set down to active definitions.
func activeWorkflows(
	workflows []dashboard.Workflow,
) []dashboard.Workflow {
	active := make([]dashboard.Workflow, 0, len(workflows))

	for _, wf := range workflows {
		if wf.State == dashboard.WorkflowActive {
			active = append(active, wf)
		}
	}

	return active
}

// workflowsForRepo returns the repository's workflow definitions from
// the cache, fetching from GitHub when the cache is empty or a forced
// refresh is requested. Fetched definitions replace the cache.
func (s *server) workflowsForRepo(
	r *http.Request,
	userID uint,
	repo *store.Repository,
	client ghclient.Client,
	forceRefresh bool,
) ([]dashboard.Workflow, error) {
	if !forceRefresh {
		rows, err := s.store.ListWorkflows(r.Context(), userID, repo.Slug)
		if err != nil {
			return nil, err
		}

		if len(rows) > 0 {
			return cachedWorkflows(rows), nil
		}
	}

	owner, name, err := splitRepoPath(repo.Path)
	if err != nil {
		return nil, err
	}

	workflows, err := client.ListWorkflows(r.Context(), owner, name)
	if err != nil {
		return nil, err
	}

	if err := s.store.ReplaceWorkflows(
		r.Context(), userID, repo.Slug, storeWorkflows(workflows),
	); err != nil {
		s.log.WithError(err).
			WithField("repo", repo.Path).
			Warn("Failed to update workflow cache")
	}

	return workflows, nil
}
