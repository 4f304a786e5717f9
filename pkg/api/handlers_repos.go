package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/OmniLens/OmniLens-sub000/pkg/api/store"
	"github.com/OmniLens/OmniLens-sub000/pkg/dashboard"
	"github.com/OmniLens/OmniLens-sub000/pkg/ghclient"
)

type addRepoRequest struct {
	Path string `json:"path"`
}

type repoResponse struct {
	Slug          string `json:"slug"`
	Path          string `json:"path"`
	DisplayName   string `json:"display_name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
	AvatarURL     string `json:"avatar_url"`
	Visibility    string `json:"visibility"`
	AddedAt       string `json:"added_at"`
}

func toRepoResponse(repo *store.Repository) repoResponse {
	return repoResponse{
		Slug:          repo.Slug,
		Path:          repo.Path,
		DisplayName:   repo.DisplayName,
		HTMLURL:       repo.HTMLURL,
		DefaultBranch: repo.DefaultBranch,
		AvatarURL:     repo.AvatarURL,
		Visibility:    repo.Visibility,
		AddedAt:       repo.AddedAt.UTC().Format(time.RFC3339),
	}
}

// slugFromPath derives the URL-safe repository identifier from an
// owner/name path, e.g. "acme/Widget" -> "acme-widget".
func slugFromPath(path string) string {
	return strings.ToLower(strings.ReplaceAll(path, "/", "-"))
}

// splitRepoPath splits an owner/name path into its components.
func splitRepoPath(path string) (owner, name string, err error) {
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" ||
		strings.Contains(parts[1], "/") {
		return "", "", fmt.Errorf("invalid repository path %q, expected owner/name", path)
	}

	return parts[0], parts[1], nil
}

// clientForUser returns a GitHub client using the user's own OAuth
// token when present, falling back to the server-wide token for
// config-seeded users.
func (s *server) clientForUser(user *store.User) ghclient.Client {
	token := user.AccessToken
	if token == "" {
		token = s.cfg.GitHub.Token
	}

	return s.newClient(token)
}

// repoFromRequest resolves the {slug} URL parameter to the
// authenticated user's tracked repository. A miss writes a 404 and
// returns ok=false.
func (s *server) repoFromRequest(
	w http.ResponseWriter, r *http.Request,
) (*store.User, *store.Repository, bool) {
	user := userFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized,
			errorResponse{"not authenticated"})

		return nil, nil, false
	}

	slug := chi.URLParam(r, "slug")

	repo, err := s.store.GetRepository(r.Context(), user.ID, slug)
	if err != nil {
		writeJSON(w, http.StatusNotFound,
			errorResponse{"repository not tracked"})

		return nil, nil, false
	}

	return user, repo, true
}

// handleListRepos returns the authenticated user's tracked repositories.
func (s *server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized,
			errorResponse{"not authenticated"})

		return
	}

	repos, err := s.store.ListRepositories(r.Context(), user.ID)
	if err != nil {
		s.log.WithError(err).Error("Failed to list repositories")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"internal error"})

		return
	}

	resp := make([]repoResponse, 0, len(repos))
	for i := range repos {
		resp = append(resp, toRepoResponse(&repos[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleAddRepo validates an owner/name path against GitHub and adds it
// to the user's dashboard, seeding the workflow cache in the same pass.
func (s *server) handleAddRepo(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized,
			errorResponse{"not authenticated"})

		return
	}

	var req addRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid request body"})

		return
	}

	owner, name, err := splitRepoPath(strings.TrimSpace(req.Path))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	slug := slugFromPath(owner + "/" + name)

	if _, err := s.store.GetRepository(r.Context(), user.ID, slug); err == nil {
		writeJSON(w, http.StatusConflict,
			errorResponse{"repository already tracked"})

		return
	}

	client := s.clientForUser(user)

	info, err := client.GetRepository(r.Context(), owner, name)
	if err != nil {
		s.writeGitHubError(w, err, "validating repository")

		return
	}

	visibility := "public"
	if info.Private {
		visibility = "private"
	}

	repo := &store.Repository{
		UserID:        user.ID,
		Slug:          slug,
		Path:          info.Path,
		DisplayName:   info.Name,
		HTMLURL:       info.HTMLURL,
		DefaultBranch: info.DefaultBranch,
		AvatarURL:     info.AvatarURL,
		Visibility:    visibility,
		AddedAt:       time.Now().UTC(),
	}

	if err := s.store.CreateRepository(r.Context(), repo); err != nil {
		s.log.WithError(err).Error("Failed to create repository")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"internal error"})

		return
	}

	// Seed the workflow cache so the first dashboard render has names
	// to reconcile against. A failure here is not fatal; the cache
	// fills on the next refresh pass.
	if workflows, err := client.ListWorkflows(
		r.Context(), owner, name,
	); err != nil {
		s.log.WithError(err).
			WithField("repo", info.Path).
			Warn("Failed to seed workflow cache")
	} else if err := s.store.ReplaceWorkflows(
		r.Context(), user.ID, slug, storeWorkflows(workflows),
	); err != nil {
		s.log.WithError(err).
			WithField("repo", info.Path).
			Warn("Failed to store workflow cache")
	}

	writeJSON(w, http.StatusCreated, toRepoResponse(repo))
}

// handleDeleteRepo removes a tracked repository and its cached workflows.
func (s *server) handleDeleteRepo(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized,
			errorResponse{"not authenticated"})

		return
	}

	slug := chi.URLParam(r, "slug")

	if err := s.store.DeleteRepository(r.Context(), user.ID, slug); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound,
				errorResponse{"repository not tracked"})

			return
		}

		s.log.WithError(err).Error("Failed to delete repository")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"internal error"})

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// storeWorkflows converts fetched workflow definitions to cache rows.
func storeWorkflows(workflows []dashboard.Workflow) []store.Workflow {
	rows := make([]store.Workflow, 0, len(workflows))
	for _, wf := range workflows {
		rows = append(rows, store.Workflow{
			WorkflowID: wf.ID,
			Name:       wf.Name,
			Path:       wf.Path,
			State:      string(wf.State),
		})
	}

	return rows
}

// cachedWorkflows converts workflow cache rows back to domain values.
func cachedWorkflows(rows []store.Workflow) []dashboard.Workflow {
	workflows := make([]dashboard.Workflow, 0, len(rows))
	for _, row := range rows {
		workflows = append(workflows, dashboard.Workflow{
			ID:    row.WorkflowID,
			Name:  row.Name,
			Path:  row.Path,
			State: dashboard.WorkflowState(row.State),
		})
	}

	return workflows
}

// writeGitHubError maps GitHub client errors to HTTP responses.
func (s *server) writeGitHubError(
	w http.ResponseWriter, err error, action string,
) {
	switch {
	case errors.Is(err, ghclient.ErrNotFound):
		writeJSON(w, http.StatusNotFound,
			errorResponse{"repository not found or not accessible"})
	case errors.Is(err, ghclient.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests,
			errorResponse{"github rate limit exceeded, try again later"})
	default:
		s.log.WithError(err).Error("GitHub request failed: " + action)
		writeJSON(w, http.StatusBadGateway,
			errorResponse{"github request failed"})
	}
}
