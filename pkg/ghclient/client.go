// Package ghclient wraps the GitHub REST API surface the dashboard
// needs: repository lookup, workflow listing, workflow runs and job
// timings. All calls go through the Client interface so handlers and
// the background refresher can be tested against fakes.
package ghclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"

	"github.com/OmniLens/OmniLens-sub000/pkg/dashboard"
)

var (
	// ErrNotFound indicates the repository does not exist or the
	// token cannot see it. GitHub returns 404 for both cases.
	ErrNotFound = errors.New("repository not found or not accessible")

	// ErrRateLimited indicates a primary or secondary rate limit.
	ErrRateLimited = errors.New("github rate limit exceeded")
)

const perPage = 100

// RepoInfo describes a repository as reported by GitHub, used when a
// user adds a repository to their dashboard.
type RepoInfo struct {
	Path          string `json:"path"`
	Name          string `json:"name"`
	HTMLURL       string `json:"htmlUrl"`
	DefaultBranch string `json:"defaultBranch"`
	AvatarURL     string `json:"avatarUrl"`
	Private       bool   `json:"private"`
}

// Client is the subset of the GitHub API the dashboard depends on.
type Client interface {
	// GetRepository fetches repository metadata for owner/name.
	GetRepository(ctx context.Context, owner, name string) (*RepoInfo, error)

	// ListWorkflows returns all workflows defined in the repository,
	// including disabled ones.
	ListWorkflows(
		ctx context.Context, owner, name string,
	) ([]dashboard.Workflow, error)

	// ListWorkflowRuns returns all runs created within the given
	// range, newest first as GitHub orders them.
	ListWorkflowRuns(
		ctx context.Context, owner, name string, r dashboard.DateRange,
	) ([]dashboard.WorkflowRun, error)

	// ListJobRecords returns per-job timing records for every run
	// created within the given range.
	ListJobRecords(
		ctx context.Context, owner, name string, r dashboard.DateRange,
	) ([]dashboard.JobRecord, error)
}

// Factory builds a Client for a given access token. The server holds
// one so per-user tokens can be exchanged for clients on demand.
type Factory func(token string) Client

type client struct {
	gh *github.Client
}

// NewClient returns a Client authenticated with the given token. An
// empty token produces an unauthenticated client, which works for
// public repositories at a much lower rate limit.
func NewClient(token string) Client {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(context.Background(), ts)
	}

	return &client{gh: github.NewClient(hc)}
}

func (c *client) GetRepository(
	ctx context.Context, owner, name string,
) (*RepoInfo, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, translateError(err)
	}

	info := &RepoInfo{
		Path:          repo.GetFullName(),
		Name:          repo.GetName(),
		HTMLURL:       repo.GetHTMLURL(),
		DefaultBranch: repo.GetDefaultBranch(),
		Private:       repo.GetPrivate(),
	}

	if repo.GetOwner() != nil {
		info.AvatarURL = repo.GetOwner().GetAvatarURL()
	}

	return info, nil
}

func (c *client) ListWorkflows(
	ctx context.Context, owner, name string,
) ([]dashboard.Workflow, error) {
	opts := &github.ListOptions{PerPage: perPage}

	var workflows []dashboard.Workflow

	for {
		page, resp, err := c.gh.Actions.ListWorkflows(ctx, owner, name, opts)
		if err != nil {
			return nil, translateError(err)
		}

		for _, wf := range page.Workflows {
			workflows = append(workflows, dashboard.Workflow{
				ID:    wf.GetID(),
				Name:  wf.GetName(),
				Path:  wf.GetPath(),
				State: dashboard.WorkflowState(wf.GetState()),
			})
		}

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	return workflows, nil
}

func (c *client) ListWorkflowRuns(
	ctx context.Context, owner, name string, r dashboard.DateRange,
) ([]dashboard.WorkflowRun, error) {
	opts := &github.ListWorkflowRunsOptions{
		Created:     createdQualifier(r),
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var runs []dashboard.WorkflowRun

	for {
		page, resp, err := c.gh.Actions.ListRepositoryWorkflowRuns(
			ctx, owner, name, opts,
		)
		if err != nil {
			return nil, translateError(err)
		}

		for _, run := range page.WorkflowRuns {
			runs = append(runs, convertRun(run))
		}

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	return runs, nil
}

func (c *client) ListJobRecords(
	ctx context.Context, owner, name string, r dashboard.DateRange,
) ([]dashboard.JobRecord, error) {
	runs, err := c.ListWorkflowRuns(ctx, owner, name, r)
	if err != nil {
		return nil, err
	}

	var records []dashboard.JobRecord

	for _, run := range runs {
		jobs, err := c.listJobsForRun(ctx, owner, name, run.ID)
		if err != nil {
			return nil, fmt.Errorf("listing jobs for run %d: %w", run.ID, err)
		}

		wf := workflowPathFromRun(run)

		for _, job := range jobs {
			if job.GetStartedAt().IsZero() || job.GetCompletedAt().IsZero() {
				continue
			}

			labels := job.Labels

			records = append(records, dashboard.JobRecord{
				WorkflowName: run.WorkflowName,
				WorkflowPath: wf,
				RunID:        run.ID,
				RunnerType:   runnerTypeFromLabels(labels),
				RuntimeOS:    runtimeOSFromLabels(labels),
				StartedAt:    job.GetStartedAt().Time.UTC(),
				Duration: job.GetCompletedAt().Time.Sub(
					job.GetStartedAt().Time,
				),
			})
		}
	}

	return records, nil
}

func (c *client) listJobsForRun(
	ctx context.Context, owner, name string, runID int64,
) ([]*github.WorkflowJob, error) {
	opts := &github.ListWorkflowJobsOptions{
		Filter:      "latest",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var jobs []*github.WorkflowJob

	for {
		page, resp, err := c.gh.Actions.ListWorkflowJobs(
			ctx, owner, name, runID, opts,
		)
		if err != nil {
			return nil, translateError(err)
		}

		jobs = append(jobs, page.Jobs...)

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	return jobs, nil
}

func convertRun(run *github.WorkflowRun) dashboard.WorkflowRun {
	return dashboard.WorkflowRun{
		ID:           run.GetID(),
		WorkflowID:   run.GetWorkflowID(),
		WorkflowName: run.GetName(),
		WorkflowPath: run.GetPath(),
		Status:       dashboard.RunStatus(run.GetStatus()),
		Conclusion:   normalizeConclusion(run.GetConclusion()),
		RunStartedAt: run.GetRunStartedAt().Time.UTC(),
		UpdatedAt:    run.GetUpdatedAt().Time.UTC(),
		HTMLURL:      run.GetHTMLURL(),
	}
}

// normalizeConclusion maps GitHub's conclusion vocabulary onto the two
// outcomes the aggregators reason about. Timeouts and startup failures
// count as failures. Cancelled, skipped and the other neutral
// conclusions carry no signal and map to none, so a day of cancelled
// runs is not mistaken for a passing one.
func normalizeConclusion(conclusion string) dashboard.RunConclusion {
	switch conclusion {
	case "success":
		return dashboard.ConclusionSuccess
	case "failure", "timed_out", "startup_failure":
		return dashboard.ConclusionFailure
	default:
		return dashboard.ConclusionNone
	}
}

func workflowPathFromRun(run dashboard.WorkflowRun) string {
	if run.WorkflowPath != "" {
		return run.WorkflowPath
	}

	return fmt.Sprintf("workflow-%d", run.WorkflowID)
}

// createdQualifier formats a DateRange as a GitHub search qualifier,
// e.g. "2025-01-01..2025-01-31".
func createdQualifier(r dashboard.DateRange) string {
	return fmt.Sprintf(
		"%s..%s",
		dashboard.DayKey(r.Start),
		dashboard.DayKey(r.End),
	)
}

func runnerTypeFromLabels(labels []string) dashboard.RunnerType {
	for _, label := range labels {
		if strings.EqualFold(label, "self-hosted") {
			return dashboard.RunnerSelfHosted
		}
	}

	return dashboard.RunnerHosted
}

func runtimeOSFromLabels(labels []string) string {
	for _, label := range labels {
		l := strings.ToLower(label)

		switch {
		case strings.HasPrefix(l, "ubuntu"):
			return "ubuntu"
		case strings.HasPrefix(l, "windows"):
			return "windows"
		case strings.HasPrefix(l, "macos"):
			return "macos"
		}
	}

	return "unknown"
}

func translateError(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: resets at %s",
			ErrRateLimited, rateErr.Rate.Reset.Time.Format(time.RFC3339))
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return ErrRateLimited
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) &&
		respErr.Response != nil &&
		respErr.Response.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	return err
}
