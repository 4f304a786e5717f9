// Package refresher keeps the per-user workflow metadata cache in sync
// with GitHub by periodically re-listing workflows for every tracked
// repository.
package refresher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/OmniLens/OmniLens-sub000/pkg/api/store"
	"github.com/OmniLens/OmniLens-sub000/pkg/ghclient"
)

// defaultConcurrency bounds parallel GitHub calls when no explicit
// concurrency value is configured.
const defaultConcurrency = 4

// Refresher is a background service that periodically refreshes cached
// workflow definitions for all tracked repositories.
type Refresher interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Refresher = (*refresher)(nil)

type refresher struct {
	log           logrus.FieldLogger
	store         store.Store
	newClient     ghclient.Factory
	fallbackToken string
	interval      time.Duration
	concurrency   int
	done          chan struct{}
	wg            sync.WaitGroup
	dbMu          sync.Mutex // serializes DB writes to avoid SQLite contention
}

// NewRefresher creates a new background workflow refresher. The
// fallback token is used for repositories whose owner has no stored
// OAuth token (config-seeded users).
func NewRefresher(
	log logrus.FieldLogger,
	st store.Store,
	newClient ghclient.Factory,
	fallbackToken string,
	interval time.Duration,
	concurrency int,
) Refresher {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &refresher{
		log:           log.WithField("component", "refresher"),
		store:         st,
		newClient:     newClient,
		fallbackToken: fallbackToken,
		interval:      interval,
		concurrency:   concurrency,
		done:          make(chan struct{}),
	}
}

// Start launches a background goroutine that runs an immediate refresh
// pass and then ticks at the configured interval. The first pass is
// asynchronous so the caller (the API server) is not blocked.
func (rf *refresher) Start(ctx context.Context) error {
	rf.log.WithFields(logrus.Fields{
		"interval":    rf.interval.String(),
		"concurrency": rf.concurrency,
	}).Info("Starting workflow refresher")

	rf.wg.Add(1)

	go func() {
		defer rf.wg.Done()

		// Run one pass immediately.
		rf.runPass(ctx)

		ticker := time.NewTicker(rf.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rf.runPass(ctx)
			case <-rf.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop signals the refresher goroutine to stop and waits for it.
func (rf *refresher) Stop() error {
	close(rf.done)
	rf.wg.Wait()

	rf.log.Info("Workflow refresher stopped")

	return nil
}

// runPass refreshes the workflow cache for every tracked repository
// using a bounded worker pool.
func (rf *refresher) runPass(ctx context.Context) {
	start := time.Now()

	repos, err := rf.store.ListAllRepositories(ctx)
	if err != nil {
		rf.log.WithError(err).Warn("Failed to list repositories")

		return
	}

	rf.log.WithField("repositories", len(repos)).
		Info("Refresh pass started")

	if len(repos) == 0 {
		return
	}

	// Tokens are per owning user; resolve each one once per pass.
	tokens := make(map[uint]string, len(repos))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(rf.concurrency)

	var refreshed atomic.Int64

	for i := range repos {
		repo := repos[i]

		g.Go(func() error {
			// Check for cancellation before starting work.
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			case <-rf.done:
				return nil
			default:
			}

			if err := rf.refreshRepo(gCtx, &repo, tokens); err != nil {
				rf.log.WithError(err).
					WithField("repo", repo.Path).
					Warn("Failed to refresh workflow cache")

				return nil //nolint:nilerr // log and continue
			}

			refreshed.Add(1)

			return nil
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		rf.log.WithError(err).Warn("Refresh pass aborted")

		return
	}

	rf.log.WithFields(logrus.Fields{
		"refreshed": refreshed.Load(),
		"duration":  time.Since(start).Round(time.Millisecond).String(),
	}).Info("Refresh pass completed")
}

// refreshRepo re-lists workflows for a single repository and replaces
// its cache rows.
func (rf *refresher) refreshRepo(
	ctx context.Context,
	repo *store.Repository,
	tokens map[uint]string,
) error {
	token, err := rf.tokenForUser(ctx, repo.UserID, tokens)
	if err != nil {
		return fmt.Errorf("resolving token: %w", err)
	}

	owner, name, err := splitPath(repo.Path)
	if err != nil {
		return err
	}

	workflows, err := rf.newClient(token).ListWorkflows(ctx, owner, name)
	if err != nil {
		return fmt.Errorf("listing workflows: %w", err)
	}

	rows := make([]store.Workflow, 0, len(workflows))
	for _, wf := range workflows {
		rows = append(rows, store.Workflow{
			WorkflowID: wf.ID,
			Name:       wf.Name,
			Path:       wf.Path,
			State:      string(wf.State),
		})
	}

	// Serialize DB writes to avoid SQLite BUSY errors under concurrency.
	rf.dbMu.Lock()
	defer rf.dbMu.Unlock()

	if err := rf.store.ReplaceWorkflows(
		ctx, repo.UserID, repo.Slug, rows,
	); err != nil {
		return fmt.Errorf("replacing workflow cache: %w", err)
	}

	return nil
}

// tokenForUser returns the owning user's access token, falling back to
// the server-wide token. The tokens map memoizes lookups within a pass
// and shares dbMu with the cache writes.
func (rf *refresher) tokenForUser(
	ctx context.Context, userID uint, tokens map[uint]string,
) (string, error) {
	rf.dbMu.Lock()
	token, ok := tokens[userID]
	rf.dbMu.Unlock()

	if ok {
		return token, nil
	}

	user, err := rf.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("loading user %d: %w", userID, err)
	}

	token = user.AccessToken
	if token == "" {
		token = rf.fallbackToken
	}

	rf.dbMu.Lock()
	tokens[userID] = token
	rf.dbMu.Unlock()

	return token, nil
}

// splitPath splits an owner/name repository path.
func splitPath(path string) (owner, name string, err error) {
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed repository path %q", path)
	}

	return parts[0], parts[1], nil
}
