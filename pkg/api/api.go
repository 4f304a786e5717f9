package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OmniLens/OmniLens-sub000/pkg/api/refresher"
	"github.com/OmniLens/OmniLens-sub000/pkg/api/store"
	"github.com/OmniLens/OmniLens-sub000/pkg/config"
	"github.com/OmniLens/OmniLens-sub000/pkg/dashboard"
	"github.com/OmniLens/OmniLens-sub000/pkg/ghclient"
)

const (
	shutdownTimeout        = 10 * time.Second
	sessionCleanupInterval = 15 * time.Minute
)

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.Config
	store      store.Store
	newClient  ghclient.Factory
	usageCache *dashboard.ReportCache
	refresher  refresher.Refresher
	httpServer *http.Server
	wg         sync.WaitGroup
	done       chan struct{}
}

// NewServer creates a new API server. The client factory is injected so
// tests can substitute a fake GitHub backend.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.Config,
	newClient ghclient.Factory,
) Server {
	return &server{
		log:       log.WithField("component", "api"),
		cfg:       cfg,
		newClient: newClient,
		done:      make(chan struct{}),
	}
}

// Start initializes the store, seeds config data, and starts the HTTP
// server and background services.
func (s *server) Start(ctx context.Context) error {
	// Create and start the database store.
	s.store = store.NewStore(s.log, &s.cfg.Database)
	if err := s.store.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	// Seed users from config.
	if s.cfg.Auth.Basic.Enabled {
		if err := s.store.SeedUsers(
			ctx, s.cfg.Auth.Basic.Users,
		); err != nil {
			return fmt.Errorf("seeding users: %w", err)
		}
	}

	s.usageCache = dashboard.NewReportCache(s.cfg.UsageCacheTTL(), nil)

	// Prepare the workflow refresher before building the router, but do
	// NOT start it yet: the HTTP server must be listening first.
	if s.cfg.Dashboard.Refresh.Enabled {
		s.refresher = refresher.NewRefresher(
			s.log,
			s.store,
			s.newClient,
			s.cfg.GitHub.Token,
			s.cfg.RefreshInterval(),
			s.cfg.Dashboard.Refresh.Concurrency,
		)

		s.log.Info("Workflow refresher enabled")
	}

	// Build router and start HTTP server.
	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start session cleanup goroutine.
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.store.DeleteExpiredSessions(ctx); err != nil {
					s.log.WithError(err).
						Warn("Failed to clean expired sessions")
				}

				if evicted := s.usageCache.EvictExpired(); evicted > 0 {
					s.log.WithField("evicted", evicted).
						Debug("Evicted expired usage reports")
				}
			case <-s.done:
				return
			}
		}
	}()

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}

	// Start HTTP server.
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Server.Listen).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	// Start the refresher AFTER the API is listening so that the server
	// is reachable while the first (potentially slow) pass runs.
	if s.refresher != nil {
		if err := s.refresher.Start(ctx); err != nil {
			return fmt.Errorf("starting refresher: %w", err)
		}
	}

	return nil
}

// Stop gracefully shuts down the HTTP server and closes the store.
func (s *server) Stop() error {
	close(s.done)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.refresher != nil {
		if err := s.refresher.Stop(); err != nil {
			s.log.WithError(err).Warn("Refresher stop error")
		}
	}

	if s.store != nil {
		if err := s.store.Stop(); err != nil {
			return fmt.Errorf("stopping store: %w", err)
		}
	}

	s.log.Info("API server stopped")

	return nil
}
