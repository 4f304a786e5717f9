package api

import (
	"net/http"
	"time"

	"github.com/OmniLens/OmniLens-sub000/pkg/dashboard"
)

type usageResponse struct {
	Start  string                `json:"start"`
	End    string                `json:"end"`
	Cached bool                  `json:"cached"`
	Report dashboard.UsageReport `json:"report"`
}

// handleUsage aggregates per-workflow runner usage over a date range.
// The start and end parameters (YYYY-MM-DD, inclusive) default to the
// current UTC month. Reports are served from a TTL cache because a
// cold computation walks every job of every run in the range.
func (s *server) handleUsage(w http.ResponseWriter, r *http.Request) {
	user, repo, ok := s.repoFromRequest(w, r)
	if !ok {
		return
	}

	rng, ok := rangeFromRequest(w, r)
	if !ok {
		return
	}

	// Keyed by path rather than slug: slugs are lossy ("a/b-c" and
	// "a-b/c" collide) and the report content depends only on the
	// repository and range.
	key := dashboard.UsageKey(repo.Path, rng)

	if report, hit := s.usageCache.Get(key); hit {
		writeJSON(w, http.StatusOK, usageResponse{
			Start:  dashboard.DayKey(rng.Start),
			End:    dashboard.DayKey(rng.End),
			Cached: true,
			Report: report,
		})

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

	jobs, err := client.ListJobRecords(r.Context(), owner, name, rng)
	if err != nil {
		s.writeGitHubError(w, err, "listing job records")

		return
	}

	report := dashboard.AggregateUsage(jobs, rng)
	s.usageCache.Set(key, report)

	writeJSON(w, http.StatusOK, usageResponse{
		Start:  dashboard.DayKey(rng.Start),
		End:    dashboard.DayKey(rng.End),
		Cached: false,
		Report: report,
	})
}

// rangeFromRequest parses the optional start and end parameters into an
// inclusive UTC range, defaulting to the current calendar month.
func rangeFromRequest(
	w http.ResponseWriter, r *http.Request,
) (dashboard.DateRange, bool) {
	startParam := r.URL.Query().Get("start")
	endParam := r.URL.Query().Get("end")

	if startParam == "" && endParam == "" {
		return dashboard.MonthBounds(time.Now()), true
	}

	if startParam == "" || endParam == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"start and end must be provided together"})

		return dashboard.DateRange{}, false
	}

	start, err := dashboard.ParseDayKey(startParam)
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid start, expected YYYY-MM-DD"})

		return dashboard.DateRange{}, false
	}

	end, err := dashboard.ParseDayKey(endParam)
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid end, expected YYYY-MM-DD"})

		return dashboard.DateRange{}, false
	}

	if end.Before(start) {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"end must not precede start"})

		return dashboard.DateRange{}, false
	}

	return dashboard.DateRange{
		Start: start,
		End:   dashboard.DayBounds(end).End,
	}, true
}
