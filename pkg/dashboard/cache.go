package dashboard

import (
	"fmt"
	"sync"
	"time"
)

// DefaultReportTTL is how long a cached usage report stays fresh.
const DefaultReportTTL = 10 * time.Minute

type reportEntry struct {
	report    UsageReport
	expiresAt time.Time
}

// ReportCache is a TTL cache for usage reports keyed by repository
// slug and date range. Expired entries are recomputed lazily by the
// caller on the next miss. There is no size bound or LRU eviction;
// the key space (repositories x requested date ranges) is small.
//
// The clock is injected so TTL behavior is testable without sleeping.
type ReportCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]reportEntry
}

// NewReportCache creates a cache with the given TTL. A nil clock
// defaults to time.Now, and a non-positive TTL to DefaultReportTTL.
func NewReportCache(ttl time.Duration, now func() time.Time) *ReportCache {
	if ttl <= 0 {
		ttl = DefaultReportTTL
	}

	if now == nil {
		now = time.Now
	}

	return &ReportCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]reportEntry, 16),
	}
}

// UsageKey builds the cache key for a repository slug and date range.
func UsageKey(slug string, r DateRange) string {
	return fmt.Sprintf("%s|%s|%s", slug, DayKey(r.Start), DayKey(r.End))
}

// Get returns the cached report for key if present and unexpired.
// Expired entries are removed on access.
func (c *ReportCache) Get(key string) (UsageReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return UsageReport{}, false
	}

	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)

		return UsageReport{}, false
	}

	return entry.report, true
}

// Set stores a report under key with a fresh TTL.
func (c *ReportCache) Set(key string, report UsageReport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = reportEntry{
		report:    report,
		expiresAt: c.now().Add(c.ttl),
	}
}

// EvictExpired removes all expired entries and returns how many were
// dropped.
func (c *ReportCache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0

	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)

			evicted++
		}
	}

	return evicted
}

// Len returns the number of entries currently held, expired or not.
func (c *ReportCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
